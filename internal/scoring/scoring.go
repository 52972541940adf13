package scoring

import "time"

// EngineVersion is stamped into every computed Profile's metadata, matching
// the teacher's convention of versioning derived/cacheable computations
// (see native/governance's ProposalStatus/AuditEvent string stamps).
const EngineVersion = "trust-scoring/1"

// History carries the optional prior-state inputs the scoring function needs
// to compute the riskSafety dimension's deteriorating-trend penalty and to
// report how many data points informed the computation. A nil/zero History
// means "no history available" — riskSafety's S factor is then 1.0.
type History struct {
	PriorRiskExposure *float64
	DataPoints        int
}

// Dimensions holds the six trust dimensions, each clamped to [0,1] and
// rounded to 4 decimals (spec.md §4.3).
type Dimensions struct {
	Reliability float64 `json:"reliability"`
	Efficiency  float64 `json:"efficiency"`
	Cooperation float64 `json:"cooperation"`
	Compliance  float64 `json:"compliance"`
	RiskSafety  float64 `json:"riskSafety"`
	Competence  float64 `json:"competence"`
}

// Contexts holds the five named context projections (spec.md §4.3).
type Contexts struct {
	Financial     float64 `json:"financial"`
	Collaborative float64 `json:"collaborative"`
	Compliance    float64 `json:"compliance"`
	Technical     float64 `json:"technical"`
	Security      float64 `json:"security"`
}

// Metadata describes the provenance of a computed Profile.
type Metadata struct {
	DataPoints   int    `json:"dataPoints"`
	EngineVersion string `json:"engineVersion"`
}

// Profile is the full output of the scoring function: composite score, the
// six dimensions, the five context projections, and provenance metadata.
type Profile struct {
	Composite float64   `json:"composite"`
	Dimensions Dimensions `json:"dimensions"`
	Contexts  Contexts  `json:"contexts"`
	Timestamp string    `json:"timestamp"`
	Metadata  Metadata  `json:"metadata"`
}

// Composite weights (spec.md §4.3); they sum to 1.0.
const (
	wReliability = 0.15
	wEfficiency  = 0.15
	wCooperation = 0.20
	wCompliance  = 0.20
	wRiskSafety  = 0.15
	wCompetence  = 0.15
)

// Score computes the deterministic Trust Scoring profile for the given
// performance metrics, optionally informed by History. now is supplied by
// the caller (spec.md §1: the clock is a host collaborator) so the function
// stays pure and testable.
func Score(m Performance, h *History, now time.Time) Profile {
	dims := computeDimensions(m, h)
	composite := round4(
		wReliability*dims.Reliability +
			wEfficiency*dims.Efficiency +
			wCooperation*dims.Cooperation +
			wCompliance*dims.Compliance +
			wRiskSafety*dims.RiskSafety +
			wCompetence*dims.Competence,
	)
	ctx := Contexts{
		Financial:     round4(0.6*dims.Efficiency + 0.3*dims.RiskSafety + 0.1*dims.Compliance),
		Collaborative: round4(0.7*dims.Cooperation + 0.2*dims.Reliability + 0.1*dims.Competence),
		Compliance:    round4(0.7*dims.Compliance + 0.2*dims.RiskSafety + 0.1*dims.Reliability),
		Technical:     round4(0.6*dims.Competence + 0.3*dims.Efficiency + 0.1*dims.Reliability),
		Security:      round4(0.5*dims.Compliance + 0.4*dims.RiskSafety + 0.1*dims.Reliability),
	}
	dataPoints := 0
	if h != nil {
		dataPoints = h.DataPoints
	}
	return Profile{
		Composite:  composite,
		Dimensions: dims,
		Contexts:   ctx,
		Timestamp:  now.UTC().Format(time.RFC3339),
		Metadata:   Metadata{DataPoints: dataPoints, EngineVersion: EngineVersion},
	}
}

func computeDimensions(m Performance, h *History) Dimensions {
	consistency := m.Consistency
	if !m.HasField(FieldConsistency) {
		consistency = m.Reliability
	}
	infoSharing := m.InformationSharing
	if !m.HasField(FieldInformationSharing) {
		infoSharing = m.CooperationScore
	}

	reliability := Clamp01(0.6*m.Uptime + 0.4*consistency)
	efficiency := Clamp01(0.3*Clamp01(m.ROI/100) + 0.7*m.BudgetEfficiency)
	cooperation := Clamp01(0.7*m.CooperationScore + 0.3*infoSharing)
	compliance := Clamp01(0.8*maxFloat(0, 1-0.2*float64(m.PolicyViolations)) + 0.2*m.ComplianceHistory)

	riskTrendFactor := 1.0
	if h != nil && h.PriorRiskExposure != nil && m.RiskExposure > *h.PriorRiskExposure {
		riskTrendFactor = 0.9
	}
	riskSafety := Clamp01((1 - m.RiskExposure) * riskTrendFactor)

	competence := Clamp01(0.8*m.TaskSuccessRate + 0.2*m.TaskComplexityScore)

	return Dimensions{
		Reliability: round4(reliability),
		Efficiency:  round4(efficiency),
		Cooperation: round4(cooperation),
		Compliance:  round4(compliance),
		RiskSafety:  round4(riskSafety),
		Competence:  round4(competence),
	}
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
