// Package scoring implements the deterministic Trust Scoring function (C3)
// and the Reputation Evolution function (C4). Both are pure, side-effect
// free functions over value types — no storage, no clocks beyond what the
// caller supplies.
package scoring

// PnL mirrors the `pnl` performance metric struct from spec.md §3. NetProfit
// is always derived, never supplied independently, preserving the invariant
// `netProfit = totalRevenue - totalExpenses`.
type PnL struct {
	TotalRevenue  float64 `json:"totalRevenue"`
	TotalExpenses float64 `json:"totalExpenses"`
	NetProfit     float64 `json:"netProfit"`
}

// WithNetProfit returns a copy of p with NetProfit recomputed from the
// revenue/expense invariant.
func (p PnL) WithNetProfit() PnL {
	p.NetProfit = p.TotalRevenue - p.TotalExpenses
	return p
}

// Performance is the recognized performance metric set from spec.md §3.
// Zero values are meaningful (e.g. PolicyViolations=0 is a real, intentional
// state) so every field is a plain float/int rather than a pointer; callers
// that need "absent" semantics (e.g. Consistency defaulting to Reliability)
// use the HasField accessor below, which reads a separate presence set
// rather than sentinel values.
type Performance struct {
	Reliability         float64 `json:"reliability"`
	Uptime              float64 `json:"uptime"`
	Consistency         float64 `json:"consistency"`
	TaskSuccessRate     float64 `json:"taskSuccessRate"`
	TaskComplexityScore float64 `json:"taskComplexityScore"`
	BudgetEfficiency    float64 `json:"budgetEfficiency"`
	CooperationScore    float64 `json:"cooperationScore"`
	InformationSharing  float64 `json:"informationSharingScore"`
	ComplianceHistory   float64 `json:"complianceHistory"`
	RiskExposure        float64 `json:"riskExposure"`
	PolicyViolations    int     `json:"policyViolations"`
	ROI                 float64 `json:"roi"`
	PnL                 PnL     `json:"pnl"`
	LastUpdated         string  `json:"lastUpdated,omitempty"`

	// present tracks which optional fields were explicitly supplied, so the
	// scoring function can apply the spec's documented defaults (e.g.
	// Consistency defaults to Reliability, InformationSharing defaults to
	// CooperationScore) instead of silently treating an absent override as
	// zero.
	present map[string]bool
}

// Field name constants used with HasField and recorded in the presence set
// by the With* options, Merge, and Evolve.
const (
	FieldConsistency        = "consistency"
	FieldInformationSharing = "informationSharing"
	FieldRiskExposureHist   = "riskExposureHistory"
)

// HasField reports whether the named optional field was explicitly supplied
// rather than defaulted.
func (p Performance) HasField(name string) bool {
	if p.present == nil {
		return false
	}
	return p.present[name]
}

// Option mutates a Performance value under construction and records which
// optional fields were explicitly set.
type Option func(*Performance)

// WithConsistency explicitly sets Consistency (otherwise it defaults to
// Reliability at scoring time, per spec.md §4.3).
func WithConsistency(v float64) Option {
	return func(p *Performance) {
		p.Consistency = v
		p.markPresent(FieldConsistency)
	}
}

// WithInformationSharing explicitly sets InformationSharingScore (otherwise
// it defaults to CooperationScore at scoring time).
func WithInformationSharing(v float64) Option {
	return func(p *Performance) {
		p.InformationSharing = v
		p.markPresent(FieldInformationSharing)
	}
}

// markPresent records field in a fresh copy of the presence set, so a
// Performance copied by value never shares a mutated map with its source.
func (p *Performance) markPresent(field string) {
	next := make(map[string]bool, len(p.present)+1)
	for k, v := range p.present {
		next[k] = v
	}
	next[field] = true
	p.present = next
}

// DefaultPerformance returns the identity-construction defaults from
// spec.md §4.2: reliability/uptime/consistency/taskSuccessRate/
// budgetEfficiency/cooperationScore/complianceHistory=1.0, roi=0,
// riskExposure=0.05, taskComplexityScore=0, policyViolations=0, pnl zeroed.
func DefaultPerformance() Performance {
	return Performance{
		Reliability:         1.0,
		Uptime:              1.0,
		Consistency:         1.0,
		TaskSuccessRate:     1.0,
		TaskComplexityScore: 0,
		BudgetEfficiency:    1.0,
		CooperationScore:    1.0,
		ComplianceHistory:   1.0,
		RiskExposure:        0.05,
		PolicyViolations:    0,
		ROI:                 0,
		PnL:                 PnL{},
		present:             map[string]bool{FieldConsistency: true},
	}
}

// Clamp01 clamps v to the closed interval [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// PerformanceDelta is a sparse set of metric overrides applied over an
// existing Performance snapshot by Merge (spec.md §4.2 "Merge `updates`
// over current `performance`"). A nil field leaves the current value
// untouched; this mirrors partial-update semantics without requiring every
// field in Performance itself to be a pointer.
type PerformanceDelta struct {
	Reliability         *float64
	Uptime              *float64
	Consistency         *float64
	TaskSuccessRate     *float64
	TaskComplexityScore *float64
	BudgetEfficiency    *float64
	CooperationScore    *float64
	InformationSharing  *float64
	ComplianceHistory   *float64
	RiskExposure        *float64
	PolicyViolations    *int
	ROI                 *float64
	Revenue             *float64
	Expenses            *float64
}

// Merge applies delta over p, returning a new Performance with the
// invariant `pnl.netProfit = totalRevenue - totalExpenses` recomputed.
func (p Performance) Merge(delta PerformanceDelta) Performance {
	out := p
	if delta.Reliability != nil {
		out.Reliability = *delta.Reliability
	}
	if delta.Uptime != nil {
		out.Uptime = *delta.Uptime
	}
	if delta.Consistency != nil {
		out.Consistency = *delta.Consistency
		out.markPresent(FieldConsistency)
	}
	if delta.TaskSuccessRate != nil {
		out.TaskSuccessRate = *delta.TaskSuccessRate
	}
	if delta.TaskComplexityScore != nil {
		out.TaskComplexityScore = *delta.TaskComplexityScore
	}
	if delta.BudgetEfficiency != nil {
		out.BudgetEfficiency = *delta.BudgetEfficiency
	}
	if delta.CooperationScore != nil {
		out.CooperationScore = *delta.CooperationScore
	}
	if delta.InformationSharing != nil {
		out.InformationSharing = *delta.InformationSharing
		out.markPresent(FieldInformationSharing)
	}
	if delta.ComplianceHistory != nil {
		out.ComplianceHistory = *delta.ComplianceHistory
	}
	if delta.RiskExposure != nil {
		out.RiskExposure = *delta.RiskExposure
	}
	if delta.PolicyViolations != nil {
		out.PolicyViolations = *delta.PolicyViolations
	}
	if delta.ROI != nil {
		out.ROI = *delta.ROI
	}
	if delta.Revenue != nil {
		out.PnL.TotalRevenue = *delta.Revenue
	}
	if delta.Expenses != nil {
		out.PnL.TotalExpenses = *delta.Expenses
	}
	out.PnL = out.PnL.WithNetProfit()
	return out
}

func round4(v float64) float64 {
	const scale = 10000.0
	if v >= 0 {
		return float64(int64(v*scale+0.5)) / scale
	}
	return float64(int64(v*scale-0.5)) / scale
}
