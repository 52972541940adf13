package governance

import "fmt"

// StrictnessParams parameterizes the Pre-Execution Validator for one named
// strictness level (spec.md §4.6).
type StrictnessParams struct {
	Name               string
	RiskTolerance      float64
	SafetyMargin       float64
	PolicyIntensity    float64
	ConsensusRequired  bool
	MinConfirmations   int
	HumanApprovalReq   bool
}

// StrictnessTable maps a strictness name to its parameters.
type StrictnessTable map[string]StrictnessParams

// DefaultStrictnessTable returns the five-row table from spec.md §4.6.
func DefaultStrictnessTable() StrictnessTable {
	rows := []StrictnessParams{
		{Name: "LAX", RiskTolerance: 0.9, SafetyMargin: 1.05, PolicyIntensity: 0.1, ConsensusRequired: false, MinConfirmations: 0, HumanApprovalReq: false},
		{Name: "STANDARD", RiskTolerance: 0.6, SafetyMargin: 1.00, PolicyIntensity: 0.5, ConsensusRequired: false, MinConfirmations: 0, HumanApprovalReq: false},
		{Name: "STRICT", RiskTolerance: 0.3, SafetyMargin: 0.85, PolicyIntensity: 0.8, ConsensusRequired: true, MinConfirmations: 1, HumanApprovalReq: false},
		{Name: "HIGH_FRICTION", RiskTolerance: 0.1, SafetyMargin: 0.70, PolicyIntensity: 1.0, ConsensusRequired: true, MinConfirmations: 3, HumanApprovalReq: false},
		{Name: "MANDATORY_HUMAN_IN_THE_LOOP", RiskTolerance: 0.0, SafetyMargin: 0.50, PolicyIntensity: 1.0, ConsensusRequired: true, MinConfirmations: 5, HumanApprovalReq: true},
	}
	table := make(StrictnessTable, len(rows))
	for _, r := range rows {
		table[r.Name] = r
	}
	return table
}

// rank orders strictness levels from least to most strict so
// ValidatorMonotone-style property tests can compare two levels.
var rank = map[string]int{
	"LAX":                         0,
	"STANDARD":                    1,
	"STRICT":                      2,
	"HIGH_FRICTION":                3,
	"MANDATORY_HUMAN_IN_THE_LOOP": 4,
}

// Stricter reports whether a is strictly stricter than b.
func Stricter(a, b string) bool {
	ra, aok := rank[a]
	rb, bok := rank[b]
	return aok && bok && ra > rb
}

const (
	tagHighPrivilege  = "HIGH_PRIVILEGE"
	tagInfrastructure = "INFRASTRUCTURE"
	tagSensitiveData  = "SENSITIVE_DATA"
)

// Proposal is the pre-execution admission request (spec.md §4.6).
type Proposal struct {
	Type           string
	ImpactScore    float64
	RiskScore      float64
	Cost           *float64
	PolicyTags     []string
	Confirmations  int
	HumanApproved  bool
}

// Result is the validator's admit/reject decision.
type Result struct {
	Allowed         bool     `json:"allowed"`
	StrictnessLevel string   `json:"strictnessLevel"`
	ValidationResults map[string]bool `json:"validationResults"`
	Reason          string   `json:"reason,omitempty"`
}

// Validate gates a proposal against the tier's strictness parameters, the
// tier's single-transaction budget limit, and the proposer's trust score
// (spec.md §4.6). context is reserved for future context-specific tiering
// (spec.md §9 Open Questions) and is accepted but unused by this function's
// body, matching the normative behavior.
func Validate(proposal Proposal, strictness StrictnessParams, singleTransactionLimit float64, trustScore float64, context string) Result {
	checks := map[string]bool{}
	var reasons []string

	riskOK := proposal.RiskScore <= strictness.RiskTolerance
	checks["risk"] = riskOK
	if !riskOK {
		reasons = append(reasons, fmt.Sprintf("risk score %.2f exceeds tolerance %.2f", proposal.RiskScore, strictness.RiskTolerance))
	}

	economicsOK := true
	if proposal.Cost != nil {
		limit := singleTransactionLimit * strictness.SafetyMargin
		economicsOK = *proposal.Cost <= limit
		if !economicsOK {
			reasons = append(reasons, fmt.Sprintf("cost %.2f exceeds limit %.2f", *proposal.Cost, limit))
		}
	}
	checks["economics"] = economicsOK

	policyOK := true
	if failure := policyFailure(proposal, strictness); failure != "" {
		policyOK = false
		reasons = append(reasons, failure)
	}
	checks["policies"] = policyOK

	consensusOK, consensusReason := consensusCheck(proposal, strictness, trustScore)
	checks["consensus"] = consensusOK
	if !consensusOK {
		reasons = append(reasons, consensusReason)
	}

	allowed := riskOK && economicsOK && policyOK && consensusOK
	result := Result{
		Allowed:           allowed,
		StrictnessLevel:   strictness.Name,
		ValidationResults: checks,
	}
	if len(reasons) > 0 {
		result.Reason = joinReasons(reasons)
	}
	return result
}

func policyFailure(p Proposal, s StrictnessParams) string {
	hasTag := func(tag string) bool {
		for _, t := range p.PolicyTags {
			if t == tag {
				return true
			}
		}
		return false
	}
	if s.PolicyIntensity > 0.4 && hasTag(tagHighPrivilege) && p.ImpactScore > 0.7 {
		return fmt.Sprintf("high-privilege proposal impact %.2f exceeds 0.7", p.ImpactScore)
	}
	if s.PolicyIntensity > 0.7 && hasTag(tagInfrastructure) {
		return "infrastructure-tagged proposals are disallowed at this strictness"
	}
	if s.PolicyIntensity > 0.7 && len(p.PolicyTags) > 3 {
		return fmt.Sprintf("too many policy tags (%d) for this strictness", len(p.PolicyTags))
	}
	if s.PolicyIntensity > 0.9 && hasTag(tagSensitiveData) {
		return "sensitive-data proposals are disallowed at this strictness"
	}
	return ""
}

func consensusCheck(p Proposal, s StrictnessParams, trustScore float64) (bool, string) {
	required := s.ConsensusRequired || p.ImpactScore > 0.8*trustScore
	if !required {
		return true, ""
	}
	needed := s.MinConfirmations
	if p.ImpactScore > 0.7 && needed < 2 {
		needed = 2
	}
	if p.Confirmations < needed {
		return false, fmt.Sprintf("consensus requires %d confirmations, got %d", needed, p.Confirmations)
	}
	if s.HumanApprovalReq && !p.HumanApproved {
		return false, "strictness mandates human approval"
	}
	return true, ""
}

func joinReasons(reasons []string) string {
	out := reasons[0]
	for _, r := range reasons[1:] {
		out += "; " + r
	}
	return out
}
