// Package governance implements the Adaptive Governance tiering (C5) and the
// Pre-Execution Validator (C6), both pure functions over a composite or
// context-projected trust score plus an explicit, overridable parameter
// table (C10 configuration wires the defaults below through TOML).
package governance

import "time"

// Tier is the discrete authority level a composite or context score maps to.
// The string-typed enum mirrors the teacher's ProposalStatus enum
// (native/governance/types.go).
type Tier string

const (
	TierEliteAuthority        Tier = "ELITE_AUTHORITY"
	TierHighTrust             Tier = "HIGH_TRUST"
	TierStandardOperational   Tier = "STANDARD_OPERATIONAL"
	TierRestricted            Tier = "RESTRICTED"
	TierProbationary          Tier = "PROBATIONARY"
)

// Permission enumerates the discrete capabilities a tier may grant.
type Permission string

const (
	PermRead    Permission = "R"
	PermWrite   Permission = "W"
	PermExecute Permission = "X"
	PermCommit  Permission = "COMMIT"
	PermGovern  Permission = "GOVERN"
	PermAdmin   Permission = "ADMIN"
	PermSudo    Permission = "SUDO"
)

// DelegationScope bounds how far a tier's holder may delegate authority.
type DelegationScope string

const (
	ScopeUnrestricted   DelegationScope = "UNRESTRICTED"
	ScopeCrossDomain    DelegationScope = "CROSS_DOMAIN"
	ScopeDomainSpecific DelegationScope = "DOMAIN_SPECIFIC"
	ScopeSupervisedOnly DelegationScope = "SUPERVISED_ONLY"
	ScopeNone           DelegationScope = "NONE"
)

// BudgetLimits caps spend for a tier (spec.md §4.5).
type BudgetLimits struct {
	Ceiling          float64 `json:"ceiling"`
	Daily            float64 `json:"daily"`
	SingleTransaction float64 `json:"singleTransaction"`
}

// DelegationLimits bounds how a tier's holder may delegate authority.
type DelegationLimits struct {
	Max               int             `json:"max"`
	Scope             DelegationScope `json:"scope"`
	AllowLowerTrust   bool            `json:"allowLowerTrust"`
	AutoApproveAt     float64         `json:"autoApproveAt"`
}

// TierRow is one row of the governance tier table: the minimum composite
// (or context) score required to hold the tier, plus its grants.
type TierRow struct {
	Tier        Tier
	MinScore    float64
	Permissions []Permission
	Budget      BudgetLimits
	Delegation  DelegationLimits
	Strictness  string
}

// TierTable is the ordered (highest-first) set of rows scanned by
// GetGovernanceProfile. Ordering matters: the first row whose MinScore the
// score satisfies wins.
type TierTable []TierRow

// DefaultTierTable returns the five-row table from spec.md §4.5.
func DefaultTierTable() TierTable {
	return TierTable{
		{
			Tier:     TierEliteAuthority,
			MinScore: 0.90,
			Permissions: []Permission{PermRead, PermWrite, PermExecute, PermCommit, PermGovern, PermAdmin, PermSudo},
			Budget:     BudgetLimits{Ceiling: 1_000_000, Daily: 50_000, SingleTransaction: 10_000},
			Delegation: DelegationLimits{Max: 50, Scope: ScopeUnrestricted, AllowLowerTrust: true, AutoApproveAt: 0.85},
			Strictness: "LAX",
		},
		{
			Tier:     TierHighTrust,
			MinScore: 0.70,
			Permissions: []Permission{PermRead, PermWrite, PermExecute, PermCommit, PermGovern},
			Budget:     BudgetLimits{Ceiling: 100_000, Daily: 10_000, SingleTransaction: 2_500},
			Delegation: DelegationLimits{Max: 20, Scope: ScopeCrossDomain, AllowLowerTrust: true, AutoApproveAt: 0.90},
			Strictness: "STANDARD",
		},
		{
			Tier:     TierStandardOperational,
			MinScore: 0.40,
			Permissions: []Permission{PermRead, PermWrite, PermExecute},
			Budget:     BudgetLimits{Ceiling: 10_000, Daily: 1_000, SingleTransaction: 500},
			Delegation: DelegationLimits{Max: 5, Scope: ScopeDomainSpecific, AllowLowerTrust: false, AutoApproveAt: 0.95},
			Strictness: "STRICT",
		},
		{
			Tier:     TierRestricted,
			MinScore: 0.20,
			Permissions: []Permission{PermRead, PermExecute},
			Budget:     BudgetLimits{Ceiling: 1_000, Daily: 100, SingleTransaction: 100},
			Delegation: DelegationLimits{Max: 1, Scope: ScopeSupervisedOnly, AllowLowerTrust: false, AutoApproveAt: 1.0},
			Strictness: "HIGH_FRICTION",
		},
		{
			Tier:     TierProbationary,
			MinScore: negativeInfinity,
			Permissions: []Permission{PermRead},
			Budget:     BudgetLimits{},
			Delegation: DelegationLimits{Max: 0, Scope: ScopeNone, AllowLowerTrust: false, AutoApproveAt: 1.0},
			Strictness: "MANDATORY_HUMAN_IN_THE_LOOP",
		},
	}
}

const negativeInfinity = -1e308

// Profile is the deep-copied, timestamped result of applying the tier table
// to a score (spec.md §4.5).
type Profile struct {
	Tier              Tier            `json:"tier"`
	Permissions       []Permission    `json:"permissions"`
	Budget            BudgetLimits    `json:"budget"`
	Delegation        DelegationLimits `json:"delegation"`
	Strictness        string          `json:"strictness"`
	AppliedAt         string          `json:"appliedAt"`
	TrustScoreSnapshot float64        `json:"trustScoreSnapshot"`
	Context           string          `json:"context,omitempty"`
}

// GetGovernanceProfile maps a composite (or, when context is non-empty, a
// context-projected) trust score to a tier via table, returning a
// deep-copied, stamped Profile (spec.md §4.5, §4.6's reserved `context`
// parameter per spec.md §9 Open Questions).
func GetGovernanceProfile(score float64, table TierTable, context string, now time.Time) Profile {
	row := table[len(table)-1]
	for _, candidate := range table {
		if score >= candidate.MinScore {
			row = candidate
			break
		}
	}
	perms := make([]Permission, len(row.Permissions))
	copy(perms, row.Permissions)
	return Profile{
		Tier:               row.Tier,
		Permissions:        perms,
		Budget:             row.Budget,
		Delegation:         row.Delegation,
		Strictness:         row.Strictness,
		AppliedAt:          now.UTC().Format(time.RFC3339),
		TrustScoreSnapshot: score,
		Context:            context,
	}
}

// HasPermission reports whether the profile grants the given permission.
func (p Profile) HasPermission(perm Permission) bool {
	for _, candidate := range p.Permissions {
		if candidate == perm {
			return true
		}
	}
	return false
}
