// Package config implements the substrate's layered TOML configuration
// (C10), following the teacher's config.Load create-default-on-first-run
// pattern (config/config.go) so the substrate is usable with zero manual
// setup, and the teacher's config/validate.go ValidateConfig shape for
// structural validation before the values are wired into the pure scoring,
// evolution, tiering, and validator functions.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/agentrust/substrate/internal/governance"
	"github.com/agentrust/substrate/internal/scoring"
)

// EvolutionConfig mirrors scoring.EvolutionConfig as a TOML-tagged section.
type EvolutionConfig struct {
	DecayRateDaily       float64 `toml:"DecayRateDaily"`
	DecayGracePeriodHours float64 `toml:"DecayGracePeriodHours"`
	MinMetricFloor       float64 `toml:"MinMetricFloor"`
	RecencyWeight        float64 `toml:"RecencyWeight"`
	RecoveryAcceleration float64 `toml:"RecoveryAcceleration"`
	ImpactVolatility     float64 `toml:"ImpactVolatility"`
	ConsistencyThreshold float64 `toml:"ConsistencyThreshold"`
}

// GovernanceConfig holds the tier table in its flattened TOML-friendly form.
type GovernanceConfig struct {
	Tiers []TierConfig `toml:"Tiers"`
}

// TierConfig is one row of the tier table (governance.TierRow flattened for
// TOML, since TierRow's nested structs and enum types don't round-trip
// through toml tags as cleanly as a flat row).
type TierConfig struct {
	Tier               string   `toml:"Tier"`
	MinScore           float64  `toml:"MinScore"`
	Permissions        []string `toml:"Permissions"`
	BudgetCeiling      float64  `toml:"BudgetCeiling"`
	BudgetDaily        float64  `toml:"BudgetDaily"`
	BudgetSingleTx     float64  `toml:"BudgetSingleTx"`
	DelegationMax      int      `toml:"DelegationMax"`
	DelegationScope    string   `toml:"DelegationScope"`
	AllowLowerTrust    bool     `toml:"AllowLowerTrust"`
	AutoApproveAt      float64  `toml:"AutoApproveAt"`
	Strictness         string   `toml:"Strictness"`
}

// ValidatorConfig holds the strictness table in its TOML-friendly form.
type ValidatorConfig struct {
	Levels []StrictnessConfig `toml:"Levels"`
}

// StrictnessConfig is one row of the strictness table.
type StrictnessConfig struct {
	Name              string  `toml:"Name"`
	RiskTolerance     float64 `toml:"RiskTolerance"`
	SafetyMargin      float64 `toml:"SafetyMargin"`
	PolicyIntensity   float64 `toml:"PolicyIntensity"`
	ConsensusRequired bool    `toml:"ConsensusRequired"`
	MinConfirmations  int     `toml:"MinConfirmations"`
	HumanApprovalReq  bool    `toml:"HumanApprovalReq"`
}

// RegistryConfig controls the identity registry's persistence.
type RegistryConfig struct {
	StorePath       string `toml:"StorePath"`
	ReplayCachePath string `toml:"ReplayCachePath"`
}

// LedgerConfig controls the activity ledger's persistence.
type LedgerConfig struct {
	StorePath string `toml:"StorePath"`
	Autosave  bool   `toml:"Autosave"`
}

// GraphConfig bounds the trust graph's analytics output.
type GraphConfig struct {
	HiddenSynergyTopK int `toml:"HiddenSynergyTopK"`
}

// ObservabilityConfig controls logging and metrics.
type ObservabilityConfig struct {
	LogRotatePath string `toml:"LogRotatePath"`
	LogMaxSizeMB  int    `toml:"LogMaxSizeMB"`
	LogMaxBackups int    `toml:"LogMaxBackups"`
	LogMaxAgeDays int    `toml:"LogMaxAgeDays"`
}

// SubstrateConfig is the top-level, TOML-decodable configuration for a
// substrate instance.
type SubstrateConfig struct {
	Evolution     EvolutionConfig     `toml:"Evolution"`
	Governance    GovernanceConfig    `toml:"Governance"`
	Validator     ValidatorConfig     `toml:"Validator"`
	Registry      RegistryConfig      `toml:"Registry"`
	Ledger        LedgerConfig        `toml:"Ledger"`
	Graph         GraphConfig         `toml:"Graph"`
	Observability ObservabilityConfig `toml:"Observability"`
}

// Load decodes the TOML configuration at path. If path does not exist, a
// default configuration is written there and returned, matching the
// teacher's config.Load create-default-on-first-run behavior.
func Load(path string) (*SubstrateConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := &SubstrateConfig{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}

func createDefault(path string) (*SubstrateConfig, error) {
	cfg := Default()
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("config: create %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, fmt.Errorf("config: encode %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the normative defaults from spec.md §4.4/§4.5/§4.6,
// wired to the same values as scoring.DefaultEvolutionConfig,
// governance.DefaultTierTable, and governance.DefaultStrictnessTable.
func Default() *SubstrateConfig {
	evo := scoring.DefaultEvolutionConfig()
	tiers := governance.DefaultTierTable()
	strictness := governance.DefaultStrictnessTable()

	tierRows := make([]TierConfig, 0, len(tiers))
	for _, row := range tiers {
		perms := make([]string, 0, len(row.Permissions))
		for _, p := range row.Permissions {
			perms = append(perms, string(p))
		}
		tierRows = append(tierRows, TierConfig{
			Tier:            string(row.Tier),
			MinScore:        row.MinScore,
			Permissions:     perms,
			BudgetCeiling:   row.Budget.Ceiling,
			BudgetDaily:     row.Budget.Daily,
			BudgetSingleTx:  row.Budget.SingleTransaction,
			DelegationMax:   row.Delegation.Max,
			DelegationScope: string(row.Delegation.Scope),
			AllowLowerTrust: row.Delegation.AllowLowerTrust,
			AutoApproveAt:   row.Delegation.AutoApproveAt,
			Strictness:      row.Strictness,
		})
	}

	levelNames := []string{"LAX", "STANDARD", "STRICT", "HIGH_FRICTION", "MANDATORY_HUMAN_IN_THE_LOOP"}
	levels := make([]StrictnessConfig, 0, len(levelNames))
	for _, name := range levelNames {
		row := strictness[name]
		levels = append(levels, StrictnessConfig{
			Name:              row.Name,
			RiskTolerance:     row.RiskTolerance,
			SafetyMargin:      row.SafetyMargin,
			PolicyIntensity:   row.PolicyIntensity,
			ConsensusRequired: row.ConsensusRequired,
			MinConfirmations:  row.MinConfirmations,
			HumanApprovalReq:  row.HumanApprovalReq,
		})
	}

	return &SubstrateConfig{
		Evolution: EvolutionConfig{
			DecayRateDaily:        evo.DecayRateDaily,
			DecayGracePeriodHours: evo.DecayGracePeriod.Hours(),
			MinMetricFloor:        evo.MinMetricFloor,
			RecencyWeight:         evo.RecencyWeight,
			RecoveryAcceleration:  evo.RecoveryAcceleration,
			ImpactVolatility:      evo.ImpactVolatility,
			ConsistencyThreshold:  evo.ConsistencyThreshold,
		},
		Governance: GovernanceConfig{Tiers: tierRows},
		Validator:  ValidatorConfig{Levels: levels},
		Registry: RegistryConfig{
			StorePath:       "./substrate-data/identities.json",
			ReplayCachePath: "",
		},
		Ledger: LedgerConfig{
			StorePath: "./substrate-data/ledger.json",
			Autosave:  true,
		},
		Graph: GraphConfig{HiddenSynergyTopK: 5},
		Observability: ObservabilityConfig{
			LogRotatePath: "",
			LogMaxSizeMB:  100,
			LogMaxBackups: 5,
			LogMaxAgeDays: 28,
		},
	}
}
