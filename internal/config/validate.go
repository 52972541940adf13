package config

import "fmt"

// Validate rejects structurally invalid configuration values before they
// are wired into the pure scoring/evolution/tiering/validator functions,
// mirroring the teacher's ValidateConfig (config/validate.go).
func Validate(cfg *SubstrateConfig) error {
	if cfg == nil {
		return fmt.Errorf("config: nil configuration")
	}
	if cfg.Evolution.DecayRateDaily < 0 || cfg.Evolution.DecayRateDaily > 1 {
		return fmt.Errorf("evolution: decayRateDaily out of [0,1]")
	}
	if cfg.Evolution.MinMetricFloor < 0 || cfg.Evolution.MinMetricFloor > 1 {
		return fmt.Errorf("evolution: minMetricFloor out of [0,1]")
	}
	if cfg.Evolution.RecencyWeight < 0 || cfg.Evolution.RecencyWeight > 1 {
		return fmt.Errorf("evolution: recencyWeight out of [0,1]")
	}
	if cfg.Evolution.ConsistencyThreshold < 0 || cfg.Evolution.ConsistencyThreshold > 1 {
		return fmt.Errorf("evolution: consistencyThreshold out of [0,1]")
	}

	if len(cfg.Governance.Tiers) == 0 {
		return fmt.Errorf("governance: empty tier table")
	}
	for i := 1; i < len(cfg.Governance.Tiers); i++ {
		if cfg.Governance.Tiers[i].MinScore > cfg.Governance.Tiers[i-1].MinScore {
			return fmt.Errorf("governance: tier table must be ordered by non-increasing minScore")
		}
	}

	if len(cfg.Validator.Levels) == 0 {
		return fmt.Errorf("validator: empty strictness table")
	}
	for _, level := range cfg.Validator.Levels {
		if level.Name == "" {
			return fmt.Errorf("validator: strictness level missing name")
		}
		if level.RiskTolerance < 0 || level.RiskTolerance > 1 {
			return fmt.Errorf("validator: %s riskTolerance out of [0,1]", level.Name)
		}
		if level.SafetyMargin <= 0 {
			return fmt.Errorf("validator: %s safetyMargin must be positive", level.Name)
		}
	}

	if cfg.Registry.StorePath == "" {
		return fmt.Errorf("registry: empty storePath")
	}
	if cfg.Ledger.StorePath == "" {
		return fmt.Errorf("ledger: empty storePath")
	}
	if cfg.Graph.HiddenSynergyTopK < 0 {
		return fmt.Errorf("graph: hiddenSynergyTopK must be non-negative")
	}
	return nil
}
