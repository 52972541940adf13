package scoring

import (
	"math"
	"time"
)

// EvolutionConfig holds the tunable constants from spec.md §4.4. Defaults
// match the spec exactly; C10 configuration loads this struct from TOML so
// an operator can retune decay/recovery behavior without a rebuild, while
// the Evolve function itself stays a pure, explicit-parameter computation.
type EvolutionConfig struct {
	DecayRateDaily       float64
	DecayGracePeriod     time.Duration
	MinMetricFloor       float64
	RecencyWeight        float64
	RecoveryAcceleration float64
	ImpactVolatility     float64
	ConsistencyThreshold float64
}

// DefaultEvolutionConfig returns the spec.md §4.4 constants.
func DefaultEvolutionConfig() EvolutionConfig {
	return EvolutionConfig{
		DecayRateDaily:       0.015,
		DecayGracePeriod:     18 * time.Hour,
		MinMetricFloor:       0.15,
		RecencyWeight:        0.65,
		RecoveryAcceleration: 0.1,
		ImpactVolatility:     1.2,
		ConsistencyThreshold: 0.85,
	}
}

// Action is one recent agent action feeding reputation evolution. Cooperation
// and Quality are optional overrides; when nil they default per spec.md
// §4.4 (cooperation: 0.9 success / 0.5 failure; quality: 0.95 success / 0.2
// failure).
type Action struct {
	Success     bool
	Cooperation *float64
	Quality     *float64
}

func (a Action) cooperation() float64 {
	if a.Cooperation != nil {
		return *a.Cooperation
	}
	if a.Success {
		return 0.9
	}
	return 0.5
}

func (a Action) quality() float64 {
	if a.Quality != nil {
		return *a.Quality
	}
	if a.Success {
		return 0.95
	}
	return 0.2
}

// Evolve computes the new performance snapshot from the current metrics,
// the elapsed time since lastUpdated, and any recent actions (spec.md
// §4.4). now and lastUpdated are supplied by the caller; the clock itself
// is a host collaborator (spec.md §1).
func Evolve(m Performance, actions []Action, lastUpdated, now time.Time, cfg EvolutionConfig) Performance {
	out := m

	elapsed := now.Sub(lastUpdated)
	if elapsed > cfg.DecayGracePeriod {
		days := elapsed.Hours() / 24
		decay := math.Pow(1-cfg.DecayRateDaily, days)
		out.Reliability = floorAt(out.Reliability*decay, cfg.MinMetricFloor)
		out.CooperationScore = floorAt(out.CooperationScore*decay, cfg.MinMetricFloor)
		consistency := m.Consistency
		if !m.HasField(FieldConsistency) {
			consistency = m.Reliability
		}
		out.Consistency = floorAt(consistency*decay, cfg.MinMetricFloor)
		out.markPresent(FieldConsistency)
		out.TaskSuccessRate = floorAt(out.TaskSuccessRate*decay, cfg.MinMetricFloor)
		out.ComplianceHistory = floorAt(out.ComplianceHistory*decay, cfg.MinMetricFloor)
		out.RiskExposure = math.Min(0.4, out.RiskExposure+0.005*days)
	}

	if len(actions) > 0 {
		n := len(actions)
		successes := 0
		var coopSum, qualitySum float64
		for _, a := range actions {
			if a.Success {
				successes++
			}
			coopSum += a.cooperation()
			qualitySum += a.quality()
		}
		successRate := float64(successes) / float64(n)
		reliabilityFromActions := math.Min(1, float64(n)/3)
		cooperation := coopSum / float64(n)
		avgQuality := qualitySum / float64(n)

		out.TaskSuccessRate = blend(out.TaskSuccessRate, successRate, cfg)
		out.Reliability = blend(out.Reliability, reliabilityFromActions, cfg)
		out.CooperationScore = blend(out.CooperationScore, cooperation, cfg)

		consistency := out.Consistency
		if !out.HasField(FieldConsistency) {
			consistency = out.Reliability
		}
		switch {
		case avgQuality >= cfg.ConsistencyThreshold:
			consistency = math.Min(1.0, consistency+cfg.RecoveryAcceleration*(avgQuality-0.5))
			out.ComplianceHistory = math.Min(1.0, out.ComplianceHistory+0.02)
			out.RiskExposure = math.Max(0.01, out.RiskExposure-0.01)
		case avgQuality < 0.4:
			consistency = math.Max(0.1, consistency-0.1)
		}
		out.Consistency = consistency
		out.markPresent(FieldConsistency)
	}

	out.LastUpdated = now.UTC().Format(time.RFC3339)
	return out
}

// blend applies the asymmetric recency weighting from spec.md §4.4: a
// decline (new < old) is weighted more heavily than an improvement, so
// reputation falls faster than it recovers.
func blend(old, new float64, cfg EvolutionConfig) float64 {
	weight := cfg.RecencyWeight
	if new < old {
		weight = math.Min(0.95, cfg.RecencyWeight*cfg.ImpactVolatility)
	}
	return old*(1-weight) + new*weight
}

func floorAt(v, floor float64) float64 {
	if v < floor {
		return floor
	}
	return v
}
