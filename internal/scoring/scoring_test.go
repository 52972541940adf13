package scoring

import (
	"math"
	"testing"
	"time"
)

func eliteMetrics() Performance {
	return Performance{
		Uptime:            1,
		CooperationScore:  1,
		ComplianceHistory: 1,
		TaskSuccessRate:   1,
		BudgetEfficiency:  1,
		ROI:               100,
		RiskExposure:      0.01,
		present:           map[string]bool{FieldConsistency: true, FieldInformationSharing: true},
		Consistency:       1,
		InformationSharing: 1,
		TaskComplexityScore: 1,
	}
}

func TestScoreDimensionsAndCompositeWithinBounds(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	profile := Score(eliteMetrics(), nil, now)

	dims := []float64{
		profile.Dimensions.Reliability,
		profile.Dimensions.Efficiency,
		profile.Dimensions.Cooperation,
		profile.Dimensions.Compliance,
		profile.Dimensions.RiskSafety,
		profile.Dimensions.Competence,
	}
	for _, d := range dims {
		if d < 0 || d > 1 {
			t.Fatalf("dimension out of [0,1]: %v", d)
		}
	}
	if profile.Composite < 0 || profile.Composite > 1 {
		t.Fatalf("composite out of [0,1]: %v", profile.Composite)
	}

	want := 0.15*profile.Dimensions.Reliability +
		0.15*profile.Dimensions.Efficiency +
		0.20*profile.Dimensions.Cooperation +
		0.20*profile.Dimensions.Compliance +
		0.15*profile.Dimensions.RiskSafety +
		0.15*profile.Dimensions.Competence
	if math.Abs(round4(want)-profile.Composite) > 1e-9 {
		t.Fatalf("composite %v does not match weighted sum %v", profile.Composite, round4(want))
	}
}

func TestScoreEliteComposite(t *testing.T) {
	now := time.Now()
	profile := Score(eliteMetrics(), nil, now)
	if profile.Composite < 0.90 {
		t.Fatalf("expected elite-tier composite >= 0.90, got %v", profile.Composite)
	}
}

func TestScoreDeterministic(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := eliteMetrics()
	p1 := Score(m, nil, now)
	p2 := Score(m, nil, now)
	if p1 != p2 {
		t.Fatalf("expected identical scoring output for identical input, got %+v vs %+v", p1, p2)
	}
}

func TestScoreRiskSafetyPenalizesDeterioratingTrend(t *testing.T) {
	now := time.Now()
	m := eliteMetrics()
	m.RiskExposure = 0.2
	prior := 0.1
	withHistory := Score(m, &History{PriorRiskExposure: &prior}, now)
	withoutHistory := Score(m, nil, now)
	if withHistory.Dimensions.RiskSafety >= withoutHistory.Dimensions.RiskSafety {
		t.Fatalf("expected deteriorating risk trend to reduce riskSafety: %v vs %v",
			withHistory.Dimensions.RiskSafety, withoutHistory.Dimensions.RiskSafety)
	}
}

func TestScoreDowngradedComposite(t *testing.T) {
	now := time.Now()
	m := eliteMetrics()
	m.PolicyViolations = 4
	m.ComplianceHistory = 0.3
	m.RiskExposure = 0.7
	profile := Score(m, nil, now)
	if profile.Composite >= 0.70 {
		t.Fatalf("expected downgraded composite < 0.70, got %v", profile.Composite)
	}
}
