package graph

import "sort"

// SynergyForecast is the result of forecasting a collaboration between two
// agents (spec.md §4.8).
type SynergyForecast struct {
	AgentA                   string
	AgentB                   string
	HistoricalCount          int
	SuccessRate              float64
	Compatibility            float64
	SynergyProbability       float64
	PredictedEconomicSurplus float64
	Confidence               float64
	Recommendation           string
}

// ForecastSynergy predicts the outcome of pairing a and b (spec.md §4.8).
// Pairs with no prior collaboration history use an optimistic successRate
// of 0.8 rather than the per-node successRate computed from their
// individual collaboration edges. Compatibility does not depend on history:
// it is the average of both agents' cooperation dimension, taking 0.5 for a
// side without a resolved identity.
func (g *Graph) ForecastSynergy(a, b string) SynergyForecast {
	count := g.CollabCount(a, b)
	successRate := g.pairSuccessRate(a, b, count)
	compatibility := g.pairCompatibility(a, b)
	synergyProbability := round4(0.6*successRate + 0.4*compatibility)

	var avgPnlA, avgPnlB float64
	if na, ok := g.Nodes[a]; ok && na.Performance.Count > 0 {
		avgPnlA = na.Performance.PnL / float64(na.Performance.Count)
	}
	if nb, ok := g.Nodes[b]; ok && nb.Performance.Count > 0 {
		avgPnlB = nb.Performance.PnL / float64(nb.Performance.Count)
	}
	boost := 1.0
	switch {
	case count >= 5:
		boost = 1.25
	case count >= 1:
		boost = 1.1
	}
	surplus := round4((avgPnlA + avgPnlB) * boost)

	confidence := 0.4
	if count > 0 {
		confidence = round4(min(0.5+0.1*float64(count), 0.95))
	}

	recommendation := "MONITORED_COOPERATION"
	if successRate*compatibility > 0.6 {
		recommendation = "PROMOTE_COLLABORATION"
	}

	return SynergyForecast{
		AgentA:                   a,
		AgentB:                   b,
		HistoricalCount:          count,
		SuccessRate:              successRate,
		Compatibility:            compatibility,
		SynergyProbability:       synergyProbability,
		PredictedEconomicSurplus: surplus,
		Confidence:               confidence,
		Recommendation:           recommendation,
	}
}

// pairSuccessRate returns the SUCCESS share of historical COLLABORATION
// edges directly between a and b, defaulting to 0.8 when the pair has no
// prior collaboration (spec.md §4.8's normative historical-edge filter:
// "edges between the pair whose type = COLLABORATION").
func (g *Graph) pairSuccessRate(a, b string, count int) float64 {
	if count == 0 {
		return 0.8
	}
	total, success := 0, 0
	for _, e := range g.Edges {
		if e.Type != EdgeCollaboration {
			continue
		}
		if !(e.From == a && e.To == b) && !(e.From == b && e.To == a) {
			continue
		}
		total++
		if e.Outcome == "SUCCESS" {
			success++
		}
	}
	if total == 0 {
		return 0.8
	}
	return round4(float64(success) / float64(total))
}

func (g *Graph) pairCompatibility(a, b string) float64 {
	coopA, hasA := g.cooperationOf(a)
	coopB, hasB := g.cooperationOf(b)
	switch {
	case hasA && hasB:
		return round4((coopA + coopB) / 2)
	case hasA:
		return round4((coopA + 0.5) / 2)
	case hasB:
		return round4((coopB + 0.5) / 2)
	default:
		return 0.5
	}
}

// cooperationOf returns the node's cooperation dimension, and whether the
// node actually resolved against a registered identity. DataPoints==0 is
// not a valid proxy for "no data" here: a freshly registered identity's
// trust profile is computed from zero ledger-observed actions and still
// has a real, meaningful Dimensions.Cooperation value (spec.md §4.2's
// default performance snapshot) that must not be discarded in favor of the
// neutral 0.5 fallback.
func (g *Graph) cooperationOf(id string) (float64, bool) {
	n, ok := g.Nodes[id]
	if !ok || !n.HasIdentity {
		return 0, false
	}
	return n.TrustProfile.Dimensions.Cooperation, true
}

// SystemicRisk is the aggregate risk report (spec.md §4.8).
type SystemicRisk struct {
	GlobalRiskIndex        float64
	CriticalVulnerabilities []Vulnerability
	RiskClusters           int
}

// Vulnerability is one central-node entry in the systemic risk report.
type Vulnerability struct {
	AgentID           string
	CentralityIndex   float64
	VulnerabilityScore float64
}

// ForecastSystemicRisk computes the global risk index, top-3 critical
// vulnerabilities among central nodes with centralityIndex>20, and the
// count of risk clusters (spec.md §4.8).
func (g *Graph) ForecastSystemicRisk() SystemicRisk {
	clusters := g.RiskClusters()
	var riskSum float64
	for _, c := range clusters {
		riskSum += c.RiskLevel
	}
	nodeCount := len(g.Nodes)
	globalRiskIndex := 0.0
	if nodeCount > 0 {
		globalRiskIndex = round4(riskSum / float64(nodeCount))
	}

	var vulnerable []Vulnerability
	for _, cn := range g.CentralNodes() {
		if cn.CentralityIndex <= 20 {
			continue
		}
		trustScore := g.Nodes[cn.AgentID].TrustScore
		vulnerable = append(vulnerable, Vulnerability{
			AgentID:            cn.AgentID,
			CentralityIndex:    cn.CentralityIndex,
			VulnerabilityScore: round4(cn.CentralityIndex / 100 * (1 - trustScore)),
		})
	}
	sort.SliceStable(vulnerable, func(i, j int) bool {
		return vulnerable[i].VulnerabilityScore > vulnerable[j].VulnerabilityScore
	})
	if len(vulnerable) > 3 {
		vulnerable = vulnerable[:3]
	}

	return SystemicRisk{
		GlobalRiskIndex:         globalRiskIndex,
		CriticalVulnerabilities: vulnerable,
		RiskClusters:            len(clusters),
	}
}

// HiddenSynergy is one entry of the hidden-synergies report.
type HiddenSynergy struct {
	AgentA             string
	AgentB             string
	SynergyProbability float64
}

// HiddenSynergies returns the top-K pairs with zero historical collaboration
// and synergyProbability>0.75 (spec.md §4.8), bounded by topK.
func (g *Graph) HiddenSynergies(topK int) []HiddenSynergy {
	ids := g.sortedIDs()
	var candidates []HiddenSynergy
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := ids[i], ids[j]
			if g.CollabCount(a, b) != 0 {
				continue
			}
			forecast := g.ForecastSynergy(a, b)
			if forecast.SynergyProbability > 0.75 {
				candidates = append(candidates, HiddenSynergy{AgentA: a, AgentB: b, SynergyProbability: forecast.SynergyProbability})
			}
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].SynergyProbability > candidates[j].SynergyProbability
	})
	if topK >= 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates
}

func round4(f float64) float64 {
	return float64(int64(f*10000+sign(f)*0.5)) / 10000
}

func sign(f float64) float64 {
	if f < 0 {
		return -1
	}
	return 1
}
