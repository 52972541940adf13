package graph

import (
	"testing"
	"time"

	"github.com/agentrust/substrate/internal/identity"
	"github.com/agentrust/substrate/internal/ledger"
	"github.com/agentrust/substrate/internal/scoring"
)

func entry(agentID, actionType string, details interface{}) ledger.Entry {
	return ledger.Entry{AgentID: agentID, ActionType: actionType, Details: details}
}

func highCooperationProfile(cooperation float64) scoring.Profile {
	return scoring.Profile{
		Dimensions: scoring.Dimensions{Cooperation: cooperation},
	}
}

// fakeLookup is a minimal IdentityLookup backed by a map, standing in for a
// *registry.Registry in tests that need Build() to resolve real identities.
type fakeLookup map[string]identity.Identity

func (f fakeLookup) GetIdentityByID(id string) (identity.Identity, bool) {
	ident, ok := f[id]
	return ident, ok
}

func TestBuildDelegationEdgeUpdatesConnections(t *testing.T) {
	g := Build([]ledger.Entry{
		entry("agent-a", "DELEGATION", map[string]interface{}{"delegatedTo": "agent-b"}),
	}, nil)

	if g.Nodes["agent-a"].Connections.Out != 1 {
		t.Fatalf("expected agent-a out=1, got %+v", g.Nodes["agent-a"].Connections)
	}
	if g.Nodes["agent-b"].Connections.In != 1 {
		t.Fatalf("expected agent-b in=1, got %+v", g.Nodes["agent-b"].Connections)
	}
	if len(g.Edges) != 1 || g.Edges[0].Type != EdgeDelegation {
		t.Fatalf("expected one DELEGATION edge, got %+v", g.Edges)
	}
}

func TestBuildCooperationFansOutToEachPartner(t *testing.T) {
	g := Build([]ledger.Entry{
		entry("agent-a", "COOPERATION", map[string]interface{}{"partners": []interface{}{"agent-b", "agent-c"}}),
	}, nil)

	if len(g.Edges) != 2 {
		t.Fatalf("expected 2 collaboration edges, got %d", len(g.Edges))
	}
	if g.CollabCount("agent-a", "agent-b") != 1 || g.CollabCount("agent-b", "agent-a") != 1 {
		t.Fatalf("expected symmetric collab counter to be 1 for agent-a/agent-b")
	}
}

func TestBuildEconomicAccumulatesPerformance(t *testing.T) {
	g := Build([]ledger.Entry{
		entry("agent-a", "ECONOMIC", map[string]interface{}{"revenue": 100.0, "pnl": 40.0}),
		entry("agent-a", "ECONOMIC", map[string]interface{}{"revenue": 50.0, "pnl": -10.0}),
	}, nil)

	perf := g.Nodes["agent-a"].Performance
	if perf.Revenue != 150 || perf.PnL != 30 || perf.Count != 2 {
		t.Fatalf("unexpected performance aggregate: %+v", perf)
	}
}

func TestBuildPolicyViolationIncrementsCounter(t *testing.T) {
	g := Build([]ledger.Entry{
		entry("agent-a", "POLICY_VIOLATION", nil),
		entry("agent-a", "POLICY_VIOLATION", nil),
	}, nil)

	if g.Nodes["agent-a"].Performance.Violations != 2 {
		t.Fatalf("expected 2 violations, got %d", g.Nodes["agent-a"].Performance.Violations)
	}
}

func TestCentralNodesSortsDescending(t *testing.T) {
	g := Build([]ledger.Entry{
		entry("hub", "DELEGATION", map[string]interface{}{"delegatedTo": "a"}),
		entry("hub", "DELEGATION", map[string]interface{}{"delegatedTo": "b"}),
		entry("hub", "DELEGATION", map[string]interface{}{"delegatedTo": "c"}),
		entry("hub", "NEGOTIATION", map[string]interface{}{"counterparty": "a"}),
	}, nil)

	ranked := g.CentralNodes()
	if ranked[0].AgentID != "hub" {
		t.Fatalf("expected hub to rank first, got %+v", ranked)
	}
}

func TestHighImpactContributorsDefaultSuccessRateWithNoEdges(t *testing.T) {
	g := Build([]ledger.Entry{
		entry("agent-a", "ECONOMIC", map[string]interface{}{"revenue": 10.0, "pnl": 5.0}),
	}, nil)

	contributors := g.HighImpactContributors()
	if len(contributors) != 1 || contributors[0].SuccessRate != 1.0 {
		t.Fatalf("expected default successRate 1.0 with no collaboration edges, got %+v", contributors)
	}
}

func TestRiskClustersGroupsConnectedAtRiskNodes(t *testing.T) {
	g := New()
	g.Nodes["a"] = &Node{AgentID: "a", TrustScore: 0.1}
	g.Nodes["b"] = &Node{AgentID: "b", TrustScore: 0.2}
	g.Nodes["c"] = &Node{AgentID: "c", TrustScore: 0.9}
	g.Edges = append(g.Edges, Edge{From: "a", To: "b", Type: EdgeCollaboration})

	clusters := g.RiskClusters()
	if len(clusters) != 1 || len(clusters[0].Members) != 2 {
		t.Fatalf("expected one 2-member cluster, got %+v", clusters)
	}
}

func TestDelegationChainsNoSeedForPureCycle(t *testing.T) {
	g := Build([]ledger.Entry{
		entry("a", "DELEGATION", map[string]interface{}{"delegatedTo": "b"}),
		entry("b", "DELEGATION", map[string]interface{}{"delegatedTo": "a"}),
	}, nil)

	chains := g.DelegationChains()
	if len(chains) != 0 {
		// both nodes have in>0 so neither qualifies as a seed; this is the
		// expected outcome for a pure 2-cycle with no acyclic entry point.
		t.Fatalf("expected no delegation chain seeds for a mutual cycle, got %+v", chains)
	}
}

func TestForecastSynergyWithNoHistoryUsesDefaults(t *testing.T) {
	g := New()
	g.Nodes["a"] = &Node{AgentID: "a"}
	g.Nodes["b"] = &Node{AgentID: "b"}

	forecast := g.ForecastSynergy("a", "b")
	if forecast.SuccessRate != 0.8 {
		t.Fatalf("expected default successRate 0.8, got %v", forecast.SuccessRate)
	}
	if forecast.Compatibility != 0.5 {
		t.Fatalf("expected default compatibility 0.5, got %v", forecast.Compatibility)
	}
	if forecast.SynergyProbability != 0.68 {
		t.Fatalf("expected synergyProbability 0.68, got %v", forecast.SynergyProbability)
	}
	if forecast.Recommendation != "MONITORED_COOPERATION" {
		t.Fatalf("expected MONITORED_COOPERATION when successRate*compatibility<=0.6, got %v", forecast.Recommendation)
	}
	if forecast.Confidence != 0.4 {
		t.Fatalf("expected confidence 0.4 with no history, got %v", forecast.Confidence)
	}
}

// TestForecastSynergyMatchesWorkedExample reproduces spec.md §8 scenario 5:
// two agents with no history, both cooperation=0.9, should forecast
// synergyProbability=0.84, recommendation=PROMOTE_COLLABORATION,
// confidence=0.4.
func TestForecastSynergyMatchesWorkedExample(t *testing.T) {
	g := New()
	g.Nodes["a"] = &Node{AgentID: "a", TrustProfile: highCooperationProfile(0.9), HasIdentity: true}
	g.Nodes["b"] = &Node{AgentID: "b", TrustProfile: highCooperationProfile(0.9), HasIdentity: true}

	forecast := g.ForecastSynergy("a", "b")
	if forecast.SynergyProbability != 0.84 {
		t.Fatalf("expected synergyProbability 0.84, got %v", forecast.SynergyProbability)
	}
	if forecast.Recommendation != "PROMOTE_COLLABORATION" {
		t.Fatalf("expected PROMOTE_COLLABORATION, got %v", forecast.Recommendation)
	}
	if forecast.Confidence != 0.4 {
		t.Fatalf("expected confidence 0.4, got %v", forecast.Confidence)
	}
}

// TestForecastSynergyUsesFreshlyRegisteredIdentityCooperation exercises the
// real Build()/registry-lookup path (not a hand-set Node) with two
// identities that have just been registered and so carry
// TrustProfile.Metadata.DataPoints==0. Their real cooperation dimension
// (1.0, from scoring's default performance snapshot) must still be used,
// not silently discarded for the 0.5 no-data default.
func TestForecastSynergyUsesFreshlyRegisteredIdentityCooperation(t *testing.T) {
	now := time.Now()
	pub := []byte("pem-not-parsed-by-scoring")
	identA := identity.New(pub, "origin-a", "agent-a", nil, nil, now)
	identB := identity.New(pub, "origin-a", "agent-b", nil, nil, now)
	if identA.TrustProfile.Metadata.DataPoints != 0 {
		t.Fatalf("expected a freshly registered identity to have DataPoints==0, got %d", identA.TrustProfile.Metadata.DataPoints)
	}

	lookup := fakeLookup{"agent-a": identA, "agent-b": identB}
	g := Build([]ledger.Entry{
		entry("agent-a", "DELEGATION", map[string]interface{}{"delegatedTo": "agent-b"}),
	}, lookup)

	forecast := g.ForecastSynergy("agent-a", "agent-b")
	if forecast.Compatibility != 1.0 {
		t.Fatalf("expected compatibility 1.0 from both identities' real cooperation dimension, got %v", forecast.Compatibility)
	}
}

func TestHiddenSynergiesBoundedByTopK(t *testing.T) {
	g := New()
	for _, id := range []string{"a", "b", "c", "d"} {
		g.Nodes[id] = &Node{AgentID: id}
	}
	hidden := g.HiddenSynergies(2)
	if len(hidden) > 2 {
		t.Fatalf("expected at most 2 hidden synergies, got %d", len(hidden))
	}
	for _, h := range hidden {
		if h.SynergyProbability <= 0.75 {
			t.Fatalf("expected only >0.75 synergy pairs, got %+v", h)
		}
	}
}

func TestForecastSystemicRiskCountsRiskClusters(t *testing.T) {
	g := New()
	g.Nodes["a"] = &Node{AgentID: "a", TrustScore: 0.1}
	g.Nodes["b"] = &Node{AgentID: "b", TrustScore: 0.2}
	g.Edges = append(g.Edges, Edge{From: "a", To: "b", Type: EdgeCollaboration})

	risk := g.ForecastSystemicRisk()
	if risk.RiskClusters != 1 {
		t.Fatalf("expected 1 risk cluster, got %d", risk.RiskClusters)
	}
}
