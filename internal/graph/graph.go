// Package graph builds the Trust Graph (C9) incrementally from ledger
// entries and implements its centrality/impact/risk-cluster/delegation
// and synergy-forecast analytics (spec.md §4.8). Ingest folds entries one
// at a time, in index order, into aggregate node/edge state, so a Graph can
// be extended incrementally; Build makes one full pass over the snapshot it
// is given and returns a fresh Graph.
package graph

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/agentrust/substrate/internal/identity"
	"github.com/agentrust/substrate/internal/ledger"
	"github.com/agentrust/substrate/internal/scoring"
)

// Edge types recognized by the graph (spec.md §4.8).
const (
	EdgeDelegation    = "DELEGATION"
	EdgeCollaboration = "COLLABORATION"
)

// Collaboration sub-types, carried as Edge.SubType.
const (
	SubTypeNegotiation = "NEGOTIATION"
	SubTypeCooperation = "COOPERATION"
)

// NodePerformance is the ledger-derived performance aggregate for a node
// (spec.md §4.8 "performance:{revenue,pnl,violations,count}").
type NodePerformance struct {
	Revenue    float64
	PnL        float64
	Violations int
	Count      int
}

// Connections counts directed edges touching a node.
type Connections struct {
	In  int
	Out int
}

// Node is one agent's aggregate state in the trust graph.
type Node struct {
	AgentID string
	// TrustScore/TrustProfile are only meaningful when HasIdentity is true;
	// a node can exist as a bare stub (seen in an edge, never resolved
	// against a registry) with both left zero.
	TrustScore   float64
	TrustProfile scoring.Profile
	HasIdentity  bool
	Performance  NodePerformance
	Connections  Connections
}

// Edge is a directed relationship derived from a ledger entry.
type Edge struct {
	From    string
	To      string
	Type    string
	SubType string
	// Outcome resolves spec.md §4.8/§9's "SUCCESS edges" successRate
	// definition: collaboration entries may carry details.outcome =
	// "SUCCESS"|"FAILURE"; absent outcome defaults to SUCCESS, matching the
	// optimistic default the spec applies elsewhere (e.g. synergy's
	// successRate default of 0.8, not 0).
	Outcome string
}

// IdentityLookup is the subset of *registry.Registry the graph builder
// needs: enough to stamp a node with its current trust score/profile
// without the graph package depending on registry directly.
type IdentityLookup interface {
	GetIdentityByID(id string) (identity.Identity, bool)
}

// Graph is the built relationship graph plus its collaboration counter.
type Graph struct {
	Nodes  map[string]*Node
	Edges  []Edge
	collab map[string]int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{Nodes: map[string]*Node{}, collab: map[string]int{}}
}

// Build ingests every entry in order and returns the resulting graph.
func Build(entries []ledger.Entry, lookup IdentityLookup) *Graph {
	g := New()
	for _, e := range entries {
		g.Ingest(e, lookup)
	}
	return g
}

// Ingest folds a single ledger entry into the graph (spec.md §4.8).
func (g *Graph) Ingest(e ledger.Entry, lookup IdentityLookup) {
	details := asMap(e.Details)
	actor := g.ensureNode(e.AgentID, lookup)

	switch e.ActionType {
	case "DELEGATION":
		to, _ := details["delegatedTo"].(string)
		if to == "" {
			return
		}
		target := g.ensureNode(to, lookup)
		g.addEdge(Edge{From: e.AgentID, To: to, Type: EdgeDelegation})
		actor.Connections.Out++
		target.Connections.In++

	case "NEGOTIATION":
		counterparty, _ := details["counterparty"].(string)
		if counterparty == "" {
			return
		}
		target := g.ensureNode(counterparty, lookup)
		g.addEdge(Edge{From: e.AgentID, To: counterparty, Type: EdgeCollaboration, SubType: SubTypeNegotiation, Outcome: outcomeOf(details)})
		actor.Connections.Out++
		target.Connections.In++
		g.bumpCollab(e.AgentID, counterparty)

	case "COOPERATION", "COOPERATIVE_COLLABORATION":
		partners, _ := details["partners"].([]interface{})
		for _, p := range partners {
			name, ok := p.(string)
			if !ok || name == "" {
				continue
			}
			target := g.ensureNode(name, lookup)
			g.addEdge(Edge{From: e.AgentID, To: name, Type: EdgeCollaboration, SubType: SubTypeCooperation, Outcome: outcomeOf(details)})
			actor.Connections.Out++
			target.Connections.In++
			g.bumpCollab(e.AgentID, name)
		}

	case "ECONOMIC", "ECONOMIC_OUTCOME":
		if revenue, ok := numericField(details, "revenue"); ok {
			actor.Performance.Revenue += revenue
		}
		if pnl, ok := numericField(details, "pnl"); ok {
			actor.Performance.PnL += pnl
		}
		actor.Performance.Count++

	case "POLICY_VIOLATION":
		actor.Performance.Violations++
	}
}

func (g *Graph) ensureNode(id string, lookup IdentityLookup) *Node {
	if node, ok := g.Nodes[id]; ok {
		return node
	}
	node := &Node{AgentID: id}
	if lookup != nil {
		if ident, ok := lookup.GetIdentityByID(id); ok {
			node.TrustScore = ident.TrustScore
			node.TrustProfile = ident.TrustProfile
			node.HasIdentity = true
		}
	}
	g.Nodes[id] = node
	return node
}

func (g *Graph) addEdge(e Edge) {
	g.Edges = append(g.Edges, e)
}

func (g *Graph) bumpCollab(a, b string) {
	g.collab[collabKey(a, b)]++
}

// CollabCount returns the undirected collaboration counter for the pair
// (a,b) (spec.md §4.8's "symmetric map keyed by sort(id1,id2)").
func (g *Graph) CollabCount(a, b string) int {
	return g.collab[collabKey(a, b)]
}

func collabKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "<->" + b
}

func outcomeOf(details map[string]interface{}) string {
	if outcome, ok := details["outcome"].(string); ok {
		switch strings.ToUpper(outcome) {
		case "FAILURE", "FAILED":
			return "FAILURE"
		}
	}
	return "SUCCESS"
}

func numericField(details map[string]interface{}, key string) (float64, bool) {
	v, ok := details[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// asMap coerces an entry's opaque Details payload into a string-keyed map
// regardless of its original concrete type, by round-tripping through
// JSON. This lets the graph builder read the same field names whether the
// entry was freshly appended in-process (Details may be a typed Go value)
// or reloaded from disk (Details is always a map[string]interface{} after
// encoding/json unmarshals into interface{}).
func asMap(details interface{}) map[string]interface{} {
	if m, ok := details.(map[string]interface{}); ok {
		return m
	}
	encoded, err := json.Marshal(details)
	if err != nil {
		return map[string]interface{}{}
	}
	var m map[string]interface{}
	if err := json.Unmarshal(encoded, &m); err != nil {
		return map[string]interface{}{}
	}
	return m
}

// sortedIDs returns the graph's node ids in deterministic (lexical) order,
// used by analytics that need a stable iteration order over the node map.
func (g *Graph) sortedIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
