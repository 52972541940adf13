// Package substrate is the Agent Trust Substrate's public API: the thin
// composition layer that wires the Identity Registry (C7), Activity Ledger
// (C8), Trust Graph (C9), and Adaptive Governance (C5/C6) components
// together behind the operation names spec.md §6 lists as normative
// ("names are illustrative; parameter and return shapes are normative").
package substrate

import (
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/agentrust/substrate/internal/config"
	"github.com/agentrust/substrate/internal/cryptoutil"
	"github.com/agentrust/substrate/internal/errs"
	"github.com/agentrust/substrate/internal/events"
	"github.com/agentrust/substrate/internal/governance"
	"github.com/agentrust/substrate/internal/graph"
	"github.com/agentrust/substrate/internal/identity"
	"github.com/agentrust/substrate/internal/ledger"
	"github.com/agentrust/substrate/internal/registry"
	"github.com/agentrust/substrate/internal/scoring"
	"github.com/agentrust/substrate/observability/logging"
	"github.com/agentrust/substrate/observability/metrics"
)

// Substrate bundles the registry and ledger a host embeds, plus the
// governance tables and configuration that parameterize the pure scoring,
// evolution, tiering, and validator functions.
type Substrate struct {
	cfg      *config.SubstrateConfig
	registry *registry.Registry
	ledger   *ledger.Ledger
	bus      *events.Bus
	metrics  *metrics.SubstrateMetrics
	log      *slog.Logger

	evolution  scoring.EvolutionConfig
	tiers      governance.TierTable
	strictness governance.StrictnessTable
}

// Open loads configuration at configPath (writing a default file if absent,
// per C10), opens the identity registry and activity ledger at their
// configured store paths, and wires the shared event bus and Prometheus
// metrics registry across both (spec.md §6 "External interfaces").
func Open(configPath string) (*Substrate, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	var rotate *logging.RotateConfig
	if cfg.Observability.LogRotatePath != "" {
		rotate = &logging.RotateConfig{
			Path:       cfg.Observability.LogRotatePath,
			MaxSizeMB:  cfg.Observability.LogMaxSizeMB,
			MaxBackups: cfg.Observability.LogMaxBackups,
			MaxAgeDays: cfg.Observability.LogMaxAgeDays,
		}
	}
	log := logging.Setup("agent-trust-substrate", "production", rotate)
	bus := events.NewBus()
	met := metrics.Substrate()

	registryOpts := []registry.Option{
		registry.WithEventBus(bus),
		registry.WithMetrics(met),
	}
	if cfg.Registry.ReplayCachePath != "" {
		cache, err := registry.NewLevelDBReplayCache(cfg.Registry.ReplayCachePath)
		if err != nil {
			return nil, err
		}
		registryOpts = append(registryOpts, registry.WithReplayCache(cache))
	}

	reg, err := registry.Open(cfg.Registry.StorePath, registryOpts...)
	if err != nil {
		return nil, err
	}

	ledgerOpts := []ledger.Option{
		ledger.WithRegistry(reg),
		ledger.WithEventBus(bus),
		ledger.WithMetrics(met),
	}
	if cfg.Ledger.Autosave {
		ledgerOpts = append(ledgerOpts, ledger.WithAutosave(cfg.Ledger.StorePath))
	}

	var led *ledger.Ledger
	if _, statErr := os.Stat(cfg.Ledger.StorePath); statErr == nil {
		led, err = ledger.LoadFromFile(cfg.Ledger.StorePath, ledgerOpts...)
		if err != nil {
			return nil, err
		}
	} else {
		led = ledger.New(ledgerOpts...)
	}

	return &Substrate{
		cfg:        cfg,
		registry:   reg,
		ledger:     led,
		bus:        bus,
		metrics:    met,
		log:        log,
		evolution:  toEvolutionConfig(cfg.Evolution),
		tiers:      toTierTable(cfg.Governance.Tiers),
		strictness: toStrictnessTable(cfg.Validator.Levels),
	}, nil
}

// Close releases the registry's optional durable replay cache.
func (s *Substrate) Close() error {
	return s.registry.Close()
}

// RegisterAgentRequest is the input to RegisterAgent.
type RegisterAgentRequest struct {
	PublicKeyPEM []byte
	OriginSystem string
	OverrideID   string
	Metadata     *identity.Metadata
	Performance  *scoring.Performance
	Force        bool
}

// RegisterAgent admits a new identity into the registry (spec.md §4.1, §6
// "registerAgent").
func (s *Substrate) RegisterAgent(req RegisterAgentRequest, now time.Time) (identity.Identity, error) {
	s.log.Info("registering agent", "correlationId", uuid.NewString(), "originSystem", req.OriginSystem)
	return s.registry.RegisterIdentity(registry.RegisterIdentityRequest{
		PublicKeyPEM: req.PublicKeyPEM,
		OriginSystem: req.OriginSystem,
		OverrideID:   req.OverrideID,
		Metadata:     req.Metadata,
		Performance:  req.Performance,
		Force:        req.Force,
	}, now)
}

// ValidateIdentitySignature resolves an agent by id or public key, checks
// revocation/origin/replay, and verifies the signature over message
// (spec.md §4.1, §6 "validateIdentitySignature").
func (s *Substrate) ValidateIdentitySignature(req registry.ValidateActionRequest, now time.Time) registry.ValidateActionResult {
	return s.registry.ValidateAction(req, now)
}

// GetTrustScore returns the agent's current trust profile (spec.md §6
// "getTrustScore(id) → {composite, dimensions, contexts, timestamp,
// metadata}").
func (s *Substrate) GetTrustScore(id string) (scoring.Profile, error) {
	ident, ok := s.registry.GetIdentityByID(id)
	if !ok {
		return scoring.Profile{}, errs.Newf(errs.IdentityNotFound, "no identity with id %q", id)
	}
	return ident.TrustProfile, nil
}

// UpdateReputation applies natural reputation evolution from recent action
// outcomes and persists the resulting identity (spec.md §4.4, §6
// "updateReputation(id, recentActions[])").
func (s *Substrate) UpdateReputation(id string, recentActions []scoring.Action, now time.Time) (identity.Identity, error) {
	next, err := s.registry.UpdateIdentity(id, func(ident identity.Identity) identity.Identity {
		return ident.EvolveReputation(recentActions, s.evolution, now)
	})
	if err != nil {
		return identity.Identity{}, err
	}
	s.log.Info("reputation updated", "identityId", id, "trustScore", next.TrustScore)
	return next, nil
}

// GetActivityHistory returns the ledger entries for id, or every entry when
// id is empty (spec.md §6 "getActivityHistory(id?) → entries[]").
func (s *Substrate) GetActivityHistory(id string) []ledger.Entry {
	if id == "" {
		return s.ledger.Entries()
	}
	return s.ledger.EntriesForAgent(id)
}

// RecordAction appends a signed, hash-chained ledger entry (spec.md §4.7, §6
// "recordAction(params) → entry").
func (s *Substrate) RecordAction(req ledger.AddEntryRequest, now time.Time) (ledger.Entry, error) {
	detailsDigest := ""
	if encoded, err := cryptoutil.Canonical(req.Details); err == nil {
		detailsDigest = cryptoutil.FastDigestHex(encoded)
	}
	s.log.Info("recording action",
		"correlationId", uuid.NewString(),
		"agentId", req.AgentID,
		"detailsDigest", detailsDigest,
	)
	return s.ledger.AddEntry(req, now)
}

// TrustGraphView is the nodes/edges/summary shape spec.md §6 names for
// getTrustGraph.
type TrustGraphView struct {
	Nodes   map[string]*graph.Node
	Edges   []graph.Edge
	Summary GraphSummary
}

// GraphSummary bundles the graph's analytics (spec.md §4.8).
type GraphSummary struct {
	CentralNodes            []graph.CentralNode
	HighImpactContributors  []graph.HighImpactContributor
	RiskClusters            []graph.RiskCluster
	DelegationChains        []graph.DelegationChain
}

// GetTrustGraph builds the trust graph from the full ledger snapshot and
// returns it with its summary analytics (spec.md §6 "getTrustGraph() →
// {nodes, edges, summary}").
func (s *Substrate) GetTrustGraph() TrustGraphView {
	g := graph.Build(s.ledger.Entries(), s.registry)
	s.metrics.SetGraphNodes(len(g.Nodes))
	clusters := g.RiskClusters()
	s.metrics.SetGraphRiskClusters(len(clusters))
	return TrustGraphView{
		Nodes: g.Nodes,
		Edges: g.Edges,
		Summary: GraphSummary{
			CentralNodes:           g.CentralNodes(),
			HighImpactContributors: g.HighImpactContributors(),
			RiskClusters:           clusters,
			DelegationChains:       g.DelegationChains(),
		},
	}
}

// ForecastSynergy predicts the outcome of pairing agents a and b (spec.md
// §4.8, §6 "forecastSynergy(a,b) → forecast").
func (s *Substrate) ForecastSynergy(a, b string) graph.SynergyForecast {
	g := graph.Build(s.ledger.Entries(), s.registry)
	return g.ForecastSynergy(a, b)
}

// ForecastSystemicRisk computes the aggregate risk report over the current
// graph snapshot (spec.md §4.8, §6 "forecastSystemicRisk() → report").
func (s *Substrate) ForecastSystemicRisk() graph.SystemicRisk {
	g := graph.Build(s.ledger.Entries(), s.registry)
	return g.ForecastSystemicRisk()
}

// DiscoverOpportunities returns the top hidden-synergy pairs bounded by the
// configured HiddenSynergyTopK (spec.md §4.8, §6 "discoverOpportunities() →
// proposals[]").
func (s *Substrate) DiscoverOpportunities() []graph.HiddenSynergy {
	g := graph.Build(s.ledger.Entries(), s.registry)
	return g.HiddenSynergies(s.cfg.Graph.HiddenSynergyTopK)
}

// ValidateProposal gates a governance proposal against the tier and
// strictness tables (spec.md §4.5, §4.6). If context names one of the five
// projections, the tier is computed from that projection instead of the
// composite (spec.md §4.5).
func (s *Substrate) ValidateProposal(id string, proposal governance.Proposal, context string, now time.Time) (governance.Result, error) {
	ident, ok := s.registry.GetIdentityByID(id)
	if !ok {
		return governance.Result{}, errs.Newf(errs.IdentityNotFound, "no identity with id %q", id)
	}
	score := contextScore(ident.TrustProfile, context)
	profile := governance.GetGovernanceProfile(score, s.tiers, context, now)
	strictness, ok := s.strictness[profile.Strictness]
	if !ok {
		return governance.Result{}, errs.Newf(errs.ValidationFailed, "unknown strictness level %q", profile.Strictness)
	}
	result := governance.Validate(proposal, strictness, profile.Budget.SingleTransaction, score, context)
	if result.Allowed {
		s.metrics.IncValidatorAdmitted(strictness.Name)
	} else {
		for check, passed := range result.ValidationResults {
			if !passed {
				s.metrics.IncValidatorRejected(strictness.Name, check)
			}
		}
	}
	return result, nil
}

// contextScore returns the named context projection when context is one of
// the five spec.md §4.3 projections, falling back to the composite
// otherwise (spec.md §4.5: "If a context name is supplied, the tier is
// computed from the context projection instead of the composite").
func contextScore(profile scoring.Profile, context string) float64 {
	switch context {
	case "financial":
		return profile.Contexts.Financial
	case "collaborative":
		return profile.Contexts.Collaborative
	case "compliance":
		return profile.Contexts.Compliance
	case "technical":
		return profile.Contexts.Technical
	case "security":
		return profile.Contexts.Security
	default:
		return profile.Composite
	}
}

func toEvolutionConfig(c config.EvolutionConfig) scoring.EvolutionConfig {
	return scoring.EvolutionConfig{
		DecayRateDaily:       c.DecayRateDaily,
		DecayGracePeriod:     time.Duration(c.DecayGracePeriodHours * float64(time.Hour)),
		MinMetricFloor:       c.MinMetricFloor,
		RecencyWeight:        c.RecencyWeight,
		RecoveryAcceleration: c.RecoveryAcceleration,
		ImpactVolatility:     c.ImpactVolatility,
		ConsistencyThreshold: c.ConsistencyThreshold,
	}
}

func toTierTable(rows []config.TierConfig) governance.TierTable {
	table := make(governance.TierTable, 0, len(rows))
	for _, row := range rows {
		perms := make([]governance.Permission, 0, len(row.Permissions))
		for _, p := range row.Permissions {
			perms = append(perms, governance.Permission(p))
		}
		table = append(table, governance.TierRow{
			Tier:        governance.Tier(row.Tier),
			MinScore:    row.MinScore,
			Permissions: perms,
			Budget: governance.BudgetLimits{
				Ceiling:           row.BudgetCeiling,
				Daily:             row.BudgetDaily,
				SingleTransaction: row.BudgetSingleTx,
			},
			Delegation: governance.DelegationLimits{
				Max:             row.DelegationMax,
				Scope:           governance.DelegationScope(row.DelegationScope),
				AllowLowerTrust: row.AllowLowerTrust,
				AutoApproveAt:   row.AutoApproveAt,
			},
			Strictness: row.Strictness,
		})
	}
	return table
}

func toStrictnessTable(rows []config.StrictnessConfig) governance.StrictnessTable {
	table := make(governance.StrictnessTable, len(rows))
	for _, row := range rows {
		table[row.Name] = governance.StrictnessParams{
			Name:              row.Name,
			RiskTolerance:     row.RiskTolerance,
			SafetyMargin:      row.SafetyMargin,
			PolicyIntensity:   row.PolicyIntensity,
			ConsensusRequired: row.ConsensusRequired,
			MinConfirmations:  row.MinConfirmations,
			HumanApprovalReq:  row.HumanApprovalReq,
		}
	}
	return table
}
