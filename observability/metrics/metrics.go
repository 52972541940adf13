// Package metrics registers the Prometheus instrumentation surfaced by the
// registry, ledger, validator, and graph components (C11), following the
// teacher's sync.Once-guarded singleton registry pattern
// (observability/metrics/potso.go) rather than a package-level init.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// SubstrateMetrics bundles every counter/gauge the substrate exposes.
type SubstrateMetrics struct {
	identitiesRegistered *prometheus.CounterVec
	identitiesRevoked    *prometheus.CounterVec
	validateActionTotal  *prometheus.CounterVec
	ledgerEntriesAppended *prometheus.CounterVec
	ledgerChainValid     prometheus.Gauge
	validatorAdmitted    *prometheus.CounterVec
	validatorRejected    *prometheus.CounterVec
	graphNodes           prometheus.Gauge
	graphRiskClusters    prometheus.Gauge
}

var (
	once     sync.Once
	registry *SubstrateMetrics
)

// Substrate returns the process-wide singleton metrics registry, creating
// and registering it with the default Prometheus registerer on first call.
func Substrate() *SubstrateMetrics {
	once.Do(func() {
		registry = &SubstrateMetrics{
			identitiesRegistered: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "identities_registered_total",
				Help: "Count of identities successfully registered.",
			}, []string{"originSystem"}),
			identitiesRevoked: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "identities_revoked_total",
				Help: "Count of identities revoked.",
			}, []string{"reason"}),
			validateActionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "validate_action_total",
				Help: "Count of validateAction outcomes by result code.",
			}, []string{"result"}),
			ledgerEntriesAppended: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "ledger_entries_appended_total",
				Help: "Count of ledger entries appended by action type.",
			}, []string{"actionType"}),
			ledgerChainValid: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "ledger_chain_valid",
				Help: "1 if the most recent verifyChain call succeeded, 0 otherwise.",
			}),
			validatorAdmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "validator_admitted_total",
				Help: "Count of proposals admitted by strictness level.",
			}, []string{"strictness"}),
			validatorRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "validator_rejected_total",
				Help: "Count of proposals rejected by strictness level and failing check.",
			}, []string{"strictness", "check"}),
			graphNodes: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "graph_nodes",
				Help: "Current node count of the trust graph.",
			}),
			graphRiskClusters: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "graph_risk_clusters",
				Help: "Current count of risk clusters in the trust graph.",
			}),
		}
		prometheus.MustRegister(
			registry.identitiesRegistered,
			registry.identitiesRevoked,
			registry.validateActionTotal,
			registry.ledgerEntriesAppended,
			registry.ledgerChainValid,
			registry.validatorAdmitted,
			registry.validatorRejected,
			registry.graphNodes,
			registry.graphRiskClusters,
		)
	})
	return registry
}

func (m *SubstrateMetrics) IncIdentityRegistered(originSystem string) {
	if m == nil {
		return
	}
	m.identitiesRegistered.WithLabelValues(normalize(originSystem)).Inc()
}

func (m *SubstrateMetrics) IncIdentityRevoked(reason string) {
	if m == nil {
		return
	}
	m.identitiesRevoked.WithLabelValues(normalize(reason)).Inc()
}

func (m *SubstrateMetrics) IncValidateAction(result string) {
	if m == nil {
		return
	}
	m.validateActionTotal.WithLabelValues(normalize(result)).Inc()
}

func (m *SubstrateMetrics) IncLedgerEntryAppended(actionType string) {
	if m == nil {
		return
	}
	m.ledgerEntriesAppended.WithLabelValues(normalize(actionType)).Inc()
}

func (m *SubstrateMetrics) SetLedgerChainValid(valid bool) {
	if m == nil {
		return
	}
	if valid {
		m.ledgerChainValid.Set(1)
		return
	}
	m.ledgerChainValid.Set(0)
}

func (m *SubstrateMetrics) IncValidatorAdmitted(strictness string) {
	if m == nil {
		return
	}
	m.validatorAdmitted.WithLabelValues(normalize(strictness)).Inc()
}

func (m *SubstrateMetrics) IncValidatorRejected(strictness, check string) {
	if m == nil {
		return
	}
	m.validatorRejected.WithLabelValues(normalize(strictness), normalize(check)).Inc()
}

func (m *SubstrateMetrics) SetGraphNodes(count int) {
	if m == nil {
		return
	}
	m.graphNodes.Set(float64(count))
}

func (m *SubstrateMetrics) SetGraphRiskClusters(count int) {
	if m == nil {
		return
	}
	m.graphRiskClusters.Set(float64(count))
}

func normalize(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
