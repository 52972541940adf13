package substrate

import "gopkg.in/yaml.v3"

// ExportSystemicRiskYAML renders a systemic risk report for an operator to
// skim (spec.md §6: "additive ... operator-facing export"). Never used for
// the chain-hashed or replay-sensitive shapes, which stay canonical-JSON-only.
func ExportSystemicRiskYAML(report interface{}) ([]byte, error) {
	return yaml.Marshal(report)
}

// ExportTrustGraphSummaryYAML renders a trust graph's summary analytics for
// operator-facing export, same caveat as ExportSystemicRiskYAML.
func ExportTrustGraphSummaryYAML(summary GraphSummary) ([]byte, error) {
	return yaml.Marshal(summary)
}
