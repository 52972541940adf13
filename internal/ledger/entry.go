// Package ledger implements the append-only, hash-chained, per-entry-signed
// Activity Ledger (C8): addEntry, verifyChain, and file persistence
// (spec.md §4.7).
package ledger

import "github.com/agentrust/substrate/internal/cryptoutil"

// Entry is a frozen-after-creation ledger record (spec.md §3). Field order
// mirrors the canonical hash input's field order so the struct reads the
// same way it hashes.
type Entry struct {
	Index        uint64              `json:"index"`
	Timestamp    string              `json:"timestamp"`
	AgentID      string              `json:"agentId"`
	ActionType   string              `json:"actionType"`
	Details      interface{}         `json:"details"`
	PrevHash     *string             `json:"prevHash"`
	Hash         string              `json:"hash"`
	Signature    string              `json:"signature"`
	PublicKeyPEM cryptoutil.PEMBytes `json:"publicKey"`
}

// recomputeHash returns the SHA-256 canonical hash this entry should carry,
// recomputed from its hash-bearing fields (spec.md §4.7).
func (e Entry) recomputeHash() (string, error) {
	return cryptoutil.HashLedgerEntry(cryptoutil.LedgerHashInput{
		Index:      e.Index,
		Timestamp:  e.Timestamp,
		AgentID:    e.AgentID,
		ActionType: e.ActionType,
		Details:    e.Details,
		PrevHash:   e.PrevHash,
	})
}
