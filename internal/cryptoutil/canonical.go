package cryptoutil

import (
	"bytes"
	"encoding/hex"
	"encoding/json"

	"lukechampine.com/blake3"
)

// LedgerHashInput is the fixed-order tuple hashed to produce a ledger
// entry's chain hash (spec.md §4.7): canonical serialization of
// (index, timestamp, agentId, actionType, details, prevHash). Field order is
// pinned by struct field order below — encoding/json preserves declaration
// order for structs (unlike maps, which it sorts by key; spec.md §9 pins
// that sorted-map behavior as load-bearing wherever `details` nests a map).
type LedgerHashInput struct {
	Index      uint64      `json:"index"`
	Timestamp  string      `json:"timestamp"`
	AgentID    string      `json:"agentId"`
	ActionType string      `json:"actionType"`
	Details    interface{} `json:"details"`
	PrevHash   *string     `json:"prevHash"`
}

// Canonical encodes v using compact, deterministic JSON: no HTML escaping,
// and (via encoding/json's built-in behavior) lexically sorted map keys at
// every nesting level. This is the sole serialization used to compute
// chain-hashed or signed bytes; it must never change shape across versions
// without a schema bump, since doing so would silently invalidate every
// previously signed ledger entry.
func Canonical(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// json.Encoder.Encode appends a trailing newline; strip it so the hashed
	// bytes are stable regardless of call site.
	out := buf.Bytes()
	if len(out) > 0 && out[len(out)-1] == '\n' {
		out = out[:len(out)-1]
	}
	return out, nil
}

// HashLedgerEntry computes the SHA-256 hash (hex) of the canonical
// serialization of a draft entry's hashed fields.
func HashLedgerEntry(in LedgerHashInput) (string, error) {
	encoded, err := Canonical(in)
	if err != nil {
		return "", err
	}
	return SHA256Hex(encoded), nil
}

// FastDigestHex returns a hex-encoded BLAKE3-256 digest of data for
// non-normative, log-correlation purposes — an operator-facing dedup/trace
// key short enough to scan in a log line without dumping the raw (and
// usually redacted) payload. Never used for the ledger's chain hash or any
// signed/canonical byte sequence: those stay SHA-256 via Canonical /
// HashLedgerEntry, matching spec.md §9's pinned hash algorithm.
func FastDigestHex(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
