package ledger

import (
	"crypto/rsa"
	"sync"
	"time"

	"github.com/agentrust/substrate/internal/cryptoutil"
	"github.com/agentrust/substrate/internal/errs"
	"github.com/agentrust/substrate/internal/events"
	"github.com/agentrust/substrate/internal/registry"
	"github.com/agentrust/substrate/observability/metrics"
)

// Ledger is the append-only, hash-chained, per-entry-signed activity log.
// A single sync.RWMutex serializes appends and protects the entries slice
// and persistence path, per the "single writer lock per ledger instance"
// model in spec.md §5.
type Ledger struct {
	mu        sync.RWMutex
	entries   []Entry
	path      string
	autosave  bool
	registry  *registry.Registry
	bus       *events.Bus
	metrics   *metrics.SubstrateMetrics
}

// Option configures a Ledger at construction.
type Option func(*Ledger)

// WithRegistry routes addEntry's signature verification through the given
// Registry's ValidateAction, which applies its identity-resolution,
// revocation, origin and signature checks. The request carries no
// timestamp, so the registry's replay check is not applied to ledger
// appends. Without this option, addEntry verifies signatures locally with
// no replay or revocation checks.
func WithRegistry(r *registry.Registry) Option {
	return func(l *Ledger) { l.registry = r }
}

// WithAutosave persists every successful append to path immediately.
func WithAutosave(path string) Option {
	return func(l *Ledger) {
		l.path = path
		l.autosave = true
	}
}

// WithEventBus attaches a C12 event bus.
func WithEventBus(bus *events.Bus) Option {
	return func(l *Ledger) { l.bus = bus }
}

// WithMetrics attaches a C11 Prometheus metrics registry.
func WithMetrics(m *metrics.SubstrateMetrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// New returns an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AddEntryRequest is the input to AddEntry (spec.md §4.7).
type AddEntryRequest struct {
	AgentID      string
	PublicKeyPEM []byte
	PrivateKey   *rsa.PrivateKey
	SignatureHex string
	ActionType   string
	Details      interface{}
	OriginSystem string
}

// AddEntry appends a new, signed, hash-chained entry (spec.md §4.7).
func (l *Ledger) AddEntry(req AddEntryRequest, now time.Time) (Entry, error) {
	if req.AgentID == "" || req.ActionType == "" {
		return Entry{}, errs.New(errs.MissingRequired, "agentId and actionType are required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	draft := Entry{
		Index:        uint64(len(l.entries)),
		Timestamp:    now.UTC().Format(time.RFC3339),
		AgentID:      req.AgentID,
		ActionType:   req.ActionType,
		Details:      req.Details,
		PublicKeyPEM: cryptoutil.PEMBytes(req.PublicKeyPEM),
	}
	if len(l.entries) > 0 {
		prev := l.entries[len(l.entries)-1].Hash
		draft.PrevHash = &prev
	}

	hash, err := draft.recomputeHash()
	if err != nil {
		return Entry{}, err
	}
	draft.Hash = hash

	signature := req.SignatureHex
	if signature == "" {
		if req.PrivateKey == nil {
			return Entry{}, errs.New(errs.MissingRequired, "signature or privateKey is required")
		}
		signature, err = cryptoutil.Sign(req.PrivateKey, []byte(hash))
		if err != nil {
			return Entry{}, err
		}
	}
	draft.Signature = signature

	if err := l.verifySignatureForAppend(draft, req.OriginSystem, now); err != nil {
		return Entry{}, err
	}

	l.entries = append(l.entries, draft)

	if l.autosave && l.path != "" {
		if err := l.saveLocked(now); err != nil {
			l.entries = l.entries[:len(l.entries)-1]
			return Entry{}, err
		}
	}

	l.metrics.IncLedgerEntryAppended(req.ActionType)
	l.bus.Publish(events.Event{
		Type: events.TypeEntryAppended,
		Attributes: map[string]string{
			"agentId":    req.AgentID,
			"actionType": req.ActionType,
			"hash":       draft.Hash,
		},
	})
	return draft, nil
}

// verifySignatureForAppend routes verification through the attached
// Registry when present (auto-registering an unknown identity), or falls
// back to local signature verification otherwise.
func (l *Ledger) verifySignatureForAppend(draft Entry, originSystem string, now time.Time) error {
	if l.registry == nil {
		return cryptoutil.Verify(draft.PublicKeyPEM, []byte(draft.Hash), draft.Signature)
	}

	result := l.registry.ValidateAction(registry.ValidateActionRequest{
		AgentID:      draft.AgentID,
		PublicKeyPEM: draft.PublicKeyPEM,
		Message:      []byte(draft.Hash),
		SignatureHex: draft.Signature,
		OriginSystem: originSystem,
	}, now)
	if result.Valid {
		return nil
	}
	if result.Reason == string(errs.IdentityNotFound) && len(draft.PublicKeyPEM) > 0 {
		if _, err := l.registry.RegisterIdentity(registry.RegisterIdentityRequest{
			PublicKeyPEM: draft.PublicKeyPEM,
			OriginSystem: originSystem,
			OverrideID:   draft.AgentID,
		}, now); err != nil {
			return err
		}
		retry := l.registry.ValidateAction(registry.ValidateActionRequest{
			AgentID:      draft.AgentID,
			PublicKeyPEM: draft.PublicKeyPEM,
			Message:      []byte(draft.Hash),
			SignatureHex: draft.Signature,
			OriginSystem: originSystem,
		}, now)
		if retry.Valid {
			return nil
		}
		return errs.New(errs.Code(retry.Reason), "ledger append rejected by registry")
	}
	return errs.New(errs.Code(result.Reason), "ledger append rejected by registry")
}

// VerifyResult is the outcome of VerifyChain.
type VerifyResult struct {
	Valid  bool
	Index  *uint64
	Reason string
}

// VerifyChain walks the entries in order, checking hash integrity, prevHash
// linkage, and signature validity, stopping at the first failure (spec.md
// §4.7).
func (l *Ledger) VerifyChain() VerifyResult {
	l.mu.RLock()
	defer l.mu.RUnlock()

	for i, entry := range l.entries {
		recomputed, err := entry.recomputeHash()
		if err != nil || recomputed != entry.Hash {
			idx := uint64(i)
			l.metrics.SetLedgerChainValid(false)
			result := VerifyResult{Index: &idx, Reason: string(errs.HashMismatch)}
			l.publishChainVerified(result)
			return result
		}
		if i == 0 {
			if entry.PrevHash != nil {
				idx := uint64(i)
				l.metrics.SetLedgerChainValid(false)
				result := VerifyResult{Index: &idx, Reason: string(errs.GenesisPrevHashNotNull)}
				l.publishChainVerified(result)
				return result
			}
		} else {
			if entry.PrevHash == nil || *entry.PrevHash != l.entries[i-1].Hash {
				idx := uint64(i)
				l.metrics.SetLedgerChainValid(false)
				result := VerifyResult{Index: &idx, Reason: string(errs.ChainLinkBroken)}
				l.publishChainVerified(result)
				return result
			}
		}
		if err := cryptoutil.Verify(entry.PublicKeyPEM, []byte(entry.Hash), entry.Signature); err != nil {
			idx := uint64(i)
			l.metrics.SetLedgerChainValid(false)
			result := VerifyResult{Index: &idx, Reason: string(errs.InvalidSignature)}
			l.publishChainVerified(result)
			return result
		}
	}
	l.metrics.SetLedgerChainValid(true)
	result := VerifyResult{Valid: true}
	l.publishChainVerified(result)
	return result
}

func (l *Ledger) publishChainVerified(result VerifyResult) {
	attrs := map[string]string{}
	if result.Valid {
		attrs["valid"] = "true"
	} else {
		attrs["valid"] = "false"
		attrs["reason"] = result.Reason
	}
	l.bus.Publish(events.Event{Type: events.TypeChainVerified, Attributes: attrs})
}

// Entries returns a defensive copy of the ledger's entries in index order.
func (l *Ledger) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// EntriesForAgent returns a defensive copy of only the entries whose
// agentId matches id, in index order.
func (l *Ledger) EntriesForAgent(id string) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Entry
	for _, e := range l.entries {
		if e.AgentID == id {
			out = append(out, e)
		}
	}
	return out
}
