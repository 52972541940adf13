// Package registry implements the Identity Registry (C7): a keyed,
// persistent store that issues, looks up, revokes, and schema-migrates
// identities, and validates signed actions with per-identity replay
// protection (spec.md §4.1).
package registry

import (
	"strconv"
	"sync"
	"time"

	"github.com/agentrust/substrate/internal/cryptoutil"
	"github.com/agentrust/substrate/internal/errs"
	"github.com/agentrust/substrate/internal/events"
	"github.com/agentrust/substrate/internal/identity"
	"github.com/agentrust/substrate/internal/scoring"
	"github.com/agentrust/substrate/observability/metrics"
)

// ReplayCache is the optional durable accelerator (C13) a Registry may be
// constructed with. When present, validateAction reads the last accepted
// timestamp from it before the in-memory map. Each accepted timestamped
// action is written to both the cache and the JSON store. The JSON store
// remains the single source of truth: the cache is rebuilt from it on Open
// and never holds data absent from the store.
type ReplayCache interface {
	Get(id string) (epochMillis int64, found bool, err error)
	Put(id string, epochMillis int64) error
	Close() error
}

// MigrationFunc transforms an identity stored under schema version
// "fromVersion" into the shape expected by the next version.
type MigrationFunc func(identity.Identity) identity.Identity

// Registry is the keyed identity store. The write lock serializes
// registerIdentity/revokeIdentity/validateAction/migrateIdentity; readers
// (getIdentityById, getIdentityByPublicKey) take the read lock, per the
// single-writer-lock model in spec.md §5.
type Registry struct {
	mu          sync.RWMutex
	path        string
	identities  map[string]identity.Identity
	byPublicKey map[string]string
	lastAction  map[string]int64
	migrations  map[int]MigrationFunc
	replayCache ReplayCache
	bus         *events.Bus
	metrics     *metrics.SubstrateMetrics
}

// Option configures a Registry at construction.
type Option func(*Registry)

// WithReplayCache attaches an optional C13 durable accelerator.
func WithReplayCache(cache ReplayCache) Option {
	return func(r *Registry) { r.replayCache = cache }
}

// WithEventBus attaches a C12 event bus; mutating operations publish to it.
func WithEventBus(bus *events.Bus) Option {
	return func(r *Registry) { r.bus = bus }
}

// WithMetrics attaches a C11 Prometheus metrics registry.
func WithMetrics(m *metrics.SubstrateMetrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// WithMigration registers a schema migration keyed by the version it
// upgrades identities away from.
func WithMigration(fromVersion int, fn MigrationFunc) Option {
	return func(r *Registry) {
		if r.migrations == nil {
			r.migrations = map[int]MigrationFunc{}
		}
		r.migrations[fromVersion] = fn
	}
}

// Open loads the registry's JSON store at path (creating an empty one if
// absent) and applies any registered schema migrations in ascending order
// before returning, per spec.md §4.1 "Store migration on load".
func Open(path string, opts ...Option) (*Registry, error) {
	store, err := loadStore(path)
	if err != nil {
		return nil, err
	}
	r := &Registry{
		path:        path,
		identities:  map[string]identity.Identity{},
		byPublicKey: map[string]string{},
		lastAction:  map[string]int64{},
	}
	for _, opt := range opts {
		opt(r)
	}

	for id, ident := range store.Identities {
		if ident.SchemaVersion == 0 {
			ident.SchemaVersion = 1
		}
		r.identities[id] = ident
		r.byPublicKey[string(ident.PublicKeyPEM)] = id
	}
	for id, ts := range store.LastActionTimestamps {
		r.lastAction[id] = ts
	}

	if store.Meta.SchemaVersion > identity.CurrentSchemaVersion {
		return nil, errs.New(errs.SchemaVersionUnsupported,
			"store schema version is newer than this build supports").
			WithDetail(strconv.Itoa(store.Meta.SchemaVersion))
	}
	if store.Meta.SchemaVersion < identity.CurrentSchemaVersion {
		for version := store.Meta.SchemaVersion; version < identity.CurrentSchemaVersion; version++ {
			migrate, ok := r.migrations[version]
			if !ok {
				continue
			}
			for id, ident := range r.identities {
				r.identities[id] = migrate(ident)
			}
		}
	}
	if r.replayCache != nil {
		for id, ts := range r.lastAction {
			_ = r.replayCache.Put(id, ts)
		}
	}
	return r, nil
}

// RegisterIdentityRequest is the input to RegisterIdentity.
type RegisterIdentityRequest struct {
	PublicKeyPEM []byte
	OriginSystem string
	OverrideID   string
	Metadata     *identity.Metadata
	Performance  *scoring.Performance
	Force        bool
}

// RegisterIdentity constructs and stores a fresh Identity (spec.md §4.1).
func (r *Registry) RegisterIdentity(req RegisterIdentityRequest, now time.Time) (identity.Identity, error) {
	if len(req.PublicKeyPEM) == 0 || req.OriginSystem == "" {
		return identity.Identity{}, errs.New(errs.MissingRequired, "publicKey and originSystem are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	pemKey := string(req.PublicKeyPEM)
	if existingID, found := r.byPublicKey[pemKey]; found {
		existing := r.identities[existingID]
		if existing.OriginSystem != req.OriginSystem && !req.Force {
			return identity.Identity{}, errs.Newf(errs.OriginConflict,
				"publicKey already bound to origin %q", existing.OriginSystem)
		}
	}

	ident := identity.New(req.PublicKeyPEM, req.OriginSystem, req.OverrideID, req.Metadata, req.Performance, now)
	r.identities[ident.ID] = ident
	r.byPublicKey[pemKey] = ident.ID

	if err := r.persistLocked(); err != nil {
		return identity.Identity{}, err
	}

	r.metrics.IncIdentityRegistered(req.OriginSystem)
	r.bus.Publish(events.Event{
		Type: events.TypeIdentityRegistered,
		Attributes: map[string]string{
			"identityId":   ident.ID,
			"originSystem": ident.OriginSystem,
		},
	})
	return ident.Clone(), nil
}

// GetIdentityByID looks up an identity by its id.
func (r *Registry) GetIdentityByID(id string) (identity.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ident, ok := r.identities[id]
	if !ok {
		return identity.Identity{}, false
	}
	return ident.Clone(), true
}

// GetIdentityByPublicKey looks up an identity by its raw PEM public key.
func (r *Registry) GetIdentityByPublicKey(publicKeyPEM []byte) (identity.Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPublicKey[string(publicKeyPEM)]
	if !ok {
		return identity.Identity{}, false
	}
	ident := r.identities[id]
	return ident.Clone(), true
}

// RevokeIdentity marks an identity revoked and persists the change.
func (r *Registry) RevokeIdentity(id, reason string, now time.Time) (identity.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ident, ok := r.identities[id]
	if !ok {
		return identity.Identity{}, errs.Newf(errs.IdentityNotFound, "no identity with id %q", id)
	}
	next := ident.Revoke(reason, now)
	r.identities[id] = next

	if err := r.persistLocked(); err != nil {
		return identity.Identity{}, err
	}

	r.metrics.IncIdentityRevoked(reason)
	r.bus.Publish(events.Event{
		Type: events.TypeIdentityRevoked,
		Attributes: map[string]string{
			"identityId": id,
			"reason":     reason,
		},
	})
	return next.Clone(), nil
}

// ValidateActionRequest is the input to ValidateAction.
type ValidateActionRequest struct {
	AgentID      string
	PublicKeyPEM []byte
	Message      []byte
	SignatureHex string
	// Timestamp is the raw ISO-8601 timestamp string, if the caller supplied
	// one. A nil Timestamp skips both the replay check and the subsequent
	// lastActionTimestamp update, per spec.md §3's "bearing a timestamp".
	Timestamp    *string
	OriginSystem string
}

// ValidateActionResult is the admit/reject outcome of ValidateAction.
type ValidateActionResult struct {
	Valid    bool
	Reason   string
	Identity *identity.Identity
}

// ValidateAction resolves, revocation/origin/replay-checks, and
// signature-verifies a proposed action (spec.md §4.1).
func (r *Registry) ValidateAction(req ValidateActionRequest, now time.Time) ValidateActionResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := req.AgentID
	if id == "" && len(req.PublicKeyPEM) > 0 {
		if resolved, ok := r.byPublicKey[string(req.PublicKeyPEM)]; ok {
			id = resolved
		}
	}
	ident, ok := r.identities[id]
	if !ok {
		r.observeValidate("IDENTITY_NOT_FOUND")
		return ValidateActionResult{Reason: string(errs.IdentityNotFound)}
	}
	if ident.Revoked {
		r.observeValidate("IDENTITY_REVOKED")
		return ValidateActionResult{Reason: string(errs.IdentityRevoked)}
	}
	if req.OriginSystem != "" && req.OriginSystem != ident.OriginSystem {
		r.observeValidate("ORIGIN_MISMATCH")
		return ValidateActionResult{Reason: string(errs.OriginMismatch)}
	}

	var newTimestampMillis int64
	hasTimestamp := false
	if req.Timestamp != nil {
		parsed, err := time.Parse(time.RFC3339, *req.Timestamp)
		if err != nil {
			r.observeValidate("INVALID_TIMESTAMP")
			return ValidateActionResult{Reason: string(errs.InvalidTimestamp)}
		}
		newTimestampMillis = parsed.UnixMilli()
		hasTimestamp = true

		last, found := r.lastActionFor(id)
		if found && newTimestampMillis <= last {
			r.observeValidate("REPLAY_DETECTED")
			return ValidateActionResult{Reason: string(errs.ReplayDetected)}
		}
	}

	if err := cryptoutil.Verify(ident.PublicKeyPEM, req.Message, req.SignatureHex); err != nil {
		r.observeValidate("INVALID_SIGNATURE")
		return ValidateActionResult{Reason: string(errs.InvalidSignature)}
	}

	if hasTimestamp {
		r.lastAction[id] = newTimestampMillis
		if r.replayCache != nil {
			_ = r.replayCache.Put(id, newTimestampMillis)
		}
		if err := r.persistLocked(); err != nil {
			return ValidateActionResult{Reason: err.Error()}
		}
	}

	r.observeValidate("VALID")
	result := ident.Clone()
	return ValidateActionResult{Valid: true, Identity: &result}
}

func (r *Registry) lastActionFor(id string) (int64, bool) {
	if r.replayCache != nil {
		if ts, found, err := r.replayCache.Get(id); err == nil && found {
			return ts, true
		}
	}
	ts, found := r.lastAction[id]
	return ts, found
}

func (r *Registry) observeValidate(result string) {
	r.metrics.IncValidateAction(result)
}

// UpdateIdentity applies transform to a deep clone of the stored record and
// writes back the result, without touching schema version (unlike
// MigrateIdentity). This is the general-purpose write path for callers that
// already produce a fully-formed next Identity (e.g. reputation evolution).
func (r *Registry) UpdateIdentity(id string, transform func(identity.Identity) identity.Identity) (identity.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ident, ok := r.identities[id]
	if !ok {
		return identity.Identity{}, errs.Newf(errs.IdentityNotFound, "no identity with id %q", id)
	}
	next := transform(ident.Clone())
	r.identities[id] = next

	if err := r.persistLocked(); err != nil {
		return identity.Identity{}, err
	}
	return next.Clone(), nil
}

// MigrateIdentity applies transform to a deep clone of the stored record,
// stamps the current schema version, appends a SCHEMA_MIGRATION history
// entry, and writes back (spec.md §4.1).
func (r *Registry) MigrateIdentity(id string, transform func(identity.Identity) identity.Identity, details string, now time.Time) (identity.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ident, ok := r.identities[id]
	if !ok {
		return identity.Identity{}, errs.Newf(errs.IdentityNotFound, "no identity with id %q", id)
	}
	clone := ident.Clone()
	transformed := transform(clone)
	transformed.SchemaVersion = identity.CurrentSchemaVersion
	next := transformed.Upgrade("SCHEMA_MIGRATION", details, now)
	r.identities[id] = next

	if err := r.persistLocked(); err != nil {
		return identity.Identity{}, err
	}
	return next.Clone(), nil
}

// persistLocked writes the current in-memory state to the JSON store. The
// caller must hold r.mu for writing.
func (r *Registry) persistLocked() error {
	if r.path == "" {
		return nil
	}
	store := &storeFile{
		Identities:           r.identities,
		Meta:                 storeMeta{SchemaVersion: identity.CurrentSchemaVersion},
		LastActionTimestamps: r.lastAction,
	}
	if err := saveStore(r.path, store); err != nil {
		return errs.New(errs.ValidationFailed, "persist registry store").Wrap(err)
	}
	return nil
}

// Close releases the optional replay cache's resources.
func (r *Registry) Close() error {
	if r.replayCache == nil {
		return nil
	}
	return r.replayCache.Close()
}
