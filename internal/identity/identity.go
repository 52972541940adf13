// Package identity implements the Identity record (C2): an agent's
// immutable attributes, performance snapshot, and derived trust profile.
// Every mutation returns a new, frozen value rather than mutating in place
// (spec.md §3 Invariants, §9 "copy-on-write identities").
package identity

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/agentrust/substrate/internal/cryptoutil"
	"github.com/agentrust/substrate/internal/scoring"
)

// CurrentSchemaVersion is the schema version stamped on freshly constructed
// identities and the threshold store migrations run up to.
const CurrentSchemaVersion = 1

// VersionEntry is one entry in an identity's monotonically growing version
// history (spec.md §3).
type VersionEntry struct {
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
	Action    string `json:"action"`
	Details   string `json:"details"`
}

// Metadata bundles the creation timestamp, dotted version string, and
// version history (spec.md §3).
type Metadata struct {
	CreationTimestamp string         `json:"creationTimestamp"`
	IdentityVersion   string         `json:"identityVersion"`
	VersionHistory    []VersionEntry `json:"versionHistory"`
}

func (m Metadata) clone() Metadata {
	history := make([]VersionEntry, len(m.VersionHistory))
	copy(history, m.VersionHistory)
	return Metadata{
		CreationTimestamp: m.CreationTimestamp,
		IdentityVersion:   m.IdentityVersion,
		VersionHistory:    history,
	}
}

// Identity is the immutable, frozen-after-construction agent record from
// spec.md §3. Every field is copied on read/write at the package boundary so
// callers cannot mutate a stored Identity through an aliased slice or map.
type Identity struct {
	ID                  string              `json:"id"`
	PublicKeyPEM        cryptoutil.PEMBytes `json:"publicKey"`
	OriginSystem        string              `json:"originSystem"`
	Metadata            Metadata            `json:"metadata"`
	Performance         scoring.Performance `json:"performance"`
	TrustProfile        scoring.Profile     `json:"trustProfile"`
	TrustScore          float64             `json:"trustScore"`
	Revoked             bool                `json:"revoked"`
	RevocationReason    string              `json:"revocationReason,omitempty"`
	RevocationTimestamp string              `json:"revocationTimestamp,omitempty"`
	SchemaVersion       int                 `json:"schemaVersion"`
}

// Clone returns a deep, independent copy of id.
func (id Identity) Clone() Identity {
	clone := id
	clone.PublicKeyPEM = append([]byte(nil), id.PublicKeyPEM...)
	clone.Metadata = id.Metadata.clone()
	return clone
}

// New constructs a fresh Identity following spec.md §4.2's construction
// sequence: derive or accept the id, initialize metadata/performance
// defaults when absent, and compute the initial trust profile.
func New(publicKeyPEM []byte, originSystem string, overrideID string, metadata *Metadata, perf *scoring.Performance, now time.Time) Identity {
	id := overrideID
	if id == "" {
		id = cryptoutil.FingerprintID(publicKeyPEM)
	}

	var md Metadata
	if metadata != nil {
		md = metadata.clone()
	} else {
		md = Metadata{
			CreationTimestamp: now.UTC().Format(time.RFC3339),
			IdentityVersion:   "1.0.0",
			VersionHistory: []VersionEntry{{
				Version:   "1.0.0",
				Timestamp: now.UTC().Format(time.RFC3339),
				Action:    "IDENTITY_INITIALIZED",
				Details:   "identity created",
			}},
		}
	}

	var performance scoring.Performance
	if perf != nil {
		performance = *perf
	} else {
		performance = scoring.DefaultPerformance()
	}

	profile := scoring.Score(performance, nil, now)

	return Identity{
		ID:            id,
		PublicKeyPEM:  append([]byte(nil), publicKeyPEM...),
		OriginSystem:  originSystem,
		Metadata:      md,
		Performance:   performance,
		TrustProfile:  profile,
		TrustScore:    profile.Composite,
		SchemaVersion: CurrentSchemaVersion,
	}
}

// VerifySignature checks an RSA-PSS/SHA-256 signature of message against
// this identity's stored public key (spec.md §4.2).
func (id Identity) VerifySignature(message []byte, signatureHex string) bool {
	return cryptoutil.Verify(id.PublicKeyPEM, message, signatureHex) == nil
}

// PublicKey parses and returns the identity's RSA public key.
func (id Identity) PublicKey() (*rsa.PublicKey, error) {
	return cryptoutil.ParsePublicKeyPEM(id.PublicKeyPEM)
}

// Upgrade returns a new Identity with reason/details appended to the version
// history and the patch component of IdentityVersion incremented (spec.md
// §3 Invariants, §4.2).
func (id Identity) Upgrade(action, details string, now time.Time) Identity {
	next := id.Clone()
	nextVersion := bumpPatch(next.Metadata.IdentityVersion)
	next.Metadata.IdentityVersion = nextVersion
	next.Metadata.VersionHistory = append(next.Metadata.VersionHistory, VersionEntry{
		Version:   nextVersion,
		Timestamp: now.UTC().Format(time.RFC3339),
		Action:    action,
		Details:   details,
	})
	return next
}

// UpdatePerformance merges updates over the current performance snapshot,
// recomputes pnl.netProfit, recomputes the trust profile, and upgrades the
// identity version (spec.md §4.2).
func (id Identity) UpdatePerformance(delta scoring.PerformanceDelta, reason string, recentActions []scoring.Action, now time.Time) Identity {
	merged := id.Performance.Merge(delta)
	merged.LastUpdated = now.UTC().Format(time.RFC3339)

	prior := id.Performance.RiskExposure
	profile := scoring.Score(merged, &scoring.History{PriorRiskExposure: &prior, DataPoints: len(recentActions)}, now)

	next := id.Clone()
	next.Performance = merged
	next.TrustProfile = profile
	next.TrustScore = profile.Composite
	return next.Upgrade(reason, "Metrics updated: trust profile recomputed", now)
}

// EvolveReputation applies natural reputation evolution (C4) over elapsed
// time and recent action history, blending metrics rather than overwriting
// them outright (spec.md §4.4). This is the function the public API's
// updateReputation(id, recentActions[]) calls; UpdatePerformance remains
// for direct, caller-supplied metric corrections.
func (id Identity) EvolveReputation(actions []scoring.Action, cfg scoring.EvolutionConfig, now time.Time) Identity {
	lastUpdated := now
	stamp := id.Performance.LastUpdated
	if stamp == "" {
		stamp = id.Metadata.CreationTimestamp
	}
	if stamp != "" {
		if parsed, err := time.Parse(time.RFC3339, stamp); err == nil {
			lastUpdated = parsed
		}
	}
	evolved := scoring.Evolve(id.Performance, actions, lastUpdated, now, cfg)
	evolved.PnL = evolved.PnL.WithNetProfit()

	prior := id.Performance.RiskExposure
	profile := scoring.Score(evolved, &scoring.History{PriorRiskExposure: &prior, DataPoints: len(actions)}, now)

	next := id.Clone()
	next.Performance = evolved
	next.TrustProfile = profile
	next.TrustScore = profile.Composite
	return next.Upgrade("REPUTATION_EVOLVED", fmt.Sprintf("evolved from %d recent action(s)", len(actions)), now)
}

// Revoke returns a revoked copy of the identity (spec.md §4.1).
func (id Identity) Revoke(reason string, now time.Time) Identity {
	next := id.Clone()
	next.Revoked = true
	next.RevocationReason = reason
	next.RevocationTimestamp = now.UTC().Format(time.RFC3339)
	return next
}

func bumpPatch(version string) string {
	major, minor, patch := parseVersion(version)
	return fmt.Sprintf("%d.%d.%d", major, minor, patch+1)
}

func parseVersion(v string) (int, int, int) {
	var major, minor, patch int
	n, err := fmt.Sscanf(v, "%d.%d.%d", &major, &minor, &patch)
	if err != nil || n != 3 {
		return 1, 0, 0
	}
	return major, minor, patch
}
