package registry

import (
	"crypto/rand"
	"crypto/rsa"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentrust/substrate/internal/cryptoutil"
	"github.com/agentrust/substrate/internal/errs"
	"github.com/agentrust/substrate/internal/identity"
)

func newKey(t *testing.T) (*rsa.PrivateKey, []byte) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pub, err := cryptoutil.EncodePublicKeyPEM(&priv.PublicKey)
	if err != nil {
		t.Fatalf("encode public key: %v", err)
	}
	return priv, pub
}

func openRegistry(t *testing.T) *Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "identities.json")
	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return r
}

func TestRegisterIdentityPersistsAndRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identities.json")
	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_, pub := newKey(t)
	now := time.Now()
	ident, err := r.RegisterIdentity(RegisterIdentityRequest{PublicKeyPEM: pub, OriginSystem: "origin-a"}, now)
	if err != nil {
		t.Fatalf("RegisterIdentity: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, ok := reopened.GetIdentityByID(ident.ID)
	if !ok {
		t.Fatalf("expected identity to survive reopen")
	}
	if got.OriginSystem != "origin-a" {
		t.Fatalf("expected originSystem preserved, got %q", got.OriginSystem)
	}
}

func TestRegisterIdentityMissingRequiredFields(t *testing.T) {
	r := openRegistry(t)
	_, err := r.RegisterIdentity(RegisterIdentityRequest{}, time.Now())
	if !errs.Is(err, errs.MissingRequired) {
		t.Fatalf("expected MISSING_REQUIRED, got %v", err)
	}
}

func TestRegisterIdentityOriginConflictWithoutForce(t *testing.T) {
	r := openRegistry(t)
	_, pub := newKey(t)
	now := time.Now()
	if _, err := r.RegisterIdentity(RegisterIdentityRequest{PublicKeyPEM: pub, OriginSystem: "origin-a"}, now); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := r.RegisterIdentity(RegisterIdentityRequest{PublicKeyPEM: pub, OriginSystem: "origin-b"}, now)
	if !errs.Is(err, errs.OriginConflict) {
		t.Fatalf("expected ORIGIN_CONFLICT, got %v", err)
	}
	if _, err := r.RegisterIdentity(RegisterIdentityRequest{PublicKeyPEM: pub, OriginSystem: "origin-b", Force: true}, now); err != nil {
		t.Fatalf("expected forced rebind to succeed, got %v", err)
	}
}

func TestValidateActionReplayDetected(t *testing.T) {
	r := openRegistry(t)
	priv, pub := newKey(t)
	now := time.Now()
	ident, err := r.RegisterIdentity(RegisterIdentityRequest{PublicKeyPEM: pub, OriginSystem: "origin-a"}, now)
	if err != nil {
		t.Fatalf("RegisterIdentity: %v", err)
	}

	message := []byte("do the thing")
	sig, err := cryptoutil.Sign(priv, message)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	ts := now.UTC().Format(time.RFC3339)

	first := r.ValidateAction(ValidateActionRequest{
		AgentID: ident.ID, Message: message, SignatureHex: sig, Timestamp: &ts,
	}, now)
	if !first.Valid {
		t.Fatalf("expected first validateAction to succeed, got reason %q", first.Reason)
	}

	second := r.ValidateAction(ValidateActionRequest{
		AgentID: ident.ID, Message: message, SignatureHex: sig, Timestamp: &ts,
	}, now)
	if second.Valid || second.Reason != string(errs.ReplayDetected) {
		t.Fatalf("expected REPLAY_DETECTED on resubmission, got valid=%v reason=%q", second.Valid, second.Reason)
	}
}

func TestValidateActionAfterRevocation(t *testing.T) {
	r := openRegistry(t)
	priv, pub := newKey(t)
	now := time.Now()
	ident, err := r.RegisterIdentity(RegisterIdentityRequest{PublicKeyPEM: pub, OriginSystem: "origin-a"}, now)
	if err != nil {
		t.Fatalf("RegisterIdentity: %v", err)
	}
	if _, err := r.RevokeIdentity(ident.ID, "policy violation", now); err != nil {
		t.Fatalf("RevokeIdentity: %v", err)
	}

	message := []byte("do the thing")
	sig, err := cryptoutil.Sign(priv, message)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	result := r.ValidateAction(ValidateActionRequest{AgentID: ident.ID, Message: message, SignatureHex: sig}, now)
	if result.Valid || result.Reason != string(errs.IdentityRevoked) {
		t.Fatalf("expected IDENTITY_REVOKED, got valid=%v reason=%q", result.Valid, result.Reason)
	}
}

func TestValidateActionUnknownIdentity(t *testing.T) {
	r := openRegistry(t)
	result := r.ValidateAction(ValidateActionRequest{AgentID: "nobody", Message: []byte("x"), SignatureHex: "00"}, time.Now())
	if result.Valid || result.Reason != string(errs.IdentityNotFound) {
		t.Fatalf("expected IDENTITY_NOT_FOUND, got valid=%v reason=%q", result.Valid, result.Reason)
	}
}

func TestValidateActionOriginMismatch(t *testing.T) {
	r := openRegistry(t)
	priv, pub := newKey(t)
	now := time.Now()
	ident, err := r.RegisterIdentity(RegisterIdentityRequest{PublicKeyPEM: pub, OriginSystem: "origin-a"}, now)
	if err != nil {
		t.Fatalf("RegisterIdentity: %v", err)
	}
	message := []byte("x")
	sig, err := cryptoutil.Sign(priv, message)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	result := r.ValidateAction(ValidateActionRequest{AgentID: ident.ID, Message: message, SignatureHex: sig, OriginSystem: "origin-b"}, now)
	if result.Valid || result.Reason != string(errs.OriginMismatch) {
		t.Fatalf("expected ORIGIN_MISMATCH, got valid=%v reason=%q", result.Valid, result.Reason)
	}
}

func TestValidateActionInvalidSignature(t *testing.T) {
	r := openRegistry(t)
	_, pub := newKey(t)
	now := time.Now()
	ident, err := r.RegisterIdentity(RegisterIdentityRequest{PublicKeyPEM: pub, OriginSystem: "origin-a"}, now)
	if err != nil {
		t.Fatalf("RegisterIdentity: %v", err)
	}
	result := r.ValidateAction(ValidateActionRequest{AgentID: ident.ID, Message: []byte("x"), SignatureHex: "deadbeef"}, now)
	if result.Valid || result.Reason != string(errs.InvalidSignature) {
		t.Fatalf("expected INVALID_SIGNATURE, got valid=%v reason=%q", result.Valid, result.Reason)
	}
}

func TestMigrateIdentityAppendsHistoryAndStampsVersion(t *testing.T) {
	r := openRegistry(t)
	_, pub := newKey(t)
	now := time.Now()
	ident, err := r.RegisterIdentity(RegisterIdentityRequest{PublicKeyPEM: pub, OriginSystem: "origin-a"}, now)
	if err != nil {
		t.Fatalf("RegisterIdentity: %v", err)
	}

	migrated, err := r.MigrateIdentity(ident.ID, func(id identity.Identity) identity.Identity {
		id.OriginSystem = "origin-a-v2"
		return id
	}, "backfilled origin tag", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("MigrateIdentity: %v", err)
	}
	if migrated.OriginSystem != "origin-a-v2" {
		t.Fatalf("expected transform applied, got %q", migrated.OriginSystem)
	}
	last := migrated.Metadata.VersionHistory[len(migrated.Metadata.VersionHistory)-1]
	if last.Action != "SCHEMA_MIGRATION" {
		t.Fatalf("expected SCHEMA_MIGRATION history entry, got %q", last.Action)
	}
}
