package substrate

import (
	"crypto/rand"
	"crypto/rsa"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentrust/substrate/internal/cryptoutil"
	"github.com/agentrust/substrate/internal/governance"
	"github.com/agentrust/substrate/internal/ledger"
	"github.com/agentrust/substrate/internal/registry"
	"github.com/agentrust/substrate/internal/scoring"
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

func openTestSubstrate(t *testing.T) *Substrate {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "substrate.toml"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenWritesDefaultConfigAndStartsEmpty(t *testing.T) {
	s := openTestSubstrate(t)
	history := s.GetActivityHistory("")
	if len(history) != 0 {
		t.Fatalf("expected empty ledger on first open, got %d entries", len(history))
	}
}

func TestRegisterAgentThenValidateSignature(t *testing.T) {
	s := openTestSubstrate(t)
	priv, pub := newKey(t)
	now := time.Now()

	ident, err := s.RegisterAgent(RegisterAgentRequest{
		PublicKeyPEM: pub,
		OriginSystem: "origin-a",
	}, now)
	if err != nil {
		t.Fatalf("RegisterAgent: %v", err)
	}

	message := []byte("do the thing")
	sig, err := cryptoutil.Sign(priv, message)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	result := s.ValidateIdentitySignature(registry.ValidateActionRequest{
		AgentID:      ident.ID,
		Message:      message,
		SignatureHex: sig,
	}, now.Add(time.Second))
	if !result.Valid {
		t.Fatalf("expected valid signature, got reason %q", result.Reason)
	}
}

func TestRecordActionThenGetActivityHistory(t *testing.T) {
	s := openTestSubstrate(t)
	priv, pub := newKey(t)
	now := time.Now()

	ident, err := s.RegisterAgent(RegisterAgentRequest{PublicKeyPEM: pub, OriginSystem: "origin-a"}, now)
	if err != nil {
		t.Fatalf("RegisterAgent: %v", err)
	}

	_, err = s.RecordAction(ledger.AddEntryRequest{
		AgentID:      ident.ID,
		PublicKeyPEM: pub,
		PrivateKey:   priv,
		ActionType:   "ECONOMIC",
		Details:      map[string]interface{}{"revenue": 10.0, "pnl": 5.0},
		OriginSystem: "origin-a",
	}, now.Add(time.Second))
	if err != nil {
		t.Fatalf("RecordAction: %v", err)
	}

	history := s.GetActivityHistory(ident.ID)
	if len(history) != 1 {
		t.Fatalf("expected one ledger entry for the agent, got %d", len(history))
	}
}

func TestGetTrustScoreReturnsRegisteredProfile(t *testing.T) {
	s := openTestSubstrate(t)
	_, pub := newKey(t)
	now := time.Now()

	ident, err := s.RegisterAgent(RegisterAgentRequest{PublicKeyPEM: pub, OriginSystem: "origin-a"}, now)
	if err != nil {
		t.Fatalf("RegisterAgent: %v", err)
	}

	profile, err := s.GetTrustScore(ident.ID)
	if err != nil {
		t.Fatalf("GetTrustScore: %v", err)
	}
	if profile.Composite != ident.TrustScore {
		t.Fatalf("expected trust score %v, got %v", ident.TrustScore, profile.Composite)
	}
}

func TestValidateProposalAdmitsUnderLaxStrictness(t *testing.T) {
	s := openTestSubstrate(t)
	_, pub := newKey(t)
	now := time.Now()

	ident, err := s.RegisterAgent(RegisterAgentRequest{PublicKeyPEM: pub, OriginSystem: "origin-a"}, now)
	if err != nil {
		t.Fatalf("RegisterAgent: %v", err)
	}

	result, err := s.ValidateProposal(ident.ID, governance.Proposal{RiskScore: 0.05}, "", now)
	if err != nil {
		t.Fatalf("ValidateProposal: %v", err)
	}
	if !result.Allowed {
		t.Fatalf("expected proposal admitted for a low-risk proposal from a new identity, got reason %q", result.Reason)
	}
}

func TestValidateProposalUsesContextProjectionNotComposite(t *testing.T) {
	s := openTestSubstrate(t)
	_, pub := newKey(t)
	now := time.Now()

	// Composite is dragged down to 0.35 (RESTRICTED/HIGH_FRICTION) by zeroed
	// efficiency/compliance/riskSafety/competence, but the collaborative
	// projection (0.7*cooperation + 0.2*reliability + 0.1*competence) stays
	// at 0.9 (ELITE_AUTHORITY/LAX) since cooperation and reliability are
	// both 1.0.
	perf := &scoring.Performance{
		Reliability:       1.0,
		Uptime:            1.0,
		CooperationScore:  1.0,
		BudgetEfficiency:  0,
		ComplianceHistory: 0,
		RiskExposure:      1.0,
		PolicyViolations:  5,
		TaskSuccessRate:   0,
	}

	ident, err := s.RegisterAgent(RegisterAgentRequest{PublicKeyPEM: pub, OriginSystem: "origin-a", Performance: perf}, now)
	if err != nil {
		t.Fatalf("RegisterAgent: %v", err)
	}

	composite, err := s.ValidateProposal(ident.ID, governance.Proposal{RiskScore: 0.05}, "", now)
	if err != nil {
		t.Fatalf("ValidateProposal (composite): %v", err)
	}
	if composite.StrictnessLevel != "HIGH_FRICTION" {
		t.Fatalf("expected composite-scored proposal to land at HIGH_FRICTION, got %q", composite.StrictnessLevel)
	}

	collaborative, err := s.ValidateProposal(ident.ID, governance.Proposal{RiskScore: 0.05}, "collaborative", now)
	if err != nil {
		t.Fatalf("ValidateProposal (collaborative): %v", err)
	}
	if collaborative.StrictnessLevel != "LAX" {
		t.Fatalf("expected collaborative-context proposal to land at LAX, got %q", collaborative.StrictnessLevel)
	}
}
