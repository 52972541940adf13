// Package cryptoutil wraps the RSA-PSS/SHA-256 signing primitives and the
// canonical serialization used to hash ledger entries. Key-pair generation
// is explicitly out of scope (spec.md §1) — callers bring their own
// *rsa.PrivateKey / PEM-encoded public key from the host crypto library;
// this package only signs, verifies, hashes and encodes.
package cryptoutil

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
)

// PEMBytes is raw PEM text that marshals to JSON as a plain string rather
// than the base64 encoding encoding/json applies to a bare []byte, so
// identity and ledger files on disk carry human-readable PEM (spec.md §6)
// instead of a base64 blob.
type PEMBytes []byte

// MarshalJSON renders p as a JSON string of its PEM text.
func (p PEMBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(p))
}

// UnmarshalJSON parses a JSON string into p's PEM text.
func (p *PEMBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*p = PEMBytes(s)
	return nil
}

// ErrInvalidPEM is returned when a supplied public key PEM block cannot be
// decoded as either an SPKI or PKCS#1 RSA public key.
var ErrInvalidPEM = errors.New("cryptoutil: invalid PEM-encoded RSA public key")

// SHA256Hex returns the lowercase hex-encoded SHA-256 digest of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SHA256 returns the raw SHA-256 digest of data.
func SHA256(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// ParsePublicKeyPEM decodes a PEM-encoded RSA public key, accepting either
// SPKI (PKIX) or PKCS#1 encodings as permitted by spec.md §6.
func ParsePublicKeyPEM(pemBytes []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, ErrInvalidPEM
	}
	if pub, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return pub, nil
	}
	anyPub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPEM, err)
	}
	rsaPub, ok := anyPub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA key", ErrInvalidPEM)
	}
	return rsaPub, nil
}

// EncodePublicKeyPEM renders an RSA public key as PKIX/SPKI PEM, the default
// encoding produced by this package's own signing helpers.
func EncodePublicKeyPEM(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// Sign produces an RSA-PSS/SHA-256 signature over the SHA-256 digest of
// message, encoded as lowercase hex per spec.md §6.
func Sign(priv *rsa.PrivateKey, message []byte) (string, error) {
	if priv == nil {
		return "", errors.New("cryptoutil: nil private key")
	}
	digest := sha256.Sum256(message)
	sig, err := rsa.SignPSS(rand.Reader, priv, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
		Hash:       crypto.SHA256,
	})
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sig), nil
}

// Verify checks a hex-encoded RSA-PSS/SHA-256 signature of message against
// the supplied PEM-encoded public key.
func Verify(publicKeyPEM []byte, message []byte, signatureHex string) error {
	pub, err := ParsePublicKeyPEM(publicKeyPEM)
	if err != nil {
		return err
	}
	return VerifyWithKey(pub, message, signatureHex)
}

// VerifyWithKey checks a hex-encoded RSA-PSS/SHA-256 signature against an
// already-parsed RSA public key.
func VerifyWithKey(pub *rsa.PublicKey, message []byte, signatureHex string) error {
	if pub == nil {
		return errors.New("cryptoutil: nil public key")
	}
	sig, err := hex.DecodeString(signatureHex)
	if err != nil {
		return fmt.Errorf("cryptoutil: malformed signature: %w", err)
	}
	digest := sha256.Sum256(message)
	return rsa.VerifyPSS(pub, crypto.SHA256, digest[:], sig, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
		Hash:       crypto.SHA256,
	})
}

// FingerprintID derives the default `did:agent:<hex>` identity fingerprint
// from raw PEM-encoded public key bytes (spec.md §3).
func FingerprintID(publicKeyPEM []byte) string {
	return "did:agent:" + SHA256Hex(publicKeyPEM)
}
