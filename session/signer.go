// Package session implements the signed-cookie session subsystem: an
// HMAC signer for the cookie value, a pluggable store abstraction, and
// the Session value itself. The signer is deliberately built on
// crypto/hmac, crypto/sha256, crypto/subtle, and encoding/hex from the
// standard library rather than a third-party signer (see DESIGN.md) —
// the specification fixes the exact wire format ("id" + "." + lowercase
// hex HMAC-SHA256) and constant-time comparison algorithm, which is
// precisely what those packages provide with no adaptation needed.
package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/kiln-dev/kiln/kerrors"
)

const separator = '.'

// Signer signs and verifies session identifiers with HMAC-SHA256.
type Signer struct {
	secret []byte
}

// NewSigner constructs a Signer from secret. It fails with a
// kerrors.Configuration error if secret is empty or shorter than 32
// bytes, matching the specification's minimum-entropy requirement.
func NewSigner(secret []byte) (*Signer, error) {
	if len(secret) < 32 {
		return nil, kerrors.ConfigurationErr("session signer secret must be at least 32 bytes, got %d", len(secret))
	}
	// Copy defensively so a caller mutating their slice afterward cannot
	// change the signer's key.
	owned := make([]byte, len(secret))
	copy(owned, secret)
	return &Signer{secret: owned}, nil
}

// Sign returns "id.signature", where signature is the lowercase-hex
// HMAC-SHA256 of id under the signer's secret.
func (s *Signer) Sign(id string) string {
	return id + string(separator) + s.digest(id)
}

// Verify splits signed on the last separator, recomputes the HMAC over
// the id component, and compares it to the supplied signature in
// constant time. It returns the id and true on success, or "" and false
// on any mismatch — malformed input, wrong length, or wrong signature —
// without distinguishing the failure mode to the caller.
func (s *Signer) Verify(signed string) (string, bool) {
	idx := strings.LastIndexByte(signed, separator)
	if idx < 0 {
		return "", false
	}
	id, sig := signed[:idx], signed[idx+1:]

	expected := s.digest(id)
	if len(sig) != len(expected) {
		return "", false
	}
	if subtle.ConstantTimeCompare([]byte(sig), []byte(expected)) != 1 {
		return "", false
	}
	return id, true
}

func (s *Signer) digest(id string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(id))
	return hex.EncodeToString(mac.Sum(nil))
}
