// ABOUTME: PKCE (RFC 7636) S256 verifier generation and challenge verification
// ABOUTME: The token endpoint itself lives with the external authorization server

package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrPKCEMismatch is returned when a verifier does not hash to the challenge.
var ErrPKCEMismatch = errors.New("pkce verifier does not match challenge")

// GenerateVerifier returns a 43-character code verifier built from 32 random bytes.
func GenerateVerifier() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating code verifier: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Challenge computes the S256 code challenge for a verifier.
func Challenge(verifier string) string {
	h := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(h[:])
}

// VerifyPKCE recomputes the challenge from verifier and compares it in
// constant time.
func VerifyPKCE(verifier, challenge string) error {
	if subtle.ConstantTimeCompare([]byte(Challenge(verifier)), []byte(challenge)) != 1 {
		return ErrPKCEMismatch
	}
	return nil
}

// ValidVerifier reports whether v is 43 to 128 characters drawn from the
// unreserved set [A-Za-z0-9-._~].
func ValidVerifier(v string) bool {
	if len(v) < 43 || len(v) > 128 {
		return false
	}
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '-', c == '.', c == '_', c == '~':
		default:
			return false
		}
	}
	return true
}
