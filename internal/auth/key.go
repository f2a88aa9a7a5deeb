package auth

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor used for the internal key hash.
const defaultCost = 12

// KeyVerifier checks the X-Internal-API-Key header against a bcrypt hash of
// the configured key. The plaintext key is only held during construction.
//
// bcrypt compares in constant time, so response timing does not reveal how
// much of a guessed key was right.
type KeyVerifier struct {
	hash []byte
}

// NewKeyVerifier hashes key with the default cost. An empty key yields a
// verifier that rejects everything, so a server started without
// INTERNAL_API_KEY keeps its internal routes closed.
func NewKeyVerifier(key string) (*KeyVerifier, error) {
	return newKeyVerifierWithCost(key, defaultCost)
}

// NewKeyVerifierForTest uses bcrypt.MinCost. Do NOT use in production.
func NewKeyVerifierForTest(key string) (*KeyVerifier, error) {
	return newKeyVerifierWithCost(key, bcrypt.MinCost)
}

func newKeyVerifierWithCost(key string, cost int) (*KeyVerifier, error) {
	if key == "" {
		return &KeyVerifier{}, nil
	}
	if len(key) > 72 {
		// bcrypt would silently truncate the rest.
		return nil, errors.New("auth: internal API key must be 72 bytes or fewer")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), cost)
	if err != nil {
		return nil, fmt.Errorf("auth: hashing internal API key: %w", err)
	}
	return &KeyVerifier{hash: hash}, nil
}

// Enabled reports whether a key was configured.
func (v *KeyVerifier) Enabled() bool {
	return len(v.hash) > 0
}

// Verify reports whether presented matches the configured key.
func (v *KeyVerifier) Verify(presented string) bool {
	if !v.Enabled() || presented == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(v.hash, []byte(presented)) == nil
}

// GenerateKey returns a random key suitable for INTERNAL_API_KEY.
func GenerateKey() string {
	return rand.Text()
}
