package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher provides bcrypt password hashing and verification.
//
// bcrypt output is self-describing: the algorithm version, cost, and per-call
// salt are embedded in the hash string, so verification needs no side lookup
// and the same plaintext never hashes to the same value twice.
type Hasher struct {
	cost int
}

// NewHasher creates a Hasher with the given work factor. Costs outside
// bcrypt's valid range fall back to the library default.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash hashes the plaintext with a fresh random salt.
// bcrypt silently truncates input beyond 72 bytes, so longer passwords are
// rejected instead.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("auth: password must not be empty")
	}
	if len(plaintext) > 72 {
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify reports whether the plaintext matches the stored hash. A mismatch is
// not an error condition; the comparison is constant-time within bcrypt's
// guarantees.
func (h *Hasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
