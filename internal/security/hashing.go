package security

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies secrets (PIN codes and challenge answers) using
// bcrypt. Callers must not log or persist plaintext secrets.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher with the given bcrypt cost (4–31). Cost 12 is a
// reasonable default for interactive login.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// Hash produces a bcrypt hash of secret. Do not pass empty or nil secret.
// Returns the hash as a string suitable for storage.
func (h *Hasher) Hash(secret []byte) (string, error) {
	b, err := bcrypt.GenerateFromPassword(secret, h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare verifies secret against the stored hash using constant-time
// comparison. Returns nil if they match; returns an error (including
// bcrypt.ErrMismatchedHashAndPassword) if they do not or on invalid hash.
func (h *Hasher) Compare(hash string, secret []byte) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), secret)
}

// NormalizeAnswer canonicalizes a free-text challenge answer before hashing
// or comparing. Enrollment and verification must apply the same normalization
// or honest answers typed with different casing would fail.
func NormalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}

// HashAnswer normalizes and hashes a challenge answer.
func (h *Hasher) HashAnswer(answer string) (string, error) {
	return h.Hash([]byte(NormalizeAnswer(answer)))
}

// CompareAnswer verifies a challenge answer against the stored hash after
// normalization. Returns nil on match.
func (h *Hasher) CompareAnswer(hash, answer string) error {
	return h.Compare(hash, []byte(NormalizeAnswer(answer)))
}
