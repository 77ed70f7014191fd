package security

import (
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies credentials with bcrypt at a configured cost.
// bcrypt reads at most 72 bytes, so the plaintext is first digested with
// SHA-256 and base64 encoded (44 bytes) to keep every character significant.
type Hasher struct {
	cost int
}

func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash hashes a plain text password of any length. Every call uses a fresh salt.
func (h *Hasher) Hash(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(digest(plain), h.cost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// Check compares a hash produced by Hash with a plaintext password in
// constant time.
func (h *Hasher) Check(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), digest(plain))
}

func digest(plain string) []byte {
	sum := sha256.Sum256([]byte(plain))
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])
	return out
}
