package security

import (
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHasher_SaltedAndVerifiable(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	first, err := h.Hash("MiPassword123")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	second, err := h.Hash("MiPassword123")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}

	if first == second {
		t.Fatalf("expected different hashes for the same plaintext")
	}
	if first == "MiPassword123" {
		t.Fatalf("hash must not equal the plaintext")
	}

	for _, hash := range []string{first, second} {
		if err := h.Check(hash, "MiPassword123"); err != nil {
			t.Fatalf("expected hash to verify: %v", err)
		}
	}

	if err := h.Check(first, "WrongPassword1"); err == nil {
		t.Fatalf("expected mismatch for wrong password")
	}
}

func TestNewHasher_OutOfRangeCostFallsBack(t *testing.T) {
	if h := NewHasher(0); h.cost != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %d", h.cost)
	}
	if h := NewHasher(bcrypt.MaxCost + 1); h.cost != bcrypt.DefaultCost {
		t.Fatalf("expected default cost, got %d", h.cost)
	}
}

func TestHasher_LongPasswords(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	tests := []struct {
		name  string
		plain string
	}{
		{name: "100_chars", plain: "Aa1" + strings.Repeat("x", 97)},
		{name: "255_chars", plain: "Aa1" + strings.Repeat("y", 252)},
		{name: "multibyte", plain: "Aa1" + strings.Repeat("ñ", 100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := h.Hash(tt.plain)
			if err != nil {
				t.Fatalf("hash error: %v", err)
			}
			if err := h.Check(hash, tt.plain); err != nil {
				t.Fatalf("expected hash to verify: %v", err)
			}
		})
	}
}

func TestHasher_DifferenceAfter72BytesMatters(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	prefix := "Aa1" + strings.Repeat("z", 80)
	hash, err := h.Hash(prefix + "first")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}

	if err := h.Check(hash, prefix+"other"); err == nil {
		t.Fatalf("passwords differing past byte 72 must not match")
	}
}
