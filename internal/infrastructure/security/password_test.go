package security

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/homelist/auth-service/internal/core/domain"
)

func TestBcryptHasher_RoundTrip(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	for _, pw := range []string{"secret123", "", "ñandú-☃", strings.Repeat("x", MaxPasswordBytes)} {
		hash, err := h.Hash(pw)
		if err != nil {
			t.Fatalf("Hash(%q) error: %v", pw, err)
		}
		if hash == pw {
			t.Fatalf("hash equals plaintext")
		}
		if !h.Verify(pw, hash) {
			t.Fatalf("Verify(%q) = false, want true", pw)
		}
	}
}

func TestBcryptHasher_Mismatch(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("secret123")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if h.Verify("secret124", hash) {
		t.Fatalf("Verify with other plaintext returned true")
	}
	if h.Verify("secret123", "") {
		t.Fatalf("Verify against empty hash returned true")
	}
	if h.Verify("secret123", "not-a-bcrypt-hash") {
		t.Fatalf("Verify against garbage hash returned true")
	}
}

func TestBcryptHasher_SaltedHashesDiffer(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)
	a, _ := h.Hash("same")
	b, _ := h.Hash("same")
	if a == b {
		t.Fatalf("expected distinct salted hashes")
	}
}

func TestBcryptHasher_RejectsOverlongPassword(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	_, err := h.Hash(strings.Repeat("a", MaxPasswordBytes+1))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewBcryptHasher_Cost(t *testing.T) {
	if got := NewBcryptHasher(0).Cost(); got != DefaultCost {
		t.Fatalf("expected default cost %d, got %d", DefaultCost, got)
	}
	if got := NewBcryptHasher(bcrypt.MaxCost + 1).Cost(); got != DefaultCost {
		t.Fatalf("expected default cost for out-of-range input, got %d", got)
	}

	hash, err := NewBcryptHasher(DefaultCost).Hash("pw")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil || cost != DefaultCost {
		t.Fatalf("expected stored cost %d, got %d (%v)", DefaultCost, cost, err)
	}
}
