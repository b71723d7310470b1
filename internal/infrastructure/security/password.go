package security

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/homelist/auth-service/internal/core/domain"
)

const (
	// DefaultCost is the bcrypt work factor used in production (2^12 rounds).
	DefaultCost = 12
	// MaxPasswordBytes is bcrypt's input ceiling. Longer inputs are
	// rejected instead of being silently truncated.
	MaxPasswordBytes = 72
)

// BcryptHasher implements ports.PasswordHasher with bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher with the given cost. Costs outside
// bcrypt's accepted range fall back to DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash returns a salted bcrypt hash of plaintext.
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	if len(plaintext) > MaxPasswordBytes {
		return "", domain.NewValidationError(domain.MsgPasswordTooLong)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether plaintext matches hash. bcrypt compares digests
// with subtle.ConstantTimeCompare.
func (h *BcryptHasher) Verify(plaintext, hash string) bool {
	if len(plaintext) > MaxPasswordBytes || hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// Cost returns the configured work factor.
func (h *BcryptHasher) Cost() int { return h.cost }
