package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Session binds one issued token to one user until ExpiresAt. Stores key
// sessions by TokenHash; the raw bearer string is never persisted.
type Session struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Valid reports whether s is still usable at now. Ledgers filter expiry in
// the store itself; this is for callers holding a Session value.
func (s *Session) Valid(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// TokenClaims is the identity projection signed into a bearer token.
type TokenClaims struct {
	UserID    string
	Email     string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// HashToken returns the hex SHA-256 digest under which a token's session
// is stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
