package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/homelist/auth-service/internal/core/domain"
)

// DefaultTokenTTL is the bearer token lifetime. Sessions share it.
const DefaultTokenTTL = 7 * 24 * time.Hour

var ErrMissingSecret = errors.New("token signing secret is not configured")

type tokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// JWTCodec implements ports.TokenCodec with HS256 JWTs.
type JWTCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTCodec fails when secret is empty so that no serving path can sign
// or verify with a placeholder.
func NewJWTCodec(secret string, ttl time.Duration) (*JWTCodec, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &JWTCodec{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL returns the lifetime applied to issued tokens.
func (c *JWTCodec) TTL() time.Duration { return c.ttl }

// Issue signs c and returns the token together with the claims actually
// embedded (IssuedAt/ExpiresAt filled in).
func (c *JWTCodec) Issue(in domain.TokenClaims) (string, domain.TokenClaims, error) {
	now := c.now().UTC().Truncate(time.Second)
	out := domain.TokenClaims{
		UserID:    in.UserID,
		Email:     in.Email,
		Role:      in.Role,
		IssuedAt:  now,
		ExpiresAt: now.Add(c.ttl),
	}

	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   out.UserID,
			IssuedAt:  jwt.NewNumericDate(out.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(out.ExpiresAt),
			// Two logins inside the same second must still yield
			// distinct tokens, since the ledger keys on the token.
			ID: uuid.NewString(),
		},
		Email: out.Email,
		Role:  string(out.Role),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", domain.TokenClaims{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, out, nil
}

// Verify checks signature, structure and expiry. It never returns a
// partial claim set: any failure yields domain.ErrInvalidToken or
// domain.ErrExpiredToken.
func (c *JWTCodec) Verify(token string) (*domain.TokenClaims, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, domain.ErrInvalidToken
	}

	out := &domain.TokenClaims{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   domain.Role(claims.Role),
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	out.ExpiresAt = claims.ExpiresAt.Time
	return out, nil
}
