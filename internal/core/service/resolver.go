package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/homelist/auth-service/internal/api/metrics"
	"github.com/homelist/auth-service/internal/core/domain"
	"github.com/homelist/auth-service/internal/core/ports"
)

// DefaultCookieName is the cookie login sets and the resolver falls back to.
const DefaultCookieName = "token"

type resolver struct {
	tokens     ports.TokenCodec
	sessions   ports.SessionLedger
	users      ports.UserRepository
	cookieName string
	log        zerolog.Logger
}

// NewResolver returns a PrincipalResolver. Identity and role always come
// from the current user row, never from the token's claims.
func NewResolver(
	tokens ports.TokenCodec,
	sessions ports.SessionLedger,
	users ports.UserRepository,
	cookieName string,
	log zerolog.Logger,
) ports.PrincipalResolver {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &resolver{
		tokens:     tokens,
		sessions:   sessions,
		users:      users,
		cookieName: cookieName,
		log:        log,
	}
}

// Resolve extracts the token from r and resolves it.
func (rv *resolver) Resolve(r *http.Request) (*domain.Principal, error) {
	return rv.ResolveToken(r.Context(), ExtractToken(r, rv.cookieName))
}

// ResolveToken checks signature and expiry, then the session ledger, then
// the user row. Storage failures are returned unclassified.
func (rv *resolver) ResolveToken(ctx context.Context, token string) (*domain.Principal, error) {
	if token == "" {
		return nil, rv.reject(domain.ReasonMissingToken, "")
	}

	claims, err := rv.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, domain.ErrExpiredToken) {
			return nil, rv.reject(domain.ReasonTokenExpired, "")
		}
		return nil, rv.reject(domain.ReasonInvalidToken, "")
	}

	session, err := rv.sessions.FindValid(ctx, domain.HashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, rv.reject(domain.ReasonSessionRevoked, claims.UserID)
		}
		return nil, fmt.Errorf("resolve: find session: %w", err)
	}
	if session.UserID != claims.UserID {
		return nil, rv.reject(domain.ReasonInvalidToken, claims.UserID)
	}

	user, err := rv.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, rv.reject(domain.ReasonUserMissing, claims.UserID)
		}
		return nil, fmt.Errorf("resolve: find user: %w", err)
	}
	if !user.Active {
		return nil, rv.reject(domain.ReasonUserInactive, user.ID)
	}

	return domain.PrincipalFromUser(user, token), nil
}

func (rv *resolver) reject(reason, userID string) error {
	metrics.ResolveFailuresTotal.WithLabelValues(reason).Inc()
	ev := rv.log.Info().Str("reason", reason)
	if userID != "" {
		ev = ev.Str("user_id", userID)
	}
	ev.Msg("token rejected")
	return domain.NewUnauthenticated(reason)
}

// ExtractToken returns the bearer token from the Authorization header,
// falling back to the named cookie. It returns "" when neither is present.
func ExtractToken(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if tok := strings.TrimSpace(parts[1]); tok != "" {
				return tok
			}
		}
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}
