package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/homelist/auth-service/internal/core/domain"
)

const principalKey = "principal"

type principalCtxKey struct{}

// WithPrincipal attaches p to both the echo context and the request
// context, so handlers and anything they call can read it.
func WithPrincipal(c echo.Context, p *domain.Principal) {
	c.Set(principalKey, p)
	req := c.Request()
	c.SetRequest(req.WithContext(context.WithValue(req.Context(), principalCtxKey{}, p)))
}

// PrincipalFromContext returns the principal stored by WithPrincipal.
func PrincipalFromContext(ctx context.Context) (*domain.Principal, bool) {
	p, ok := ctx.Value(principalCtxKey{}).(*domain.Principal)
	return p, ok && p != nil
}

// ctxPrincipal is the fast-fail accessor for handlers mounted behind the
// auth middleware. A missing principal means the route was wired without
// it; reject rather than serve anonymously.
func ctxPrincipal(c echo.Context) (*domain.Principal, error) {
	p, _ := c.Get(principalKey).(*domain.Principal)
	if p == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, domain.MsgAuthRequired)
	}
	return p, nil
}
