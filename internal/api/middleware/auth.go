package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/homelist/auth-service/internal/api/handler"
	"github.com/homelist/auth-service/internal/core/ports"
	"github.com/homelist/auth-service/internal/core/service"
)

// Auth resolves the request's principal and injects it into the context.
// Any authenticated principal passes.
func Auth(resolver ports.PrincipalResolver) echo.MiddlewareFunc {
	return gate(resolver, service.AnyRole())
}

// gate composes resolution and the role check. The wrapped handler runs
// only when both succeed; otherwise the classified error goes to the
// HTTP error handler.
func gate(resolver ports.PrincipalResolver, policy service.RolePolicy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			resolved, err := resolver.Resolve(c.Request())
			p, err := service.Authorize(resolved, err, policy)
			if err != nil {
				return err
			}
			handler.WithPrincipal(c, p)
			return next(c)
		}
	}
}
