package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/homelist/auth-service/internal/core/domain"
	"github.com/homelist/auth-service/internal/core/ports"
	"github.com/homelist/auth-service/internal/core/service"
)

// RBAC resolves the principal and admits it only if it holds one of
// allowedRoles. Authentication failures yield 401, role mismatches 403.
func RBAC(resolver ports.PrincipalResolver, allowedRoles ...domain.Role) echo.MiddlewareFunc {
	return gate(resolver, service.OnlyRoles(allowedRoles...))
}
