package service

import (
	"github.com/homelist/auth-service/internal/api/metrics"
	"github.com/homelist/auth-service/internal/core/domain"
)

// RolePolicy decides which roles may pass a gate. The zero value admits
// no one.
type RolePolicy struct {
	any     bool
	allowed map[domain.Role]bool
}

// AnyRole admits every authenticated principal.
func AnyRole() RolePolicy {
	return RolePolicy{any: true}
}

// OnlyRoles admits principals holding one of roles.
func OnlyRoles(roles ...domain.Role) RolePolicy {
	allowed := make(map[domain.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return RolePolicy{allowed: allowed}
}

// Allows reports whether r passes the policy. Roles outside the
// enumeration never pass.
func (p RolePolicy) Allows(r domain.Role) bool {
	switch r {
	case domain.RoleUser, domain.RoleAgent, domain.RoleAdmin:
		return p.any || p.allowed[r]
	default:
		return false
	}
}

// Authorize applies policy to the outcome of a resolution. A resolution
// error is passed through unchanged, so authentication is always decided
// before authorisation.
func Authorize(p *domain.Principal, err error, policy RolePolicy) (*domain.Principal, error) {
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.NewUnauthenticated(domain.ReasonMissingToken)
	}
	if !policy.Allows(p.Role) {
		metrics.GateDenialsTotal.Inc()
		return nil, domain.NewForbidden()
	}
	return p, nil
}
