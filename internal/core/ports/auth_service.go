package ports

import (
	"context"
	"net/http"

	"github.com/homelist/auth-service/internal/core/domain"
)

// RegisterInput is the credential submission for a new account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
	RemoteIP string
}

// LoginInput is the credential submission for an existing account.
type LoginInput struct {
	Email    string
	Password string
	RemoteIP string
}

// AuthResult is returned by a successful register or login.
type AuthResult struct {
	Token string
	User  domain.PublicUser
}

// AuthService orchestrates registration, login and session revocation.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, in LoginInput) (*AuthResult, error)
	Logout(ctx context.Context, p *domain.Principal) error
	LogoutAll(ctx context.Context, p *domain.Principal) (int64, error)
}

// UserAdminService holds administrator-only user mutations.
type UserAdminService interface {
	GetUser(ctx context.Context, id string) (*domain.PublicUser, error)
	ChangeRole(ctx context.Context, actor *domain.Principal, id, role string) (*domain.PublicUser, error)
	SetActive(ctx context.Context, actor *domain.Principal, id string, active bool) (*domain.PublicUser, error)
	DeleteUser(ctx context.Context, actor *domain.Principal, id string) error
}

// PrincipalResolver turns an inbound request into a Principal.
type PrincipalResolver interface {
	Resolve(r *http.Request) (*domain.Principal, error)
	ResolveToken(ctx context.Context, token string) (*domain.Principal, error)
}

// PasswordHasher is the credential hasher contract.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// TokenCodec issues and verifies signed bearer tokens.
type TokenCodec interface {
	Issue(claims domain.TokenClaims) (string, domain.TokenClaims, error)
	Verify(token string) (*domain.TokenClaims, error)
}
