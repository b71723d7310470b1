package ports

import (
	"context"
	"time"

	"github.com/homelist/auth-service/internal/core/domain"
)

// UserRepository defines persistence for User records. Email lookups take
// an already-normalised email.
type UserRepository interface {
	// Create inserts user and returns it with its store-assigned ID. A
	// unique-email violation must surface as domain.ErrUserExists.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	UpdateRole(ctx context.Context, id string, role domain.Role) error
	SetActive(ctx context.Context, id string, active bool) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// SessionLedger is the server-side record of issued tokens. Every method
// takes the token digest, never the raw bearer string.
type SessionLedger interface {
	// Create is a pure insert; it never invalidates other sessions.
	Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error
	// FindValid returns the session only if it exists and the store's own
	// clock says it has not expired; otherwise domain.ErrSessionNotFound.
	FindValid(ctx context.Context, tokenHash string) (*domain.Session, error)
	// Delete removes one session. Deleting a missing session is not an error.
	Delete(ctx context.Context, tokenHash string) error
	// DeleteAllForUser removes every session of userID.
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
	// DeleteExpired physically removes expired rows. Advisory only.
	DeleteExpired(ctx context.Context) (int64, error)
}

// AuditLog persists authentication events.
type AuditLog interface {
	InsertEvent(ctx context.Context, event *domain.AuthEvent) error
}
