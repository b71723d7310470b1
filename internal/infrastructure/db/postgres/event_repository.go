package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/homelist/auth-service/internal/core/domain"
)

// EventRepository implements ports.AuditLog on the auth_events table.
type EventRepository struct {
	db DBTX
}

func NewEventRepository(db DBTX) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) InsertEvent(ctx context.Context, event *domain.AuthEvent) error {
	query := `
		INSERT INTO auth_events (type, user_id, email, actor_id, reason, remote_ip, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		string(event.Type), nullString(event.UserID), event.Email, nullString(event.ActorID),
		nullString(event.Reason), nullString(event.RemoteIP), event.At.UTC())
	if err != nil {
		return fmt.Errorf("insert auth event: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
