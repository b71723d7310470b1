package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/homelist/auth-service/internal/core/domain"
)

const collectionAuthEvents = "auth_events"

// EventRepository implements ports.AuditLog using MongoDB.
type EventRepository struct {
	col *mongo.Collection
}

func NewEventRepository(db *mongo.Database) *EventRepository {
	return &EventRepository{col: db.Collection(collectionAuthEvents)}
}

// InsertEvent persists an auth event to the auth_events audit collection.
func (r *EventRepository) InsertEvent(ctx context.Context, event *domain.AuthEvent) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := bson.M{
		"type":        string(event.Type),
		"email":       event.Email,
		"occurred_at": event.At.UTC(),
		"recorded_at": time.Now().UTC(),
	}
	if event.UserID != "" {
		doc["user_id"] = event.UserID
	}
	if event.ActorID != "" {
		doc["actor_id"] = event.ActorID
	}
	if event.Reason != "" {
		doc["reason"] = event.Reason
	}
	if event.RemoteIP != "" {
		doc["remote_ip"] = event.RemoteIP
	}

	_, err := r.col.InsertOne(ctx, doc)
	return err
}
