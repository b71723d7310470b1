// Package mongo holds the MongoDB-backed user store, session ledger and
// auth audit log.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const defaultTimeout = 10 * time.Second

// Config captures the minimal settings required to establish a MongoDB connection.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Connect establishes a MongoDB client, verifies connectivity with a ping, and
// returns both the client and the selected database.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	return client, client.Database(cfg.Database), nil
}

// Store bundles the repositories that share one database handle.
type Store struct {
	DB       *mongo.Database
	Users    *UserRepository
	Sessions *SessionRepository
	Events   *EventRepository
}

func NewStore(db *mongo.Database) *Store {
	return &Store{
		DB:       db,
		Users:    NewUserRepository(db),
		Sessions: NewSessionRepository(db),
		Events:   NewEventRepository(db),
	}
}

// EnsureIndexes creates every index the auth collections depend on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if err := s.Users.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("users indexes: %w", err)
	}
	if err := s.Sessions.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("sessions indexes: %w", err)
	}
	return nil
}

// Name identifies the dependency in readiness reports.
func (s *Store) Name() string { return "mongodb" }

// Ping checks that the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.DB.Client().Ping(ctx, readpref.Primary())
}
