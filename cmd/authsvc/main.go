// Command authsvc serves registration, login and session authorisation
// over HTTP.
//
// @title                       Auth Service API
// @version                     1.0
// @description                 Registration, login and session authorisation.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"

	"github.com/homelist/auth-service/internal/api"
	"github.com/homelist/auth-service/internal/api/handler"
	"github.com/homelist/auth-service/internal/core/ports"
	"github.com/homelist/auth-service/internal/core/service"
	"github.com/homelist/auth-service/internal/infrastructure/config"
	mongostore "github.com/homelist/auth-service/internal/infrastructure/db/mongo"
	pgstore "github.com/homelist/auth-service/internal/infrastructure/db/postgres"
	redisstore "github.com/homelist/auth-service/internal/infrastructure/db/redis"
	"github.com/homelist/auth-service/internal/infrastructure/http/handlers"
	"github.com/homelist/auth-service/internal/infrastructure/queue"
	"github.com/homelist/auth-service/internal/infrastructure/security"
	"github.com/homelist/auth-service/pkg/logger"
)

// Set at build time via -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "authsvc: %v\n", err)
		os.Exit(1)
	}
}

// stores is the persistence wiring selected by configuration.
type stores struct {
	users    ports.UserRepository
	sessions ports.SessionLedger
	audit    ports.AuditLog
	probes   []handlers.Pinger
	closers  []func(context.Context) error
}

func (s *stores) close(ctx context.Context, log zerolog.Logger) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			log.Error().Err(err).Msg("error closing store")
		}
	}
}

func run(ctx context.Context) error {
	cfg, err := config.LoadWith(ctx, envconfig.OsLookuper())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Version: version,
	})
	log.Info().
		Str("store", cfg.StoreDriver).
		Str("session_backend", cfg.SessionBackend).
		Dur("token_ttl", cfg.TokenTTL).
		Msg("starting auth service")

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close(context.Background(), log)

	codec, err := security.NewJWTCodec(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return fmt.Errorf("token codec: %w", err)
	}
	hasher := security.NewBcryptHasher(security.DefaultCost)

	// Background workers outlive the HTTP server so in-flight audit events
	// are flushed after the last request completes.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	dispatcher := queue.NewDispatcher(cfg.AuditWorkers, st.audit, logger.Component("audit"))
	dispatcher.Start(workerCtx)

	sweeper := queue.NewSweeper(st.sessions, cfg.SweepInterval, logger.Component("sweeper"))
	sweeper.Start(workerCtx)

	e := api.NewRouter(api.Deps{
		Auth: service.NewAuthService(service.AuthDeps{
			Users:    st.users,
			Sessions: st.sessions,
			Hasher:   hasher,
			Tokens:   codec,
			Audit:    dispatcher,
			Logger:   logger.Component("auth"),
		}),
		Admin:    service.NewUserAdminService(st.users, st.sessions, dispatcher, logger.Component("admin")),
		Resolver: service.NewResolver(codec, st.sessions, st.users, cfg.Cookie.Name, logger.Component("resolver")),
		Cookie: handler.CookieConfig{
			Name:   cfg.Cookie.Name,
			Secure: cfg.Cookie.Secure,
			TTL:    codec.TTL(),
		},
		Probes: st.probes,
		Logger: logger.Component("http"),
	})

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}

	stopWorkers()
	dispatcher.Wait()
	<-sweeper.Done()

	log.Info().Msg("auth service stopped")
	return nil
}

// openStores connects the user store and, when configured, the Redis
// session ledger, and prepares their schemas.
func openStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*stores, error) {
	st := &stores{}

	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := pgstore.Connect(ctx, pgstore.Config{DSN: cfg.Postgres.DSN})
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, func(context.Context) error { return db.Close() })
		if err := pgstore.RunMigrations(ctx, db); err != nil {
			st.close(ctx, log)
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		pg := pgstore.NewStore(db)
		st.users, st.sessions, st.audit = pg.Users, pg.Sessions, pg.Events
		st.probes = append(st.probes, pg)
		log.Info().Msg("postgres connected, migrations applied")

	default:
		client, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, client.Disconnect)
		mg := mongostore.NewStore(db)
		if err := mg.EnsureIndexes(ctx); err != nil {
			st.close(ctx, log)
			return nil, fmt.Errorf("ensuring indexes: %w", err)
		}
		st.users, st.sessions, st.audit = mg.Users, mg.Sessions, mg.Events
		st.probes = append(st.probes, mg)
		log.Info().Str("database", cfg.Mongo.Database).Msg("mongodb connected, indexes ensured")
	}

	if cfg.SessionBackend == config.SessionBackendRedis {
		client, err := redisstore.Connect(ctx, redisstore.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			st.close(ctx, log)
			return nil, err
		}
		st.closers = append(st.closers, func(context.Context) error { return client.Close() })
		st.sessions = redisstore.NewSessionLedger(client)
		st.probes = append(st.probes, redisstore.Pinger{Client: client})
		log.Info().Str("addr", cfg.Redis.Addr).Msg("redis session ledger enabled")
	}

	return st, nil
}
