package queue

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/homelist/auth-service/internal/api/metrics"
)

const defaultSweepInterval = time.Hour

// ExpiredSessionDeleter is the slice of ports.SessionLedger the sweeper needs.
type ExpiredSessionDeleter interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Sweeper periodically removes expired session rows. Session validity
// never depends on it running.
type Sweeper struct {
	ledger   ExpiredSessionDeleter
	interval time.Duration
	logger   zerolog.Logger
	done     chan struct{}
}

func NewSweeper(ledger ExpiredSessionDeleter, interval time.Duration, logger zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Sweeper{ledger: ledger, interval: interval, logger: logger, done: make(chan struct{})}
}

// Start runs the sweep loop in a goroutine until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.SweepOnce(ctx)
			}
		}
	}()
}

// Done is closed once the sweep loop has exited.
func (s *Sweeper) Done() <-chan struct{} { return s.done }

// SweepOnce deletes expired sessions once and returns how many went away.
func (s *Sweeper) SweepOnce(ctx context.Context) int64 {
	n, err := s.ledger.DeleteExpired(ctx)
	if err != nil {
		metrics.SessionSweepErrorsTotal.Inc()
		s.logger.Error().Err(err).Msg("session sweep failed")
		return 0
	}
	metrics.SessionsSweptTotal.Add(float64(n))
	if n > 0 {
		s.logger.Info().Int64("removed", n).Msg("expired sessions swept")
	}
	return n
}
