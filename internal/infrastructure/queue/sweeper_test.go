package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type countingDeleter struct {
	calls atomic.Int32
	n     int64
	err   error
}

func (c *countingDeleter) DeleteExpired(context.Context) (int64, error) {
	c.calls.Add(1)
	return c.n, c.err
}

func TestSweeper_SweepOnce(t *testing.T) {
	del := &countingDeleter{n: 4}
	s := NewSweeper(del, time.Minute, zerolog.Nop())

	if got := s.SweepOnce(context.Background()); got != 4 {
		t.Fatalf("expected 4 removed, got %d", got)
	}

	del.err = errors.New("db down")
	if got := s.SweepOnce(context.Background()); got != 0 {
		t.Fatalf("expected 0 on error, got %d", got)
	}
}

func TestSweeper_RunsPeriodicallyUntilCancelled(t *testing.T) {
	del := &countingDeleter{}
	s := NewSweeper(del, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for del.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatalf("sweeper did not stop after cancel")
	}
	if del.calls.Load() < 2 {
		t.Fatalf("expected at least 2 sweeps, got %d", del.calls.Load())
	}
}
