package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/homelist/auth-service/internal/core/domain"
)

func newLedger(t *testing.T) (*SessionLedger, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionLedger(client), mr
}

func isMember(t *testing.T, mr *miniredis.Miniredis, userID, hash string) bool {
	t.Helper()
	if !mr.Exists(userKey(userID)) {
		return false
	}
	ok, err := mr.IsMember(userKey(userID), hash)
	if err != nil {
		t.Fatalf("IsMember: %v", err)
	}
	return ok
}

func TestSessionLedger_CreateAndFindValid(t *testing.T) {
	l, mr := newLedger(t)
	ctx := context.Background()

	expires := time.Now().Add(time.Hour).UTC()
	if err := l.Create(ctx, "u1", "h1", expires); err != nil {
		t.Fatalf("Create: %v", err)
	}

	s, err := l.FindValid(ctx, "h1")
	if err != nil {
		t.Fatalf("FindValid: %v", err)
	}
	if s.UserID != "u1" || s.TokenHash != "h1" || !s.ExpiresAt.Equal(expires) {
		t.Fatalf("unexpected session: %+v", s)
	}
	if ttl := mr.TTL(sessionKey("h1")); ttl <= 0 || ttl > time.Hour {
		t.Fatalf("expected session key TTL within an hour, got %v", ttl)
	}
	if !isMember(t, mr, "u1", "h1") {
		t.Fatalf("hash missing from user index")
	}
}

func TestSessionLedger_FindValid_ExpiresWithKeyTTL(t *testing.T) {
	l, mr := newLedger(t)
	ctx := context.Background()

	if err := l.Create(ctx, "u1", "h1", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, err := l.FindValid(ctx, "h1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("want domain.ErrSessionNotFound after expiry, got %v", err)
	}
}

func TestSessionLedger_FindValid_Unknown(t *testing.T) {
	l, _ := newLedger(t)

	if _, err := l.FindValid(context.Background(), "missing"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("want domain.ErrSessionNotFound, got %v", err)
	}
}

func TestSessionLedger_Delete_RemovesOnlyThatSession(t *testing.T) {
	l, mr := newLedger(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	for _, h := range []string{"h1", "h2"} {
		if err := l.Create(ctx, "u1", h, expires); err != nil {
			t.Fatalf("Create %s: %v", h, err)
		}
	}

	if err := l.Delete(ctx, "h1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := l.FindValid(ctx, "h1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("h1 should be gone, got %v", err)
	}
	if isMember(t, mr, "u1", "h1") {
		t.Fatalf("h1 still in user index")
	}
	if _, err := l.FindValid(ctx, "h2"); err != nil {
		t.Fatalf("h2 should survive: %v", err)
	}
	if !isMember(t, mr, "u1", "h2") {
		t.Fatalf("h2 dropped from user index")
	}

	if err := l.Delete(ctx, "missing"); err != nil {
		t.Fatalf("deleting an unknown hash should be a no-op, got %v", err)
	}
}

func TestSessionLedger_DeleteAllForUser(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	_ = l.Create(ctx, "u1", "h1", expires)
	_ = l.Create(ctx, "u1", "h2", expires)
	_ = l.Create(ctx, "u2", "h3", expires)

	n, err := l.DeleteAllForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("DeleteAllForUser: %v", err)
	}
	if n != 2 {
		t.Fatalf("want 2 removed, got %d", n)
	}
	for _, h := range []string{"h1", "h2"} {
		if _, err := l.FindValid(ctx, h); !errors.Is(err, domain.ErrSessionNotFound) {
			t.Fatalf("%s should be revoked, got %v", h, err)
		}
	}
	if _, err := l.FindValid(ctx, "h3"); err != nil {
		t.Fatalf("other user's session should survive: %v", err)
	}

	n, err = l.DeleteAllForUser(ctx, "nobody")
	if err != nil || n != 0 {
		t.Fatalf("want 0, nil for a user without sessions, got %d, %v", n, err)
	}
}

// A login that lands between listing the index and deleting must leave its
// session indexed, so the next revocation still reaches it.
func TestSessionLedger_DeleteAllForUser_KeepsSessionCreatedMeanwhile(t *testing.T) {
	l, mr := newLedger(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	if err := l.Create(ctx, "u1", "h1", expires); err != nil {
		t.Fatalf("Create h1: %v", err)
	}

	listed, err := l.client.SMembers(ctx, userKey("u1")).Result()
	if err != nil {
		t.Fatalf("SMembers: %v", err)
	}
	if err := l.Create(ctx, "u1", "h2", expires); err != nil {
		t.Fatalf("Create h2: %v", err)
	}
	n, err := l.revoke(ctx, "u1", listed)
	if err != nil || n != 1 {
		t.Fatalf("first revocation: want 1, nil, got %d, %v", n, err)
	}

	if _, err := l.FindValid(ctx, "h2"); err != nil {
		t.Fatalf("h2 was not listed and should still be valid: %v", err)
	}
	if !isMember(t, mr, "u1", "h2") {
		t.Fatalf("h2 lost from user index")
	}

	n, err = l.DeleteAllForUser(ctx, "u1")
	if err != nil || n != 1 {
		t.Fatalf("second revocation: want 1, nil, got %d, %v", n, err)
	}
	if _, err := l.FindValid(ctx, "h2"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("h2 should be revoked, got %v", err)
	}
}

func TestSessionLedger_DeleteExpired_PrunesIndex(t *testing.T) {
	l, mr := newLedger(t)
	ctx := context.Background()

	_ = l.Create(ctx, "u1", "short", time.Now().Add(time.Minute))
	_ = l.Create(ctx, "u1", "long", time.Now().Add(time.Hour))
	_ = l.Create(ctx, "u2", "gone", time.Now().Add(time.Minute))
	mr.FastForward(2 * time.Minute)

	n, err := l.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n != 2 {
		t.Fatalf("want 2 pruned entries, got %d", n)
	}
	if isMember(t, mr, "u1", "short") || isMember(t, mr, "u2", "gone") {
		t.Fatalf("expired hashes still indexed")
	}
	if !isMember(t, mr, "u1", "long") {
		t.Fatalf("live hash pruned")
	}

	if n, err := l.DeleteExpired(ctx); err != nil || n != 0 {
		t.Fatalf("second sweep should find nothing, got %d, %v", n, err)
	}
}
