package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/homelist/auth-service/internal/core/domain"
)

// SessionLedger implements ports.SessionLedger on Redis.
//
// Key layout:
//
//	session:<token_hash>      JSON record, PEXPIREAT at the session expiry
//	user_sessions:<user_id>   set of token hashes owned by the user
//
// Redis evicts the session key on its own clock, so FindValid never sees
// an expired session.
type SessionLedger struct {
	client *redis.Client
}

func NewSessionLedger(client *redis.Client) *SessionLedger {
	return &SessionLedger{client: client}
}

type sessionRecord struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

func (l *SessionLedger) Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	raw, err := json.Marshal(sessionRecord{UserID: userID, ExpiresAt: expiresAt.UTC(), CreatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	_, err = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(tokenHash), raw, 0)
		pipe.PExpireAt(ctx, sessionKey(tokenHash), expiresAt)
		pipe.SAdd(ctx, userKey(userID), tokenHash)
		return nil
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (l *SessionLedger) FindValid(ctx context.Context, tokenHash string) (*domain.Session, error) {
	raw, err := l.client.Get(ctx, sessionKey(tokenHash)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}

	var rec sessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &domain.Session{
		ID:        tokenHash,
		UserID:    rec.UserID,
		TokenHash: tokenHash,
		ExpiresAt: rec.ExpiresAt,
		CreatedAt: rec.CreatedAt,
	}, nil
}

func (l *SessionLedger) Delete(ctx context.Context, tokenHash string) error {
	raw, err := l.client.Get(ctx, sessionKey(tokenHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	var rec sessionRecord
	_ = json.Unmarshal(raw, &rec)

	_, err = l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(tokenHash))
		if rec.UserID != "" {
			pipe.SRem(ctx, userKey(rec.UserID), tokenHash)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (l *SessionLedger) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	hashes, err := l.client.SMembers(ctx, userKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("list user sessions: %w", err)
	}
	return l.revoke(ctx, userID, hashes)
}

// revoke deletes the listed sessions and removes only those hashes from
// the user's index, so a session created after the listing stays indexed
// and revocable.
func (l *SessionLedger) revoke(ctx context.Context, userID string, hashes []string) (int64, error) {
	if len(hashes) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(hashes))
	members := make([]any, 0, len(hashes))
	for _, h := range hashes {
		keys = append(keys, sessionKey(h))
		members = append(members, h)
	}

	var del *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, keys...)
		pipe.SRem(ctx, userKey(userID), members...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("delete user sessions: %w", err)
	}
	return del.Val(), nil
}

// DeleteExpired prunes per-user index entries whose session key Redis has
// already evicted. It reports the number of pruned entries.
func (l *SessionLedger) DeleteExpired(ctx context.Context) (int64, error) {
	var (
		cursor uint64
		pruned int64
	)
	for {
		keys, next, err := l.client.Scan(ctx, cursor, userKey("*"), 100).Result()
		if err != nil {
			return pruned, fmt.Errorf("scan user sessions: %w", err)
		}
		for _, key := range keys {
			n, err := l.pruneSet(ctx, key)
			if err != nil {
				return pruned, err
			}
			pruned += n
		}
		if next == 0 {
			return pruned, nil
		}
		cursor = next
	}
}

func (l *SessionLedger) pruneSet(ctx context.Context, setKey string) (int64, error) {
	hashes, err := l.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return 0, fmt.Errorf("list sessions: %w", err)
	}

	var stale []any
	for _, h := range hashes {
		n, err := l.client.Exists(ctx, sessionKey(h)).Result()
		if err != nil {
			return 0, fmt.Errorf("check session: %w", err)
		}
		if n == 0 {
			stale = append(stale, h)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	return l.client.SRem(ctx, setKey, stale...).Result()
}

func sessionKey(tokenHash string) string { return "session:" + tokenHash }

func userKey(userID string) string { return "user_sessions:" + userID }
