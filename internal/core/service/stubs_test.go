package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/homelist/auth-service/internal/core/domain"
	"github.com/homelist/auth-service/internal/core/ports"
	"github.com/homelist/auth-service/internal/infrastructure/security"
)

// ── User repository stub ─────────────────────────────────────────────────────

type stubUserRepo struct {
	mu      sync.Mutex
	byID    map[string]*domain.User
	nextID  int
	findErr error
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{byID: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == user.Email {
			return nil, domain.ErrUserExists
		}
	}
	r.nextID++
	c := cloneUser(user)
	c.ID = fmt.Sprintf("u%d", r.nextID)
	r.byID[c.ID] = c
	return cloneUser(c), nil
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, u := range r.byID {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) mutate(id string, fn func(u *domain.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	fn(u)
	return nil
}

func (r *stubUserRepo) UpdateRole(_ context.Context, id string, role domain.Role) error {
	return r.mutate(id, func(u *domain.User) { u.Role = role })
}

func (r *stubUserRepo) SetActive(_ context.Context, id string, active bool) error {
	return r.mutate(id, func(u *domain.User) { u.Active = active })
}

func (r *stubUserRepo) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	return r.mutate(id, func(u *domain.User) { u.LastLoginAt = &at })
}

func (r *stubUserRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.byID, id)
	return nil
}

// ── Session ledger stub ──────────────────────────────────────────────────────

type stubLedger struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	now      func() time.Time
}

func newStubLedger() *stubLedger {
	return &stubLedger{sessions: make(map[string]domain.Session), now: time.Now}
}

func (l *stubLedger) Create(_ context.Context, userID, tokenHash string, expiresAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sessions[tokenHash] = domain.Session{UserID: userID, TokenHash: tokenHash, ExpiresAt: expiresAt, CreatedAt: l.now()}
	return nil
}

func (l *stubLedger) FindValid(_ context.Context, tokenHash string) (*domain.Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.sessions[tokenHash]
	if !ok || !s.Valid(l.now()) {
		return nil, domain.ErrSessionNotFound
	}
	return &s, nil
}

func (l *stubLedger) Delete(_ context.Context, tokenHash string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.sessions, tokenHash)
	return nil
}

func (l *stubLedger) DeleteAllForUser(_ context.Context, userID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for k, s := range l.sessions {
		if s.UserID == userID {
			delete(l.sessions, k)
			n++
		}
	}
	return n, nil
}

func (l *stubLedger) DeleteExpired(_ context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for k, s := range l.sessions {
		if !s.Valid(l.now()) {
			delete(l.sessions, k)
			n++
		}
	}
	return n, nil
}

func (l *stubLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}

// ── Audit stub ───────────────────────────────────────────────────────────────

type stubAudit struct {
	mu     sync.Mutex
	events []domain.AuthEvent
}

func (a *stubAudit) Record(e domain.AuthEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

func (a *stubAudit) types() []domain.AuthEventType {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.AuthEventType, len(a.events))
	for i, e := range a.events {
		out[i] = e.Type
	}
	return out
}

// ── Codec wrapper ────────────────────────────────────────────────────────────

// expiredCodec issues normally but reports every token as expired.
type expiredCodec struct{ ports.TokenCodec }

func (expiredCodec) Verify(string) (*domain.TokenClaims, error) {
	return nil, domain.ErrExpiredToken
}

// ── Fixture ──────────────────────────────────────────────────────────────────

type fixture struct {
	users    *stubUserRepo
	ledger   *stubLedger
	audit    *stubAudit
	codec    ports.TokenCodec
	auth     *authService
	resolver ports.PrincipalResolver
	admin    ports.UserAdminService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	codec, err := security.NewJWTCodec("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewJWTCodec: %v", err)
	}
	f := &fixture{
		users:  newStubUserRepo(),
		ledger: newStubLedger(),
		audit:  &stubAudit{},
		codec:  codec,
	}
	f.auth = newAuthService(AuthDeps{
		Users:    f.users,
		Sessions: f.ledger,
		Hasher:   security.NewBcryptHasher(bcrypt.MinCost),
		Tokens:   codec,
		Audit:    f.audit,
		Logger:   zerolog.Nop(),
	})
	f.resolver = NewResolver(codec, f.ledger, f.users, "", zerolog.Nop())
	f.admin = NewUserAdminService(f.users, f.ledger, f.audit, zerolog.Nop())
	return f
}

func (f *fixture) register(t *testing.T, name, email, password, role string) *ports.AuthResult {
	t.Helper()
	res, err := f.auth.Register(context.Background(), ports.RegisterInput{
		Name: name, Email: email, Password: password, Role: role,
	})
	if err != nil {
		t.Fatalf("Register(%s): %v", email, err)
	}
	return res
}
