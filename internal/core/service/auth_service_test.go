package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/homelist/auth-service/internal/core/domain"
	"github.com/homelist/auth-service/internal/core/ports"
	"github.com/homelist/auth-service/internal/infrastructure/security"
)

func TestAuthService_Register_Success(t *testing.T) {
	f := newFixture(t)

	res := f.register(t, "Ann", "ann@example.com", "s3cret!", "")

	if res.Token == "" {
		t.Fatal("expected a token")
	}
	if res.User.Role != domain.RoleUser {
		t.Fatalf("expected default role user, got %s", res.User.Role)
	}
	if !res.User.Active {
		t.Fatal("new users must be active")
	}
	stored, err := f.users.FindByEmail(context.Background(), "ann@example.com")
	if err != nil {
		t.Fatalf("user not stored: %v", err)
	}
	if stored.PasswordHash == "s3cret!" || !strings.HasPrefix(stored.PasswordHash, "$2") {
		t.Fatalf("expected a bcrypt hash, got %q", stored.PasswordHash)
	}
	if f.ledger.count() != 1 {
		t.Fatalf("expected one session, got %d", f.ledger.count())
	}
	if got := f.audit.types(); len(got) != 1 || got[0] != domain.EventRegistered {
		t.Fatalf("unexpected audit trail: %v", got)
	}
}

func TestAuthService_Register_TokenResolves(t *testing.T) {
	f := newFixture(t)
	res := f.register(t, "Ann", "ann@example.com", "s3cret!", "agent")

	p, err := f.resolver.ResolveToken(context.Background(), res.Token)
	if err != nil {
		t.Fatalf("ResolveToken: %v", err)
	}
	if p.ID != res.User.ID || p.Role != domain.RoleAgent {
		t.Fatalf("unexpected principal: %+v", p)
	}
}

func TestAuthService_Register_Validation(t *testing.T) {
	tests := []struct {
		name    string
		in      ports.RegisterInput
		wantMsg string
	}{
		{"missing name", ports.RegisterInput{Email: "a@b.c", Password: "x"}, domain.MsgRegisterFieldsRequired},
		{"missing email", ports.RegisterInput{Name: "A", Password: "x"}, domain.MsgRegisterFieldsRequired},
		{"missing password", ports.RegisterInput{Name: "A", Email: "a@b.c"}, domain.MsgRegisterFieldsRequired},
		{"blank name", ports.RegisterInput{Name: "   ", Email: "a@b.c", Password: "x"}, domain.MsgRegisterFieldsRequired},
		{"bad role", ports.RegisterInput{Name: "A", Email: "a@b.c", Password: "x", Role: "superuser"}, domain.MsgInvalidRole},
		{"password too long", ports.RegisterInput{Name: "A", Email: "a@b.c", Password: strings.Repeat("p", 73)}, domain.MsgPasswordTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.auth.Register(context.Background(), tt.in)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if err.Error() != tt.wantMsg {
				t.Fatalf("expected %q, got %q", tt.wantMsg, err.Error())
			}
			if f.ledger.count() != 0 {
				t.Fatal("no session should be created")
			}
		})
	}
}

func TestAuthService_Register_DuplicateEmailIsCaseInsensitive(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Ann", "ann@example.com", "s3cret!", "")

	_, err := f.auth.Register(context.Background(), ports.RegisterInput{
		Name: "Ann Again", Email: "Ann@Example.com", Password: "other",
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err.Error() != domain.MsgUserExists {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestAuthService_Register_ConcurrentDuplicates(t *testing.T) {
	f := newFixture(t)

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.auth.Register(context.Background(), ports.RegisterInput{
				Name: "Racer", Email: "race@example.com", Password: "pw",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || conflicts != n-1 {
		t.Fatalf("expected 1 success and %d conflicts, got %d and %d", n-1, succeeded, conflicts)
	}
}

func TestAuthService_Register_StorageErrorIsNotClassified(t *testing.T) {
	f := newFixture(t)
	f.users.findErr = errors.New("connection reset")

	_, err := f.auth.Register(context.Background(), ports.RegisterInput{
		Name: "A", Email: "a@b.c", Password: "x",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	var de *domain.Error
	if errors.As(err, &de) {
		t.Fatalf("storage failure must not look like a client error, got %v", de.Kind)
	}
}

func TestAuthService_Login_Success(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Ann", "ann@example.com", "s3cret!", "")

	res, err := f.auth.Login(context.Background(), ports.LoginInput{Email: "  ANN@example.com ", Password: "s3cret!"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Token == "" || res.User.Email != "ann@example.com" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.User.LastLoginAt == nil {
		t.Fatal("expected last login to be recorded")
	}
	if f.ledger.count() != 2 {
		t.Fatalf("login must add a session without revoking others, got %d", f.ledger.count())
	}
}

func TestAuthService_Login_FailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	f.register(t, "Ann", "ann@example.com", "s3cret!", "")
	f.register(t, "Old", "old@example.com", "s3cret!", "")
	users, _ := f.users.FindByEmail(context.Background(), "old@example.com")
	_ = f.users.SetActive(context.Background(), users.ID, false)

	attempts := []ports.LoginInput{
		{Email: "nobody@example.com", Password: "s3cret!"},
		{Email: "ann@example.com", Password: "wrong"},
		{Email: "old@example.com", Password: "s3cret!"},
	}

	var messages []string
	for _, in := range attempts {
		_, err := f.auth.Login(context.Background(), in)
		if !errors.Is(err, domain.ErrUnauthenticated) {
			t.Fatalf("%s: expected unauthenticated, got %v", in.Email, err)
		}
		messages = append(messages, err.Error())
	}
	for _, m := range messages {
		if m != domain.MsgInvalidCredentials {
			t.Fatalf("expected %q for every failure, got %v", domain.MsgInvalidCredentials, messages)
		}
	}
}

func TestAuthService_Login_MissingFields(t *testing.T) {
	f := newFixture(t)
	_, err := f.auth.Login(context.Background(), ports.LoginInput{Email: "ann@example.com"})
	if !errors.Is(err, domain.ErrValidation) || err.Error() != domain.MsgLoginFieldsRequired {
		t.Fatalf("expected %q, got %v", domain.MsgLoginFieldsRequired, err)
	}
}

func TestAuthService_Logout_RevokesOnlyPresentedToken(t *testing.T) {
	f := newFixture(t)
	first := f.register(t, "Ann", "ann@example.com", "s3cret!", "")
	second, err := f.auth.Login(context.Background(), ports.LoginInput{Email: "ann@example.com", Password: "s3cret!"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	p, err := f.resolver.ResolveToken(context.Background(), first.Token)
	if err != nil {
		t.Fatalf("ResolveToken: %v", err)
	}
	if err := f.auth.Logout(context.Background(), p); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	if _, err := f.resolver.ResolveToken(context.Background(), first.Token); domain.ReasonOf(err) != domain.ReasonSessionRevoked {
		t.Fatalf("expected revoked session, got %v", err)
	}
	if _, err := f.resolver.ResolveToken(context.Background(), second.Token); err != nil {
		t.Fatalf("other session must survive: %v", err)
	}
}

func TestAuthService_LogoutAll(t *testing.T) {
	f := newFixture(t)
	first := f.register(t, "Ann", "ann@example.com", "s3cret!", "")
	for i := 0; i < 2; i++ {
		if _, err := f.auth.Login(context.Background(), ports.LoginInput{Email: "ann@example.com", Password: "s3cret!"}); err != nil {
			t.Fatalf("Login: %v", err)
		}
	}
	f.register(t, "Bob", "bob@example.com", "pw", "")

	p, _ := f.resolver.ResolveToken(context.Background(), first.Token)
	n, err := f.auth.LogoutAll(context.Background(), p)
	if err != nil {
		t.Fatalf("LogoutAll: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 sessions revoked, got %d", n)
	}
	if f.ledger.count() != 1 {
		t.Fatalf("other users' sessions must survive, got %d", f.ledger.count())
	}
}

type countingHasher struct {
	ports.PasswordHasher
	mu       sync.Mutex
	hashes   int
	verifies int
}

func (h *countingHasher) Hash(p string) (string, error) {
	h.mu.Lock()
	h.hashes++
	h.mu.Unlock()
	return h.PasswordHasher.Hash(p)
}

func (h *countingHasher) Verify(p, hash string) bool {
	h.mu.Lock()
	h.verifies++
	h.mu.Unlock()
	return h.PasswordHasher.Verify(p, hash)
}

// An unknown-email login costs exactly one Verify and no Hash, the same
// work as a wrong-password login, including on the first request.
func TestAuthService_Login_UnknownEmailCostsOneVerify(t *testing.T) {
	f := newFixture(t)
	hasher := &countingHasher{PasswordHasher: security.NewBcryptHasher(bcrypt.MinCost)}
	svc := newAuthService(AuthDeps{
		Users:    f.users,
		Sessions: f.ledger,
		Hasher:   hasher,
		Tokens:   f.codec,
		Logger:   zerolog.Nop(),
	})
	if hasher.hashes != 1 || svc.dummyHash == "" {
		t.Fatalf("placeholder must be built at construction, hashes=%d", hasher.hashes)
	}

	_, err := svc.Login(context.Background(), ports.LoginInput{Email: "nobody@example.com", Password: "s3cret!"})
	if !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if hasher.hashes != 1 || hasher.verifies != 1 {
		t.Fatalf("expected no extra Hash and one Verify, got hashes=%d verifies=%d", hasher.hashes, hasher.verifies)
	}
}
