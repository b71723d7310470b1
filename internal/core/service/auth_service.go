package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/homelist/auth-service/internal/api/metrics"
	"github.com/homelist/auth-service/internal/core/domain"
	"github.com/homelist/auth-service/internal/core/ports"
)

// AuthDeps groups the collaborators of the credential flow.
type AuthDeps struct {
	Users    ports.UserRepository
	Sessions ports.SessionLedger
	Hasher   ports.PasswordHasher
	Tokens   ports.TokenCodec
	Audit    ports.AuditRecorder
	Logger   zerolog.Logger
}

type authService struct {
	users    ports.UserRepository
	sessions ports.SessionLedger
	hasher   ports.PasswordHasher
	tokens   ports.TokenCodec
	audit    ports.AuditRecorder
	log      zerolog.Logger
	now      func() time.Time

	// dummyHash is verified against when the email is unknown so both
	// login failure paths pay for one bcrypt comparison. It is built at
	// construction so no request pays for an extra Hash.
	dummyHash string
}

// NewAuthService returns an AuthService implementation.
func NewAuthService(d AuthDeps) ports.AuthService {
	return newAuthService(d)
}

func newAuthService(d AuthDeps) *authService {
	audit := d.Audit
	if audit == nil {
		audit = discardAudit{}
	}
	s := &authService{
		users:    d.Users,
		sessions: d.Sessions,
		hasher:   d.Hasher,
		tokens:   d.Tokens,
		audit:    audit,
		log:      d.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	h, err := s.hasher.Hash("placeholder-password-for-unknown-accounts")
	if err != nil {
		s.log.Warn().Err(err).Msg("could not build placeholder hash")
	}
	s.dummyHash = h
	return s
}

// Register creates an account and opens its first session.
func (s *authService) Register(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error) {
	name := strings.TrimSpace(in.Name)
	email := domain.NormalizeEmail(in.Email)
	if name == "" || email == "" || in.Password == "" {
		metrics.RegistrationsTotal.WithLabelValues("validation_error").Inc()
		return nil, domain.NewValidationError(domain.MsgRegisterFieldsRequired)
	}
	role, ok := domain.ParseRole(in.Role)
	if !ok {
		metrics.RegistrationsTotal.WithLabelValues("validation_error").Inc()
		return nil, domain.NewValidationError(domain.MsgInvalidRole)
	}

	// Fast path only; the unique index in Create is the real guard.
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		metrics.RegistrationsTotal.WithLabelValues("conflict").Inc()
		return nil, domain.NewConflictError(domain.MsgUserExists)
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("register: lookup email: %w", err)
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		outcome := "error"
		if errors.Is(err, domain.ErrValidation) {
			outcome = "validation_error"
		}
		metrics.RegistrationsTotal.WithLabelValues(outcome).Inc()
		return nil, err
	}

	now := s.now()
	user, err := s.users.Create(ctx, &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			metrics.RegistrationsTotal.WithLabelValues("conflict").Inc()
			return nil, domain.NewConflictError(domain.MsgUserExists)
		}
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("register: create user: %w", err)
	}

	token, err := s.openSession(ctx, user)
	if err != nil {
		metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("register: %w", err)
	}

	metrics.RegistrationsTotal.WithLabelValues("success").Inc()
	s.log.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("user registered")
	s.record(domain.EventRegistered, user.ID, user.Email, "", "", in.RemoteIP)

	return &ports.AuthResult{Token: token, User: user.Public()}, nil
}

// Login verifies credentials and opens a new session. Unknown email,
// wrong password and deactivated account all return the same error.
func (s *authService) Login(ctx context.Context, in ports.LoginInput) (*ports.AuthResult, error) {
	email := domain.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		metrics.LoginsTotal.WithLabelValues("validation_error").Inc()
		return nil, domain.NewValidationError(domain.MsgLoginFieldsRequired)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.verify(in.Password, s.dummyHash)
			return nil, s.loginFailed(email, domain.ReasonUnknownEmail, in.RemoteIP, "")
		}
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("login: lookup email: %w", err)
	}

	if !s.verify(in.Password, user.PasswordHash) {
		return nil, s.loginFailed(email, domain.ReasonBadPassword, in.RemoteIP, user.ID)
	}
	if !user.Active {
		return nil, s.loginFailed(email, domain.ReasonUserInactive, in.RemoteIP, user.ID)
	}

	token, err := s.openSession(ctx, user)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("login: %w", err)
	}

	now := s.now()
	if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("failed to record last login")
	} else {
		user.LastLoginAt = &now
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	s.log.Info().Str("user_id", user.ID).Msg("login succeeded")
	s.record(domain.EventLoginSuccess, user.ID, user.Email, "", "", in.RemoteIP)

	return &ports.AuthResult{Token: token, User: user.Public()}, nil
}

// Logout revokes only the session the principal authenticated with.
func (s *authService) Logout(ctx context.Context, p *domain.Principal) error {
	if p == nil || p.Token == "" {
		return domain.NewUnauthenticated(domain.ReasonMissingToken)
	}
	if err := s.sessions.Delete(ctx, domain.HashToken(p.Token)); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	metrics.SessionsRevokedTotal.WithLabelValues("logout").Inc()
	s.record(domain.EventLogout, p.ID, p.Email, p.ID, "", "")
	return nil
}

// LogoutAll revokes every session of the principal's user.
func (s *authService) LogoutAll(ctx context.Context, p *domain.Principal) (int64, error) {
	if p == nil || p.ID == "" {
		return 0, domain.NewUnauthenticated(domain.ReasonMissingToken)
	}
	n, err := s.sessions.DeleteAllForUser(ctx, p.ID)
	if err != nil {
		return 0, fmt.Errorf("logout all: %w", err)
	}
	metrics.SessionsRevokedTotal.WithLabelValues("logout_all").Add(float64(n))
	s.log.Info().Str("user_id", p.ID).Int64("sessions", n).Msg("all sessions revoked")
	s.record(domain.EventLogoutAll, p.ID, p.Email, p.ID, "", "")
	return n, nil
}

// openSession issues a token for user and records its digest in the ledger.
func (s *authService) openSession(ctx context.Context, user *domain.User) (string, error) {
	token, claims, err := s.tokens.Issue(domain.TokenClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	})
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	if err := s.sessions.Create(ctx, user.ID, domain.HashToken(token), claims.ExpiresAt); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return token, nil
}

func (s *authService) loginFailed(email, reason, remoteIP, userID string) error {
	metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
	s.log.Info().Str("email", email).Str("reason", reason).Msg("login rejected")
	s.record(domain.EventLoginFailure, userID, email, "", reason, remoteIP)
	return domain.NewInvalidCredentials(reason)
}

func (s *authService) hash(password string) (string, error) {
	start := time.Now()
	defer func() {
		metrics.PasswordHashDuration.WithLabelValues("hash").Observe(time.Since(start).Seconds())
	}()
	return s.hasher.Hash(password)
}

func (s *authService) verify(password, hash string) bool {
	start := time.Now()
	defer func() {
		metrics.PasswordHashDuration.WithLabelValues("verify").Observe(time.Since(start).Seconds())
	}()
	return s.hasher.Verify(password, hash)
}

func (s *authService) record(t domain.AuthEventType, userID, email, actorID, reason, remoteIP string) {
	s.audit.Record(domain.AuthEvent{
		Type:     t,
		UserID:   userID,
		Email:    email,
		ActorID:  actorID,
		Reason:   reason,
		RemoteIP: remoteIP,
		At:       s.now(),
	})
}

type discardAudit struct{}

func (discardAudit) Record(domain.AuthEvent) {}
