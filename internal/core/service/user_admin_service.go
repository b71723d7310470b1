package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/homelist/auth-service/internal/api/metrics"
	"github.com/homelist/auth-service/internal/core/domain"
	"github.com/homelist/auth-service/internal/core/ports"
)

type userAdminService struct {
	users    ports.UserRepository
	sessions ports.SessionLedger
	audit    ports.AuditRecorder
	log      zerolog.Logger
}

// NewUserAdminService returns a UserAdminService implementation. Every
// mutation that narrows what a user may do also revokes their sessions.
func NewUserAdminService(
	users ports.UserRepository,
	sessions ports.SessionLedger,
	audit ports.AuditRecorder,
	log zerolog.Logger,
) ports.UserAdminService {
	if audit == nil {
		audit = discardAudit{}
	}
	return &userAdminService{users: users, sessions: sessions, audit: audit, log: log}
}

func (s *userAdminService) GetUser(ctx context.Context, id string) (*domain.PublicUser, error) {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	pub := u.Public()
	return &pub, nil
}

// ChangeRole sets a new role and logs the user out everywhere.
func (s *userAdminService) ChangeRole(ctx context.Context, actor *domain.Principal, id, role string) (*domain.PublicUser, error) {
	if strings.TrimSpace(role) == "" {
		return nil, domain.NewValidationError(domain.MsgInvalidRole)
	}
	r, ok := domain.ParseRole(role)
	if !ok {
		return nil, domain.NewValidationError(domain.MsgInvalidRole)
	}
	if err := s.users.UpdateRole(ctx, id, r); err != nil {
		return nil, fmt.Errorf("change role: %w", err)
	}
	s.revokeAll(ctx, id, "role_change")

	pub, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", id).Str("actor_id", actorID(actor)).Str("role", string(r)).Msg("role changed")
	s.record(domain.EventRoleChanged, id, pub.Email, actor, string(r))
	return pub, nil
}

// SetActive toggles the active flag. Deactivation revokes every session.
func (s *userAdminService) SetActive(ctx context.Context, actor *domain.Principal, id string, active bool) (*domain.PublicUser, error) {
	if err := s.users.SetActive(ctx, id, active); err != nil {
		return nil, fmt.Errorf("set active: %w", err)
	}
	evt := domain.EventActivated
	if !active {
		evt = domain.EventDeactivated
		s.revokeAll(ctx, id, "deactivation")
	}
	pub, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("user_id", id).Str("actor_id", actorID(actor)).Bool("active", active).Msg("user status changed")
	s.record(evt, id, pub.Email, actor, "")
	return pub, nil
}

// DeleteUser removes the user's sessions first, then the user.
func (s *userAdminService) DeleteUser(ctx context.Context, actor *domain.Principal, id string) error {
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.revokeAll(ctx, id, "deletion")
	if err := s.users.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.log.Info().Str("user_id", id).Str("actor_id", actorID(actor)).Msg("user deleted")
	s.record(domain.EventUserDeleted, id, u.Email, actor, "")
	return nil
}

// revokeAll is best effort: a failed revocation is logged, and the
// resolver still rejects the user on its next request when the row
// changed in a way that denies access.
func (s *userAdminService) revokeAll(ctx context.Context, id, cause string) {
	n, err := s.sessions.DeleteAllForUser(ctx, id)
	if err != nil {
		s.log.Error().Err(err).Str("user_id", id).Str("cause", cause).Msg("failed to revoke sessions")
		return
	}
	metrics.SessionsRevokedTotal.WithLabelValues(cause).Add(float64(n))
}

func (s *userAdminService) record(t domain.AuthEventType, userID, email string, actor *domain.Principal, reason string) {
	s.audit.Record(domain.AuthEvent{
		Type:    t,
		UserID:  userID,
		Email:   email,
		ActorID: actorID(actor),
		Reason:  reason,
		At:      time.Now().UTC(),
	})
}

func actorID(p *domain.Principal) string {
	if p == nil {
		return ""
	}
	return p.ID
}
