package domain

import "time"

// AuthEventType names an auditable authentication action.
type AuthEventType string

const (
	EventRegistered   AuthEventType = "registered"
	EventLoginSuccess AuthEventType = "login_success"
	EventLoginFailure AuthEventType = "login_failure"
	EventLogout       AuthEventType = "logout"
	EventLogoutAll    AuthEventType = "logout_all"
	EventRoleChanged  AuthEventType = "role_changed"
	EventDeactivated  AuthEventType = "deactivated"
	EventActivated    AuthEventType = "activated"
	EventUserDeleted  AuthEventType = "user_deleted"
)

// AuthEvent is one entry of the authentication audit trail.
type AuthEvent struct {
	Type     AuthEventType
	UserID   string // empty when the account is unknown
	Email    string
	ActorID  string // administrator performing the action, if any
	Reason   string
	RemoteIP string
	At       time.Time
}
