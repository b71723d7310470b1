package domain

import "errors"

// Error kinds. Every *Error unwraps to exactly one of these.
var (
	ErrValidation      = errors.New("validation error")
	ErrConflict        = errors.New("conflict")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

// Storage sentinels returned by repositories and ledgers.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user with this email already exists")
	ErrSessionNotFound = errors.New("session not found")
)

// Token codec sentinels.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Client-visible messages.
const (
	MsgRegisterFieldsRequired = "name, email, and password are required"
	MsgLoginFieldsRequired    = "email and password are required"
	MsgInvalidRole            = "role must be one of: user, agent, admin"
	MsgPasswordTooLong        = "password must be at most 72 bytes"
	MsgUserExists             = "user with this email already exists"
	MsgInvalidCredentials     = "invalid email or password"
	MsgAuthRequired           = "authentication required"
	MsgInvalidSession         = "invalid or expired session"
	MsgInsufficientPerms      = "insufficient permissions"
)

// Internal reasons, logged for operators and never rendered to clients.
const (
	ReasonMissingToken   = "missing_token"
	ReasonInvalidToken   = "invalid_token"
	ReasonTokenExpired   = "token_expired"
	ReasonSessionRevoked = "session_revoked"
	ReasonUserMissing    = "user_missing"
	ReasonUserInactive   = "user_inactive"
	ReasonUnknownEmail   = "unknown_email"
	ReasonBadPassword    = "bad_password"
	ReasonRoleDenied     = "role_denied"
)

// Error is a classified failure. Message is safe to show to clients;
// Reason is the operator-facing detail.
type Error struct {
	Kind    error
	Message string
	Reason  string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

func NewValidationError(msg string) *Error {
	return &Error{Kind: ErrValidation, Message: msg}
}

func NewConflictError(msg string) *Error {
	return &Error{Kind: ErrConflict, Message: msg}
}

// NewUnauthenticated returns a 401-class error. A missing token gets the
// "authentication required" message; every other reason is rendered with
// the same generic session message so expiry and revocation look alike.
func NewUnauthenticated(reason string) *Error {
	msg := MsgInvalidSession
	if reason == ReasonMissingToken {
		msg = MsgAuthRequired
	}
	return &Error{Kind: ErrUnauthenticated, Message: msg, Reason: reason}
}

// NewInvalidCredentials is the single error for every failed login.
func NewInvalidCredentials(reason string) *Error {
	return &Error{Kind: ErrUnauthenticated, Message: MsgInvalidCredentials, Reason: reason}
}

func NewForbidden() *Error {
	return &Error{Kind: ErrForbidden, Message: MsgInsufficientPerms, Reason: ReasonRoleDenied}
}

// ReasonOf returns the operator reason carried by err, if any.
func ReasonOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Reason
	}
	return ""
}
