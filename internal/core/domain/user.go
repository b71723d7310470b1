package domain

import (
	"strings"
	"time"
)

// Role is the closed set of authorisation tiers a User can hold.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

// Roles lists every valid role in ascending privilege order.
var Roles = []Role{RoleUser, RoleAgent, RoleAdmin}

// Valid reports whether r belongs to the closed role enumeration.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAgent, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole converts requested role text into a Role. An empty value
// defaults to RoleUser; anything outside the enumeration is rejected.
func ParseRole(s string) (Role, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return RoleUser, true
	}
	r := Role(s)
	return r, r.Valid()
}

// NormalizeEmail lowercases and trims an email so uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// User is the persisted principal record.
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	Active       bool       `json:"active"`
	Verified     bool       `json:"verified"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// PublicUser is the client-facing projection of a User. It has no field
// capable of carrying the password hash.
type PublicUser struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Role        Role       `json:"role"`
	Active      bool       `json:"active"`
	Verified    bool       `json:"verified"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Public returns the non-secret fields of u.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		Active:      u.Active,
		Verified:    u.Verified,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

// Principal is the authenticated identity attached to a single request.
// It is never persisted.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
	Name  string `json:"name"`

	// Token is the bearer string the request was authenticated with, so
	// logout can revoke exactly this session.
	Token string `json:"-"`
}

// PrincipalFromUser builds a Principal from the current user row.
func PrincipalFromUser(u *User, token string) *Principal {
	return &Principal{
		ID:    u.ID,
		Email: u.Email,
		Role:  u.Role,
		Name:  u.Name,
		Token: token,
	}
}
