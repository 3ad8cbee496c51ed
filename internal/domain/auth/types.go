package auth

// Package auth contains domain-level types for authentication and sessions.
// It is pure and free of framework/adapter concerns.

import (
	"strings"
	"time"
)

// Role represents an application's authorization tier.
// Keep string form for easy persistence and JSON payloads.
// Valid values are defined as constants below.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSupervisor Role = "supervisor"
	RoleUser       Role = "user"
)

// roleAliases maps legacy role names onto the canonical tiers.
var roleAliases = map[string]Role{
	"admin":      RoleAdmin,
	"supervisor": RoleSupervisor,
	"manager":    RoleSupervisor,
	"user":       RoleUser,
}

// ParseRole normalizes raw into a known Role. The second return is false when
// raw does not name one of the three tiers.
func ParseRole(raw string) (Role, bool) {
	r, ok := roleAliases[strings.ToLower(strings.TrimSpace(raw))]
	return r, ok
}

// Valid reports whether r is one of the canonical roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSupervisor, RoleUser:
		return true
	default:
		return false
	}
}

func (r Role) String() string { return string(r) }

// StoredNames returns every persisted spelling that parses to r, canonical first.
func (r Role) StoredNames() []string {
	names := []string{string(r)}
	for name, role := range roleAliases {
		if role == r && name != string(r) {
			names = append(names, name)
		}
	}
	return names
}

// AllRoles returns the canonical roles from most to least privileged.
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleSupervisor, RoleUser}
}

// Identity represents the authenticated principal returned by an IdP.
// Adapters map provider-specific claims into this shape.
type Identity struct {
	UserID    string // stable user identifier (sub)
	FirstName string
	LastName  string
	Email     string
	Groups    []string
	// Metadata holds provider-attached claims (user_metadata, app_metadata, custom claims).
	Metadata  map[string]any
	ExpiresAt time.Time // absolute expiry from IdP token
}

// Session is the record describing an authenticated browser/client context.
// ID is an opaque session token (server-side sessions) or empty for token-cookie sessions.
type Session struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	FirstName      string         `json:"first_name"`
	LastName       string         `json:"last_name"`
	Email          string         `json:"email"`
	Groups         []string       `json:"groups,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	HasAccessToken bool           `json:"has_access_token"`
	IssuedAt       time.Time      `json:"issued_at"`
	ExpiresAt      time.Time      `json:"expires_at"`
}

// Identity returns the principal carried by the session.
func (s Session) Identity() Identity {
	return Identity{
		UserID:    s.UserID,
		FirstName: s.FirstName,
		LastName:  s.LastName,
		Email:     s.Email,
		Groups:    s.Groups,
		Metadata:  s.Metadata,
		ExpiresAt: s.ExpiresAt,
	}
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
