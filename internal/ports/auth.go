package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"errors"
	"time"

	domainauth "github.com/target/powra-portal/internal/domain/auth"
)

var (
	// ErrUnauthenticated reports that the request carries no valid session.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrRoleUnresolvable reports that no role could be determined for an identity.
	ErrRoleUnresolvable = errors.New("role unresolvable")
	// ErrUserNotFound is returned by user stores when no record exists for an id.
	ErrUserNotFound = errors.New("user not found")
)

// BeginInput carries inputs for initiating an auth flow.
type BeginInput struct {
	RedirectURL string
}

// AuthProvider initiates and completes an authentication flow against an IdP.
type AuthProvider interface {
	// Begin starts the login flow and returns the provider auth URL, an opaque state, and a nonce.
	Begin(ctx context.Context, in BeginInput) (authURL, state, nonce string, err error)

	// Exchange completes the login flow, verifying state and nonce, and returns the authenticated identity
	// together with the provider tokens.
	Exchange(ctx context.Context, in ExchangeInput) (ExchangeResult, error)
}

// ExchangeInput groups parameters for the code/token exchange.
type ExchangeInput struct {
	Code  string
	State string
	Nonce string
}

// ExchangeResult is the outcome of a successful code exchange.
type ExchangeResult struct {
	Identity domainauth.Identity
	Tokens   Tokens
}

// Tokens are the raw provider tokens from an exchange or refresh.
type Tokens struct {
	AccessToken  string
	IDToken      string
	RefreshToken string
	Expiry       time.Time
}

// Cookies is the cookie capability handed to session introspection.
// Get reads from the inbound request; Set and Remove write to the outbound response.
type Cookies interface {
	Get(name string) (string, bool)
	Set(name, value string, maxAge time.Duration)
	Remove(name string)
}

// SessionIntrospector validates the session carried by request cookies.
// It returns ErrUnauthenticated when no valid session exists; any other error
// means the provider itself failed. Implementations may refresh the session and
// write updated cookies through Cookies.
type SessionIntrospector interface {
	Introspect(ctx context.Context, cookies Cookies) (domainauth.Session, error)
}

// SessionIssuer persists a new session after login and writes its cookies.
type SessionIssuer interface {
	Issue(ctx context.Context, res ExchangeResult, cookies Cookies) (domainauth.Session, error)
	Revoke(ctx context.Context, cookies Cookies) error
}

// SessionStore persists and retrieves server-side sessions.
type SessionStore interface {
	Save(ctx context.Context, sess domainauth.Session) error
	Get(ctx context.Context, id string) (domainauth.Session, error)
	Delete(ctx context.Context, id string) error
}

// RoleSource resolves the effective role of an authenticated identity.
// It returns ErrRoleUnresolvable when it has no answer for the identity.
type RoleSource interface {
	ResolveRole(ctx context.Context, id domainauth.Identity) (domainauth.Role, error)
}

// RoleMapper maps provider groups to application roles.
type RoleMapper interface {
	Map(groups []string) (domainauth.Role, bool)
}

// UserRoleLookup fetches the role column of a user record.
type UserRoleLookup interface {
	GetRole(ctx context.Context, userID string) (string, error)
}
