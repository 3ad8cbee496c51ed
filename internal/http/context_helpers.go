package httpx

import (
	"context"

	domainauth "github.com/target/powra-portal/internal/domain/auth"
)

// sessionKey and roleKey are unexported context key types to avoid collisions across packages.
// Centralized in this file so all handlers/middleware use the same keys.
type (
	sessionKey struct{}
	roleKey    struct{}
)

// SetSessionInContext returns a child context that carries the given session.
func SetSessionInContext(ctx context.Context, session domainauth.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

// SessionFromContext returns the session placed by the access chain and a boolean indicating presence.
func SessionFromContext(ctx context.Context) (domainauth.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(domainauth.Session)
	return s, ok
}

// SetRoleInContext returns a child context that carries the resolved role.
func SetRoleInContext(ctx context.Context, role domainauth.Role) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

// RoleFromContext returns the role resolved for this request, or "" when the
// request did not pass through the access chain.
func RoleFromContext(ctx context.Context) domainauth.Role {
	r, _ := ctx.Value(roleKey{}).(domainauth.Role)
	return r
}
