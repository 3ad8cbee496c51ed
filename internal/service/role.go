package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domainauth "github.com/target/powra-portal/internal/domain/auth"
	"github.com/target/powra-portal/internal/ports"
)

// RoleResolverConfig controls timeout and the unresolvable-role policy.
type RoleResolverConfig struct {
	Timeout time.Duration
	// DefaultRole, when set, is granted to authenticated identities whose role
	// cannot be resolved. Empty means deny.
	DefaultRole domainauth.Role
}

// RoleResolverOptions groups dependencies for RoleResolver.
type RoleResolverOptions struct {
	Source ports.RoleSource // Required
	Config RoleResolverConfig
	Logger *slog.Logger // Optional
}

// RoleResolver determines the effective role of an authenticated session.
// Roles are resolved on every call and never cached.
type RoleResolver struct {
	source      ports.RoleSource
	timeout     time.Duration
	defaultRole domainauth.Role
	logger      *slog.Logger
}

// NewRoleResolver constructs a RoleResolver.
func NewRoleResolver(opts RoleResolverOptions) *RoleResolver {
	if opts.Source == nil {
		panic("RoleSource is required")
	}
	if opts.Config.DefaultRole != "" && !opts.Config.DefaultRole.Valid() {
		panic(fmt.Sprintf("invalid default role %q", opts.Config.DefaultRole))
	}
	timeout := opts.Config.Timeout
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RoleResolver{
		source:      opts.Source,
		timeout:     timeout,
		defaultRole: opts.Config.DefaultRole,
		logger:      logger.With("component", "role_resolver"),
	}
}

// Resolve returns the caller's role. Unresolvable identities get the configured
// default role or ports.ErrRoleUnresolvable; source failures are returned wrapped.
func (r *RoleResolver) Resolve(ctx context.Context, sess domainauth.Session) (domainauth.Role, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	role, err := r.source.ResolveRole(ctx, sess.Identity())
	if err == nil {
		if !role.Valid() {
			return "", fmt.Errorf("%w: source returned %q", ports.ErrRoleUnresolvable, role)
		}
		return role, nil
	}
	if !errors.Is(err, ports.ErrRoleUnresolvable) {
		return "", fmt.Errorf("resolve role: %w", err)
	}
	if r.defaultRole != "" {
		r.logger.DebugContext(ctx, "role unresolvable, using default", "user_id", sess.UserID, "role", r.defaultRole)
		return r.defaultRole, nil
	}
	return "", err
}
