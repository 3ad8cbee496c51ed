package authroles

import (
	"context"
	"errors"
	"fmt"

	domainauth "github.com/target/powra-portal/internal/domain/auth"
	"github.com/target/powra-portal/internal/ports"
)

// StoreSource reads the role column of the caller's users row.
type StoreSource struct {
	users ports.UserRoleLookup
}

var _ ports.RoleSource = (*StoreSource)(nil)

func NewStoreSource(users ports.UserRoleLookup) *StoreSource {
	return &StoreSource{users: users}
}

func (s *StoreSource) ResolveRole(ctx context.Context, id domainauth.Identity) (domainauth.Role, error) {
	if id.UserID == "" {
		return "", ports.ErrRoleUnresolvable
	}
	raw, err := s.users.GetRole(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, ports.ErrUserNotFound) {
			return "", ports.ErrRoleUnresolvable
		}
		return "", fmt.Errorf("lookup user role: %w", err)
	}
	role, ok := domainauth.ParseRole(raw)
	if !ok {
		return "", fmt.Errorf("%w: stored role %q", ports.ErrRoleUnresolvable, raw)
	}
	return role, nil
}

// Chain consults sources in order; the first resolved role wins. Sources that
// report ErrRoleUnresolvable are skipped; any other error aborts.
type Chain []ports.RoleSource

var _ ports.RoleSource = Chain(nil)

func (c Chain) ResolveRole(ctx context.Context, id domainauth.Identity) (domainauth.Role, error) {
	for _, src := range c {
		role, err := src.ResolveRole(ctx, id)
		if err == nil {
			return role, nil
		}
		if !errors.Is(err, ports.ErrRoleUnresolvable) {
			return "", err
		}
	}
	return "", ports.ErrRoleUnresolvable
}
