// Package authroles resolves application roles from identity metadata, provider
// groups and the users table.
package authroles

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmespath-community/go-jmespath"
	domainauth "github.com/target/powra-portal/internal/domain/auth"
	"github.com/target/powra-portal/internal/ports"
)

// DefaultClaimPath looks for the role at the top level, then in user and app metadata.
const DefaultClaimPath = "role || user_metadata.role || app_metadata.role"

// MetadataSource reads the role from identity metadata with a JMESPath expression,
// falling back to group mapping when the expression yields nothing.
type MetadataSource struct {
	expr   compiledPath
	mapper ports.RoleMapper
}

var _ ports.RoleSource = (*MetadataSource)(nil)

type compiledPath interface {
	Search(data any) (any, error)
}

// NewMetadataSource compiles claimPath (DefaultClaimPath when empty). mapper may be nil.
func NewMetadataSource(claimPath string, mapper ports.RoleMapper) (*MetadataSource, error) {
	if strings.TrimSpace(claimPath) == "" {
		claimPath = DefaultClaimPath
	}
	expr, err := jmespath.Compile(claimPath)
	if err != nil {
		return nil, fmt.Errorf("compile role claim path %q: %w", claimPath, err)
	}
	return &MetadataSource{expr: expr, mapper: mapper}, nil
}

// ResolveRole returns ErrRoleUnresolvable when neither metadata nor groups name a known role.
// A metadata value that is present but not a known role is also unresolvable.
func (s *MetadataSource) ResolveRole(_ context.Context, id domainauth.Identity) (domainauth.Role, error) {
	if len(id.Metadata) > 0 {
		v, err := s.expr.Search(id.Metadata)
		if err != nil {
			return "", fmt.Errorf("evaluate role claim: %w", err)
		}
		if raw, ok := v.(string); ok && raw != "" {
			if role, known := domainauth.ParseRole(raw); known {
				return role, nil
			}
			return "", fmt.Errorf("%w: unknown role %q", ports.ErrRoleUnresolvable, raw)
		}
	}
	if s.mapper != nil {
		if role, ok := s.mapper.Map(id.Groups); ok {
			return role, nil
		}
	}
	return "", ports.ErrRoleUnresolvable
}
