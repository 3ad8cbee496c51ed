// Package access holds the route policy table and the pure allow/deny logic that
// gates dashboard pages and API endpoints by role.
package access

import (
	"errors"
	"fmt"
	"strings"

	domainauth "github.com/target/powra-portal/internal/domain/auth"
)

const (
	// DashboardPrefix is the root of all gated page routes.
	DashboardPrefix = "/dashboard"
	// APIPrefix is the root of all gated API routes.
	APIPrefix = "/api"
)

// DefaultEntries returns the built-in role → allowed prefix table.
func DefaultEntries() map[domainauth.Role][]string {
	return map[domainauth.Role][]string{
		domainauth.RoleAdmin:      {"/dashboard/admin", "/dashboard/documents", "/dashboard/forms"},
		domainauth.RoleSupervisor: {"/dashboard/documents", "/dashboard/forms"},
		domainauth.RoleUser:       {"/dashboard/documents", "/dashboard/forms"},
	}
}

// DefaultCommonPaths are exact paths any resolved role may reach. The dashboard
// landing page must stay reachable because denials redirect there.
func DefaultCommonPaths() []string {
	return []string{"/dashboard", "/dashboard/me"}
}

// PolicyConfig configures NewPolicy.
type PolicyConfig struct {
	// Entries maps each role to its allowed path prefixes. Nil selects DefaultEntries.
	Entries map[domainauth.Role][]string
	// CommonPaths are exact paths open to every known role. Nil selects DefaultCommonPaths.
	CommonPaths []string
	// DisableAPIRewrite turns off the /api/ → /dashboard/ mapping, leaving API paths
	// to be matched verbatim.
	DisableAPIRewrite bool
}

// Policy is the immutable route policy table. It is safe for concurrent use.
type Policy struct {
	entries    map[domainauth.Role][]string
	common     map[string]struct{}
	rewriteAPI bool
}

// NewPolicy validates cfg and builds a Policy. Inputs are copied so later mutation of
// cfg has no effect.
func NewPolicy(cfg PolicyConfig) (*Policy, error) {
	entries := cfg.Entries
	if entries == nil {
		entries = DefaultEntries()
	}
	common := cfg.CommonPaths
	if common == nil {
		common = DefaultCommonPaths()
	}

	p := &Policy{
		entries:    make(map[domainauth.Role][]string, len(entries)),
		common:     make(map[string]struct{}, len(common)),
		rewriteAPI: !cfg.DisableAPIRewrite,
	}
	for role, prefixes := range entries {
		if !role.Valid() {
			return nil, fmt.Errorf("policy: unknown role %q", role)
		}
		out := make([]string, 0, len(prefixes))
		for _, prefix := range prefixes {
			norm, err := normalizePrefix(prefix)
			if err != nil {
				return nil, fmt.Errorf("policy: role %s: %w", role, err)
			}
			out = append(out, norm)
		}
		p.entries[role] = out
	}
	for _, path := range common {
		norm, err := normalizePrefix(path)
		if err != nil {
			return nil, fmt.Errorf("policy: common path: %w", err)
		}
		p.common[norm] = struct{}{}
	}
	return p, nil
}

var errEmptyPrefix = errors.New("empty path prefix")

func normalizePrefix(prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", errEmptyPrefix
	}
	if !strings.HasPrefix(prefix, "/") {
		return "", fmt.Errorf("path prefix %q must start with /", prefix)
	}
	if len(prefix) > 1 {
		prefix = strings.TrimRight(prefix, "/")
	}
	return prefix, nil
}

// AllowedPrefixes returns a copy of the prefixes allowed for role. Unknown roles yield nil.
func (p *Policy) AllowedPrefixes(role domainauth.Role) []string {
	prefixes := p.entries[role]
	if len(prefixes) == 0 {
		return nil
	}
	return append([]string(nil), prefixes...)
}

// RewritesAPI reports whether API paths are mapped onto dashboard paths before matching.
func (p *Policy) RewritesAPI() bool { return p.rewriteAPI }

// CheckedPath returns the path the policy matches for a request path: API paths are
// mapped from /api/... to /dashboard/... when rewriting is enabled.
func (p *Policy) CheckedPath(path string) string {
	if !p.rewriteAPI {
		return path
	}
	return RewriteAPIPath(path)
}

// RewriteAPIPath replaces a leading /api/ segment with /dashboard/. Other paths are
// returned unchanged.
func RewriteAPIPath(path string) string {
	switch {
	case path == APIPrefix:
		return DashboardPrefix
	case strings.HasPrefix(path, APIPrefix+"/"):
		return DashboardPrefix + path[len(APIPrefix):]
	default:
		return path
	}
}

// Allows reports whether role may reach path.
func (p *Policy) Allows(role domainauth.Role, path string) bool {
	prefixes, ok := p.entries[role]
	if !ok {
		return false
	}
	checked := p.CheckedPath(path)
	if len(checked) > 1 {
		checked = strings.TrimRight(checked, "/")
	}
	if _, ok := p.common[checked]; ok {
		return true
	}
	for _, prefix := range prefixes {
		if hasPathPrefix(checked, prefix) {
			return true
		}
	}
	return false
}

// hasPathPrefix matches whole path segments: /dashboard/forms matches
// /dashboard/forms and /dashboard/forms/powra but not /dashboard/formsx.
func hasPathPrefix(path, prefix string) bool {
	if prefix == "/" {
		return strings.HasPrefix(path, "/")
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}
