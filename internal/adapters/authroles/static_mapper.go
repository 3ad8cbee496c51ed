package authroles

import (
	domainauth "github.com/target/powra-portal/internal/domain/auth"
	"github.com/target/powra-portal/internal/ports"
)

var _ ports.RoleMapper = StaticRoleMapper{}

// StaticRoleMapper maps provider groups by exact membership, highest privilege first.
type StaticRoleMapper struct {
	AdminGroup      string
	SupervisorGroup string
	UserGroup       string
}

func (m StaticRoleMapper) Map(groups []string) (domainauth.Role, bool) {
	rules := []struct {
		group string
		role  domainauth.Role
	}{
		{m.AdminGroup, domainauth.RoleAdmin},
		{m.SupervisorGroup, domainauth.RoleSupervisor},
		{m.UserGroup, domainauth.RoleUser},
	}
	for _, r := range rules {
		if r.group == "" {
			continue
		}
		for _, g := range groups {
			if g == r.group {
				return r.role, true
			}
		}
	}
	return "", false
}
