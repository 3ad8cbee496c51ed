package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/powra-portal/internal/domain/auth"
	"github.com/target/powra-portal/internal/mocks"
	"github.com/target/powra-portal/internal/ports"
	"go.uber.org/mock/gomock"
)

func TestRoleResolver_Resolve(t *testing.T) {
	sess := domainauth.Session{UserID: "u1", Email: "u1@example.com", Metadata: map[string]any{"role": "admin"}}
	boom := errors.New("db down")

	tests := []struct {
		name        string
		defaultRole domainauth.Role
		role        domainauth.Role
		err         error
		want        domainauth.Role
		wantErr     error
	}{
		{name: "resolved", role: domainauth.RoleAdmin, want: domainauth.RoleAdmin},
		{name: "unresolvable denies", err: ports.ErrRoleUnresolvable, wantErr: ports.ErrRoleUnresolvable},
		{name: "unresolvable wrapped denies", err: fmt.Errorf("%w: stored role %q", ports.ErrRoleUnresolvable, "x"), wantErr: ports.ErrRoleUnresolvable},
		{name: "unresolvable with default", defaultRole: domainauth.RoleUser, err: ports.ErrRoleUnresolvable, want: domainauth.RoleUser},
		{name: "source failure never defaults", defaultRole: domainauth.RoleUser, err: boom, wantErr: boom},
		{name: "invalid role from source", role: domainauth.Role("root"), wantErr: ports.ErrRoleUnresolvable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			src := mocks.NewMockRoleSource(ctrl)
			src.EXPECT().ResolveRole(gomock.Any(), sess.Identity()).Return(tt.role, tt.err)

			resolver := NewRoleResolver(RoleResolverOptions{
				Source: src,
				Config: RoleResolverConfig{DefaultRole: tt.defaultRole},
			})
			got, err := resolver.Resolve(context.Background(), sess)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoleResolver_AppliesTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockRoleSource(ctrl)
	src.EXPECT().ResolveRole(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ domainauth.Identity) (domainauth.Role, error) {
			deadline, ok := ctx.Deadline()
			require.True(t, ok)
			assert.WithinDuration(t, time.Now().Add(time.Second), deadline, 500*time.Millisecond)
			return domainauth.RoleUser, nil
		})

	resolver := NewRoleResolver(RoleResolverOptions{Source: src, Config: RoleResolverConfig{Timeout: time.Second}})
	_, err := resolver.Resolve(context.Background(), domainauth.Session{UserID: "u"})
	require.NoError(t, err)
}

func TestNewRoleResolver_Validation(t *testing.T) {
	assert.Panics(t, func() { NewRoleResolver(RoleResolverOptions{}) })

	ctrl := gomock.NewController(t)
	assert.Panics(t, func() {
		NewRoleResolver(RoleResolverOptions{
			Source: mocks.NewMockRoleSource(ctrl),
			Config: RoleResolverConfig{DefaultRole: "guest"},
		})
	})
}
