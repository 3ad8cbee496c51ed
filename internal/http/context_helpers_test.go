package httpx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	domainauth "github.com/target/powra-portal/internal/domain/auth"
)

func TestSessionFromContext(t *testing.T) {
	_, ok := SessionFromContext(context.Background())
	assert.False(t, ok)

	sess := domainauth.Session{ID: "abc", UserID: "u1"}
	ctx := SetSessionInContext(context.Background(), sess)
	got, ok := SessionFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, sess, got)
}

func TestRoleFromContext(t *testing.T) {
	assert.Empty(t, RoleFromContext(context.Background()))

	ctx := SetRoleInContext(context.Background(), domainauth.RoleSupervisor)
	assert.Equal(t, domainauth.RoleSupervisor, RoleFromContext(ctx))
}
