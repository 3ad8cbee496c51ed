package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/powra-portal/internal/domain/auth"
	"github.com/target/powra-portal/internal/domain/model"
	apperrors "github.com/target/powra-portal/internal/errors"
	"github.com/target/powra-portal/internal/mocks"
	"github.com/target/powra-portal/internal/observability/notify"
	"go.uber.org/mock/gomock"
)

func TestUserService_List_ClampsPaging(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUserRepository(ctrl)
	svc := NewUserService(UserServiceOptions{Repo: repo})

	users := []*model.User{{ID: "u1", Email: "a@example.com", Role: "admin"}}
	repo.EXPECT().List(gomock.Any(), model.UsersListOptions{Limit: 50}).Return(users, nil)
	repo.EXPECT().List(gomock.Any(), model.UsersListOptions{Limit: 500, Offset: 0}).Return(nil, nil)

	got, err := svc.List(context.Background(), model.UsersListOptions{Offset: -3})
	require.NoError(t, err)
	assert.Equal(t, users, got)

	_, err = svc.List(context.Background(), model.UsersListOptions{Limit: 10_000})
	require.NoError(t, err)
}

func TestUserService_List_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUserRepository(ctrl)
	repo.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))

	_, err := NewUserService(UserServiceOptions{Repo: repo}).List(context.Background(), model.UsersListOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list users")
}

func TestUserService_Upsert_Creates(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUserRepository(ctrl)
	svc := NewUserService(UserServiceOptions{Repo: repo})

	want := model.UpsertUserRequest{ID: "u1", Email: "jane@example.com", Role: "supervisor"}
	repo.EXPECT().GetByID(gomock.Any(), "u1").Return(nil, apperrors.NotFound("user not found"))
	repo.EXPECT().Upsert(gomock.Any(), want).Return(&model.User{ID: "u1", Email: want.Email, Role: want.Role}, nil)

	u, created, err := svc.Upsert(context.Background(), "u-admin",
		model.UpsertUserRequest{ID: "u1", Email: "Jane@Example.com", Role: "manager"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "supervisor", u.Role)

	_, _, err = svc.Upsert(context.Background(), "u-admin", model.UpsertUserRequest{ID: "u2", Email: "x@example.com", Role: "guest"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestUserService_Upsert_RoleChangeNotifies(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUserRepository(ctrl)
	var sent []notify.RoleChangePayload
	svc := NewUserService(UserServiceOptions{
		Repo: repo,
		Hooks: RoleChangeHooks{Notifier: notify.SinkFunc(func(_ context.Context, p notify.RoleChangePayload) error {
			sent = append(sent, p)
			return nil
		})},
	})

	repo.EXPECT().GetByID(gomock.Any(), "u1").Return(&model.User{ID: "u1", Role: "user"}, nil)
	repo.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(&model.User{ID: "u1", Email: "jane@example.com", Role: "admin"}, nil)

	_, created, err := svc.Upsert(context.Background(), "u-admin",
		model.UpsertUserRequest{ID: "u1", Email: "jane@example.com", Role: "admin"})
	require.NoError(t, err)
	assert.False(t, created)
	require.Len(t, sent, 1)
	assert.Equal(t, notify.SeverityHigh, sent[0].Severity)
	assert.Equal(t, "u-admin", sent[0].Actor)
}

func TestUserService_StoredRolesShadowed(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUserRepository(ctrl)
	svc := NewUserService(UserServiceOptions{Repo: repo, StoredRolesShadowed: true})

	_, err := svc.SetRole(context.Background(), SetRoleInput{UserID: "u1", Role: "user", Actor: "u-admin"})
	require.ErrorIs(t, err, ErrStoredRolesShadowed)
	assert.True(t, apperrors.IsConflict(err))

	// Upserts that keep the role still go through; role changes do not.
	repo.EXPECT().GetByID(gomock.Any(), "u1").Return(&model.User{ID: "u1", Role: "admin"}, nil).Times(2)
	repo.EXPECT().Upsert(gomock.Any(), gomock.Any()).Return(&model.User{ID: "u1", Role: "admin"}, nil)

	_, _, err = svc.Upsert(context.Background(), "u-admin",
		model.UpsertUserRequest{ID: "u1", Email: "jane@example.com", FirstName: "Jane", Role: "admin"})
	require.NoError(t, err)

	_, _, err = svc.Upsert(context.Background(), "u-admin",
		model.UpsertUserRequest{ID: "u1", Email: "jane@example.com", Role: "user"})
	require.ErrorIs(t, err, ErrStoredRolesShadowed)
}

func TestUserService_Delete(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUserRepository(ctrl)
	svc := NewUserService(UserServiceOptions{Repo: repo})

	repo.EXPECT().Delete(gomock.Any(), "u1").Return(nil)
	require.NoError(t, svc.Delete(context.Background(), "u-admin", "u1"))

	repo.EXPECT().Delete(gomock.Any(), "missing").Return(apperrors.NotFound("user not found"))
	err := svc.Delete(context.Background(), "u-admin", "missing")
	assert.True(t, apperrors.IsNotFound(err))

	err = svc.Delete(context.Background(), "u-admin", "u-admin")
	assert.True(t, apperrors.IsConflict(err), "self-delete is refused without touching the store")
}

type revokerFunc func(ctx context.Context, userID string) (int, error)

func (f revokerFunc) RevokeUser(ctx context.Context, userID string) (int, error) {
	return f(ctx, userID)
}

func TestUserService_Delete_RevokesSessions(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUserRepository(ctrl)

	var revoked []string
	fail := false
	svc := NewUserService(UserServiceOptions{
		Repo: repo,
		Sessions: revokerFunc(func(_ context.Context, userID string) (int, error) {
			revoked = append(revoked, userID)
			if fail {
				return 0, errors.New("redis down")
			}
			return 2, nil
		}),
	})

	repo.EXPECT().Delete(gomock.Any(), "u1").Return(nil)
	require.NoError(t, svc.Delete(context.Background(), "u-admin", "u1"))
	assert.Equal(t, []string{"u1"}, revoked)

	fail = true
	repo.EXPECT().Delete(gomock.Any(), "u2").Return(nil)
	require.NoError(t, svc.Delete(context.Background(), "u-admin", "u2"), "sign-out failures do not undo the delete")

	repo.EXPECT().Delete(gomock.Any(), "missing").Return(apperrors.NotFound("user not found"))
	require.Error(t, svc.Delete(context.Background(), "u-admin", "missing"))
	assert.Equal(t, []string{"u1", "u2"}, revoked, "nothing is revoked when the row was not deleted")
}

func TestUserService_SetRole(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUserRepository(ctrl)

	var sent []notify.RoleChangePayload
	svc := NewUserService(UserServiceOptions{
		Repo: repo,
		Hooks: RoleChangeHooks{
			Notifier: notify.SinkFunc(func(_ context.Context, p notify.RoleChangePayload) error {
				sent = append(sent, p)
				return errors.New("webhook down")
			}),
		},
	})

	repo.EXPECT().GetByID(gomock.Any(), "u1").Return(&model.User{ID: "u1", Role: "user"}, nil)
	repo.EXPECT().SetRole(gomock.Any(), "u1", domainauth.RoleSupervisor).
		Return(&model.User{ID: "u1", Email: "jane@example.com", Role: "supervisor"}, nil)

	u, err := svc.SetRole(context.Background(), SetRoleInput{UserID: "u1", Role: "Manager", Actor: "cli"})
	require.NoError(t, err, "notification failures must not fail the change")
	assert.Equal(t, "supervisor", u.Role)
	require.Len(t, sent, 1)
	assert.Equal(t, "user", sent[0].From)
	assert.Equal(t, "supervisor", sent[0].To)
	assert.Equal(t, "cli", sent[0].Actor)
	assert.Equal(t, notify.SeverityInfo, sent[0].Severity)
}

func TestUserService_SetRole_AliasIsNoChange(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUserRepository(ctrl)
	notified := false
	svc := NewUserService(UserServiceOptions{
		Repo: repo,
		Hooks: RoleChangeHooks{Notifier: notify.SinkFunc(func(context.Context, notify.RoleChangePayload) error {
			notified = true
			return nil
		})},
	})

	repo.EXPECT().GetByID(gomock.Any(), "u1").Return(&model.User{ID: "u1", Role: "manager"}, nil)
	repo.EXPECT().SetRole(gomock.Any(), "u1", domainauth.RoleSupervisor).Return(&model.User{ID: "u1", Role: "supervisor"}, nil)

	_, err := svc.SetRole(context.Background(), SetRoleInput{UserID: "u1", Role: "supervisor"})
	require.NoError(t, err)
	assert.False(t, notified)
}

func TestUserService_SetRole_Errors(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockUserRepository(ctrl)
	svc := NewUserService(UserServiceOptions{Repo: repo})

	_, err := svc.SetRole(context.Background(), SetRoleInput{UserID: "u1", Role: "owner"})
	require.Error(t, err)
	assert.Equal(t, "role", apperrors.GetField(err))

	repo.EXPECT().GetByID(gomock.Any(), "missing").Return(nil, apperrors.NotFound("user not found"))
	_, err = svc.SetRole(context.Background(), SetRoleInput{UserID: "missing", Role: "admin"})
	assert.True(t, apperrors.IsNotFound(err))
}
