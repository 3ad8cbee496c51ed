package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/powra-portal/internal/domain/auth"
	"github.com/target/powra-portal/internal/domain/model"
	apperrors "github.com/target/powra-portal/internal/errors"
	"github.com/target/powra-portal/internal/service"
)

// fakeUserAdmin is an in-memory UserAdminService.
type fakeUserAdmin struct {
	mu       sync.Mutex
	users    []*model.User
	listErr  error
	lastList model.UsersListOptions
	setRoles []service.SetRoleInput
	deleted  []string
}

func newFakeUserAdmin(users ...*model.User) *fakeUserAdmin {
	return &fakeUserAdmin{users: users}
}

func (f *fakeUserAdmin) List(_ context.Context, opts model.UsersListOptions) ([]*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastList = opts
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*model.User
	for _, u := range f.users {
		if opts.Role != nil {
			if r, _ := domainauth.ParseRole(u.Role); r != *opts.Role {
				continue
			}
		}
		if opts.Q != nil && !strings.Contains(u.Email, *opts.Q) {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeUserAdmin) SetRole(_ context.Context, in service.SetRoleInput) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setRoles = append(f.setRoles, in)
	role, ok := domainauth.ParseRole(in.Role)
	if !ok {
		return nil, apperrors.ValidationField("role", "unknown role")
	}
	for _, u := range f.users {
		if u.ID == in.UserID {
			u.Role = role.String()
			return u, nil
		}
	}
	return nil, apperrors.NotFound("user not found")
}

func (f *fakeUserAdmin) Upsert(_ context.Context, _ string, req model.UpsertUserRequest) (*model.User, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, false, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid user")
	}
	for _, u := range f.users {
		if u.ID == req.ID {
			u.Email, u.FirstName, u.LastName, u.Role = req.Email, req.FirstName, req.LastName, req.Role
			return u, false, nil
		}
	}
	u := &model.User{ID: req.ID, Email: req.Email, FirstName: req.FirstName, LastName: req.LastName, Role: req.Role}
	f.users = append(f.users, u)
	return u, true, nil
}

func (f *fakeUserAdmin) Delete(_ context.Context, actor, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if actor == id {
		return apperrors.Conflict("you cannot delete your own account")
	}
	i := slices.IndexFunc(f.users, func(u *model.User) bool { return u.ID == id })
	if i < 0 {
		return apperrors.NotFound("user not found")
	}
	f.users = slices.Delete(f.users, i, i+1)
	f.deleted = append(f.deleted, id)
	return nil
}

func sampleUsers() []*model.User {
	ts := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	return []*model.User{
		{ID: "u-admin", Email: "ada@example.com", FirstName: "Ada", Role: "admin", CreatedAt: ts, UpdatedAt: ts},
		{ID: "u-sup", Email: "sam@example.com", FirstName: "Sam", Role: "manager", CreatedAt: ts, UpdatedAt: ts},
		{ID: "u-user", Email: "uma@example.com", FirstName: "Uma", Role: "user", CreatedAt: ts, UpdatedAt: ts},
	}
}

func withPrincipal(r *http.Request, sess domainauth.Session, role domainauth.Role) *http.Request {
	ctx := SetSessionInContext(r.Context(), sess)
	return r.WithContext(SetRoleInContext(ctx, role))
}

func TestUserHandlers_Me(t *testing.T) {
	h := &UserHandlers{Svc: newFakeUserAdmin()}

	t.Run("with session", func(t *testing.T) {
		req := withPrincipal(httptest.NewRequest(http.MethodGet, "/api/me", nil),
			domainauth.Session{UserID: "u1", Email: "u1@example.com", Groups: []string{"powra-users"}},
			domainauth.RoleUser)
		rec := httptest.NewRecorder()

		h.Me(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{
			"user": {"id":"u1","email":"u1@example.com","first_name":"","last_name":""},
			"role": "user",
			"groups": ["powra-users"]
		}`, rec.Body.String())
	})

	t.Run("without session", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Me(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestUserHandlers_List(t *testing.T) {
	svc := newFakeUserAdmin(sampleUsers()...)
	h := &UserHandlers{Svc: svc}

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/admin/users?role=supervisor&limit=1000&offset=-3&sort=role&dir=desc", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body usersListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	assert.Equal(t, "u-sup", body.Items[0].ID, "legacy manager rows match the supervisor filter")
	assert.Equal(t, maxUsersLimit, body.Limit)
	assert.Equal(t, 0, body.Offset)
	assert.Equal(t, "role", svc.lastList.Sort)
	assert.Equal(t, "desc", svc.lastList.Dir)
}

func TestUserHandlers_List_EmptyIsArray(t *testing.T) {
	rec := httptest.NewRecorder()
	(&UserHandlers{Svc: newFakeUserAdmin()}).List(rec, httptest.NewRequest(http.MethodGet, "/api/admin/users?q=nobody", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[],"limit":50,"offset":0}`, rec.Body.String())
}

func TestUserHandlers_List_Errors(t *testing.T) {
	t.Run("unknown role filter", func(t *testing.T) {
		rec := httptest.NewRecorder()
		(&UserHandlers{Svc: newFakeUserAdmin()}).List(rec, httptest.NewRequest(http.MethodGet, "/api/admin/users?role=owner", nil))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), `"field":"role"`)
	})

	t.Run("store failure hides detail", func(t *testing.T) {
		svc := newFakeUserAdmin()
		svc.listErr = errors.New("pq: connection reset")
		rec := httptest.NewRecorder()
		(&UserHandlers{Svc: svc}).List(rec, httptest.NewRequest(http.MethodGet, "/api/admin/users", nil))

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "connection reset")
	})
}

func TestUserHandlers_SetRole(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		body     string
		wantCode int
		wantRole string
	}{
		{name: "promote", id: "u-user", body: `{"role":"supervisor"}`, wantCode: http.StatusOK, wantRole: "supervisor"},
		{name: "legacy alias", id: "u-user", body: `{"role":"manager"}`, wantCode: http.StatusOK, wantRole: "supervisor"},
		{name: "unknown role", id: "u-user", body: `{"role":"owner"}`, wantCode: http.StatusBadRequest},
		{name: "unknown user", id: "u-missing", body: `{"role":"user"}`, wantCode: http.StatusNotFound},
		{name: "malformed body", id: "u-user", body: `{"role":`, wantCode: http.StatusBadRequest},
		{name: "unknown field", id: "u-user", body: `{"role":"user","extra":1}`, wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeUserAdmin(sampleUsers()...)
			req := httptest.NewRequest(http.MethodPut, "/api/admin/users/"+tt.id+"/role", strings.NewReader(tt.body))
			req.SetPathValue("id", tt.id)
			req = withPrincipal(req, domainauth.Session{UserID: "u-admin"}, domainauth.RoleAdmin)
			rec := httptest.NewRecorder()

			(&UserHandlers{Svc: svc}).SetRole(rec, req)

			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantRole != "" {
				var u model.User
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
				assert.Equal(t, tt.wantRole, u.Role)
				require.Len(t, svc.setRoles, 1)
				assert.Equal(t, "u-admin", svc.setRoles[0].Actor)
			}
		})
	}
}

func TestUserHandlers_Create(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{name: "new user", body: `{"id":"u-new","email":"New@Example.com","role":"manager"}`, wantCode: http.StatusCreated},
		{name: "existing user", body: `{"id":"u-user","email":"uma@example.com","first_name":"Uma","role":"user"}`, wantCode: http.StatusOK},
		{name: "bad email", body: `{"id":"u-new","email":"nope","role":"user"}`, wantCode: http.StatusBadRequest},
		{name: "unknown role", body: `{"id":"u-new","email":"n@example.com","role":"owner"}`, wantCode: http.StatusBadRequest},
		{name: "password is not accepted", body: `{"id":"u-new","email":"n@example.com","role":"user","password":"x"}`, wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeUserAdmin(sampleUsers()...)
			req := httptest.NewRequest(http.MethodPost, "/api/admin/users", strings.NewReader(tt.body))
			req = withPrincipal(req, domainauth.Session{UserID: "u-admin"}, domainauth.RoleAdmin)
			rec := httptest.NewRecorder()

			(&UserHandlers{Svc: svc}).Create(rec, req)

			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode == http.StatusCreated {
				var u model.User
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))
				assert.Equal(t, "new@example.com", u.Email)
				assert.Equal(t, "supervisor", u.Role)
			}
		})
	}
}

func TestUserHandlers_Delete(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		wantCode int
	}{
		{name: "existing", id: "u-user", wantCode: http.StatusNoContent},
		{name: "missing", id: "u-missing", wantCode: http.StatusNotFound},
		{name: "self", id: "u-admin", wantCode: http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeUserAdmin(sampleUsers()...)
			req := httptest.NewRequest(http.MethodDelete, "/api/admin/users/"+tt.id, nil)
			req.SetPathValue("id", tt.id)
			req = withPrincipal(req, domainauth.Session{UserID: "u-admin"}, domainauth.RoleAdmin)
			rec := httptest.NewRecorder()

			(&UserHandlers{Svc: svc}).Delete(rec, req)

			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantCode == http.StatusNoContent {
				assert.Equal(t, []string{tt.id}, svc.deleted)
				assert.Empty(t, rec.Body.String())
			}
		})
	}
}

func TestUserHandlers_SetRole_ShadowedIsConflict(t *testing.T) {
	svc := &shadowedUserAdmin{fakeUserAdmin: newFakeUserAdmin(sampleUsers()...)}
	req := httptest.NewRequest(http.MethodPut, "/api/admin/users/u-admin/role", strings.NewReader(`{"role":"user"}`))
	req.SetPathValue("id", "u-admin")
	rec := httptest.NewRecorder()

	(&UserHandlers{Svc: svc}).SetRole(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "AUTH_ROLE_SOURCES")
}

// shadowedUserAdmin refuses role writes the way UserService does when identity
// claims outrank the users table.
type shadowedUserAdmin struct {
	*fakeUserAdmin
}

func (shadowedUserAdmin) SetRole(context.Context, service.SetRoleInput) (*model.User, error) {
	return nil, service.ErrStoredRolesShadowed
}
