package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/powra-portal/internal/adapters/authroles"
	redisadapter "github.com/target/powra-portal/internal/adapters/redis"
	domainauth "github.com/target/powra-portal/internal/domain/auth"
	mockauth "github.com/target/powra-portal/internal/mocks/auth"
	"github.com/target/powra-portal/internal/ports"
	"github.com/target/powra-portal/internal/service"
	"golang.org/x/net/publicsuffix"
)

// memoryStore adapts the in-memory session store to the Redis adapter's not-found contract.
type memoryStore struct {
	*mockauth.MemorySessionStore
}

func (m memoryStore) Get(ctx context.Context, id string) (domainauth.Session, error) {
	sess, err := m.MemorySessionStore.Get(ctx, id)
	if errors.Is(err, mockauth.ErrNotFound) {
		return domainauth.Session{}, redisadapter.ErrNotFound
	}
	return sess, err
}

// portalFixture runs the full router against an auto-approving identity provider.
type portalFixture struct {
	srv    *httptest.Server
	client *http.Client
	store  *mockauth.MemorySessionStore
	users  *fakeUserAdmin
}

func newPortalFixture(t *testing.T, roles mockauth.StaticUserRoles) *portalFixture {
	t.Helper()
	return newPortalFixtureWithLimits(t, roles, AdminRateLimits{})
}

func newPortalFixtureWithLimits(t *testing.T, roles mockauth.StaticUserRoles, limits AdminRateLimits) *portalFixture {
	t.Helper()

	provider := mockauth.NewMockAuthProvider()
	provider.BeginFunc = func(_ context.Context, in ports.BeginInput) (string, string, string, error) {
		q := url.Values{"code": {"mock-code"}, "state": {"st-1"}}
		return in.RedirectURL + "?" + q.Encode(), "st-1", "n-1", nil
	}

	store := mockauth.NewMemorySessionStore()
	sessions, err := redisadapter.NewSessionManager(redisadapter.SessionManagerOptions{
		Store: memoryStore{store},
		TTL:   time.Hour,
	})
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := newFakeUserAdmin(sampleUsers()...)
	handler, err := NewRouter(RouterServices{
		Auth:     service.NewAuthService(service.AuthServiceOptions{Provider: provider, Sessions: sessions, Logger: logger}),
		Users:    users,
		Sessions: service.NewSessionResolver(service.SessionResolverOptions{Introspector: sessions, Logger: logger}),
		Roles: service.NewRoleResolver(service.RoleResolverOptions{
			Source: authroles.NewStoreSource(roles),
			Logger: logger,
		}),
		Policy:          defaultPolicy(t),
		AdminRateLimits: limits,
		TemplateFS:      os.DirFS(TemplatePathFromTest),
		Logger:          logger,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	require.NoError(t, err)

	return &portalFixture{
		srv:    srv,
		client: &http.Client{Jar: jar, Timeout: 5 * time.Second},
		store:  store,
		users:  users,
	}
}

func (f *portalFixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, f.srv.URL+path, nil)
	require.NoError(t, err)
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (f *portalFixture) csrfHeader(t *testing.T) http.Header {
	t.Helper()
	u, err := url.Parse(f.srv.URL)
	require.NoError(t, err)
	for _, ck := range f.client.Jar.Cookies(u) {
		if ck.Name == DefaultCSRFCookieName {
			return http.Header{DefaultCSRFHeaderName: {ck.Value}}
		}
	}
	t.Fatal("csrf cookie missing from jar")
	return nil
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestLoginFlow_UserRole(t *testing.T) {
	f := newPortalFixture(t, mockauth.StaticUserRoles{"mock-user-1": "user"})

	// Anonymous visit goes through the provider and lands back on the requested page.
	resp := f.get(t, "/dashboard/forms")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/dashboard/forms", resp.Request.URL.Path)
	assert.True(t, ContainsAll(readBody(t, resp), []string{"<h1>Forms</h1>", "Mock User", "(User)"}))
	assert.Equal(t, 1, f.store.Len())

	resp = DoJSON(t, JSONRequest{Method: http.MethodGet, URL: f.srv.URL + "/api/me", Client: f.client})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me meResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
	assert.Equal(t, "mock-user-1", me.User.ID)
	assert.Equal(t, "user", me.Role)

	// Admin pages bounce to the dashboard with a banner.
	resp = f.get(t, "/dashboard/admin/users")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Request.URL.Path)
	assert.Equal(t, "insufficient-permissions", resp.Request.URL.Query().Get("error"))
	assert.Contains(t, readBody(t, resp), "You do not have permission to view that page.")

	resp = DoJSON(t, JSONRequest{Method: http.MethodGet, URL: f.srv.URL + "/api/admin/users", Client: f.client})
	defer resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	var denied accessErrorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&denied))
	assert.Equal(t, "user", denied.CurrentRole)

	// Sign out revokes the server-side session.
	resp = DoJSON(t, JSONRequest{
		Method: http.MethodPost, URL: f.srv.URL + "/logout", Client: f.client, Header: f.csrfHeader(t),
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, f.store.Len())

	resp = DoJSON(t, JSONRequest{Method: http.MethodGet, URL: f.srv.URL + "/api/me", Client: f.client})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginFlow_AdminManagesRoles(t *testing.T) {
	f := newPortalFixture(t, mockauth.StaticUserRoles{"mock-user-1": "admin"})

	resp := f.get(t, "/dashboard/admin")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/dashboard/admin/users", resp.Request.URL.Path)
	assert.True(t, ContainsAll(readBody(t, resp), []string{"ada@example.com", "sam@example.com", "Supervisor"}))

	resp = DoJSON(t, JSONRequest{
		Method:  http.MethodPut,
		URL:     f.srv.URL + "/api/admin/users/u-user/role",
		Payload: map[string]string{"role": "supervisor"},
		Client:  f.client,
		Header:  f.csrfHeader(t),
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, f.users.setRoles, 1)
	assert.Equal(t, service.SetRoleInput{UserID: "u-user", Role: "supervisor", Actor: "mock-user-1"}, f.users.setRoles[0])
}

func TestLoginFlow_AdminCreatesAndDeletesUsers(t *testing.T) {
	f := newPortalFixture(t, mockauth.StaticUserRoles{"mock-user-1": "admin"})
	f.get(t, "/dashboard")

	resp := DoJSON(t, JSONRequest{
		Method:  http.MethodPost,
		URL:     f.srv.URL + "/api/admin/users",
		Payload: map[string]string{"id": "u-new", "email": "nia@example.com", "first_name": "Nia", "role": "user"},
		Client:  f.client,
		Header:  f.csrfHeader(t),
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = f.get(t, "/dashboard/admin/users?q=nia")
	assert.Contains(t, readBody(t, resp), "nia@example.com")

	resp = DoJSON(t, JSONRequest{
		Method: http.MethodDelete,
		URL:    f.srv.URL + "/api/admin/users/u-new",
		Client: f.client,
		Header: f.csrfHeader(t),
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, []string{"u-new"}, f.users.deleted)

	resp = DoJSON(t, JSONRequest{
		Method: http.MethodDelete,
		URL:    f.srv.URL + "/api/admin/users/mock-user-1",
		Client: f.client,
		Header: f.csrfHeader(t),
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestLoginFlow_UserCannotManageUsers(t *testing.T) {
	f := newPortalFixture(t, mockauth.StaticUserRoles{"mock-user-1": "supervisor"})
	f.get(t, "/dashboard")

	resp := DoJSON(t, JSONRequest{
		Method: http.MethodDelete,
		URL:    f.srv.URL + "/api/admin/users/u-user",
		Client: f.client,
		Header: f.csrfHeader(t),
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, f.users.deleted)
}

func TestLoginFlow_AdminMutationsAreThrottled(t *testing.T) {
	f := newPortalFixtureWithLimits(t, mockauth.StaticUserRoles{"mock-user-1": "admin"},
		AdminRateLimits{Window: time.Minute, SetRole: 2})
	f.get(t, "/dashboard")

	setRole := func() *http.Response {
		resp := DoJSON(t, JSONRequest{
			Method:  http.MethodPut,
			URL:     f.srv.URL + "/api/admin/users/u-user/role",
			Payload: map[string]string{"role": "supervisor"},
			Client:  f.client,
			Header:  f.csrfHeader(t),
		})
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}
	assert.Equal(t, http.StatusOK, setRole().StatusCode)
	assert.Equal(t, http.StatusOK, setRole().StatusCode)

	resp := setRole()
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `"rate_limited"`)
	assert.Len(t, f.users.setRoles, 2)
}

func TestLoginFlow_RoleChangeNeedsCSRFToken(t *testing.T) {
	f := newPortalFixture(t, mockauth.StaticUserRoles{"mock-user-1": "admin"})
	f.get(t, "/dashboard")

	resp := DoJSON(t, JSONRequest{
		Method:  http.MethodPut,
		URL:     f.srv.URL + "/api/admin/users/u-user/role",
		Payload: map[string]string{"role": "admin"},
		Client:  f.client,
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, f.users.setRoles)
}

func TestLoginFlow_UnknownUserIsDenied(t *testing.T) {
	f := newPortalFixture(t, mockauth.StaticUserRoles{})

	// documents -> dashboard (rbac-error) -> login page showing the error.
	resp := f.get(t, "/dashboard/documents")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, LoginPath, resp.Request.URL.Path)
	assert.Equal(t, "rbac-error", resp.Request.URL.Query().Get("error"))
	assert.Empty(t, resp.Request.URL.Query().Get("message"), "detail only in dev mode")
	assert.Contains(t, readBody(t, resp), "We could not verify your permissions.")
}

func TestRouter_PublicRoutes(t *testing.T) {
	f := newPortalFixture(t, mockauth.StaticUserRoles{})

	resp := DoJSON(t, JSONRequest{Method: http.MethodGet, URL: f.srv.URL + "/api/auth/status"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"authenticated":false}`, readBody(t, resp))

	resp = DoJSON(t, JSONRequest{Method: http.MethodGet, URL: f.srv.URL + "/healthz"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp = DoJSON(t, JSONRequest{Method: http.MethodGet, URL: f.srv.URL + "/api/me"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Authentication required","message":"No valid session found"}`, readBody(t, resp))
}

func TestRouter_UnknownAPIPathIsJSON404(t *testing.T) {
	f := newPortalFixture(t, mockauth.StaticUserRoles{"mock-user-1": "admin"})
	f.get(t, "/dashboard")

	resp := DoJSON(t, JSONRequest{Method: http.MethodGet, URL: f.srv.URL + "/api/admin/nothing", Client: f.client})
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), `"not_found"`)
}

func TestNewRouter_RequiresServices(t *testing.T) {
	_, err := NewRouter(RouterServices{})
	require.Error(t, err)
}
