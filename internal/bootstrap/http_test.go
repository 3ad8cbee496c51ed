package bootstrap

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/powra-portal/config"
	"github.com/target/powra-portal/internal/mocks"
	"github.com/target/powra-portal/internal/service"
	"github.com/target/powra-portal/internal/testutil"
	"go.uber.org/mock/gomock"
	"golang.org/x/net/publicsuffix"
)

func TestBuildHTTPHandler_RequiresServices(t *testing.T) {
	_, err := BuildHTTPHandler(HTTPHandlerConfig{})
	require.Error(t, err)

	_, err = BuildHTTPHandler(HTTPHandlerConfig{Config: &config.AppConfig{}, Services: &ServiceContainer{}})
	require.Error(t, err)
}

// TestBuildHTTPHandler_DevLogin drives a full sign-in through the dev provider and
// a Redis-backed session store.
func TestBuildHTTPHandler_DevLogin(t *testing.T) {
	rdb := testutil.SetupTestRedis(t)
	t.Chdir("../..") // dev mode reads templates from the working tree

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	appCfg := &config.AppConfig{IsDev: true, Auth: devAuthConfig()}
	appCfg.Auth.Session.KeyPrefix = "powra:test:" + t.Name() + ":"

	auth, err := BuildAuth(context.Background(), AuthConfig{Auth: appCfg.Auth, RedisClient: rdb, Logger: logger})
	require.NoError(t, err)

	ctrl := gomock.NewController(t)
	handler, err := BuildHTTPHandler(HTTPHandlerConfig{
		Config: appCfg,
		Services: &ServiceContainer{
			Auth:  auth,
			Users: service.NewUserService(service.UserServiceOptions{Repo: mocks.NewMockUserRepository(ctrl), Logger: logger}),
		},
		HealthChecks: HealthChecks(nil, rdb),
		Logger:       logger,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	require.NoError(t, err)
	client := &http.Client{Jar: jar, Timeout: 5 * time.Second}

	get := func(path string) *http.Response {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+path, nil)
		require.NoError(t, err)
		resp, err := client.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	resp := get("/dashboard/forms")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/dashboard/forms", resp.Request.URL.Path)

	resp = get("/api/me")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
		Role string `json:"role"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
	assert.Equal(t, "dev-user", me.User.ID)
	assert.Equal(t, "supervisor", me.Role)

	// Supervisors cannot reach user management.
	resp = get("/api/admin/users")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = get("/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServeHTTP_StopsOnCancel(t *testing.T) {
	ln, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := NewHTTPServer(config.HTTPConfig{Addr: ln.Addr().String(), ReadHeaderTimeout: time.Second},
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ServeHTTP(ctx, server, ln, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String()) //nolint:noctx // test request
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusNoContent
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestNewHTTPServer_DefaultAddr(t *testing.T) {
	server := NewHTTPServer(config.HTTPConfig{}, http.NotFoundHandler())
	assert.Equal(t, ":8080", server.Addr)
}

func TestHealthChecks(t *testing.T) {
	assert.Empty(t, HealthChecks(nil, nil))

	db, err := sql.Open("pgx", "postgres://powra@127.0.0.1:1/powra?connect_timeout=1")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	checks := HealthChecks(db, unconnectedRedis(t))
	require.Len(t, checks, 2)
	assert.Equal(t, "postgres", checks[0].Name)
	assert.Equal(t, "redis", checks[1].Name)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.Error(t, checks[1].Check(ctx), "nothing listens on the redis address")
}
