package httpx

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"strings"

	powra "github.com/target/powra-portal"
	"github.com/target/powra-portal/internal/domain/access"
	"github.com/target/powra-portal/internal/observability/audit"
	"github.com/target/powra-portal/internal/observability/statsd"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Auth     AuthServiceInterface // Required
	Users    UserAdminService     // Required
	Sessions SessionResolver      // Required
	Roles    RoleResolver         // Required
	Policy   *access.Policy       // Required

	// CallbackURL is the absolute provider redirect target; empty uses /auth/callback.
	CallbackURL  string
	Cookies      CookieConfig
	HealthChecks []HealthCheck

	Metrics statsd.Sink   // Optional
	Audit   *audit.Logger // Optional

	// AdminRateLimits throttles admin user mutations. The zero value disables it.
	AdminRateLimits AdminRateLimits

	// TemplateFS overrides the template source. Nil selects the embedded templates,
	// or the working tree in dev mode.
	TemplateFS fs.FS
	IsDev      bool         // Development mode flag for hot reloading and error detail
	Logger     *slog.Logger // Optional
}

func (s RouterServices) validate() error {
	switch {
	case s.Auth == nil:
		return errors.New("auth service is required")
	case s.Users == nil:
		return errors.New("user service is required")
	case s.Sessions == nil, s.Roles == nil:
		return errors.New("session and role resolvers are required")
	case s.Policy == nil:
		return errors.New("policy is required")
	}
	return nil
}

// NewRouter builds the portal handler: request ID, logging, panic recovery, the access
// chain and CSRF protection wrapped around the route mux.
func NewRouter(services RouterServices) (http.Handler, error) {
	if err := services.validate(); err != nil {
		return nil, err
	}
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	renderer, err := NewTemplateRenderer(TemplateRendererConfig{
		TemplateFS: templateFS(services, logger),
		DevMode:    services.IsDev,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("template renderer: %w", err)
	}

	authHandlers := &AuthHandlers{
		Svc:         services.Auth,
		Sessions:    services.Sessions,
		Roles:       services.Roles,
		Renderer:    renderer,
		CallbackURL: services.CallbackURL,
		Cookies:     services.Cookies,
		IsDev:       services.IsDev,
		Metrics:     services.Metrics,
		Logger:      logger,
	}
	pages := &PageHandlers{
		Renderer: renderer,
		Policy:   services.Policy,
		Users:    services.Users,
		IsDev:    services.IsDev,
		Logger:   logger,
	}
	users := &UserHandlers{Svc: services.Users}

	mux := http.NewServeMux()
	registerPublicRoutes(mux, authHandlers, healthHandler(services.HealthChecks, logger))
	registerDashboardRoutes(mux, pages)
	registerAPIRoutes(mux, users, services.AdminRateLimits)

	chain := NewAccessChain(AccessChainOptions{
		Sessions: services.Sessions,
		Roles:    services.Roles,
		Policy:   services.Policy,
		Cookies:  services.Cookies,
		IsDev:    services.IsDev,
		Metrics:  services.Metrics,
		Audit:    services.Audit,
		Logger:   logger,
	})

	return Chain(notFound(mux),
		RequestID(),
		Logging(logger),
		Recover(logger),
		chain.Middleware,
		CSRFProtection(CSRFConfig{Cookies: services.Cookies}),
	), nil
}

// templateFS picks the template source. Dev mode reads from disk for hot reloading.
func templateFS(services RouterServices, logger *slog.Logger) fs.FS {
	if services.TemplateFS != nil {
		return services.TemplateFS
	}
	if services.IsDev {
		return os.DirFS(TemplatePathFromRoot)
	}
	sub, err := fs.Sub(powra.TemplateFS, TemplatePathFromRoot)
	if err != nil {
		logger.Error("failed to create sub-filesystem for templates; falling back to disk", "error", err)
		return os.DirFS(TemplatePathFromRoot)
	}
	return sub
}

func registerPublicRoutes(mux *http.ServeMux, h *AuthHandlers, health http.Handler) {
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, DashboardPath, http.StatusFound)
	})
	mux.HandleFunc("GET "+LoginPath, h.Login)
	mux.HandleFunc("GET /auth/callback", h.Callback)
	mux.HandleFunc("POST /logout", h.Logout)
	mux.HandleFunc("GET /api/auth/status", h.Status)
	mux.Handle("GET /healthz", health)
	mux.Handle("HEAD /healthz", health)
}

// registerDashboardRoutes wires the gated pages. The access chain has already run
// by the time these handlers see a request.
func registerDashboardRoutes(mux *http.ServeMux, h *PageHandlers) {
	mux.HandleFunc("GET "+DashboardPath, h.Dashboard)
	mux.HandleFunc("GET /dashboard/me", h.Profile)
	mux.HandleFunc("GET /dashboard/documents", h.Section("Documents"))
	mux.HandleFunc("GET /dashboard/forms", h.Section("Forms"))
	mux.HandleFunc("GET /dashboard/admin", h.AdminHome)
	mux.HandleFunc("GET /dashboard/admin/users", h.AdminUsers)
}

func registerAPIRoutes(mux *http.ServeMux, h *UserHandlers, limits AdminRateLimits) {
	mux.HandleFunc("GET /api/me", h.Me)
	mux.HandleFunc("GET /api/admin/users", h.List)
	mux.Handle("POST /api/admin/users",
		LimitPerActor(limits.Create, limits.Window)(http.HandlerFunc(h.Create)))
	mux.Handle("PUT /api/admin/users/{id}/role",
		LimitPerActor(limits.SetRole, limits.Window)(http.HandlerFunc(h.SetRole)))
	mux.Handle("DELETE /api/admin/users/{id}",
		LimitPerActor(limits.Delete, limits.Window)(http.HandlerFunc(h.Delete)))
}

// notFound answers unknown API paths with JSON and everything else with the default page.
func notFound(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, pattern := mux.Handler(r); pattern == "" && strings.HasPrefix(r.URL.Path, "/api/") {
			WriteJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "message": "resource not found"})
			return
		}
		mux.ServeHTTP(w, r)
	})
}
