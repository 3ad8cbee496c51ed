package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/target/powra-portal/config"
	httpx "github.com/target/powra-portal/internal/http"
)

// HTTPHandlerConfig contains the dependencies of the portal handler.
type HTTPHandlerConfig struct {
	Config       *config.AppConfig
	Services     *ServiceContainer
	HealthChecks []httpx.HealthCheck
	Logger       *slog.Logger
}

// BuildHTTPHandler assembles the router from the service container.
func BuildHTTPHandler(cfg HTTPHandlerConfig) (http.Handler, error) {
	if cfg.Config == nil || cfg.Services == nil || cfg.Services.Auth == nil {
		return nil, errors.New("config and services are required")
	}
	appCfg := cfg.Config

	services := httpx.RouterServices{
		Auth:     cfg.Services.Auth.Service,
		Users:    cfg.Services.Users,
		Sessions: cfg.Services.Auth.Sessions,
		Roles:    cfg.Services.Auth.Roles,
		Policy:   cfg.Services.Auth.Policy,
		Cookies: httpx.CookieConfig{
			Domain: appCfg.HTTP.CookieDomain,
			Secure: !appCfg.IsDev,
		},
		HealthChecks:    cfg.HealthChecks,
		Audit:           cfg.Services.Observability.Audit,
		AdminRateLimits: adminRateLimits(appCfg.HTTP.AdminRateLimit),
		IsDev:           appCfg.IsDev,
		Logger:          cfg.Logger,
	}
	// The dev provider redirects back to whichever host served /login.
	if appCfg.Auth.Provider == config.AuthProviderOIDC {
		services.CallbackURL = appCfg.Auth.OAuth.RedirectURL
	}
	if sink := cfg.Services.Observability.MetricsSink; sink != nil {
		services.Metrics = sink
	}

	handler, err := httpx.NewRouter(services)
	if err != nil {
		return nil, fmt.Errorf("build router: %w", err)
	}
	return handler, nil
}

// NewHTTPServer returns a server for handler with the configured timeouts.
func NewHTTPServer(cfg config.HTTPConfig, handler http.Handler) *http.Server {
	addr := cfg.Addr
	// Guard against empty addr to avoid listening on Go default
	if addr == "" {
		addr = ":8080"
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// ServeHTTP runs server on ln until ctx is cancelled, then shuts it down within
// shutdownTimeout. A nil ln listens on server.Addr.
func ServeHTTP(ctx context.Context, server *http.Server, ln net.Listener, shutdownTimeout time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if ln == nil {
		var err error
		ln, err = (&net.ListenConfig{}).Listen(ctx, "tcp", server.Addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", server.Addr, err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "starting HTTP server", "addr", ln.Addr().String())
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	logger.Info("HTTP server stopped")
	return nil
}

func adminRateLimits(cfg config.AdminRateLimitConfig) httpx.AdminRateLimits {
	if !cfg.Enabled {
		return httpx.AdminRateLimits{}
	}
	return httpx.AdminRateLimits{
		Window:  cfg.Window,
		Create:  cfg.Create,
		SetRole: cfg.SetRole,
		Delete:  cfg.Delete,
	}
}
