package config

import (
	"strings"
	"time"
)

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":8080"`

	// BaseURL is the base URL of the application (e.g., "https://portal.example.com").
	// Used to build absolute links in notifications.
	BaseURL string `env:"APP_BASE_URL" envDefault:"http://localhost:8080"`

	// CookieDomain is the domain for session cookies.
	// Leave empty to use the request domain.
	CookieDomain string `env:"APP_COOKIE_DOMAIN" envDefault:""`

	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT"    envDefault:"15s"`

	AdminRateLimit AdminRateLimitConfig `envPrefix:"ADMIN_RATE_LIMIT_"`
}

// AdminRateLimitConfig caps admin user mutations per signed-in actor within Window.
// A zero limit disables throttling for that mutation.
type AdminRateLimitConfig struct {
	Enabled bool          `env:"ENABLED" envDefault:"true"`
	Window  time.Duration `env:"WINDOW"  envDefault:"15m"`
	Create  int           `env:"CREATE"  envDefault:"5"`
	SetRole int           `env:"SET_ROLE" envDefault:"10"`
	Delete  int           `env:"DELETE"  envDefault:"5"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	h.Addr = strings.TrimSpace(h.Addr)
	if h.Addr == "" {
		h.Addr = ":8080"
	}
	h.BaseURL = strings.TrimRight(strings.TrimSpace(h.BaseURL), "/")
	h.CookieDomain = strings.TrimSpace(h.CookieDomain)
	if h.ReadHeaderTimeout <= 0 {
		h.ReadHeaderTimeout = 10 * time.Second
	}
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = 15 * time.Second
	}
	if h.AdminRateLimit.Window <= 0 {
		h.AdminRateLimit.Window = 15 * time.Minute
	}
	h.AdminRateLimit.Create = max(h.AdminRateLimit.Create, 0)
	h.AdminRateLimit.SetRole = max(h.AdminRateLimit.SetRole, 0)
	h.AdminRateLimit.Delete = max(h.AdminRateLimit.Delete, 0)
}
