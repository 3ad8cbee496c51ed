package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	domainauth "github.com/target/powra-portal/internal/domain/auth"
)

// AuthProvider selects the identity provider used for login.
type AuthProvider string

const (
	// AuthProviderOIDC uses an OpenID Connect provider.
	AuthProviderOIDC AuthProvider = "oidc"
	// AuthProviderDev logs everyone in as a configured local identity (development only).
	AuthProviderDev AuthProvider = "dev"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthProvider.
func (a *AuthProvider) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "oidc", "dev":
		*a = AuthProvider(v)
		return nil
	case "oauth":
		*a = AuthProviderOIDC
		return nil
	case "mock":
		*a = AuthProviderDev
		return nil
	default:
		return fmt.Errorf("invalid AuthProvider: %q (valid options: oidc, dev)", v)
	}
}

// SessionMode selects where sessions live.
type SessionMode string

const (
	// SessionModeRedis keeps sessions server-side, keyed by the session_id cookie.
	SessionModeRedis SessionMode = "redis"
	// SessionModeToken keeps the provider's tokens in cookies and verifies them per request.
	SessionModeToken SessionMode = "token"
)

// UnmarshalText implements encoding.TextUnmarshaler for SessionMode.
func (m *SessionMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "redis", "token":
		*m = SessionMode(v)
		return nil
	default:
		return fmt.Errorf("invalid SessionMode: %q (valid options: redis, token)", v)
	}
}

// Role source names accepted by AUTH_ROLE_SOURCES.
const (
	RoleSourceMetadata = "metadata"
	RoleSourceStore    = "store"
)

// OAuthConfig contains OAuth/OIDC configuration.
type OAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/auth/callback"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
}

// DevAuthConfig controls the dev provider identity.
type DevAuthConfig struct {
	UserID    string   `env:"USER_ID"    envDefault:"dev-user"`
	Email     string   `env:"EMAIL"      envDefault:"dev@example.com"`
	FirstName string   `env:"FIRST_NAME" envDefault:"Dev"`
	LastName  string   `env:"LAST_NAME"  envDefault:"User"`
	Role      string   `env:"ROLE"       envDefault:"admin"`
	Groups    []string `env:"GROUPS"                                envSeparator:";"`
}

// SessionConfig controls server-side session lifetimes.
type SessionConfig struct {
	TTL time.Duration `env:"TTL" envDefault:"8h"`
	// RefreshWindow extends a session that has less than this remaining. Zero disables sliding refresh.
	RefreshWindow time.Duration `env:"REFRESH_WINDOW" envDefault:"30m"`
	// MaxAge caps the total lifetime of a session from login. Zero means no cap.
	MaxAge time.Duration `env:"MAX_AGE" envDefault:"24h"`
	// RefreshTokenTTL is the cookie lifetime of the refresh token in token mode.
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`
	KeyPrefix       string        `env:"KEY_PREFIX"        envDefault:"powra:session:"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	Provider    AuthProvider `env:"AUTH_PROVIDER"     envDefault:"oidc"`
	SessionMode SessionMode  `env:"AUTH_SESSION_MODE" envDefault:"redis"`

	OAuth   OAuthConfig   `envPrefix:"OAUTH_"`
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`
	Session SessionConfig `envPrefix:"AUTH_SESSION_"`

	// ProviderTimeout bounds each session or role lookup made by the access chain.
	ProviderTimeout time.Duration `env:"AUTH_PROVIDER_TIMEOUT" envDefault:"5s"`
	// DiscoveryTimeout bounds OIDC discovery at startup, including retries.
	DiscoveryTimeout time.Duration `env:"OAUTH_DISCOVERY_TIMEOUT" envDefault:"30s"`

	// RoleSources lists role sources in lookup order. The first resolved role wins.
	RoleSources []string `env:"AUTH_ROLE_SOURCES" envDefault:"store,metadata" envSeparator:","`
	// RoleClaimPath is the JMESPath expression evaluated against identity metadata.
	RoleClaimPath string `env:"AUTH_ROLE_CLAIM_PATH" envDefault:"role || user_metadata.role || app_metadata.role"`
	// DefaultRole is granted when no source resolves a role. Empty denies.
	DefaultRole string `env:"AUTH_DEFAULT_ROLE"`
	// APIRewrite maps /api/... onto /dashboard/... before the policy check.
	APIRewrite bool `env:"AUTH_API_REWRITE" envDefault:"true"`

	// Provider group names mapped to roles when metadata carries no role claim.
	AdminGroup      string `env:"AUTH_ADMIN_GROUP"`
	SupervisorGroup string `env:"AUTH_SUPERVISOR_GROUP"`
	UserGroup       string `env:"AUTH_USER_GROUP"`
}

// Sanitize normalizes auth configuration values.
func (c *AuthConfig) Sanitize() {
	if c.ProviderTimeout <= 0 {
		c.ProviderTimeout = 5 * time.Second
	}
	if c.DiscoveryTimeout <= 0 {
		c.DiscoveryTimeout = 30 * time.Second
	}
	if c.Session.TTL <= 0 {
		c.Session.TTL = 8 * time.Hour
	}
	if c.Session.RefreshWindow < 0 || c.Session.RefreshWindow >= c.Session.TTL {
		c.Session.RefreshWindow = 0
	}
	if c.Session.MaxAge < 0 {
		c.Session.MaxAge = 0
	}
	if c.Session.RefreshTokenTTL <= 0 {
		c.Session.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	c.Session.KeyPrefix = strings.TrimSpace(c.Session.KeyPrefix)

	sources := make([]string, 0, len(c.RoleSources))
	for _, s := range c.RoleSources {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" && !slices.Contains(sources, s) {
			sources = append(sources, s)
		}
	}
	c.RoleSources = sources
	c.RoleClaimPath = strings.TrimSpace(c.RoleClaimPath)
	c.DefaultRole = strings.TrimSpace(c.DefaultRole)
	c.AdminGroup = strings.TrimSpace(c.AdminGroup)
	c.SupervisorGroup = strings.TrimSpace(c.SupervisorGroup)
	c.UserGroup = strings.TrimSpace(c.UserGroup)
}

// DefaultRoleValue returns the parsed default role, or "" when unset.
func (c *AuthConfig) DefaultRoleValue() domainauth.Role {
	r, _ := domainauth.ParseRole(c.DefaultRole)
	return r
}

// StoredRolesEffective reports whether a role written to the users table decides
// access: the store source is enabled and no metadata claim is consulted before it.
func (c *AuthConfig) StoredRolesEffective() bool {
	store := slices.Index(c.RoleSources, RoleSourceStore)
	if store < 0 {
		return false
	}
	meta := slices.Index(c.RoleSources, RoleSourceMetadata)
	return meta < 0 || store < meta
}

// Validate checks combinations that have no safe default.
func (c *AuthConfig) Validate(isDev bool) error {
	var errs []error
	if c.Provider == AuthProviderDev && !isDev {
		errs = append(errs, errors.New("AUTH_PROVIDER=dev requires DEV=true"))
	}
	if c.Provider == AuthProviderOIDC {
		if c.OAuth.DiscoveryURL == "" || c.OAuth.ClientID == "" || c.OAuth.ClientSecret == "" {
			errs = append(errs, errors.New("AUTH_PROVIDER=oidc requires OAUTH_DISCOVERY_URL, OAUTH_CLIENT_ID and OAUTH_CLIENT_SECRET"))
		}
	}
	if c.SessionMode == SessionModeToken && c.Provider != AuthProviderOIDC {
		errs = append(errs, errors.New("AUTH_SESSION_MODE=token requires AUTH_PROVIDER=oidc"))
	}
	if len(c.RoleSources) == 0 {
		errs = append(errs, errors.New("AUTH_ROLE_SOURCES must name at least one source"))
	}
	for _, s := range c.RoleSources {
		if s != RoleSourceMetadata && s != RoleSourceStore {
			errs = append(errs, fmt.Errorf("AUTH_ROLE_SOURCES: unknown source %q (valid options: metadata, store)", s))
		}
	}
	if c.DefaultRole != "" {
		if _, ok := domainauth.ParseRole(c.DefaultRole); !ok {
			errs = append(errs, fmt.Errorf("AUTH_DEFAULT_ROLE: unknown role %q", c.DefaultRole))
		}
	}
	return errors.Join(errs...)
}
