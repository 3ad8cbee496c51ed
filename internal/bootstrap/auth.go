package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/target/powra-portal/config"
	"github.com/target/powra-portal/internal/adapters/authroles"
	"github.com/target/powra-portal/internal/adapters/devauth"
	"github.com/target/powra-portal/internal/adapters/oidc"
	redisadapter "github.com/target/powra-portal/internal/adapters/redis"
	"github.com/target/powra-portal/internal/core"
	"github.com/target/powra-portal/internal/domain/access"
	"github.com/target/powra-portal/internal/ports"
	"github.com/target/powra-portal/internal/service"
)

// AuthConfig contains configuration for the auth components.
type AuthConfig struct {
	Auth        config.AuthConfig
	RedisClient redis.UniversalClient // Required in redis session mode
	Users       ports.UserRoleLookup  // Required when the store role source is enabled
	Logger      *slog.Logger
}

// AuthComponents are the pieces the access chain and the login handlers share.
type AuthComponents struct {
	Service  *service.AuthService
	Sessions *service.SessionResolver
	Roles    *service.RoleResolver
	Policy   *access.Policy
	// Revoker is set when sessions live in Redis.
	Revoker core.SessionRevoker
}

// sessionBackend issues sessions at login and validates them on each request.
type sessionBackend interface {
	ports.SessionIssuer
	ports.SessionIntrospector
}

// BuildAuth wires the identity provider, session backend, role source chain and
// route policy according to cfg.Auth.
func BuildAuth(ctx context.Context, cfg AuthConfig) (*AuthComponents, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		provider ports.AuthProvider
		oidcProv *oidc.Provider
	)
	switch cfg.Auth.Provider {
	case config.AuthProviderDev:
		prov, err := buildDevProvider(cfg.Auth)
		if err != nil {
			return nil, err
		}
		logger.WarnContext(ctx, "dev auth provider enabled; every login is the configured identity",
			"user_id", cfg.Auth.DevAuth.UserID)
		provider = prov
	case config.AuthProviderOIDC:
		prov, err := buildOIDCProvider(ctx, cfg.Auth, logger)
		if err != nil {
			return nil, err
		}
		provider, oidcProv = prov, prov
	default:
		return nil, fmt.Errorf("unsupported auth provider %q", cfg.Auth.Provider)
	}

	sessions, revoker, err := buildSessionBackend(cfg, oidcProv, logger)
	if err != nil {
		return nil, err
	}

	source, err := BuildRoleSource(cfg.Auth, cfg.Users)
	if err != nil {
		return nil, err
	}

	policy, err := access.NewPolicy(access.PolicyConfig{DisableAPIRewrite: !cfg.Auth.APIRewrite})
	if err != nil {
		return nil, fmt.Errorf("build route policy: %w", err)
	}
	logger.InfoContext(ctx, "route policy built", "api_rewrite", policy.RewritesAPI())
	if !cfg.Auth.StoredRolesEffective() {
		logger.WarnContext(ctx, "identity claims take precedence over stored roles; admin role changes are disabled")
	}

	return &AuthComponents{
		Service: service.NewAuthService(service.AuthServiceOptions{
			Provider: provider,
			Sessions: sessions,
			Logger:   logger,
		}),
		Sessions: service.NewSessionResolver(service.SessionResolverOptions{
			Introspector: sessions,
			Timeout:      cfg.Auth.ProviderTimeout,
			Logger:       logger,
		}),
		Roles: service.NewRoleResolver(service.RoleResolverOptions{
			Source: source,
			Config: service.RoleResolverConfig{
				Timeout:     cfg.Auth.ProviderTimeout,
				DefaultRole: cfg.Auth.DefaultRoleValue(),
			},
			Logger: logger,
		}),
		Policy:  policy,
		Revoker: revoker,
	}, nil
}

func buildDevProvider(cfg config.AuthConfig) (*devauth.Provider, error) {
	prov, err := devauth.NewProvider(devauth.Config{
		UserID:          cfg.DevAuth.UserID,
		Email:           cfg.DevAuth.Email,
		FirstName:       cfg.DevAuth.FirstName,
		LastName:        cfg.DevAuth.LastName,
		Role:            cfg.DevAuth.Role,
		Groups:          cfg.DevAuth.Groups,
		SessionDuration: cfg.Session.TTL,
	})
	if err != nil {
		return nil, fmt.Errorf("create dev auth provider: %w", err)
	}
	return prov, nil
}

// buildOIDCProvider runs discovery with the startup retry budget; the provider may
// still be coming up when the portal starts.
func buildOIDCProvider(ctx context.Context, cfg config.AuthConfig, logger *slog.Logger) (*oidc.Provider, error) {
	var prov *oidc.Provider
	err := Retry(ctx, RetryConfig{
		Name:    "oidc discovery",
		Timeout: cfg.DiscoveryTimeout,
		Logger:  logger,
	}, func(ctx context.Context) error {
		p, err := oidc.NewProvider(ctx, oidc.ProviderConfig{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			RedirectURL:  cfg.OAuth.RedirectURL,
			Scope:        cfg.OAuth.Scope,
			DiscoveryURL: cfg.OAuth.DiscoveryURL,
		})
		if err != nil {
			return err
		}
		prov = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create oidc provider: %w", err)
	}
	return prov, nil
}

// buildSessionBackend returns the backend named by AUTH_SESSION_MODE. The revoker is
// nil unless sessions are kept server-side.
//
//nolint:ireturn // the backend is chosen at runtime from AUTH_SESSION_MODE.
func buildSessionBackend(cfg AuthConfig, oidcProv *oidc.Provider, logger *slog.Logger) (sessionBackend, core.SessionRevoker, error) {
	switch cfg.Auth.SessionMode {
	case config.SessionModeToken:
		if oidcProv == nil {
			return nil, nil, errors.New("token session mode requires the oidc provider")
		}
		return oidcProv.TokenSessions(oidc.TokenSessionOptions{
			RefreshTTL: cfg.Auth.Session.RefreshTokenTTL,
			Logger:     logger,
		}), nil, nil
	case config.SessionModeRedis:
		if cfg.RedisClient == nil {
			return nil, nil, errors.New("redis session mode requires a redis client")
		}
		store := redisadapter.NewSessionStore(cfg.RedisClient, redisadapter.SessionStoreOptions{
			KeyPrefix: cfg.Auth.Session.KeyPrefix,
		})
		mgr, err := redisadapter.NewSessionManager(redisadapter.SessionManagerOptions{
			Store:         store,
			TTL:           cfg.Auth.Session.TTL,
			RefreshWindow: cfg.Auth.Session.RefreshWindow,
			MaxAge:        cfg.Auth.Session.MaxAge,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create session manager: %w", err)
		}
		return mgr, store, nil
	default:
		return nil, nil, fmt.Errorf("unsupported session mode %q", cfg.Auth.SessionMode)
	}
}

// BuildRoleSource assembles the role sources named in AUTH_ROLE_SOURCES, in order.
//
//nolint:ireturn // a single source is returned unwrapped.
func BuildRoleSource(cfg config.AuthConfig, users ports.UserRoleLookup) (ports.RoleSource, error) {
	chain := make(authroles.Chain, 0, len(cfg.RoleSources))
	for _, name := range cfg.RoleSources {
		switch name {
		case config.RoleSourceMetadata:
			src, err := authroles.NewMetadataSource(cfg.RoleClaimPath, authroles.StaticRoleMapper{
				AdminGroup:      cfg.AdminGroup,
				SupervisorGroup: cfg.SupervisorGroup,
				UserGroup:       cfg.UserGroup,
			})
			if err != nil {
				return nil, err
			}
			chain = append(chain, src)
		case config.RoleSourceStore:
			if users == nil {
				return nil, errors.New("store role source requires a user repository")
			}
			chain = append(chain, authroles.NewStoreSource(users))
		default:
			return nil, fmt.Errorf("unknown role source %q", name)
		}
	}
	switch len(chain) {
	case 0:
		return nil, errors.New("no role sources configured")
	case 1:
		return chain[0], nil
	default:
		return chain, nil
	}
}
