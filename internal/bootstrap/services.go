package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/target/powra-portal/config"
	"github.com/target/powra-portal/internal/data"
	httpx "github.com/target/powra-portal/internal/http"
	"github.com/target/powra-portal/internal/observability/audit"
	"github.com/target/powra-portal/internal/observability/notify"
	"github.com/target/powra-portal/internal/observability/notify/slack"
	"github.com/target/powra-portal/internal/observability/statsd"
	"github.com/target/powra-portal/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Auth          *AuthComponents
	Users         *service.UserService
	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink *statsd.Client
	Audit       *audit.Logger
	Notifier    notify.Sink
}

// Close releases observability resources.
func (o ObservabilityContainer) Close() error {
	if o.MetricsSink == nil {
		return nil
	}
	return o.MetricsSink.Close()
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// NewServices builds the auth components, the user service and observability adapters.
func NewServices(ctx context.Context, deps *ServiceDeps) (*ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return nil, errors.New("service deps with config are required")
	}
	if deps.DB == nil {
		return nil, errors.New("database is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	obs := BuildObservability(logger, cfg.Observability)
	users := data.NewUserRepo(deps.DB)

	auth, err := BuildAuth(ctx, AuthConfig{
		Auth:        cfg.Auth,
		RedisClient: deps.RedisClient,
		Users:       users,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build auth: %w", err)
	}

	return &ServiceContainer{
		Auth: auth,
		Users: service.NewUserService(service.UserServiceOptions{
			Repo:                users,
			Hooks:               service.RoleChangeHooks{Audit: obs.Audit, Notifier: obs.Notifier},
			Sessions:            auth.Revoker,
			StoredRolesShadowed: !cfg.Auth.StoredRolesEffective(),
			Logger:              logger,
		}),
		Observability: obs,
	}, nil
}

// BuildObservability configures the metrics sink, audit logger and role change notifier.
// A sink that fails to initialise is logged and left out; it never blocks startup.
func BuildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	out := ObservabilityContainer{Audit: audit.New(obsLogger)}

	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  cfg.Metrics.Prefix,
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			out.MetricsSink = client
		}
	}

	out.Notifier = buildNotifier(obsLogger, cfg.Notifications)
	return out
}

//nolint:ireturn // nil when notifications are disabled.
func buildNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) notify.Sink {
	if !cfg.Slack.Enabled {
		return nil
	}
	client, err := slack.NewClient(slack.Config{
		WebhookURL:    cfg.Slack.WebhookURL,
		Channel:       cfg.Slack.Channel,
		Username:      cfg.Slack.Username,
		Timeout:       cfg.Timeout,
		RetryLimit:    cfg.RetryLimit,
		UserURLPrefix: cfg.Slack.UserURLPrefix,
	})
	if err != nil {
		logger.Error("failed to initialise slack notifier", "error", err)
		return nil
	}
	return client
}

// HealthChecks returns the readiness probes for the connected stores.
func HealthChecks(db *sql.DB, redisClient redis.UniversalClient) []httpx.HealthCheck {
	var checks []httpx.HealthCheck
	if db != nil {
		checks = append(checks, httpx.HealthCheck{Name: "postgres", Check: db.PingContext})
	}
	if redisClient != nil {
		checks = append(checks, httpx.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}
	return checks
}
