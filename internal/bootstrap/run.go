package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/target/powra-portal/config"
	"golang.org/x/sync/errgroup"
)

// Infrastructure holds the shared store connections.
type Infrastructure struct {
	DB    *sql.DB
	Redis redis.UniversalClient // nil when no component needs Redis
}

// Close releases the connections, joining any errors.
func (i *Infrastructure) Close() error {
	var errs []error
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if i.DB != nil {
		if err := i.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ConnectInfrastructure connects Postgres and, when needed, Redis concurrently.
func ConnectInfrastructure(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*Infrastructure, error) {
	dbCfg := DatabaseConfig{DBConfig: cfg.Postgres, RedisConfig: cfg.Redis, Logger: logger}
	infra := &Infrastructure{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		db, err := ConnectDB(gctx, dbCfg)
		if err != nil {
			return fmt.Errorf("connect db: %w", err)
		}
		infra.DB = db
		return nil
	})
	if cfg.NeedsRedis() {
		g.Go(func() error {
			client, err := ConnectRedis(gctx, dbCfg)
			if err != nil {
				return fmt.Errorf("connect redis: %w", err)
			}
			infra.Redis = client
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if cerr := infra.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return nil, err
	}
	return infra, nil
}

// Run starts the portal and blocks until SIGINT/SIGTERM or a fatal server error.
func Run(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) error {
	if cfg == nil {
		return errors.New("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.InfoContext(ctx, "starting powra portal",
		"auth_provider", cfg.Auth.Provider,
		"session_mode", cfg.Auth.SessionMode,
		"role_sources", cfg.Auth.RoleSources,
		"db_host", cfg.Postgres.Host,
		"db_name", cfg.Postgres.Name,
		"dev", cfg.IsDev,
	)

	infra, err := ConnectInfrastructure(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := infra.Close(); cerr != nil {
			logger.Error("close infrastructure failed", "error", cerr)
		}
	}()

	if cfg.Postgres.RunMigrationsOnStart {
		if err = RunMigrations(ctx, infra.DB, logger); err != nil {
			return err
		}
	} else {
		logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
	}

	services, err := NewServices(ctx, &ServiceDeps{
		Config:      cfg,
		DB:          infra.DB,
		RedisClient: infra.Redis,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := services.Observability.Close(); cerr != nil {
			logger.Warn("close metrics sink failed", "error", cerr)
		}
	}()

	handler, err := BuildHTTPHandler(HTTPHandlerConfig{
		Config:       cfg,
		Services:     services,
		HealthChecks: HealthChecks(infra.DB, infra.Redis),
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	server := NewHTTPServer(cfg.HTTP, handler)
	return ServeHTTP(ctx, server, nil, cfg.HTTP.ShutdownTimeout, logger)
}
