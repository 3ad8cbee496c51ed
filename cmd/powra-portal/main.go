package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/target/powra-portal/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	level := new(slog.LevelVar)
	logger := bootstrap.InitLogger(level)
	if err := run(ctx, logger, level); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger, level *slog.LevelVar) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	level.Set(cfg.Observability.SlogLevel())

	return bootstrap.Run(ctx, &cfg, logger)
}
