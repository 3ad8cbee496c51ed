package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryConfig bounds a startup connection attempt.
type RetryConfig struct {
	// Name labels log lines and the returned error.
	Name string
	// Timeout caps the total time spent including waits. Zero means 30s.
	Timeout time.Duration
	// MaxTries caps the number of attempts. Zero means unlimited within Timeout.
	MaxTries uint
	// InitialInterval is the first wait between attempts. Zero means 500ms.
	InitialInterval time.Duration
	Logger          *slog.Logger
}

// Retry calls fn with exponential backoff until it succeeds, returns a
// backoff.Permanent error, or the budget runs out. Each attempt receives ctx.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := loggerOrDefault(cfg.Logger)

	b := backoff.NewExponentialBackOff()
	if cfg.InitialInterval > 0 {
		b.InitialInterval = cfg.InitialInterval
	}
	b.MaxInterval = 5 * time.Second

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(timeout),
		backoff.WithNotify(func(err error, wait time.Duration) {
			logger.WarnContext(ctx, "connection attempt failed; retrying",
				"target", cfg.Name, "error", err, "retry_in", wait)
		}),
	}
	if cfg.MaxTries > 0 {
		opts = append(opts, backoff.WithMaxTries(cfg.MaxTries))
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, opts...)
	if err != nil {
		return fmt.Errorf("%s: %w", cfg.Name, err)
	}
	return nil
}
