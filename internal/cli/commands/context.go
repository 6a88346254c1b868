// Package commands implements the metron CLI subcommands.
package commands

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/metron/internal/cli/config"
)

type configKey struct{}
type loggerKey struct{}

// WithConfig stores the loaded config in the context.
func WithConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// ConfigFrom retrieves the loaded config, falling back to an empty one.
func ConfigFrom(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	return &config.Config{}
}

// WithLogger stores the logger in the context.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// LoggerFrom retrieves the logger, falling back to the default.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}
