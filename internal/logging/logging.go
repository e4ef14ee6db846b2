// Package logging configures the process-wide slog logger and carries
// request-scoped loggers through a context.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LevelSilent is above every level the exporter logs at.
const LevelSilent = slog.Level(16)

// Format is the log output format.
type Format string

const (
	// FormatText writes logfmt style key=value lines.
	FormatText Format = "text"
	// FormatJSON writes one JSON object per line.
	FormatJSON Format = "json"
)

// Config contains configuration for New.
type Config struct {
	// Level is the minimum level that is written.
	Level slog.Level

	// Format is "text" or "json". Empty means text.
	Format string

	// AddSource includes file:line in every record.
	AddSource bool

	// Writer defaults to os.Stderr.
	Writer io.Writer
}

// New creates a logger for cfg.
func New(cfg Config) (*slog.Logger, error) {
	writer := cfg.Writer
	if writer == nil {
		writer = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	switch Format(strings.ToLower(cfg.Format)) {
	case FormatText, "":
		return slog.New(slog.NewTextHandler(writer, opts)), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(writer, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q: must be text or json", cfg.Format)
	}
}

// LevelFromVerbosity maps the count of -v flags to a level. Without flags
// only errors are logged; quiet disables logging altogether.
func LevelFromVerbosity(verbose int, quiet bool) slog.Level {
	switch {
	case quiet:
		return LevelSilent
	case verbose <= 0:
		return slog.LevelError
	case verbose == 1:
		return slog.LevelWarn
	case verbose == 2:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

type contextKey struct{}

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext returns the logger stored in ctx, or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(contextKey{}).(*slog.Logger); ok && logger != nil {
			return logger
		}
	}
	return slog.Default()
}
