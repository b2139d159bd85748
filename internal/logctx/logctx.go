// Package logctx carries zerolog loggers through context.Context.
//
// Batch runs enrich the logger once (run_id, command) and every step below
// them picks the enriched logger back up with FromContext. Per-item fields
// (key, game, draw_number) are added the same way at the point where the
// item's processing starts.
package logctx

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// loggerKey is private so other packages cannot collide with it.
type loggerKey struct{}

var (
	defaultLogger     zerolog.Logger
	defaultLoggerOnce sync.Once
)

// DefaultLogger returns the process-wide fallback logger: JSON to stderr
// with timestamps, used whenever a context carries no logger.
func DefaultLogger() zerolog.Logger {
	defaultLoggerOnce.Do(func() {
		defaultLogger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	})
	return defaultLogger
}

// WithLogger returns a context carrying the given logger.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext extracts the logger from the context, falling back to
// DefaultLogger. Never panics and never returns a zero-value logger.
func FromContext(ctx context.Context) zerolog.Logger {
	if ctx == nil {
		return DefaultLogger()
	}
	if logger, ok := ctx.Value(loggerKey{}).(zerolog.Logger); ok {
		return logger
	}
	return DefaultLogger()
}

// WithStr returns a context whose logger has an extra string field.
func WithStr(ctx context.Context, key, value string) context.Context {
	logger := FromContext(ctx).With().Str(key, value).Logger()
	return WithLogger(ctx, logger)
}

// WithInt returns a context whose logger has an extra int field.
func WithInt(ctx context.Context, key string, value int) context.Context {
	logger := FromContext(ctx).With().Int(key, value).Logger()
	return WithLogger(ctx, logger)
}

// NewConfiguredLogger builds the root logger for a command invocation.
// debug lowers the level to Debug; human switches to the console writer.
func NewConfiguredLogger(debug, human bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	var output io.Writer = os.Stderr
	if human {
		output = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}
