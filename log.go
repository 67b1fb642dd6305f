package assetgen

import (
	"context"

	"github.com/rs/zerolog"
)

type logKey struct{}

var nopLogger = zerolog.Nop()

// Logger returns the logger attached to ctx, or a disabled logger.
func Logger(ctx context.Context) *zerolog.Logger {
	if logger, ok := ctx.Value(logKey{}).(*zerolog.Logger); ok && logger != nil {
		return logger
	}
	return &nopLogger
}

// WithLogger attaches the given logger to the context
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	return context.WithValue(ctx, logKey{}, logger)
}

// withTask returns a context whose logger tags every event with the task name.
func withTask(ctx context.Context, task string) context.Context {
	logger := Logger(ctx).With().Str("task", task).Logger()
	return WithLogger(ctx, &logger)
}
