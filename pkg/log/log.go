package log

import (
	"context"
	"log/slog"
	"os"
)

var (
	level  slog.LevelVar
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     &level,
	}))
)

func init() {
	level.Set(slog.LevelInfo)
}

type loggerKey struct{}

// Ctx returns the request-scoped logger, or the process logger when ctx
// carries none.
func Ctx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return logger
}

// With attaches l to ctx.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// WithAttrs attaches a logger that adds args to every record, e.g. the
// session id on all lines of one request.
func WithAttrs(ctx context.Context, args ...any) context.Context {
	return With(ctx, Ctx(ctx).With(args...))
}

// SetDefaultLogLevel changes the level of the process logger.
func SetDefaultLogLevel(l slog.Level) {
	level.Set(l)
}
