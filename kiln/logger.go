package kiln

import (
	"context"
	"io"
	"log/slog"
)

// Logger is the narrow logging capability kiln writes through. It is
// satisfied by *slog.Logger directly; hosts that want a different
// backend need only adapt it to this shape. Per spec.md §1, the log
// backend itself is an external collaborator — kiln only specifies the
// capability.
type Logger interface {
	Log(ctx context.Context, level slog.Level, msg string, args ...any)
}

// noopLogger is the zero-value fallback used whenever a component is
// constructed without an explicit Logger, mirroring
// rivaas.dev/app's and rivaas.dev/router's own noopLogger singletons.
var noopLogger Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

func logInfo(l Logger, ctx context.Context, msg string, args ...any) {
	if l == nil {
		l = noopLogger
	}
	l.Log(ctx, slog.LevelInfo, msg, args...)
}

func logWarn(l Logger, ctx context.Context, msg string, args ...any) {
	if l == nil {
		l = noopLogger
	}
	l.Log(ctx, slog.LevelWarn, msg, args...)
}

func logError(l Logger, ctx context.Context, msg string, args ...any) {
	if l == nil {
		l = noopLogger
	}
	l.Log(ctx, slog.LevelError, msg, args...)
}
