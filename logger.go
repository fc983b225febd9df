package qix

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with qix-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// WithContext returns l unchanged; handlers that extract values from a
// context receive it through the *Context logging methods.
func (l *Logger) WithContext(_ context.Context) *Logger {
	return &Logger{
		Logger: l.Logger.With(),
	}
}

// WithPath adds the data file path to the logger.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("path", path),
	}
}

// WithRequestor tags the logger with the lock requestor.
func (l *Logger) WithRequestor(req Requestor) *Logger {
	return &Logger{
		Logger: l.Logger.With("requestor", req.String()),
	}
}

// LogBuild logs the outcome of an index build.
func (l *Logger) LogBuild(ctx context.Context, stats BuildStats, err error) {
	if err != nil {
		l.ErrorContext(ctx, "index build failed, previous index kept",
			"duration", stats.Duration,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "index built",
		"records", stats.Records,
		"nodes", stats.Nodes,
		"depth", stats.Depth,
		"strategy", stats.Strategy,
		"bytes", stats.Bytes,
		"duration", stats.Duration,
	)
}

// LogFallback logs a query that falls back to a full scan.
func (l *Logger) LogFallback(ctx context.Context, reason string, err error) {
	if err != nil {
		l.WarnContext(ctx, "spatial index unusable, scanning everything",
			"reason", reason,
			"error", err,
		)
		return
	}
	l.DebugContext(ctx, "spatial index skipped, scanning everything",
		"reason", reason,
	)
}

// LogSearch logs a completed indexed search.
func (l *Logger) LogSearch(ctx context.Context, hits int, duration time.Duration) {
	l.DebugContext(ctx, "search completed",
		"hits", hits,
		"duration", duration,
	)
}
