package recordkv

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with recordkv-specific context.
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
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// WithNamespace adds a namespace field to the logger.
func (l *Logger) WithNamespace(ns string) *Logger {
	return &Logger{
		Logger: l.Logger.With("namespace", ns),
	}
}

// LogSave logs an upsert.
func (l *Logger) LogSave(ctx context.Context, ids []string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "save failed",
			"ids", ids,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "save completed",
			"ids", ids,
		)
	}
}

// LogFetch logs a read.
func (l *Logger) LogFetch(ctx context.Context, records int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "fetch failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "fetch completed",
			"records", records,
		)
	}
}

// LogDestroy logs a delete.
func (l *Logger) LogDestroy(ctx context.Context, ids []string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "destroy failed",
			"ids", ids,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "destroy completed",
			"ids", ids,
		)
	}
}

// LogDangling logs index entries without a stored record.
func (l *Logger) LogDangling(ctx context.Context, ids []string) {
	if len(ids) > 0 {
		l.WarnContext(ctx, "record index references missing records",
			"ids", ids,
		)
	}
}
