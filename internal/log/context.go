package log

import (
	"context"
	"log/slog"
)

type contextKey struct{}

// WithContext stores logger in ctx
func WithContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext extracts a logger from ctx, falling back to the default logger
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// StructuredLogger provides structured logging methods with context awareness
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

// LogUpdateEnd logs the completion of a chat update. Failures are logged at
// error level, user-facing rejections at warn.
func (sl *StructuredLogger) LogUpdateEnd(ctx context.Context, updateID int, chatID, userID int64, kind string, durationMs int64, failed bool) {
	level := slog.LevelInfo
	switch {
	case failed:
		level = slog.LevelError
	case kind == "error":
		level = slog.LevelWarn
	}

	fields := NewFields().
		WithUpdate(updateID, chatID, userID).
		WithOutcome(kind, durationMs, !failed).
		WithComponent(ComponentTelegram)

	sl.logger.Logger.Log(ctx, level, "Update handled", fields.ToSlice()...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, component string, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	allFields := fields.
		WithError(err).
		WithOperation(operation).
		WithComponent(component)

	sl.logger.Logger.ErrorContext(ctx, msg, allFields.ToSlice()...)
}
