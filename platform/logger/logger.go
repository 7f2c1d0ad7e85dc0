// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// CorrelationIDKey is the context key for the correlation ID carried by events
	CorrelationIDKey contextKey = "correlation_id"
	// TopicKey is the context key for the Kafka topic being processed
	TopicKey contextKey = "topic"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports correlation_id and topic from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if correlationID, ok := ctx.Value(CorrelationIDKey).(string); ok && correlationID != "" {
		newLogger = &Logger{
			Logger: newLogger.With(slog.String("correlation_id", correlationID)),
		}
	}

	if topic, ok := ctx.Value(TopicKey).(string); ok && topic != "" {
		newLogger = newLogger.WithTopic(topic)
	}

	return newLogger
}

// WithTopic returns a logger scoped to a Kafka topic
func (l *Logger) WithTopic(topic string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("topic", topic)),
	}
}

// ConsumerError logs a failure while processing a consumed record
func (l *Logger) ConsumerError(topic, key string, err error) {
	l.Error("consumer_error",
		slog.String("topic", topic),
		slog.String("key", key),
		slog.String("error", err.Error()),
	)
}

// EventApplied logs a successfully reconciled record
func (l *Logger) EventApplied(topic, key, action string) {
	l.Debug("event_applied",
		slog.String("topic", topic),
		slog.String("key", key),
		slog.String("action", action),
	)
}

// JobRun logs the outcome of one periodic job tick
func (l *Logger) JobRun(job string, durationMs float64, processed int, failed int) {
	l.Info("job_run",
		slog.String("job", job),
		slog.Float64("duration_ms", durationMs),
		slog.Int("processed", processed),
		slog.Int("failed", failed),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// UpstreamError logs a failed call to an upstream domain service
func (l *Logger) UpstreamError(service, operation string, status int, err error) {
	l.Error("upstream_error",
		slog.String("service", service),
		slog.String("operation", operation),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)
}
