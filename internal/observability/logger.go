// Package observability provides logging construction and context helpers for clipforge.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/m-mizutani/masq"

	"github.com/clipforge/clipforge/internal/config"
)

// contextKey is a type for context keys to avoid collisions.
type contextKey string

// loggerKey is the context key for the logger.
const loggerKey contextKey = "logger"

// RequestIDKey is the context key for request IDs.
const RequestIDKey contextKey = "request_id"

// NewLogger creates a new slog.Logger based on the provided configuration.
// The logger supports JSON and text formats with configurable log levels.
func NewLogger(cfg config.LoggingConfig) *slog.Logger {
	return NewLoggerWithWriter(cfg, os.Stdout)
}

// NewLoggerWithWriter creates a new slog.Logger that writes to the provided writer.
// Source URLs can carry session cookies and tokens in query strings, so
// credential-bearing fields are masked before they reach the handler.
func NewLoggerWithWriter(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	redact := masq.New(
		masq.WithFieldName("Cookie"),
		masq.WithFieldName("Authorization"),
		masq.WithFieldPrefix("secret_"),
		masq.WithContain("api_key"),
	)

	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && cfg.TimeFormat != "" {
				if t, ok := a.Value.Any().(time.Time); ok {
					return slog.String(slog.TimeKey, t.Format(cfg.TimeFormat))
				}
			}
			return redact(groups, a)
		},
	}

	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent adds a component name to the logger for identifying the source.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String("component", component))
}

// LoggerFromContext extracts a logger from the context.
// If no logger is found, returns the default logger.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// ContextWithLogger adds a logger to the context.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// RequestIDFromContext extracts a request ID from the context.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithRequestID adds a request ID to the context.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// SetDefault sets the provided logger as the default slog logger.
func SetDefault(logger *slog.Logger) {
	slog.SetDefault(logger)
}

// TimedOperation logs the start and end of an operation with duration.
// Returns a function that should be deferred to log the completion.
func TimedOperation(ctx context.Context, logger *slog.Logger, operation string) func() {
	start := time.Now()
	logger.InfoContext(ctx, "operation started", slog.String("operation", operation))

	return func() {
		logger.InfoContext(ctx, "operation completed",
			slog.String("operation", operation),
			slog.Duration("duration", time.Since(start)),
		)
	}
}
