package logger

import (
	"context"
)

// Logger defines the structured logging contract used by adapters, repositories and the CLI.
// All log methods accept a message string followed by key-value pairs for structured fields.
type Logger interface {
	// Debug logs a debug-level message with optional key-value pairs
	Debug(msg string, args ...any)

	// Info logs an info-level message with optional key-value pairs
	Info(msg string, args ...any)

	// Warn logs a warning-level message with optional key-value pairs
	Warn(msg string, args ...any)

	// Error logs an error-level message with optional key-value pairs
	Error(msg string, args ...any)

	// With creates a child logger with additional key-value pairs that will be
	// included in all subsequent log entries
	With(args ...any) Logger

	// WithContext creates a child logger carrying the correlation id found in ctx
	WithContext(ctx context.Context) Logger
}

type correlationIDKey struct{}

// ContextWithCorrelationID stores a correlation id that WithContext attaches to log entries.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// CorrelationIDFromContext returns the correlation id stored in ctx, if any.
func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return id
	}
	return ""
}

type nopLogger struct{}

// NewNopLogger returns a Logger that discards everything.
func NewNopLogger() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...any)                {}
func (nopLogger) Info(string, ...any)                 {}
func (nopLogger) Warn(string, ...any)                 {}
func (nopLogger) Error(string, ...any)                {}
func (n nopLogger) With(...any) Logger                { return n }
func (n nopLogger) WithContext(context.Context) Logger { return n }
