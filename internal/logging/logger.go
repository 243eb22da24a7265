// Package logging defines a minimal structured-logging interface used across
// the project together with slog and zerolog backed implementations.
package logging

import (
	"context"
	"io"
	"strings"
)

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "purchase recorded", "payment_id", id, "material_id", mid)
type Logger interface {
	// Debug logs diagnostics that are normally disabled.
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs an informational message.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs a warning message for unusual but non-fatal conditions.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs an error message for failures.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}

// New builds the logger selected by format: "console" yields a human-readable
// zerolog writer, anything else JSON lines through slog.
func New(format, level, service string, w io.Writer) Logger {
	if strings.EqualFold(format, "console") {
		return NewZerologConsole(w, level, service)
	}
	return NewSlogJSON(w, level, service)
}

type fieldsKey struct{}

// ContextWith returns a copy of ctx whose log lines carry the given key-value
// pairs in addition to any already attached.
func ContextWith(ctx context.Context, args ...any) context.Context {
	prev := fieldsFromContext(ctx)
	fields := make([]any, 0, len(prev)+len(args))
	fields = append(append(fields, prev...), args...)
	return context.WithValue(ctx, fieldsKey{}, fields)
}

func fieldsFromContext(ctx context.Context) []any {
	if ctx == nil {
		return nil
	}
	fields, _ := ctx.Value(fieldsKey{}).([]any)
	return fields
}
