package logger

import (
	"context"
	"log/slog"
)

// contextKey is a private type to prevent collisions with other context keys.
type contextKey int

const (
	attemptIDKey contextKey = iota // Transpile attempt ID
	requestIDKey                   // Control API request ID
)

// WithAttemptID returns a new context with the given attempt ID stored.
func WithAttemptID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, attemptIDKey, id)
}

// AttemptID extracts the attempt ID from the context.
// Returns an empty string if no attempt ID is set.
func AttemptID(ctx context.Context) string {
	id, _ := ctx.Value(attemptIDKey).(string)
	return id
}

// WithRequestID returns a new context with the given request ID stored.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID extracts the request ID from the context.
// Returns an empty string if no request ID is set.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ContextHandler adds the attempt_id and request_id attributes from the context to every record.
type ContextHandler struct {
	inner slog.Handler
}

// NewContextHandler wraps inner.
func NewContextHandler(inner slog.Handler) *ContextHandler {
	return &ContextHandler{inner: inner}
}

// Enabled delegates to the inner handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle attaches the context ids before passing the record on.
func (h *ContextHandler) Handle(ctx context.Context, rec slog.Record) error { //nolint:gocritic // slog.Handler interface requires value receiver
	attempt, request := AttemptID(ctx), RequestID(ctx)
	if attempt != "" || request != "" {
		rec = rec.Clone()
		if attempt != "" {
			rec.AddAttrs(slog.String("attempt_id", attempt))
		}
		if request != "" {
			rec.AddAttrs(slog.String("request_id", request))
		}
	}
	return h.inner.Handle(ctx, rec)
}

// WithAttrs returns a ContextHandler around the inner handler with attrs.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs)}
}

// WithGroup returns a ContextHandler around the inner handler with the group.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{inner: h.inner.WithGroup(name)}
}
