package service

import (
	"context"
	"log/slog"

	"github.com/Strob0t/sketchforge/internal/port/broadcast"
)

// Reporter delivers user-facing messages to the broadcaster and mirrors them to the log.
// A nil Reporter or a Reporter without a broadcaster only logs.
type Reporter struct {
	hub broadcast.Broadcaster
}

// NewReporter creates a Reporter on top of hub.
func NewReporter(hub broadcast.Broadcaster) *Reporter {
	return &Reporter{hub: hub}
}

// Info reports an informational message about path.
func (r *Reporter) Info(ctx context.Context, path, msg string) {
	slog.InfoContext(ctx, msg, "path", path)
	r.send(ctx, broadcast.EventReport, broadcast.ReportEvent{Level: broadcast.LevelInfo, Message: msg, Path: path})
}

// Error reports a failure about path.
func (r *Reporter) Error(ctx context.Context, path, msg string) {
	slog.ErrorContext(ctx, msg, "path", path)
	r.send(ctx, broadcast.EventReport, broadcast.ReportEvent{Level: broadcast.LevelError, Message: msg, Path: path})
}

// Status emits a transpile status event.
func (r *Reporter) Status(ctx context.Context, payload any) {
	r.send(ctx, broadcast.EventTranspileStatus, payload)
}

func (r *Reporter) send(ctx context.Context, eventType string, payload any) {
	if r == nil || r.hub == nil {
		return
	}
	r.hub.BroadcastEvent(ctx, eventType, payload)
}
