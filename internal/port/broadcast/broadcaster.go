// Package broadcast defines the port for reporting transpile progress and
// user-facing messages to connected editor clients.
package broadcast

import "context"

// Event types sent through a Broadcaster.
const (
	EventReport          = "sketch.report"           // ReportEvent
	EventTranspileStatus = "sketch.transpile.status" // sketch.Result or sketch.Status
)

// Report levels.
const (
	LevelInfo  = "info"
	LevelError = "error"
)

// ReportEvent is a message meant for the user, mirroring an editor notification.
type ReportEvent struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

// Broadcaster sends real-time events to all connected clients.
type Broadcaster interface {
	// BroadcastEvent sends a typed event to all connected clients.
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}
