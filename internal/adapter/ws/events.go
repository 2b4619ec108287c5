package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Client event types.
const (
	EventSave   = "sketch.save"   // Payload: sketch.SaveEvent
	EventActive = "sketch.active" // Payload: ActiveFileEvent
)

// ActiveFileEvent is sent by a client when the user switches files.
type ActiveFileEvent struct {
	Path string `json:"path"`
}

// BroadcastEvent marshals a typed event and broadcasts it. It implements broadcast.Broadcaster.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
