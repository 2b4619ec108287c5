package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/Strob0t/sketchforge/internal/adapter/ws"
	"github.com/Strob0t/sketchforge/internal/domain"
	"github.com/Strob0t/sketchforge/internal/domain/sketch"
	"github.com/Strob0t/sketchforge/internal/service"
)

// WSInbound returns a ws.InboundFunc feeding editor events sent over the
// WebSocket into the orchestrator. Outcomes reach the client as broadcast events.
func WSInbound(o *service.Orchestrator) ws.InboundFunc {
	return func(ctx context.Context, msg ws.Message) {
		switch msg.Type {
		case ws.EventSave:
			var ev sketch.SaveEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil || ev.Path == "" {
				slog.Warn("invalid save event over websocket", "error", err)
				return
			}
			if _, err := o.Submit(ctx, ev); err != nil && !errors.Is(err, domain.ErrInFlight) {
				slog.Warn("save event rejected", "path", ev.Path, "error", err)
			}
		case ws.EventActive:
			var ev ws.ActiveFileEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil || ev.Path == "" {
				slog.Warn("invalid active file event over websocket", "error", err)
				return
			}
			o.SetActiveFile(ev.Path)
		default:
			slog.Debug("unknown websocket message", "type", msg.Type)
		}
	}
}
