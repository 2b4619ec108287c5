// Package ws implements the WebSocket adapter that pushes transpile reports and
// status to editor clients and accepts editor events over the same connection.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const writeTimeout = 5 * time.Second

// Message is the envelope for all WebSocket messages.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// InboundFunc handles a message sent by a client.
type InboundFunc func(ctx context.Context, msg Message)

// conn wraps a single WebSocket connection.
type conn struct {
	ws     *websocket.Conn
	cancel context.CancelFunc
}

// Hub manages all active WebSocket connections and broadcasts messages.
type Hub struct {
	mu      sync.RWMutex
	conns   map[*conn]struct{}
	inbound InboundFunc
	origins []string
}

// NewHub creates a new WebSocket hub. Browser clients are accepted only from
// the given origin host patterns; clients sending no Origin header always are.
func NewHub(originPatterns ...string) *Hub {
	return &Hub{
		conns:   make(map[*conn]struct{}),
		origins: originPatterns,
	}
}

// OriginPatterns converts a configured CORS origin into host patterns for NewHub.
func OriginPatterns(origin string) []string {
	switch origin {
	case "":
		return nil
	case "*":
		return []string{"*"}
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return []string{origin}
	}
	return []string{u.Host}
}

// SetInbound wires the handler for client messages. Without one they are dropped.
func (h *Hub) SetInbound(fn InboundFunc) {
	h.mu.Lock()
	h.inbound = fn
	h.mu.Unlock()
}

// HandleWS upgrades the request to a WebSocket and serves it until the client leaves.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		slog.Warn("websocket accept failed", "origin", r.Header.Get("Origin"), "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	c := &conn{ws: ws, cancel: cancel}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()

	slog.Info("websocket connected", "remote", r.RemoteAddr)

	defer func() {
		h.remove(c)
		_ = ws.Close(websocket.StatusNormalClosure, "")
	}()
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			return
		}
		h.dispatch(ctx, data)
	}
}

func (h *Hub) dispatch(ctx context.Context, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Debug("websocket message dropped", "error", err)
		return
	}

	h.mu.RLock()
	fn := h.inbound
	h.mu.RUnlock()
	if fn != nil {
		fn(ctx, msg)
	}
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(ctx context.Context, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("websocket marshal failed", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.conns {
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err := c.ws.Write(wctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			slog.Debug("websocket write failed", "error", err)
			go h.remove(c)
		}
	}
}

// ConnectionCount returns the number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c]; ok {
		c.cancel()
		delete(h.conns, c)
		slog.Info("websocket disconnected")
	}
}
