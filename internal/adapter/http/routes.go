package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	sfotel "github.com/Strob0t/sketchforge/internal/adapter/otel"
	"github.com/Strob0t/sketchforge/internal/adapter/ws"
	"github.com/Strob0t/sketchforge/internal/middleware"
)

// NewRouter builds the control API router with its middleware stack.
// corsOrigin is the single browser origin admitted; see CORS.
func NewRouter(h *Handlers, hub *ws.Hub, serviceName, corsOrigin string) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(Logger)
	r.Use(sfotel.HTTPMiddleware(serviceName))
	r.Use(CORS(corsOrigin))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "connections": hub.ConnectionCount()})
	})
	r.Get("/ws", hub.HandleWS)
	MountRoutes(r, h)
	return r
}

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Editor hooks
		r.Post("/events/save", h.HandleSave)
		r.Post("/events/active", h.SetActiveFile)
		r.Get("/root", h.CurrentRoot)
		r.Get("/status", h.FileStatus)

		// User-invocable actions
		r.Post("/actions/provision", h.Provision)
		r.Post("/actions/resync", h.Resync)
		r.Post("/actions/scaffold", h.Scaffold)
	})
}
