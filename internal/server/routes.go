package server

import (
	"github.com/go-chi/chi/v5"

	"github.com/lumenos/lumen/internal/api/ws"
)

func registerWSRoutes(r chi.Router, hub *ws.Hub) {
	r.Get("/run/{sessionID}", hub.ServeRun)
}
