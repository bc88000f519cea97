package routes

import (
	"github.com/go-chi/chi"

	"github.com/avvvet/prizedraw-services/internal/socketsvc/handlers"
	"github.com/avvvet/prizedraw-services/internal/socketsvc/ws"
)

func SetRoutes(r chi.Router, ws *ws.Ws) {
	h := handlers.NewHandler(ws)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/ws", h.HandleWebSocket)
		r.Get("/health", h.HealthHandler)
	})
}
