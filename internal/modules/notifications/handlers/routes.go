package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the notification scan route
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/notifications", h.HandleListNotifications) // On-demand scan (?type=&severity=&investment_id=)
}

// RegisterStreamRoutes registers the WebSocket alert stream. It mounts
// separately so the server can keep it outside the request timeout
// middleware, which would sever long-lived connections.
func (h *Handler) RegisterStreamRoutes(r chi.Router) {
	r.Get("/notifications/stream", h.HandleStream)
}
