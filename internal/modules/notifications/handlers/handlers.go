// Package handlers provides HTTP handlers for notification scans and the
// alert stream.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/verdantfund/verdant/internal/domain"
	"github.com/verdantfund/verdant/internal/modules/notifications"
)

// Handler handles notification HTTP requests
type Handler struct {
	service *notifications.NotificationService
	hub     *notifications.Hub
	log     zerolog.Logger
}

// NewHandler creates a new notifications handler
func NewHandler(service *notifications.NotificationService, hub *notifications.Hub, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		hub:     hub,
		log:     log.With().Str("handler", "notifications").Logger(),
	}
}

// HandleListNotifications runs an on-demand scan and returns the alerts.
// Alerts are also pushed to stream subscribers.
func (h *Handler) HandleListNotifications(w http.ResponseWriter, r *http.Request) {
	filter := notifications.ScanFilter{
		Type:     r.URL.Query().Get("type"),
		Severity: r.URL.Query().Get("severity"),
	}
	if raw := r.URL.Query().Get("investment_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			h.writeError(w, http.StatusBadRequest, "invalid investment id")
			return
		}
		filter.InvestmentID = id
	}

	alerts, err := h.service.Scan(filter)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.hub.BroadcastAll(alerts)
	h.writeJSON(w, http.StatusOK, alerts)
}

// HandleStream upgrades the request to the WebSocket alert stream
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	h.hub.HandleStream(w, r)
}

// Helper methods

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps the domain error taxonomy onto HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var notFound domain.NotFoundError
	var validation domain.ValidationError
	var insufficient domain.InsufficientDataError

	switch {
	case errors.As(err, &notFound):
		h.writeError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &validation):
		h.writeError(w, http.StatusBadRequest, validation.Error())
	case errors.As(err, &insufficient):
		h.writeError(w, http.StatusUnprocessableEntity, insufficient.Error())
	default:
		h.log.Error().Err(err).Msg("Notification request failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
}
