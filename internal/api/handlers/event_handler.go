package handlers

import (
	"net/http"
	"strconv"

	"github.com/isdelr/tasktracker-be/internal/api/respond"
	"github.com/isdelr/tasktracker-be/internal/services"
)

const (
	defaultEventLimit = 20
	maxEventLimit     = 100
)

// EventHandler serves the caller's activity log.
type EventHandler struct {
	service services.EventServiceProvider
}

// NewEventHandler creates a new EventHandler.
func NewEventHandler(service services.EventServiceProvider) *EventHandler {
	return &EventHandler{service: service}
}

// GetRecent handles the request to get recent activity/events.
func (h *EventHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultEventLimit
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	events, err := h.service.GetRecentEvents(r.Context(), ownerID, limit)
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve events")
		return
	}

	respond.JSON(w, http.StatusOK, map[string]interface{}{"events": events})
}
