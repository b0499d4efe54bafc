package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/isdelr/tasktracker-be/internal/api/respond"
	"github.com/rs/zerolog/hlog"
)

// Pinger is satisfied by *sqlx.DB and *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingHandler reports service health.
type PingHandler struct {
	db Pinger
}

// NewPingHandler creates a new PingHandler.
func NewPingHandler(db Pinger) *PingHandler {
	return &PingHandler{db: db}
}

// Ping answers 200 when the database is reachable and 503 otherwise.
func (h *PingHandler) Ping(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Database ping failed")
		respond.Error(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
