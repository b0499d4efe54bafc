package handlers

import (
	"errors"
	"net/http"

	"github.com/isdelr/tasktracker-be/internal/api/respond"
	"github.com/isdelr/tasktracker-be/internal/services"
	"github.com/rs/zerolog/hlog"
)

// writeServiceError maps service error kinds onto HTTP statuses. Unknown
// errors are logged and answered with a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	switch {
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrConflict):
		respond.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrUnauthorized):
		respond.Error(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrNotFound):
		respond.Error(w, http.StatusNotFound, err.Error())
	default:
		hlog.FromRequest(r).Error().Err(err).Msg(logMsg)
		respond.Error(w, http.StatusInternalServerError, "Internal server error")
	}
}
