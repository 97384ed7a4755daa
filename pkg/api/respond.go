package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mfreeman451/boardwatch/pkg/models"
)

func (s *APIServer) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("error encoding response")
	}
}

// writeError maps domain sentinels onto status codes. Anything unclassified
// is a 500 carrying the error text.
func (s *APIServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, models.ErrValidation):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: models.Message(err)})
	case errors.Is(err, models.ErrNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: models.Message(err)})
	case errors.Is(err, models.ErrConflict):
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: models.Message(err)})
	case errors.Is(err, models.ErrUnauthorized):
		s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
	default:
		s.logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "Internal server error",
			Message: err.Error(),
		})
	}
}

// decodeJSON reads a JSON object body; any malformed or mistyped input yields
// a validation error carrying msg.
func decodeJSON(r *http.Request, v any, msg string) error {
	if r.Body == nil {
		return models.Validationf("%s", msg)
	}

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return models.Validationf("%s", msg)
	}

	return nil
}
