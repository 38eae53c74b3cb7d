package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/unisergius/meetballs/internal/model"
	"github.com/unisergius/meetballs/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{
		"error":   code,
		"message": msg,
	})
}

// writeStoreError maps repository errors onto HTTP statuses. Unknown errors
// are logged and reported without their details.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, model.ErrInvalid):
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, store.ErrConflict):
		writeJSONError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, store.ErrReference):
		writeJSONError(w, http.StatusUnprocessableEntity, "invalid_reference", err.Error())
	default:
		s.log.Error("%s %s: %v", r.Method, r.URL.Path, err)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
