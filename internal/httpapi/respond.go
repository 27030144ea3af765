package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/adverant/nexus/manualqa/internal/errors"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// respondError picks the HTTP status from a *errors.ProcessingError when the
// handler produced one, falling back to 500 for anything else.
func respondError(w http.ResponseWriter, err error) {
	if pe, ok := err.(*errors.ProcessingError); ok {
		respondJSON(w, pe.StatusCode(), pe.ToMap())
		return
	}
	respondJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
}
