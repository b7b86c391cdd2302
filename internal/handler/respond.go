package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dukerupert/fraudwatch/internal/apperr"
	"github.com/dukerupert/fraudwatch/internal/logging"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeFailure maps err to its HTTP status and writes {key: message}.
// Internal errors are logged with their cause and answered with fallback.
func writeFailure(w http.ResponseWriter, r *http.Request, logger *slog.Logger, key, fallback string, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context(), logger).Error(fallback, "error", err)
	}
	writeJSON(w, status, map[string]string{key: apperr.Message(err, fallback)})
}
