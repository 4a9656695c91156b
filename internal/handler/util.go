// Package handler provides HTTP handlers for the local API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/qwikask/qwikask/internal/history"
	"github.com/qwikask/qwikask/internal/llm"
	"github.com/qwikask/qwikask/internal/settings"
)

// maxBodyBytes bounds request bodies; settings carry the longest text.
const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, history.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, settings.ErrInvalidTheme),
		errors.Is(err, settings.ErrInvalidShortcut),
		errors.Is(err, settings.ErrInvalidBaseURL),
		errors.Is(err, llm.ErrUnknownProvider):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
