package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/blink/internal/blob"
	"github.com/MrSnakeDoc/blink/internal/domain"
	"github.com/MrSnakeDoc/blink/internal/httpserver/deps"
	"github.com/MrSnakeDoc/blink/internal/logger"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeStoreError maps a store or blob error to its HTTP status. Internal
// causes are logged, never sent to the client.
func writeStoreError(w http.ResponseWriter, d deps.Deps, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Paste not found or unavailable")
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, blob.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "Upload too large")
	case errors.Is(err, domain.ErrStorageUnavailable):
		d.Logger.Error("storage unavailable", logger.String("op", op), logger.Error(err))
		writeError(w, http.StatusServiceUnavailable, "Storage unavailable")
	default:
		d.Logger.Error("request failed", logger.String("op", op), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
	}
}
