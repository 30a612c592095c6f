package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/blink/internal/httpserver/deps"
)

const healthTimeout = 2 * time.Second

type healthzResponse struct {
	OK bool `json:"ok"`
}

// Healthz reports whether the selected backend answers.
func Healthz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		if !d.Backends.Get(ctx).Health(ctx) {
			writeJSON(w, http.StatusServiceUnavailable, healthzResponse{OK: false})
			return
		}
		writeJSON(w, http.StatusOK, healthzResponse{OK: true})
	}
}
