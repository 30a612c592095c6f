package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/blink/internal/httpserver/deps"
	"github.com/MrSnakeDoc/blink/internal/logger"
)

type sweepResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Sweep asks the reaper to purge dead pastes now.
func Sweep(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.SweepTrigger == nil {
			writeJSON(w, http.StatusConflict, sweepResponse{
				Status:  "disabled",
				Message: "reaper is disabled (BLINK_REAP_INTERVAL=0)",
			})
			return
		}

		select {
		case d.SweepTrigger <- struct{}{}:
			d.Logger.Info("manual sweep triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusAccepted, sweepResponse{
				Status:  "accepted",
				Message: "sweep triggered",
			})
		default:
			d.Logger.Warn("sweep already pending",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusTooManyRequests, sweepResponse{
				Status:  "busy",
				Message: "a sweep is already pending",
			})
		}
	}
}
