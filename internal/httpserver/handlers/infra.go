package handlers

import (
	"context"
	"net/http"

	"github.com/MrSnakeDoc/blink/internal/httpserver/deps"
	"github.com/MrSnakeDoc/blink/internal/store"
)

type componentStatus struct {
	OK     bool   `json:"ok"`
	Name   string `json:"name,omitempty"`
	Mode   string `json:"mode,omitempty"`
	Impact string `json:"impact,omitempty"`
}

type infraResponse struct {
	StorageMode string                     `json:"storage_mode"`
	Components  map[string]componentStatus `json:"components"`
}

// Infra reports which backend was selected and whether it is healthy.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		backend := checkBackend(ctx, d.Backends.Get(ctx))
		components := map[string]componentStatus{
			"storage": backend,
			"reaper": {
				OK:   true,
				Mode: reaperMode(d),
			},
		}

		writeJSON(w, http.StatusOK, infraResponse{
			StorageMode: determineStorageMode(backend),
			Components:  components,
		})
	}
}

func checkBackend(ctx context.Context, b store.Backend) componentStatus {
	st := componentStatus{OK: b.Health(ctx), Name: b.Name()}

	switch b.Name() {
	case "redis":
		st.Mode = "shared"
		st.Impact = "pastes-shared-across-instances"
	case "sqlite":
		st.Mode = "local-durable"
		st.Impact = "pastes-survive-restart"
	default:
		st.Mode = "ephemeral"
		st.Impact = "pastes-lost-on-restart"
	}
	return st
}

func determineStorageMode(backend componentStatus) string {
	if !backend.OK {
		return "critical"
	}
	if backend.Mode == "ephemeral" {
		return "degraded"
	}
	return "optimal"
}

func reaperMode(d deps.Deps) string {
	if d.SweepTrigger == nil {
		return "disabled"
	}
	return "periodic"
}
