package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/blink/internal/httpserver/deps"
	"github.com/MrSnakeDoc/blink/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/blink/internal/httpserver/mw"
)

func init() { Register("ops", registerReadyz) }

func registerReadyz(r chi.Router, d deps.Deps) {
	r.Get("/api/healthz", handlers.Healthz(d))

	restricted := r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))
	restricted.Get("/readyz", handlers.Readyz(d))
	restricted.Get("/api/infra", handlers.Infra(d))
	restricted.Post("/api/sweep", handlers.Sweep(d))
}
