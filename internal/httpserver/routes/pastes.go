package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/blink/internal/httpserver/deps"
	"github.com/MrSnakeDoc/blink/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/blink/internal/httpserver/mw"
)

func init() { Register("pastes", registerPastes) }

func registerPastes(r chi.Router, d deps.Deps) {
	create := []Middleware{timeout(d.UploadTimeout)}
	if d.CreateRateLimit > 0 {
		create = append(create, mw.RateLimit(mw.RateLimitConfig{
			PerMinute:  d.CreateRateLimit,
			MaxClients: 10000,
			TrustProxy: d.TrustProxy,
		}))
	}

	r.With(create...).Post("/api/pastes", handlers.CreatePaste(d))
	r.With(timeout(d.RequestTimeout)).Get("/api/pastes/{id}", handlers.GetPaste(d))
	r.With(timeout(d.RequestTimeout)).Get("/p/{id}", handlers.ViewPaste(d))
}

// timeout is middleware.Timeout, or a passthrough when t is not set.
func timeout(t time.Duration) Middleware {
	if t <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.Timeout(t)
}
