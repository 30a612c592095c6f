package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/blink/internal/httpserver/deps"
	"github.com/MrSnakeDoc/blink/internal/httpserver/handlers"
)

func init() { Register("uploads", registerUploads) }

func registerUploads(r chi.Router, d deps.Deps) {
	r.Get("/uploads/{filename}", handlers.Upload(d))
}
