package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	r.Get("/", apiHandler.HealthHandler)
	r.Post("/login", apiHandler.LoginHandler)

	r.Group(func(r chi.Router) {
		if apiHandler.AuthEnabled() {
			r.Use(apiHandler.JWTAuthMiddleware)
		}
		r.Post("/chat", apiHandler.ChatHandler)
	})

	return r
}
