package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ai-learning-tracker/tracker/internal/auth"
)

// RouterOptions enables token checks on follow-set writes when Tokens is set.
type RouterOptions struct {
	Tokens auth.TokenParser
	Users  auth.UserLookup
}

func NewRouter(apiHandler *APIHandler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	r.Get("/health", apiHandler.HealthHandler)

	r.Route("/api", func(r chi.Router) {
		r.Route("/feed", func(r chi.Router) {
			r.Get("/", apiHandler.FeedHandler)
			r.Get("/gurus", apiHandler.ListGurusHandler)
			r.Get("/guru/{guruID}/posts", apiHandler.GuruPostsHandler)
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/sync", apiHandler.SyncUserHandler)
			r.Get("/by-google/{googleID}", apiHandler.GetUserByGoogleIDHandler)
			r.Get("/{userID}", apiHandler.GetUserHandler)
			r.Get("/{userID}/gurus", apiHandler.GetUserGurusHandler)

			r.Group(func(r chi.Router) {
				if opts.Tokens != nil {
					r.Use(auth.JWTAuthMiddleware(opts.Tokens, apiHandler.logger))
					r.Use(auth.RequireSelf(opts.Users, "userID", apiHandler.logger))
				}
				r.Put("/{userID}/gurus", apiHandler.UpdateUserGurusHandler)
			})
		})

		r.Route("/chat", func(r chi.Router) {
			r.Post("/", apiHandler.ChatHandler)
			r.Get("/stats", apiHandler.ChatStatsHandler)
		})
	})

	return r
}
