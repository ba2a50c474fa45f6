package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"hairwise/internal/handlers"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	ChatHandler          *handlers.ChatHandler
	ConversationsHandler *handlers.ConversationsHandler
	HealthHandler        *handlers.HealthHandler
	RateLimiter          RateLimiter
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(CORS)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", deps.HealthHandler)

		// The chat endpoint is the only one that costs model calls, so the
		// rate limit applies there alone.
		r.Group(func(r chi.Router) {
			r.Use(RateLimitMiddleware(deps.RateLimiter))
			r.Method(http.MethodPost, "/chat", deps.ChatHandler)
		})

		r.Get("/conversations", deps.ConversationsHandler.List)
		r.Get("/conversations/{id}/messages", deps.ConversationsHandler.Messages)
	})

	return r
}
