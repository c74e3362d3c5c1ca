/**
 * @description
 * This file sets up the HTTP router for the access-service using the
 * go-chi/chi router. It defines the API routes, applies middleware for
 * logging, CORS, and session authentication, and maps routes to handlers.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/matchpass/access-service/internal/auth"
)

// NewRouter creates a new Chi router and registers the access-service routes.
func NewRouter(h *Handler, tokens *auth.TokenService) *chi.Mux {
	r := chi.NewRouter()

	// Setup middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Access service is healthy"))
	})

	// Public auth endpoints
	r.Post("/auth/signup", h.handleSignup)
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/logout", h.handleLogout)

	// Protected routes that require a valid session cookie
	r.Group(func(r chi.Router) {
		r.Use(SessionAuthMiddleware(tokens))

		r.Get("/subscriptions", h.handleListSubscriptions)
		r.Post("/checkout", h.handleCreateCheckout)
		r.Post("/subscriptions/{subscriptionID}/cancel", h.handleCancelSubscription)
		r.Get("/leagues/{leagueID}/content", h.handleLeagueContent)
	})

	return r
}
