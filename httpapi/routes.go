// Package httpapi exposes the feed over HTTP: registration, magic-link
// verification, posting and the live SSE stream.
package httpapi

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"whisperfeed/services"
)

// Handlers groups the HTTP endpoints and their collaborators.
// secureCookies marks the auth cookie Secure; enable it whenever the feed
// is served over HTTPS.
type Handlers struct {
	auth          services.IAuthService
	feed          services.IFeedService
	log           *slog.Logger
	secureCookies bool
}

func NewHandlers(auth services.IAuthService, feed services.IFeedService, log *slog.Logger, secureCookies bool) *Handlers {
	return &Handlers{auth: auth, feed: feed, log: log, secureCookies: secureCookies}
}

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	// CORS - allow credentials for the auth cookie
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (no auth required)
	r.Get("/health", h.HealthCheck)

	// Auth routes (no auth required)
	r.Post("/auth/login", h.Login)
	r.Get("/auth/verify", h.Verify)

	// Feed routes: the bearer token is checked per request by the
	// admission pipeline, not by a router-level middleware.
	r.Route("/feed", func(r chi.Router) {
		r.Post("/post", h.Post)
		r.Get("/stream", h.Stream)
		r.Get("/history", h.History)
		r.Get("/hashtags", h.Hashtags)
		r.Get("/search", h.Search)
	})

	return r
}
