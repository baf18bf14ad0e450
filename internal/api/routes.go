package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// NewRouter creates a new router with all routes configured. A non-empty
// corsOrigins list enables CORS for the browser dashboard.
func NewRouter(h *Handler, corsOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)
	if len(corsOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins:   corsOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Api-Key"},
			AllowCredentials: true,
		}).Handler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Get("/health", h.Health)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.apiKey))
			r.Post("/register", h.Register)
			r.Post("/deregister", h.Deregister)
			r.Post("/heartbeat", h.Heartbeat)
			r.Post("/complete_use_case", h.CompleteUseCase)
			r.Post("/rating", h.Rating)
			r.Post("/feedback", h.Feedback)
			r.Patch("/pocs/{uid}", h.UpdateOutcome)

			r.Group(func(r chi.Router) {
				r.Use(AsOfMiddleware)
				r.Get("/pocs/{uid}/classification", h.Classification)
				r.Get("/dashboard", h.Dashboard)
			})
		})
	})

	return r
}
