/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for a back-office frontend

ROUTE GROUPS:
  /api/subjects/*    Leave submission and listings
  /api/subsidies/*   Subsidy workflow
  /api/leaves/*      Leave document review
  /api/reports/*     Breach and overdue reports
  /api/scenarios/*   Demo data
  /metrics           Prometheus scrape endpoint

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/subjects/{id}", func(r chi.Router) {
			r.Post("/leaves", h.SubmitLeave)
			r.Get("/leaves", h.ListLeaves)
			r.Get("/subsidies", h.ListSubsidies)
		})

		r.Route("/subsidies", func(r chi.Router) {
			r.Post("/{id}/status", h.AdvanceSubsidy)
		})
		r.Post("/leaves/{id}/status", h.ReviewLeave)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/breaches", h.ListBreaches)
			r.Get("/overdue", h.ListOverdue)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
