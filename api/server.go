/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions for the
  portal API.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the portal frontend

ROUTE GROUPS:
  /api/catalog      Material catalog
  /api/teams/*      Team records + opening balances
  /api/sites/*      Site records
  /api/usage/*      Consumption events + pre-flight resolution
  /api/reports/*    Flat / summary / detailed views
  /api/admin/*      Privileged allocation edits
  /api/scenarios/*  Demo data loaders (dev only)

SECURITY NOTE:
  No authentication middleware; the portal frontend is trusted to forward
  actor identity headers. See handlers.go.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
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
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor-Team", "X-Actor-Role"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/catalog", h.ListCatalog)

		r.Route("/teams", func(r chi.Router) {
			r.Get("/", h.ListTeams)
			r.Post("/", h.SaveTeam)
			r.Get("/{id}", h.GetTeam)
			r.Put("/{id}", h.SaveTeam)
			r.Delete("/{id}", h.DeleteTeam)
			r.Post("/{id}/opening-balance", h.SetOpeningBalance)
		})

		r.Route("/sites", func(r chi.Router) {
			r.Get("/", h.ListSites)
			r.Post("/", h.SaveSite)
			r.Get("/{id}", h.GetSite)
			r.Put("/{id}", h.SaveSite)
			r.Delete("/{id}", h.DeleteSite)
		})

		r.Route("/usage", func(r chi.Router) {
			r.Get("/", h.ListUsage)
			r.Post("/", h.LogUsage)
			r.Get("/preflight", h.PreflightUsage)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/flat", h.FlatReport)
			r.Get("/summary", h.SummaryReport)
			r.Get("/detailed", h.DetailedReport)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/allocations", h.AddAllocation)
			r.Put("/allocations/used", h.EditAllocationUsed)
			r.Delete("/allocations", h.RemoveAllocation)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Post("/load", h.LoadScenario)
		})
	})

	return r
}
