package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all analytics routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/analytics", func(r chi.Router) {
		r.Route("/benchmarks", func(r chi.Router) {
			r.Post("/calculate", h.HandleCalculateBenchmark) // Recalculate one peer group (?sector=&industry=&region=)
			r.Get("/", h.HandleListBenchmarks)               // Stored benchmarks (?sector=&industry=&region=)
		})

		r.Route("/correlation", func(r chi.Router) {
			r.Post("/", h.HandleRunCorrelation)       // Recompute correlation matrix
			r.Get("/latest", h.HandleLatestCorrelation) // Most recent analysis
		})

		r.Route("/simulations", func(r chi.Router) {
			r.Post("/", h.HandleRunSimulation) // Run Monte Carlo projection
			r.Get("/", h.HandleListSimulations) // Recent runs (?limit=)

			r.Route("/{simulationID}", func(r chi.Router) {
				r.Get("/", h.HandleGetSimulation)
				r.Get("/distribution", h.HandleSimulationDistribution) // Percentile re-query (?series=&percentile=)
			})
		})

		r.Route("/optimization", func(r chi.Router) {
			r.Post("/", h.HandleRunOptimization)    // Heuristic rebalancing suggestions
			r.Get("/", h.HandleListOptimizations)   // Recent analyses (?limit=)
		})

		r.Route("/attribution", func(r chi.Router) {
			r.Post("/", h.HandleCalculateAttribution) // Attribute impact to one holding
			r.Get("/", h.HandleListAttributions)      // Stored attributions (?investment_id=)
		})
	})
}
