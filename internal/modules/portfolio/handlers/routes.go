package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all investment routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/investments", func(r chi.Router) {
		r.Post("/", h.HandleCreateInvestment) // Create holding
		r.Get("/", h.HandleListInvestments)   // List holdings (?status=&sector=)

		r.Route("/{investmentID}", func(r chi.Router) {
			r.Get("/", h.HandleGetInvestment)
			r.Put("/", h.HandleUpdateInvestment)
			r.Delete("/", h.HandleDivestInvestment) // Soft delete: status -> divested

			r.Get("/metrics", h.HandleGetMetrics)                         // Latest assessment per type
			r.Get("/benchmark-comparison", h.HandleBenchmarkComparison)   // Peer-group comparison

			// Assessment appends
			r.Post("/esg-scores", h.HandleAddESGScore)
			r.Post("/climate-risks", h.HandleAddClimateRisk)
			r.Post("/social-impacts", h.HandleAddSocialImpact)
			r.Post("/emissions", h.HandleAddEmissions)
		})
	})
}
