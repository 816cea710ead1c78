// Package handlers provides HTTP handlers for the analytics services.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/verdantfund/verdant/internal/domain"
	"github.com/verdantfund/verdant/internal/modules/analytics"
)

// Handler handles analytics HTTP requests
type Handler struct {
	benchmarks   *analytics.BenchmarkService
	correlations *analytics.CorrelationService
	simulations  *analytics.SimulationService
	optimizer    *analytics.OptimizationService
	attributions *analytics.AttributionService
	log          zerolog.Logger
}

// NewHandler creates a new analytics handler
func NewHandler(
	benchmarks *analytics.BenchmarkService,
	correlations *analytics.CorrelationService,
	simulations *analytics.SimulationService,
	optimizer *analytics.OptimizationService,
	attributions *analytics.AttributionService,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		benchmarks:   benchmarks,
		correlations: correlations,
		simulations:  simulations,
		optimizer:    optimizer,
		attributions: attributions,
		log:          log.With().Str("handler", "analytics").Logger(),
	}
}

// HandleCalculateBenchmark recalculates a peer benchmark for a sector group
func (h *Handler) HandleCalculateBenchmark(w http.ResponseWriter, r *http.Request) {
	sector := r.URL.Query().Get("sector")
	industry := r.URL.Query().Get("industry")
	region := r.URL.Query().Get("region")

	benchmark, err := h.benchmarks.Calculate(sector, industry, region)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, benchmark)
}

// HandleListBenchmarks lists stored benchmarks, optionally filtered
func (h *Handler) HandleListBenchmarks(w http.ResponseWriter, r *http.Request) {
	sector := r.URL.Query().Get("sector")
	industry := r.URL.Query().Get("industry")
	region := r.URL.Query().Get("region")

	benchmarks, err := h.benchmarks.List(sector, industry, region)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if benchmarks == nil {
		benchmarks = []analytics.BenchmarkSnapshot{}
	}
	h.writeJSON(w, http.StatusOK, benchmarks)
}

// HandleRunCorrelation recomputes the impact/financial correlation matrix
func (h *Handler) HandleRunCorrelation(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.correlations.Calculate()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, analysis)
}

// HandleLatestCorrelation returns the most recent correlation analysis
func (h *Handler) HandleLatestCorrelation(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.correlations.Latest()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, analysis)
}

// HandleRunSimulation runs a Monte Carlo projection of the portfolio
func (h *Handler) HandleRunSimulation(w http.ResponseWriter, r *http.Request) {
	var req analytics.SimulationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.simulations.Run(req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleListSimulations lists recent simulation results
func (h *Handler) HandleListSimulations(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.queryLimit(w, r)
	if !ok {
		return
	}

	results, err := h.simulations.List(limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if results == nil {
		results = []analytics.SimulationResult{}
	}
	h.writeJSON(w, http.StatusOK, results)
}

// HandleGetSimulation returns one stored simulation result
func (h *Handler) HandleGetSimulation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.simulationID(w, r)
	if !ok {
		return
	}

	result, err := h.simulations.Get(id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// HandleSimulationDistribution re-queries a cached outcome distribution
func (h *Handler) HandleSimulationDistribution(w http.ResponseWriter, r *http.Request) {
	id, ok := h.simulationID(w, r)
	if !ok {
		return
	}

	series := r.URL.Query().Get("series")
	if series == "" {
		series = analytics.SeriesROI
	}

	raw := r.URL.Query().Get("percentile")
	if raw == "" {
		h.writeError(w, http.StatusBadRequest, "percentile query parameter is required")
		return
	}
	percentile, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid percentile")
		return
	}

	query, err := h.simulations.DistributionPercentile(id, series, percentile)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, query)
}

// HandleRunOptimization produces rebalancing suggestions for the portfolio
func (h *Handler) HandleRunOptimization(w http.ResponseWriter, r *http.Request) {
	var req analytics.OptimizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	analysis, err := h.optimizer.Analyze(req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, analysis)
}

// HandleListOptimizations lists recent optimization analyses
func (h *Handler) HandleListOptimizations(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.queryLimit(w, r)
	if !ok {
		return
	}

	analyses, err := h.optimizer.List(limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if analyses == nil {
		analyses = []analytics.OptimizationAnalysis{}
	}
	h.writeJSON(w, http.StatusOK, analyses)
}

// HandleCalculateAttribution attributes portfolio impact to one holding
func (h *Handler) HandleCalculateAttribution(w http.ResponseWriter, r *http.Request) {
	var req analytics.AttributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	attribution, err := h.attributions.Calculate(req)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, attribution)
}

// HandleListAttributions lists stored attributions, optionally per holding
func (h *Handler) HandleListAttributions(w http.ResponseWriter, r *http.Request) {
	var investmentID int64
	if raw := r.URL.Query().Get("investment_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			h.writeError(w, http.StatusBadRequest, "invalid investment id")
			return
		}
		investmentID = id
	}

	attributions, err := h.attributions.List(investmentID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if attributions == nil {
		attributions = []analytics.Attribution{}
	}
	h.writeJSON(w, http.StatusOK, attributions)
}

// Helper methods

func (h *Handler) simulationID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "simulationID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid simulation id")
		return 0, false
	}
	return id, true
}

func (h *Handler) queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid limit")
		return 0, false
	}
	return limit, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps the domain error taxonomy onto HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var notFound domain.NotFoundError
	var validation domain.ValidationError
	var insufficient domain.InsufficientDataError

	switch {
	case errors.As(err, &notFound):
		h.writeError(w, http.StatusNotFound, notFound.Error())
	case errors.As(err, &validation):
		h.writeError(w, http.StatusBadRequest, validation.Error())
	case errors.As(err, &insufficient):
		h.writeError(w, http.StatusUnprocessableEntity, insufficient.Error())
	default:
		h.log.Error().Err(err).Msg("Analytics request failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
}
