// Package handlers provides HTTP handlers for holdings and their assessments.
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
	"github.com/verdantfund/verdant/internal/modules/portfolio"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	service    *portfolio.PortfolioService
	benchmarks *analytics.BenchmarkService
	log        zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(service *portfolio.PortfolioService, benchmarks *analytics.BenchmarkService, log zerolog.Logger) *Handler {
	return &Handler{
		service:    service,
		benchmarks: benchmarks,
		log:        log.With().Str("handler", "portfolio").Logger(),
	}
}

// HandleCreateInvestment creates a new holding
func (h *Handler) HandleCreateInvestment(w http.ResponseWriter, r *http.Request) {
	var inv portfolio.Investment
	if err := json.NewDecoder(r.Body).Decode(&inv); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.service.CreateInvestment(inv)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

// HandleListInvestments lists holdings, optionally filtered
func (h *Handler) HandleListInvestments(w http.ResponseWriter, r *http.Request) {
	filter := portfolio.InvestmentFilter{
		Status:   r.URL.Query().Get("status"),
		Sector:   r.URL.Query().Get("sector"),
		Industry: r.URL.Query().Get("industry"),
		Region:   r.URL.Query().Get("region"),
	}

	investments, err := h.service.ListInvestments(filter)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if investments == nil {
		investments = []portfolio.Investment{}
	}
	h.writeJSON(w, http.StatusOK, investments)
}

// HandleGetInvestment returns one holding
func (h *Handler) HandleGetInvestment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.investmentID(w, r)
	if !ok {
		return
	}

	inv, err := h.service.GetInvestment(id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, inv)
}

// HandleUpdateInvestment replaces the stored fields of a holding
func (h *Handler) HandleUpdateInvestment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.investmentID(w, r)
	if !ok {
		return
	}

	var inv portfolio.Investment
	if err := json.NewDecoder(r.Body).Decode(&inv); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.service.UpdateInvestment(id, inv)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

// HandleDivestInvestment soft-deletes a holding
func (h *Handler) HandleDivestInvestment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.investmentID(w, r)
	if !ok {
		return
	}

	if err := h.service.DivestInvestment(id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":     id,
		"status": portfolio.StatusDivested,
	})
}

// HandleAddESGScore appends an ESG assessment
func (h *Handler) HandleAddESGScore(w http.ResponseWriter, r *http.Request) {
	id, ok := h.investmentID(w, r)
	if !ok {
		return
	}

	var score portfolio.ESGScore
	if err := json.NewDecoder(r.Body).Decode(&score); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.service.AddESGScore(id, score)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

// HandleAddClimateRisk appends a climate-risk assessment
func (h *Handler) HandleAddClimateRisk(w http.ResponseWriter, r *http.Request) {
	id, ok := h.investmentID(w, r)
	if !ok {
		return
	}

	var risk portfolio.ClimateRisk
	if err := json.NewDecoder(r.Body).Decode(&risk); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.service.AddClimateRisk(id, risk)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

// HandleAddSocialImpact appends a social-impact assessment
func (h *Handler) HandleAddSocialImpact(w http.ResponseWriter, r *http.Request) {
	id, ok := h.investmentID(w, r)
	if !ok {
		return
	}

	var impact portfolio.SocialImpact
	if err := json.NewDecoder(r.Body).Decode(&impact); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.service.AddSocialImpact(id, impact)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

// HandleAddEmissions appends a GHG emissions report
func (h *Handler) HandleAddEmissions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.investmentID(w, r)
	if !ok {
		return
	}

	var em portfolio.GHGEmissions
	if err := json.NewDecoder(r.Body).Decode(&em); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.service.AddEmissions(id, em)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

// HandleGetMetrics returns the latest assessment of each type for a holding
func (h *Handler) HandleGetMetrics(w http.ResponseWriter, r *http.Request) {
	id, ok := h.investmentID(w, r)
	if !ok {
		return
	}

	metrics, err := h.service.GetMetrics(id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, metrics)
}

// HandleBenchmarkComparison compares a holding against its peer group
func (h *Handler) HandleBenchmarkComparison(w http.ResponseWriter, r *http.Request) {
	id, ok := h.investmentID(w, r)
	if !ok {
		return
	}

	comparison, err := h.benchmarks.Compare(id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, comparison)
}

// Helper methods

func (h *Handler) investmentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "investmentID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid investment id")
		return 0, false
	}
	return id, true
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
		h.log.Error().Err(err).Msg("Portfolio request failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
}
