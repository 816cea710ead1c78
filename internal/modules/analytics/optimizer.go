package analytics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/verdantfund/verdant/internal/domain"
)

const defaultOptimizationMethod = "impact_weighted"

// OptimizerRules are the thresholds and nudges of the rebalancing pass.
// Band factors and nudges are dimensionless; LowRiskCutoff sits on the
// 0-10 risk scale and WeightStep is a portfolio weight.
type OptimizerRules struct {
	WeightStep      float64
	ReduceBand      float64
	IncreaseBand    float64
	LowRiskCutoff   float64
	ImpactNudge     float64
	ESGNudge        float64
	RiskNudge       float64
	ROINudge        float64
	MaxPositionSize float64
	MinPositionSize float64
}

// DefaultOptimizerRules returns the stock rule set
func DefaultOptimizerRules() OptimizerRules {
	return OptimizerRules{
		WeightStep:      0.05,
		ReduceBand:      0.8,
		IncreaseBand:    1.2,
		LowRiskCutoff:   3.0,
		ImpactNudge:     1.05,
		ESGNudge:        1.03,
		RiskNudge:       0.95,
		ROINudge:        1.02,
		MaxPositionSize: 0.25,
		MinPositionSize: 0.01,
	}
}

// OptimizationService runs the heuristic rebalancing pass: one sweep of
// threshold rules over active holdings, not a solver.
type OptimizationService struct {
	metrics *MetricExtractor
	repo    *AnalyticsRepository
	rules   OptimizerRules
	log     zerolog.Logger
}

// NewOptimizationService creates a new optimization service
func NewOptimizationService(metrics *MetricExtractor, repo *AnalyticsRepository, rules OptimizerRules, log zerolog.Logger) *OptimizationService {
	return &OptimizationService{
		metrics: metrics,
		repo:    repo,
		rules:   rules,
		log:     log.With().Str("service", "optimization").Logger(),
	}
}

// Analyze sweeps active holdings against the caller's targets and persists
// the suggestions. An absent or zero target disables the rules tied to it;
// the low-risk increase rule is always on. When a holding trips both
// directions, reduction wins.
func (s *OptimizationService) Analyze(req OptimizationRequest) (*OptimizationAnalysis, error) {
	rows, err := s.metrics.ActiveHoldings()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.NewInsufficientData("no active investments in portfolio")
	}

	method := req.OptimizationMethod
	if method == "" {
		method = defaultOptimizationMethod
	}
	createdBy := req.CreatedBy
	if createdBy == "" {
		createdBy = defaultCreatedBy
	}

	var total float64
	for _, row := range rows {
		total += row.Investment.Value()
	}

	var currentImpact, currentESG, currentRisk, currentROI float64
	rebalancing := map[string]float64{}
	// Additions would need candidates from outside the portfolio; none are
	// sourced, so the list stays empty.
	additions := []int64{}
	reductions := []int64{}

	for _, row := range rows {
		weight := 0.0
		if total > 0 {
			weight = row.Investment.Value() / total
		}
		impact := row.ImpactOrDefault()
		esg := row.ESGOrDefault()
		risk := row.MaxRiskOrDefault()
		roi, _ := row.ROI()

		currentImpact += impact * weight
		currentESG += esg * weight
		currentRisk += risk * weight
		currentROI += roi * weight

		reduce := (nonZero(req.MaxClimateRisk) && risk > *req.MaxClimateRisk) ||
			(nonZero(req.TargetImpactScore) && impact < *req.TargetImpactScore*s.rules.ReduceBand) ||
			(nonZero(req.TargetESGScore) && esg < *req.TargetESGScore*s.rules.ReduceBand) ||
			(nonZero(req.MinROIThreshold) && roi < *req.MinROIThreshold)

		increase := (nonZero(req.TargetImpactScore) && impact > *req.TargetImpactScore*s.rules.IncreaseBand) ||
			(nonZero(req.TargetESGScore) && esg > *req.TargetESGScore*s.rules.IncreaseBand) ||
			risk < s.rules.LowRiskCutoff

		id := row.Investment.ID
		switch {
		case reduce:
			rebalancing[strconv.FormatInt(id, 10)] = -s.rules.WeightStep
			reductions = append(reductions, id)
		case increase:
			rebalancing[strconv.FormatInt(id, 10)] = s.rules.WeightStep
		}
	}

	optimizedImpact := currentImpact
	if nonZero(req.TargetImpactScore) {
		optimizedImpact = currentImpact * s.rules.ImpactNudge
	}
	optimizedESG := currentESG
	if nonZero(req.TargetESGScore) {
		optimizedESG = currentESG * s.rules.ESGNudge
	}
	optimizedRisk := currentRisk
	if nonZero(req.MaxClimateRisk) {
		optimizedRisk = currentRisk * s.rules.RiskNudge
	}
	optimizedROI := currentROI * s.rules.ROINudge

	analysis := &OptimizationAnalysis{
		AnalysisDate:         time.Now().UTC().Format("2006-01-02"),
		TargetImpactScore:    req.TargetImpactScore,
		TargetESGScore:       req.TargetESGScore,
		MaxClimateRisk:       req.MaxClimateRisk,
		MinROIThreshold:      req.MinROIThreshold,
		CurrentImpactScore:   currentImpact,
		CurrentESGScore:      currentESG,
		CurrentClimateRisk:   currentRisk,
		CurrentROI:           currentROI,
		SuggestedRebalancing: rebalancing,
		SuggestedAdditions:   additions,
		SuggestedReductions:  reductions,
		OptimizedImpactScore: optimizedImpact,
		OptimizedESGScore:    optimizedESG,
		OptimizedClimateRisk: optimizedRisk,
		OptimizedROI:         optimizedROI,
		OptimizationMethod:   method,
		Constraints: OptimizerConstraints{
			MaxPositionSize:       s.rules.MaxPositionSize,
			MinPositionSize:       s.rules.MinPositionSize,
			SectorDiversification: true,
		},
		AnalysisNotes: fmt.Sprintf("Optimization analysis completed using %s method", method),
		CreatedBy:     createdBy,
	}
	if err := s.repo.InsertOptimization(analysis); err != nil {
		return nil, err
	}

	s.log.Info().
		Int("holdings", len(rows)).
		Int("flagged", len(rebalancing)).
		Str("method", method).
		Msg("Optimization analysis completed")
	return analysis, nil
}

// List returns recent analyses, newest first. limit <= 0 takes the default.
func (s *OptimizationService) List(limit int) ([]OptimizationAnalysis, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.repo.ListOptimizations(limit)
}
