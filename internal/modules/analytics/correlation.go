package analytics

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/verdantfund/verdant/internal/domain"
)

// CorrelationService measures how sustainability metrics move with returns
// across the active portfolio.
type CorrelationService struct {
	metrics *MetricExtractor
	repo    *AnalyticsRepository
	log     zerolog.Logger
}

// NewCorrelationService creates a new correlation service
func NewCorrelationService(metrics *MetricExtractor, repo *AnalyticsRepository, log zerolog.Logger) *CorrelationService {
	return &CorrelationService{
		metrics: metrics,
		repo:    repo,
		log:     log.With().Str("service", "correlation").Logger(),
	}
}

// Calculate runs a correlation analysis over active holdings and persists it.
//
// Only complete cases participate: a holding contributes a data point when
// its ESG score, climate assessment and impact score are all present. A
// present zero still counts. ROI defaults to 0 when not computable, so an
// unvalued holding still pairs its sustainability metrics.
func (s *CorrelationService) Calculate() (*CorrelationAnalysis, error) {
	rows, err := s.metrics.ActiveHoldings()
	if err != nil {
		return nil, err
	}
	if len(rows) < 3 {
		return nil, domain.NewInsufficientData("need at least 3 investments for correlation analysis")
	}

	var esgValues, riskValues, impactValues, roiValues []float64
	for _, row := range rows {
		esg, hasESG := row.ESGScore()
		risk, hasRisk := row.MaxClimateRisk()
		impact, hasImpact := row.ImpactScore()
		if !hasESG || !hasRisk || !hasImpact {
			continue
		}
		roi, _ := row.ROI()

		esgValues = append(esgValues, esg)
		riskValues = append(riskValues, risk)
		impactValues = append(impactValues, impact)
		roiValues = append(roiValues, roi)
	}
	if len(esgValues) < 3 {
		return nil, domain.NewInsufficientData("insufficient data for correlation analysis")
	}

	esgROI := pearson(esgValues, roiValues)
	climateROI := pearson(riskValues, roiValues)
	impactROI := pearson(impactValues, roiValues)
	esgClimate := pearson(esgValues, riskValues)

	matrix := map[string]*float64{
		"esg_roi":             esgROI,
		"climate_risk_roi":    climateROI,
		"impact_roi":          impactROI,
		"esg_climate_risk":    esgClimate,
		"esg_impact":          pearson(esgValues, impactValues),
		"climate_risk_impact": pearson(riskValues, impactValues),
	}

	insights := []string{}
	if nonZero(esgROI) && *esgROI > 0.3 {
		insights = append(insights,
			fmt.Sprintf("Strong positive correlation between ESG scores and ROI (%.2f)", *esgROI))
	} else if nonZero(esgROI) && *esgROI < -0.3 {
		insights = append(insights,
			fmt.Sprintf("Negative correlation between ESG scores and ROI (%.2f) - requires investigation", *esgROI))
	}
	if nonZero(impactROI) && *impactROI > 0.2 {
		insights = append(insights,
			fmt.Sprintf("Positive correlation between impact scores and ROI (%.2f)", *impactROI))
	}
	if nonZero(climateROI) && *climateROI < -0.2 {
		insights = append(insights,
			fmt.Sprintf("Negative correlation between climate risk and ROI (%.2f) - lower risk associated with higher returns", *climateROI))
	}

	analysis := &CorrelationAnalysis{
		AnalysisDate:              time.Now().UTC().Format("2006-01-02"),
		CorrelationMatrix:         matrix,
		ESGROICorrelation:         esgROI,
		ClimateRiskROICorrelation: climateROI,
		ImpactROICorrelation:      impactROI,
		ESGClimateCorrelation:     esgClimate,
		PValues:                   map[string]float64{},
		SampleSize:                len(esgValues),
		KeyInsights:               insights,
		Recommendations: "Consider portfolio adjustments based on correlation insights. " +
			"Focus on investments that demonstrate positive correlations between impact and financial performance.",
	}
	if err := s.repo.InsertCorrelation(analysis); err != nil {
		return nil, err
	}

	s.log.Info().
		Int("sample_size", analysis.SampleSize).
		Int("insights", len(insights)).
		Msg("Correlation analysis completed")
	return analysis, nil
}

// Latest returns the most recent stored analysis
func (s *CorrelationService) Latest() (*CorrelationAnalysis, error) {
	analysis, err := s.repo.LatestCorrelation()
	if err != nil {
		return nil, err
	}
	if analysis == nil {
		return nil, domain.NewNotFound("correlation analysis", nil)
	}
	return analysis, nil
}

// pearson wraps Correlation into the nullable shape the analysis stores:
// nil marks an undefined coefficient, never coerced to 0.
func pearson(x, y []float64) *float64 {
	r, ok := Correlation(x, y)
	if !ok {
		return nil
	}
	return &r
}
