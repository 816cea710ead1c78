package analytics

import (
	"fmt"
	"math"
	"time"

	"github.com/verdantfund/verdant/internal/domain"
	"github.com/verdantfund/verdant/internal/modules/portfolio"
)

// HoldingSource provides holdings from the portfolio store.
// Implemented by portfolio.InvestmentRepository.
type HoldingSource interface {
	List(filter portfolio.InvestmentFilter) ([]portfolio.Investment, error)
	GetByID(id int64) (*portfolio.Investment, error)
	DistinctSectors() ([]string, error)
}

// AssessmentSource provides the latest assessment of each type per holding.
// Implemented by portfolio.AssessmentRepository.
type AssessmentSource interface {
	LatestESG(investmentID int64) (*portfolio.ESGScore, error)
	LatestClimateRisk(investmentID int64) (*portfolio.ClimateRisk, error)
	LatestSocialImpact(investmentID int64) (*portfolio.SocialImpact, error)
	LatestEmissions(investmentID int64) (*portfolio.GHGEmissions, error)
}

// HoldingMetrics is one holding joined with its latest assessment per type.
// Nil assessment pointers mean the holding has never been assessed for
// that type; derived accessors report absence rather than defaulting.
type HoldingMetrics struct {
	Investment portfolio.Investment
	ESG        *portfolio.ESGScore
	Climate    *portfolio.ClimateRisk
	Impact     *portfolio.SocialImpact
	Emissions  *portfolio.GHGEmissions
}

// MetricExtractor assembles HoldingMetrics rows from the portfolio store.
// Every analysis loads its snapshot through the extractor once, up front.
type MetricExtractor struct {
	holdings    HoldingSource
	assessments AssessmentSource
}

// NewMetricExtractor creates a new metric extractor
func NewMetricExtractor(holdings HoldingSource, assessments AssessmentSource) *MetricExtractor {
	return &MetricExtractor{holdings: holdings, assessments: assessments}
}

// Holdings loads holdings matching the filter with their latest assessments
func (e *MetricExtractor) Holdings(filter portfolio.InvestmentFilter) ([]HoldingMetrics, error) {
	investments, err := e.holdings.List(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to load holdings: %w", err)
	}

	rows := make([]HoldingMetrics, 0, len(investments))
	for _, inv := range investments {
		row, err := e.assemble(inv)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ActiveHoldings loads the active portfolio with latest assessments
func (e *MetricExtractor) ActiveHoldings() ([]HoldingMetrics, error) {
	return e.Holdings(portfolio.InvestmentFilter{Status: portfolio.StatusActive})
}

// HoldingByID loads a single holding with its latest assessments
func (e *MetricExtractor) HoldingByID(id int64) (*HoldingMetrics, error) {
	inv, err := e.holdings.GetByID(id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.NewNotFound("investment", id)
	}
	row, err := e.assemble(*inv)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Sectors returns the distinct sectors present across holdings
func (e *MetricExtractor) Sectors() ([]string, error) {
	return e.holdings.DistinctSectors()
}

func (e *MetricExtractor) assemble(inv portfolio.Investment) (HoldingMetrics, error) {
	row := HoldingMetrics{Investment: inv}
	var err error

	if row.ESG, err = e.assessments.LatestESG(inv.ID); err != nil {
		return row, fmt.Errorf("failed to load esg for investment %d: %w", inv.ID, err)
	}
	if row.Climate, err = e.assessments.LatestClimateRisk(inv.ID); err != nil {
		return row, fmt.Errorf("failed to load climate risk for investment %d: %w", inv.ID, err)
	}
	if row.Impact, err = e.assessments.LatestSocialImpact(inv.ID); err != nil {
		return row, fmt.Errorf("failed to load social impact for investment %d: %w", inv.ID, err)
	}
	if row.Emissions, err = e.assessments.LatestEmissions(inv.ID); err != nil {
		return row, fmt.Errorf("failed to load emissions for investment %d: %w", inv.ID, err)
	}
	return row, nil
}

// ESGScore returns the latest overall ESG score, false when never assessed
// or the assessment carries no overall score.
func (m HoldingMetrics) ESGScore() (float64, bool) {
	if m.ESG == nil || m.ESG.OverallESGScore == nil {
		return 0, false
	}
	return *m.ESG.OverallESGScore, true
}

// MaxClimateRisk returns max(physical, transition) with missing sub-scores
// read as 0, false when the holding has no climate assessment at all.
func (m HoldingMetrics) MaxClimateRisk() (float64, bool) {
	if m.Climate == nil {
		return 0, false
	}
	return m.Climate.MaxRisk(), true
}

// ImpactScore returns the latest overall impact score, false when absent.
func (m HoldingMetrics) ImpactScore() (float64, bool) {
	if m.Impact == nil || m.Impact.OverallImpactScore == nil {
		return 0, false
	}
	return *m.Impact.OverallImpactScore, true
}

// ROI is the simple return on investment, false when not computable.
func (m HoldingMetrics) ROI() (float64, bool) {
	return m.Investment.SimpleROI()
}

// Defaults used where an analysis needs a value for every holding.
const (
	defaultESGScore    = 50.0
	defaultImpactScore = 5.0
	defaultMaxRisk     = 5.0
	defaultAnnualROI   = 8.0
)

// ESGOrDefault returns the latest ESG score or a neutral 50.
func (m HoldingMetrics) ESGOrDefault() float64 {
	if v, ok := m.ESGScore(); ok {
		return v
	}
	return defaultESGScore
}

// ImpactOrDefault returns the latest impact score or a neutral 5.
func (m HoldingMetrics) ImpactOrDefault() float64 {
	if v, ok := m.ImpactScore(); ok {
		return v
	}
	return defaultImpactScore
}

// MaxRiskOrDefault returns the latest max climate risk, or a mid-scale 5
// for holdings that were never risk-assessed.
func (m HoldingMetrics) MaxRiskOrDefault() float64 {
	if v, ok := m.MaxClimateRisk(); ok {
		return v
	}
	return defaultMaxRisk
}

// AnnualReturnEstimate estimates the holding's annualized return in percent
// for projection purposes: CAGR from invested amount to current value over
// the holding period, 0 for same-day (or future-dated) holdings, and an
// 8% planning assumption when date, amount, or current value is missing.
func (m HoldingMetrics) AnnualReturnEstimate(now time.Time) float64 {
	inv := m.Investment
	if inv.InvestmentDate == "" ||
		inv.InvestmentAmount == nil || *inv.InvestmentAmount == 0 ||
		inv.CurrentValue == nil || *inv.CurrentValue == 0 {
		return defaultAnnualROI
	}

	invested, err := time.Parse("2006-01-02", inv.InvestmentDate)
	if err != nil {
		return defaultAnnualROI
	}

	days := int(now.Sub(invested).Hours() / 24)
	yearsHeld := float64(days) / 365.25
	if yearsHeld <= 0 {
		return 0
	}
	return (math.Pow(*inv.CurrentValue / *inv.InvestmentAmount, 1/yearsHeld) - 1) * 100
}

// Metric identifies one extractable peer-group quantity.
type Metric string

const (
	MetricESGScore           Metric = "esg_score"
	MetricPhysicalRisk       Metric = "physical_risk"
	MetricTransitionRisk     Metric = "transition_risk"
	MetricClimateOpportunity Metric = "climate_opportunity"
	MetricROI                Metric = "roi"
	MetricInvestmentSize     Metric = "investment_size"
	MetricImpactScore        Metric = "impact_score"
	MetricBeneficiaries      Metric = "beneficiaries"
	MetricEmissionsIntensity Metric = "emissions_intensity"
)

// Vector builds the observation vector for one metric across holdings.
// Holdings without an observation are skipped, never defaulted, and zero
// values read as missing. Vectors for different metrics over the same
// holdings may therefore have different lengths.
func Vector(rows []HoldingMetrics, metric Metric) []float64 {
	var values []float64
	for _, row := range rows {
		switch metric {
		case MetricESGScore:
			if v, ok := row.ESGScore(); ok && v != 0 {
				values = append(values, v)
			}
		case MetricPhysicalRisk:
			if row.Climate != nil && row.Climate.PhysicalRiskScore != nil && *row.Climate.PhysicalRiskScore != 0 {
				values = append(values, *row.Climate.PhysicalRiskScore)
			}
		case MetricTransitionRisk:
			if row.Climate != nil && row.Climate.TransitionRiskScore != nil && *row.Climate.TransitionRiskScore != 0 {
				values = append(values, *row.Climate.TransitionRiskScore)
			}
		case MetricClimateOpportunity:
			if row.Climate != nil && row.Climate.ClimateOpportunityScore != nil && *row.Climate.ClimateOpportunityScore != 0 {
				values = append(values, *row.Climate.ClimateOpportunityScore)
			}
		case MetricROI:
			// A computed 0% return is a real observation and stays in.
			if v, ok := row.ROI(); ok {
				values = append(values, v)
			}
		case MetricInvestmentSize:
			if row.Investment.InvestmentAmount != nil && *row.Investment.InvestmentAmount != 0 {
				values = append(values, *row.Investment.InvestmentAmount)
			}
		case MetricImpactScore:
			if v, ok := row.ImpactScore(); ok && v != 0 {
				values = append(values, v)
			}
		case MetricBeneficiaries:
			if row.Impact != nil && row.Impact.BeneficiariesReached != nil && *row.Impact.BeneficiariesReached != 0 {
				values = append(values, *row.Impact.BeneficiariesReached)
			}
		case MetricEmissionsIntensity:
			if row.Emissions != nil && row.Emissions.EmissionsIntensityRevenue != nil && *row.Emissions.EmissionsIntensityRevenue != 0 {
				values = append(values, *row.Emissions.EmissionsIntensityRevenue)
			}
		}
	}
	return values
}
