package analytics

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/verdantfund/verdant/internal/domain"
)

// AttributionService apportions portfolio-level impact back to single
// holdings, proportional to each holding's value.
type AttributionService struct {
	metrics *MetricExtractor
	repo    *AnalyticsRepository
	log     zerolog.Logger
}

// NewAttributionService creates a new attribution service
func NewAttributionService(metrics *MetricExtractor, repo *AnalyticsRepository, log zerolog.Logger) *AttributionService {
	return &AttributionService{
		metrics: metrics,
		repo:    repo,
		log:     log.With().Str("service", "attribution").Logger(),
	}
}

// Calculate attributes one holding's share of portfolio impact, ESG and
// climate scores as of a date (today when omitted), then upserts the row
// for (investment, date).
//
// Portfolio denominators count active holdings at current value only; a
// holding with no current value contributes nothing to them. The target's
// own weighted scores fall back to invested amount when unvalued.
func (s *AttributionService) Calculate(req AttributionRequest) (*Attribution, error) {
	if req.InvestmentID <= 0 {
		return nil, domain.NewValidation("investment_id", "is required")
	}
	attributionDate := req.AttributionDate
	if attributionDate == "" {
		attributionDate = time.Now().UTC().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", attributionDate); err != nil {
		return nil, domain.NewValidation("attribution_date",
			fmt.Sprintf("%q is not a valid date (expected YYYY-MM-DD)", attributionDate))
	}

	holding, err := s.metrics.HoldingByID(req.InvestmentID)
	if err != nil {
		return nil, err
	}
	inv := holding.Investment

	actives, err := s.metrics.ActiveHoldings()
	if err != nil {
		return nil, err
	}

	var totalImpact, totalESG, totalClimate float64
	for _, row := range actives {
		value := 0.0
		if row.Investment.CurrentValue != nil {
			value = *row.Investment.CurrentValue
		}
		if v, ok := row.ImpactScore(); ok && v != 0 {
			totalImpact += v * value
		}
		if v, ok := row.ESGScore(); ok && v != 0 {
			totalESG += v * value
		}
		if row.Climate != nil {
			totalClimate += (10 - row.Climate.MaxRisk()) * value
		}
	}

	currentValue := 0.0
	if inv.CurrentValue != nil {
		currentValue = *inv.CurrentValue
	}

	// Contributions are scaled to millions of portfolio currency.
	contributions := map[string]float64{}
	if holding.Impact != nil {
		for key, score := range holding.Impact.SDGAlignment {
			contributions[key] = score * currentValue / 1e6
		}
	}
	primary, secondary := rankSDGs(contributions, s.log)

	investmentValue := inv.Value()

	impactScore := 0.0
	if v, ok := holding.ImpactScore(); ok {
		impactScore = v
	}
	weightedImpact := impactScore * investmentValue

	esgScore := 0.0
	if v, ok := holding.ESGScore(); ok {
		esgScore = v
	}
	weightedESG := esgScore * investmentValue

	climateScore := 5.0
	if holding.Climate != nil {
		climateScore = 10 - holding.Climate.MaxRisk()
	}
	weightedClimate := climateScore * investmentValue

	impactPct := 0.0
	if totalImpact > 0 {
		impactPct = weightedImpact / totalImpact * 100
	}
	esgPct := 0.0
	if totalESG > 0 {
		esgPct = weightedESG / totalESG * 100
	}
	climatePct := 0.0
	if totalClimate > 0 {
		climatePct = weightedClimate / totalClimate * 100
	}

	var beneficiaries, jobs float64
	if holding.Impact != nil {
		if holding.Impact.BeneficiariesReached != nil {
			beneficiaries = *holding.Impact.BeneficiariesReached
		}
		if holding.Impact.JobsCreated != nil {
			jobs = *holding.Impact.JobsCreated
		}
	}

	// Confidence reflects assessment coverage, not statistical testing.
	confidence := 60.0
	if holding.Impact != nil && holding.ESG != nil && holding.Climate != nil {
		confidence = 85.0
	}

	attribution := &Attribution{
		InvestmentID:                 req.InvestmentID,
		AttributionDate:              attributionDate,
		SDGContributions:             contributions,
		PrimarySDGContribution:       primary,
		SecondarySDGContributions:    secondary,
		TotalImpactScore:             weightedImpact,
		BeneficiariesAttributed:      beneficiaries,
		JobsAttributed:               jobs,
		EmissionsReductionAttributed: 0,
		PortfolioImpactPercentage:    impactPct,
		PortfolioESGContribution:     esgPct,
		PortfolioClimateContribution: climatePct,
		AttributionMethod:            "proportional",
		ConfidenceLevel:              confidence,
	}
	if err := s.repo.UpsertAttribution(attribution); err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("investment_id", req.InvestmentID).
		Str("date", attributionDate).
		Float64("portfolio_impact_pct", impactPct).
		Msg("Attribution calculated")
	return attribution, nil
}

// List returns attributions, newest first. investmentID 0 lists all.
func (s *AttributionService) List(investmentID int64) ([]Attribution, error) {
	return s.repo.ListAttributions(investmentID)
}

// rankSDGs orders contributions by value, largest first, and returns the
// primary SDG plus up to three positive runners-up. Ties rank the lower
// SDG number first, keeping the result stable across runs. Keys that are
// not SDG numbers are skipped.
func rankSDGs(contributions map[string]float64, log zerolog.Logger) (*int, []int) {
	type ranked struct {
		num   int
		value float64
	}
	var items []ranked
	for key, value := range contributions {
		num, err := strconv.Atoi(key)
		if err != nil {
			log.Warn().Str("sdg", key).Msg("Skipping non-numeric SDG key")
			continue
		}
		items = append(items, ranked{num: num, value: value})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].value != items[j].value {
			return items[i].value > items[j].value
		}
		return items[i].num < items[j].num
	})

	var primary *int
	if len(items) > 0 {
		n := items[0].num
		primary = &n
	}
	secondary := []int{}
	for i := 1; i < len(items) && i < 4; i++ {
		if items[i].value > 0 {
			secondary = append(secondary, items[i].num)
		}
	}
	return primary, secondary
}
