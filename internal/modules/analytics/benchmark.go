package analytics

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/verdantfund/verdant/internal/domain"
	"github.com/verdantfund/verdant/internal/modules/portfolio"
)

// BenchmarkService computes peer-group snapshots and positions single
// holdings against them.
type BenchmarkService struct {
	metrics *MetricExtractor
	repo    *AnalyticsRepository
	log     zerolog.Logger
}

// NewBenchmarkService creates a new benchmark service
func NewBenchmarkService(metrics *MetricExtractor, repo *AnalyticsRepository, log zerolog.Logger) *BenchmarkService {
	return &BenchmarkService{
		metrics: metrics,
		repo:    repo,
		log:     log.With().Str("service", "benchmark").Logger(),
	}
}

// Calculate recomputes the snapshot for one peer group and stores it,
// replacing any snapshot already stored for that group today. Empty
// filters widen the group; no filters at all benchmarks every holding
// under the "All" sector label.
//
// Holdings of every status participate. A holding missing a given
// assessment simply contributes nothing to that vector, so sample_size
// counts matched holdings, not observations.
func (s *BenchmarkService) Calculate(sector, industry, region string) (*BenchmarkSnapshot, error) {
	rows, err := s.metrics.Holdings(portfolio.InvestmentFilter{
		Sector:   sector,
		Industry: industry,
		Region:   region,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.NewInsufficientData("no investments found for benchmark criteria")
	}

	esgScores := Vector(rows, MetricESGScore)
	rois := Vector(rows, MetricROI)
	emissions := Vector(rows, MetricEmissionsIntensity)

	label := sector
	if label == "" {
		label = "All"
	}

	snapshot := BenchmarkSnapshot{
		Sector:                   label,
		Industry:                 industry,
		Region:                   region,
		BenchmarkDate:            time.Now().UTC().Format("2006-01-02"),
		AvgESGScore:              meanOf(esgScores),
		MedianESGScore:           medianOf(esgScores),
		AvgPhysicalRisk:          meanOf(Vector(rows, MetricPhysicalRisk)),
		AvgTransitionRisk:        meanOf(Vector(rows, MetricTransitionRisk)),
		AvgClimateOpportunity:    meanOf(Vector(rows, MetricClimateOpportunity)),
		AvgROI:                   meanOf(rois),
		MedianROI:                medianOf(rois),
		AvgInvestmentSize:        meanOf(Vector(rows, MetricInvestmentSize)),
		AvgImpactScore:           meanOf(Vector(rows, MetricImpactScore)),
		AvgBeneficiaries:         meanOf(Vector(rows, MetricBeneficiaries)),
		AvgEmissionsIntensity:    meanOf(emissions),
		MedianEmissionsIntensity: medianOf(emissions),
		SampleSize:               len(rows),
		DataSource:               "internal",
	}
	if len(esgScores) > 0 {
		quartiles := Percentiles(esgScores, []int{25, 75})
		p25, p75 := quartiles[25], quartiles[75]
		snapshot.Percentile25ESG = &p25
		snapshot.Percentile75ESG = &p75
	}

	stored, err := s.repo.UpsertBenchmark(snapshot)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("sector", stored.Sector).
		Str("industry", stored.Industry).
		Str("region", stored.Region).
		Int("sample_size", stored.SampleSize).
		Msg("Benchmark recalculated")
	return stored, nil
}

// List returns stored snapshots matching the filters, newest first
func (s *BenchmarkService) List(sector, industry, region string) ([]BenchmarkSnapshot, error) {
	return s.repo.ListBenchmarks(sector, industry, region)
}

// Compare positions one holding against its own peer group. The group
// snapshot is recomputed first, so the comparison never reads stale peers.
func (s *BenchmarkService) Compare(investmentID int64) (*BenchmarkComparison, error) {
	holding, err := s.metrics.HoldingByID(investmentID)
	if err != nil {
		return nil, err
	}
	inv := holding.Investment

	// The holding itself always matches its own filters, so this cannot
	// come back empty.
	benchmark, err := s.Calculate(inv.Sector, inv.Industry, inv.Region)
	if err != nil {
		return nil, err
	}

	comparison := &BenchmarkComparison{
		InvestmentID:    inv.ID,
		InvestmentName:  inv.Name,
		Sector:          inv.Sector,
		Industry:        inv.Industry,
		Region:          inv.Region,
		Benchmark:       *benchmark,
		Strengths:       []string{},
		Weaknesses:      []string{},
		Recommendations: []string{},
	}
	if holding.ESG != nil {
		comparison.InvestmentESGScore = holding.ESG.OverallESGScore
	}
	if holding.Climate != nil {
		comparison.InvestmentPhysicalRisk = holding.Climate.PhysicalRiskScore
		comparison.InvestmentTransitionRisk = holding.Climate.TransitionRiskScore
	}
	if holding.Impact != nil {
		comparison.InvestmentImpactScore = holding.Impact.OverallImpactScore
	}
	if roi, ok := inv.SimpleROI(); ok {
		comparison.InvestmentROI = &roi
	}

	comparison.ESGPercentile = calcPercentile(
		comparison.InvestmentESGScore,
		benchmark.AvgESGScore,
		benchmark.Percentile25ESG,
		benchmark.Percentile75ESG,
		benchmark.MedianESGScore,
	)

	if nonZero(comparison.InvestmentESGScore) && nonZero(benchmark.AvgESGScore) {
		esg, avg := *comparison.InvestmentESGScore, *benchmark.AvgESGScore
		if esg > avg {
			comparison.Strengths = append(comparison.Strengths,
				fmt.Sprintf("ESG score (%.1f) exceeds sector average (%.1f)", esg, avg))
		} else {
			comparison.Weaknesses = append(comparison.Weaknesses,
				fmt.Sprintf("ESG score (%.1f) below sector average (%.1f)", esg, avg))
			comparison.Recommendations = append(comparison.Recommendations,
				"Focus on improving ESG performance to match or exceed sector peers")
		}
	}

	if nonZero(comparison.InvestmentROI) && nonZero(benchmark.AvgROI) {
		roi, avg := *comparison.InvestmentROI, *benchmark.AvgROI
		if roi > avg {
			comparison.Strengths = append(comparison.Strengths,
				fmt.Sprintf("ROI (%.1f%%) exceeds sector average (%.1f%%)", roi, avg))
		} else {
			comparison.Weaknesses = append(comparison.Weaknesses,
				fmt.Sprintf("ROI (%.1f%%) below sector average (%.1f%%)", roi, avg))
		}
	}

	if nonZero(comparison.InvestmentPhysicalRisk) && nonZero(benchmark.AvgPhysicalRisk) {
		risk, avg := *comparison.InvestmentPhysicalRisk, *benchmark.AvgPhysicalRisk
		if risk < avg {
			comparison.Strengths = append(comparison.Strengths,
				fmt.Sprintf("Physical climate risk (%.1f) lower than sector average (%.1f)", risk, avg))
		} else {
			comparison.Weaknesses = append(comparison.Weaknesses,
				fmt.Sprintf("Physical climate risk (%.1f) higher than sector average (%.1f)", risk, avg))
			comparison.Recommendations = append(comparison.Recommendations,
				"Develop climate adaptation strategies to reduce physical risk exposure")
		}
	}

	return comparison, nil
}

// RefreshAll recomputes today's snapshot for every distinct sector plus
// the all-sector snapshot. Groups with no holdings are skipped; any other
// failure is logged per group and reported once at the end.
func (s *BenchmarkService) RefreshAll() error {
	sectors, err := s.metrics.Sectors()
	if err != nil {
		return fmt.Errorf("failed to list sectors: %w", err)
	}

	groups := append(sectors, "")
	var failed int
	for _, sector := range groups {
		_, err := s.Calculate(sector, "", "")
		if err == nil {
			continue
		}
		var insufficient domain.InsufficientDataError
		if errors.As(err, &insufficient) {
			continue
		}
		s.log.Error().Err(err).Str("sector", sector).Msg("Failed to refresh benchmark")
		failed++
	}
	if failed > 0 {
		return fmt.Errorf("benchmark refresh completed with %d failed groups", failed)
	}
	return nil
}

// calcPercentile places a value on the snapshot's ESG distribution by
// piecewise interpolation between the stored quartiles. Coarse by intent:
// only summary statistics survive the snapshot, not the distribution.
// The four statistics are computed together, so they are nil together.
func calcPercentile(value, avg, p25, p75, median *float64) *float64 {
	if value == nil || avg == nil || p25 == nil || p75 == nil || median == nil {
		return nil
	}
	v := *value
	var pct float64
	switch {
	case v >= *p75:
		pct = 75
		if *p75 > *avg {
			pct = 75 + (v-*p75)/(*p75-*avg)*10
		}
	case v >= *median:
		pct = 50
		if *p75 > *median {
			pct = 50 + (v-*median)/(*p75-*median)*25
		}
	case v >= *p25:
		pct = 25
		if *median > *p25 {
			pct = 25 + (v-*p25)/(*median-*p25)*25
		}
	default:
		if *p25 > 0 {
			pct = math.Max(0, 25*v / *p25)
		}
	}
	return &pct
}

func meanOf(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	v := Mean(values)
	return &v
}

func medianOf(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	v := Median(values)
	return &v
}

// nonZero implements the presence rule used across insight generation:
// a missing value and a zero value both read as "nothing to say".
func nonZero(p *float64) bool {
	return p != nil && *p != 0
}
