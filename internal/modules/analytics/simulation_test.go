package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantfund/verdant/internal/domain"
	"github.com/verdantfund/verdant/internal/modules/portfolio"
)

func intPtr(i int) *int {
	return &i
}

func uint64Ptr(u uint64) *uint64 {
	return &u
}

func newSimulationService(t *testing.T, holdings *MockHoldingSource, assessments *MockAssessmentSource) *SimulationService {
	t.Helper()
	repo := NewAnalyticsRepository(newTestDB(t), testLogger())
	cache := NewDistributionCache(newTestCacheDB(t), testLogger())
	return NewSimulationService(NewMetricExtractor(holdings, assessments), repo, cache, testLogger())
}

// expectSimulationPortfolio wires a two-holding portfolio where both
// holdings fall back to the 8% planning return (no investment dates).
// Weights are 0.75 and 0.25, weighted impact 7.0, weighted ESG 65.
func expectSimulationPortfolio(holdings *MockHoldingSource, assessments *MockAssessmentSource) {
	investments := []portfolio.Investment{
		{ID: 1, Name: "Solar One", Status: portfolio.StatusActive,
			InvestmentAmount: floatPtr(100000), CurrentValue: floatPtr(150000)},
		{ID: 2, Name: "AgriTech Fund", Status: portfolio.StatusActive,
			InvestmentAmount: floatPtr(50000)},
	}
	holdings.On("List", portfolio.InvestmentFilter{Status: portfolio.StatusActive}).Return(investments, nil)
	expectScores(assessments, 1, 70, 5, 8)
	expectScores(assessments, 2, 50, 5, 4)
}

func TestRunSimulation_ZeroVolatilityIsDeterministic(t *testing.T) {
	holdings := new(MockHoldingSource)
	assessments := new(MockAssessmentSource)
	expectSimulationPortfolio(holdings, assessments)

	svc := newSimulationService(t, holdings, assessments)

	// With no noise every iteration is the weighted 8% planning return
	// over 5 years: 8 * 5 = 40.
	result, err := svc.Run(SimulationRequest{
		SimulationName:   "deterministic check",
		NumIterations:    intPtr(200),
		MarketVolatility: floatPtr(0),
		Seed:             uint64Ptr(7),
	})
	require.NoError(t, err)

	assert.Equal(t, 200, result.NumIterations)
	assert.Equal(t, 5, result.TimeHorizonYears)
	assert.Equal(t, "baseline", result.ScenarioType)
	assert.Equal(t, "System", result.CreatedBy)
	assert.Equal(t, uint64(7), result.Seed)

	assert.InDelta(t, 40.0, result.ExpectedROI, 1e-9)
	assert.Zero(t, result.ROIStdDev)
	assert.InDelta(t, 40.0, result.ROIPercentiles[5], 1e-9)
	assert.InDelta(t, 40.0, result.ROIPercentiles[95], 1e-9)
	assert.InDelta(t, 40.0, result.ValueAtRisk95, 1e-9)
	assert.InDelta(t, 40.0, result.ValueAtRisk99, 1e-9)
	assert.InDelta(t, 40.0, result.ConditionalVaR95, 1e-9)

	assert.InDelta(t, 7.0, result.ExpectedImpactScore, 1e-9)
	assert.InDelta(t, 65.0, result.ExpectedESGScore, 1e-9)

	assert.Equal(t, 100.0, result.ProbabilityPositiveROI)
	assert.Equal(t, 100.0, result.ProbabilityTargetImpact, "weighted impact sits exactly on the 7.0 target")
	assert.Equal(t, 0.0, result.ProbabilityRiskThreshold)

	assert.Len(t, result.IterationResults.SampleROI, 100)
	require.Contains(t, result.ScenarioAnalysis, "baseline")
	assert.InDelta(t, 40.0, result.ScenarioAnalysis["baseline"].ExpectedROI, 1e-9)
}

func TestRunSimulation_SeedReproducibility(t *testing.T) {
	holdings := new(MockHoldingSource)
	assessments := new(MockAssessmentSource)
	expectSimulationPortfolio(holdings, assessments)

	svc := newSimulationService(t, holdings, assessments)

	req := SimulationRequest{
		SimulationName: "seeded run",
		NumIterations:  intPtr(500),
		Seed:           uint64Ptr(42),
	}
	first, err := svc.Run(req)
	require.NoError(t, err)
	second, err := svc.Run(req)
	require.NoError(t, err)

	// Tail VaR cannot exceed the 95% VaR on the sorted series.
	assert.LessOrEqual(t, first.ValueAtRisk99, first.ValueAtRisk95)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.ExpectedROI, second.ExpectedROI)
	assert.Equal(t, first.ROIStdDev, second.ROIStdDev)
	assert.Equal(t, first.ROIPercentiles, second.ROIPercentiles)
	assert.Equal(t, first.ValueAtRisk95, second.ValueAtRisk95)

	other, err := svc.Run(SimulationRequest{
		SimulationName: "different seed",
		NumIterations:  intPtr(500),
		Seed:           uint64Ptr(43),
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ExpectedROI, other.ExpectedROI)
}

func TestRunSimulation_Validation(t *testing.T) {
	tests := []struct {
		name  string
		req   SimulationRequest
		field string
	}{
		{"missing name", SimulationRequest{}, "simulation_name"},
		{"zero iterations", SimulationRequest{SimulationName: "x", NumIterations: intPtr(0)}, "num_iterations"},
		{"negative horizon", SimulationRequest{SimulationName: "x", TimeHorizonYears: intPtr(-1)}, "time_horizon_years"},
		{"negative volatility", SimulationRequest{SimulationName: "x", MarketVolatility: floatPtr(-0.1)}, "market_volatility"},
	}

	svc := newSimulationService(t, new(MockHoldingSource), new(MockAssessmentSource))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Run(tt.req)
			var validation domain.ValidationError
			require.ErrorAs(t, err, &validation)
			assert.Equal(t, tt.field, validation.Field)
		})
	}
}

func TestRunSimulation_NoActiveHoldings(t *testing.T) {
	holdings := new(MockHoldingSource)
	holdings.On("List", portfolio.InvestmentFilter{Status: portfolio.StatusActive}).
		Return([]portfolio.Investment{}, nil)

	svc := newSimulationService(t, holdings, new(MockAssessmentSource))

	_, err := svc.Run(SimulationRequest{SimulationName: "empty portfolio"})
	var insufficient domain.InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
}

func TestGetSimulation_UnknownID(t *testing.T) {
	svc := newSimulationService(t, new(MockHoldingSource), new(MockAssessmentSource))

	_, err := svc.Get(999)
	var notFound domain.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestDistributionPercentile(t *testing.T) {
	holdings := new(MockHoldingSource)
	assessments := new(MockAssessmentSource)
	expectSimulationPortfolio(holdings, assessments)

	svc := newSimulationService(t, holdings, assessments)

	result, err := svc.Run(SimulationRequest{
		SimulationName:   "query source",
		NumIterations:    intPtr(200),
		MarketVolatility: floatPtr(0),
	})
	require.NoError(t, err)

	query, err := svc.DistributionPercentile(result.ID, SeriesROI, 50)
	require.NoError(t, err)
	assert.Equal(t, result.RunID, query.RunID)
	assert.Equal(t, 200, query.Iterations)
	assert.InDelta(t, 40.0, query.Value, 1e-9)

	_, err = svc.DistributionPercentile(result.ID, "esg", 50)
	var validation domain.ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "series", validation.Field)

	_, err = svc.DistributionPercentile(result.ID, SeriesImpact, 101)
	require.ErrorAs(t, err, &validation)
	assert.Equal(t, "percentile", validation.Field)

	_, err = svc.DistributionPercentile(999, SeriesROI, 50)
	var notFound domain.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestDistributionPercentile_EvictedCache(t *testing.T) {
	holdings := new(MockHoldingSource)
	assessments := new(MockAssessmentSource)
	expectSimulationPortfolio(holdings, assessments)

	repo := NewAnalyticsRepository(newTestDB(t), testLogger())
	metrics := NewMetricExtractor(holdings, assessments)
	svc := NewSimulationService(metrics, repo, NewDistributionCache(newTestCacheDB(t), testLogger()), testLogger())

	result, err := svc.Run(SimulationRequest{SimulationName: "cached run", NumIterations: intPtr(50)})
	require.NoError(t, err)

	// Same result store, fresh cache: the run row survives but its
	// distributions are gone.
	evicted := NewSimulationService(metrics, repo, NewDistributionCache(newTestCacheDB(t), testLogger()), testLogger())

	_, err = evicted.DistributionPercentile(result.ID, SeriesROI, 50)
	var notFound domain.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.ErrorContains(t, err, "re-run to rebuild")
}
