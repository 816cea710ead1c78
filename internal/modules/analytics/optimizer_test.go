package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantfund/verdant/internal/domain"
	"github.com/verdantfund/verdant/internal/modules/portfolio"
)

func newOptimizationService(t *testing.T, holdings *MockHoldingSource, assessments *MockAssessmentSource) *OptimizationService {
	t.Helper()
	repo := NewAnalyticsRepository(newTestDB(t), testLogger())
	return NewOptimizationService(NewMetricExtractor(holdings, assessments), repo, DefaultOptimizerRules(), testLogger())
}

func TestAnalyzePortfolio_FlagsHighRiskAndLowRisk(t *testing.T) {
	holdings := new(MockHoldingSource)
	assessments := new(MockAssessmentSource)

	investments := []portfolio.Investment{
		activeHolding(1, 100000, 110000),
		activeHolding(2, 100000, 110000),
	}
	holdings.On("List", portfolio.InvestmentFilter{Status: portfolio.StatusActive}).Return(investments, nil)
	expectScores(assessments, 1, 60, 8, 5) // above the risk ceiling
	expectScores(assessments, 2, 60, 2, 5) // under the low-risk cutoff

	svc := newOptimizationService(t, holdings, assessments)

	analysis, err := svc.Analyze(OptimizationRequest{MaxClimateRisk: floatPtr(6)})
	require.NoError(t, err)

	assert.Equal(t, -0.05, analysis.SuggestedRebalancing["1"])
	assert.Equal(t, 0.05, analysis.SuggestedRebalancing["2"])
	assert.Equal(t, []int64{1}, analysis.SuggestedReductions)
	assert.Empty(t, analysis.SuggestedAdditions)

	assert.InDelta(t, 5.0, analysis.CurrentImpactScore, 1e-9)
	assert.InDelta(t, 60.0, analysis.CurrentESGScore, 1e-9)
	assert.InDelta(t, 5.0, analysis.CurrentClimateRisk, 1e-9)
	assert.InDelta(t, 10.0, analysis.CurrentROI, 1e-9)

	// Only the risk target was set, so only risk and ROI get nudged.
	assert.InDelta(t, 4.75, analysis.OptimizedClimateRisk, 1e-9)
	assert.InDelta(t, 10.2, analysis.OptimizedROI, 1e-9)
	assert.InDelta(t, 5.0, analysis.OptimizedImpactScore, 1e-9)
	assert.InDelta(t, 60.0, analysis.OptimizedESGScore, 1e-9)

	assert.Equal(t, "impact_weighted", analysis.OptimizationMethod)
	assert.Equal(t, 0.25, analysis.Constraints.MaxPositionSize)
	assert.Equal(t, 0.01, analysis.Constraints.MinPositionSize)
	assert.True(t, analysis.Constraints.SectorDiversification)

	stored, err := svc.List(10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, analysis.ID, stored[0].ID)
}

func TestAnalyzePortfolio_ReductionWinsWhenBothApply(t *testing.T) {
	holdings := new(MockHoldingSource)
	assessments := new(MockAssessmentSource)

	holdings.On("List", portfolio.InvestmentFilter{Status: portfolio.StatusActive}).
		Return([]portfolio.Investment{activeHolding(1, 100000, 110000)}, nil)
	// Impact 9 clears the increase band (7 * 1.2) while risk 8 breaches
	// the ceiling at the same time.
	expectScores(assessments, 1, 60, 8, 9)

	svc := newOptimizationService(t, holdings, assessments)

	analysis, err := svc.Analyze(OptimizationRequest{
		TargetImpactScore: floatPtr(7),
		MaxClimateRisk:    floatPtr(6),
	})
	require.NoError(t, err)

	assert.Equal(t, -0.05, analysis.SuggestedRebalancing["1"])
	assert.Equal(t, []int64{1}, analysis.SuggestedReductions)
}

func TestAnalyzePortfolio_LowRiskRuleAlwaysOn(t *testing.T) {
	holdings := new(MockHoldingSource)
	assessments := new(MockAssessmentSource)

	investments := []portfolio.Investment{
		activeHolding(1, 100000, 110000),
		activeHolding(2, 100000, 110000),
	}
	holdings.On("List", portfolio.InvestmentFilter{Status: portfolio.StatusActive}).Return(investments, nil)
	expectScores(assessments, 1, 60, 2, 5)
	expectScores(assessments, 2, 60, 5, 5)

	svc := newOptimizationService(t, holdings, assessments)

	analysis, err := svc.Analyze(OptimizationRequest{})
	require.NoError(t, err)

	require.Len(t, analysis.SuggestedRebalancing, 1)
	assert.Equal(t, 0.05, analysis.SuggestedRebalancing["1"])
	assert.Empty(t, analysis.SuggestedReductions)

	// No targets: everything but ROI passes through unnudged.
	assert.Equal(t, analysis.CurrentImpactScore, analysis.OptimizedImpactScore)
	assert.Equal(t, analysis.CurrentESGScore, analysis.OptimizedESGScore)
	assert.Equal(t, analysis.CurrentClimateRisk, analysis.OptimizedClimateRisk)
	assert.InDelta(t, analysis.CurrentROI*1.02, analysis.OptimizedROI, 1e-9)
}

func TestAnalyzePortfolio_ImpactTargetBands(t *testing.T) {
	holdings := new(MockHoldingSource)
	assessments := new(MockAssessmentSource)

	investments := []portfolio.Investment{
		activeHolding(1, 100000, 110000),
		activeHolding(2, 100000, 110000),
		activeHolding(3, 100000, 110000),
	}
	holdings.On("List", portfolio.InvestmentFilter{Status: portfolio.StatusActive}).Return(investments, nil)
	// Target 8: reduce below 6.4, increase above 9.6, leave the middle alone.
	expectScores(assessments, 1, 60, 5, 5)
	expectScores(assessments, 2, 60, 5, 10)
	expectScores(assessments, 3, 60, 5, 8)

	svc := newOptimizationService(t, holdings, assessments)

	analysis, err := svc.Analyze(OptimizationRequest{TargetImpactScore: floatPtr(8)})
	require.NoError(t, err)

	require.Len(t, analysis.SuggestedRebalancing, 2)
	assert.Equal(t, -0.05, analysis.SuggestedRebalancing["1"])
	assert.Equal(t, 0.05, analysis.SuggestedRebalancing["2"])
	assert.NotContains(t, analysis.SuggestedRebalancing, "3")

	assert.InDelta(t, analysis.CurrentImpactScore*1.05, analysis.OptimizedImpactScore, 1e-9)
}

func TestAnalyzePortfolio_EmptyPortfolio(t *testing.T) {
	holdings := new(MockHoldingSource)
	holdings.On("List", portfolio.InvestmentFilter{Status: portfolio.StatusActive}).
		Return([]portfolio.Investment{}, nil)

	svc := newOptimizationService(t, holdings, new(MockAssessmentSource))

	_, err := svc.Analyze(OptimizationRequest{})
	var insufficient domain.InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.ErrorContains(t, err, "no active investments")
}
