package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantfund/verdant/internal/domain"
	"github.com/verdantfund/verdant/internal/modules/portfolio"
)

func newBenchmarkService(t *testing.T, holdings *MockHoldingSource, assessments *MockAssessmentSource) *BenchmarkService {
	t.Helper()
	repo := NewAnalyticsRepository(newTestDB(t), testLogger())
	return NewBenchmarkService(NewMetricExtractor(holdings, assessments), repo, testLogger())
}

func sectorHolding(id int64, sector string, amount, current float64) portfolio.Investment {
	inv := activeHolding(id, amount, current)
	inv.Sector = sector
	return inv
}

func TestCalculateBenchmark_Aggregates(t *testing.T) {
	holdings := new(MockHoldingSource)
	assessments := new(MockAssessmentSource)

	investments := []portfolio.Investment{
		sectorHolding(1, "Energy", 100000, 110000), // ROI 10
		sectorHolding(2, "Energy", 100000, 120000), // ROI 20
		sectorHolding(3, "Energy", 100000, 130000), // ROI 30
		{ID: 4, Name: "Holding 4", Sector: "Energy", Status: portfolio.StatusActive},
	}
	holdings.On("List", portfolio.InvestmentFilter{Sector: "Energy"}).Return(investments, nil)
	expectScores(assessments, 1, 60, 4, 5)
	expectScores(assessments, 2, 70, 6, 7)
	expectScores(assessments, 3, 80, 8, 6)
	expectLatest(assessments, 4, nil, nil, nil, nil)

	svc := newBenchmarkService(t, holdings, assessments)

	snapshot, err := svc.Calculate("Energy", "", "")
	require.NoError(t, err)
	require.NotZero(t, snapshot.ID)

	assert.Equal(t, "Energy", snapshot.Sector)
	assert.Equal(t, 4, snapshot.SampleSize, "sample counts matched holdings, not observations")
	assert.Equal(t, "internal", snapshot.DataSource)

	require.NotNil(t, snapshot.AvgESGScore)
	assert.InDelta(t, 70.0, *snapshot.AvgESGScore, 0.0001)
	assert.InDelta(t, 70.0, *snapshot.MedianESGScore, 0.0001)
	assert.InDelta(t, 60.0, *snapshot.Percentile25ESG, 0.0001)
	assert.InDelta(t, 80.0, *snapshot.Percentile75ESG, 0.0001)

	assert.InDelta(t, 20.0, *snapshot.AvgROI, 0.0001)
	assert.InDelta(t, 20.0, *snapshot.MedianROI, 0.0001)
	assert.InDelta(t, 6.0, *snapshot.AvgPhysicalRisk, 0.0001)
	assert.InDelta(t, 6.0, *snapshot.AvgImpactScore, 0.0001)
	assert.InDelta(t, 100000.0, *snapshot.AvgInvestmentSize, 0.0001)

	// Nobody reported these metrics, so the statistics stay absent.
	assert.Nil(t, snapshot.AvgTransitionRisk)
	assert.Nil(t, snapshot.AvgEmissionsIntensity)
	assert.Nil(t, snapshot.MedianEmissionsIntensity)
	assert.Nil(t, snapshot.AvgBeneficiaries)
}

func TestCalculateBenchmark_AllSectorLabel(t *testing.T) {
	holdings := new(MockHoldingSource)
	assessments := new(MockAssessmentSource)

	holdings.On("List", portfolio.InvestmentFilter{}).
		Return([]portfolio.Investment{activeHolding(1, 100000, 110000)}, nil)
	expectLatest(assessments, 1, nil, nil, nil, nil)

	svc := newBenchmarkService(t, holdings, assessments)

	snapshot, err := svc.Calculate("", "", "")
	require.NoError(t, err)
	assert.Equal(t, "All", snapshot.Sector)
	assert.Equal(t, 1, snapshot.SampleSize)
	assert.Nil(t, snapshot.AvgESGScore)
	assert.Nil(t, snapshot.Percentile25ESG)
}

func TestCalculateBenchmark_NoMatches(t *testing.T) {
	holdings := new(MockHoldingSource)
	holdings.On("List", portfolio.InvestmentFilter{Sector: "Aerospace"}).
		Return([]portfolio.Investment{}, nil)

	svc := newBenchmarkService(t, holdings, new(MockAssessmentSource))

	_, err := svc.Calculate("Aerospace", "", "")
	var insufficient domain.InsufficientDataError
	require.ErrorAs(t, err, &insufficient)
	assert.ErrorContains(t, err, "no investments found for benchmark criteria")
}

func TestCompareInvestment_LeaderOfItsPeerGroup(t *testing.T) {
	holdings := new(MockHoldingSource)
	assessments := new(MockAssessmentSource)

	self := sectorHolding(1, "Energy", 100000, 130000) // ROI 30
	peers := []portfolio.Investment{
		self,
		sectorHolding(2, "Energy", 100000, 110000), // ROI 10
		sectorHolding(3, "Energy", 100000, 120000), // ROI 20
	}
	holdings.On("GetByID", int64(1)).Return(&self, nil)
	holdings.On("List", portfolio.InvestmentFilter{Sector: "Energy"}).Return(peers, nil)
	expectScores(assessments, 1, 80, 4, 6)
	expectScores(assessments, 2, 60, 6, 5)
	expectScores(assessments, 3, 70, 8, 7)

	svc := newBenchmarkService(t, holdings, assessments)

	comparison, err := svc.Compare(1)
	require.NoError(t, err)

	assert.Equal(t, int64(1), comparison.InvestmentID)
	assert.Equal(t, 80.0, *comparison.InvestmentESGScore)
	assert.Equal(t, 30.0, *comparison.InvestmentROI)

	// ESG 80 sits on the 75th percentile of the peer quartiles exactly.
	require.NotNil(t, comparison.ESGPercentile)
	assert.InDelta(t, 75.0, *comparison.ESGPercentile, 0.0001)

	require.Len(t, comparison.Strengths, 3)
	assert.Contains(t, comparison.Strengths[0], "ESG score (80.0) exceeds sector average (70.0)")
	assert.Contains(t, comparison.Strengths[1], "ROI (30.0%) exceeds sector average (20.0%)")
	assert.Contains(t, comparison.Strengths[2], "Physical climate risk (4.0) lower than sector average (6.0)")
	assert.Empty(t, comparison.Weaknesses)
	assert.Empty(t, comparison.Recommendations)
}

func TestCompareInvestment_LaggardGetsRecommendations(t *testing.T) {
	holdings := new(MockHoldingSource)
	assessments := new(MockAssessmentSource)

	self := sectorHolding(1, "Energy", 100000, 110000) // ROI 10
	peers := []portfolio.Investment{
		self,
		sectorHolding(2, "Energy", 100000, 120000),
		sectorHolding(3, "Energy", 100000, 130000),
	}
	holdings.On("GetByID", int64(1)).Return(&self, nil)
	holdings.On("List", portfolio.InvestmentFilter{Sector: "Energy"}).Return(peers, nil)
	expectScores(assessments, 1, 60, 8, 5)
	expectScores(assessments, 2, 70, 6, 6)
	expectScores(assessments, 3, 80, 4, 7)

	svc := newBenchmarkService(t, holdings, assessments)

	comparison, err := svc.Compare(1)
	require.NoError(t, err)

	require.Len(t, comparison.Weaknesses, 3)
	assert.Contains(t, comparison.Weaknesses[0], "ESG score (60.0) below sector average (70.0)")
	require.Len(t, comparison.Recommendations, 2)
	assert.Contains(t, comparison.Recommendations[0], "improving ESG performance")
	assert.Contains(t, comparison.Recommendations[1], "climate adaptation")
	assert.Empty(t, comparison.Strengths)

	// ESG 60 lands on the 25th percentile boundary.
	require.NotNil(t, comparison.ESGPercentile)
	assert.InDelta(t, 25.0, *comparison.ESGPercentile, 0.0001)
}

func TestCompareInvestment_UnknownID(t *testing.T) {
	holdings := new(MockHoldingSource)
	holdings.On("GetByID", int64(42)).Return(nil, nil)

	svc := newBenchmarkService(t, holdings, new(MockAssessmentSource))

	_, err := svc.Compare(42)
	var notFound domain.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestRefreshAll_SkipsEmptyGroups(t *testing.T) {
	holdings := new(MockHoldingSource)
	assessments := new(MockAssessmentSource)

	energy := []portfolio.Investment{sectorHolding(1, "Energy", 100000, 110000)}
	holdings.On("DistinctSectors").Return([]string{"Energy", "Healthcare"}, nil)
	holdings.On("List", portfolio.InvestmentFilter{Sector: "Energy"}).Return(energy, nil)
	holdings.On("List", portfolio.InvestmentFilter{Sector: "Healthcare"}).Return([]portfolio.Investment{}, nil)
	holdings.On("List", portfolio.InvestmentFilter{}).Return(energy, nil)
	expectLatest(assessments, 1, nil, nil, nil, nil)

	svc := newBenchmarkService(t, holdings, assessments)

	require.NoError(t, svc.RefreshAll())

	stored, err := svc.List("", "", "")
	require.NoError(t, err)
	require.Len(t, stored, 2, "one Energy snapshot plus the all-sector one")

	sectors := []string{stored[0].Sector, stored[1].Sector}
	assert.Contains(t, sectors, "Energy")
	assert.Contains(t, sectors, "All")
}

func TestCalcPercentile(t *testing.T) {
	avg, p25, median, p75 := floatPtr(70), floatPtr(60), floatPtr(70), floatPtr(80)

	tests := []struct {
		name  string
		value *float64
		want  *float64
	}{
		{"above p75 interpolates upward", floatPtr(85), floatPtr(80)},
		{"exactly p75", floatPtr(80), floatPtr(75)},
		{"between median and p75", floatPtr(75), floatPtr(62.5)},
		{"between p25 and median", floatPtr(65), floatPtr(37.5)},
		{"below p25 scales toward zero", floatPtr(30), floatPtr(12.5)},
		{"negative clamps at zero", floatPtr(-5), floatPtr(0)},
		{"missing value", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calcPercentile(tt.value, avg, p25, p75, median)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 0.0001)
		})
	}
}

func TestCalcPercentile_MissingQuartiles(t *testing.T) {
	assert.Nil(t, calcPercentile(floatPtr(70), floatPtr(70), nil, nil, nil))
}

func TestCalcPercentile_DegenerateDistribution(t *testing.T) {
	// All quartiles collapsed onto one point: anything at or above it is
	// a flat 75.
	flat := floatPtr(70)
	got := calcPercentile(floatPtr(90), flat, flat, flat, flat)
	require.NotNil(t, got)
	assert.Equal(t, 75.0, *got)
}
