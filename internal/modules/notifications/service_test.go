package notifications

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/verdantfund/verdant/internal/modules/portfolio"
)

type MockInvestmentSource struct {
	mock.Mock
}

func (m *MockInvestmentSource) List(filter portfolio.InvestmentFilter) ([]portfolio.Investment, error) {
	args := m.Called(filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]portfolio.Investment), args.Error(1)
}

type MockAssessmentSource struct {
	mock.Mock
}

func (m *MockAssessmentSource) RecentESG(investmentID int64, limit int) ([]portfolio.ESGScore, error) {
	args := m.Called(investmentID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]portfolio.ESGScore), args.Error(1)
}

func (m *MockAssessmentSource) RecentClimateRisks(investmentID int64, limit int) ([]portfolio.ClimateRisk, error) {
	args := m.Called(investmentID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]portfolio.ClimateRisk), args.Error(1)
}

func (m *MockAssessmentSource) RecentEmissions(investmentID int64, limit int) ([]portfolio.GHGEmissions, error) {
	args := m.Called(investmentID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]portfolio.GHGEmissions), args.Error(1)
}

func testLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func floatPtr(f float64) *float64 {
	return &f
}

// daysAgoDate formats a date n days before now, matching the ISO dates the
// assessment store uses.
func daysAgoDate(n int) string {
	return time.Now().UTC().AddDate(0, 0, -n).Format("2006-01-02")
}

func fundedHolding(id int64, name string) portfolio.Investment {
	return portfolio.Investment{
		ID:               id,
		Name:             name,
		Status:           portfolio.StatusActive,
		InvestmentAmount: floatPtr(100000),
		CurrentValue:     floatPtr(110000),
	}
}

func expectActive(investments *MockInvestmentSource, holdings ...portfolio.Investment) {
	investments.On("List", portfolio.InvestmentFilter{Status: portfolio.StatusActive}).Return(holdings, nil)
}

func expectHistory(m *MockAssessmentSource, id int64, esg []portfolio.ESGScore, risks []portfolio.ClimateRisk, emissions []portfolio.GHGEmissions) {
	m.On("RecentESG", id, 2).Return(esg, nil)
	m.On("RecentClimateRisks", id, 2).Return(risks, nil)
	m.On("RecentEmissions", id, 2).Return(emissions, nil)
}

// steadyRisks is a fresh, unchanged climate history that trips no checks.
func steadyRisks(id int64, score float64) []portfolio.ClimateRisk {
	return []portfolio.ClimateRisk{
		{InvestmentID: id, AssessmentDate: daysAgoDate(5), PhysicalRiskScore: floatPtr(score)},
		{InvestmentID: id, AssessmentDate: daysAgoDate(40), PhysicalRiskScore: floatPtr(score)},
	}
}

func TestScan_ESGDropRaisesHighAlert(t *testing.T) {
	investments := new(MockInvestmentSource)
	assessments := new(MockAssessmentSource)

	expectActive(investments, fundedHolding(1, "Solar One"))
	expectHistory(assessments, 1,
		[]portfolio.ESGScore{
			{InvestmentID: 1, AssessmentDate: daysAgoDate(5), OverallESGScore: floatPtr(55)},
			{InvestmentID: 1, AssessmentDate: daysAgoDate(40), OverallESGScore: floatPtr(70)},
		},
		steadyRisks(1, 4),
		[]portfolio.GHGEmissions{})

	svc := NewNotificationService(investments, assessments, testLogger())

	alerts, err := svc.Scan(ScanFilter{})
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	alert := alerts[0]
	assert.Equal(t, TypeMetricChange, alert.Type)
	assert.Equal(t, SeverityHigh, alert.Severity, "a drop is worse than a rise")
	assert.Equal(t, "esg_score", alert.Metric)
	assert.Equal(t, "ESG Score Change: Solar One", alert.Title)
	require.NotNil(t, alert.Change)
	assert.InDelta(t, -15.0, *alert.Change, 0.0001)
	assert.NotEmpty(t, alert.ID)
	assert.Equal(t, int64(1), alert.InvestmentID)
}

func TestScan_ESGImprovementIsMedium(t *testing.T) {
	investments := new(MockInvestmentSource)
	assessments := new(MockAssessmentSource)

	expectActive(investments, fundedHolding(1, "Solar One"))
	expectHistory(assessments, 1,
		[]portfolio.ESGScore{
			{InvestmentID: 1, AssessmentDate: daysAgoDate(5), OverallESGScore: floatPtr(85)},
			{InvestmentID: 1, AssessmentDate: daysAgoDate(40), OverallESGScore: floatPtr(70)},
		},
		steadyRisks(1, 4),
		[]portfolio.GHGEmissions{})

	svc := NewNotificationService(investments, assessments, testLogger())

	alerts, err := svc.Scan(ScanFilter{})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, SeverityMedium, alerts[0].Severity)
	assert.InDelta(t, 15.0, *alerts[0].Change, 0.0001)
}

func TestScan_StaleChangeIgnored(t *testing.T) {
	investments := new(MockInvestmentSource)
	assessments := new(MockAssessmentSource)

	// The newer assessment is 45 days old: outside the 30-day change
	// window and not yet overdue.
	expectActive(investments, fundedHolding(1, "Solar One"))
	expectHistory(assessments, 1,
		[]portfolio.ESGScore{
			{InvestmentID: 1, AssessmentDate: daysAgoDate(45), OverallESGScore: floatPtr(55)},
			{InvestmentID: 1, AssessmentDate: daysAgoDate(80), OverallESGScore: floatPtr(70)},
		},
		[]portfolio.ClimateRisk{
			{InvestmentID: 1, AssessmentDate: daysAgoDate(45), PhysicalRiskScore: floatPtr(4)},
		},
		[]portfolio.GHGEmissions{})

	svc := NewNotificationService(investments, assessments, testLogger())

	alerts, err := svc.Scan(ScanFilter{})
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestScan_RiskJumpAndCriticalThreshold(t *testing.T) {
	investments := new(MockInvestmentSource)
	assessments := new(MockAssessmentSource)

	expectActive(investments, fundedHolding(1, "Solar One"))
	expectHistory(assessments, 1,
		[]portfolio.ESGScore{
			{InvestmentID: 1, AssessmentDate: daysAgoDate(5), OverallESGScore: floatPtr(50)},
		},
		[]portfolio.ClimateRisk{
			{InvestmentID: 1, AssessmentDate: daysAgoDate(5), PhysicalRiskScore: floatPtr(9)},
			{InvestmentID: 1, AssessmentDate: daysAgoDate(40), PhysicalRiskScore: floatPtr(5)},
		},
		[]portfolio.GHGEmissions{})

	svc := NewNotificationService(investments, assessments, testLogger())

	alerts, err := svc.Scan(ScanFilter{})
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	// Critical threshold breach sorts ahead of the high-severity change.
	assert.Equal(t, SeverityCritical, alerts[0].Severity)
	assert.Equal(t, TypeRiskThreshold, alerts[0].Type)
	assert.Equal(t, 8.0, *alerts[0].Threshold)
	assert.Equal(t, 9.0, *alerts[0].CurrentValue)

	assert.Equal(t, SeverityHigh, alerts[1].Severity)
	assert.Equal(t, "climate_risk", alerts[1].Metric)
	assert.InDelta(t, 4.0, *alerts[1].Change, 0.0001)
}

func TestScan_HighRiskBand(t *testing.T) {
	investments := new(MockInvestmentSource)
	assessments := new(MockAssessmentSource)

	expectActive(investments, fundedHolding(1, "Solar One"))
	expectHistory(assessments, 1,
		[]portfolio.ESGScore{
			{InvestmentID: 1, AssessmentDate: daysAgoDate(5), OverallESGScore: floatPtr(50)},
		},
		[]portfolio.ClimateRisk{
			{InvestmentID: 1, AssessmentDate: daysAgoDate(5), TransitionRiskScore: floatPtr(6.5)},
		},
		[]portfolio.GHGEmissions{})

	svc := NewNotificationService(investments, assessments, testLogger())

	alerts, err := svc.Scan(ScanFilter{})
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	assert.Equal(t, TypeRiskThreshold, alerts[0].Type)
	assert.Equal(t, SeverityHigh, alerts[0].Severity)
	assert.Equal(t, "High Climate Risk: Solar One", alerts[0].Title)
	assert.Equal(t, 6.0, *alerts[0].Threshold)
	assert.Equal(t, 6.5, *alerts[0].CurrentValue)
}

func TestScan_LowESGScore(t *testing.T) {
	investments := new(MockInvestmentSource)
	assessments := new(MockAssessmentSource)

	expectActive(investments, fundedHolding(1, "Solar One"))
	expectHistory(assessments, 1,
		[]portfolio.ESGScore{
			{InvestmentID: 1, AssessmentDate: daysAgoDate(5), OverallESGScore: floatPtr(25)},
		},
		steadyRisks(1, 4),
		[]portfolio.GHGEmissions{})

	svc := NewNotificationService(investments, assessments, testLogger())

	alerts, err := svc.Scan(ScanFilter{})
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	assert.Equal(t, TypeRiskThreshold, alerts[0].Type)
	assert.Equal(t, SeverityHigh, alerts[0].Severity)
	assert.Equal(t, "Low ESG Score: Solar One", alerts[0].Title)
	assert.Equal(t, 30.0, *alerts[0].Threshold)
}

func TestScan_EmissionsChange(t *testing.T) {
	tests := []struct {
		name         string
		current      float64
		previous     float64
		wantSeverity string
		wantChange   float64
	}{
		{"rise is high severity", 1300, 1000, SeverityHigh, 30},
		{"reduction is medium severity", 800, 1000, SeverityMedium, -20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			investments := new(MockInvestmentSource)
			assessments := new(MockAssessmentSource)

			expectActive(investments, fundedHolding(1, "Solar One"))
			expectHistory(assessments, 1,
				[]portfolio.ESGScore{
					{InvestmentID: 1, AssessmentDate: daysAgoDate(5), OverallESGScore: floatPtr(50)},
				},
				steadyRisks(1, 4),
				[]portfolio.GHGEmissions{
					{InvestmentID: 1, ReportingYear: 2025, TotalEmissions: floatPtr(tt.current)},
					{InvestmentID: 1, ReportingYear: 2024, TotalEmissions: floatPtr(tt.previous)},
				})

			svc := NewNotificationService(investments, assessments, testLogger())

			alerts, err := svc.Scan(ScanFilter{})
			require.NoError(t, err)
			require.Len(t, alerts, 1)

			assert.Equal(t, tt.wantSeverity, alerts[0].Severity)
			assert.Equal(t, "emissions", alerts[0].Metric)
			assert.InDelta(t, tt.wantChange, *alerts[0].Change, 0.0001)
		})
	}
}

func TestScan_OverdueAssessments(t *testing.T) {
	investments := new(MockInvestmentSource)
	assessments := new(MockAssessmentSource)

	expectActive(investments, fundedHolding(1, "Solar One"))
	expectHistory(assessments, 1,
		[]portfolio.ESGScore{
			{InvestmentID: 1, AssessmentDate: daysAgoDate(120), OverallESGScore: floatPtr(50)},
		},
		[]portfolio.ClimateRisk{
			{InvestmentID: 1, AssessmentDate: daysAgoDate(200), PhysicalRiskScore: floatPtr(4)},
		},
		[]portfolio.GHGEmissions{})

	svc := NewNotificationService(investments, assessments, testLogger())

	alerts, err := svc.Scan(ScanFilter{})
	require.NoError(t, err)
	require.Len(t, alerts, 2)

	// 200 days is past the urgent mark, 120 is plain overdue.
	assert.Equal(t, SeverityHigh, alerts[0].Severity)
	assert.Equal(t, "climate_risk", alerts[0].AssessmentType)
	assert.Equal(t, 200, *alerts[0].DaysOverdue)

	assert.Equal(t, SeverityMedium, alerts[1].Severity)
	assert.Equal(t, "esg", alerts[1].AssessmentType)
	assert.Equal(t, 120, *alerts[1].DaysOverdue)
}

func TestScan_NeverAssessedReportsDataQualityOnly(t *testing.T) {
	investments := new(MockInvestmentSource)
	assessments := new(MockAssessmentSource)

	unfunded := portfolio.Investment{
		ID: 1, Name: "Fresh Deal", Status: portfolio.StatusActive,
		InvestmentAmount: floatPtr(100000),
	}
	expectActive(investments, unfunded)
	expectHistory(assessments, 1,
		[]portfolio.ESGScore{}, []portfolio.ClimateRisk{}, []portfolio.GHGEmissions{})

	svc := NewNotificationService(investments, assessments, testLogger())

	alerts, err := svc.Scan(ScanFilter{})
	require.NoError(t, err)
	require.Len(t, alerts, 3)

	for _, alert := range alerts {
		assert.Equal(t, TypeDataQuality, alert.Type, "nothing can be overdue without a first assessment")
	}

	assert.Equal(t, "missing_esg", alerts[0].Issue)
	assert.Equal(t, "missing_climate_risk", alerts[1].Issue)
	assert.Equal(t, "missing_financial_data", alerts[2].Issue)
	assert.Equal(t, SeverityLow, alerts[2].Severity)
}

func TestScan_UnparseableAssessmentDateSkipsOverdueCheck(t *testing.T) {
	investments := new(MockInvestmentSource)
	assessments := new(MockAssessmentSource)

	expectActive(investments, fundedHolding(1, "Solar One"))
	expectHistory(assessments, 1,
		[]portfolio.ESGScore{
			{InvestmentID: 1, AssessmentDate: "not-a-date", OverallESGScore: floatPtr(50)},
		},
		[]portfolio.ClimateRisk{},
		[]portfolio.GHGEmissions{})

	svc := NewNotificationService(investments, assessments, testLogger())

	alerts, err := svc.Scan(ScanFilter{})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "missing_climate_risk", alerts[0].Issue)
}

func TestScan_Filters(t *testing.T) {
	investments := new(MockInvestmentSource)
	assessments := new(MockAssessmentSource)

	expectActive(investments, fundedHolding(1, "Solar One"), fundedHolding(2, "AgriTech Fund"))
	expectHistory(assessments, 1,
		[]portfolio.ESGScore{
			{InvestmentID: 1, AssessmentDate: daysAgoDate(5), OverallESGScore: floatPtr(50)},
		},
		[]portfolio.ClimateRisk{
			{InvestmentID: 1, AssessmentDate: daysAgoDate(5), PhysicalRiskScore: floatPtr(9)},
		},
		[]portfolio.GHGEmissions{})
	expectHistory(assessments, 2,
		[]portfolio.ESGScore{},
		steadyRisks(2, 4),
		[]portfolio.GHGEmissions{})

	svc := NewNotificationService(investments, assessments, testLogger())

	byType, err := svc.Scan(ScanFilter{Type: TypeRiskThreshold})
	require.NoError(t, err)
	require.Len(t, byType, 1)
	assert.Equal(t, SeverityCritical, byType[0].Severity)

	bySeverity, err := svc.Scan(ScanFilter{Severity: SeverityMedium})
	require.NoError(t, err)
	require.Len(t, bySeverity, 1)
	assert.Equal(t, "missing_esg", bySeverity[0].Issue)

	byInvestment, err := svc.Scan(ScanFilter{InvestmentID: 2})
	require.NoError(t, err)
	require.Len(t, byInvestment, 1)
	assert.Equal(t, int64(2), byInvestment[0].InvestmentID)
}

func TestScan_SeverityOrdering(t *testing.T) {
	investments := new(MockInvestmentSource)
	assessments := new(MockAssessmentSource)

	// One holding tripping checks across the severity scale.
	noValue := portfolio.Investment{
		ID: 1, Name: "Solar One", Status: portfolio.StatusActive,
		InvestmentAmount: floatPtr(100000),
	}
	expectActive(investments, noValue)
	expectHistory(assessments, 1,
		[]portfolio.ESGScore{
			{InvestmentID: 1, AssessmentDate: daysAgoDate(200), OverallESGScore: floatPtr(25)},
		},
		[]portfolio.ClimateRisk{
			{InvestmentID: 1, AssessmentDate: daysAgoDate(5), PhysicalRiskScore: floatPtr(9)},
			{InvestmentID: 1, AssessmentDate: daysAgoDate(40), PhysicalRiskScore: floatPtr(5)},
		},
		[]portfolio.GHGEmissions{})

	svc := NewNotificationService(investments, assessments, testLogger())

	alerts, err := svc.Scan(ScanFilter{})
	require.NoError(t, err)
	require.Len(t, alerts, 5)

	severities := make([]string, len(alerts))
	for i, alert := range alerts {
		severities[i] = alert.Severity
	}
	assert.Equal(t, []string{
		SeverityCritical, SeverityHigh, SeverityHigh, SeverityHigh, SeverityLow,
	}, severities)
}
