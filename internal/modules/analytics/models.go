// Package analytics computes derived analyses over the portfolio store:
// peer benchmarks, Pearson correlations, Monte Carlo projections, heuristic
// rebalancing suggestions, and proportional impact attribution.
//
// Every analysis reads one snapshot of the holdings up front, computes
// synchronously from that snapshot, and either persists a complete result
// or errors with nothing written.
package analytics

import (
	"time"
)

// BenchmarkSnapshot holds descriptive statistics for a peer group
// (sector/industry/region) as of a date. Snapshots are recomputed in
// place: one row per key, last writer wins.
//
// Statistic fields are nil when the underlying metric had no usable
// observations across the peer group.
type BenchmarkSnapshot struct {
	ID                       int64     `json:"id"`
	Sector                   string    `json:"sector"`
	Industry                 string    `json:"industry,omitempty"`
	Region                   string    `json:"region,omitempty"`
	BenchmarkDate            string    `json:"benchmark_date"`
	AvgESGScore              *float64  `json:"avg_esg_score"`
	MedianESGScore           *float64  `json:"median_esg_score"`
	Percentile25ESG          *float64  `json:"percentile_25_esg"`
	Percentile75ESG          *float64  `json:"percentile_75_esg"`
	AvgPhysicalRisk          *float64  `json:"avg_physical_risk"`
	AvgTransitionRisk        *float64  `json:"avg_transition_risk"`
	AvgClimateOpportunity    *float64  `json:"avg_climate_opportunity"`
	AvgROI                   *float64  `json:"avg_roi"`
	MedianROI                *float64  `json:"median_roi"`
	AvgInvestmentSize        *float64  `json:"avg_investment_size"`
	AvgImpactScore           *float64  `json:"avg_impact_score"`
	AvgBeneficiaries         *float64  `json:"avg_beneficiaries"`
	AvgEmissionsIntensity    *float64  `json:"avg_emissions_intensity"`
	MedianEmissionsIntensity *float64  `json:"median_emissions_intensity"`
	SampleSize               int       `json:"sample_size"`
	DataSource               string    `json:"data_source"`
	CreatedAt                time.Time `json:"created_at"`
}

// BenchmarkComparison positions one holding against its peer-group snapshot.
type BenchmarkComparison struct {
	InvestmentID             int64             `json:"investment_id"`
	InvestmentName           string            `json:"investment_name"`
	Sector                   string            `json:"sector"`
	Industry                 string            `json:"industry,omitempty"`
	Region                   string            `json:"region,omitempty"`
	InvestmentESGScore       *float64          `json:"investment_esg_score"`
	InvestmentPhysicalRisk   *float64          `json:"investment_physical_risk"`
	InvestmentTransitionRisk *float64          `json:"investment_transition_risk"`
	InvestmentROI            *float64          `json:"investment_roi"`
	InvestmentImpactScore    *float64          `json:"investment_impact_score"`
	Benchmark                BenchmarkSnapshot `json:"benchmark"`
	ESGPercentile            *float64          `json:"esg_percentile"`
	Strengths                []string          `json:"strengths"`
	Weaknesses               []string          `json:"weaknesses"`
	Recommendations          []string          `json:"recommendations"`
}

// CorrelationAnalysis is one persisted correlation run. Coefficients are
// nil when undefined (fewer than 2 paired observations or zero variance),
// never coerced to zero.
type CorrelationAnalysis struct {
	ID                        int64               `json:"id"`
	AnalysisDate              string              `json:"analysis_date"`
	CorrelationMatrix         map[string]*float64 `json:"correlation_matrix"`
	ESGROICorrelation         *float64            `json:"esg_roi_correlation"`
	ClimateRiskROICorrelation *float64            `json:"climate_risk_roi_correlation"`
	ImpactROICorrelation      *float64            `json:"impact_roi_correlation"`
	ESGClimateCorrelation     *float64            `json:"esg_climate_correlation"`
	PValues                   map[string]float64  `json:"p_values"`
	SampleSize                int                 `json:"sample_size"`
	KeyInsights               []string            `json:"key_insights"`
	Recommendations           string              `json:"recommendations"`
	CreatedAt                 time.Time           `json:"created_at"`
}

// SimulationRequest carries caller parameters for a Monte Carlo run.
// Nil pointers take the documented defaults; present values are validated.
type SimulationRequest struct {
	SimulationName   string   `json:"simulation_name"`
	NumIterations    *int     `json:"num_iterations"`      // default 10000
	TimeHorizonYears *int     `json:"time_horizon_years"`  // default 5
	ScenarioType     string   `json:"scenario_type"`       // default "baseline"
	ClimateScenario  string   `json:"climate_scenario"`
	MarketVolatility *float64 `json:"market_volatility"`   // default 0.15
	Seed             *uint64  `json:"seed"`                // derived from the clock when absent
	CreatedBy        string   `json:"created_by"`          // default "System"
}

// IterationSamples keeps the first iterations of a run for inspection.
type IterationSamples struct {
	SampleROI    []float64 `json:"sample_roi"`
	SampleImpact []float64 `json:"sample_impact"`
}

// ScenarioOutcome summarizes one scenario inside a simulation result.
type ScenarioOutcome struct {
	ExpectedROI    float64 `json:"expected_roi"`
	ExpectedImpact float64 `json:"expected_impact"`
}

// SimulationResult is one completed Monte Carlo run. Immutable once
// persisted; the full outcome distributions live in the cache store
// keyed by RunID.
type SimulationResult struct {
	ID                       int64                      `json:"id"`
	RunID                    string                     `json:"run_id"`
	SimulationName           string                     `json:"simulation_name"`
	SimulationDate           string                     `json:"simulation_date"`
	NumIterations            int                        `json:"num_iterations"`
	TimeHorizonYears         int                        `json:"time_horizon_years"`
	ConfidenceLevels         []int                      `json:"confidence_levels"`
	ScenarioType             string                     `json:"scenario_type"`
	ClimateScenario          string                     `json:"climate_scenario,omitempty"`
	MarketVolatility         float64                    `json:"market_volatility"`
	Seed                     uint64                     `json:"seed"`
	ExpectedROI              float64                    `json:"expected_roi"`
	ROIStdDev                float64                    `json:"roi_std_dev"`
	ROIPercentiles           map[int]float64            `json:"roi_percentiles"`
	ExpectedImpactScore      float64                    `json:"expected_impact_score"`
	ImpactScoreStdDev        float64                    `json:"impact_score_std_dev"`
	ImpactScorePercentiles   map[int]float64            `json:"impact_score_percentiles"`
	ExpectedESGScore         float64                    `json:"expected_esg_score"`
	ESGScoreStdDev           float64                    `json:"esg_score_std_dev"`
	ValueAtRisk95            float64                    `json:"value_at_risk_95"`
	ValueAtRisk99            float64                    `json:"value_at_risk_99"`
	ConditionalVaR95         float64                    `json:"conditional_var_95"`
	ProbabilityPositiveROI   float64                    `json:"probability_positive_roi"`
	ProbabilityTargetImpact  float64                    `json:"probability_target_impact"`
	ProbabilityRiskThreshold float64                    `json:"probability_risk_threshold"`
	IterationResults         IterationSamples           `json:"iteration_results"`
	ScenarioAnalysis         map[string]ScenarioOutcome `json:"scenario_analysis"`
	Notes                    string                     `json:"notes"`
	CreatedBy                string                     `json:"created_by"`
	CreatedAt                time.Time                  `json:"created_at"`
}

// DistributionQuery is the answer to one percentile re-query against a
// cached simulation outcome series.
type DistributionQuery struct {
	SimulationID int64   `json:"simulation_id"`
	RunID        string  `json:"run_id"`
	Series       string  `json:"series"`
	Percentile   float64 `json:"percentile"`
	Value        float64 `json:"value"`
	Iterations   int     `json:"iterations"`
}

// OptimizationRequest carries caller targets for the rebalancing heuristic.
// A nil (or zero) target disables the rules that depend on it.
type OptimizationRequest struct {
	TargetImpactScore  *float64 `json:"target_impact_score"`
	TargetESGScore     *float64 `json:"target_esg_score"`
	MaxClimateRisk     *float64 `json:"max_climate_risk"`
	MinROIThreshold    *float64 `json:"min_roi_threshold"`
	OptimizationMethod string   `json:"optimization_method"` // default "impact_weighted"
	CreatedBy          string   `json:"created_by"`
}

// OptimizerConstraints is the fixed constraint set attached to every analysis.
type OptimizerConstraints struct {
	MaxPositionSize       float64 `json:"max_position_size"`
	MinPositionSize       float64 `json:"min_position_size"`
	SectorDiversification bool    `json:"sector_diversification"`
}

// OptimizationAnalysis is one persisted rebalancing analysis. Suggested
// weight deltas are keyed by holding id (decimal string).
type OptimizationAnalysis struct {
	ID                   int64                `json:"id"`
	AnalysisDate         string               `json:"analysis_date"`
	TargetImpactScore    *float64             `json:"target_impact_score"`
	TargetESGScore       *float64             `json:"target_esg_score"`
	MaxClimateRisk       *float64             `json:"max_climate_risk"`
	MinROIThreshold      *float64             `json:"min_roi_threshold"`
	CurrentImpactScore   float64              `json:"current_impact_score"`
	CurrentESGScore      float64              `json:"current_esg_score"`
	CurrentClimateRisk   float64              `json:"current_climate_risk"`
	CurrentROI           float64              `json:"current_roi"`
	SuggestedRebalancing map[string]float64   `json:"suggested_rebalancing"`
	SuggestedAdditions   []int64              `json:"suggested_additions"`
	SuggestedReductions  []int64              `json:"suggested_reductions"`
	OptimizedImpactScore float64              `json:"optimized_impact_score"`
	OptimizedESGScore    float64              `json:"optimized_esg_score"`
	OptimizedClimateRisk float64              `json:"optimized_climate_risk"`
	OptimizedROI         float64              `json:"optimized_roi"`
	OptimizationMethod   string               `json:"optimization_method"`
	Constraints          OptimizerConstraints `json:"constraints"`
	AnalysisNotes        string               `json:"analysis_notes"`
	CreatedBy            string               `json:"created_by"`
	CreatedAt            time.Time            `json:"created_at"`
}

// AttributionRequest asks for impact attribution of one holding as of a date.
type AttributionRequest struct {
	InvestmentID    int64  `json:"investment_id"`
	AttributionDate string `json:"attribution_date"` // default: today
}

// Attribution is the proportional impact attribution of one holding,
// upserted by (investment_id, attribution_date).
type Attribution struct {
	ID                           int64              `json:"id"`
	InvestmentID                 int64              `json:"investment_id"`
	AttributionDate              string             `json:"attribution_date"`
	SDGContributions             map[string]float64 `json:"sdg_contributions"`
	PrimarySDGContribution       *int               `json:"primary_sdg_contribution"`
	SecondarySDGContributions    []int              `json:"secondary_sdg_contributions"`
	TotalImpactScore             float64            `json:"total_impact_score"`
	BeneficiariesAttributed      float64            `json:"beneficiaries_attributed"`
	JobsAttributed               float64            `json:"jobs_attributed"`
	EmissionsReductionAttributed float64            `json:"emissions_reduction_attributed"`
	PortfolioImpactPercentage    float64            `json:"portfolio_impact_percentage"`
	PortfolioESGContribution     float64            `json:"portfolio_esg_contribution"`
	PortfolioClimateContribution float64            `json:"portfolio_climate_contribution"`
	AttributionMethod            string             `json:"attribution_method"`
	ConfidenceLevel              float64            `json:"confidence_level"`
	CreatedAt                    time.Time          `json:"created_at"`
}
