package analytics

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// AnalyticsRepository persists analysis outputs in analytics.db.
//
// Simulation, correlation and optimization rows are insert-only. Benchmarks
// and attributions are recomputed in place: the repository upserts the full
// row under its natural key, so concurrent writers both succeed and the
// last writer wins. A failed computation never reaches the repository, so
// a previously valid snapshot is never overwritten with a partial one.
type AnalyticsRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewAnalyticsRepository creates a new analytics repository
func NewAnalyticsRepository(db *sql.DB, log zerolog.Logger) *AnalyticsRepository {
	return &AnalyticsRepository{
		db:  db,
		log: log.With().Str("repository", "analytics").Logger(),
	}
}

// ---- Benchmarks ----

const benchmarkColumns = `id, sector, industry, region, benchmark_date,
	avg_esg_score, median_esg_score, percentile_25_esg, percentile_75_esg,
	avg_physical_risk, avg_transition_risk, avg_climate_opportunity,
	avg_roi, median_roi, avg_investment_size, avg_impact_score,
	avg_beneficiaries, avg_emissions_intensity, median_emissions_intensity,
	sample_size, data_source, created_at`

// UpsertBenchmark stores a snapshot under (sector, industry, region, date),
// replacing the previous row for that key entirely.
//
// Industry and region are nullable key parts, so the existing row is found
// with IS (NULL-safe) rather than a UNIQUE index.
func (r *AnalyticsRepository) UpsertBenchmark(b BenchmarkSnapshot) (*BenchmarkSnapshot, error) {
	var existingID int64
	err := r.db.QueryRow(`
		SELECT id FROM benchmarks
		WHERE sector = ? AND industry IS ? AND region IS ? AND benchmark_date = ?
	`, b.Sector, nullString(b.Industry), nullString(b.Region), b.BenchmarkDate).Scan(&existingID)

	now := time.Now().Unix()
	switch {
	case err == sql.ErrNoRows:
		result, err := r.db.Exec(`
			INSERT INTO benchmarks
			(sector, industry, region, benchmark_date,
			 avg_esg_score, median_esg_score, percentile_25_esg, percentile_75_esg,
			 avg_physical_risk, avg_transition_risk, avg_climate_opportunity,
			 avg_roi, median_roi, avg_investment_size, avg_impact_score,
			 avg_beneficiaries, avg_emissions_intensity, median_emissions_intensity,
			 sample_size, data_source, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			b.Sector, nullString(b.Industry), nullString(b.Region), b.BenchmarkDate,
			b.AvgESGScore, b.MedianESGScore, b.Percentile25ESG, b.Percentile75ESG,
			b.AvgPhysicalRisk, b.AvgTransitionRisk, b.AvgClimateOpportunity,
			b.AvgROI, b.MedianROI, b.AvgInvestmentSize, b.AvgImpactScore,
			b.AvgBeneficiaries, b.AvgEmissionsIntensity, b.MedianEmissionsIntensity,
			b.SampleSize, b.DataSource, now, now,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert benchmark: %w", err)
		}
		b.ID, err = result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("failed to get benchmark id: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to look up benchmark: %w", err)
	default:
		_, err := r.db.Exec(`
			UPDATE benchmarks SET
				avg_esg_score = ?, median_esg_score = ?, percentile_25_esg = ?, percentile_75_esg = ?,
				avg_physical_risk = ?, avg_transition_risk = ?, avg_climate_opportunity = ?,
				avg_roi = ?, median_roi = ?, avg_investment_size = ?, avg_impact_score = ?,
				avg_beneficiaries = ?, avg_emissions_intensity = ?, median_emissions_intensity = ?,
				sample_size = ?, data_source = ?, updated_at = ?
			WHERE id = ?
		`,
			b.AvgESGScore, b.MedianESGScore, b.Percentile25ESG, b.Percentile75ESG,
			b.AvgPhysicalRisk, b.AvgTransitionRisk, b.AvgClimateOpportunity,
			b.AvgROI, b.MedianROI, b.AvgInvestmentSize, b.AvgImpactScore,
			b.AvgBeneficiaries, b.AvgEmissionsIntensity, b.MedianEmissionsIntensity,
			b.SampleSize, b.DataSource, now, existingID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to update benchmark: %w", err)
		}
		b.ID = existingID
	}

	b.CreatedAt = time.Unix(now, 0).UTC()
	return &b, nil
}

// ListBenchmarks returns stored snapshots, newest first
func (r *AnalyticsRepository) ListBenchmarks(sector, industry, region string) ([]BenchmarkSnapshot, error) {
	query := "SELECT " + benchmarkColumns + " FROM benchmarks WHERE 1=1"
	var args []interface{}

	if sector != "" {
		query += " AND sector = ?"
		args = append(args, sector)
	}
	if industry != "" {
		query += " AND industry = ?"
		args = append(args, industry)
	}
	if region != "" {
		query += " AND region = ?"
		args = append(args, region)
	}
	query += " ORDER BY benchmark_date DESC, id DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query benchmarks: %w", err)
	}
	defer rows.Close()

	var benchmarks []BenchmarkSnapshot
	for rows.Next() {
		b, err := scanBenchmark(rows)
		if err != nil {
			return nil, err
		}
		benchmarks = append(benchmarks, b)
	}
	return benchmarks, rows.Err()
}

func scanBenchmark(rows *sql.Rows) (BenchmarkSnapshot, error) {
	var b BenchmarkSnapshot
	var industry, region sql.NullString
	var avgESG, medianESG, p25ESG, p75ESG sql.NullFloat64
	var avgPhysical, avgTransition, avgOpportunity sql.NullFloat64
	var avgROI, medianROI, avgSize, avgImpact sql.NullFloat64
	var avgBeneficiaries, avgIntensity, medianIntensity sql.NullFloat64
	var createdAt int64

	err := rows.Scan(&b.ID, &b.Sector, &industry, &region, &b.BenchmarkDate,
		&avgESG, &medianESG, &p25ESG, &p75ESG,
		&avgPhysical, &avgTransition, &avgOpportunity,
		&avgROI, &medianROI, &avgSize, &avgImpact,
		&avgBeneficiaries, &avgIntensity, &medianIntensity,
		&b.SampleSize, &b.DataSource, &createdAt)
	if err != nil {
		return b, fmt.Errorf("failed to scan benchmark: %w", err)
	}

	b.Industry = industry.String
	b.Region = region.String
	b.AvgESGScore = nullableFloat(avgESG)
	b.MedianESGScore = nullableFloat(medianESG)
	b.Percentile25ESG = nullableFloat(p25ESG)
	b.Percentile75ESG = nullableFloat(p75ESG)
	b.AvgPhysicalRisk = nullableFloat(avgPhysical)
	b.AvgTransitionRisk = nullableFloat(avgTransition)
	b.AvgClimateOpportunity = nullableFloat(avgOpportunity)
	b.AvgROI = nullableFloat(avgROI)
	b.MedianROI = nullableFloat(medianROI)
	b.AvgInvestmentSize = nullableFloat(avgSize)
	b.AvgImpactScore = nullableFloat(avgImpact)
	b.AvgBeneficiaries = nullableFloat(avgBeneficiaries)
	b.AvgEmissionsIntensity = nullableFloat(avgIntensity)
	b.MedianEmissionsIntensity = nullableFloat(medianIntensity)
	b.CreatedAt = time.Unix(createdAt, 0).UTC()
	return b, nil
}

// ---- Simulations ----

const simulationColumns = `id, run_id, simulation_name, simulation_date,
	num_iterations, time_horizon_years, confidence_levels, scenario_type,
	climate_scenario, market_volatility, seed,
	expected_roi, roi_std_dev, roi_percentiles,
	expected_impact_score, impact_score_std_dev, impact_score_percentiles,
	expected_esg_score, esg_score_std_dev,
	value_at_risk_95, value_at_risk_99, conditional_var_95,
	probability_positive_roi, probability_target_impact, probability_risk_threshold,
	iteration_results, scenario_analysis, notes, created_by, created_at`

// InsertSimulation stores a completed run and assigns its row id
func (r *AnalyticsRepository) InsertSimulation(result *SimulationResult) error {
	confidence, err := json.Marshal(result.ConfidenceLevels)
	if err != nil {
		return fmt.Errorf("failed to encode confidence levels: %w", err)
	}
	roiPct, err := json.Marshal(result.ROIPercentiles)
	if err != nil {
		return fmt.Errorf("failed to encode roi percentiles: %w", err)
	}
	impactPct, err := json.Marshal(result.ImpactScorePercentiles)
	if err != nil {
		return fmt.Errorf("failed to encode impact percentiles: %w", err)
	}
	samples, err := json.Marshal(result.IterationResults)
	if err != nil {
		return fmt.Errorf("failed to encode iteration samples: %w", err)
	}
	scenarios, err := json.Marshal(result.ScenarioAnalysis)
	if err != nil {
		return fmt.Errorf("failed to encode scenario analysis: %w", err)
	}

	now := time.Now().Unix()
	res, err := r.db.Exec(`
		INSERT INTO simulations
		(run_id, simulation_name, simulation_date, num_iterations, time_horizon_years,
		 confidence_levels, scenario_type, climate_scenario, market_volatility, seed,
		 expected_roi, roi_std_dev, roi_percentiles,
		 expected_impact_score, impact_score_std_dev, impact_score_percentiles,
		 expected_esg_score, esg_score_std_dev,
		 value_at_risk_95, value_at_risk_99, conditional_var_95,
		 probability_positive_roi, probability_target_impact, probability_risk_threshold,
		 iteration_results, scenario_analysis, notes, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		result.RunID, result.SimulationName, result.SimulationDate,
		result.NumIterations, result.TimeHorizonYears,
		string(confidence), result.ScenarioType, nullString(result.ClimateScenario),
		result.MarketVolatility, int64(result.Seed),
		result.ExpectedROI, result.ROIStdDev, string(roiPct),
		result.ExpectedImpactScore, result.ImpactScoreStdDev, string(impactPct),
		result.ExpectedESGScore, result.ESGScoreStdDev,
		result.ValueAtRisk95, result.ValueAtRisk99, result.ConditionalVaR95,
		result.ProbabilityPositiveROI, result.ProbabilityTargetImpact, result.ProbabilityRiskThreshold,
		string(samples), string(scenarios), nullString(result.Notes), result.CreatedBy, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert simulation: %w", err)
	}

	result.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get simulation id: %w", err)
	}
	result.CreatedAt = time.Unix(now, 0).UTC()
	return nil
}

// ListSimulations returns recent runs, newest first
func (r *AnalyticsRepository) ListSimulations(limit int) ([]SimulationResult, error) {
	rows, err := r.db.Query(
		"SELECT "+simulationColumns+" FROM simulations ORDER BY simulation_date DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query simulations: %w", err)
	}
	defer rows.Close()

	var results []SimulationResult
	for rows.Next() {
		result, err := r.scanSimulation(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// GetSimulation returns one run by row id, or nil
func (r *AnalyticsRepository) GetSimulation(id int64) (*SimulationResult, error) {
	rows, err := r.db.Query("SELECT "+simulationColumns+" FROM simulations WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to query simulation: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	result, err := r.scanSimulation(rows)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *AnalyticsRepository) scanSimulation(rows *sql.Rows) (SimulationResult, error) {
	var result SimulationResult
	var confidence, roiPct, impactPct, samples, scenarios string
	var climateScenario, notes sql.NullString
	var seed, createdAt int64

	err := rows.Scan(&result.ID, &result.RunID, &result.SimulationName, &result.SimulationDate,
		&result.NumIterations, &result.TimeHorizonYears, &confidence, &result.ScenarioType,
		&climateScenario, &result.MarketVolatility, &seed,
		&result.ExpectedROI, &result.ROIStdDev, &roiPct,
		&result.ExpectedImpactScore, &result.ImpactScoreStdDev, &impactPct,
		&result.ExpectedESGScore, &result.ESGScoreStdDev,
		&result.ValueAtRisk95, &result.ValueAtRisk99, &result.ConditionalVaR95,
		&result.ProbabilityPositiveROI, &result.ProbabilityTargetImpact, &result.ProbabilityRiskThreshold,
		&samples, &scenarios, &notes, &result.CreatedBy, &createdAt)
	if err != nil {
		return result, fmt.Errorf("failed to scan simulation: %w", err)
	}

	result.ClimateScenario = climateScenario.String
	result.Notes = notes.String
	result.Seed = uint64(seed)
	result.CreatedAt = time.Unix(createdAt, 0).UTC()

	if err := json.Unmarshal([]byte(confidence), &result.ConfidenceLevels); err != nil {
		return result, fmt.Errorf("failed to decode confidence levels: %w", err)
	}
	if err := json.Unmarshal([]byte(roiPct), &result.ROIPercentiles); err != nil {
		return result, fmt.Errorf("failed to decode roi percentiles: %w", err)
	}
	if err := json.Unmarshal([]byte(impactPct), &result.ImpactScorePercentiles); err != nil {
		return result, fmt.Errorf("failed to decode impact percentiles: %w", err)
	}
	if err := json.Unmarshal([]byte(samples), &result.IterationResults); err != nil {
		return result, fmt.Errorf("failed to decode iteration samples: %w", err)
	}
	if err := json.Unmarshal([]byte(scenarios), &result.ScenarioAnalysis); err != nil {
		return result, fmt.Errorf("failed to decode scenario analysis: %w", err)
	}
	return result, nil
}

// ---- Correlation analyses ----

const correlationColumns = `id, analysis_date, correlation_matrix,
	esg_roi_correlation, climate_risk_roi_correlation, impact_roi_correlation,
	esg_climate_correlation, p_values, sample_size, key_insights,
	recommendations, created_at`

// InsertCorrelation stores a completed analysis and assigns its row id
func (r *AnalyticsRepository) InsertCorrelation(analysis *CorrelationAnalysis) error {
	matrix, err := json.Marshal(analysis.CorrelationMatrix)
	if err != nil {
		return fmt.Errorf("failed to encode correlation matrix: %w", err)
	}
	pValues, err := json.Marshal(analysis.PValues)
	if err != nil {
		return fmt.Errorf("failed to encode p values: %w", err)
	}
	insights, err := json.Marshal(analysis.KeyInsights)
	if err != nil {
		return fmt.Errorf("failed to encode insights: %w", err)
	}

	now := time.Now().Unix()
	res, err := r.db.Exec(`
		INSERT INTO correlation_analyses
		(analysis_date, correlation_matrix, esg_roi_correlation, climate_risk_roi_correlation,
		 impact_roi_correlation, esg_climate_correlation, p_values, sample_size,
		 key_insights, recommendations, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		analysis.AnalysisDate, string(matrix),
		analysis.ESGROICorrelation, analysis.ClimateRiskROICorrelation,
		analysis.ImpactROICorrelation, analysis.ESGClimateCorrelation,
		string(pValues), analysis.SampleSize, string(insights),
		analysis.Recommendations, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert correlation analysis: %w", err)
	}

	analysis.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get correlation analysis id: %w", err)
	}
	analysis.CreatedAt = time.Unix(now, 0).UTC()
	return nil
}

// LatestCorrelation returns the most recent analysis, or nil
func (r *AnalyticsRepository) LatestCorrelation() (*CorrelationAnalysis, error) {
	row := r.db.QueryRow(
		"SELECT " + correlationColumns + " FROM correlation_analyses ORDER BY analysis_date DESC, id DESC LIMIT 1",
	)

	var analysis CorrelationAnalysis
	var matrix, pValues, insights string
	var esgROI, climateROI, impactROI, esgClimate sql.NullFloat64
	var createdAt int64

	err := row.Scan(&analysis.ID, &analysis.AnalysisDate, &matrix,
		&esgROI, &climateROI, &impactROI, &esgClimate,
		&pValues, &analysis.SampleSize, &insights,
		&analysis.Recommendations, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get correlation analysis: %w", err)
	}

	analysis.ESGROICorrelation = nullableFloat(esgROI)
	analysis.ClimateRiskROICorrelation = nullableFloat(climateROI)
	analysis.ImpactROICorrelation = nullableFloat(impactROI)
	analysis.ESGClimateCorrelation = nullableFloat(esgClimate)
	analysis.CreatedAt = time.Unix(createdAt, 0).UTC()
	if err := json.Unmarshal([]byte(matrix), &analysis.CorrelationMatrix); err != nil {
		return nil, fmt.Errorf("failed to decode correlation matrix: %w", err)
	}
	if err := json.Unmarshal([]byte(pValues), &analysis.PValues); err != nil {
		return nil, fmt.Errorf("failed to decode p values: %w", err)
	}
	if err := json.Unmarshal([]byte(insights), &analysis.KeyInsights); err != nil {
		return nil, fmt.Errorf("failed to decode insights: %w", err)
	}
	return &analysis, nil
}

// ---- Optimizations ----

const optimizationColumns = `id, analysis_date, target_impact_score, target_esg_score,
	max_climate_risk, min_roi_threshold, current_impact_score, current_esg_score,
	current_climate_risk, current_roi, suggested_rebalancing, suggested_additions,
	suggested_reductions, optimized_impact_score, optimized_esg_score,
	optimized_climate_risk, optimized_roi, optimization_method, constraints,
	analysis_notes, created_by, created_at`

// InsertOptimization stores a completed analysis and assigns its row id
func (r *AnalyticsRepository) InsertOptimization(analysis *OptimizationAnalysis) error {
	rebalancing, err := json.Marshal(analysis.SuggestedRebalancing)
	if err != nil {
		return fmt.Errorf("failed to encode rebalancing map: %w", err)
	}
	additions, err := json.Marshal(analysis.SuggestedAdditions)
	if err != nil {
		return fmt.Errorf("failed to encode additions: %w", err)
	}
	reductions, err := json.Marshal(analysis.SuggestedReductions)
	if err != nil {
		return fmt.Errorf("failed to encode reductions: %w", err)
	}
	constraints, err := json.Marshal(analysis.Constraints)
	if err != nil {
		return fmt.Errorf("failed to encode constraints: %w", err)
	}

	now := time.Now().Unix()
	res, err := r.db.Exec(`
		INSERT INTO optimizations
		(analysis_date, target_impact_score, target_esg_score, max_climate_risk,
		 min_roi_threshold, current_impact_score, current_esg_score, current_climate_risk,
		 current_roi, suggested_rebalancing, suggested_additions, suggested_reductions,
		 optimized_impact_score, optimized_esg_score, optimized_climate_risk, optimized_roi,
		 optimization_method, constraints, analysis_notes, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		analysis.AnalysisDate, analysis.TargetImpactScore, analysis.TargetESGScore,
		analysis.MaxClimateRisk, analysis.MinROIThreshold,
		analysis.CurrentImpactScore, analysis.CurrentESGScore, analysis.CurrentClimateRisk,
		analysis.CurrentROI, string(rebalancing), string(additions), string(reductions),
		analysis.OptimizedImpactScore, analysis.OptimizedESGScore,
		analysis.OptimizedClimateRisk, analysis.OptimizedROI,
		analysis.OptimizationMethod, string(constraints),
		nullString(analysis.AnalysisNotes), analysis.CreatedBy, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert optimization: %w", err)
	}

	analysis.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get optimization id: %w", err)
	}
	analysis.CreatedAt = time.Unix(now, 0).UTC()
	return nil
}

// ListOptimizations returns recent analyses, newest first
func (r *AnalyticsRepository) ListOptimizations(limit int) ([]OptimizationAnalysis, error) {
	rows, err := r.db.Query(
		"SELECT "+optimizationColumns+" FROM optimizations ORDER BY analysis_date DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query optimizations: %w", err)
	}
	defer rows.Close()

	var analyses []OptimizationAnalysis
	for rows.Next() {
		var analysis OptimizationAnalysis
		var rebalancing, additions, reductions, constraints string
		var targetImpact, targetESG, maxRisk, minROI sql.NullFloat64
		var notes sql.NullString
		var createdAt int64

		err := rows.Scan(&analysis.ID, &analysis.AnalysisDate,
			&targetImpact, &targetESG, &maxRisk, &minROI,
			&analysis.CurrentImpactScore, &analysis.CurrentESGScore,
			&analysis.CurrentClimateRisk, &analysis.CurrentROI,
			&rebalancing, &additions, &reductions,
			&analysis.OptimizedImpactScore, &analysis.OptimizedESGScore,
			&analysis.OptimizedClimateRisk, &analysis.OptimizedROI,
			&analysis.OptimizationMethod, &constraints, &notes,
			&analysis.CreatedBy, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan optimization: %w", err)
		}

		analysis.TargetImpactScore = nullableFloat(targetImpact)
		analysis.TargetESGScore = nullableFloat(targetESG)
		analysis.MaxClimateRisk = nullableFloat(maxRisk)
		analysis.MinROIThreshold = nullableFloat(minROI)
		analysis.AnalysisNotes = notes.String
		analysis.CreatedAt = time.Unix(createdAt, 0).UTC()
		if err := json.Unmarshal([]byte(rebalancing), &analysis.SuggestedRebalancing); err != nil {
			return nil, fmt.Errorf("failed to decode rebalancing map: %w", err)
		}
		if err := json.Unmarshal([]byte(additions), &analysis.SuggestedAdditions); err != nil {
			return nil, fmt.Errorf("failed to decode additions: %w", err)
		}
		if err := json.Unmarshal([]byte(reductions), &analysis.SuggestedReductions); err != nil {
			return nil, fmt.Errorf("failed to decode reductions: %w", err)
		}
		if err := json.Unmarshal([]byte(constraints), &analysis.Constraints); err != nil {
			return nil, fmt.Errorf("failed to decode constraints: %w", err)
		}
		analyses = append(analyses, analysis)
	}
	return analyses, rows.Err()
}

// ---- Attributions ----

const attributionColumns = `id, investment_id, attribution_date, sdg_contributions,
	primary_sdg_contribution, secondary_sdg_contributions, total_impact_score,
	beneficiaries_attributed, jobs_attributed, emissions_reduction_attributed,
	portfolio_impact_percentage, portfolio_esg_contribution, portfolio_climate_contribution,
	attribution_method, confidence_level, created_at`

// UpsertAttribution stores an attribution under (investment_id, date),
// replacing the previous row for that key entirely.
func (r *AnalyticsRepository) UpsertAttribution(a *Attribution) error {
	contributions, err := json.Marshal(a.SDGContributions)
	if err != nil {
		return fmt.Errorf("failed to encode sdg contributions: %w", err)
	}
	secondary, err := json.Marshal(a.SecondarySDGContributions)
	if err != nil {
		return fmt.Errorf("failed to encode secondary sdgs: %w", err)
	}

	var existingID int64
	err = r.db.QueryRow(
		"SELECT id FROM attributions WHERE investment_id = ? AND attribution_date = ?",
		a.InvestmentID, a.AttributionDate,
	).Scan(&existingID)

	now := time.Now().Unix()
	switch {
	case err == sql.ErrNoRows:
		res, err := r.db.Exec(`
			INSERT INTO attributions
			(investment_id, attribution_date, sdg_contributions, primary_sdg_contribution,
			 secondary_sdg_contributions, total_impact_score, beneficiaries_attributed,
			 jobs_attributed, emissions_reduction_attributed, portfolio_impact_percentage,
			 portfolio_esg_contribution, portfolio_climate_contribution, attribution_method,
			 confidence_level, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			a.InvestmentID, a.AttributionDate, string(contributions), a.PrimarySDGContribution,
			string(secondary), a.TotalImpactScore, a.BeneficiariesAttributed,
			a.JobsAttributed, a.EmissionsReductionAttributed, a.PortfolioImpactPercentage,
			a.PortfolioESGContribution, a.PortfolioClimateContribution, a.AttributionMethod,
			a.ConfidenceLevel, now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert attribution: %w", err)
		}
		a.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get attribution id: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to look up attribution: %w", err)
	default:
		_, err := r.db.Exec(`
			UPDATE attributions SET
				sdg_contributions = ?, primary_sdg_contribution = ?, secondary_sdg_contributions = ?,
				total_impact_score = ?, beneficiaries_attributed = ?, jobs_attributed = ?,
				emissions_reduction_attributed = ?, portfolio_impact_percentage = ?,
				portfolio_esg_contribution = ?, portfolio_climate_contribution = ?,
				attribution_method = ?, confidence_level = ?, updated_at = ?
			WHERE id = ?
		`,
			string(contributions), a.PrimarySDGContribution, string(secondary),
			a.TotalImpactScore, a.BeneficiariesAttributed, a.JobsAttributed,
			a.EmissionsReductionAttributed, a.PortfolioImpactPercentage,
			a.PortfolioESGContribution, a.PortfolioClimateContribution,
			a.AttributionMethod, a.ConfidenceLevel, now, existingID,
		)
		if err != nil {
			return fmt.Errorf("failed to update attribution: %w", err)
		}
		a.ID = existingID
	}

	a.CreatedAt = time.Unix(now, 0).UTC()
	return nil
}

// ListAttributions returns attributions, newest first. investmentID 0 lists all.
func (r *AnalyticsRepository) ListAttributions(investmentID int64) ([]Attribution, error) {
	query := "SELECT " + attributionColumns + " FROM attributions"
	var args []interface{}
	if investmentID > 0 {
		query += " WHERE investment_id = ?"
		args = append(args, investmentID)
	}
	query += " ORDER BY attribution_date DESC, id DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attributions: %w", err)
	}
	defer rows.Close()

	var attributions []Attribution
	for rows.Next() {
		var a Attribution
		var contributions, secondary string
		var primary sql.NullInt64
		var createdAt int64

		err := rows.Scan(&a.ID, &a.InvestmentID, &a.AttributionDate, &contributions,
			&primary, &secondary, &a.TotalImpactScore,
			&a.BeneficiariesAttributed, &a.JobsAttributed, &a.EmissionsReductionAttributed,
			&a.PortfolioImpactPercentage, &a.PortfolioESGContribution, &a.PortfolioClimateContribution,
			&a.AttributionMethod, &a.ConfidenceLevel, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attribution: %w", err)
		}

		if primary.Valid {
			v := int(primary.Int64)
			a.PrimarySDGContribution = &v
		}
		a.CreatedAt = time.Unix(createdAt, 0).UTC()
		if err := json.Unmarshal([]byte(contributions), &a.SDGContributions); err != nil {
			return nil, fmt.Errorf("failed to decode sdg contributions: %w", err)
		}
		if err := json.Unmarshal([]byte(secondary), &a.SecondarySDGContributions); err != nil {
			return nil, fmt.Errorf("failed to decode secondary sdgs: %w", err)
		}
		attributions = append(attributions, a)
	}
	return attributions, rows.Err()
}

// nullString converts empty strings to NULL for nullable columns
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableFloat(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
