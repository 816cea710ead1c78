package analytics

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/verdantfund/verdant/internal/domain"
)

// Simulation request defaults, applied for omitted fields.
const (
	defaultIterations   = 10000
	defaultHorizon      = 5
	defaultVolatility   = 0.15
	defaultScenarioType = "baseline"
	defaultCreatedBy    = "System"
	defaultListLimit    = 10
)

// simulationPercentiles are the marks stored with every run.
var simulationPercentiles = []int{5, 10, 25, 50, 75, 90, 95}

// SimulationService runs Monte Carlo projections of portfolio return,
// impact and ESG over a time horizon. A run is one synchronous call: the
// loop has no yield points, so a large iteration count blocks the caller
// for the duration.
type SimulationService struct {
	metrics *MetricExtractor
	repo    *AnalyticsRepository
	cache   *DistributionCache
	log     zerolog.Logger
}

// NewSimulationService creates a new simulation service
func NewSimulationService(metrics *MetricExtractor, repo *AnalyticsRepository, cache *DistributionCache, log zerolog.Logger) *SimulationService {
	return &SimulationService{
		metrics: metrics,
		repo:    repo,
		cache:   cache,
		log:     log.With().Str("service", "simulation").Logger(),
	}
}

// holdingInput is one holding reduced to the numbers the loop needs.
type holdingInput struct {
	weight    float64
	annualROI float64
	impact    float64
	esg       float64
}

// Run executes one simulation and persists the result. The seed is taken
// from the request when supplied, otherwise derived from the clock; either
// way it is stored with the result, so any run can be replayed exactly.
func (s *SimulationService) Run(req SimulationRequest) (*SimulationResult, error) {
	if req.SimulationName == "" {
		return nil, domain.NewValidation("simulation_name", "is required")
	}

	iterations := defaultIterations
	if req.NumIterations != nil {
		if *req.NumIterations <= 0 {
			return nil, domain.NewValidation("num_iterations", "must be positive")
		}
		iterations = *req.NumIterations
	}
	horizon := defaultHorizon
	if req.TimeHorizonYears != nil {
		if *req.TimeHorizonYears <= 0 {
			return nil, domain.NewValidation("time_horizon_years", "must be positive")
		}
		horizon = *req.TimeHorizonYears
	}
	volatility := defaultVolatility
	if req.MarketVolatility != nil {
		if *req.MarketVolatility < 0 {
			return nil, domain.NewValidation("market_volatility", "must not be negative")
		}
		volatility = *req.MarketVolatility
	}
	scenario := req.ScenarioType
	if scenario == "" {
		scenario = defaultScenarioType
	}
	createdBy := req.CreatedBy
	if createdBy == "" {
		createdBy = defaultCreatedBy
	}
	seed := uint64(time.Now().UnixNano())
	if req.Seed != nil {
		seed = *req.Seed
	}

	rows, err := s.metrics.ActiveHoldings()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.NewInsufficientData("no active investments for simulation")
	}
	inputs := buildInputs(rows)

	// Perturbations are in percent, matching the annual return estimates.
	noise := distuv.Normal{
		Mu:    0,
		Sigma: volatility * 100,
		Src:   rand.NewPCG(seed, seed),
	}

	roiOutcomes := make([]float64, iterations)
	impactOutcomes := make([]float64, iterations)
	esgOutcomes := make([]float64, iterations)
	for i := 0; i < iterations; i++ {
		var roi, impact, esg float64
		for _, in := range inputs {
			roi += (in.annualROI + noise.Rand()) * in.weight
			impact += in.impact * in.weight
			esg += in.esg * in.weight
		}
		// Horizon scaling is linear, not compounded.
		roiOutcomes[i] = roi * float64(horizon)
		impactOutcomes[i] = impact
		esgOutcomes[i] = esg
	}

	sortedROI := sortedCopy(roiOutcomes)
	var95Idx := int(float64(iterations) * 0.05)
	var99Idx := int(float64(iterations) * 0.01)
	var95 := sortedROI[0]
	if var95Idx < len(sortedROI) {
		var95 = sortedROI[var95Idx]
	}
	var99 := sortedROI[0]
	if var99Idx < len(sortedROI) {
		var99 = sortedROI[var99Idx]
	}
	cvar95 := var95
	if var95Idx > 0 {
		cvar95 = Mean(sortedROI[:var95Idx])
	}

	var positive, onTarget, belowThreshold int
	for i := 0; i < iterations; i++ {
		if roiOutcomes[i] > 0 {
			positive++
		}
		if impactOutcomes[i] >= 7.0 {
			onTarget++
		}
		if roiOutcomes[i] < -10 {
			belowThreshold++
		}
	}
	total := float64(iterations)

	expectedROI := Mean(roiOutcomes)
	expectedImpact := Mean(impactOutcomes)
	sampleLen := min(100, iterations)

	result := &SimulationResult{
		RunID:                  uuid.New().String(),
		SimulationName:         req.SimulationName,
		SimulationDate:         time.Now().UTC().Format("2006-01-02"),
		NumIterations:          iterations,
		TimeHorizonYears:       horizon,
		ConfidenceLevels:       []int{90, 95, 99},
		ScenarioType:           scenario,
		ClimateScenario:        req.ClimateScenario,
		MarketVolatility:       volatility,
		Seed:                   seed,
		ExpectedROI:            expectedROI,
		ROIStdDev:              SampleStdDev(roiOutcomes),
		ROIPercentiles:         Percentiles(roiOutcomes, simulationPercentiles),
		ExpectedImpactScore:    expectedImpact,
		ImpactScoreStdDev:      SampleStdDev(impactOutcomes),
		ImpactScorePercentiles: Percentiles(impactOutcomes, simulationPercentiles),
		ExpectedESGScore:       Mean(esgOutcomes),
		ESGScoreStdDev:         SampleStdDev(esgOutcomes),
		ValueAtRisk95:          var95,
		ValueAtRisk99:          var99,
		ConditionalVaR95:       cvar95,

		ProbabilityPositiveROI:   float64(positive) / total * 100,
		ProbabilityTargetImpact:  float64(onTarget) / total * 100,
		ProbabilityRiskThreshold: float64(belowThreshold) / total * 100,

		IterationResults: IterationSamples{
			SampleROI:    roiOutcomes[:sampleLen],
			SampleImpact: impactOutcomes[:sampleLen],
		},
		// Single-scenario analysis; the baseline key is the only one produced.
		ScenarioAnalysis: map[string]ScenarioOutcome{
			"baseline": {ExpectedROI: expectedROI, ExpectedImpact: expectedImpact},
		},
		Notes:     fmt.Sprintf("Monte Carlo simulation with %d iterations over %d years", iterations, horizon),
		CreatedBy: createdBy,
	}

	if err := s.repo.InsertSimulation(result); err != nil {
		return nil, err
	}

	// The result row is committed; a cache failure only loses re-queries.
	if err := s.cache.Store(result.RunID, SeriesROI, sortedROI); err != nil {
		s.log.Warn().Err(err).Str("run_id", result.RunID).Msg("Failed to cache roi distribution")
	}
	if err := s.cache.Store(result.RunID, SeriesImpact, sortedCopy(impactOutcomes)); err != nil {
		s.log.Warn().Err(err).Str("run_id", result.RunID).Msg("Failed to cache impact distribution")
	}

	s.log.Info().
		Str("run_id", result.RunID).
		Uint64("seed", seed).
		Int("iterations", iterations).
		Int("holdings", len(inputs)).
		Float64("expected_roi", expectedROI).
		Msg("Simulation completed")
	return result, nil
}

// buildInputs reduces holdings to weights and per-holding estimates.
// Weights come from current value (invested amount for unvalued holdings);
// a portfolio with no value at all gets all-zero weights.
func buildInputs(rows []HoldingMetrics) []holdingInput {
	var total float64
	for _, row := range rows {
		total += row.Investment.Value()
	}

	now := time.Now().UTC()
	inputs := make([]holdingInput, len(rows))
	for i, row := range rows {
		weight := 0.0
		if total > 0 {
			weight = row.Investment.Value() / total
		}
		inputs[i] = holdingInput{
			weight:    weight,
			annualROI: row.AnnualReturnEstimate(now),
			impact:    row.ImpactOrDefault(),
			esg:       row.ESGOrDefault(),
		}
	}
	return inputs
}

// List returns recent runs, newest first. limit <= 0 takes the default.
func (s *SimulationService) List(limit int) ([]SimulationResult, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.repo.ListSimulations(limit)
}

// Get returns one run by row id
func (s *SimulationService) Get(id int64) (*SimulationResult, error) {
	result, err := s.repo.GetSimulation(id)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, domain.NewNotFound("simulation", id)
	}
	return result, nil
}

// DistributionPercentile answers an arbitrary percentile query against a
// completed run's cached outcome series, without re-running anything.
func (s *SimulationService) DistributionPercentile(id int64, series string, pct float64) (*DistributionQuery, error) {
	if series != SeriesROI && series != SeriesImpact {
		return nil, domain.NewValidation("series", "must be roi or impact")
	}
	if pct < 0 || pct > 100 {
		return nil, domain.NewValidation("percentile", "must be between 0 and 100")
	}

	result, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	sorted, err := s.cache.Load(result.RunID, series)
	if err != nil {
		return nil, err
	}
	if len(sorted) == 0 {
		return nil, domain.NewNotFound(
			fmt.Sprintf("cached %s distribution for simulation %d (re-run to rebuild)", series, id), nil)
	}

	return &DistributionQuery{
		SimulationID: id,
		RunID:        result.RunID,
		Series:       series,
		Percentile:   pct,
		Value:        Percentile(sorted, pct),
		Iterations:   len(sorted),
	}, nil
}
