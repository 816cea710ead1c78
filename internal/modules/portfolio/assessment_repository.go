package portfolio

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// AssessmentRepository handles the four assessment histories of a holding.
// Database: portfolio.db (esg_scores, climate_risks, social_impacts,
// ghg_emissions tables).
//
// Latest* queries order by assessment date descending with id ascending on
// ties, so the first-inserted assessment of a day wins deterministically.
type AssessmentRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewAssessmentRepository creates a new assessment repository
func NewAssessmentRepository(db *sql.DB, log zerolog.Logger) *AssessmentRepository {
	return &AssessmentRepository{
		db:  db,
		log: log.With().Str("repository", "assessment").Logger(),
	}
}

// AddESGScore appends an ESG assessment
func (r *AssessmentRepository) AddESGScore(score ESGScore) (*ESGScore, error) {
	result, err := r.db.Exec(`
		INSERT INTO esg_scores
		(investment_id, assessment_date, overall_esg_score, environmental_score,
		 social_score, governance_score, data_source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		score.InvestmentID,
		score.AssessmentDate,
		score.OverallESGScore,
		score.EnvironmentalScore,
		score.SocialScore,
		score.GovernanceScore,
		nullString(score.DataSource),
		time.Now().Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert esg score: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get esg score id: %w", err)
	}
	score.ID = id
	score.CreatedAt = time.Now().UTC()
	return &score, nil
}

// LatestESG returns the most recent ESG assessment for a holding, or nil
func (r *AssessmentRepository) LatestESG(investmentID int64) (*ESGScore, error) {
	scores, err := r.RecentESG(investmentID, 1)
	if err != nil || len(scores) == 0 {
		return nil, err
	}
	return &scores[0], nil
}

// RecentESG returns up to limit ESG assessments, newest first
func (r *AssessmentRepository) RecentESG(investmentID int64, limit int) ([]ESGScore, error) {
	rows, err := r.db.Query(`
		SELECT id, investment_id, assessment_date, overall_esg_score,
		       environmental_score, social_score, governance_score, data_source, created_at
		FROM esg_scores
		WHERE investment_id = ?
		ORDER BY assessment_date DESC, id ASC
		LIMIT ?
	`, investmentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query esg scores: %w", err)
	}
	defer rows.Close()

	var scores []ESGScore
	for rows.Next() {
		var s ESGScore
		var overall, env, social, gov sql.NullFloat64
		var source sql.NullString
		var createdAt int64

		if err := rows.Scan(&s.ID, &s.InvestmentID, &s.AssessmentDate,
			&overall, &env, &social, &gov, &source, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan esg score: %w", err)
		}

		s.OverallESGScore = nullableFloat(overall)
		s.EnvironmentalScore = nullableFloat(env)
		s.SocialScore = nullableFloat(social)
		s.GovernanceScore = nullableFloat(gov)
		s.DataSource = source.String
		s.CreatedAt = time.Unix(createdAt, 0).UTC()
		scores = append(scores, s)
	}

	return scores, rows.Err()
}

// AddClimateRisk appends a climate-risk assessment
func (r *AssessmentRepository) AddClimateRisk(risk ClimateRisk) (*ClimateRisk, error) {
	result, err := r.db.Exec(`
		INSERT INTO climate_risks
		(investment_id, assessment_date, physical_risk_score, transition_risk_score,
		 climate_opportunity_score, assessment_scenario, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		risk.InvestmentID,
		risk.AssessmentDate,
		risk.PhysicalRiskScore,
		risk.TransitionRiskScore,
		risk.ClimateOpportunityScore,
		nullString(risk.AssessmentScenario),
		time.Now().Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert climate risk: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get climate risk id: %w", err)
	}
	risk.ID = id
	risk.CreatedAt = time.Now().UTC()
	return &risk, nil
}

// LatestClimateRisk returns the most recent climate-risk assessment, or nil
func (r *AssessmentRepository) LatestClimateRisk(investmentID int64) (*ClimateRisk, error) {
	risks, err := r.RecentClimateRisks(investmentID, 1)
	if err != nil || len(risks) == 0 {
		return nil, err
	}
	return &risks[0], nil
}

// RecentClimateRisks returns up to limit climate-risk assessments, newest first
func (r *AssessmentRepository) RecentClimateRisks(investmentID int64, limit int) ([]ClimateRisk, error) {
	rows, err := r.db.Query(`
		SELECT id, investment_id, assessment_date, physical_risk_score,
		       transition_risk_score, climate_opportunity_score, assessment_scenario, created_at
		FROM climate_risks
		WHERE investment_id = ?
		ORDER BY assessment_date DESC, id ASC
		LIMIT ?
	`, investmentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query climate risks: %w", err)
	}
	defer rows.Close()

	var risks []ClimateRisk
	for rows.Next() {
		var cr ClimateRisk
		var physical, transition, opportunity sql.NullFloat64
		var scenario sql.NullString
		var createdAt int64

		if err := rows.Scan(&cr.ID, &cr.InvestmentID, &cr.AssessmentDate,
			&physical, &transition, &opportunity, &scenario, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan climate risk: %w", err)
		}

		cr.PhysicalRiskScore = nullableFloat(physical)
		cr.TransitionRiskScore = nullableFloat(transition)
		cr.ClimateOpportunityScore = nullableFloat(opportunity)
		cr.AssessmentScenario = scenario.String
		cr.CreatedAt = time.Unix(createdAt, 0).UTC()
		risks = append(risks, cr)
	}

	return risks, rows.Err()
}

// AddSocialImpact appends a social-impact assessment
func (r *AssessmentRepository) AddSocialImpact(impact SocialImpact) (*SocialImpact, error) {
	var sdgJSON interface{}
	if len(impact.SDGAlignment) > 0 {
		encoded, err := json.Marshal(impact.SDGAlignment)
		if err != nil {
			return nil, fmt.Errorf("failed to encode sdg alignment: %w", err)
		}
		sdgJSON = string(encoded)
	}

	result, err := r.db.Exec(`
		INSERT INTO social_impacts
		(investment_id, assessment_date, overall_impact_score, beneficiaries_reached,
		 jobs_created, sdg_alignment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		impact.InvestmentID,
		impact.AssessmentDate,
		impact.OverallImpactScore,
		impact.BeneficiariesReached,
		impact.JobsCreated,
		sdgJSON,
		time.Now().Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert social impact: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get social impact id: %w", err)
	}
	impact.ID = id
	impact.CreatedAt = time.Now().UTC()
	return &impact, nil
}

// LatestSocialImpact returns the most recent social-impact assessment, or nil
func (r *AssessmentRepository) LatestSocialImpact(investmentID int64) (*SocialImpact, error) {
	row := r.db.QueryRow(`
		SELECT id, investment_id, assessment_date, overall_impact_score,
		       beneficiaries_reached, jobs_created, sdg_alignment, created_at
		FROM social_impacts
		WHERE investment_id = ?
		ORDER BY assessment_date DESC, id ASC
		LIMIT 1
	`, investmentID)

	var si SocialImpact
	var impact, beneficiaries, jobs sql.NullFloat64
	var sdgJSON sql.NullString
	var createdAt int64

	err := row.Scan(&si.ID, &si.InvestmentID, &si.AssessmentDate,
		&impact, &beneficiaries, &jobs, &sdgJSON, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get social impact: %w", err)
	}

	si.OverallImpactScore = nullableFloat(impact)
	si.BeneficiariesReached = nullableFloat(beneficiaries)
	si.JobsCreated = nullableFloat(jobs)
	si.CreatedAt = time.Unix(createdAt, 0).UTC()

	if sdgJSON.Valid && sdgJSON.String != "" {
		if err := json.Unmarshal([]byte(sdgJSON.String), &si.SDGAlignment); err != nil {
			r.log.Warn().
				Err(err).
				Int64("investment_id", investmentID).
				Msg("Failed to decode sdg alignment, ignoring")
			si.SDGAlignment = nil
		}
	}

	return &si, nil
}

// AddEmissions appends a GHG emissions report
func (r *AssessmentRepository) AddEmissions(em GHGEmissions) (*GHGEmissions, error) {
	result, err := r.db.Exec(`
		INSERT INTO ghg_emissions
		(investment_id, reporting_year, scope1_emissions, scope2_emissions,
		 scope3_emissions, total_emissions, emissions_intensity_revenue, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		em.InvestmentID,
		em.ReportingYear,
		em.Scope1Emissions,
		em.Scope2Emissions,
		em.Scope3Emissions,
		em.TotalEmissions,
		em.EmissionsIntensityRevenue,
		time.Now().Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert emissions: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get emissions id: %w", err)
	}
	em.ID = id
	em.CreatedAt = time.Now().UTC()
	return &em, nil
}

// LatestEmissions returns the most recent emissions report, or nil
func (r *AssessmentRepository) LatestEmissions(investmentID int64) (*GHGEmissions, error) {
	reports, err := r.RecentEmissions(investmentID, 1)
	if err != nil || len(reports) == 0 {
		return nil, err
	}
	return &reports[0], nil
}

// RecentEmissions returns up to limit emissions reports, newest year first
func (r *AssessmentRepository) RecentEmissions(investmentID int64, limit int) ([]GHGEmissions, error) {
	rows, err := r.db.Query(`
		SELECT id, investment_id, reporting_year, scope1_emissions, scope2_emissions,
		       scope3_emissions, total_emissions, emissions_intensity_revenue, created_at
		FROM ghg_emissions
		WHERE investment_id = ?
		ORDER BY reporting_year DESC, id ASC
		LIMIT ?
	`, investmentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query emissions: %w", err)
	}
	defer rows.Close()

	var reports []GHGEmissions
	for rows.Next() {
		var em GHGEmissions
		var s1, s2, s3, total, intensity sql.NullFloat64
		var createdAt int64

		if err := rows.Scan(&em.ID, &em.InvestmentID, &em.ReportingYear,
			&s1, &s2, &s3, &total, &intensity, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan emissions: %w", err)
		}

		em.Scope1Emissions = nullableFloat(s1)
		em.Scope2Emissions = nullableFloat(s2)
		em.Scope3Emissions = nullableFloat(s3)
		em.TotalEmissions = nullableFloat(total)
		em.EmissionsIntensityRevenue = nullableFloat(intensity)
		em.CreatedAt = time.Unix(createdAt, 0).UTC()
		reports = append(reports, em)
	}

	return reports, rows.Err()
}
