package portfolio

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/verdantfund/verdant/internal/domain"
)

// PortfolioService orchestrates holding and assessment operations.
//
// It validates caller input before touching the repositories and maps
// missing rows to domain.NotFoundError so handlers can translate them
// to 404s uniformly.
type PortfolioService struct {
	investments *InvestmentRepository
	assessments *AssessmentRepository
	log         zerolog.Logger
}

// NewPortfolioService creates a new portfolio service
func NewPortfolioService(investments *InvestmentRepository, assessments *AssessmentRepository, log zerolog.Logger) *PortfolioService {
	return &PortfolioService{
		investments: investments,
		assessments: assessments,
		log:         log.With().Str("service", "portfolio").Logger(),
	}
}

// InvestmentMetrics is the latest-per-type assessment view of one holding.
type InvestmentMetrics struct {
	InvestmentID int64         `json:"investment_id"`
	Name         string        `json:"name"`
	ESG          *ESGScore     `json:"esg,omitempty"`
	ClimateRisk  *ClimateRisk  `json:"climate_risk,omitempty"`
	SocialImpact *SocialImpact `json:"social_impact,omitempty"`
	Emissions    *GHGEmissions `json:"emissions,omitempty"`
	SimpleROI    *float64      `json:"simple_roi,omitempty"`
}

// CreateInvestment validates and stores a new holding
func (s *PortfolioService) CreateInvestment(inv Investment) (*Investment, error) {
	if err := validateInvestment(inv); err != nil {
		return nil, err
	}
	if inv.Status == "" {
		inv.Status = StatusActive
	}

	created, err := s.investments.Create(inv)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("investment_id", created.ID).
		Str("name", created.Name).
		Str("sector", created.Sector).
		Msg("Investment created")
	return created, nil
}

// GetInvestment returns one holding by id
func (s *PortfolioService) GetInvestment(id int64) (*Investment, error) {
	inv, err := s.investments.GetByID(id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.NewNotFound("investment", id)
	}
	return inv, nil
}

// ListInvestments returns holdings matching the filter
func (s *PortfolioService) ListInvestments(filter InvestmentFilter) ([]Investment, error) {
	if filter.Status != "" && !validStatus(filter.Status) {
		return nil, domain.NewValidation("status", fmt.Sprintf("unknown status %q", filter.Status))
	}
	return s.investments.List(filter)
}

// UpdateInvestment validates and replaces the stored fields of a holding
func (s *PortfolioService) UpdateInvestment(id int64, inv Investment) (*Investment, error) {
	if err := validateInvestment(inv); err != nil {
		return nil, err
	}

	existing, err := s.investments.GetByID(id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, domain.NewNotFound("investment", id)
	}

	inv.ID = id
	if inv.Status == "" {
		inv.Status = existing.Status
	}
	if !validStatus(inv.Status) {
		return nil, domain.NewValidation("status", fmt.Sprintf("unknown status %q", inv.Status))
	}
	return s.investments.Update(inv)
}

// DivestInvestment soft-deletes a holding by moving it to the divested status
func (s *PortfolioService) DivestInvestment(id int64) error {
	updated, err := s.investments.UpdateStatus(id, StatusDivested)
	if err != nil {
		return err
	}
	if !updated {
		return domain.NewNotFound("investment", id)
	}
	s.log.Info().Int64("investment_id", id).Msg("Investment divested")
	return nil
}

// AddESGScore appends an ESG assessment to a holding
func (s *PortfolioService) AddESGScore(investmentID int64, score ESGScore) (*ESGScore, error) {
	if err := s.requireInvestment(investmentID); err != nil {
		return nil, err
	}
	if err := validateDate("assessment_date", score.AssessmentDate, true); err != nil {
		return nil, err
	}
	for field, v := range map[string]*float64{
		"overall_esg_score":   score.OverallESGScore,
		"environmental_score": score.EnvironmentalScore,
		"social_score":        score.SocialScore,
		"governance_score":    score.GovernanceScore,
	} {
		if err := validateRange(field, v, 0, 100); err != nil {
			return nil, err
		}
	}

	score.InvestmentID = investmentID
	return s.assessments.AddESGScore(score)
}

// AddClimateRisk appends a climate-risk assessment to a holding
func (s *PortfolioService) AddClimateRisk(investmentID int64, risk ClimateRisk) (*ClimateRisk, error) {
	if err := s.requireInvestment(investmentID); err != nil {
		return nil, err
	}
	if err := validateDate("assessment_date", risk.AssessmentDate, true); err != nil {
		return nil, err
	}
	for field, v := range map[string]*float64{
		"physical_risk_score":       risk.PhysicalRiskScore,
		"transition_risk_score":     risk.TransitionRiskScore,
		"climate_opportunity_score": risk.ClimateOpportunityScore,
	} {
		if err := validateRange(field, v, 0, 10); err != nil {
			return nil, err
		}
	}

	risk.InvestmentID = investmentID
	return s.assessments.AddClimateRisk(risk)
}

// AddSocialImpact appends a social-impact assessment to a holding
func (s *PortfolioService) AddSocialImpact(investmentID int64, impact SocialImpact) (*SocialImpact, error) {
	if err := s.requireInvestment(investmentID); err != nil {
		return nil, err
	}
	if err := validateDate("assessment_date", impact.AssessmentDate, true); err != nil {
		return nil, err
	}
	if err := validateRange("overall_impact_score", impact.OverallImpactScore, 0, 10); err != nil {
		return nil, err
	}
	for sdg, score := range impact.SDGAlignment {
		if score < 0 || score > 10 {
			return nil, domain.NewValidation("sdg_alignment", fmt.Sprintf("score for %s must be within [0, 10]", sdg))
		}
	}

	impact.InvestmentID = investmentID
	return s.assessments.AddSocialImpact(impact)
}

// AddEmissions appends a GHG emissions report to a holding
func (s *PortfolioService) AddEmissions(investmentID int64, em GHGEmissions) (*GHGEmissions, error) {
	if err := s.requireInvestment(investmentID); err != nil {
		return nil, err
	}
	if em.ReportingYear < 1900 || em.ReportingYear > time.Now().Year()+1 {
		return nil, domain.NewValidation("reporting_year", fmt.Sprintf("implausible reporting year %d", em.ReportingYear))
	}

	em.InvestmentID = investmentID
	return s.assessments.AddEmissions(em)
}

// GetMetrics assembles the latest assessment of each type for a holding
func (s *PortfolioService) GetMetrics(investmentID int64) (*InvestmentMetrics, error) {
	inv, err := s.GetInvestment(investmentID)
	if err != nil {
		return nil, err
	}

	metrics := &InvestmentMetrics{InvestmentID: inv.ID, Name: inv.Name}
	if roi, ok := inv.SimpleROI(); ok {
		metrics.SimpleROI = &roi
	}

	if metrics.ESG, err = s.assessments.LatestESG(investmentID); err != nil {
		return nil, err
	}
	if metrics.ClimateRisk, err = s.assessments.LatestClimateRisk(investmentID); err != nil {
		return nil, err
	}
	if metrics.SocialImpact, err = s.assessments.LatestSocialImpact(investmentID); err != nil {
		return nil, err
	}
	if metrics.Emissions, err = s.assessments.LatestEmissions(investmentID); err != nil {
		return nil, err
	}
	return metrics, nil
}

func (s *PortfolioService) requireInvestment(id int64) error {
	inv, err := s.investments.GetByID(id)
	if err != nil {
		return err
	}
	if inv == nil {
		return domain.NewNotFound("investment", id)
	}
	return nil
}

func validateInvestment(inv Investment) error {
	if inv.Name == "" {
		return domain.NewValidation("name", "name is required")
	}
	if err := validateDate("investment_date", inv.InvestmentDate, false); err != nil {
		return err
	}
	if inv.InvestmentAmount != nil && *inv.InvestmentAmount < 0 {
		return domain.NewValidation("investment_amount", "must not be negative")
	}
	if inv.CurrentValue != nil && *inv.CurrentValue < 0 {
		return domain.NewValidation("current_value", "must not be negative")
	}
	if err := validateRange("ownership_percentage", inv.OwnershipPercentage, 0, 100); err != nil {
		return err
	}
	if inv.Status != "" && !validStatus(inv.Status) {
		return domain.NewValidation("status", fmt.Sprintf("unknown status %q", inv.Status))
	}
	return nil
}

func validStatus(status string) bool {
	switch status {
	case StatusActive, StatusExited, StatusDivested:
		return true
	}
	return false
}

// validateDate checks the ISO yyyy-mm-dd format used throughout the store.
func validateDate(field, value string, required bool) error {
	if value == "" {
		if required {
			return domain.NewValidation(field, "date is required")
		}
		return nil
	}
	if _, err := time.Parse("2006-01-02", value); err != nil {
		return domain.NewValidation(field, fmt.Sprintf("%q is not a valid date (expected YYYY-MM-DD)", value))
	}
	return nil
}

func validateRange(field string, value *float64, min, max float64) error {
	if value == nil {
		return nil
	}
	if *value < min || *value > max {
		return domain.NewValidation(field, fmt.Sprintf("must be within [%g, %g]", min, max))
	}
	return nil
}
