// Package portfolio provides holdings and assessment storage.
//
// Investments and their assessment history (ESG scores, climate risks,
// social impact records, GHG emissions) live in portfolio.db. The analytics
// module reads its per-call snapshots from the repositories here; every
// "latest assessment" query resolves ties on assessment date by lowest id,
// so re-running an analysis against unchanged data is deterministic.
package portfolio

import "time"

// Investment statuses. Soft deletion moves a holding to StatusDivested;
// analytics only ever see StatusActive holdings except peer benchmarks,
// which aggregate across all statuses.
const (
	StatusActive   = "active"
	StatusExited   = "exited"
	StatusDivested = "divested"
)

// Investment represents a single portfolio holding.
// Monetary and date fields are optional: analytics treat missing values as
// "no observation", never as zero.
type Investment struct {
	ID                  int64     `json:"id"`
	Name                string    `json:"name"`
	CompanyName         string    `json:"company_name,omitempty"`
	Sector              string    `json:"sector,omitempty"`
	Industry            string    `json:"industry,omitempty"`
	Region              string    `json:"region,omitempty"`
	Country             string    `json:"country,omitempty"`
	InvestmentType      string    `json:"investment_type,omitempty"`
	InvestmentDate      string    `json:"investment_date,omitempty"` // ISO date (YYYY-MM-DD)
	InvestmentAmount    *float64  `json:"investment_amount"`
	CurrentValue        *float64  `json:"current_value"`
	OwnershipPercentage *float64  `json:"ownership_percentage"`
	Status              string    `json:"status"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Value returns the holding's portfolio value: current value when known,
// else the invested amount, else 0. Zero values fall through like missing
// ones so an unvalued holding still weighs in at its invested amount.
func (inv Investment) Value() float64 {
	if inv.CurrentValue != nil && *inv.CurrentValue != 0 {
		return *inv.CurrentValue
	}
	if inv.InvestmentAmount != nil && *inv.InvestmentAmount != 0 {
		return *inv.InvestmentAmount
	}
	return 0
}

// SimpleROI returns (current - amount) / amount x 100, or false when either
// input is missing or zero. A zero current value reads as "not yet valued",
// not as a total loss.
func (inv Investment) SimpleROI() (float64, bool) {
	if inv.InvestmentAmount == nil || inv.CurrentValue == nil ||
		*inv.InvestmentAmount == 0 || *inv.CurrentValue == 0 {
		return 0, false
	}
	return (*inv.CurrentValue - *inv.InvestmentAmount) / *inv.InvestmentAmount * 100, true
}

// ESGScore is one ESG assessment of a holding.
type ESGScore struct {
	ID                 int64     `json:"id"`
	InvestmentID       int64     `json:"investment_id"`
	AssessmentDate     string    `json:"assessment_date"` // ISO date
	OverallESGScore    *float64  `json:"overall_esg_score"`
	EnvironmentalScore *float64  `json:"environmental_score"`
	SocialScore        *float64  `json:"social_score"`
	GovernanceScore    *float64  `json:"governance_score"`
	DataSource         string    `json:"data_source,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// ClimateRisk is one climate-risk assessment of a holding.
type ClimateRisk struct {
	ID                      int64     `json:"id"`
	InvestmentID            int64     `json:"investment_id"`
	AssessmentDate          string    `json:"assessment_date"`
	PhysicalRiskScore       *float64  `json:"physical_risk_score"`
	TransitionRiskScore     *float64  `json:"transition_risk_score"`
	ClimateOpportunityScore *float64  `json:"climate_opportunity_score"`
	AssessmentScenario      string    `json:"assessment_scenario,omitempty"`
	CreatedAt               time.Time `json:"created_at"`
}

// MaxRisk returns the worse of physical and transition risk with missing
// sub-scores read as 0. An assessment with neither score still yields 0,
// which is distinct from having no assessment at all.
func (cr ClimateRisk) MaxRisk() float64 {
	physical := 0.0
	if cr.PhysicalRiskScore != nil {
		physical = *cr.PhysicalRiskScore
	}
	transition := 0.0
	if cr.TransitionRiskScore != nil {
		transition = *cr.TransitionRiskScore
	}
	if physical > transition {
		return physical
	}
	return transition
}

// SocialImpact is one social-impact assessment of a holding.
// SDGAlignment maps SDG numbers ("1".."17") to alignment scores.
type SocialImpact struct {
	ID                   int64              `json:"id"`
	InvestmentID         int64              `json:"investment_id"`
	AssessmentDate       string             `json:"assessment_date"`
	OverallImpactScore   *float64           `json:"overall_impact_score"`
	BeneficiariesReached *float64           `json:"beneficiaries_reached"`
	JobsCreated          *float64           `json:"jobs_created"`
	SDGAlignment         map[string]float64 `json:"sdg_alignment,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
}

// GHGEmissions is one emissions report for a holding. Reporting year, not
// assessment date, is the recency axis.
type GHGEmissions struct {
	ID                        int64     `json:"id"`
	InvestmentID              int64     `json:"investment_id"`
	ReportingYear             int       `json:"reporting_year"`
	Scope1Emissions           *float64  `json:"scope1_emissions"`
	Scope2Emissions           *float64  `json:"scope2_emissions"`
	Scope3Emissions           *float64  `json:"scope3_emissions"`
	TotalEmissions            *float64  `json:"total_emissions"`
	EmissionsIntensityRevenue *float64  `json:"emissions_intensity_revenue"`
	CreatedAt                 time.Time `json:"created_at"`
}

// InvestmentFilter narrows investment listings. Empty fields match all.
type InvestmentFilter struct {
	Status   string
	Sector   string
	Industry string
	Region   string
}
