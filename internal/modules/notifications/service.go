package notifications

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/verdantfund/verdant/internal/modules/portfolio"
)

// Scan thresholds
const (
	esgChangeThreshold       = 10.0 // points
	riskChangeThreshold      = 2.0  // points
	emissionsChangeThreshold = 15.0 // percent
	criticalRiskThreshold    = 8.0
	highRiskThreshold        = 6.0
	lowESGThreshold          = 30.0
	changeWindowDays         = 30
	assessmentDueDays        = 90
	assessmentUrgentDays     = 180
)

// InvestmentSource provides holdings from the portfolio store.
// Implemented by portfolio.InvestmentRepository.
type InvestmentSource interface {
	List(filter portfolio.InvestmentFilter) ([]portfolio.Investment, error)
}

// AssessmentSource provides per-holding assessment history, newest first.
// Implemented by portfolio.AssessmentRepository.
type AssessmentSource interface {
	RecentESG(investmentID int64, limit int) ([]portfolio.ESGScore, error)
	RecentClimateRisks(investmentID int64, limit int) ([]portfolio.ClimateRisk, error)
	RecentEmissions(investmentID int64, limit int) ([]portfolio.GHGEmissions, error)
}

// ScanFilter narrows scan output. Zero values match all.
type ScanFilter struct {
	InvestmentID int64
	Type         string
	Severity     string
}

// NotificationService scans active holdings for metric changes, breached
// risk thresholds, overdue assessments and data quality gaps.
type NotificationService struct {
	investments InvestmentSource
	assessments AssessmentSource
	log         zerolog.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(investments InvestmentSource, assessments AssessmentSource, log zerolog.Logger) *NotificationService {
	return &NotificationService{
		investments: investments,
		assessments: assessments,
		log:         log.With().Str("service", "notifications").Logger(),
	}
}

// Scan runs every check over the active holdings and returns the alerts
// sorted worst severity first, oldest detection first within a severity.
func (s *NotificationService) Scan(filter ScanFilter) ([]Notification, error) {
	investments, err := s.investments.List(portfolio.InvestmentFilter{Status: portfolio.StatusActive})
	if err != nil {
		return nil, fmt.Errorf("failed to load holdings: %w", err)
	}

	now := time.Now().UTC()
	notifications := []Notification{}

	for _, inv := range investments {
		if filter.InvestmentID > 0 && inv.ID != filter.InvestmentID {
			continue
		}

		esgHistory, err := s.assessments.RecentESG(inv.ID, 2)
		if err != nil {
			return nil, fmt.Errorf("failed to load ESG history for investment %d: %w", inv.ID, err)
		}
		riskHistory, err := s.assessments.RecentClimateRisks(inv.ID, 2)
		if err != nil {
			return nil, fmt.Errorf("failed to load climate history for investment %d: %w", inv.ID, err)
		}
		emissionsHistory, err := s.assessments.RecentEmissions(inv.ID, 2)
		if err != nil {
			return nil, fmt.Errorf("failed to load emissions history for investment %d: %w", inv.ID, err)
		}

		notifications = append(notifications, s.metricChanges(inv, esgHistory, riskHistory, emissionsHistory, now)...)
		notifications = append(notifications, s.riskThresholds(inv, esgHistory, riskHistory, now)...)
		notifications = append(notifications, s.assessmentsDue(inv, esgHistory, riskHistory, now)...)
		notifications = append(notifications, s.dataQuality(inv, esgHistory, riskHistory, now)...)
	}

	if filter.Type != "" || filter.Severity != "" {
		filtered := []Notification{}
		for _, n := range notifications {
			if filter.Type != "" && n.Type != filter.Type {
				continue
			}
			if filter.Severity != "" && n.Severity != filter.Severity {
				continue
			}
			filtered = append(filtered, n)
		}
		notifications = filtered
	}

	sort.SliceStable(notifications, func(i, j int) bool {
		ri, rj := severityRank(notifications[i].Severity), severityRank(notifications[j].Severity)
		if ri != rj {
			return ri < rj
		}
		return notifications[i].DetectedAt.Before(notifications[j].DetectedAt)
	})

	s.log.Info().
		Int("holdings", len(investments)).
		Int("alerts", len(notifications)).
		Msg("Notification scan completed")

	return notifications, nil
}

// metricChanges compares each holding's two most recent assessments. ESG
// and climate changes only alert while the newer assessment is fresh;
// emissions run on reporting years, which have no useful recency window.
func (s *NotificationService) metricChanges(
	inv portfolio.Investment,
	esgHistory []portfolio.ESGScore,
	riskHistory []portfolio.ClimateRisk,
	emissionsHistory []portfolio.GHGEmissions,
	now time.Time,
) []Notification {
	var notifications []Notification
	cutoff := now.AddDate(0, 0, -changeWindowDays).Format("2006-01-02")

	if len(esgHistory) >= 2 && esgHistory[0].AssessmentDate >= cutoff &&
		nonZero(esgHistory[0].OverallESGScore) && nonZero(esgHistory[1].OverallESGScore) {
		current, previous := *esgHistory[0].OverallESGScore, *esgHistory[1].OverallESGScore
		change := current - previous
		if math.Abs(change) >= esgChangeThreshold {
			severity := SeverityMedium
			if change < 0 {
				severity = SeverityHigh
			}
			n := s.newNotification(inv, TypeMetricChange, severity,
				"ESG Score Change: "+inv.Name,
				fmt.Sprintf("ESG score changed by %+.1f points (%.1f → %.1f)", change, previous, current),
				now)
			n.Metric = "esg_score"
			n.Change = &change
			notifications = append(notifications, n)
		}
	}

	if len(riskHistory) >= 2 && riskHistory[0].AssessmentDate >= cutoff {
		current, previous := riskHistory[0].MaxRisk(), riskHistory[1].MaxRisk()
		change := current - previous
		if math.Abs(change) >= riskChangeThreshold {
			severity := SeverityMedium
			if current > previous {
				severity = SeverityHigh
			}
			n := s.newNotification(inv, TypeMetricChange, severity,
				"Climate Risk Change: "+inv.Name,
				fmt.Sprintf("Climate risk changed by %+.1f points (%.1f → %.1f)", change, previous, current),
				now)
			n.Metric = "climate_risk"
			n.Change = &change
			notifications = append(notifications, n)
		}
	}

	if len(emissionsHistory) >= 2 &&
		nonZero(emissionsHistory[0].TotalEmissions) && nonZero(emissionsHistory[1].TotalEmissions) {
		current, previous := *emissionsHistory[0].TotalEmissions, *emissionsHistory[1].TotalEmissions
		changePct := (current - previous) / previous * 100
		if math.Abs(changePct) >= emissionsChangeThreshold {
			severity := SeverityMedium
			if changePct > 0 {
				severity = SeverityHigh
			}
			n := s.newNotification(inv, TypeMetricChange, severity,
				"Emissions Change: "+inv.Name,
				fmt.Sprintf("Emissions changed by %+.1f%% (%.0f → %.0f tCO2e)", changePct, previous, current),
				now)
			n.Metric = "emissions"
			n.Change = &changePct
			notifications = append(notifications, n)
		}
	}

	return notifications
}

// riskThresholds checks the latest assessments against absolute limits.
func (s *NotificationService) riskThresholds(
	inv portfolio.Investment,
	esgHistory []portfolio.ESGScore,
	riskHistory []portfolio.ClimateRisk,
	now time.Time,
) []Notification {
	var notifications []Notification

	if len(riskHistory) > 0 {
		maxRisk := riskHistory[0].MaxRisk()
		switch {
		case maxRisk >= criticalRiskThreshold:
			n := s.newNotification(inv, TypeRiskThreshold, SeverityCritical,
				"Critical Climate Risk: "+inv.Name,
				fmt.Sprintf("Climate risk score of %.1f/10 exceeds critical threshold (%.1f)", maxRisk, criticalRiskThreshold),
				now)
			threshold := criticalRiskThreshold
			n.Threshold = &threshold
			n.CurrentValue = &maxRisk
			notifications = append(notifications, n)
		case maxRisk >= highRiskThreshold:
			n := s.newNotification(inv, TypeRiskThreshold, SeverityHigh,
				"High Climate Risk: "+inv.Name,
				fmt.Sprintf("Climate risk score of %.1f/10 exceeds high threshold (%.1f)", maxRisk, highRiskThreshold),
				now)
			threshold := highRiskThreshold
			n.Threshold = &threshold
			n.CurrentValue = &maxRisk
			notifications = append(notifications, n)
		}
	}

	if len(esgHistory) > 0 && nonZero(esgHistory[0].OverallESGScore) {
		score := *esgHistory[0].OverallESGScore
		if score < lowESGThreshold {
			n := s.newNotification(inv, TypeRiskThreshold, SeverityHigh,
				"Low ESG Score: "+inv.Name,
				fmt.Sprintf("ESG score of %.1f/100 is below critical threshold (%.0f)", score, lowESGThreshold),
				now)
			threshold := lowESGThreshold
			n.Threshold = &threshold
			n.CurrentValue = &score
			notifications = append(notifications, n)
		}
	}

	return notifications
}

// assessmentsDue flags stale assessments. Holdings never assessed are
// skipped here; dataQuality reports those instead of an overdue age
// computed from nothing.
func (s *NotificationService) assessmentsDue(
	inv portfolio.Investment,
	esgHistory []portfolio.ESGScore,
	riskHistory []portfolio.ClimateRisk,
	now time.Time,
) []Notification {
	var notifications []Notification

	if len(esgHistory) > 0 {
		if n, ok := s.overdueAlert(inv, esgHistory[0].AssessmentDate, "esg",
			"ESG Assessment Overdue: ", "ESG assessment is %d days overdue. Last assessment: %s", now); ok {
			notifications = append(notifications, n)
		}
	}
	if len(riskHistory) > 0 {
		if n, ok := s.overdueAlert(inv, riskHistory[0].AssessmentDate, "climate_risk",
			"Climate Risk Assessment Overdue: ", "Climate risk assessment is %d days overdue. Last assessment: %s", now); ok {
			notifications = append(notifications, n)
		}
	}

	return notifications
}

func (s *NotificationService) overdueAlert(
	inv portfolio.Investment,
	assessmentDate, assessmentType, titlePrefix, messageFormat string,
	now time.Time,
) (Notification, bool) {
	assessed, err := time.Parse("2006-01-02", assessmentDate)
	if err != nil {
		s.log.Warn().
			Int64("investment_id", inv.ID).
			Str("assessment_date", assessmentDate).
			Msg("Skipping overdue check for unparseable assessment date")
		return Notification{}, false
	}

	daysAgo := int(now.Sub(assessed).Hours() / 24)
	if daysAgo <= assessmentDueDays {
		return Notification{}, false
	}

	severity := SeverityMedium
	if daysAgo >= assessmentUrgentDays {
		severity = SeverityHigh
	}
	n := s.newNotification(inv, TypeAssessmentDue, severity,
		titlePrefix+inv.Name,
		fmt.Sprintf(messageFormat, daysAgo, assessmentDate),
		now)
	n.AssessmentType = assessmentType
	n.DaysOverdue = &daysAgo
	return n, true
}

// dataQuality reports holdings with no assessment rows at all and
// holdings missing basic financial figures.
func (s *NotificationService) dataQuality(
	inv portfolio.Investment,
	esgHistory []portfolio.ESGScore,
	riskHistory []portfolio.ClimateRisk,
	now time.Time,
) []Notification {
	var notifications []Notification

	if len(esgHistory) == 0 {
		n := s.newNotification(inv, TypeDataQuality, SeverityMedium,
			"Missing ESG Data: "+inv.Name,
			"No ESG assessment data available for this investment",
			now)
		n.Issue = "missing_esg"
		notifications = append(notifications, n)
	}
	if len(riskHistory) == 0 {
		n := s.newNotification(inv, TypeDataQuality, SeverityMedium,
			"Missing Climate Risk Data: "+inv.Name,
			"No climate risk assessment data available for this investment",
			now)
		n.Issue = "missing_climate_risk"
		notifications = append(notifications, n)
	}
	if !nonZero(inv.InvestmentAmount) || !nonZero(inv.CurrentValue) {
		n := s.newNotification(inv, TypeDataQuality, SeverityLow,
			"Incomplete Financial Data: "+inv.Name,
			"Investment amount or current value is missing",
			now)
		n.Issue = "missing_financial_data"
		notifications = append(notifications, n)
	}

	return notifications
}

func (s *NotificationService) newNotification(inv portfolio.Investment, notificationType, severity, title, message string, at time.Time) Notification {
	return Notification{
		ID:             uuid.New().String(),
		Type:           notificationType,
		Severity:       severity,
		Title:          title,
		Message:        message,
		InvestmentID:   inv.ID,
		InvestmentName: inv.Name,
		DetectedAt:     at,
	}
}

// nonZero implements the presence rule shared with the analytics checks:
// a missing value and a zero value both read as "no data".
func nonZero(p *float64) bool {
	return p != nil && *p != 0
}
