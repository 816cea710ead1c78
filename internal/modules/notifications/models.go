// Package notifications scans the portfolio for threshold breaches and
// streams the resulting alerts to WebSocket subscribers. Alerts are not
// persisted; every scan recomputes them from the current assessments.
package notifications

import "time"

// Notification types
const (
	TypeMetricChange   = "metric_change"
	TypeRiskThreshold  = "risk_threshold"
	TypeAssessmentDue  = "assessment_due"
	TypeDataQuality    = "data_quality"
	TypePortfolioAlert = "portfolio_alert"
)

// Notification severities
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
	SeverityInfo     = "info"
)

// Notification is one alert produced by a scan. The optional fields carry
// type-specific detail: Metric/Change for metric_change,
// Threshold/CurrentValue for risk_threshold, AssessmentType/DaysOverdue
// for assessment_due, Issue for data_quality.
type Notification struct {
	ID             string    `json:"id"`
	Type           string    `json:"type"`
	Severity       string    `json:"severity"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	InvestmentID   int64     `json:"investment_id"`
	InvestmentName string    `json:"investment_name"`
	Metric         string    `json:"metric,omitempty"`
	Change         *float64  `json:"change,omitempty"`
	Threshold      *float64  `json:"threshold,omitempty"`
	CurrentValue   *float64  `json:"current_value,omitempty"`
	AssessmentType string    `json:"assessment_type,omitempty"`
	DaysOverdue    *int      `json:"days_overdue,omitempty"`
	Issue          string    `json:"issue,omitempty"`
	DetectedAt     time.Time `json:"detected_at"`
}

// severityRank orders severities for scan output, worst first.
func severityRank(severity string) int {
	switch severity {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	case SeverityInfo:
		return 4
	default:
		return 99
	}
}
