package scheduler

import (
	"fmt"

	"github.com/verdantfund/verdant/internal/modules/analytics"
	"github.com/verdantfund/verdant/internal/modules/notifications"
)

// BenchmarkRefreshJob recomputes peer benchmarks for every sector in the portfolio
type BenchmarkRefreshJob struct {
	benchmarks *analytics.BenchmarkService
}

// NewBenchmarkRefreshJob creates a new benchmark refresh job
func NewBenchmarkRefreshJob(benchmarks *analytics.BenchmarkService) *BenchmarkRefreshJob {
	return &BenchmarkRefreshJob{benchmarks: benchmarks}
}

// Run executes the benchmark refresh job
func (j *BenchmarkRefreshJob) Run() error {
	if err := j.benchmarks.RefreshAll(); err != nil {
		return fmt.Errorf("benchmark refresh failed: %w", err)
	}
	return nil
}

// Name returns the job name for scheduler
func (j *BenchmarkRefreshJob) Name() string {
	return "benchmark_refresh"
}

// NotificationScanJob runs a full portfolio scan and pushes alerts to stream subscribers
type NotificationScanJob struct {
	service *notifications.NotificationService
	hub     *notifications.Hub
}

// NewNotificationScanJob creates a new notification scan job
func NewNotificationScanJob(service *notifications.NotificationService, hub *notifications.Hub) *NotificationScanJob {
	return &NotificationScanJob{service: service, hub: hub}
}

// Run executes the notification scan job
func (j *NotificationScanJob) Run() error {
	alerts, err := j.service.Scan(notifications.ScanFilter{})
	if err != nil {
		return fmt.Errorf("notification scan failed: %w", err)
	}

	j.hub.BroadcastAll(alerts)
	return nil
}

// Name returns the job name for scheduler
func (j *NotificationScanJob) Name() string {
	return "notification_scan"
}
