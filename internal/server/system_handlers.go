// Package server provides the HTTP server and routing for Verdant.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/verdantfund/verdant/internal/database"
	"github.com/verdantfund/verdant/internal/reliability"
	"github.com/verdantfund/verdant/internal/scheduler"
	"github.com/verdantfund/verdant/internal/version"
)

// SystemHandlers handles system-wide monitoring and operations endpoints
type SystemHandlers struct {
	log         zerolog.Logger
	dataDir     string
	startupTime time.Time
	databases   map[string]*database.DB
	scheduler   *scheduler.Scheduler
	r2Backups   *reliability.R2BackupService // nil when offsite backups are not configured
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(
	log zerolog.Logger,
	dataDir string,
	databases map[string]*database.DB,
	sched *scheduler.Scheduler,
	r2Backups *reliability.R2BackupService,
) *SystemHandlers {
	return &SystemHandlers{
		log:         log.With().Str("component", "system_handlers").Logger(),
		dataDir:     dataDir,
		startupTime: time.Now(),
		databases:   databases,
		scheduler:   sched,
		r2Backups:   r2Backups,
	}
}

// SystemStatusResponse represents the system status response
type SystemStatusResponse struct {
	Status        string         `json:"status"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	CPUPercent    float64        `json:"cpu_percent"`
	MemoryPercent float64        `json:"memory_percent"`
	Goroutines    int            `json:"goroutines"`
	HeapAllocMB   float64        `json:"heap_alloc_mb"`
	DataDirMB     float64        `json:"data_dir_mb"`
	Databases     []DatabaseInfo `json:"databases"`
}

// DatabaseInfo describes one database file
type DatabaseInfo struct {
	Name      string  `json:"name"`
	SizeMB    float64 `json:"size_mb"`
	WALSizeMB float64 `json:"wal_size_mb"`
}

// JobsStatusResponse lists the registered scheduler jobs
type JobsStatusResponse struct {
	TotalJobs int      `json:"total_jobs"`
	Jobs      []string `json:"jobs"`
}

// HandleSystemStatus returns host and process statistics
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, memPercent := h.getSystemStats()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	databases := make([]DatabaseInfo, 0, len(h.databases))
	for name, db := range h.databases {
		stats, err := db.GetStats()
		if err != nil {
			h.log.Warn().Str("database", name).Err(err).Msg("Failed to get database stats")
			continue
		}
		databases = append(databases, DatabaseInfo{
			Name:      name,
			SizeMB:    float64(stats.SizeBytes) / 1024 / 1024,
			WALSizeMB: float64(stats.WALSizeBytes) / 1024 / 1024,
		})
	}

	response := SystemStatusResponse{
		Status:        "healthy",
		Version:       version.Version,
		UptimeSeconds: int64(time.Since(h.startupTime).Seconds()),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Goroutines:    runtime.NumGoroutine(),
		HeapAllocMB:   float64(memStats.HeapAlloc) / 1024 / 1024,
		DataDirMB:     h.getDirSize(h.dataDir),
		Databases:     databases,
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleJobsStatus returns the registered scheduler jobs
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	names := h.scheduler.JobNames()

	h.writeJSON(w, http.StatusOK, JobsStatusResponse{
		TotalJobs: len(names),
		Jobs:      names,
	})
}

// HandleRunJob triggers a registered job by name.
// Jobs can run for minutes, so the trigger returns immediately.
func (h *SystemHandlers) HandleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	found := false
	for _, jobName := range h.scheduler.JobNames() {
		if jobName == name {
			found = true
			break
		}
	}
	if !found {
		h.writeError(w, http.StatusNotFound, fmt.Sprintf("job %s not found", name))
		return
	}

	h.log.Info().Str("job", name).Msg("Manual job run triggered")

	go func() {
		if err := h.scheduler.RunByName(name); err != nil {
			h.log.Error().Err(err).Str("job", name).Msg("Manual job run failed")
		}
	}()

	h.writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "started",
		"job":    name,
	})
}

// HandleListBackups lists offsite backup archives
func (h *SystemHandlers) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	if h.r2Backups == nil {
		h.writeError(w, http.StatusServiceUnavailable, "offsite backups not configured")
		return
	}

	backups, err := h.r2Backups.ListBackups(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list backups")
		h.writeError(w, http.StatusInternalServerError, "failed to list backups")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(backups),
		"backups": backups,
	})
}

// HandleRunBackup triggers an offsite backup.
// The upload can take minutes, so the trigger returns immediately.
func (h *SystemHandlers) HandleRunBackup(w http.ResponseWriter, r *http.Request) {
	if h.r2Backups == nil {
		h.writeError(w, http.StatusServiceUnavailable, "offsite backups not configured")
		return
	}

	h.log.Info().Msg("Manual offsite backup triggered")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		if err := h.r2Backups.CreateAndUploadBackup(ctx); err != nil {
			h.log.Error().Err(err).Msg("Manual offsite backup failed")
		}
	}()

	h.writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "started",
	})
}

// getSystemStats calculates CPU and RAM usage percentages.
// Uses a 100ms sample instead of 1s to avoid blocking the API call.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// getDirSize calculates total size of a directory in MB
func (h *SystemHandlers) getDirSize(dirPath string) float64 {
	var totalSize int64

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})

	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}

// writeJSON writes a JSON response
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error response
func (h *SystemHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
