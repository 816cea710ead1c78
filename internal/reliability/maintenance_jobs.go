package reliability

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/verdantfund/verdant/internal/database"
)

const healthCheckTimeout = 2 * time.Minute

// DailyMaintenanceJob performs daily database maintenance
type DailyMaintenanceJob struct {
	databases map[string]*database.DB
	backups   *BackupService
	dataDir   string
	log       zerolog.Logger
}

// NewDailyMaintenanceJob creates a new daily maintenance job
func NewDailyMaintenanceJob(
	databases map[string]*database.DB,
	backups *BackupService,
	dataDir string,
	log zerolog.Logger,
) *DailyMaintenanceJob {
	return &DailyMaintenanceJob{
		databases: databases,
		backups:   backups,
		dataDir:   dataDir,
		log:       log.With().Str("job", "daily_maintenance").Logger(),
	}
}

// Run executes the daily maintenance job
func (j *DailyMaintenanceJob) Run() error {
	j.log.Info().Msg("Starting daily maintenance")
	startTime := time.Now()

	// Step 1: Integrity check for all databases, before anything gets snapshotted
	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()

	for name, db := range j.databases {
		j.log.Debug().Str("database", name).Msg("Running integrity check")

		if err := db.HealthCheck(ctx); err != nil {
			j.log.Error().
				Str("database", name).
				Err(err).
				Msg("CRITICAL: Database failed integrity check")
			return fmt.Errorf("CRITICAL: %s failed integrity check: %w", name, err)
		}
	}

	// Step 2: Local daily backup
	if err := j.backups.DailyBackup(); err != nil {
		return fmt.Errorf("daily backup failed: %w", err)
	}

	// Step 3: WAL checkpoint for all databases (prevent bloat)
	for name, db := range j.databases {
		j.log.Debug().Str("database", name).Msg("Running WAL checkpoint")

		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Warn().
				Str("database", name).
				Err(err).
				Msg("WAL checkpoint failed")
			// Don't return error - this is not critical
		}
	}

	// Step 4: Check disk space
	if err := j.checkDiskSpace(); err != nil {
		return err // HALT if critical
	}

	// Step 5: Verify yesterday's backups
	if err := j.verifyBackups(); err != nil {
		j.log.Error().Err(err).Msg("Backup verification failed")
		// Log but don't halt - we have today's backup
	}

	// Step 6: Log database sizes
	j.logDatabaseStats()

	duration := time.Since(startTime)
	j.log.Info().
		Dur("duration_ms", duration).
		Msg("Daily maintenance completed successfully")

	return nil
}

// Name returns the job name for scheduler
func (j *DailyMaintenanceJob) Name() string {
	return "daily_maintenance"
}

// checkDiskSpace verifies sufficient disk space is available
func (j *DailyMaintenanceJob) checkDiskSpace() error {
	stat := syscall.Statfs_t{}
	if err := syscall.Statfs(j.dataDir, &stat); err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	availableBytes := stat.Bavail * uint64(stat.Bsize)
	availableGB := float64(availableBytes) / 1e9

	j.log.Debug().Float64("available_gb", availableGB).Msg("Disk space check")

	// CRITICAL: Less than 500MB
	if availableGB < 0.5 {
		j.log.Error().
			Float64("available_gb", availableGB).
			Msg("CRITICAL: Insufficient disk space - HALTING SYSTEM")
		return fmt.Errorf("CRITICAL: Only %.2f GB free - system halted", availableGB)
	}

	// ERROR: Less than 5GB
	if availableGB < 5.0 {
		j.log.Error().
			Float64("available_gb", availableGB).
			Msg("Low disk space - consider cleanup")
	}

	// WARNING: Less than 10GB
	if availableGB < 10.0 {
		j.log.Warn().
			Float64("available_gb", availableGB).
			Msg("Disk space running low")
	}

	return nil
}

// verifyBackups checks integrity of yesterday's backups
func (j *DailyMaintenanceJob) verifyBackups() error {
	yesterday := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	dailyBackupDir := filepath.Join(j.dataDir, "backups", "daily", yesterday)

	if _, err := os.Stat(dailyBackupDir); os.IsNotExist(err) {
		return fmt.Errorf("yesterday's backup directory not found: %s", dailyBackupDir)
	}

	// Local dailies exclude the cache database
	for _, dbName := range j.backups.GetDatabaseNames(false) {
		backupPath := filepath.Join(dailyBackupDir, dbName+".db")

		if _, err := os.Stat(backupPath); os.IsNotExist(err) {
			j.log.Error().
				Str("database", dbName).
				Str("path", backupPath).
				Msg("Backup file missing")
			continue
		}

		if err := j.backups.VerifyBackup(backupPath); err != nil {
			j.log.Error().
				Str("database", dbName).
				Err(err).
				Msg("Backup integrity check failed")
		} else {
			j.log.Debug().
				Str("database", dbName).
				Msg("Backup verified")
		}
	}

	return nil
}

// logDatabaseStats records database and WAL sizes for growth tracking
func (j *DailyMaintenanceJob) logDatabaseStats() {
	for name, db := range j.databases {
		stats, err := db.GetStats()
		if err != nil {
			j.log.Error().
				Str("database", name).
				Err(err).
				Msg("Failed to get stats")
			continue
		}

		j.log.Info().
			Str("database", name).
			Float64("size_mb", float64(stats.SizeBytes)/1024/1024).
			Float64("wal_size_mb", float64(stats.WALSizeBytes)/1024/1024).
			Msg("Database metrics")
	}
}

// WeeklyVacuumJob performs weekly VACUUM on rewritable databases
type WeeklyVacuumJob struct {
	databases map[string]*database.DB
	log       zerolog.Logger
}

// NewWeeklyVacuumJob creates a new weekly vacuum job
func NewWeeklyVacuumJob(databases map[string]*database.DB, log zerolog.Logger) *WeeklyVacuumJob {
	return &WeeklyVacuumJob{
		databases: databases,
		log:       log.With().Str("job", "weekly_vacuum").Logger(),
	}
}

// Run executes the weekly vacuum job
func (j *WeeklyVacuumJob) Run() error {
	j.log.Info().Msg("Starting weekly vacuum")
	startTime := time.Now()

	for name, db := range j.databases {
		if db.Profile() == database.ProfileLedger {
			j.log.Debug().
				Str("database", name).
				Msg("Skipping VACUUM for append-only ledger")
			continue
		}

		j.log.Info().Str("database", name).Msg("Running VACUUM")

		if err := j.vacuumDatabase(db, name); err != nil {
			j.log.Error().
				Str("database", name).
				Err(err).
				Msg("VACUUM failed")
			// Continue with other databases
		}
	}

	duration := time.Since(startTime)
	j.log.Info().
		Dur("duration_ms", duration).
		Msg("Weekly vacuum completed successfully")

	return nil
}

// Name returns the job name for scheduler
func (j *WeeklyVacuumJob) Name() string {
	return "weekly_vacuum"
}

// vacuumDatabase performs VACUUM on a database
func (j *WeeklyVacuumJob) vacuumDatabase(db *database.DB, name string) error {
	before, err := db.GetStats()
	if err != nil {
		return fmt.Errorf("failed to get stats before VACUUM: %w", err)
	}
	sizeBefore := float64(before.PageCount*before.PageSize) / 1024 / 1024

	if err := db.Vacuum(); err != nil {
		return err
	}

	after, err := db.GetStats()
	if err != nil {
		return fmt.Errorf("failed to get stats after VACUUM: %w", err)
	}
	sizeAfter := float64(after.PageCount*after.PageSize) / 1024 / 1024

	j.log.Info().
		Str("database", name).
		Float64("size_before_mb", sizeBefore).
		Float64("size_after_mb", sizeAfter).
		Float64("space_reclaimed_mb", sizeBefore-sizeAfter).
		Msg("VACUUM completed")

	return nil
}

// OffsiteBackupJob uploads a full backup archive to R2 and rotates old ones
type OffsiteBackupJob struct {
	service       *R2BackupService
	retentionDays int
	log           zerolog.Logger
}

// NewOffsiteBackupJob creates a new offsite backup job
func NewOffsiteBackupJob(service *R2BackupService, retentionDays int, log zerolog.Logger) *OffsiteBackupJob {
	return &OffsiteBackupJob{
		service:       service,
		retentionDays: retentionDays,
		log:           log.With().Str("job", "offsite_backup").Logger(),
	}
}

// Run executes the offsite backup job
func (j *OffsiteBackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := j.service.CreateAndUploadBackup(ctx); err != nil {
		return fmt.Errorf("offsite backup failed: %w", err)
	}

	if err := j.service.RotateOldBackups(ctx, j.retentionDays); err != nil {
		j.log.Error().Err(err).Msg("Backup rotation failed")
		// Don't fail - backup succeeded
	}

	return nil
}

// Name returns the job name for scheduler
func (j *OffsiteBackupJob) Name() string {
	return "offsite_backup"
}
