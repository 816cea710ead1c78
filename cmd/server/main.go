// Package main is the entry point for the Verdant impact analytics service.
// It wires the portfolio store, the analytics engine, the notification
// scanner and the reliability jobs behind a single HTTP API.
//
// Startup sequence:
//  1. Load configuration from environment variables
//  2. Initialize structured logging
//  3. Open and migrate the three databases (portfolio, analytics, cache)
//  4. Create repositories, services and the notification hub
//  5. Register cron jobs and start the scheduler
//  6. Start the HTTP server and wait for a shutdown signal
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/verdantfund/verdant/internal/config"
	"github.com/verdantfund/verdant/internal/database"
	"github.com/verdantfund/verdant/internal/modules/analytics"
	analyticshandlers "github.com/verdantfund/verdant/internal/modules/analytics/handlers"
	"github.com/verdantfund/verdant/internal/modules/notifications"
	notificationhandlers "github.com/verdantfund/verdant/internal/modules/notifications/handlers"
	"github.com/verdantfund/verdant/internal/modules/portfolio"
	portfoliohandlers "github.com/verdantfund/verdant/internal/modules/portfolio/handlers"
	"github.com/verdantfund/verdant/internal/reliability"
	"github.com/verdantfund/verdant/internal/scheduler"
	"github.com/verdantfund/verdant/internal/server"
	"github.com/verdantfund/verdant/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	log.Info().Msg("Starting Verdant")

	// Open the three databases. The analytics database is an append-only
	// ledger of computed analyses; the cache database holds rebuildable
	// simulation distributions.
	portfolioDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "portfolio.db"),
		Profile: database.ProfileStandard,
		Name:    "portfolio",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open portfolio database")
	}
	defer portfolioDB.Close()

	analyticsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "analytics.db"),
		Profile: database.ProfileLedger,
		Name:    "analytics",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open analytics database")
	}
	defer analyticsDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	databases := map[string]*database.DB{
		"portfolio": portfolioDB,
		"analytics": analyticsDB,
		"cache":     cacheDB,
	}

	for name, db := range databases {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", name).Msg("Failed to run migrations")
		}
	}

	// Repositories
	investmentRepo := portfolio.NewInvestmentRepository(portfolioDB.Conn(), log)
	assessmentRepo := portfolio.NewAssessmentRepository(portfolioDB.Conn(), log)
	analyticsRepo := analytics.NewAnalyticsRepository(analyticsDB.Conn(), log)
	distributionCache := analytics.NewDistributionCache(cacheDB.Conn(), log)

	// Services. Every analysis reads the portfolio through the metric
	// extractor, so the analytics module never touches portfolio SQL.
	portfolioService := portfolio.NewPortfolioService(investmentRepo, assessmentRepo, log)
	extractor := analytics.NewMetricExtractor(investmentRepo, assessmentRepo)

	rules := analytics.OptimizerRules{
		WeightStep:      cfg.Optimizer.WeightStep,
		ReduceBand:      cfg.Optimizer.ReduceBand,
		IncreaseBand:    cfg.Optimizer.IncreaseBand,
		LowRiskCutoff:   cfg.Optimizer.LowRiskCutoff,
		ImpactNudge:     cfg.Optimizer.ImpactNudge,
		ESGNudge:        cfg.Optimizer.ESGNudge,
		RiskNudge:       cfg.Optimizer.RiskNudge,
		ROINudge:        cfg.Optimizer.ROINudge,
		MaxPositionSize: cfg.Optimizer.MaxPositionSize,
		MinPositionSize: cfg.Optimizer.MinPositionSize,
	}

	benchmarkService := analytics.NewBenchmarkService(extractor, analyticsRepo, log)
	correlationService := analytics.NewCorrelationService(extractor, analyticsRepo, log)
	simulationService := analytics.NewSimulationService(extractor, analyticsRepo, distributionCache, log)
	optimizationService := analytics.NewOptimizationService(extractor, analyticsRepo, rules, log)
	attributionService := analytics.NewAttributionService(extractor, analyticsRepo, log)

	notificationService := notifications.NewNotificationService(investmentRepo, assessmentRepo, log)
	hub := notifications.NewHub(log)

	// Reliability: local backups always, offsite only when R2 is configured
	backupService := reliability.NewBackupService(databases, filepath.Join(cfg.DataDir, "backups"), log)

	var r2Backups *reliability.R2BackupService
	if cfg.R2.Enabled() {
		r2Client, err := reliability.NewR2Client(
			context.Background(),
			cfg.R2.AccountID,
			cfg.R2.AccessKeyID,
			cfg.R2.SecretAccessKey,
			cfg.R2.BucketName,
			log,
		)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize R2 client - offsite backups disabled")
		} else {
			r2Backups = reliability.NewR2BackupService(r2Client, backupService, cfg.DataDir, log)
			log.Info().Str("bucket", cfg.R2.BucketName).Msg("Offsite backups enabled")
		}
	} else {
		log.Warn().Msg("Offsite backups not configured")
	}

	// Scheduler and cron jobs
	sched := scheduler.New(log)

	mustAddJob := func(schedule string, job scheduler.Job) {
		if err := sched.AddJob(schedule, job); err != nil {
			log.Fatal().Err(err).Str("job", job.Name()).Msg("Failed to register job")
		}
	}

	mustAddJob("0 30 2 * * *", scheduler.NewBenchmarkRefreshJob(benchmarkService))                            // 02:30 daily
	mustAddJob("0 0 3 * * *", reliability.NewDailyMaintenanceJob(databases, backupService, cfg.DataDir, log)) // 03:00 daily
	mustAddJob("0 30 3 * * 0", reliability.NewWeeklyVacuumJob(databases, log))                                // 03:30 Sunday
	mustAddJob("0 0 7 * * *", scheduler.NewNotificationScanJob(notificationService, hub))                     // 07:00 daily
	if r2Backups != nil {
		mustAddJob("0 0 4 * * *", reliability.NewOffsiteBackupJob(r2Backups, cfg.BackupRetentionDays, log)) // 04:00 daily
	}

	sched.Start()
	log.Info().Int("jobs", len(sched.JobNames())).Msg("Scheduler started")

	// HTTP server
	portfolioHandler := portfoliohandlers.NewHandler(portfolioService, benchmarkService, log)
	analyticsHandler := analyticshandlers.NewHandler(
		benchmarkService,
		correlationService,
		simulationService,
		optimizationService,
		attributionService,
		log,
	)
	notificationHandler := notificationhandlers.NewHandler(notificationService, hub, log)
	systemHandlers := server.NewSystemHandlers(log, cfg.DataDir, databases, sched, r2Backups)

	srv := server.New(server.Config{
		Log:           log,
		Config:        cfg,
		Port:          cfg.Port,
		DevMode:       cfg.DevMode,
		Portfolio:     portfolioHandler,
		Analytics:     analyticsHandler,
		Notifications: notificationHandler,
		System:        systemHandlers,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Stop the scheduler first so no job starts mid-shutdown, then drop
	// stream subscribers so their handlers return.
	sched.Stop()
	hub.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
