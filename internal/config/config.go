// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir             string // Base directory for all databases (always absolute)
	Port                int
	LogLevel            string
	DevMode             bool
	BackupRetentionDays int // Offsite backup retention; 0 keeps everything beyond the minimum
	R2                  R2Config
	Optimizer           OptimizerConfig
}

// R2Config holds credentials for the S3-compatible offsite backup bucket.
// All fields empty means offsite backups are disabled.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
}

// Enabled reports whether offsite backups are configured
func (r R2Config) Enabled() bool {
	return r.AccountID != "" && r.AccessKeyID != "" && r.SecretAccessKey != "" && r.BucketName != ""
}

// OptimizerConfig holds the rebalancing heuristic thresholds.
// The defaults are coarse heuristics, not calibrated figures, which is
// why they live in configuration rather than in the optimizer itself.
type OptimizerConfig struct {
	WeightStep      float64 // Suggested weight nudge for flagged holdings
	ReduceBand      float64 // Flag reduce below target×ReduceBand
	IncreaseBand    float64 // Flag increase above target×IncreaseBand
	LowRiskCutoff   float64 // Flag increase below this climate risk score
	ImpactNudge     float64 // Illustrative optimized-impact multiplier
	ESGNudge        float64 // Illustrative optimized-ESG multiplier
	RiskNudge       float64 // Illustrative optimized-risk multiplier
	ROINudge        float64 // Illustrative optimized-ROI multiplier
	MaxPositionSize float64
	MinPositionSize float64
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory with fallback logic
	// 1. Check VERDANT_DATA_DIR environment variable
	// 2. If not set, default to ./data
	// 3. Always resolve to absolute path
	// 4. Ensure directory exists
	dataDir := getEnv("VERDANT_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:             absDataDir,
		Port:                getEnvAsInt("VERDANT_PORT", 8000),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		DevMode:             getEnvAsBool("DEV_MODE", false),
		BackupRetentionDays: getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		R2: R2Config{
			AccountID:       getEnv("R2_ACCOUNT_ID", ""),
			AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
			BucketName:      getEnv("R2_BUCKET_NAME", "verdant-backups"),
		},
		Optimizer: loadOptimizerConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	if c.Optimizer.WeightStep <= 0 || c.Optimizer.WeightStep >= 1 {
		return fmt.Errorf("optimizer weight step must be in (0, 1), got %v", c.Optimizer.WeightStep)
	}

	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// loadOptimizerConfig loads optimizer thresholds from the environment
func loadOptimizerConfig() OptimizerConfig {
	return OptimizerConfig{
		WeightStep:      getEnvAsFloat("OPTIMIZER_WEIGHT_STEP", 0.05),
		ReduceBand:      getEnvAsFloat("OPTIMIZER_REDUCE_BAND", 0.8),
		IncreaseBand:    getEnvAsFloat("OPTIMIZER_INCREASE_BAND", 1.2),
		LowRiskCutoff:   getEnvAsFloat("OPTIMIZER_LOW_RISK_CUTOFF", 3.0),
		ImpactNudge:     getEnvAsFloat("OPTIMIZER_IMPACT_NUDGE", 1.05),
		ESGNudge:        getEnvAsFloat("OPTIMIZER_ESG_NUDGE", 1.03),
		RiskNudge:       getEnvAsFloat("OPTIMIZER_RISK_NUDGE", 0.95),
		ROINudge:        getEnvAsFloat("OPTIMIZER_ROI_NUDGE", 1.02),
		MaxPositionSize: getEnvAsFloat("OPTIMIZER_MAX_POSITION", 0.25),
		MinPositionSize: getEnvAsFloat("OPTIMIZER_MIN_POSITION", 0.01),
	}
}
