package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"dsa-mcp/internal/crm"
	"dsa-mcp/internal/recommend"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// AppConfig holds the complete application configuration.
type AppConfig struct {
	CRM        crm.Config
	DataPath   string
	LogDir     string
	CacheDir   string
	ExportDir  string
	ScheduleDB string

	// Recommendation thresholds.
	MinShift           float64
	MinSamplesSchedule int
	MinSamplesHourly   int
	// MinSamplesModel is the smallest entity history a model is trained on.
	MinSamplesModel int
}

// Load loads the configuration from .env files and environment variables.
func Load() (*AppConfig, error) {
	// 1. Executable directory first, so an MCP host can start us from anywhere
	exePath, err := os.Executable()
	exeDir := ""
	if err == nil {
		exeDir = filepath.Dir(exePath)
		envPath := filepath.Join(exeDir, ".env")
		if err := godotenv.Load(envPath); err == nil {
			log.Debug().Str("path", envPath).Msg("Loaded configuration from binary directory")
		}
	}

	// 2. Working directory
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found in working directory, relying on environment variables or binary-relative .env")
	}

	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		if exeDir != "" {
			dataPath = exeDir
		} else {
			dataPath = "."
		}
	}

	logDir := filepath.Join(dataPath, "logs")
	cacheDir := filepath.Join(dataPath, "cache")
	exportDir := filepath.Join(dataPath, "exports")

	for _, dir := range []string{logDir, cacheDir, exportDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Warn().Err(err).Str("path", dir).Msg("Failed to create data directory")
		}
	}

	scheduleDB := getEnv("SCHEDULE_DB", "")
	if scheduleDB == "" {
		scheduleDB = filepath.Join(dataPath, "delivery_schedule.db")
	}

	defaults := recommend.DefaultConfig()

	cfg := &AppConfig{
		CRM: crm.Config{
			BaseURL:      getEnv("CRM_URL", ""),
			Cookie:       getEnv("CRM_COOKIE", ""),
			ChunkDays:    getEnvInt("CRM_CHUNK_DAYS", 14),
			RequestDelay: time.Duration(getEnvInt("CRM_REQUEST_DELAY_MS", 300)) * time.Millisecond,
			Concurrency:  getEnvInt("CRM_CONCURRENCY", 2),
			Timeout:      time.Duration(getEnvInt("CRM_TIMEOUT_SECONDS", 60)) * time.Second,
		},
		DataPath:           dataPath,
		LogDir:             logDir,
		CacheDir:           cacheDir,
		ExportDir:          exportDir,
		ScheduleDB:         scheduleDB,
		MinShift:           getEnvFloat("MIN_SHIFT_MINUTES", defaults.MinShift),
		MinSamplesSchedule: getEnvInt("MIN_SAMPLES_SCHEDULE", defaults.Schedule.MinSamples),
		MinSamplesHourly:   getEnvInt("MIN_SAMPLES_HOURLY", defaults.HourBucket.MinSamples),
		MinSamplesModel:    getEnvInt("MIN_SAMPLES_MODEL", 10),
	}

	return cfg, nil
}

// Recommend returns generation settings with the configured thresholds applied.
func (c *AppConfig) Recommend() recommend.Config {
	rc := recommend.DefaultConfig()
	rc.MinShift = c.MinShift
	if c.MinSamplesSchedule > 0 {
		rc.Schedule.MinSamples = c.MinSamplesSchedule
	}
	if c.MinSamplesHourly > 0 {
		rc.HourBucket.MinSamples = c.MinSamplesHourly
	}
	return rc
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring non-integer setting")
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring non-numeric setting")
	}
	return fallback
}
