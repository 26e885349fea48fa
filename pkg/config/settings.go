package config

import (
	"fmt"
	"os"
	"strconv"
)

// Settings holds the application configuration read from the environment.
type Settings struct {
	Environment        string
	LogLevel           string
	StorageBackend     string // "filesystem" or "s3"
	StorageBasePath    string
	S3Bucket           string
	MetadataDBPath     string
	JobConfigKey       string
	DatasetKey         string
	EngineURL          string
	EngineTimeoutSecs  int
	RetryMaxAttempts   int
	RetryDelaySeconds  int
	CoreBudget         int
	HorizonMonths      int
	MinWindowRows      int
	AllowShortWindow   bool
	ForecastTolerance  float64
	ShareBandTolerance float64
	TargetPolicy       string // "mean_k" or "last_full"
	TargetMeanMonths   int
	ScheduleSpec       string
}

// LoadSettings loads settings from environment variables with defaults.
func LoadSettings() (*Settings, error) {
	s := &Settings{
		Environment:        getEnv("ENVIRONMENT", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		StorageBackend:     getEnv("STORAGE_BACKEND", "filesystem"),
		StorageBasePath:    getEnv("STORAGE_DIR", "data"),
		S3Bucket:           getEnv("S3_BUCKET", ""),
		MetadataDBPath:     getEnv("METADATA_DB_PATH", "data/mmm.db"),
		JobConfigKey:       getEnv("JOB_CONFIG_KEY", "config/job_config.json"),
		DatasetKey:         getEnv("DATASET_KEY", "data/raw_data.csv"),
		EngineURL:          getEnv("ENGINE_URL", "http://localhost:8000"),
		EngineTimeoutSecs:  getEnvAsInt("ENGINE_TIMEOUT_SECONDS", 7200),
		RetryMaxAttempts:   getEnvAsInt("RETRY_MAX_ATTEMPTS", 5),
		RetryDelaySeconds:  getEnvAsInt("RETRY_DELAY_SECONDS", 2),
		CoreBudget:         getEnvAsInt("CORE_BUDGET", 0),
		HorizonMonths:      getEnvAsInt("HORIZON_MONTHS", 3),
		MinWindowRows:      getEnvAsInt("MIN_WINDOW_ROWS", 90),
		AllowShortWindow:   getEnvAsBool("ALLOW_SHORT_WINDOW", false),
		ForecastTolerance:  getEnvAsFloat("FORECAST_TOLERANCE", 0.10),
		ShareBandTolerance: getEnvAsFloat("SHARE_BAND_TOLERANCE", 1e-4),
		TargetPolicy:       getEnv("TARGET_POLICY", "mean_k"),
		TargetMeanMonths:   getEnvAsInt("TARGET_MEAN_MONTHS", 3),
		ScheduleSpec:       getEnv("SCHEDULE_SPEC", "0 4 1 * *"),
	}

	if s.StorageBackend != "filesystem" && s.StorageBackend != "s3" {
		return nil, fmt.Errorf("unsupported STORAGE_BACKEND: %s", s.StorageBackend)
	}
	if s.StorageBackend == "s3" && s.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required when STORAGE_BACKEND=s3")
	}

	return s, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat retrieves an environment variable as a float or returns a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
