package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIPort string

	FREDAPIKey  string
	FREDBaseURL string

	ClientTimeout        time.Duration
	MaxRequestsPerMinute int
	ClientMaxRetries     int
	ClientBaseDelay      time.Duration
	ClientBackoffFactor  float64
	ClientRetryJitter    float64

	StorageDir     string
	DefaultProject string

	OutputMode         string
	OutputFormat       string
	ScreenRowThreshold int
	JobRowThreshold    int
	FileChunkSize      int
	SafeTokenLimit     int
	AssumeContextUsed  float64

	JobRetention         time.Duration
	JobMaxRetries        int
	JobInitialRetryDelay time.Duration
	JobBackoffFactor     float64

	LogLevel  string
	LogFormat string
}

var AppConfig *Config

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = &Config{
		APIPort: getEnv("API_PORT", "8080"),

		FREDAPIKey:  getEnv("FRED_API_KEY", ""),
		FREDBaseURL: getEnv("FRED_BASE_URL", "https://api.stlouisfed.org"),

		ClientTimeout:        time.Duration(getEnvAsInt("CLIENT_TIMEOUT_SECONDS", 30)) * time.Second,
		MaxRequestsPerMinute: getEnvAsInt("MAX_REQUESTS_PER_MINUTE", 120),
		ClientMaxRetries:     getEnvAsInt("CLIENT_MAX_RETRIES", 3),
		ClientBaseDelay:      time.Duration(getEnvAsFloat("CLIENT_BASE_DELAY_SECONDS", 1.0) * float64(time.Second)),
		ClientBackoffFactor:  getEnvAsFloat("CLIENT_BACKOFF_FACTOR", 1.5),
		ClientRetryJitter:    getEnvAsFloat("CLIENT_RETRY_JITTER", 0.25),

		StorageDir:     getEnv("STORAGE_DIR", "./fred-data"),
		DefaultProject: getEnv("DEFAULT_PROJECT", "default"),

		OutputMode:         getEnv("OUTPUT_MODE", "auto"),
		OutputFormat:       getEnv("OUTPUT_FORMAT", "csv"),
		ScreenRowThreshold: getEnvAsInt("SCREEN_ROW_THRESHOLD", 1000),
		JobRowThreshold:    getEnvAsInt("JOB_ROW_THRESHOLD", 10000),
		FileChunkSize:      getEnvAsInt("FILE_CHUNK_SIZE", 1000),
		SafeTokenLimit:     getEnvAsInt("SAFE_TOKEN_LIMIT", 50000),
		AssumeContextUsed:  getEnvAsFloat("ASSUME_CONTEXT_USED", 0.75),

		JobRetention:         time.Duration(getEnvAsInt("JOB_RETENTION_HOURS", 24)) * time.Hour,
		JobMaxRetries:        getEnvAsInt("JOB_MAX_RETRIES", 3),
		JobInitialRetryDelay: time.Duration(getEnvAsFloat("JOB_INITIAL_RETRY_DELAY", 1.0) * float64(time.Second)),
		JobBackoffFactor:     getEnvAsFloat("JOB_BACKOFF_FACTOR", 2.0),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return fallback
}
