package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	// GitHub
	GitHubToken string

	// Redis (cache + queue broker)
	RedisURL string

	// Cache TTLs
	ReportCacheTTL time.Duration
	StatusCacheTTL time.Duration

	// AI scoring
	OpenAIKey   string
	OpenAIModel string

	// Worker
	WorkerConcurrency int
	// JobMaxAttempts is deliberately 1: most job failures (rate limits,
	// missing profiles, scoring outages) are not transient within a single
	// request's budget, and retrying burns rate-limit quota.
	JobMaxAttempts int
	StageTimeout   time.Duration

	// API server
	Port string

	// CLI
	APIEndpoint string
}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	return &Config{
		GitHubToken:       getEnv("GITHUB_TOKEN", ""),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379"),
		ReportCacheTTL:    time.Duration(getEnvInt("REPORT_CACHE_TTL", 3600)) * time.Second,
		StatusCacheTTL:    time.Duration(getEnvInt("STATUS_CACHE_TTL", 86400)) * time.Second,
		OpenAIKey:         getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		WorkerConcurrency: getEnvInt("WORKER_CONCURRENCY", 1),
		JobMaxAttempts:    getEnvInt("JOB_MAX_ATTEMPTS", 1),
		StageTimeout:      time.Duration(getEnvInt("STAGE_TIMEOUT", 120)) * time.Second,
		Port:              getEnv("PORT", "5000"),
		APIEndpoint:       getEnv("API_ENDPOINT", "http://localhost:5000"),
	}, nil
}

// getEnv returns the value of an environment variable or a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default value
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return &ConfigError{Field: "REDIS_URL", Message: "Redis URL is required"}
	}
	if c.WorkerConcurrency < 1 {
		return &ConfigError{Field: "WORKER_CONCURRENCY", Message: "must be at least 1"}
	}
	if c.JobMaxAttempts != 1 {
		return &ConfigError{Field: "JOB_MAX_ATTEMPTS", Message: "retries are not supported; must be 1"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
