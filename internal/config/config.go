package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Estimator names accepted by ESTIMATOR
const (
	EstimatorKeyword = "keyword"
	EstimatorOpenAI  = "openai"
	EstimatorChain   = "chain"
)

// Config holds application configuration
type Config struct {
	DatabaseURL      string
	ServerPort       string
	FrontendURL      string
	RedisURL         string
	RabbitMQURL      string
	RabbitMQPrefetch int

	OpenAIKey         string
	AIModel           string
	AIBaseURL         string
	Estimator         string
	EstimateCacheTTL  time.Duration
	EstimateCacheSize int
	ReminderTimezone  string

	RateLimit        string
	RequestTimeout   time.Duration
	MaxRequestBytes  int64
	BatchConcurrency int
	EnableHSTS       bool

	DLQRetention      time.Duration
	ReprocessInterval time.Duration
	StaleAfter        time.Duration

	WorkerDebugMode bool
	ServerDebugMode bool
	OTELEnabled     bool
	OTELEndpoint    string
	MetricsEnabled  bool

	// WorkerMetricsPort serves the worker's /metrics and /healthz
	WorkerMetricsPort string
}

// Load loads configuration for the server and worker from environment variables
func Load() (*Config, error) {
	cfg, err := LoadLocal()
	if err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.RabbitMQURL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required for job queueing (reminder planning runs in the worker)")
	}

	return cfg, nil
}

// LoadLocal loads configuration without requiring any backing services. Used by the CLI.
func LoadLocal() (*Config, error) {
	cfg := &Config{
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		ServerPort:       getEnv("SERVER_PORT", "8080"),
		FrontendURL:      getEnv("FRONTEND_URL", "http://localhost:3000"),
		RedisURL:         getEnv("REDIS_URL", ""),
		RabbitMQURL:      getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch: getEnvInt("RABBITMQ_PREFETCH", 1),

		OpenAIKey:         getEnv("OPENAI_API_KEY", ""),
		AIModel:           getEnv("AI_MODEL", ""),
		AIBaseURL:         getEnv("AI_BASE_URL", ""),
		Estimator:         getEnv("ESTIMATOR", EstimatorKeyword),
		EstimateCacheTTL:  getEnvDuration("ESTIMATE_CACHE_TTL", 24*time.Hour),
		EstimateCacheSize: getEnvInt("ESTIMATE_CACHE_SIZE", 1024),
		ReminderTimezone:  getEnv("REMINDER_TIMEZONE", "Local"),

		RateLimit:        getEnv("RATE_LIMIT", "100-M"),
		RequestTimeout:   getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		MaxRequestBytes:  int64(getEnvInt("MAX_REQUEST_BYTES", 1<<20)),
		BatchConcurrency: getEnvInt("BATCH_CONCURRENCY", 8),
		EnableHSTS:       getEnvBool("ENABLE_HSTS", false),

		DLQRetention:      getEnvDuration("DLQ_RETENTION", 7*24*time.Hour),
		ReprocessInterval: getEnvDuration("REPROCESS_INTERVAL", 5*time.Minute),
		StaleAfter:        getEnvDuration("STALE_PENDING_AFTER", 10*time.Minute),

		WorkerDebugMode: getEnvBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode: getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:     getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),

		WorkerMetricsPort: getEnv("WORKER_METRICS_PORT", "9091"),
	}

	switch cfg.Estimator {
	case EstimatorKeyword, EstimatorOpenAI, EstimatorChain:
	default:
		return nil, fmt.Errorf("ESTIMATOR must be one of keyword, openai, chain (got %q)", cfg.Estimator)
	}

	if cfg.Estimator != EstimatorKeyword && cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required when ESTIMATOR=%s", cfg.Estimator)
	}

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Location resolves REMINDER_TIMEZONE
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ReminderTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid REMINDER_TIMEZONE %q: %w", c.ReminderTimezone, err)
	}
	return loc, nil
}

// EstimatorConfig returns the settings map handed to the estimator registry
func (c *Config) EstimatorConfig() map[string]string {
	settings := map[string]string{
		"api_key": c.OpenAIKey,
		"model":   c.AIModel,
		"debug":   strconv.FormatBool(c.WorkerDebugMode || c.ServerDebugMode),
	}
	if c.AIBaseURL != "" {
		settings["base_url"] = c.AIBaseURL
	}
	return settings
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
