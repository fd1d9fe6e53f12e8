// Package config provides configuration for the orchestrator.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the orchestrator configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// Group ceilings
	MaxParallel        int
	MaxDurationMinutes float64

	// Adversary LLM
	LLMBaseURL     string
	LLMAPIKey      string
	AdversaryModel string
	LLMTimeout     time.Duration

	// Target system
	TargetTimeout    time.Duration
	TargetRetries    int
	TargetRetryDelay time.Duration
	TurnDelay        time.Duration

	// Report artifacts. An empty bucket selects the local file store.
	ReportBucket  string
	ReportDir     string
	ReportBaseURL string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:           getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:        getEnv("DATABASE_URL", "file:havoc.db?cache=shared&mode=rwc"),
		MaxParallel:        getEnvInt("MAX_PARALLEL_EXECUTIONS", 5),
		MaxDurationMinutes: getEnvFloat("MAX_DURATION_MINUTES", 5),
		LLMBaseURL:         getEnv("LLM_BASE_URL", "https://openrouter.ai/api/v1"),
		LLMAPIKey:          getEnv("LLM_API_KEY", ""),
		AdversaryModel:     getEnv("ADVERSARIAL_MODEL", "openai/gpt-4o"),
		LLMTimeout:         time.Duration(getEnvInt("LLM_TIMEOUT_MS", 60000)) * time.Millisecond,
		TargetTimeout:      time.Duration(getEnvInt("TARGET_TIMEOUT_MS", 60000)) * time.Millisecond,
		TargetRetries:      getEnvInt("TARGET_RETRIES", 3),
		TargetRetryDelay:   time.Duration(getEnvInt("TARGET_RETRY_DELAY_MS", 500)) * time.Millisecond,
		TurnDelay:          time.Duration(getEnvInt("TURN_DELAY_MS", 500)) * time.Millisecond,
		ReportBucket:       getEnv("REPORTS_BUCKET", ""),
		ReportDir:          getEnv("REPORTS_DIR", "reports"),
		ReportBaseURL:      getEnv("REPORTS_BASE_URL", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if floatVal, err := strconv.ParseFloat(val, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}
