package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pscheid92/brandpulse/internal/domain"
)

// Defaults for the classifier adapter. Overridable via environment.
const (
	defaultInferenceURL = "https://api-inference.huggingface.co/models/distilbert-base-uncased-finetuned-sst-2-english"
	defaultModelName    = "distilbert-base-uncased-finetuned-sst-2-english"
)

type Config struct {
	AppEnv    string
	Port      string
	LogLevel  string
	LogFormat string

	// DatabaseURL empty means the in-memory repository (single-binary mode).
	DatabaseURL string
	// RedisURL empty means the in-process classifier cache.
	RedisURL string

	InferenceURL    string
	InferenceAPIKey string
	ModelName       string
	LexiconFallback bool

	ClassifierMaxInflight int
	ClassifierQueueWait   time.Duration
	ClassifierTimeout     time.Duration
	ClassifierMaxAttempts int
	CacheSize             int
	CacheTTL              time.Duration

	Granularity   domain.Granularity
	MaxTextLength int

	ReconcileInterval time.Duration

	RateLimitPerSecond float64
	RateLimitBurst     int
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:          getEnv("APP_ENV", "development"),
		Port:            getEnv("PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "text"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		RedisURL:        getEnv("REDIS_URL", ""),
		InferenceURL:    getEnv("INFERENCE_API_URL", defaultInferenceURL),
		InferenceAPIKey: getEnv("INFERENCE_API_KEY", ""),
		ModelName:       getEnv("INFERENCE_MODEL", defaultModelName),
		Granularity:     domain.Granularity(getEnv("AGGREGATE_GRANULARITY", "hour")),
	}

	var err error
	if cfg.LexiconFallback, err = getEnvBool("LEXICON_FALLBACK", true); err != nil {
		return nil, err
	}
	if cfg.ClassifierMaxInflight, err = getEnvInt("CLASSIFIER_MAX_INFLIGHT", 8); err != nil {
		return nil, err
	}
	if cfg.ClassifierQueueWait, err = getEnvDuration("CLASSIFIER_QUEUE_WAIT", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.ClassifierTimeout, err = getEnvDuration("CLASSIFIER_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.ClassifierMaxAttempts, err = getEnvInt("CLASSIFIER_MAX_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.CacheSize, err = getEnvInt("CLASSIFIER_CACHE_SIZE", 4096); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getEnvDuration("CLASSIFIER_CACHE_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.MaxTextLength, err = getEnvInt("MAX_TEXT_LENGTH", 1000); err != nil {
		return nil, err
	}
	if cfg.ReconcileInterval, err = getEnvDuration("RECONCILE_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerSecond, err = getEnvFloat("RATE_LIMIT_PER_SECOND", 20); err != nil {
		return nil, err
	}
	if cfg.RateLimitBurst, err = getEnvInt("RATE_LIMIT_BURST", 40); err != nil {
		return nil, err
	}

	if cfg.InferenceURL == "" {
		return nil, fmt.Errorf("INFERENCE_API_URL is required")
	}
	if !cfg.Granularity.Valid() {
		return nil, fmt.Errorf("AGGREGATE_GRANULARITY must be 'hour' or 'day', got %q", cfg.Granularity)
	}
	if cfg.ClassifierMaxInflight < 1 {
		return nil, fmt.Errorf("CLASSIFIER_MAX_INFLIGHT must be at least 1")
	}
	if cfg.ClassifierMaxAttempts < 1 {
		return nil, fmt.Errorf("CLASSIFIER_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.CacheSize < 1 {
		return nil, fmt.Errorf("CLASSIFIER_CACHE_SIZE must be at least 1")
	}
	if cfg.MaxTextLength < 1 {
		return nil, fmt.Errorf("MAX_TEXT_LENGTH must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration (e.g. \"10s\"): %w", key, err)
	}
	return d, nil
}
