// Package config provides centralized configuration for the summiva server.
// Values come from built-in defaults, overridden by an optional YAML file,
// overridden in turn by environment variables.
package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all server configuration values.
type Config struct {
	// Port is the HTTP server listen port.
	Port string

	// DBPath is the path to the SQLite database file (structured store).
	DBPath string

	// BlobPath is the directory for the Badger blob store (unstructured store).
	BlobPath string

	// BlobInMemory runs the blob store in memory (for development and tests).
	BlobInMemory bool

	// JWTSecret is the HMAC secret used to verify bearer tokens.
	JWTSecret string

	// CORSOrigin is the allowed CORS origin. Defaults to "*".
	CORSOrigin string

	// WorkerCount is the size of the job worker pool.
	WorkerCount int

	// PollInterval is how long an idle dispatcher sleeps between queue polls.
	PollInterval time.Duration

	// MaxAttempts caps automatic retries per job; exceeding it fails the
	// job with RetriesExhausted.
	MaxAttempts int

	// BackoffBase is the base delay for exponential retry backoff.
	BackoffBase time.Duration

	// BackoffMax caps the computed retry delay.
	BackoffMax time.Duration

	// ProduceTimeout is the hard deadline for one model adapter invocation.
	ProduceTimeout time.Duration

	// MaxTextLength is the maximum number of runes kept from extracted text.
	MaxTextLength int

	// FailureRateThreshold demotes a tier whose rolling failure rate
	// exceeds this fraction.
	FailureRateThreshold float64

	// KeywordWeight and VectorWeight blend the two search collaborators'
	// normalized scores. They default to the original system's equal blend.
	KeywordWeight float64
	VectorWeight  float64

	// SearchPageSize is the number of results per search page.
	SearchPageSize int

	// PremiumAPIKey enables the remote high-quality tier when set.
	PremiumAPIKey string

	// PremiumBaseURL is the OpenAI-compatible endpoint for the premium tier.
	PremiumBaseURL string

	// PremiumModel is the model identifier for the premium tier.
	PremiumModel string

	// PremiumMaxInFlight and EconomyMaxInFlight cap concurrent invocations
	// per tier; a saturated tier makes the router signal backoff.
	PremiumMaxInFlight int
	EconomyMaxInFlight int
}

// fileConfig is the YAML overlay. Durations are expressed in seconds,
// zero values mean "not set".
type fileConfig struct {
	Port                 string  `yaml:"port"`
	DBPath               string  `yaml:"db_path"`
	BlobPath             string  `yaml:"blob_path"`
	WorkerCount          int     `yaml:"worker_count"`
	PollIntervalSecs     int     `yaml:"poll_interval_secs"`
	MaxAttempts          int     `yaml:"max_attempts"`
	BackoffBaseSecs      int     `yaml:"backoff_base_secs"`
	BackoffMaxSecs       int     `yaml:"backoff_max_secs"`
	ProduceTimeoutSecs   int     `yaml:"produce_timeout_secs"`
	MaxTextLength        int     `yaml:"max_text_length"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold"`
	KeywordWeight        float64 `yaml:"keyword_weight"`
	VectorWeight         float64 `yaml:"vector_weight"`
	SearchPageSize       int     `yaml:"search_page_size"`
	PremiumBaseURL       string  `yaml:"premium_base_url"`
	PremiumModel         string  `yaml:"premium_model"`
	PremiumMaxInFlight   int     `yaml:"premium_max_in_flight"`
	EconomyMaxInFlight   int     `yaml:"economy_max_in_flight"`
}

// Load builds the configuration. path points to an optional YAML file;
// a missing file is not an error.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func defaults() Config {
	return Config{
		Port:                 "8080",
		DBPath:               "summiva.db",
		BlobPath:             "summiva-blobs",
		CORSOrigin:           "*",
		WorkerCount:          4,
		PollInterval:         time.Second,
		MaxAttempts:          5,
		BackoffBase:          2 * time.Second,
		BackoffMax:           2 * time.Minute,
		ProduceTimeout:       60 * time.Second,
		MaxTextLength:        15000,
		FailureRateThreshold: 0.5,
		KeywordWeight:        0.5,
		VectorWeight:         0.5,
		SearchPageSize:       20,
		PremiumBaseURL:       "https://api.openai.com/v1",
		PremiumModel:         "gpt-4o-mini",
		PremiumMaxInFlight:   4,
		EconomyMaxInFlight:   16,
	}
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return err
	}

	setStr(&cfg.Port, fc.Port)
	setStr(&cfg.DBPath, fc.DBPath)
	setStr(&cfg.BlobPath, fc.BlobPath)
	setInt(&cfg.WorkerCount, fc.WorkerCount)
	setSecs(&cfg.PollInterval, fc.PollIntervalSecs)
	setInt(&cfg.MaxAttempts, fc.MaxAttempts)
	setSecs(&cfg.BackoffBase, fc.BackoffBaseSecs)
	setSecs(&cfg.BackoffMax, fc.BackoffMaxSecs)
	setSecs(&cfg.ProduceTimeout, fc.ProduceTimeoutSecs)
	setInt(&cfg.MaxTextLength, fc.MaxTextLength)
	setFloat(&cfg.FailureRateThreshold, fc.FailureRateThreshold)
	setFloat(&cfg.KeywordWeight, fc.KeywordWeight)
	setFloat(&cfg.VectorWeight, fc.VectorWeight)
	setInt(&cfg.SearchPageSize, fc.SearchPageSize)
	setStr(&cfg.PremiumBaseURL, fc.PremiumBaseURL)
	setStr(&cfg.PremiumModel, fc.PremiumModel)
	setInt(&cfg.PremiumMaxInFlight, fc.PremiumMaxInFlight)
	setInt(&cfg.EconomyMaxInFlight, fc.EconomyMaxInFlight)
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Port = envOr("PORT", cfg.Port)
	cfg.DBPath = envOr("DB_PATH", cfg.DBPath)
	cfg.BlobPath = envOr("BLOB_PATH", cfg.BlobPath)
	cfg.BlobInMemory = envBool("BLOB_IN_MEMORY", cfg.BlobInMemory)
	cfg.JWTSecret = envOr("JWT_SECRET", cfg.JWTSecret)
	cfg.CORSOrigin = envOr("CORS_ORIGIN", cfg.CORSOrigin)
	cfg.WorkerCount = envInt("WORKER_COUNT", cfg.WorkerCount)
	cfg.PollInterval = envDuration("POLL_INTERVAL", cfg.PollInterval)
	cfg.MaxAttempts = envInt("MAX_ATTEMPTS", cfg.MaxAttempts)
	cfg.BackoffBase = envDuration("BACKOFF_BASE", cfg.BackoffBase)
	cfg.BackoffMax = envDuration("BACKOFF_MAX", cfg.BackoffMax)
	cfg.ProduceTimeout = envDuration("PRODUCE_TIMEOUT", cfg.ProduceTimeout)
	cfg.MaxTextLength = envInt("MAX_TEXT_LENGTH", cfg.MaxTextLength)
	cfg.FailureRateThreshold = envFloat("FAILURE_RATE_THRESHOLD", cfg.FailureRateThreshold)
	cfg.KeywordWeight = envFloat("KEYWORD_WEIGHT", cfg.KeywordWeight)
	cfg.VectorWeight = envFloat("VECTOR_WEIGHT", cfg.VectorWeight)
	cfg.SearchPageSize = envInt("SEARCH_PAGE_SIZE", cfg.SearchPageSize)
	cfg.PremiumAPIKey = envOr("PREMIUM_API_KEY", cfg.PremiumAPIKey)
	cfg.PremiumBaseURL = envOr("PREMIUM_BASE_URL", cfg.PremiumBaseURL)
	cfg.PremiumModel = envOr("PREMIUM_MODEL", cfg.PremiumModel)
	cfg.PremiumMaxInFlight = envInt("PREMIUM_MAX_IN_FLIGHT", cfg.PremiumMaxInFlight)
	cfg.EconomyMaxInFlight = envInt("ECONOMY_MAX_IN_FLIGHT", cfg.EconomyMaxInFlight)
}

// UsePremiumStub reports whether the premium tier should run as a stub
// because no API key is configured.
func (c Config) UsePremiumStub() bool {
	return c.PremiumAPIKey == ""
}

func setStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func setSecs(dst *time.Duration, secs int) {
	if secs != 0 {
		*dst = time.Duration(secs) * time.Second
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
