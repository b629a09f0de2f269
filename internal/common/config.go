package common

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// KeyValueStore is the minimal system KV surface the config layer needs for
// runtime key resolution. Satisfied by the badger KV store.
type KeyValueStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Config holds all configuration for ledgerflow.
type Config struct {
	Environment    string               `toml:"environment"`
	Storage        StorageConfig        `toml:"storage"`
	Sources        SourcesConfig        `toml:"sources"`
	Clients        ClientsConfig        `toml:"clients"`
	Normalization  NormalizationConfig  `toml:"normalization"`
	Categorization CategorizationConfig `toml:"categorization"`
	Historical     HistoricalConfig     `toml:"historical"`
	Confidence     ConfidenceConfig     `toml:"confidence"`
	Currencies     CurrenciesConfig     `toml:"currencies"`
	Logging        LoggingConfig        `toml:"logging"`
}

// StorageConfig holds the path for the BadgerHold data directory.
type StorageConfig struct {
	Path string `toml:"path"`
}

// SourcesConfig holds configuration for the file source store.
type SourcesConfig struct {
	Dir          string `toml:"dir"`
	WriteBackIDs bool   `toml:"write_back_ids"`
}

// ClientsConfig holds API client configurations.
type ClientsConfig struct {
	Gemini GeminiConfig `toml:"gemini"`
	FX     FXConfig     `toml:"fx"`
}

// GeminiConfig holds Gemini API configuration.
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Temperature float64 `toml:"temperature"`
	Timeout     string  `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration.
func (c *GeminiConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// FXConfig holds exchange-rate provider configuration.
type FXConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration.
func (c *FXConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// NormalizationConfig tunes the normalization pipeline.
type NormalizationConfig struct {
	MaxAttempts int    `toml:"max_attempts"`
	BackoffBase string `toml:"backoff_base"`
	BackoffCap  string `toml:"backoff_cap"`
}

// GetBackoffBase parses the base delay between retry attempts.
func (c *NormalizationConfig) GetBackoffBase() time.Duration {
	d, err := time.ParseDuration(c.BackoffBase)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// GetBackoffCap parses the maximum delay between retry attempts.
func (c *NormalizationConfig) GetBackoffCap() time.Duration {
	d, err := time.ParseDuration(c.BackoffCap)
	if err != nil {
		return 32 * time.Second
	}
	return d
}

// CategorizationConfig tunes the categorization pipeline.
type CategorizationConfig struct {
	BatchSize            int  `toml:"batch_size"`
	ContextSize          int  `toml:"context_size"`
	UseHistoricalContext bool `toml:"use_historical_context"`
	Recategorize         bool `toml:"recategorize"`
	Parallelism          int  `toml:"parallelism"`
}

// HistoricalConfig tunes the historical pattern learner.
type HistoricalConfig struct {
	LookbackDays         int     `toml:"lookback_days"`
	FuzzyThreshold       float64 `toml:"fuzzy_threshold"`
	AmountTolerance      float64 `toml:"amount_tolerance"`
	ManualOverrideWeight float64 `toml:"manual_override_weight"`
}

// ConfidenceConfig tunes the confidence calculator.
type ConfidenceConfig struct {
	AIWeight            float64 `toml:"ai_weight"`
	HistoricalWeight    float64 `toml:"historical_weight"`
	ConsensusBonus      float64 `toml:"consensus_bonus"`
	ConflictPenalty     float64 `toml:"conflict_penalty"`
	MinMatches          int     `toml:"min_matches"`
	ManualOverrideBoost float64 `toml:"manual_override_boost"`
}

// CurrenciesConfig lists the supported ISO 4217 currency codes.
type CurrenciesConfig struct {
	Supported []string `toml:"supported"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// DefaultSupportedCurrencies is the currency set accepted by the validator
// when no override is configured.
var DefaultSupportedCurrencies = []string{
	"GBP", "USD", "EUR", "CAD", "AUD", "JPY", "MAD",
	"THB", "SGD", "HKD", "ZAR", "NOK", "CNY", "SEK",
}

// NewDefaultConfig returns a Config with sensible defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage:     StorageConfig{Path: "data/ledgerflow"},
		Sources:     SourcesConfig{Dir: "data/exports"},
		Clients: ClientsConfig{
			Gemini: GeminiConfig{
				Model:       "gemini-2.0-flash",
				Temperature: 0.2,
				Timeout:     "60s",
			},
			FX: FXConfig{
				BaseURL:   "https://api.frankfurter.dev/v1",
				RateLimit: 5,
				Timeout:   "30s",
			},
		},
		Normalization: NormalizationConfig{
			MaxAttempts: 5,
			BackoffBase: "2s",
			BackoffCap:  "32s",
		},
		Categorization: CategorizationConfig{
			BatchSize:            10,
			ContextSize:          5,
			UseHistoricalContext: true,
			Recategorize:         false,
			Parallelism:          1,
		},
		Historical: HistoricalConfig{
			LookbackDays:         90,
			FuzzyThreshold:       0.6,
			AmountTolerance:      0.10,
			ManualOverrideWeight: 2.0,
		},
		Confidence: ConfidenceConfig{
			AIWeight:            0.6,
			HistoricalWeight:    0.4,
			ConsensusBonus:      15,
			ConflictPenalty:     15,
			MinMatches:          2,
			ManualOverrideBoost: 5,
		},
		Currencies: CurrenciesConfig{Supported: DefaultSupportedCurrencies},
		Logging:    LoggingConfig{Level: "info"},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// Later files override earlier ones; missing files are skipped.
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("LEDGERFLOW_ENV"); env != "" {
		config.Environment = env
	}
	if path := os.Getenv("LEDGERFLOW_DATA_PATH"); path != "" {
		config.Storage.Path = path
	}
	if dir := os.Getenv("LEDGERFLOW_SOURCES_DIR"); dir != "" {
		config.Sources.Dir = dir
	}
	if level := os.Getenv("LEDGERFLOW_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if v := os.Getenv("LEDGERFLOW_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Categorization.BatchSize = n
		}
	}
	if v := os.Getenv("LEDGERFLOW_FX_BASE_URL"); v != "" {
		config.Clients.FX.BaseURL = v
	}
}

// Validate checks cross-field constraints. Confidence weights must sum to
// 1.0 within a small tolerance; bonuses and penalties must be bounded.
func (c *Config) Validate() error {
	sum := c.Confidence.AIWeight + c.Confidence.HistoricalWeight
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("config: confidence weights must sum to 1.0, got %.2f", sum)
	}
	if c.Confidence.ConsensusBonus < 0 || c.Confidence.ConsensusBonus > 50 {
		return fmt.Errorf("config: consensus_bonus out of range [0,50]: %.1f", c.Confidence.ConsensusBonus)
	}
	if c.Confidence.ConflictPenalty < 0 || c.Confidence.ConflictPenalty > 50 {
		return fmt.Errorf("config: conflict_penalty out of range [0,50]: %.1f", c.Confidence.ConflictPenalty)
	}
	if c.Historical.FuzzyThreshold < 0 || c.Historical.FuzzyThreshold > 1 {
		return fmt.Errorf("config: fuzzy_threshold out of range [0,1]: %.2f", c.Historical.FuzzyThreshold)
	}
	if c.Historical.AmountTolerance <= 0 {
		return fmt.Errorf("config: amount_tolerance must be positive: %.2f", c.Historical.AmountTolerance)
	}
	if c.Categorization.BatchSize <= 0 {
		return fmt.Errorf("config: batch_size must be positive: %d", c.Categorization.BatchSize)
	}
	if c.Normalization.MaxAttempts <= 0 {
		return fmt.Errorf("config: max_attempts must be positive: %d", c.Normalization.MaxAttempts)
	}
	if len(c.Currencies.Supported) == 0 {
		return fmt.Errorf("config: currencies.supported must not be empty")
	}
	return nil
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ResolveAPIKey resolves an API key from environment, system KV store, or
// config fallback, in that priority order. Keys never appear in logs.
func ResolveAPIKey(ctx context.Context, store KeyValueStore, name string, fallback string) (string, error) {
	keyToEnvMapping := map[string][]string{
		"gemini_api_key": {"GEMINI_API_KEY", "LEDGERFLOW_GEMINI_API_KEY", "GOOGLE_API_KEY"},
		"fx_api_key":     {"FX_API_KEY", "LEDGERFLOW_FX_API_KEY"},
	}

	if envVarNames, ok := keyToEnvMapping[name]; ok {
		for _, envVarName := range envVarNames {
			if envValue := os.Getenv(envVarName); envValue != "" {
				return envValue, nil
			}
		}
	}

	if store != nil {
		if apiKey, err := store.Get(ctx, name); err == nil && apiKey != "" {
			return apiKey, nil
		}
	}

	if fallback != "" {
		return fallback, nil
	}

	return "", fmt.Errorf("API key '%s' not found in environment or store", name)
}
