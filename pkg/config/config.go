// Package config resolves the engine configuration from defaults, an
// optional YAML file (read by the CLI into viper), and environment
// variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"

	"github.com/graphfold/graphfold/pkg/alert"
)

// Config holds all configuration for the engine.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Tiebreak  TiebreakConfig  `mapstructure:"tiebreak"`
	Decision  DecisionConfig  `mapstructure:"decision"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Import    ImportConfig    `mapstructure:"import"`
	Review    ReviewConfig    `mapstructure:"review"`
	Taxonomy  TaxonomyConfig  `mapstructure:"taxonomy"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Alert     alert.Config    `mapstructure:"alert"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig holds graph store configuration.
type DatabaseConfig struct {
	Provider string `mapstructure:"provider"` // neo4j, memory
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// EmbeddingCacheConfig holds the persistent embedding cache configuration.
type EmbeddingCacheConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Dir      string `mapstructure:"dir"`
	TTLHours int    `mapstructure:"ttl_hours"`
}

// EmbeddingConfig holds embedding client configuration.
type EmbeddingConfig struct {
	Provider   string               `mapstructure:"provider"` // openai, local, none
	Model      string               `mapstructure:"model"`
	APIKey     string               `mapstructure:"api_key"`
	BaseURL    string               `mapstructure:"base_url"`
	Dimensions int                  `mapstructure:"dimensions"`
	Cache      EmbeddingCacheConfig `mapstructure:"cache"`
}

// CircuitBreakerConfig holds circuit breaker tuning for the tiebreak client.
type CircuitBreakerConfig struct {
	MaxRequests uint32  `mapstructure:"max_requests"`
	Interval    int     `mapstructure:"interval"` // in seconds
	Timeout     int     `mapstructure:"timeout"`  // in seconds
	TripRatio   float64 `mapstructure:"trip_ratio"`
}

// TiebreakConfig holds AI tiebreaker configuration.
type TiebreakConfig struct {
	Enabled     bool                 `mapstructure:"enabled"`
	Model       string               `mapstructure:"model"`
	APIKey      string               `mapstructure:"api_key"`
	BaseURL     string               `mapstructure:"base_url"`
	MaxTokens   int                  `mapstructure:"max_tokens"`
	CallTimeout int                  `mapstructure:"call_timeout"` // in seconds
	Breaker     CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// DecisionConfig holds the confidence band thresholds.
type DecisionConfig struct {
	HighThreshold float64 `mapstructure:"high_threshold"`
	LowThreshold  float64 `mapstructure:"low_threshold"`
}

// RetrievalConfig holds candidate retrieval tuning.
type RetrievalConfig struct {
	Limit           int `mapstructure:"limit"`
	MinFuzzyNameLen int `mapstructure:"min_fuzzy_name_len"`
}

// ImportConfig holds batch import tuning.
type ImportConfig struct {
	Workers        int `mapstructure:"workers"`
	ClearChunkSize int `mapstructure:"clear_chunk_size"`
}

// ReviewConfig holds the human review queue location.
type ReviewConfig struct {
	Path string `mapstructure:"path"`
}

// TaxonomyConfig holds the schema file location. An empty path disables
// taxonomy checks.
type TaxonomyConfig struct {
	Path string `mapstructure:"path"`
}

// TelemetryConfig holds the decision log configuration.
type TelemetryConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Dir       string `mapstructure:"dir"`
	BatchSize int    `mapstructure:"batch_size"`
}

// Load resolves the configuration from viper defaults, whatever config file
// the caller already read into viper, and environment variables.
func Load() (*Config, error) {
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)

	return config, nil
}

// setDefaults sets default configuration values.
func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	viper.SetDefault("database.provider", "neo4j")
	viper.SetDefault("database.uri", "bolt://localhost:7687")
	viper.SetDefault("database.username", "neo4j")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.database", "")

	viper.SetDefault("embedding.provider", "local")
	viper.SetDefault("embedding.model", "all-MiniLM-L6-v2")
	viper.SetDefault("embedding.cache.enabled", true)
	viper.SetDefault("embedding.cache.dir", "data/embedding_cache")
	viper.SetDefault("embedding.cache.ttl_hours", 720)

	viper.SetDefault("tiebreak.enabled", false)
	viper.SetDefault("tiebreak.model", "gpt-4o-mini")
	viper.SetDefault("tiebreak.max_tokens", 64)
	viper.SetDefault("tiebreak.call_timeout", 20)
	viper.SetDefault("tiebreak.circuit_breaker.max_requests", 1)
	viper.SetDefault("tiebreak.circuit_breaker.interval", 60)
	viper.SetDefault("tiebreak.circuit_breaker.timeout", 60)
	viper.SetDefault("tiebreak.circuit_breaker.trip_ratio", 0.6)

	viper.SetDefault("decision.high_threshold", 0.90)
	viper.SetDefault("decision.low_threshold", 0.50)

	viper.SetDefault("retrieval.limit", 10)
	viper.SetDefault("retrieval.min_fuzzy_name_len", 4)

	viper.SetDefault("import.workers", 4)
	viper.SetDefault("import.clear_chunk_size", 1000)

	viper.SetDefault("review.path", "data/review_queue.json")

	viper.SetDefault("taxonomy.path", "")

	viper.SetDefault("telemetry.enabled", true)
	viper.SetDefault("telemetry.dir", "data/telemetry")
	viper.SetDefault("telemetry.batch_size", 100)

	viper.SetDefault("alert.enabled", false)
	viper.SetDefault("alert.smtp_port", 587)
}

// overrideWithEnv overrides config with environment variables.
func overrideWithEnv(config *Config) {
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Database.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.Database.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Database.Password = pass
	}

	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		if config.Embedding.APIKey == "" {
			config.Embedding.APIKey = apiKey
		}
		if config.Tiebreak.APIKey == "" {
			config.Tiebreak.APIKey = apiKey
		}
	}

	if provider := os.Getenv("GRAPHFOLD_DB_PROVIDER"); provider != "" {
		config.Database.Provider = provider
	}
	if path := os.Getenv("GRAPHFOLD_REVIEW_PATH"); path != "" {
		config.Review.Path = path
	}
	if path := os.Getenv("GRAPHFOLD_TAXONOMY_PATH"); path != "" {
		config.Taxonomy.Path = path
	}
	if dir := os.Getenv("GRAPHFOLD_TELEMETRY_DIR"); dir != "" {
		config.Telemetry.Dir = dir
	}
	if raw := os.Getenv("GRAPHFOLD_HIGH_THRESHOLD"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			config.Decision.HighThreshold = v
		}
	}
	if raw := os.Getenv("GRAPHFOLD_LOW_THRESHOLD"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			config.Decision.LowThreshold = v
		}
	}
}
