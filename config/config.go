// Package config loads the immutable option record consumed by the rest of
// the engine. Flag parsing is an external collaborator; this package applies
// defaults, an optional YAML file named by CONFIG_FILE, and environment
// variables, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider selects which embedding backend is active.
type Provider string

const (
	ProviderOllama   Provider = "ollama"
	ProviderOpenAI   Provider = "openai"
	ProviderTogether Provider = "together"
)

// DatabaseConfig addresses the SurrealDB instance backing the repo table.
type DatabaseConfig struct {
	URL       string `yaml:"url"`
	User      string `yaml:"user"`
	Pass      string `yaml:"pass"`
	Namespace string `yaml:"namespace"`
	Database  string `yaml:"database"`

	PoolMaxSize       int           `yaml:"pool_max_size"`
	PoolWaitTimeout   time.Duration `yaml:"pool_wait_timeout"`
	PoolCreateTimeout time.Duration `yaml:"pool_create_timeout"`
}

// ProviderConfig carries per-backend credentials and endpoints.
type ProviderConfig struct {
	Active         Provider `yaml:"active"`
	Model          string   `yaml:"model"`
	OllamaURL      string   `yaml:"ollama_url"`
	OpenAIAPIKey   string   `yaml:"openai_api_key"`
	TogetherAPIKey string   `yaml:"together_api_key"`
}

// RateLimitConfig is the token-bucket quota for the active provider.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// BreakerConfig is the per-provider circuit breaker tuning.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

// RetryConfig tunes the bounded exponential-backoff executor.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	Multiplier  float64       `yaml:"multiplier"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// CacheConfig tunes the bounded embedding cache.
type CacheConfig struct {
	Size int           `yaml:"size"`
	TTL  time.Duration `yaml:"ttl"`
}

// Config is the full, immutable configuration record for one process. The
// yaml tags back the optional file overlay (overlayFile, applied by Load); environment
// variables always take precedence over whatever a file sets.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Provider  ProviderConfig  `yaml:"provider"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Breaker   BreakerConfig   `yaml:"breaker"`
	Retry     RetryConfig     `yaml:"retry"`
	Cache     CacheConfig     `yaml:"cache"`

	BatchSize       int           `yaml:"batch_size"`
	ParallelWorkers int           `yaml:"parallel_workers"`
	BatchDelay      time.Duration `yaml:"batch_delay"`
	TokenLimit      int           `yaml:"token_limit"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	DiscoveryTick   time.Duration `yaml:"discovery_tick"`

	ProviderTimeout time.Duration `yaml:"provider_timeout"`
	DatabaseTimeout time.Duration `yaml:"database_timeout"`
}

// Load reads every supported environment variable, applying the defaults
// and returns the assembled record. It does not validate;
// call Validate separately so startup failures can be reported distinctly.
func Load() *Config {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := overlayFile(cfg, path); err != nil {
			fmt.Fprintf(os.Stderr, "config: ignoring CONFIG_FILE %q: %v\n", path, err)
		}
	}

	if v := os.Getenv("DB_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DB_PASS"); v != "" {
		cfg.Database.Pass = v
	}
	if v := os.Getenv("DB_NAMESPACE"); v != "" {
		cfg.Database.Namespace = v
	}
	if v := os.Getenv("DB_DATABASE"); v != "" {
		cfg.Database.Database = v
	}

	if v := os.Getenv("EMBEDDING_PROVIDER"); v != "" {
		cfg.Provider.Active = Provider(v)
	}
	if v := os.Getenv("EMBEDDING_MODEL"); v != "" {
		cfg.Provider.Model = v
	}
	if v := os.Getenv("OLLAMA_URL"); v != "" {
		cfg.Provider.OllamaURL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Provider.OpenAIAPIKey = v
	}
	if v := os.Getenv("TOGETHER_API_KEY"); v != "" {
		cfg.Provider.TogetherAPIKey = v
	}

	setInt(&cfg.BatchSize, "BATCH_SIZE")
	setInt(&cfg.ParallelWorkers, "PARALLEL_WORKERS")
	setInt(&cfg.Retry.MaxAttempts, "RETRY_ATTEMPTS")
	setMillis(&cfg.Retry.BaseDelay, "RETRY_DELAY_MS")
	setMillis(&cfg.BatchDelay, "BATCH_DELAY_MS")
	setInt(&cfg.TokenLimit, "TOKEN_LIMIT")
	setInt(&cfg.Database.PoolMaxSize, "POOL_MAX_SIZE")
	setSeconds(&cfg.Database.PoolWaitTimeout, "POOL_WAIT_TIMEOUT_SECS")
	setSeconds(&cfg.Database.PoolCreateTimeout, "POOL_CREATE_TIMEOUT_SECS")
	setInt(&cfg.Cache.Size, "CACHE_SIZE")
	setSeconds(&cfg.Cache.TTL, "CACHE_TTL_SECS")
	setSeconds(&cfg.ShutdownTimeout, "SHUTDOWN_TIMEOUT_SECS")

	return cfg
}

// overlayFile decodes the YAML document at path over cfg's existing
// defaults: any field the file omits keeps its current value, since
// yaml.Unmarshal only writes the keys present in the document.
func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// Default returns the baseline configuration used when no environment
// variable or config file overrides a field.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			URL:               "ws://localhost:8000/rpc",
			Namespace:         "embedstar",
			Database:          "embedstar",
			PoolMaxSize:       10,
			PoolWaitTimeout:   10 * time.Second,
			PoolCreateTimeout: 30 * time.Second,
		},
		Provider: ProviderConfig{
			Active:    ProviderOllama,
			Model:     "nomic-embed-text",
			OllamaURL: "http://localhost:11434",
		},
		RateLimit: RateLimitConfig{RequestsPerMinute: 60},
		Breaker:   BreakerConfig{FailureThreshold: 5, Cooldown: 60 * time.Second},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			Multiplier:  2.0,
			MaxDelay:    30 * time.Second,
		},
		Cache:           CacheConfig{Size: 10000, TTL: 1 * time.Hour},
		BatchSize:       10,
		ParallelWorkers: 3,
		BatchDelay:      100 * time.Millisecond,
		TokenLimit:      8000,
		ShutdownTimeout: 30 * time.Second,
		DiscoveryTick:   5 * time.Second,
		ProviderTimeout: 30 * time.Second,
		DatabaseTimeout: 10 * time.Second,
	}
}

// Validate reports an error for anything that would make the engine unable
// to start (fatal at startup). The error is a plain error value, not a
// domain.Error carrying a kind.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("config: db_url is required")
	}
	if c.Database.Namespace == "" || c.Database.Database == "" {
		return fmt.Errorf("config: db_namespace and db_database are required")
	}
	switch c.Provider.Active {
	case ProviderOllama:
		if c.Provider.OllamaURL == "" {
			return fmt.Errorf("config: ollama_url is required when embedding_provider=ollama")
		}
	case ProviderOpenAI:
		if c.Provider.OpenAIAPIKey == "" {
			return fmt.Errorf("config: openai_api_key is required when embedding_provider=openai")
		}
	case ProviderTogether:
		if c.Provider.TogetherAPIKey == "" {
			return fmt.Errorf("config: together_api_key is required when embedding_provider=together")
		}
	default:
		return fmt.Errorf("config: unknown embedding_provider %q", c.Provider.Active)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("config: batch_size must be positive")
	}
	return nil
}

func setInt(dst *int, env string) {
	v := os.Getenv(env)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = n
	}
}

func setMillis(dst *time.Duration, env string) {
	v := os.Getenv(env)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(n) * time.Millisecond
	}
}

func setSeconds(dst *time.Duration, env string) {
	v := os.Getenv(env)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(n) * time.Second
	}
}
