package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the rankdex API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Auth      AuthConfig      `yaml:"auth"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
}

// EmbeddingConfig holds embedding provider settings (OpenAI-compatible API).
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	Provider   string `yaml:"provider"` // label for metrics and logs
}

// RetrievalConfig holds the staged pipeline definition.
type RetrievalConfig struct {
	QueryTimeoutSec int           `yaml:"query_timeout_sec"`
	MaxBatchSize    int           `yaml:"max_batch_size"`
	Stages          []StageConfig `yaml:"stages"`
}

// StageConfig defines one pipeline stage.
type StageConfig struct {
	Name       string            `yaml:"name"`
	Type       string            `yaml:"type"` // backend type name, resolved via the component registry
	Enabled    *bool             `yaml:"enabled"`
	TopK       int               `yaml:"top_k"`
	TimeoutSec int               `yaml:"timeout_sec"` // per-call budget, capped by the remaining query deadline
	Degrade    string            `yaml:"degrade"`     // passthrough (default) | empty
	Cache      CacheConfig       `yaml:"cache"`
	Breaker    BreakerConfig     `yaml:"breaker"`
	Params     map[string]string `yaml:"params"` // backend-specific settings
}

// IsEnabled reports whether the stage is enabled (default true).
func (s StageConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// CacheConfig holds per-stage cache settings.
type CacheConfig struct {
	Variant    string `yaml:"variant"` // none (default) | memory | redis
	TTLSec     int    `yaml:"ttl_sec"`
	MaxEntries int    `yaml:"max_entries"` // memory variant only
}

// BreakerConfig holds per-stage circuit breaker settings.
type BreakerConfig struct {
	FailureThreshold int     `yaml:"failure_threshold"`
	WindowSec        int     `yaml:"window_sec"`
	CooldownSec      int     `yaml:"cooldown_sec"`
	BackoffFactor    float64 `yaml:"backoff_factor"` // >= 1; cooldown growth on repeated probe failures
}

// Degradation policies.
const (
	DegradePassthrough = "passthrough"
	DegradeEmpty       = "empty"
)

// Cache variants.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "rankdex:"
	}
	if c.Retrieval.QueryTimeoutSec <= 0 {
		c.Retrieval.QueryTimeoutSec = 10
	}
	if c.Retrieval.MaxBatchSize <= 0 {
		c.Retrieval.MaxBatchSize = 100
	}
	for i := range c.Retrieval.Stages {
		s := &c.Retrieval.Stages[i]
		if s.Degrade == "" {
			s.Degrade = DegradePassthrough
		}
		if s.Cache.Variant == "" {
			s.Cache.Variant = CacheNone
		}
		if s.Cache.MaxEntries <= 0 {
			s.Cache.MaxEntries = 1024
		}
		if s.Breaker.FailureThreshold <= 0 {
			s.Breaker.FailureThreshold = 5
		}
		if s.Breaker.WindowSec <= 0 {
			s.Breaker.WindowSec = 60
		}
		if s.Breaker.CooldownSec <= 0 {
			s.Breaker.CooldownSec = 30
		}
		if s.Breaker.BackoffFactor < 1 {
			s.Breaker.BackoffFactor = 1
		}
	}
}

// Validate checks configuration shape. Pipeline-level validation
// (top-K monotonicity, backend resolution) happens in the retriever builder.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if len(c.Retrieval.Stages) == 0 {
		return fmt.Errorf("retrieval.stages is required")
	}
	seen := make(map[string]bool, len(c.Retrieval.Stages))
	for _, s := range c.Retrieval.Stages {
		if s.Name == "" {
			return fmt.Errorf("retrieval.stages[].name is required")
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate stage name %q", s.Name)
		}
		seen[s.Name] = true
		if s.Type == "" {
			return fmt.Errorf("stage %s: type is required", s.Name)
		}
		if s.TopK <= 0 {
			return fmt.Errorf("stage %s: top_k must be positive, got %d", s.Name, s.TopK)
		}
		switch s.Degrade {
		case DegradePassthrough, DegradeEmpty:
		default:
			return fmt.Errorf(
				"stage %s: degrade must be %q or %q, got %q",
				s.Name, DegradePassthrough, DegradeEmpty, s.Degrade,
			)
		}
		switch s.Cache.Variant {
		case CacheNone, CacheMemory, CacheRedis:
		default:
			return fmt.Errorf("stage %s: unknown cache variant %q", s.Name, s.Cache.Variant)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
