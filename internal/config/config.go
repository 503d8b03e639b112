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

// Config holds the logweave API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	VectorDB  VectorDBConfig  `yaml:"vector_db"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Retention RetentionConfig `yaml:"retention"`
	Auth      AuthConfig      `yaml:"auth"`
	Keys      KeysConfig      `yaml:"keys"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication for the query endpoints. Ingestion
// authenticates per-client via envelope signatures, not API keys.
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

// DatabaseConfig holds PostgreSQL settings for the durable log store.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// VectorDBConfig holds settings for the Redis similarity index.
type VectorDBConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	Collection       string   `yaml:"collection"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	HNSWM            int      `yaml:"hnsw_m"`
	HNSWEFConstruct  int      `yaml:"hnsw_ef_construction"`
}

// EmbeddingConfig holds the embedding provider and model settings.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BatchSize  int    `yaml:"batch_size"` // upsert batching toward the index
}

// Unattributed batch policies.
const (
	UnattributedAccept = "accept" // stamp client_id="unknown"
	UnattributedReject = "reject" // fail the batch
)

// IngestConfig holds ingestion policy settings.
type IngestConfig struct {
	// Unattributed controls what happens to plaintext batches that carry no
	// authenticated client identity: "accept" or "reject".
	Unattributed string `yaml:"unattributed"`
}

// RetentionConfig holds log retention settings. MaxAgeDays <= 0 disables
// the retention loop.
type RetentionConfig struct {
	MaxAgeDays    int `yaml:"max_age_days"`
	IntervalHours int `yaml:"interval_hours"`
}

// ClientKey is one client's verification key, base64-encoded.
type ClientKey struct {
	ID        string `yaml:"id"`
	PublicKey string `yaml:"public_key"`
}

// KeysConfig holds client signing key material.
type KeysConfig struct {
	Clients []ClientKey `yaml:"clients"`
	// DemoSeeds derive deterministic key pairs at startup for the listed
	// client IDs. Non-prod environments only; Validate rejects them in prod.
	DemoSeeds []string `yaml:"demo_seeds"`
}

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

	if err := cfg.Validate(env); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
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
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 25
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.VectorDB.Collection == "" {
		c.VectorDB.Collection = "log_vectors"
	}
	if c.VectorDB.ReadinessTimeout <= 0 {
		c.VectorDB.ReadinessTimeout = 10
	}
	if c.VectorDB.HNSWM <= 0 {
		c.VectorDB.HNSWM = 32
	}
	if c.VectorDB.HNSWEFConstruct <= 0 {
		c.VectorDB.HNSWEFConstruct = 400
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 768
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 100
	}
	if c.Ingest.Unattributed == "" {
		c.Ingest.Unattributed = UnattributedAccept
	}
	if c.Retention.IntervalHours <= 0 {
		c.Retention.IntervalHours = 1
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate(env string) error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if len(c.VectorDB.Addrs) == 0 {
		return fmt.Errorf("vector_db.addrs is required")
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	switch c.Ingest.Unattributed {
	case UnattributedAccept, UnattributedReject:
	default:
		return fmt.Errorf("ingest.unattributed must be %q or %q, got %q",
			UnattributedAccept, UnattributedReject, c.Ingest.Unattributed)
	}
	if env == "prod" && len(c.Keys.DemoSeeds) > 0 {
		return fmt.Errorf("keys.demo_seeds must be empty in prod")
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
