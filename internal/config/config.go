package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Database drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
	DriverRedis  = "redis"
	DriverValkey = "valkey"
	DriverBadger = "badger"
)

// Cache drivers.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds the docsearch configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Cache    CacheConfig    `yaml:"cache"`
	Search   SearchConfig   `yaml:"search"`
	Bulk     BulkConfig     `yaml:"bulk"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	MaxBodyBytes    int `yaml:"max_body_bytes"`
}

// DatabaseConfig selects and configures the document store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // memory, sqlite, mongo, redis, valkey, badger (default: memory)

	// sqlite: file path or ":memory:"; mongo: connection URI.
	DSN string `yaml:"dsn"`

	// redis/valkey
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	// ForceSingleClient disables cluster topology discovery.
	ForceSingleClient bool `yaml:"force_single_client"`

	// mongo
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`

	// badger: data directory; empty with in_memory=true keeps everything in RAM.
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// CacheConfig configures the candidate window cache.
type CacheConfig struct {
	Driver   string `yaml:"driver"` // none, memory, redis (default: memory)
	TTLSec   int    `yaml:"ttl_sec"`
	MaxBytes int64  `yaml:"max_bytes"` // memory driver only
	Addr     string `yaml:"addr"`      // redis driver only
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// TTL returns the entry lifetime.
func (c CacheConfig) TTL() time.Duration { return time.Duration(c.TTLSec) * time.Second }

// SearchConfig holds query limits and analysis settings.
type SearchConfig struct {
	ScanRange    int      `yaml:"scan_range"`
	DefaultLimit int      `yaml:"default_limit"`
	MaxLimit     int      `yaml:"max_limit"`
	StopWords    []string `yaml:"stop_words"` // nil: built-in English list; []: disabled
}

// BulkConfig sizes bulk upserts.
type BulkConfig struct {
	Workers      int `yaml:"workers"`
	MaxBatchSize int `yaml:"max_batch_size"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse expands ${VAR} references, decodes YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
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
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = 10 << 20
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverMemory
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "docsearch:"
	}
	if c.Database.Database == "" {
		c.Database.Database = "docsearch"
	}
	if c.Database.Collection == "" {
		c.Database.Collection = "documents"
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = CacheMemory
	}
	if c.Cache.TTLSec <= 0 {
		c.Cache.TTLSec = 300
	}
	if c.Cache.MaxBytes <= 0 {
		c.Cache.MaxBytes = 64 << 20
	}
	if c.Search.ScanRange <= 0 {
		c.Search.ScanRange = 1000
	}
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = 100
	}
	if c.Search.MaxLimit <= 0 {
		c.Search.MaxLimit = 1000
	}
	if c.Bulk.Workers <= 0 {
		c.Bulk.Workers = max(runtime.NumCPU(), 1)
	}
	if c.Bulk.MaxBatchSize <= 0 {
		c.Bulk.MaxBatchSize = 100
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Database.Driver {
	case DriverMemory:
	case DriverSQLite, DriverMongo:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver %q", c.Database.Driver)
		}
	case DriverRedis, DriverValkey:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", c.Database.Driver)
		}
	case DriverBadger:
		if c.Database.Path == "" && !c.Database.InMemory {
			return fmt.Errorf("database.path is required unless database.in_memory is set")
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}

	switch c.Cache.Driver {
	case CacheNone, CacheMemory:
	case CacheRedis:
		if c.Cache.Addr == "" {
			return fmt.Errorf("cache.addr is required for the redis cache")
		}
	default:
		return fmt.Errorf("unknown cache.driver %q", c.Cache.Driver)
	}

	if c.Search.DefaultLimit > c.Search.MaxLimit {
		return fmt.Errorf("search.default_limit (%d) exceeds search.max_limit (%d)",
			c.Search.DefaultLimit, c.Search.MaxLimit)
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
