package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the quotesearch server configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Tenants   TenantsConfig   `yaml:"tenants"`
	Redis     RedisConfig     `yaml:"redis"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds per-tenant pool sizing.
type DatabaseConfig struct {
	MaxConns          int32 `yaml:"max_conns"`
	MinConns          int32 `yaml:"min_conns"`
	ConnIdleSec       int   `yaml:"conn_idle_sec"`
	ConnectTimeoutSec int   `yaml:"connect_timeout_sec"`
}

// TenantsConfig locates the tenant configuration files.
type TenantsConfig struct {
	Dir string `yaml:"dir"`
}

// RedisConfig holds rate limiting settings. An empty addr disables rate
// limiting entirely.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	RateLimit int    `yaml:"rate_limit"` // requests per minute per tenant
}

// TelemetryConfig holds observability settings.
type TelemetryConfig struct {
	EnableMetrics bool    `yaml:"enable_metrics"`
	EnableTracing bool    `yaml:"enable_tracing"`
	OTLPEndpoint  string  `yaml:"otlp_endpoint"`
	SamplingRate  float64 `yaml:"sampling_rate"`
	Environment   string  `yaml:"environment"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:            8080,
			ReadTimeoutSec:  15,
			WriteTimeoutSec: 15,
			ShutdownSec:     10,
		},
		Database: DatabaseConfig{
			MaxConns:          10,
			ConnIdleSec:       30,
			ConnectTimeoutSec: 2,
		},
		Tenants: TenantsConfig{Dir: "tenants"},
		Redis:   RedisConfig{RateLimit: 100},
		Telemetry: TelemetryConfig{
			EnableMetrics: true,
			SamplingRate:  1.0,
			Environment:   "development",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads the YAML config at path over the defaults, then applies
// environment overrides. A missing file is not an error; everything has a
// default.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		cfg.HTTP.Port = p
	}
	if dir := os.Getenv("TENANTS_DIR"); dir != "" {
		cfg.Tenants.Dir = dir
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		cfg.Telemetry.Environment = env
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	return cfg, nil
}
