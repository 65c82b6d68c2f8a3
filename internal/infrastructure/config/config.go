package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Logging   LogConfig       `yaml:"logging" toml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`
	Fetch     FetchConfig     `yaml:"fetch" toml:"fetch"`
	Gate      GateConfig      `yaml:"gate" toml:"gate"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string   `envconfig:"PORT" yaml:"port" toml:"port"`
	Host           string   `envconfig:"HOST" yaml:"host" toml:"host"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" yaml:"allowed_origins" toml:"allowed_origins"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development" toml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" yaml:"requests_per_second" toml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" yaml:"burst" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" yaml:"enabled" toml:"enabled"`
}

// FetchConfig holds the page loader's HTTP client configuration.
type FetchConfig struct {
	TimeoutSeconds    int     `envconfig:"FETCH_TIMEOUT_SECONDS" yaml:"timeout_seconds" toml:"timeout_seconds"`
	UserAgent         string  `envconfig:"FETCH_USER_AGENT" yaml:"user_agent" toml:"user_agent"`
	RequestsPerSecond float64 `envconfig:"FETCH_RPS" yaml:"requests_per_second" toml:"requests_per_second"`
	MaxBodyBytes      int64   `envconfig:"FETCH_MAX_BODY_BYTES" yaml:"max_body_bytes" toml:"max_body_bytes"`
}

// GateConfig holds tab authorization gate configuration.
type GateConfig struct {
	Enabled bool     `envconfig:"GATE_ENABLED" yaml:"enabled" toml:"enabled"`
	Filters []string `envconfig:"GATE_FILTERS" yaml:"filters" toml:"filters"`
}

// Load loads configuration from environment variables on top of Default.
func Load() (*Config, error) {
	cfg := Default()
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// LoadFile loads configuration from a YAML or TOML file. Environment
// variables that are set take precedence over file values.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.NewDecoder(bytes.NewReader(data)).Decode(cfg)
	default:
		return nil, fmt.Errorf("unsupported config file extension %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8000",
			Host:           "0.0.0.0",
			AllowedOrigins: []string{"*"},
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Fetch: FetchConfig{
			TimeoutSeconds: 30,
			UserAgent:      "CacheOnHover/1.0",
			MaxBodyBytes:   10 << 20,
		},
		Gate: GateConfig{
			Enabled: true,
			Filters: []string{"<all_urls>"},
		},
	}
}

// Timeout returns the fetch timeout.
func (c FetchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Address returns the listen address.
func (c ServerConfig) Address() string {
	return c.Host + ":" + c.Port
}
