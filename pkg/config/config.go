package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for strata-engine.
// Configuration can come from YAML file (config.yaml) or environment
// variables. Environment variables always override YAML values. Secrets
// (database password, auth secret) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3740"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// ModelPath locates the semantic-model document loaded at startup and on
	// each reload request.
	ModelPath string `yaml:"model_path" env:"SEMANTIC_MODEL_PATH" env-default:"semantic_model.yaml"`

	Matcher    MatcherConfig    `yaml:"matcher"`
	Resolution ResolutionConfig `yaml:"resolution"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
}

// MatcherConfig tunes verified-query matching.
type MatcherConfig struct {
	// AcceptanceThreshold is the minimum score at which a verified query is
	// returned as authoritative. Below it the engine falls through to
	// generation.
	AcceptanceThreshold float64 `yaml:"acceptance_threshold" env:"MATCHER_ACCEPTANCE_THRESHOLD" env-default:"0.75"`
}

// ResolutionConfig tunes the generation path.
type ResolutionConfig struct {
	// DefaultLookbackDays bounds time-scoped queries when the request is
	// silent about time scope.
	DefaultLookbackDays int `yaml:"default_lookback_days" env:"RESOLUTION_DEFAULT_LOOKBACK_DAYS" env-default:"30"`
	// DefaultRowLimit fills a verified template's limit placeholder when the
	// request does not supply one.
	DefaultRowLimit int `yaml:"default_row_limit" env:"RESOLUTION_DEFAULT_ROW_LIMIT" env-default:"100"`
}

// DatabaseConfig holds PostgreSQL configuration for resolution history.
// History recording is disabled when Host is empty.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:""`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"strata"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"strata_engine"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	MigrationsPath string `yaml:"migrations_path" env:"PGMIGRATIONS_PATH" env-default:"migrations"`
}

// Enabled reports whether resolution-history storage is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

// URL builds the connection string.
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	// TokenSecret enables HMAC bearer-token verification when set. Empty
	// means requests are accepted without authentication (local development).
	TokenSecret string `yaml:"-" env:"AUTH_TOKEN_SECRET"` // Secret - not in YAML
}

// Load reads configuration from config.yaml with environment variable
// overrides. When config.yaml is absent, configuration comes from the
// environment alone. The version parameter is injected at build time.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment config: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Matcher.AcceptanceThreshold <= 0 || c.Matcher.AcceptanceThreshold > 1 {
		return fmt.Errorf("matcher acceptance threshold must be in (0, 1], got %v", c.Matcher.AcceptanceThreshold)
	}
	if c.Resolution.DefaultLookbackDays <= 0 {
		return fmt.Errorf("default lookback days must be positive, got %d", c.Resolution.DefaultLookbackDays)
	}
	if c.Resolution.DefaultRowLimit <= 0 {
		return fmt.Errorf("default row limit must be positive, got %d", c.Resolution.DefaultRowLimit)
	}
	return nil
}
