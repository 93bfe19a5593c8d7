package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config struct to hold the configuration settings
type Config struct {
	Postgres  PostgresConfig  `yaml:"postgres"`
	NATS      NATSConfig      `yaml:"nats"`
	HTTP      HTTPConfig      `yaml:"http"`
	JWT       JWTConfig       `yaml:"jwt"`
	Directory DirectoryConfig `yaml:"directory"`
	GameLog   GameLogConfig   `yaml:"gamelog"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// PostgresConfig holds Postgres configuration.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// NATSConfig holds NATS configuration.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// HTTPConfig holds the public API listener configuration.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// JWTConfig holds JWT configuration for moderator/participant identity.
type JWTConfig struct {
	Secret     string        `yaml:"secret"`
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

// DirectoryConfig tunes the live session directory refresh policy.
type DirectoryConfig struct {
	MinRefreshInterval time.Duration `yaml:"min_refresh_interval"`
	PollInterval       time.Duration `yaml:"poll_interval"`
	ThrottleDelay      time.Duration `yaml:"throttle_delay"`
}

// GameLogConfig bounds the best-effort game log write rate.
type GameLogConfig struct {
	WritesPerSecond float64 `yaml:"writes_per_second"`
	WriteBurst      int     `yaml:"write_burst"`
}

// ArchiveConfig controls ended-session archival.
type ArchiveConfig struct {
	Retention time.Duration `yaml:"retention"`
}

// MetricsConfig holds configuration for the metrics endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoadConfig loads the configuration from a YAML file.
func LoadConfig(filename string) (*Config, error) {
	// Try reading configuration from the file first
	data, err := os.ReadFile(filename)
	if err != nil {
		// If the file is not found, try loading from environment variables
		return loadConfigFromEnv()
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// --- OVERRIDE WITH ENV VARS IF PRESENT ---
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWT.Secret = v
	}
	if v := os.Getenv("JWT_DEFAULT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.JWT.DefaultTTL = d
		}
	}
	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = v == "true"
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// loadConfigFromEnv loads the configuration from environment variables.
func loadConfigFromEnv() (*Config, error) {
	var cfg Config

	// Load Postgres DSN
	cfg.Postgres.DSN = os.Getenv("DATABASE_URL")
	if cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}

	// Load NATS URL
	cfg.NATS.URL = os.Getenv("NATS_URL")
	if cfg.NATS.URL == "" {
		return nil, fmt.Errorf("NATS_URL environment variable not set")
	}

	cfg.HTTP.Addr = os.Getenv("HTTP_ADDR")

	// Load JWT settings
	cfg.JWT.Secret = os.Getenv("JWT_SECRET")
	jwtDefaultTTL := os.Getenv("JWT_DEFAULT_TTL")
	if jwtDefaultTTL == "" {
		cfg.JWT.DefaultTTL = 24 * time.Hour
	} else {
		var err error
		cfg.JWT.DefaultTTL, err = time.ParseDuration(jwtDefaultTTL)
		if err != nil {
			return nil, fmt.Errorf("invalid JWT_DEFAULT_TTL value: %v", err)
		}
	}

	cfg.Metrics.Enabled = os.Getenv("METRICS_ENABLED") == "true"

	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults fills in the tunables most deployments never touch.
func applyDefaults(cfg *Config) {
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.Directory.MinRefreshInterval == 0 {
		cfg.Directory.MinRefreshInterval = 5 * time.Second
	}
	if cfg.Directory.PollInterval == 0 {
		cfg.Directory.PollInterval = 30 * time.Second
	}
	if cfg.Directory.ThrottleDelay == 0 {
		cfg.Directory.ThrottleDelay = 500 * time.Millisecond
	}
	if cfg.GameLog.WritesPerSecond == 0 {
		cfg.GameLog.WritesPerSecond = 50
	}
	if cfg.GameLog.WriteBurst == 0 {
		cfg.GameLog.WriteBurst = 100
	}
	if cfg.Archive.Retention == 0 {
		cfg.Archive.Retention = 24 * time.Hour
	}
}
