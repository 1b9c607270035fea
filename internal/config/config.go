package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Matching MatchingConfig `yaml:"matching"`
	Database DatabaseConfig `yaml:"database"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// MatchingConfig holds matchmaking policy
type MatchingConfig struct {
	PairTTL         time.Duration `yaml:"pair_ttl"`
	PresenceTTL     time.Duration `yaml:"presence_ttl"` // 0 keeps waiting users forever
	SweepInterval   time.Duration `yaml:"sweep_interval"`
	EnforceExpiry   bool          `yaml:"enforce_expiry"`
	StrictDecisions bool          `yaml:"strict_decisions"`
}

// DatabaseConfig holds the optional pair history database
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	URL         string `yaml:"url"` // takes precedence over the discrete fields
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	DBName      string `yaml:"dbname"`
	SSLMode     string `yaml:"sslmode"`
	QueueSize   int    `yaml:"queue_size"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

// MetricsConfig holds Prometheus exposition settings
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 3000,
			Host: "0.0.0.0",
		},
		Matching: MatchingConfig{
			PairTTL:         2 * time.Minute,
			SweepInterval:   10 * time.Second,
			EnforceExpiry:   true,
			StrictDecisions: true,
		},
		Database: DatabaseConfig{
			Port:        5432,
			SSLMode:     "disable",
			QueueSize:   1024,
			AutoMigrate: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads configuration from a YAML file on top of the defaults and then
// applies environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v, ok := os.LookupEnv("HOST"); ok && v != "" {
		c.Server.Host = v
	}
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := os.LookupEnv("DATABASE_URL"); ok && v != "" {
		c.Database.URL = v
		c.Database.Enabled = true
	}
	return nil
}

// Validate checks the values that would otherwise fail at runtime
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Matching.PairTTL <= 0 {
		return fmt.Errorf("matching.pair_ttl must be positive")
	}
	if c.Matching.SweepInterval <= 0 {
		return fmt.Errorf("matching.sweep_interval must be positive")
	}
	if c.Matching.PresenceTTL < 0 {
		return fmt.Errorf("matching.presence_ttl must not be negative")
	}
	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
