// Package config provides configuration structures for the quill server.
package config

import (
	"fmt"
	"time"
)

// Config represents the server configuration.
type Config struct {
	// Server settings
	Address         string        `yaml:"address" json:"address"`
	LogLevel        string        `yaml:"log_level" json:"log_level"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// Dataset source configuration
	Source SourceConfig `yaml:"source" json:"source"`

	// Dataset cache configuration
	Cache CacheConfig `yaml:"cache" json:"cache"`

	// Plan execution configuration
	Query QueryConfig `yaml:"query" json:"query"`

	// External planner configuration
	Planner PlannerConfig `yaml:"planner" json:"planner"`

	// Authentication configuration
	Auth AuthConfig `yaml:"auth" json:"auth"`

	// Metrics configuration
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// SourceConfig selects where datasets are fetched from.
type SourceConfig struct {
	Type string `yaml:"type" json:"type"` // drive, local

	// Google Drive source
	Drive DriveConfig `yaml:"drive" json:"drive"`

	// Local directory source
	Local LocalConfig `yaml:"local" json:"local"`
}

// DriveConfig represents Google Drive source configuration.
type DriveConfig struct {
	FolderID    string `yaml:"folder_id" json:"folder_id"`
	AccessToken string `yaml:"access_token" json:"access_token"`
}

// LocalConfig represents local directory source configuration.
type LocalConfig struct {
	Dir string `yaml:"dir" json:"dir"`
}

// CacheConfig represents dataset cache configuration.
type CacheConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval" json:"refresh_interval"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout" json:"fetch_timeout"`
	MaxFileRows     int           `yaml:"max_file_rows" json:"max_file_rows"`
}

// QueryConfig represents plan execution limits.
type QueryConfig struct {
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	MaxInputRows  int           `yaml:"max_input_rows" json:"max_input_rows"`
	MaxOutputRows int           `yaml:"max_output_rows" json:"max_output_rows"`
}

// PlannerConfig represents the external planner endpoint.
type PlannerConfig struct {
	Endpoint string        `yaml:"endpoint" json:"endpoint"`
	APIKey   string        `yaml:"api_key" json:"api_key"`
	Timeout  time.Duration `yaml:"timeout" json:"timeout"`
	MaxTurns int           `yaml:"max_turns" json:"max_turns"`
}

// AuthConfig represents authentication configuration.
type AuthConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Type    string `yaml:"type" json:"type"` // bearer, jwt

	// Bearer token auth
	BearerAuth BearerAuthConfig `yaml:"bearer_auth" json:"bearer_auth"`

	// JWT auth
	JWTAuth JWTAuthConfig `yaml:"jwt_auth" json:"jwt_auth"`
}

// BearerAuthConfig represents bearer token authentication configuration.
type BearerAuthConfig struct {
	Tokens map[string]string `yaml:"tokens" json:"tokens"` // token -> username
}

// JWTAuthConfig represents JWT authentication configuration.
type JWTAuthConfig struct {
	Secret   string `yaml:"secret" json:"secret"`
	Issuer   string `yaml:"issuer" json:"issuer"`
	Audience string `yaml:"audience" json:"audience"`
}

// MetricsConfig represents metrics configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

// Validate validates the configuration and fills in defaults.
func (c *Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("address is required")
	}

	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 60 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 30 * time.Second
	}

	switch c.Source.Type {
	case "drive":
		if c.Source.Drive.FolderID == "" {
			return fmt.Errorf("drive source requires folder_id")
		}
	case "local":
		if c.Source.Local.Dir == "" {
			return fmt.Errorf("local source requires dir")
		}
	default:
		return fmt.Errorf("unsupported source type: %s", c.Source.Type)
	}

	if c.Cache.RefreshInterval <= 0 {
		c.Cache.RefreshInterval = 1 * time.Minute
	}
	if c.Cache.FetchTimeout <= 0 {
		c.Cache.FetchTimeout = 30 * time.Second
	}
	if c.Cache.MaxFileRows <= 0 {
		c.Cache.MaxFileRows = 500_000
	}

	if c.Query.Timeout <= 0 {
		c.Query.Timeout = 30 * time.Second
	}
	if c.Query.MaxInputRows <= 0 {
		c.Query.MaxInputRows = 1_000_000
	}
	if c.Query.MaxOutputRows <= 0 {
		c.Query.MaxOutputRows = 10_000
	}

	if c.Planner.Endpoint != "" {
		if c.Planner.Timeout <= 0 {
			c.Planner.Timeout = 60 * time.Second
		}
		if c.Planner.MaxTurns <= 0 {
			c.Planner.MaxTurns = 3
		}
	}

	if c.Auth.Enabled {
		switch c.Auth.Type {
		case "bearer":
			if len(c.Auth.BearerAuth.Tokens) == 0 {
				return fmt.Errorf("bearer auth requires tokens")
			}
		case "jwt":
			if c.Auth.JWTAuth.Secret == "" {
				return fmt.Errorf("JWT auth requires secret")
			}
		default:
			return fmt.Errorf("unsupported auth type: %s", c.Auth.Type)
		}
	}

	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	return nil
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:         "0.0.0.0:8080",
		LogLevel:        "info",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		Source: SourceConfig{
			Type: "local",
			Local: LocalConfig{
				Dir: "./data",
			},
		},
		Cache: CacheConfig{
			RefreshInterval: 1 * time.Minute,
			FetchTimeout:    30 * time.Second,
			MaxFileRows:     500_000,
		},
		Query: QueryConfig{
			Timeout:       30 * time.Second,
			MaxInputRows:  1_000_000,
			MaxOutputRows: 10_000,
		},
		Planner: PlannerConfig{
			Timeout:  60 * time.Second,
			MaxTurns: 3,
		},
		Auth: AuthConfig{
			Enabled: false,
			Type:    "bearer",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
