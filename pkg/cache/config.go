package cache

import (
	"time"
)

// Config holds the configuration for the dataset cache.
type Config struct {
	// RefreshInterval is the cadence of the background refresh cycle.
	RefreshInterval time.Duration
	// FetchTimeout bounds one file listing or download.
	FetchTimeout time.Duration
	// MaxFileRows caps the rows accepted from a single source file.
	MaxFileRows int
}

// DefaultConfig returns a default cache configuration.
func DefaultConfig() *Config {
	return &Config{
		RefreshInterval: 1 * time.Minute,
		FetchTimeout:    30 * time.Second,
		MaxFileRows:     500_000,
	}
}

// WithRefreshInterval sets the refresh cadence.
func (c *Config) WithRefreshInterval(d time.Duration) *Config {
	c.RefreshInterval = d
	return c
}

// WithFetchTimeout sets the per-fetch timeout.
func (c *Config) WithFetchTimeout(d time.Duration) *Config {
	c.FetchTimeout = d
	return c
}

// WithMaxFileRows sets the per-file row cap.
func (c *Config) WithMaxFileRows(n int) *Config {
	c.MaxFileRows = n
	return c
}
