// Package config handles configuration for the client binary: defaults,
// optional JSON overlay, and command-line flags, applied in that order.
package config

import "time"

// Config holds runtime settings for the sync client.
//
// Fields:
//   - ServerURL: base URL of the sync server.
//   - DatabasePath: path of the local SQLite cache file.
//   - Email / Password: login credentials. Typically supplied via flags or
//     the JSON file, never baked into a build.
//   - SyncInterval: period of the background pull loop.
//   - RequestTimeout: per-request HTTP deadline.
type Config struct {
	ServerURL      string
	DatabasePath   string
	Email          string
	Password       string
	SyncInterval   time.Duration
	RequestTimeout time.Duration
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://localhost:8080"
	c.DatabasePath = "maildrift.db"
	c.SyncInterval = 30 * time.Second
	c.RequestTimeout = 10 * time.Second
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJSON(cfg)
	parseFlags(cfg)
	return cfg
}
