package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/maildrift/maildrift/internal/flagx"
)

// jsonConfig is the DTO for the optional JSON config file. Durations are
// given in seconds so the file stays toolable.
type jsonConfig struct {
	ServerURL             string `json:"server_url"`
	DatabasePath          string `json:"database_path"`
	Email                 string `json:"email"`
	Password              string `json:"password"`
	SyncIntervalSeconds   int    `json:"sync_interval_seconds"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds"`
}

// parseJSON overlays values from the file named by -c/-config, if given.
// Zero-valued fields in the file leave the current config untouched.
func parseJSON(config *Config) {
	path := flagx.JSONConfigFlags()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &jsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.ServerURL != "" {
		config.ServerURL = c.ServerURL
	}
	if c.DatabasePath != "" {
		config.DatabasePath = c.DatabasePath
	}
	if c.Email != "" {
		config.Email = c.Email
	}
	if c.Password != "" {
		config.Password = c.Password
	}
	if c.SyncIntervalSeconds > 0 {
		config.SyncInterval = time.Duration(c.SyncIntervalSeconds) * time.Second
	}
	if c.RequestTimeoutSeconds > 0 {
		config.RequestTimeout = time.Duration(c.RequestTimeoutSeconds) * time.Second
	}
}
