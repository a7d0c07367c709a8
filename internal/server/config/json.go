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
	EndpointAddr        string `json:"endpoint_addr"`
	DatabaseDSN         string `json:"database_dsn"`
	SecretKey           string `json:"secret_key"`
	AccessTokenSeconds  int    `json:"access_token_seconds"`
	RefreshTokenSeconds int    `json:"refresh_token_seconds"`
	RateLimitPerWindow  int    `json:"rate_limit_per_window"`
	RateLimitSeconds    int    `json:"rate_limit_seconds"`
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

	if c.EndpointAddr != "" {
		config.EndpointAddr = c.EndpointAddr
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.AccessTokenSeconds > 0 {
		config.AccessTokenValidityDuration = time.Duration(c.AccessTokenSeconds) * time.Second
	}
	if c.RefreshTokenSeconds > 0 {
		config.RefreshTokenValidityDuration = time.Duration(c.RefreshTokenSeconds) * time.Second
	}
	if c.RateLimitPerWindow > 0 {
		config.RateLimitPerWindow = c.RateLimitPerWindow
	}
	if c.RateLimitSeconds > 0 {
		config.RateLimitWindow = time.Duration(c.RateLimitSeconds) * time.Second
	}
}
