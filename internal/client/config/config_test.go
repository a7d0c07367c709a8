package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c := &Config{}
	c.LoadDefaults()

	assert.Equal(t, "http://localhost:8080", c.ServerURL)
	assert.Equal(t, "maildrift.db", c.DatabasePath)
	assert.Equal(t, 30*time.Second, c.SyncInterval)
}

func TestParseJSON_OverlaysOnlyProvidedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.json")

	body, err := json.Marshal(map[string]any{
		"server_url":            "https://mail.example.com",
		"sync_interval_seconds": 5,
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, body, 0o600))

	oldArgs := os.Args
	os.Args = []string{"client", "-c", path}
	t.Cleanup(func() { os.Args = oldArgs })

	c := &Config{}
	c.LoadDefaults()
	parseJSON(c)

	assert.Equal(t, "https://mail.example.com", c.ServerURL)
	assert.Equal(t, 5*time.Second, c.SyncInterval)
	// untouched fields keep defaults
	assert.Equal(t, "maildrift.db", c.DatabasePath)
	assert.Equal(t, 10*time.Second, c.RequestTimeout)
}

func TestParseFlags_OverridesDefaults(t *testing.T) {
	oldArgs := os.Args
	os.Args = []string{"client", "-s", "http://10.0.0.1:8080", "-i", "60", "-x", "ignored"}
	t.Cleanup(func() { os.Args = oldArgs })

	c := &Config{}
	c.LoadDefaults()
	parseFlags(c)

	assert.Equal(t, "http://10.0.0.1:8080", c.ServerURL)
	assert.Equal(t, 60*time.Second, c.SyncInterval)
}
