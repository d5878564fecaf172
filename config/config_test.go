package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TuringFantasy/simple-dedupe/duplicates"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dedupe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:5000", cfg.Addr())
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "users.json", cfg.Data.Users)
	assert.Equal(t, SourceJSON, cfg.Data.ImageSource)
	assert.Equal(t, StoreFile, cfg.Index.Store)
	assert.Equal(t, "matches.json", cfg.Index.Path)
	assert.True(t, cfg.Index.Fingerprint)
	assert.Equal(t, "sift", cfg.Features.Algorithm)
	assert.Equal(t, duplicates.DefaultThreshold, cfg.Duplicates.Threshold)
	assert.Zero(t, cfg.Build.Workers)
	assert.False(t, cfg.UsesDatabase())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
  cors_origins: ["https://admin.example.com"]
data:
  image_source: sqlite
  database: /var/lib/dedupe/dedupe.db
index:
  store: sqlite
  fingerprint: false
features:
  algorithm: orb
build:
  workers: 2
duplicates:
  threshold: 5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host, "unset keys keep their default")
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"https://admin.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, SourceSQLite, cfg.Data.ImageSource)
	assert.Equal(t, "/var/lib/dedupe/dedupe.db", cfg.Data.Database)
	assert.Equal(t, StoreSQLite, cfg.Index.Store)
	assert.False(t, cfg.Index.Fingerprint)
	assert.Equal(t, "orb", cfg.Features.Algorithm)
	assert.Equal(t, 2, cfg.Build.Workers)
	assert.Equal(t, 5, cfg.Duplicates.Threshold)
	assert.True(t, cfg.UsesDatabase())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8080\n")

	t.Setenv("DEDUPE_PORT", "9090")
	t.Setenv("DEDUPE_HOST", "127.0.0.1")
	t.Setenv("DEDUPE_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("DEDUPE_THRESHOLD", "0")
	t.Setenv("DEDUPE_INDEX_FINGERPRINT", "false")
	t.Setenv("DEDUPE_ALGORITHM", "orb")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Addr())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 0, cfg.Duplicates.Threshold)
	assert.False(t, cfg.Index.Fingerprint)
	assert.Equal(t, "orb", cfg.Features.Algorithm)
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("DEDUPE_THRESHOLD", "-1")
	_, err := Load("")
	assert.Error(t, err)

	t.Setenv("DEDUPE_THRESHOLD", "")
	t.Setenv("DEDUPE_INDEX_FINGERPRINT", "sometimes")
	_, err = Load("")
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_MalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [unclosed"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative threshold", func(c *Config) { c.Duplicates.Threshold = -1 }},
		{"unknown algorithm", func(c *Config) { c.Features.Algorithm = "surf" }},
		{"unknown store", func(c *Config) { c.Index.Store = "redis" }},
		{"unknown source", func(c *Config) { c.Data.ImageSource = "csv" }},
		{"port zero", func(c *Config) { c.Server.Port = 0 }},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"negative workers", func(c *Config) { c.Build.Workers = -2 }},
		{"file store without path", func(c *Config) { c.Index.Path = "" }},
		{"sqlite without database", func(c *Config) {
			c.Index.Store = StoreSQLite
			c.Data.Database = ""
		}},
		{"no users file", func(c *Config) { c.Data.Users = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestParseThreshold(t *testing.T) {
	n, err := ParseThreshold(" 4 ")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	_, err = ParseThreshold("3.5")
	assert.Error(t, err)
	_, err = ParseThreshold("-3")
	assert.Error(t, err)
}
