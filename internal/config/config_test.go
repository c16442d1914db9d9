package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "keywords.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "es", cfg.Suggest.Language)
	assert.InDelta(t, 0.5, cfg.Planner.RateLimit, 0.001)
	assert.Equal(t, "jina-embeddings-v3", cfg.Embeddings.Model)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.HaikuModel)
	assert.Equal(t, "pe", cfg.Discovery.Geo)
	assert.Equal(t, 200, cfg.Discovery.TargetKeywords)
	assert.Equal(t, 4, cfg.Discovery.Concurrency)
	assert.Equal(t, "v1", cfg.Discovery.FormulaVersion)
	assert.Equal(t, 30, cfg.Volume.CacheTTLDays)
	assert.Equal(t, 15000, cfg.Volume.DailyOperations)
	assert.Equal(t, 1000, cfg.Volume.DailyReads)
	assert.InDelta(t, 0.8, cfg.Volume.SafetyMargin, 0.001)
	assert.Equal(t, 10, cfg.Cluster.MaxClusters)
	assert.InDelta(t, 0.35, cfg.Cluster.Eps, 0.001)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/keywords
log:
  level: debug
  format: console
discovery:
  geo: mx
  target_keywords: 500
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "mx", cfg.Discovery.Geo)
	assert.Equal(t, 500, cfg.Discovery.TargetKeywords)
	// Defaults still apply for unset values
	assert.Equal(t, 10, cfg.Cluster.MaxClusters)
	assert.Equal(t, "es", cfg.Discovery.Language)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("KEYWORD_STORE_DRIVER", "postgres")
	t.Setenv("KEYWORD_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func validConfig() *Config {
	return &Config{
		Store:     StoreConfig{Driver: "sqlite", DatabaseURL: "keywords.db"},
		Discovery: DiscoveryConfig{Geo: "pe", Language: "es", TargetKeywords: 200, Concurrency: 4, FormulaVersion: "v1"},
		Volume:    VolumeConfig{CacheTTLDays: 30, DailyOperations: 15000, DailyReads: 1000, SafetyMargin: 0.8},
		Cluster:   ClusterConfig{MaxClusters: 10, Eps: 0.35},
	}
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad driver", func(c *Config) { c.Store.Driver = "mysql" }, "store driver"},
		{"empty dsn", func(c *Config) { c.Store.DatabaseURL = "" }, "database_url"},
		{"unknown formula", func(c *Config) { c.Discovery.FormulaVersion = "v99" }, "formula version"},
		{"zero target", func(c *Config) { c.Discovery.TargetKeywords = 0 }, "target_keywords"},
		{"zero concurrency", func(c *Config) { c.Discovery.Concurrency = 0 }, "concurrency"},
		{"bad margin", func(c *Config) { c.Volume.SafetyMargin = 1.5 }, "safety_margin"},
		{"zero ttl", func(c *Config) { c.Volume.CacheTTLDays = 0 }, "cache_ttl_days"},
		{"one cluster", func(c *Config) { c.Cluster.MaxClusters = 1 }, "max_clusters"},
		{"bad eps", func(c *Config) { c.Cluster.Eps = 1.2 }, "eps"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, eris.Is(err, ErrInvalid))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.NotNil(t, zap.L())

	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))

	err := InitLogger(LogConfig{Level: "not-a-level", Format: "json"})
	require.Error(t, err)
}
