package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "corpus", cfg.Corpus.Dir)
	assert.Equal(t, ".txt", cfg.Corpus.Extension)
	assert.Equal(t, BackendFile, cfg.Storage.Backend)
	assert.Equal(t, CompressionNone, cfg.Storage.Compression)
	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Kafka.Enabled)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search100.yaml")
	data := []byte(`
corpus:
  dir: docs
storage:
  backend: sqlite
  compression: zstd
redis:
  cacheTTL: 5s
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	t.Setenv("S100_LOGGING_LEVEL", "debug")
	t.Setenv("S100_REDIS_ADDR", "cache:6379")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "docs", cfg.Corpus.Dir)
	assert.Equal(t, ".txt", cfg.Corpus.Extension)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, CompressionZstd, cfg.Storage.Compression)
	assert.Equal(t, 5*time.Second, cfg.Redis.CacheTTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Redis.Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty corpus dir", func(c *Config) { c.Corpus.Dir = "" }},
		{"extension without dot", func(c *Config) { c.Corpus.Extension = "txt" }},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "bolt" }},
		{"unknown compression", func(c *Config) { c.Storage.Compression = "gzip" }},
		{"negative limit", func(c *Config) { c.Search.DefaultLimit = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := defaultConfig()
	assert.Equal(t,
		"host=localhost port=5432 user=search100 password=localdev dbname=search100 sslmode=disable",
		cfg.Postgres.DSN(),
	)
}
