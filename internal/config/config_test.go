package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/ragd/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	// Missing file: everything comes from defaults.
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, 1000, cfg.Chunking.Size)
	assert.Equal(t, 200, cfg.Chunking.Overlap)
	assert.Equal(t, "memory", cfg.Cache.Provider)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "tei", cfg.Embeddings.Provider)
	assert.Equal(t, "chromem", cfg.VectorStore.Provider)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.25, cfg.Retrieval.ScoreThreshold, 0.0001)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: json
chunking:
  size: 500
  overlap: 100
embeddings:
  provider: ollama
  model: nomic-embed-text
  base_url: http://localhost:11434
vectorstore:
  provider: qdrant
  qdrant:
    host: qdrant.internal
    port: 6334
retrieval:
  top_k: 8
  score_threshold: 0.4
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 500, cfg.Chunking.Size)
	assert.Equal(t, 100, cfg.Chunking.Overlap)
	assert.Equal(t, "ollama", cfg.Embeddings.Provider)
	assert.Equal(t, "nomic-embed-text", cfg.Embeddings.Model)
	assert.Equal(t, "qdrant", cfg.VectorStore.Provider)
	assert.Equal(t, "qdrant.internal", cfg.VectorStore.Qdrant.Host)
	assert.Equal(t, 8, cfg.Retrieval.TopK)
	assert.InDelta(t, 0.4, cfg.Retrieval.ScoreThreshold, 0.0001)

	// Unnamed sections keep their defaults.
	assert.Equal(t, "memory", cfg.Cache.Provider)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: info
`)

	t.Setenv("RAGD_LOGGING_LEVEL", "warn")
	t.Setenv("RAGD_EMBEDDINGS_BASE_URL", "http://tei.internal:8080")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "http://tei.internal:8080", cfg.Embeddings.BaseURL)
}

func TestLoad_InvalidConfigFailsFast(t *testing.T) {
	path := writeConfig(t, `
chunking:
  size: 100
  overlap: 100
`)

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunking")
}

func TestLoad_RejectsWorldReadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0o644))

	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permissions")
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "logging: [unclosed")

	_, err := config.Load(path)
	require.Error(t, err)
}
