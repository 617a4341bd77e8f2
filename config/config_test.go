package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"COHERE_API_KEY", "COHERE_MODEL", "BATCH_SIZE", "MAX_RETRIES",
		"REQUEST_TIMEOUT", "QDRANT_URL", "QDRANT_API_KEY", "COLLECTION_NAME",
		"VECTOR_DIM", "CHUNK_SIZE", "CHUNK_OVERLAP", "CHECKPOINT_FILE",
		"DOCS_BASE_URL", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "embed-english-v3.0", cfg.Cohere.Model)
	assert.Equal(t, 96, cfg.Cohere.BatchSize)
	assert.Equal(t, 3, cfg.Cohere.MaxRetries)
	assert.Equal(t, 60*time.Second, cfg.Cohere.Timeout)
	assert.Equal(t, "textbook_embeddings", cfg.Qdrant.Collection)
	assert.Equal(t, 1024, cfg.Qdrant.VectorSize)
	assert.Equal(t, 512, cfg.Chunk.Size)
	assert.Equal(t, 50, cfg.Chunk.Overlap)
	assert.Equal(t, "ingestion_checkpoint.json", cfg.Pipeline.CheckpointFile)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
cohere:
  model: embed-multilingual-v3.0
  batch_size: 32
qdrant:
  collection: docs
chunk:
  size: 256
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "embed-multilingual-v3.0", cfg.Cohere.Model)
	assert.Equal(t, 32, cfg.Cohere.BatchSize)
	assert.Equal(t, "docs", cfg.Qdrant.Collection)
	assert.Equal(t, 256, cfg.Chunk.Size)
	// Untouched values keep their defaults.
	assert.Equal(t, 3, cfg.Cohere.MaxRetries)
	assert.Equal(t, 50, cfg.Chunk.Overlap)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("qdrant:\n  collection: from_yaml\n"), 0o644))

	t.Setenv("COLLECTION_NAME", "from_env")
	t.Setenv("BATCH_SIZE", "10")
	t.Setenv("REQUEST_TIMEOUT", "120")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from_env", cfg.Qdrant.Collection)
	assert.Equal(t, 10, cfg.Cohere.BatchSize)
	assert.Equal(t, 120*time.Second, cfg.Cohere.Timeout)
}

func TestLoad_MalformedNumericEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("BATCH_SIZE", "not-a-number")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Run("lists every missing key", func(t *testing.T) {
		clearEnv(t)
		cfg, err := Load("")
		require.NoError(t, err)

		err = cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "COHERE_API_KEY")
		assert.Contains(t, err.Error(), "QDRANT_URL")
		assert.Contains(t, err.Error(), "QDRANT_API_KEY")
		assert.Contains(t, err.Error(), "DOCS_BASE_URL")
	})

	t.Run("complete config passes", func(t *testing.T) {
		clearEnv(t)
		cfg := Default()
		cfg.Cohere.APIKey = "co-key"
		cfg.Qdrant.URL = "https://qdrant.example.com"
		cfg.Qdrant.APIKey = "qd-key"
		cfg.Crawl.BaseURL = "https://docs.example.com"

		assert.NoError(t, cfg.Validate())
	})

	t.Run("overlap must stay below chunk size", func(t *testing.T) {
		clearEnv(t)
		cfg := Default()
		cfg.Cohere.APIKey = "co-key"
		cfg.Qdrant.URL = "https://qdrant.example.com"
		cfg.Qdrant.APIKey = "qd-key"
		cfg.Crawl.BaseURL = "https://docs.example.com"
		cfg.Chunk.Overlap = cfg.Chunk.Size

		assert.Error(t, cfg.Validate())
	})
}
