package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
embedding:
  base_url: "http://localhost:8080"
  model: "bert-base"
database:
  relational_db:
    url: "postgres://localhost/tickets"
  vector_db:
    main:
      url: "http://localhost:6333"
      collection_name: "tickets"
logging:
  level: "debug"
service:
  threshold: 0.7
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad_ParsesYAMLFields(t *testing.T) {
	path := writeConfig(t, sampleYAML)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.Embedding.BaseURL)
	assert.Equal(t, "bert-base", cfg.Embedding.Model)
	assert.Equal(t, "postgres://localhost/tickets", cfg.Database.RelationalDB.URL)
	assert.Equal(t, "tickets", cfg.Database.VectorDB.Main.CollectionName)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 0.7, cfg.Service.Threshold)
}

func TestLoad_AppliesDefaultsWhenUnset(t *testing.T) {
	path := writeConfig(t, "embedding:\n  model: x\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Database.VectorDB.Indexing.MValue)
	assert.Equal(t, 200, cfg.Database.VectorDB.Indexing.EfConstruct)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 0.5, cfg.Service.Threshold)
}

func TestLoad_EnvOverlayTakesPrecedenceOverYAML(t *testing.T) {
	path := writeConfig(t, sampleYAML)

	t.Setenv("TICKETSEARCH_RELATIONAL_DB_URL", "postgres://override/tickets")
	t.Setenv("TICKETSEARCH_LOG_LEVEL", "warn")
	t.Setenv("TICKETSEARCH_SERVICE_THRESHOLD", "0.9")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://override/tickets", cfg.Database.RelationalDB.URL)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, 0.9, cfg.Service.Threshold)
}

func TestLoad_MissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
