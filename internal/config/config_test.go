package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  url: "postgres://localhost/atapbot"
llm:
  base_url: "http://localhost:8000/v1"
  model: "test-model"
embedding:
  base_url: "http://localhost:9090/v1"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "multilingual", cfg.Embedding.Provider)
	assert.Equal(t, 16, cfg.Embedding.BatchSize)
	assert.Equal(t, 3, cfg.Embedding.Concurrency)
	assert.Equal(t, 500*time.Millisecond, cfg.Embedding.WavePause)
	assert.Equal(t, 256, cfg.Embedding.CacheSize)
	assert.Equal(t, 0.7, cfg.Pipeline.IntentConfidence)
	assert.Equal(t, 0.3, cfg.Pipeline.OffTopic)
	assert.Equal(t, 0.7, cfg.Pipeline.QAMatch)
	assert.Equal(t, 5, cfg.Pipeline.TopK)
	assert.Equal(t, 6, cfg.Pipeline.HistoryWindow)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
}

func TestLoadExplicitValuesWin(t *testing.T) {
	path := writeConfig(t, `
database:
  url: "postgres://localhost/atapbot"
llm:
  base_url: "http://localhost:8000/v1"
  model: "test-model"
embedding:
  provider: openai
  base_url: "http://localhost:9090/v1"
  batch_size: 8
pipeline:
  intent_confidence: 0.8
  top_k: 10
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, 8, cfg.Embedding.BatchSize)
	assert.Equal(t, 0.8, cfg.Pipeline.IntentConfidence)
	assert.Equal(t, 10, cfg.Pipeline.TopK)
}

func TestLoadCollectsValidationErrors(t *testing.T) {
	path := writeConfig(t, `
llm:
  model: "test-model"
embedding:
  provider: nonsense
  base_url: "http://localhost:9090/v1"
`)
	_, err := Load(path)
	require.Error(t, err)

	verrs, ok := err.(ValidationErrors)
	require.True(t, ok, "expected collected validation errors, got %T", err)
	assert.GreaterOrEqual(t, len(verrs), 3)
	assert.Contains(t, err.Error(), "database.url")
	assert.Contains(t, err.Error(), "llm.base_url")
	assert.Contains(t, err.Error(), "embedding.provider")
}

func TestValidateThresholdOrdering(t *testing.T) {
	path := writeConfig(t, `
database:
  url: "postgres://localhost/atapbot"
llm:
  base_url: "http://localhost:8000/v1"
  model: "test-model"
embedding:
  base_url: "http://localhost:9090/v1"
pipeline:
  intent_confidence: 0.4
  off_topic: 0.6
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must not exceed pipeline.intent_confidence")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not: valid")
	_, err := Load(path)
	assert.Error(t, err)
}
