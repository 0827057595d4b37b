package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the atapbot service.
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Database  DatabaseConfig  `json:"database" yaml:"database"`
	LLM       LLMConfig       `json:"llm" yaml:"llm"`
	Embedding EmbeddingConfig `json:"embedding" yaml:"embedding"`
	Pipeline  PipelineConfig  `json:"pipeline" yaml:"pipeline"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
	Mode string `json:"mode,omitempty" yaml:"mode,omitempty"` // gin mode: debug, release
}

// DatabaseConfig holds the Postgres connection settings. The database must
// have the pgvector extension installed.
type DatabaseConfig struct {
	URL string `json:"url" yaml:"url"`
}

// LLMConfig defines the generative model backend. The endpoint is expected to
// speak the OpenAI-compatible chat completions protocol.
type LLMConfig struct {
	BaseURL     string        `json:"base_url" yaml:"base_url"`
	APIKey      string        `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Model       string        `json:"model" yaml:"model"`
	Temperature float64       `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// EmbeddingConfig defines the embedding backend. Provider selects the vector
// dimensionality: "multilingual" is 1024-dim, "openai" is 1536-dim. The
// persisted vector column width must match the active provider.
type EmbeddingConfig struct {
	Provider    string        `json:"provider" yaml:"provider"`
	BaseURL     string        `json:"base_url" yaml:"base_url"`
	APIKey      string        `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Model       string        `json:"model,omitempty" yaml:"model,omitempty"`
	BatchSize   int           `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`
	Concurrency int           `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	WavePause   time.Duration `json:"wave_pause,omitempty" yaml:"wave_pause,omitempty"`
	CacheSize   int           `json:"cache_size,omitempty" yaml:"cache_size,omitempty"`
}

// PipelineConfig carries the query-resolution policy constants. The
// thresholds are deliberate configuration points, not literals scattered in
// pipeline logic.
type PipelineConfig struct {
	// IntentConfidence gates the intent short-circuit: classifications at or
	// above it bypass retrieval entirely.
	IntentConfidence float64 `json:"intent_confidence,omitempty" yaml:"intent_confidence,omitempty"`
	// OffTopic is the floor below which the fixed off-topic reply is returned.
	OffTopic float64 `json:"off_topic,omitempty" yaml:"off_topic,omitempty"`
	// QAMatch gates the knowledge-base short-circuit.
	QAMatch float64 `json:"qa_match,omitempty" yaml:"qa_match,omitempty"`
	// TopK is the default nearest-neighbor limit.
	TopK int `json:"top_k,omitempty" yaml:"top_k,omitempty"`
	// HistoryWindow bounds how many recent turns are rendered into prompts.
	HistoryWindow int `json:"history_window,omitempty" yaml:"history_window,omitempty"`
}

// Load reads and validates a YAML config file, applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills unset fields with the documented defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.7
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 2000
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = 60 * time.Second
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "multilingual"
	}
	if c.Embedding.BatchSize == 0 {
		c.Embedding.BatchSize = 16
	}
	if c.Embedding.Concurrency == 0 {
		c.Embedding.Concurrency = 3
	}
	if c.Embedding.WavePause == 0 {
		c.Embedding.WavePause = 500 * time.Millisecond
	}
	if c.Embedding.CacheSize == 0 {
		c.Embedding.CacheSize = 256
	}
	if c.Pipeline.IntentConfidence == 0 {
		c.Pipeline.IntentConfidence = 0.7
	}
	if c.Pipeline.OffTopic == 0 {
		c.Pipeline.OffTopic = 0.3
	}
	if c.Pipeline.QAMatch == 0 {
		c.Pipeline.QAMatch = 0.7
	}
	if c.Pipeline.TopK == 0 {
		c.Pipeline.TopK = 5
	}
	if c.Pipeline.HistoryWindow == 0 {
		c.Pipeline.HistoryWindow = 6
	}
}
