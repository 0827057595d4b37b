package embedding

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/atapcerdas/atapbot/internal/config"
)

// Backend is one embedding model endpoint. Dimensionality is fixed per
// backend; the persisted vector column width must match the active backend.
type Backend interface {
	// ID identifies the backend for cache keying.
	ID() string
	// Dimensions is the width of vectors this backend produces.
	Dimensions() int
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Known backend dimensionalities.
const (
	multilingualDimensions = 1024
	openaiDimensions       = 1536
)

// NewBackend constructs the configured embedding backend.
func NewBackend(cfg config.EmbeddingConfig, logger *zap.Logger) (Backend, error) {
	switch cfg.Provider {
	case "multilingual":
		model := cfg.Model
		if model == "" {
			model = "bge-m3"
		}
		return newHTTPBackend(cfg.Provider, model, multilingualDimensions, cfg, logger), nil
	case "openai":
		model := cfg.Model
		if model == "" {
			model = "text-embedding-3-small"
		}
		return newHTTPBackend(cfg.Provider, model, openaiDimensions, cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}
