package embedding

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atapcerdas/atapbot/internal/cache"
)

// Gateway fronts the active backend with a bounded query-side vector cache
// and wave-throttled batch embedding.
type Gateway struct {
	backend     Backend
	cache       cache.Cache
	batchSize   int
	concurrency int
	wavePause   time.Duration
	logger      *zap.Logger
}

// GatewayOptions tunes batching and caching.
type GatewayOptions struct {
	BatchSize   int
	Concurrency int
	WavePause   time.Duration
	CacheSize   int
}

// NewGateway wraps a backend.
func NewGateway(backend Backend, opts GatewayOptions, logger *zap.Logger) *Gateway {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 16
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 3
	}
	return &Gateway{
		backend:     backend,
		cache:       cache.NewFIFO(opts.CacheSize),
		batchSize:   opts.BatchSize,
		concurrency: opts.Concurrency,
		wavePause:   opts.WavePause,
		logger:      logger,
	}
}

// Backend exposes the active backend, mainly for its dimensionality.
func (g *Gateway) Backend() Backend { return g.backend }

// Embed returns the vector for a single query text, consulting the cache
// first. Cache keys include the backend identity so switching backends never
// serves stale-dimension vectors.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float64, error) {
	key := g.cacheKey(text)
	if v, ok := g.cache.Get(key); ok {
		return v.([]float64), nil
	}

	vectors, err := g.backend.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("backend returned no vector")
	}
	g.cache.Set(key, vectors[0])
	return vectors[0], nil
}

// EmbedBatch embeds texts in fixed-size batches, running up to the configured
// number of batches concurrently per wave with a pause between waves to
// respect upstream rate limits. Output order matches input order; any batch
// failure aborts the whole call.
func (g *Gateway) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	type batch struct {
		start int
		texts []string
	}
	batches := make([]batch, 0, (len(texts)+g.batchSize-1)/g.batchSize)
	for start := 0; start < len(texts); start += g.batchSize {
		end := start + g.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, batch{start: start, texts: texts[start:end]})
	}

	vectors := make([][]float64, len(texts))
	for wave := 0; wave < len(batches); wave += g.concurrency {
		end := wave + g.concurrency
		if end > len(batches) {
			end = len(batches)
		}

		var wg sync.WaitGroup
		errCh := make(chan error, end-wave)
		for _, b := range batches[wave:end] {
			wg.Add(1)
			go func(b batch) {
				defer wg.Done()
				out, err := g.backend.Embed(ctx, b.texts)
				if err != nil {
					errCh <- fmt.Errorf("batch at offset %d: %w", b.start, err)
					return
				}
				copy(vectors[b.start:], out)
			}(b)
		}
		wg.Wait()
		close(errCh)
		if err := <-errCh; err != nil {
			return nil, err
		}

		if end < len(batches) && g.wavePause > 0 {
			g.logger.Debug("embedding wave pause", zap.Duration("pause", g.wavePause))
			select {
			case <-time.After(g.wavePause):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return vectors, nil
}

// cacheKey normalizes query text and prefixes the backend identity.
func (g *Gateway) cacheKey(text string) string {
	return g.backend.ID() + "|" + strings.ToLower(strings.TrimSpace(text))
}
