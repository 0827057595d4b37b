// Package retriever performs nearest-neighbor chunk retrieval over the
// embedding gateway and the vector store.
package retriever

import (
	"context"

	"github.com/atapcerdas/atapbot/internal/schema"
)

// Embedder produces a query vector, consulting its cache first.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// ChunkSearcher runs the cosine nearest-neighbor query against the store.
type ChunkSearcher interface {
	SearchChunks(ctx context.Context, embedding []float64, k int, filterDocIDs []string) ([]schema.RetrievedChunk, error)
}

// VectorRetriever embeds the query and searches the store. Store or embedding
// failures on this path are hard failures surfaced to the caller.
type VectorRetriever struct {
	Embed Embedder
	Store ChunkSearcher
	TopK  int
}

// Retrieve returns up to k chunks ordered by descending similarity. k <= 0
// falls back to the configured default.
func (r *VectorRetriever) Retrieve(ctx context.Context, query string, k int, filterDocIDs []string) ([]schema.RetrievedChunk, error) {
	if k <= 0 {
		if r.TopK > 0 {
			k = r.TopK
		} else {
			k = 5
		}
	}
	vector, err := r.Embed.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.Store.SearchChunks(ctx, vector, k, filterDocIDs)
}
