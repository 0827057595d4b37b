package store

import (
	"context"
	"fmt"

	"github.com/atapcerdas/atapbot/internal/schema"
)

// UpsertChunk inserts or replaces a chunk keyed by (document_id, chunk_index).
func (s *Store) UpsertChunk(ctx context.Context, chunk schema.RetrievedChunk, embedding []float64) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO chunks (id, document_id, chunk_index, content, page, embedding)
        VALUES ($1, $2, $3, $4, NULLIF($5, 0), $6::vector)
        ON CONFLICT (document_id, chunk_index)
        DO UPDATE SET content = EXCLUDED.content, page = EXCLUDED.page, embedding = EXCLUDED.embedding
    `, chunk.ID, chunk.DocumentID, chunk.ChunkIndex, chunk.Content, chunk.Page, vectorLiteral(embedding))
	if err != nil {
		return fmt.Errorf("upsert chunk: %w", err)
	}
	return nil
}

// SearchChunks runs a cosine nearest-neighbor query, optionally filtered to a
// set of document IDs. Results are ordered by descending similarity; ties
// fall to store order.
func (s *Store) SearchChunks(ctx context.Context, embedding []float64, k int, filterDocIDs []string) ([]schema.RetrievedChunk, error) {
	lit := vectorLiteral(embedding)

	query := `
        SELECT c.id, c.document_id, c.chunk_index, c.content,
               COALESCE(c.page, 0), d.name,
               1 - (c.embedding <=> $1::vector) AS similarity
        FROM chunks c
        JOIN documents d ON d.id = c.document_id`
	args := []any{lit, k}
	if len(filterDocIDs) > 0 {
		query += ` WHERE c.document_id = ANY($3)`
		args = append(args, filterDocIDs)
	}
	query += ` ORDER BY c.embedding <=> $1::vector LIMIT $2`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	var out []schema.RetrievedChunk
	for rows.Next() {
		var c schema.RetrievedChunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Content, &c.Page, &c.DocumentName, &c.Similarity); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}

// ListDocuments returns the document catalog, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]schema.Document, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT id, name, chunk_count, created_at
        FROM documents
        ORDER BY created_at DESC
    `)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []schema.Document
	for rows.Next() {
		var d schema.Document
		if err := rows.Scan(&d.ID, &d.Name, &d.ChunkCount, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpsertDocument records or refreshes a document catalog entry.
func (s *Store) UpsertDocument(ctx context.Context, doc schema.Document) error {
	_, err := s.pool.Exec(ctx, `
        INSERT INTO documents (id, name, chunk_count)
        VALUES ($1, $2, $3)
        ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, chunk_count = EXCLUDED.chunk_count
    `, doc.ID, doc.Name, doc.ChunkCount)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}
