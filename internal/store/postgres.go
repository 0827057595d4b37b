// Package store implements the relational and vector persistence layer on
// Postgres with the pgvector extension.
package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Store wraps a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// New connects to Postgres and verifies the connection.
func New(ctx context.Context, connStr string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Initialize creates tables and indexes. The vector column width must match
// the active embedding backend's dimensionality.
func (s *Store) Initialize(ctx context.Context, vectorDims int) error {
	_, err := s.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`)
	if err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}

	_, err = s.pool.Exec(ctx, fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS documents (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            chunk_count INTEGER NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        );
        CREATE TABLE IF NOT EXISTS chunks (
            id TEXT PRIMARY KEY,
            document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
            chunk_index INTEGER NOT NULL,
            content TEXT NOT NULL,
            page INTEGER,
            embedding vector(%d) NOT NULL,
            UNIQUE (document_id, chunk_index)
        );
        CREATE TABLE IF NOT EXISTS qa_entries (
            id TEXT PRIMARY KEY,
            category TEXT NOT NULL DEFAULT '',
            question TEXT NOT NULL,
            answer TEXT NOT NULL,
            keywords TEXT[] NOT NULL DEFAULT '{}',
            priority INTEGER NOT NULL DEFAULT 0,
            requires_image BOOLEAN NOT NULL DEFAULT FALSE,
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        );
        CREATE TABLE IF NOT EXISTS contact_settings (
            key TEXT PRIMARY KEY,
            value TEXT NOT NULL
        );
        CREATE TABLE IF NOT EXISTS query_logs (
            id TEXT PRIMARY KEY,
            query TEXT NOT NULL,
            answer TEXT NOT NULL,
            intent TEXT,
            chunk_ids TEXT[],
            latency_ms BIGINT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        );
    `, vectorDims))
	if err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
        CREATE INDEX IF NOT EXISTS chunks_embedding_idx ON chunks
        USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)
    `)
	if err != nil {
		return fmt.Errorf("create vector index: %w", err)
	}
	return nil
}

// vectorLiteral renders a float slice as a pgvector text literal.
func vectorLiteral(v []float64) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
	}
	b.WriteByte(']')
	return b.String()
}
