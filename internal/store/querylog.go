package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/atapcerdas/atapbot/internal/schema"
)

// InsertQueryLog writes one audit record. Callers treat this as
// fire-and-forget: a write failure must never fail the request.
func (s *Store) InsertQueryLog(ctx context.Context, log schema.QueryLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx, `
        INSERT INTO query_logs (id, query, answer, intent, chunk_ids, latency_ms)
        VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
    `, log.ID, log.Query, log.Answer, log.Intent, log.ChunkIDs, log.LatencyMs)
	if err != nil {
		return fmt.Errorf("insert query log: %w", err)
	}
	return nil
}

// ListQueryLogs returns recent logs for the admin surface, newest first.
func (s *Store) ListQueryLogs(ctx context.Context, limit int) ([]schema.QueryLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
        SELECT id, query, answer, COALESCE(intent, ''), COALESCE(chunk_ids, '{}'), latency_ms, created_at
        FROM query_logs
        ORDER BY created_at DESC
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("list query logs: %w", err)
	}
	defer rows.Close()

	var out []schema.QueryLog
	for rows.Next() {
		var l schema.QueryLog
		if err := rows.Scan(&l.ID, &l.Query, &l.Answer, &l.Intent, &l.ChunkIDs, &l.LatencyMs, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan query log: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
