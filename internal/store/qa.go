package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/atapcerdas/atapbot/internal/schema"
)

// ListActiveQAEntries returns active entries ordered most-recent first. The
// matcher's tie-break keeps the earliest-encountered entry at a given score,
// so this read order is part of the matching contract.
func (s *Store) ListActiveQAEntries(ctx context.Context) ([]schema.QAEntry, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT id, category, question, answer, keywords, priority,
               requires_image, is_active, created_at, updated_at
        FROM qa_entries
        WHERE is_active
        ORDER BY updated_at DESC
    `)
	if err != nil {
		return nil, fmt.Errorf("list qa entries: %w", err)
	}
	defer rows.Close()
	return scanQAEntries(rows)
}

// ListQAEntries returns all entries for the admin surface, newest first.
func (s *Store) ListQAEntries(ctx context.Context) ([]schema.QAEntry, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT id, category, question, answer, keywords, priority,
               requires_image, is_active, created_at, updated_at
        FROM qa_entries
        ORDER BY updated_at DESC
    `)
	if err != nil {
		return nil, fmt.Errorf("list qa entries: %w", err)
	}
	defer rows.Close()
	return scanQAEntries(rows)
}

// CreateQAEntry inserts a new entry and returns it with its generated ID.
func (s *Store) CreateQAEntry(ctx context.Context, e schema.QAEntry) (schema.QAEntry, error) {
	e.ID = uuid.New().String()
	now := time.Now()
	e.CreatedAt = now
	e.UpdatedAt = now
	_, err := s.pool.Exec(ctx, `
        INSERT INTO qa_entries (id, category, question, answer, keywords, priority,
                                requires_image, is_active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `, e.ID, e.Category, e.Question, e.Answer, e.Keywords, e.Priority,
		e.RequiresImage, e.IsActive, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return schema.QAEntry{}, fmt.Errorf("create qa entry: %w", err)
	}
	return e, nil
}

// UpdateQAEntry replaces an entry's editable fields.
func (s *Store) UpdateQAEntry(ctx context.Context, e schema.QAEntry) error {
	tag, err := s.pool.Exec(ctx, `
        UPDATE qa_entries
        SET category = $2, question = $3, answer = $4, keywords = $5,
            priority = $6, requires_image = $7, is_active = $8, updated_at = now()
        WHERE id = $1
    `, e.ID, e.Category, e.Question, e.Answer, e.Keywords,
		e.Priority, e.RequiresImage, e.IsActive)
	if err != nil {
		return fmt.Errorf("update qa entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("qa entry %s not found", e.ID)
	}
	return nil
}

// DeleteQAEntry removes an entry.
func (s *Store) DeleteQAEntry(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM qa_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete qa entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("qa entry %s not found", id)
	}
	return nil
}

type qaRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanQAEntries(rows qaRows) ([]schema.QAEntry, error) {
	var out []schema.QAEntry
	for rows.Next() {
		var e schema.QAEntry
		if err := rows.Scan(&e.ID, &e.Category, &e.Question, &e.Answer, &e.Keywords,
			&e.Priority, &e.RequiresImage, &e.IsActive, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan qa entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate qa entries: %w", err)
	}
	return out, nil
}
