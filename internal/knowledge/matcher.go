// Package knowledge implements the lexical Q&A matcher used as a cheap
// short-circuit before the vector retrieval path. It is intentionally
// non-semantic.
package knowledge

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/atapcerdas/atapbot/internal/schema"
)

// Catalog supplies the curated Q&A entries. The matcher treats the catalog as
// a read-only external collection that may change between calls; entries must
// be returned most-recent first, since ties keep the earliest-encountered
// entry.
type Catalog interface {
	ListActiveQAEntries(ctx context.Context) ([]schema.QAEntry, error)
}

// Match is one scored catalog hit.
type Match struct {
	Entry      schema.QAEntry
	Confidence float64
}

// Matcher scores queries against the catalog with fixed lexical heuristics.
type Matcher struct {
	catalog   Catalog
	threshold float64
	logger    *zap.Logger
}

// Scoring constants. Rules apply in priority order and do not combine.
const (
	scoreExact       = 100
	scoreContains    = 80
	scorePerKeyword  = 20
	scoreKeywordCap  = 70
	defaultThreshold = 0.5
)

// NewMatcher creates a matcher. A match is reported only when its confidence
// reaches threshold; pass 0 for the default of 0.5.
func NewMatcher(catalog Catalog, threshold float64, logger *zap.Logger) *Matcher {
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	return &Matcher{catalog: catalog, threshold: threshold, logger: logger}
}

// Match scans every active entry for the single best lexical score. It never
// exits early: the full set is evaluated and the first entry to reach the
// high-water mark wins. A nil return with nil error means "no match", which
// is an expected outcome, not a failure.
func (m *Matcher) Match(ctx context.Context, query string, hasImage bool) (*Match, error) {
	entries, err := m.catalog.ListActiveQAEntries(ctx)
	if err != nil {
		return nil, err
	}

	var best *Match
	bestScore := 0
	for i := range entries {
		entry := entries[i]
		if entry.RequiresImage && !hasImage {
			continue
		}
		score := scoreEntry(query, entry)
		if score > bestScore {
			bestScore = score
			best = &Match{Entry: entry, Confidence: float64(score) / 100}
		}
	}

	if best == nil || best.Confidence < m.threshold {
		return nil, nil
	}
	m.logger.Debug("qa match",
		zap.String("entry_id", best.Entry.ID),
		zap.Float64("confidence", best.Confidence))
	return best, nil
}

// scoreEntry applies the scoring rules in priority order, no combination:
// exact equality 100, substring containment either direction 80, otherwise
// capped keyword hits.
func scoreEntry(query string, entry schema.QAEntry) int {
	q := strings.ToLower(strings.TrimSpace(query))
	question := strings.ToLower(strings.TrimSpace(entry.Question))
	if q == "" || question == "" {
		return 0
	}

	if q == question {
		return scoreExact
	}
	if strings.Contains(question, q) || strings.Contains(q, question) {
		return scoreContains
	}

	hits := 0
	for _, kw := range entry.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(q, kw) {
			hits++
		}
	}
	if hits == 0 {
		return 0
	}
	score := hits * scorePerKeyword
	if score > scoreKeywordCap {
		score = scoreKeywordCap
	}
	return score
}
