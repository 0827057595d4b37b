package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atapcerdas/atapbot/internal/schema"
)

type staticCatalog struct {
	entries []schema.QAEntry
	err     error
}

func (c *staticCatalog) ListActiveQAEntries(context.Context) ([]schema.QAEntry, error) {
	return c.entries, c.err
}

func newTestMatcher(entries []schema.QAEntry) *Matcher {
	return NewMatcher(&staticCatalog{entries: entries}, 0, zap.NewNop())
}

func TestMatchExactQuestion(t *testing.T) {
	m := newTestMatcher([]schema.QAEntry{
		{ID: "1", Question: "Apakah ada garansi?", Answer: "Garansi 10 tahun."},
	})

	match, err := m.Match(context.Background(), "apakah ada garansi?", false)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, 1.0, match.Confidence)
	assert.Equal(t, "1", match.Entry.ID)
}

func TestMatchContainment(t *testing.T) {
	m := newTestMatcher([]schema.QAEntry{
		{ID: "1", Question: "garansi produk", Answer: "10 tahun"},
	})

	match, err := m.Match(context.Background(), "saya mau tanya garansi produk dong", false)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, 0.8, match.Confidence)
}

func TestMatchKeywordScoreIsCapped(t *testing.T) {
	m := newTestMatcher([]schema.QAEntry{
		{
			ID:       "1",
			Question: "perbandingan bahan atap lengkap",
			Answer:   "lihat tabel",
			Keywords: []string{"spandek", "upvc", "metal", "genteng", "harga"},
		},
	})

	// five keyword hits, capped below containment score
	match, err := m.Match(context.Background(), "harga spandek upvc metal genteng berapa", false)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, 0.7, match.Confidence)
}

func TestMatchReportsAtDefaultCutoff(t *testing.T) {
	m := newTestMatcher([]schema.QAEntry{
		{ID: "1", Question: "perbandingan bahan atap", Answer: "lihat tabel", Keywords: []string{"spandek", "upvc", "harga"}},
	})

	// three hits = 0.6: above the matcher's own 0.5 cutoff even though the
	// pipeline's short-circuit threshold sits higher
	match, err := m.Match(context.Background(), "harga spandek dibanding upvc", false)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, 0.6, match.Confidence)
}

func TestMatchBelowThresholdIsNoMatch(t *testing.T) {
	m := newTestMatcher([]schema.QAEntry{
		{ID: "1", Question: "cara klaim garansi", Answer: "x", Keywords: []string{"garansi", "klaim"}},
	})

	// two hits = 0.4, under the 0.5 default threshold
	match, err := m.Match(context.Background(), "garansi klaim", false)
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestMatchSkipsImageEntriesWithoutImage(t *testing.T) {
	entries := []schema.QAEntry{
		{ID: "img", Question: "atap bocor", Answer: "kirim foto", RequiresImage: true},
		{ID: "txt", Question: "atap bocor", Answer: "jawaban teks"},
	}
	m := newTestMatcher(entries)

	match, err := m.Match(context.Background(), "atap bocor", false)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "txt", match.Entry.ID)

	match, err = m.Match(context.Background(), "atap bocor", true)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "img", match.Entry.ID, "catalog order wins at equal score")
}

func TestMatchTieKeepsEarliestEntry(t *testing.T) {
	m := newTestMatcher([]schema.QAEntry{
		{ID: "newer", Question: "jam buka toko", Answer: "a"},
		{ID: "older", Question: "jam buka toko", Answer: "b"},
	})

	match, err := m.Match(context.Background(), "jam buka toko", false)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "newer", match.Entry.ID)
}

func TestMatchEmptyCatalog(t *testing.T) {
	m := newTestMatcher(nil)
	match, err := m.Match(context.Background(), "apa saja produknya?", false)
	require.NoError(t, err)
	assert.Nil(t, match)
}

func TestMatchCatalogErrorPropagates(t *testing.T) {
	m := NewMatcher(&staticCatalog{err: errors.New("db down")}, 0, zap.NewNop())
	_, err := m.Match(context.Background(), "apa saja produknya?", false)
	assert.Error(t, err)
}
