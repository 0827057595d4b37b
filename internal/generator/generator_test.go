package generator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atapcerdas/atapbot/internal/schema"
)

type fakeProvider struct {
	response string
	chunks   []string
	err      error
	prompts  []string
}

func (f *fakeProvider) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeProvider) CompleteStream(_ context.Context, prompt string, onDelta func(string) error) error {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return f.err
	}
	for _, fragment := range f.chunks {
		if err := onDelta(fragment); err != nil {
			return err
		}
	}
	return nil
}

var testChunks = []schema.RetrievedChunk{
	{
		ID: "c1", DocumentID: "d1", ChunkIndex: 0, DocumentName: "Katalog Spandek", Page: 3,
		Content: "Spandek 0.35mm memiliki garansi 10 tahun terhadap karat.", Similarity: 0.91,
	},
	{
		ID: "c2", DocumentID: "d2", ChunkIndex: 4, DocumentName: "Panduan Pemasangan",
		Content: "Jarak reng untuk spandek maksimal 120 cm.", Similarity: 0.84,
	},
}

func TestGenerateGrounded(t *testing.T) {
	provider := &fakeProvider{response: "Spandek kami bergaransi 10 tahun."}
	g := New(provider, 6, zap.NewNop())

	answer, citations, err := g.GenerateGrounded(context.Background(), "berapa lama garansi spandek?", testChunks, nil)
	require.NoError(t, err)
	assert.Equal(t, "Spandek kami bergaransi 10 tahun.", answer)

	require.Len(t, citations, 2)
	assert.Equal(t, "Katalog Spandek", citations[0].DocumentName)
	assert.Equal(t, 3, citations[0].Page)
	assert.Equal(t, "Panduan Pemasangan", citations[1].DocumentName)

	require.Len(t, provider.prompts, 1)
	prompt := provider.prompts[0]
	assert.Contains(t, prompt, "[Sumber 1: Katalog Spandek, hal. 3]")
	assert.Contains(t, prompt, "[Sumber 2: Panduan Pemasangan]")
	assert.Contains(t, prompt, DirectiveMarker)
	assert.Contains(t, prompt, "berapa lama garansi spandek?")
}

func TestGenerateGroundedProviderError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("model down")}
	g := New(provider, 6, zap.NewNop())

	_, _, err := g.GenerateGrounded(context.Background(), "q", testChunks, nil)
	assert.Error(t, err)
}

func TestGenerateGroundedStreamAssemblesAnswer(t *testing.T) {
	provider := &fakeProvider{chunks: []string{"Spandek ", "bergaransi ", "10 tahun."}}
	g := New(provider, 6, zap.NewNop())

	var deltas []string
	answer, err := g.GenerateGroundedStream(context.Background(), "q", testChunks, nil, func(text string) error {
		deltas = append(deltas, text)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Spandek ", "bergaransi ", "10 tahun."}, deltas)
	assert.Equal(t, "Spandek bergaransi 10 tahun.", answer)
}

func TestGenerateGroundedStreamReturnsPartialOnError(t *testing.T) {
	provider := &fakeProvider{chunks: []string{"Spandek "}}
	g := New(provider, 6, zap.NewNop())

	answer, err := g.GenerateGroundedStream(context.Background(), "q", testChunks, nil, func(string) error {
		return errors.New("client disconnected")
	})
	assert.Error(t, err)
	assert.Equal(t, "Spandek ", answer)
}

func TestGenerateUngroundedHasPreamble(t *testing.T) {
	provider := &fakeProvider{response: "Atap baja ringan biasanya awet 20-30 tahun."}
	g := New(provider, 6, zap.NewNop())

	answer, err := g.GenerateUngrounded(context.Background(), "berapa lama umur atap baja ringan?", nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(answer, UngroundedPreamble))
	assert.Contains(t, answer, "20-30 tahun")
}

func TestCitationsTruncateLongExcerpts(t *testing.T) {
	long := strings.Repeat("panjang sekali ", 50)
	citations := Citations([]schema.RetrievedChunk{
		{DocumentID: "d", DocumentName: "Doc", Content: long},
	})
	require.Len(t, citations, 1)
	assert.LessOrEqual(t, len([]rune(citations[0].Excerpt)), excerptRunes+3)
}

func TestCitationsPreserveOrder(t *testing.T) {
	citations := Citations(testChunks)
	require.Len(t, citations, 2)
	assert.Equal(t, "d1", citations[0].DocumentID)
	assert.Equal(t, "d2", citations[1].DocumentID)
}

func TestGroundedPromptRendersHistory(t *testing.T) {
	provider := &fakeProvider{response: "ok"}
	g := New(provider, 2, zap.NewNop())

	history := []schema.ConversationTurn{
		{Role: schema.RoleUser, Text: "turn lama yang terpotong"},
		{Role: schema.RoleUser, Text: "saya cari atap anti bocor"},
		{Role: schema.RoleAssistant, Text: "boleh, untuk bangunan apa?"},
	}
	_, _, err := g.GenerateGrounded(context.Background(), "untuk gudang", testChunks, history)
	require.NoError(t, err)

	prompt := provider.prompts[0]
	assert.NotContains(t, prompt, "turn lama yang terpotong")
	assert.Contains(t, prompt, "User: saya cari atap anti bocor")
	assert.Contains(t, prompt, "Assistant: boleh, untuk bangunan apa?")
}
