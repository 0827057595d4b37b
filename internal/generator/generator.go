// Package generator wraps the generative model for RAG-style answer
// synthesis in grounded and ungrounded modes.
package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/atapcerdas/atapbot/internal/llm"
	"github.com/atapcerdas/atapbot/internal/schema"
)

// DirectiveMarker is the token the grounded prompt instructs the model to
// emit, followed by a JSON object, when the user's need is a material
// estimate. The orchestrator scans assembled answers for it.
const DirectiveMarker = "[KALKULASI_ATAP]"

// UngroundedPreamble prefixes every general-knowledge fallback answer.
const UngroundedPreamble = "Informasi ini tidak tersedia di dokumen yang kami miliki, " +
	"jadi jawaban berikut berdasarkan pengetahuan umum:\n\n"

const (
	// contextTokenBudget caps the total source-block size in the grounded prompt.
	contextTokenBudget = 3000
	excerptRunes       = 160
)

// Generator builds prompts and delegates to the model provider. It never
// re-ranks: citations follow the chunk order it was given.
type Generator struct {
	provider      llm.Provider
	historyWindow int
	logger        *zap.Logger
	encoder       *tiktoken.Tiktoken
}

// New creates a generator. The token encoder is optional: when unavailable
// the budget falls back to a rune-count approximation.
func New(provider llm.Provider, historyWindow int, logger *zap.Logger) *Generator {
	if historyWindow <= 0 {
		historyWindow = 6
	}
	encoder, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		logger.Warn("tiktoken encoding unavailable, using rune approximation", zap.Error(err))
		encoder = nil
	}
	return &Generator{
		provider:      provider,
		historyWindow: historyWindow,
		logger:        logger,
		encoder:       encoder,
	}
}

// GenerateGrounded synthesizes an answer constrained to the supplied chunks
// and returns it with citations derived from the same ordered chunk list.
func (g *Generator) GenerateGrounded(ctx context.Context, query string, chunks []schema.RetrievedChunk, history []schema.ConversationTurn) (string, []schema.Citation, error) {
	prompt := g.buildGroundedPrompt(query, chunks, history)
	answer, err := g.provider.Complete(ctx, prompt)
	if err != nil {
		return "", nil, fmt.Errorf("grounded generation: %w", err)
	}
	return strings.TrimSpace(answer), Citations(chunks), nil
}

// GenerateGroundedStream is the streaming variant: fragments are forwarded to
// onDelta in emission order and the fully assembled answer is returned once
// the upstream stream closes.
func (g *Generator) GenerateGroundedStream(ctx context.Context, query string, chunks []schema.RetrievedChunk, history []schema.ConversationTurn, onDelta func(text string) error) (string, error) {
	prompt := g.buildGroundedPrompt(query, chunks, history)
	var assembled strings.Builder
	err := g.provider.CompleteStream(ctx, prompt, func(text string) error {
		assembled.WriteString(text)
		return onDelta(text)
	})
	if err != nil {
		return assembled.String(), fmt.Errorf("grounded stream: %w", err)
	}
	return assembled.String(), nil
}

// GenerateUngrounded answers from general knowledge when retrieval finds
// nothing, prefixed with the fixed preamble.
func (g *Generator) GenerateUngrounded(ctx context.Context, query string, history []schema.ConversationTurn) (string, error) {
	var b strings.Builder
	b.WriteString("Kamu adalah asisten ramah dari Atap Cerdas, toko material atap baja ringan di Indonesia.\n")
	b.WriteString("Tidak ada dokumen referensi yang relevan dengan pertanyaan ini, jadi jawab singkat ")
	b.WriteString("berdasarkan pengetahuan umum seputar atap dan bahan bangunan. ")
	b.WriteString("Kalau pertanyaannya di luar topik atap, arahkan pelanggan kembali dengan sopan.\n\n")
	g.writeHistory(&b, history)
	b.WriteString("Pertanyaan: " + query + "\n")

	answer, err := g.provider.Complete(ctx, b.String())
	if err != nil {
		return "", fmt.Errorf("ungrounded generation: %w", err)
	}
	return UngroundedPreamble + strings.TrimSpace(answer), nil
}

// Citations implements the orchestrator's generator surface.
func (g *Generator) Citations(chunks []schema.RetrievedChunk) []schema.Citation {
	return Citations(chunks)
}

// Citations maps an ordered chunk list to citation records with truncated
// excerpts. It never re-ranks.
func Citations(chunks []schema.RetrievedChunk) []schema.Citation {
	out := make([]schema.Citation, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, schema.Citation{
			DocumentID:   c.DocumentID,
			DocumentName: c.DocumentName,
			ChunkIndex:   c.ChunkIndex,
			Excerpt:      truncateRunes(c.Content, excerptRunes),
			Page:         c.Page,
		})
	}
	return out
}

// buildGroundedPrompt interleaves numbered source blocks with the
// conversation context, then the persona and the calculator-directive
// protocol.
func (g *Generator) buildGroundedPrompt(query string, chunks []schema.RetrievedChunk, history []schema.ConversationTurn) string {
	var b strings.Builder
	b.WriteString("Kamu adalah asisten ramah dari Atap Cerdas, toko material atap baja ringan di Indonesia.\n")
	b.WriteString("Jawab pertanyaan pelanggan HANYA berdasarkan sumber di bawah. ")
	b.WriteString("Kalau sumbernya tidak menjawab, katakan terus terang dan tawarkan bantuan tim kami.\n\n")

	budget := contextTokenBudget
	for i, c := range chunks {
		header := fmt.Sprintf("[Sumber %d: %s", i+1, c.DocumentName)
		if c.Page > 0 {
			header += fmt.Sprintf(", hal. %d", c.Page)
		}
		header += "]\n"

		content := c.Content
		cost := g.countTokens(content)
		if cost > budget {
			content = g.truncateTokens(content, budget)
			cost = budget
		}
		if cost == 0 {
			break
		}
		budget -= cost
		b.WriteString(header)
		b.WriteString(content)
		b.WriteString("\n\n")
		if budget <= 0 {
			break
		}
	}

	g.writeHistory(&b, history)

	b.WriteString("Aturan tambahan:\n")
	b.WriteString("- Jawab dalam bahasa Indonesia yang santai tapi sopan.\n")
	b.WriteString("- Jangan mengarang angka yang tidak ada di sumber.\n")
	b.WriteString("- Jika pelanggan butuh hitungan kebutuhan material atap dan menyebutkan ukuran, " +
		"akhiri jawaban dengan baris berformat persis: " + DirectiveMarker +
		`{"model_atap":"...","tipe_bangunan":"...","panjang":0,"lebar":0,"overstek":0,"sudut":0,"jenis_penutup":"..."}` + "\n\n")

	b.WriteString("Pertanyaan: " + query + "\n")
	return b.String()
}

func (g *Generator) writeHistory(b *strings.Builder, history []schema.ConversationTurn) {
	if len(history) == 0 {
		return
	}
	start := len(history) - g.historyWindow
	if start < 0 {
		start = 0
	}
	b.WriteString("Percakapan sebelumnya:\n")
	for _, turn := range history[start:] {
		label := "User"
		if turn.Role == schema.RoleAssistant {
			label = "Assistant"
		}
		b.WriteString(fmt.Sprintf("%s: %s\n", label, turn.Text))
	}
	b.WriteString("\n")
}

func (g *Generator) countTokens(s string) int {
	if g.encoder != nil {
		return len(g.encoder.Encode(s, nil, nil))
	}
	// rough approximation: ~4 runes per token
	return (len([]rune(s)) + 3) / 4
}

func (g *Generator) truncateTokens(s string, budget int) string {
	if budget <= 0 {
		return ""
	}
	if g.encoder != nil {
		tokens := g.encoder.Encode(s, nil, nil)
		if len(tokens) <= budget {
			return s
		}
		return g.encoder.Decode(tokens[:budget])
	}
	runes := []rune(s)
	max := budget * 4
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
