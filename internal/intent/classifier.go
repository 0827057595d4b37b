package intent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/atapcerdas/atapbot/internal/common/jsonx"
	"github.com/atapcerdas/atapbot/internal/llm"
	"github.com/atapcerdas/atapbot/internal/schema"
)

// Classification is the model's verdict for one query. It is produced fresh
// per call and only ever logged, never persisted.
type Classification struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// Result bundles the classification with slot-filling state.
type Result struct {
	Classification Classification `json:"classification"`
	Slots          SlotMap        `json:"slots"`
	MissingSlots   []string       `json:"missing_slots"`
	IsComplete     bool           `json:"is_complete"`
	NextQuestion   string         `json:"next_question,omitempty"`
}

// Classifier drives the generative model through a fixed-taxonomy prompt and
// re-derives slots from the replayed history on every call. There is no
// durable per-session slot store.
type Classifier struct {
	provider      llm.Provider
	historyWindow int
	callTimeout   time.Duration
	logger        *zap.Logger
}

// fallbackNextQuestion is returned when follow-up question generation fails.
const fallbackNextQuestion = "Maaf, boleh tolong lengkapi informasinya supaya kami bisa bantu lebih lanjut?"

// NewClassifier creates a classifier reading at most historyWindow recent
// turns.
func NewClassifier(provider llm.Provider, historyWindow int, logger *zap.Logger) *Classifier {
	if historyWindow <= 0 {
		historyWindow = 6
	}
	return &Classifier{
		provider:      provider,
		historyWindow: historyWindow,
		callTimeout:   20 * time.Second,
		logger:        logger,
	}
}

// Classify runs one classification call plus, when slots are incomplete, one
// follow-up-question call. It never returns an error for model or parse
// failures: those degrade to the general_question fallback and the
// conversation proceeds.
func (c *Classifier) Classify(ctx context.Context, message string, history []schema.ConversationTurn) Result {
	prompt := c.buildClassifyPrompt(message, history)

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	raw, err := c.provider.Complete(callCtx, prompt)
	cancel()
	if err != nil {
		c.logger.Warn("classification call failed, using fallback", zap.Error(err))
		return fallbackResult()
	}

	result, err := parseClassification(raw)
	if err != nil {
		c.logger.Warn("classification parse failed, using fallback",
			zap.Error(err), zap.String("response", truncate(raw, 200)))
		return fallbackResult()
	}

	result.MissingSlots = result.Slots.MissingSlots(result.Classification.Intent)
	result.IsComplete = len(result.MissingSlots) == 0
	if !result.IsComplete {
		result.NextQuestion = c.generateNextQuestion(ctx, message, result.Classification.Intent, result.MissingSlots)
	}

	c.logger.Info("query classified",
		zap.String("intent", string(result.Classification.Intent)),
		zap.Float64("confidence", result.Classification.Confidence),
		zap.Bool("complete", result.IsComplete))
	return result
}

// fallbackResult is the recovered-failure classification: a low-confidence
// general question with no slots.
func fallbackResult() Result {
	return Result{
		Classification: Classification{Intent: GeneralQuestion, Confidence: 0.3},
		Slots:          SlotMap{},
		MissingSlots:   []string{},
		IsComplete:     true,
	}
}

// parseClassification tolerates stray text around the JSON object and unknown
// intent labels.
func parseClassification(raw string) (Result, error) {
	obj, err := jsonx.FirstObject(raw)
	if err != nil {
		return Result{}, err
	}
	if !gjson.Valid(obj) {
		return Result{}, fmt.Errorf("extracted block is not valid JSON")
	}

	parsed := gjson.Parse(obj)
	intentName := parsed.Get("intent").String()
	if !IsValid(intentName) {
		return Result{}, fmt.Errorf("unknown intent label %q", intentName)
	}

	confidence := parsed.Get("confidence").Float()
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}

	slots := SlotMap{}
	for name, value := range parsed.Get("slots").Map() {
		switch value.Type {
		case gjson.String:
			slots[name] = value.String()
		case gjson.Number:
			slots[name] = value.Float()
		case gjson.True, gjson.False:
			slots[name] = value.Bool()
		case gjson.Null:
			// treated as absent
		default:
			slots[name] = value.String()
		}
	}

	return Result{
		Classification: Classification{
			Intent:     Intent(intentName),
			Confidence: confidence,
			Reasoning:  parsed.Get("reasoning").String(),
		},
		Slots: slots,
	}, nil
}

// generateNextQuestion asks the model to phrase a short, casual follow-up
// constrained to the missing slot names. Splitting this from classification
// lets it fail without invalidating a correct verdict: on any failure the
// fixed fallback prompt is returned.
func (c *Classifier) generateNextQuestion(ctx context.Context, message string, intentName Intent, missing []string) string {
	var b strings.Builder
	b.WriteString("Kamu adalah asisten toko material atap yang ramah.\n")
	b.WriteString("Pelanggan baru saja menulis: \"" + message + "\"\n")
	b.WriteString(fmt.Sprintf("Maksud pelanggan: %s.\n", descriptions[intentName]))
	b.WriteString("Informasi yang masih kurang: " + strings.Join(missing, ", ") + ".\n")
	b.WriteString("Tulis SATU pertanyaan lanjutan yang santai dan singkat (maksimal dua kalimat) ")
	b.WriteString("untuk menanyakan informasi yang kurang itu saja. Jangan tanyakan hal lain.")

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	question, err := c.provider.Complete(callCtx, b.String())
	if err != nil || strings.TrimSpace(question) == "" {
		c.logger.Warn("next-question generation failed, using fallback", zap.Error(err))
		return fallbackNextQuestion
	}
	return strings.TrimSpace(question)
}

// buildClassifyPrompt embeds the taxonomy, slot rules, worked examples and
// the rendered recent history.
func (c *Classifier) buildClassifyPrompt(message string, history []schema.ConversationTurn) string {
	var b strings.Builder
	b.WriteString("Kamu adalah pengklasifikasi maksud untuk chatbot toko material atap baja ringan.\n")
	b.WriteString("Klasifikasikan pesan pelanggan ke SATU intent dari daftar berikut:\n\n")
	for _, it := range All {
		b.WriteString(fmt.Sprintf("- %s: %s\n", it, descriptions[it]))
	}

	b.WriteString("\nSlot yang wajib diekstrak per intent (gabungkan informasi dari seluruh percakapan):\n")
	for _, it := range All {
		if slots := requiredSlots[it]; len(slots) > 0 {
			b.WriteString(fmt.Sprintf("- %s: %s\n", it, strings.Join(slots, ", ")))
		}
	}

	b.WriteString(`
Jawab HANYA dengan satu objek JSON:
{"intent": "...", "confidence": 0.0-1.0, "reasoning": "...", "slots": {...}}

Contoh:
Pesan: "Halo, selamat pagi"
{"intent": "greeting", "confidence": 0.95, "reasoning": "sapaan tanpa pertanyaan", "slots": {}}

Pesan: "Saya mau hitung material atap gudang 8x7 meter"
{"intent": "kalkulator_kebutuhan_atap", "confidence": 0.9, "reasoning": "minta hitung material dengan dimensi", "slots": {"dimensi_panjang": 8, "dimensi_lebar": 7}}

Pesan: "Atap rumah saya bocor di bagian dapur, airnya netes terus"
{"intent": "keluhan_bocor", "confidence": 0.9, "reasoning": "laporan kebocoran dengan lokasi", "slots": {"lokasi_bocor": "dapur", "deskripsi_masalah": "air menetes terus"}}

Pesan: "Apa bedanya spandek sama metal pasir?"
{"intent": "pertanyaan_produk", "confidence": 0.85, "reasoning": "perbandingan produk, perlu dokumen", "slots": {}}

`)

	if len(history) > 0 {
		start := len(history) - c.historyWindow
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

	b.WriteString("Pesan: \"" + message + "\"\n")
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
