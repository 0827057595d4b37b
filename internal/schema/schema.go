package schema

import "time"

// ConversationTurn is a single chat turn supplied by the caller. The pipeline
// only ever reads a bounded recent window of these; it never mutates them and
// holds no conversation storage of its own.
type ConversationTurn struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Document is an ingested source document. Chunking and format parsing happen
// upstream; this service only reads the catalog.
type Document struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// RetrievedChunk is one nearest-neighbor hit, ordered by descending similarity.
type RetrievedChunk struct {
	ID           string  `json:"id"`
	DocumentID   string  `json:"document_id"`
	ChunkIndex   int     `json:"chunk_index"`
	Content      string  `json:"content"`
	Similarity   float64 `json:"similarity"`
	DocumentName string  `json:"document_name"`
	Page         int     `json:"page,omitempty"`
}

// Citation points back at the chunk an answer was grounded on.
type Citation struct {
	DocumentID   string `json:"document_id"`
	DocumentName string `json:"document_name"`
	ChunkIndex   int    `json:"chunk_index"`
	Excerpt      string `json:"excerpt"`
	Page         int    `json:"page,omitempty"`
}

// ResultMetadata carries per-query diagnostics alongside the answer.
type ResultMetadata struct {
	Intent          string  `json:"intent,omitempty"`
	Confidence      float64 `json:"confidence,omitempty"`
	ChunksRetrieved int     `json:"chunks_retrieved"`
	LatencyMs       int64   `json:"latency_ms"`
	FallbackMode    string  `json:"fallback_mode,omitempty"`
}

// Fallback modes recorded in ResultMetadata.
const (
	FallbackGeneralKnowledge = "general_knowledge"
)

// QueryResult is the single output shape every pipeline path converges onto.
type QueryResult struct {
	Answer    string         `json:"answer"`
	Citations []Citation     `json:"citations"`
	Metadata  ResultMetadata `json:"metadata"`
}

// QAEntry is a curated question/answer pair maintained through the admin
// surface. The matcher only reads entries with IsActive set.
type QAEntry struct {
	ID            string    `json:"id"`
	Category      string    `json:"category"`
	Question      string    `json:"question"`
	Answer        string    `json:"answer"`
	Keywords      []string  `json:"keywords"`
	Priority      int       `json:"priority"`
	RequiresImage bool      `json:"requires_image"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// StreamEvent is one frame of the streaming answer channel. Emission order is
// citations, then deltas, then an optional calculator block, then done.
type StreamEvent struct {
	Type      string     `json:"type"` // "citations", "delta", "calculator", "done", "error"
	Text      string     `json:"text,omitempty"`
	Citations []Citation `json:"citations,omitempty"`
	LatencyMs int64      `json:"latency_ms,omitempty"`
}

const (
	EventCitations  = "citations"
	EventDelta      = "delta"
	EventCalculator = "calculator"
	EventDone       = "done"
	EventError      = "error"
)

// QueryLog is the fire-and-forget audit record written per resolved query.
type QueryLog struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Answer    string    `json:"answer"`
	Intent    string    `json:"intent,omitempty"`
	ChunkIDs  []string  `json:"chunk_ids,omitempty"`
	LatencyMs int64     `json:"latency_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// ContactSettings holds the business contact info rendered into handoff
// messages. Lookup failures fall back to static defaults; the rendered
// message must never miss contact details.
type ContactSettings struct {
	WhatsApp       string `json:"whatsapp"`
	Email          string `json:"email"`
	Address        string `json:"address"`
	OperatingHours string `json:"operating_hours"`
}
