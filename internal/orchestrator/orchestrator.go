// Package orchestrator sequences the query-resolution pipeline: intent
// classification, action routing, knowledge-base matching, vector retrieval
// and answer generation, with a fixed fallback order.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/atapcerdas/atapbot/internal/calculator"
	"github.com/atapcerdas/atapbot/internal/common/jsonx"
	"github.com/atapcerdas/atapbot/internal/generator"
	"github.com/atapcerdas/atapbot/internal/intent"
	"github.com/atapcerdas/atapbot/internal/knowledge"
	"github.com/atapcerdas/atapbot/internal/schema"
)

// ErrEmptyQuery is returned for blank query strings.
var ErrEmptyQuery = errors.New("query must not be empty")

// OffTopicMessage is the fixed reply for very low-confidence classifications.
const OffTopicMessage = "Maaf, kami hanya bisa membantu pertanyaan seputar produk atap, pemesanan, " +
	"pemasangan, dan layanan Atap Cerdas. Ada yang bisa kami bantu soal kebutuhan atap Anda?"

// Classifier produces the per-query intent verdict with slot state.
type Classifier interface {
	Classify(ctx context.Context, message string, history []schema.ConversationTurn) intent.Result
}

// ActionRouter executes completed intents.
type ActionRouter interface {
	Handle(ctx context.Context, intentName intent.Intent, slots intent.SlotMap, rawMessage string) intent.Response
}

// Matcher is the lexical Q&A short-circuit.
type Matcher interface {
	Match(ctx context.Context, query string, hasImage bool) (*knowledge.Match, error)
}

// Retriever performs the vector search.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int, filterDocIDs []string) ([]schema.RetrievedChunk, error)
}

// Generator synthesizes answers.
type Generator interface {
	GenerateGrounded(ctx context.Context, query string, chunks []schema.RetrievedChunk, history []schema.ConversationTurn) (string, []schema.Citation, error)
	GenerateGroundedStream(ctx context.Context, query string, chunks []schema.RetrievedChunk, history []schema.ConversationTurn, onDelta func(text string) error) (string, error)
	GenerateUngrounded(ctx context.Context, query string, history []schema.ConversationTurn) (string, error)
	Citations(chunks []schema.RetrievedChunk) []schema.Citation
}

// LogSink receives fire-and-forget query logs.
type LogSink interface {
	InsertQueryLog(ctx context.Context, log schema.QueryLog) error
}

// Thresholds are the fixed pipeline policy constants, injected from config.
type Thresholds struct {
	IntentConfidence float64
	OffTopic         float64
	QAMatch          float64
	TopK             int
}

// Request is one query to resolve. History is caller-supplied and replayed in
// full on every call; the orchestrator owns no conversation storage.
type Request struct {
	Query        string
	TopK         int
	HasImage     bool
	FilterDocIDs []string
	History      []schema.ConversationTurn
}

// Orchestrator wires the pipeline stages. All dependencies are injected;
// every invocation is stateless given its input.
type Orchestrator struct {
	classifier Classifier
	router     ActionRouter
	matcher    Matcher
	retriever  Retriever
	generator  Generator
	logSink    LogSink
	thresholds Thresholds
	logger     *zap.Logger

	// calculate is the directive-hook calculator entry point, replaceable in
	// tests.
	calculate func(calculator.Input) (calculator.Estimate, error)
}

// New constructs the orchestrator.
func New(classifier Classifier, router ActionRouter, matcher Matcher, retriever Retriever, gen Generator, logSink LogSink, thresholds Thresholds, logger *zap.Logger) *Orchestrator {
	if thresholds.IntentConfidence == 0 {
		thresholds.IntentConfidence = 0.7
	}
	if thresholds.OffTopic == 0 {
		thresholds.OffTopic = 0.3
	}
	if thresholds.QAMatch == 0 {
		thresholds.QAMatch = 0.7
	}
	if thresholds.TopK == 0 {
		thresholds.TopK = 5
	}
	return &Orchestrator{
		classifier: classifier,
		router:     router,
		matcher:    matcher,
		retriever:  retriever,
		generator:  gen,
		logSink:    logSink,
		thresholds: thresholds,
		logger:     logger,
		calculate:  calculator.Calculate,
	}
}

// ClassifyIntent exposes the classification stage on its own, for secondary
// tooling. It never runs the rest of the pipeline.
func (o *Orchestrator) ClassifyIntent(ctx context.Context, query string, history []schema.ConversationTurn) intent.Result {
	return o.classifier.Classify(ctx, query, history)
}

// MatchKnowledge exposes the lexical matcher on its own, for secondary
// tooling.
func (o *Orchestrator) MatchKnowledge(ctx context.Context, query string, hasImage bool) (*knowledge.Match, error) {
	return o.matcher.Match(ctx, query, hasImage)
}

// Resolve runs the pipeline to completion and returns the single result
// shape every path converges onto.
func (o *Orchestrator) Resolve(ctx context.Context, req Request) (schema.QueryResult, error) {
	if strings.TrimSpace(req.Query) == "" {
		return schema.QueryResult{}, ErrEmptyQuery
	}
	start := time.Now()

	result := o.classifier.Classify(ctx, req.Query, req.History)
	cls := result.Classification

	// Confident specific intent: bypass retrieval entirely.
	if o.shouldRoute(cls) {
		if !result.IsComplete {
			return o.finish(ctx, req, terminal{
				answer: result.NextQuestion,
				meta:   metaFor(cls, 0, ""),
			}, start), nil
		}
		resp := o.router.Handle(ctx, cls.Intent, result.Slots, req.Query)
		if resp.Handled {
			return o.finish(ctx, req, terminal{
				answer: resp.Message,
				meta:   metaFor(cls, 0, ""),
			}, start), nil
		}
	}

	// Very low confidence: fixed off-topic reply.
	if cls.Confidence < o.thresholds.OffTopic {
		return o.finish(ctx, req, terminal{
			answer: OffTopicMessage,
			meta:   metaFor(cls, 0, ""),
		}, start), nil
	}

	// Cheap lexical short-circuit before the vector path.
	match, err := o.matcher.Match(ctx, req.Query, req.HasImage)
	if err != nil {
		return schema.QueryResult{}, fmt.Errorf("knowledge match: %w", err)
	}
	if match != nil && match.Confidence >= o.thresholds.QAMatch {
		return o.finish(ctx, req, terminal{
			answer: match.Entry.Answer,
			meta:   metaFor(cls, 0, ""),
		}, start), nil
	}

	chunks, err := o.retrieve(ctx, req)
	if err != nil {
		return schema.QueryResult{}, err
	}

	if len(chunks) == 0 {
		answer, err := o.generator.GenerateUngrounded(ctx, req.Query, req.History)
		if err != nil {
			return schema.QueryResult{}, err
		}
		return o.finish(ctx, req, terminal{
			answer: answer,
			meta:   metaFor(cls, 0, schema.FallbackGeneralKnowledge),
		}, start), nil
	}

	answer, citations, err := o.generator.GenerateGrounded(ctx, req.Query, chunks, req.History)
	if err != nil {
		return schema.QueryResult{}, err
	}
	if block, ok := o.detectDirective(answer); ok {
		answer = answer + "\n\n" + block
	}
	return o.finish(ctx, req, terminal{
		answer:    answer,
		citations: citations,
		chunkIDs:  chunkIDs(chunks),
		meta:      metaFor(cls, len(chunks), ""),
	}, start), nil
}

// shouldRoute gates the intent short-circuit: specific, confident intents
// only. The two retrieval catch-alls always fall through.
func (o *Orchestrator) shouldRoute(cls intent.Classification) bool {
	if cls.Intent == intent.GeneralQuestion || cls.Intent == intent.PertanyaanProduk {
		return false
	}
	return cls.Confidence >= o.thresholds.IntentConfidence
}

func (o *Orchestrator) retrieve(ctx context.Context, req Request) ([]schema.RetrievedChunk, error) {
	k := req.TopK
	if k <= 0 {
		k = o.thresholds.TopK
	}
	chunks, err := o.retriever.Retrieve(ctx, req.Query, k, req.FilterDocIDs)
	if err != nil {
		return nil, fmt.Errorf("vector retrieval: %w", err)
	}
	return chunks, nil
}

// terminal is one finished pipeline branch before logging.
type terminal struct {
	answer    string
	citations []schema.Citation
	chunkIDs  []string
	meta      schema.ResultMetadata
}

// finish stamps latency, fires the query log and shapes the result. Log
// failures never fail the request.
func (o *Orchestrator) finish(ctx context.Context, req Request, t terminal, start time.Time) schema.QueryResult {
	latency := time.Since(start).Milliseconds()
	t.meta.LatencyMs = latency
	if t.citations == nil {
		t.citations = []schema.Citation{}
	}

	logCtx := context.WithoutCancel(ctx)
	go func() {
		logCtx, cancel := context.WithTimeout(logCtx, 5*time.Second)
		defer cancel()
		if err := o.logSink.InsertQueryLog(logCtx, schema.QueryLog{
			Query:     req.Query,
			Answer:    t.answer,
			Intent:    t.meta.Intent,
			ChunkIDs:  t.chunkIDs,
			LatencyMs: latency,
		}); err != nil {
			o.logger.Warn("query log write failed", zap.Error(err))
		}
	}()

	return schema.QueryResult{
		Answer:    t.answer,
		Citations: t.citations,
		Metadata:  t.meta,
	}
}

// detectDirective scans an assembled answer for the calculator directive and
// returns the formatted estimate block. Detection is best-effort: any parse
// or calculation failure returns ok=false and is merely logged.
func (o *Orchestrator) detectDirective(answer string) (string, bool) {
	idx := strings.Index(answer, generator.DirectiveMarker)
	if idx < 0 {
		return "", false
	}
	tail := answer[idx+len(generator.DirectiveMarker):]

	var in calculator.Input
	if err := jsonx.FirstObjectInto(tail, &in); err != nil {
		o.logger.Warn("calculator directive parse failed", zap.Error(err))
		return "", false
	}
	estimate, err := o.calculate(in)
	if err != nil {
		o.logger.Warn("calculator directive computation failed", zap.Error(err))
		return "", false
	}
	return estimate.Format(), true
}

func metaFor(cls intent.Classification, chunksRetrieved int, fallback string) schema.ResultMetadata {
	return schema.ResultMetadata{
		Intent:          string(cls.Intent),
		Confidence:      cls.Confidence,
		ChunksRetrieved: chunksRetrieved,
		FallbackMode:    fallback,
	}
}

func chunkIDs(chunks []schema.RetrievedChunk) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.ID)
	}
	return out
}
