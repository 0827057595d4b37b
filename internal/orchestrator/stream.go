package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atapcerdas/atapbot/internal/schema"
)

// ResolveStream runs the same pipeline as Resolve but delivers the result as
// an ordered event sequence through emit. The grounded branch streams
// citations up front, then deltas as the model produces them; every other
// branch emits its full answer as a single delta. The sequence always ends
// with a done event unless a hard failure aborts it, and the calculator
// event appears at most once, after the last delta.
func (o *Orchestrator) ResolveStream(ctx context.Context, req Request, emit func(schema.StreamEvent) error) error {
	if strings.TrimSpace(req.Query) == "" {
		return ErrEmptyQuery
	}
	start := time.Now()

	result := o.classifier.Classify(ctx, req.Query, req.History)
	cls := result.Classification

	if o.shouldRoute(cls) {
		if !result.IsComplete {
			return o.emitStatic(ctx, req, emit, result.NextQuestion, metaFor(cls, 0, ""), start)
		}
		resp := o.router.Handle(ctx, cls.Intent, result.Slots, req.Query)
		if resp.Handled {
			return o.emitStatic(ctx, req, emit, resp.Message, metaFor(cls, 0, ""), start)
		}
	}

	if cls.Confidence < o.thresholds.OffTopic {
		return o.emitStatic(ctx, req, emit, OffTopicMessage, metaFor(cls, 0, ""), start)
	}

	match, err := o.matcher.Match(ctx, req.Query, req.HasImage)
	if err != nil {
		return fmt.Errorf("knowledge match: %w", err)
	}
	if match != nil && match.Confidence >= o.thresholds.QAMatch {
		return o.emitStatic(ctx, req, emit, match.Entry.Answer, metaFor(cls, 0, ""), start)
	}

	chunks, err := o.retrieve(ctx, req)
	if err != nil {
		return err
	}

	if len(chunks) == 0 {
		answer, err := o.generator.GenerateUngrounded(ctx, req.Query, req.History)
		if err != nil {
			return err
		}
		return o.emitStatic(ctx, req, emit, answer, metaFor(cls, 0, schema.FallbackGeneralKnowledge), start)
	}

	if err := emit(schema.StreamEvent{Type: schema.EventCitations, Citations: o.generator.Citations(chunks)}); err != nil {
		return err
	}

	answer, err := o.generator.GenerateGroundedStream(ctx, req.Query, chunks, req.History, func(text string) error {
		return emit(schema.StreamEvent{Type: schema.EventDelta, Text: text})
	})
	if err != nil {
		return err
	}

	// Directive hook: the closed stream buffer is scanned once, after the
	// final delta.
	if block, ok := o.detectDirective(answer); ok {
		if err := emit(schema.StreamEvent{Type: schema.EventCalculator, Text: block}); err != nil {
			return err
		}
	}

	o.finish(ctx, req, terminal{
		answer:   answer,
		chunkIDs: chunkIDs(chunks),
		meta:     metaFor(cls, len(chunks), ""),
	}, start)
	return emit(schema.StreamEvent{Type: schema.EventDone, LatencyMs: time.Since(start).Milliseconds()})
}

// emitStatic delivers a non-streaming terminal as one delta plus done.
func (o *Orchestrator) emitStatic(ctx context.Context, req Request, emit func(schema.StreamEvent) error, answer string, meta schema.ResultMetadata, start time.Time) error {
	if err := emit(schema.StreamEvent{Type: schema.EventDelta, Text: answer}); err != nil {
		return err
	}
	o.finish(ctx, req, terminal{answer: answer, meta: meta}, start)
	return emit(schema.StreamEvent{Type: schema.EventDone, LatencyMs: time.Since(start).Milliseconds()})
}
