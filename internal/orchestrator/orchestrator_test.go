package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atapcerdas/atapbot/internal/calculator"
	"github.com/atapcerdas/atapbot/internal/generator"
	"github.com/atapcerdas/atapbot/internal/intent"
	"github.com/atapcerdas/atapbot/internal/knowledge"
	"github.com/atapcerdas/atapbot/internal/schema"
)

type fakeClassifier struct {
	result intent.Result
	calls  int
}

func (f *fakeClassifier) Classify(context.Context, string, []schema.ConversationTurn) intent.Result {
	f.calls++
	return f.result
}

type fakeRouter struct {
	response intent.Response
	calls    int
}

func (f *fakeRouter) Handle(context.Context, intent.Intent, intent.SlotMap, string) intent.Response {
	f.calls++
	return f.response
}

type fakeMatcher struct {
	match *knowledge.Match
	err   error
	calls int
}

func (f *fakeMatcher) Match(context.Context, string, bool) (*knowledge.Match, error) {
	f.calls++
	return f.match, f.err
}

type fakeRetriever struct {
	chunks []schema.RetrievedChunk
	err    error
	calls  int
	gotK   int
}

func (f *fakeRetriever) Retrieve(_ context.Context, _ string, k int, _ []string) ([]schema.RetrievedChunk, error) {
	f.calls++
	f.gotK = k
	return f.chunks, f.err
}

type fakeGenerator struct {
	grounded   string
	ungrounded string
	fragments  []string
	err        error

	groundedCalls   int
	ungroundedCalls int
}

func (f *fakeGenerator) GenerateGrounded(_ context.Context, _ string, chunks []schema.RetrievedChunk, _ []schema.ConversationTurn) (string, []schema.Citation, error) {
	f.groundedCalls++
	if f.err != nil {
		return "", nil, f.err
	}
	return f.grounded, generator.Citations(chunks), nil
}

func (f *fakeGenerator) GenerateGroundedStream(_ context.Context, _ string, _ []schema.RetrievedChunk, _ []schema.ConversationTurn, onDelta func(string) error) (string, error) {
	f.groundedCalls++
	if f.err != nil {
		return "", f.err
	}
	var assembled string
	for _, fragment := range f.fragments {
		assembled += fragment
		if err := onDelta(fragment); err != nil {
			return assembled, err
		}
	}
	return assembled, nil
}

func (f *fakeGenerator) GenerateUngrounded(context.Context, string, []schema.ConversationTurn) (string, error) {
	f.ungroundedCalls++
	if f.err != nil {
		return "", f.err
	}
	return f.ungrounded, nil
}

func (f *fakeGenerator) Citations(chunks []schema.RetrievedChunk) []schema.Citation {
	return generator.Citations(chunks)
}

type fakeLogSink struct {
	logged chan schema.QueryLog
}

func newFakeLogSink() *fakeLogSink {
	return &fakeLogSink{logged: make(chan schema.QueryLog, 4)}
}

func (f *fakeLogSink) InsertQueryLog(_ context.Context, log schema.QueryLog) error {
	f.logged <- log
	return nil
}

type fixture struct {
	classifier *fakeClassifier
	router     *fakeRouter
	matcher    *fakeMatcher
	retriever  *fakeRetriever
	generator  *fakeGenerator
	logSink    *fakeLogSink
	orch       *Orchestrator
}

func newFixture() *fixture {
	f := &fixture{
		classifier: &fakeClassifier{},
		router:     &fakeRouter{},
		matcher:    &fakeMatcher{},
		retriever:  &fakeRetriever{},
		generator:  &fakeGenerator{},
		logSink:    newFakeLogSink(),
	}
	f.orch = New(f.classifier, f.router, f.matcher, f.retriever, f.generator, f.logSink, Thresholds{}, zap.NewNop())
	return f
}

func classification(it intent.Intent, confidence float64) intent.Result {
	return intent.Result{
		Classification: intent.Classification{Intent: it, Confidence: confidence},
		Slots:          intent.SlotMap{},
		IsComplete:     true,
	}
}

func retrievalChunks() []schema.RetrievedChunk {
	return []schema.RetrievedChunk{
		{ID: "c1", DocumentID: "d1", DocumentName: "Katalog", Content: "Spandek bergaransi 10 tahun.", Similarity: 0.9},
	}
}

func TestResolveEmptyQuery(t *testing.T) {
	f := newFixture()
	_, err := f.orch.Resolve(context.Background(), Request{Query: "   "})
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.Equal(t, 0, f.classifier.calls)
}

func TestResolveRoutedIntentBypassesRetrieval(t *testing.T) {
	f := newFixture()
	f.classifier.result = classification(intent.Greeting, 0.95)
	f.router.response = intent.Response{Message: "Halo!", Action: intent.ActionReply, Handled: true}

	result, err := f.orch.Resolve(context.Background(), Request{Query: "halo"})
	require.NoError(t, err)
	assert.Equal(t, "Halo!", result.Answer)
	assert.Empty(t, result.Citations)
	assert.Equal(t, "greeting", result.Metadata.Intent)

	assert.Equal(t, 1, f.router.calls)
	assert.Equal(t, 0, f.matcher.calls)
	assert.Equal(t, 0, f.retriever.calls)
}

func TestResolveIncompleteSlotsReturnNextQuestion(t *testing.T) {
	f := newFixture()
	f.classifier.result = intent.Result{
		Classification: intent.Classification{Intent: intent.JadwalSurvey, Confidence: 0.9},
		Slots:          intent.SlotMap{"nama": "Budi"},
		MissingSlots:   []string{"alamat", "telepon"},
		IsComplete:     false,
		NextQuestion:   "Boleh minta alamat dan nomor teleponnya?",
	}

	result, err := f.orch.Resolve(context.Background(), Request{Query: "mau survey"})
	require.NoError(t, err)
	assert.Equal(t, "Boleh minta alamat dan nomor teleponnya?", result.Answer)
	assert.Equal(t, 0, f.router.calls, "routing must wait until slots complete")
	assert.Equal(t, 0, f.retriever.calls)
}

func TestResolveLowConfidenceOffTopic(t *testing.T) {
	f := newFixture()
	f.classifier.result = classification(intent.GeneralQuestion, 0.1)

	result, err := f.orch.Resolve(context.Background(), Request{Query: "resep nasi goreng dong"})
	require.NoError(t, err)
	assert.Equal(t, OffTopicMessage, result.Answer)
	assert.Equal(t, 0, f.matcher.calls)
	assert.Equal(t, 0, f.retriever.calls)
}

func TestResolveConfidentCatchAllFallsThroughToQA(t *testing.T) {
	f := newFixture()
	f.classifier.result = classification(intent.PertanyaanProduk, 0.9)
	f.matcher.match = &knowledge.Match{
		Entry:      schema.QAEntry{ID: "qa1", Answer: "Garansi spandek 10 tahun."},
		Confidence: 0.8,
	}

	result, err := f.orch.Resolve(context.Background(), Request{Query: "garansi spandek berapa lama?"})
	require.NoError(t, err)
	assert.Equal(t, "Garansi spandek 10 tahun.", result.Answer)
	assert.Equal(t, 0, f.router.calls, "catch-all intents never route")
	assert.Equal(t, 0, f.retriever.calls, "strong QA match short-circuits retrieval")
}

func TestResolveWeakQAMatchContinuesToRetrieval(t *testing.T) {
	f := newFixture()
	f.classifier.result = classification(intent.GeneralQuestion, 0.6)
	f.matcher.match = &knowledge.Match{Entry: schema.QAEntry{Answer: "jawaban lemah"}, Confidence: 0.65}
	f.retriever.chunks = retrievalChunks()
	f.generator.grounded = "Jawaban dari dokumen."

	result, err := f.orch.Resolve(context.Background(), Request{Query: "detail garansi"})
	require.NoError(t, err)
	assert.Equal(t, "Jawaban dari dokumen.", result.Answer)
	assert.Equal(t, 1, f.retriever.calls)
}

func TestResolveGroundedAnswerCarriesCitations(t *testing.T) {
	f := newFixture()
	f.classifier.result = classification(intent.PertanyaanProduk, 0.9)
	f.retriever.chunks = retrievalChunks()
	f.generator.grounded = "Spandek kami bergaransi 10 tahun."

	result, err := f.orch.Resolve(context.Background(), Request{Query: "garansi spandek?"})
	require.NoError(t, err)
	assert.Equal(t, "Spandek kami bergaransi 10 tahun.", result.Answer)
	require.Len(t, result.Citations, 1)
	assert.Equal(t, "Katalog", result.Citations[0].DocumentName)
	assert.Equal(t, 1, result.Metadata.ChunksRetrieved)
	assert.Empty(t, result.Metadata.FallbackMode)
}

func TestResolveZeroChunksFallsBackUngrounded(t *testing.T) {
	f := newFixture()
	f.classifier.result = classification(intent.GeneralQuestion, 0.6)
	f.generator.ungrounded = generator.UngroundedPreamble + "Jawaban umum."

	result, err := f.orch.Resolve(context.Background(), Request{Query: "apa itu baja ringan?"})
	require.NoError(t, err)
	assert.Contains(t, result.Answer, "Jawaban umum.")
	assert.Equal(t, schema.FallbackGeneralKnowledge, result.Metadata.FallbackMode)
	assert.Empty(t, result.Citations)
	assert.NotNil(t, result.Citations, "citations must be an empty list, not null")
	assert.Equal(t, 1, f.generator.ungroundedCalls)
	assert.Equal(t, 0, f.generator.groundedCalls)
}

func TestResolveRetrievalErrorSurfaces(t *testing.T) {
	f := newFixture()
	f.classifier.result = classification(intent.GeneralQuestion, 0.6)
	f.retriever.err = errors.New("connection refused")

	_, err := f.orch.Resolve(context.Background(), Request{Query: "detail produk"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vector retrieval")
}

func TestResolveMatcherErrorSurfaces(t *testing.T) {
	f := newFixture()
	f.classifier.result = classification(intent.GeneralQuestion, 0.6)
	f.matcher.err = errors.New("db down")

	_, err := f.orch.Resolve(context.Background(), Request{Query: "detail produk"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "knowledge match")
}

func TestResolveUsesDefaultTopK(t *testing.T) {
	f := newFixture()
	f.classifier.result = classification(intent.GeneralQuestion, 0.6)
	f.retriever.chunks = retrievalChunks()
	f.generator.grounded = "ok"

	_, err := f.orch.Resolve(context.Background(), Request{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, 5, f.retriever.gotK)

	_, err = f.orch.Resolve(context.Background(), Request{Query: "q", TopK: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, f.retriever.gotK)
}

func TestResolveAppendsCalculatorBlock(t *testing.T) {
	f := newFixture()
	f.classifier.result = classification(intent.PertanyaanProduk, 0.9)
	f.retriever.chunks = retrievalChunks()
	f.generator.grounded = "Berikut perhitungannya. " + generator.DirectiveMarker +
		`{"model_atap":"pelana","panjang":10,"lebar":5,"overstek":0,"sudut":0,"jenis_penutup":"spandek"}`

	result, err := f.orch.Resolve(context.Background(), Request{Query: "hitung atap 10x5 spandek"})
	require.NoError(t, err)
	assert.Contains(t, result.Answer, "Estimasi Kebutuhan Material Atap")
	assert.Contains(t, result.Answer, "Total estimasi")
}

func TestResolveSwallowsBrokenDirective(t *testing.T) {
	f := newFixture()
	f.classifier.result = classification(intent.PertanyaanProduk, 0.9)
	f.retriever.chunks = retrievalChunks()
	f.generator.grounded = "Jawaban. " + generator.DirectiveMarker + " bukan json"

	result, err := f.orch.Resolve(context.Background(), Request{Query: "hitung"})
	require.NoError(t, err)
	assert.Equal(t, f.generator.grounded, result.Answer)
}

func TestResolveLogsEveryTerminalBranch(t *testing.T) {
	f := newFixture()
	f.classifier.result = classification(intent.Greeting, 0.95)
	f.router.response = intent.Response{Message: "Halo!", Handled: true}

	_, err := f.orch.Resolve(context.Background(), Request{Query: "halo"})
	require.NoError(t, err)

	select {
	case log := <-f.logSink.logged:
		assert.Equal(t, "halo", log.Query)
		assert.Equal(t, "Halo!", log.Answer)
		assert.Equal(t, "greeting", log.Intent)
	case <-time.After(2 * time.Second):
		t.Fatal("expected query log write")
	}
}

func TestResolveDirectiveCalculatorInvokedOnce(t *testing.T) {
	f := newFixture()
	f.classifier.result = classification(intent.PertanyaanProduk, 0.9)
	f.retriever.chunks = retrievalChunks()
	f.generator.grounded = generator.DirectiveMarker + `{"panjang":10,"lebar":5,"jenis_penutup":"spandek"}`

	calls := 0
	f.orch.calculate = func(in calculator.Input) (calculator.Estimate, error) {
		calls++
		return calculator.Calculate(in)
	}

	_, err := f.orch.Resolve(context.Background(), Request{Query: "hitung"})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}
