package kb

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/54b3r/sushi-rag/internal/params"
	"github.com/54b3r/sushi-rag/internal/pipeline"
	"github.com/54b3r/sushi-rag/internal/rag"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeRetriever struct {
	mu      sync.Mutex
	chunks  []rag.ScoredChunk
	err     error
	calls   int
	lastK   int
	lastQry string
}

func (f *fakeRetriever) RetrieveScored(_ context.Context, q string, k int) ([]rag.ScoredChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastK, f.lastQry = k, q
	if f.err != nil {
		return nil, f.err
	}
	if len(f.chunks) > k {
		return f.chunks[:k], nil
	}
	return f.chunks, nil
}

func (f *fakeRetriever) Retrieve(ctx context.Context, q string, k int) ([]rag.Chunk, error) {
	scored, err := f.RetrieveScored(ctx, q, k)
	if err != nil {
		return nil, err
	}
	out := make([]rag.Chunk, len(scored))
	for i, s := range scored {
		out[i] = s.Chunk
	}
	return out, nil
}

type fakePipeline struct {
	answer string
	err    error
}

func (p *fakePipeline) Invoke(context.Context, string) (string, error) { return p.answer, p.err }

type fakePipelines struct {
	p     *fakePipeline
	err   error
	lastK int
}

func (f *fakePipelines) For(_ context.Context, k int) (pipeline.Pipeline, error) {
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	return f.p, nil
}

type fakeScanner struct {
	metas []map[string]any
	err   error
}

func (f *fakeScanner) Metadata(context.Context) ([]map[string]any, error) { return f.metas, f.err }

type fakeCounter struct {
	n      uint64
	err    error
	closed bool
}

func (c *fakeCounter) Count(context.Context) (uint64, error) { return c.n, c.err }
func (c *fakeCounter) Close() error                          { c.closed = true; return nil }

// recorder captures progress updates.
type recorder struct {
	values   []float64
	messages []string
}

func (r *recorder) Report(_ context.Context, v float64, msg string) {
	r.values = append(r.values, v)
	r.messages = append(r.messages, msg)
}

func chunk(content, source string, score float64) rag.ScoredChunk {
	return rag.ScoredChunk{Chunk: rag.Chunk{Content: content, Metadata: map[string]any{"source": source}}, Score: score}
}

type fixture struct {
	svc       *Service
	retriever *fakeRetriever
	pipelines *fakePipelines
	scanner   *fakeScanner
	counter   *fakeCounter
	metrics   *Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		retriever: &fakeRetriever{chunks: []rag.ScoredChunk{
			chunk("Nigiri is hand-pressed rice topped with fish.", "nigiri.md", 0.91),
			chunk("Maki is rolled in nori.", "maki.md", 0.62),
		}},
		pipelines: &fakePipelines{p: &fakePipeline{answer: "Nigiri is pressed by hand."}},
		scanner:   &fakeScanner{metas: []map[string]any{{"source": "nigiri.md"}, {"title": "Knives"}}},
		counter:   &fakeCounter{n: 42},
		metrics:   NewMetrics(prometheus.NewRegistry()),
	}
	svc, err := New(Config{
		Retriever:   f.retriever,
		Pipelines:   f.pipelines,
		Scanner:     f.scanner,
		OpenCounter: func(context.Context) (Counter, error) { return f.counter, nil },
		Store:       StoreInfo{Collection: "sushi_docs", Host: "localhost", Port: 6334},
		Metrics:     f.metrics,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	f.svc = svc
	return f
}

func counterValue(t *testing.T, m *Metrics, tool, outcome string) float64 {
	t.Helper()
	var out dto.Metric
	if err := m.CallsTotal.WithLabelValues(tool, outcome).Write(&out); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return out.GetCounter().GetValue()
}

// ---------------------------------------------------------------------------
// Query
// ---------------------------------------------------------------------------

func TestQuery_MarkdownWithSources(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	rec := &recorder{}

	out := f.svc.Query(context.Background(), params.QueryInput{
		Question: "What is nigiri?", KDocs: 2, IncludeSources: true, ResponseFormat: params.FormatMarkdown,
	}, rec)

	if !strings.HasPrefix(out, "**Answer:**\n\nNigiri is pressed by hand.") {
		t.Errorf("unexpected answer prefix: %q", out)
	}
	if !strings.Contains(out, "**1. nigiri.md**") || !strings.Contains(out, "**2. maki.md**") {
		t.Errorf("expected both sources, got %q", out)
	}
	if f.pipelines.lastK != 2 || f.retriever.lastK != 2 {
		t.Errorf("width: pipeline %d, retriever %d", f.pipelines.lastK, f.retriever.lastK)
	}
	wantMsgs := []string{"Retrieving relevant documents...", "Generating answer...", "Done"}
	if strings.Join(rec.messages, "|") != strings.Join(wantMsgs, "|") {
		t.Errorf("progress messages: got %v", rec.messages)
	}
	if rec.values[0] != 0.1 || rec.values[1] != 0.4 || rec.values[2] != 1.0 {
		t.Errorf("progress values: got %v", rec.values)
	}
	if got := counterValue(t, f.metrics, ToolQuery, outcomeOK); got != 1 {
		t.Errorf("ok counter: expected 1, got %v", got)
	}
}

func TestQuery_WithoutSourcesSkipsRetrieval(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	out := f.svc.Query(context.Background(), params.QueryInput{
		Question: "What is maki?", KDocs: 4, ResponseFormat: params.FormatMarkdown,
	}, NopProgress{})

	if out != "**Answer:**\n\nNigiri is pressed by hand." {
		t.Errorf("unexpected output: %q", out)
	}
	if f.retriever.calls != 0 {
		t.Errorf("expected no source retrieval, got %d calls", f.retriever.calls)
	}
}

func TestQuery_JSON(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	out := f.svc.Query(context.Background(), params.QueryInput{
		Question: "What is nigiri?", KDocs: 1, IncludeSources: true, ResponseFormat: params.FormatJSON,
	}, NopProgress{})

	var got struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
		Sources  []struct {
			Content string `json:"content"`
		} `json:"sources"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if got.Question != "What is nigiri?" || len(got.Sources) != 1 {
		t.Errorf("unexpected payload: %+v", got)
	}
}

func TestQuery_FailuresBecomeMessages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(f *fixture)
		want  string
	}{
		{
			name: "missing credential",
			setup: func(f *fixture) {
				f.pipelines.p.err = &rag.CredentialError{EnvVar: "OPENAI_API_KEY", Component: "provider"}
			},
			want: "Error: OPENAI_API_KEY is not set. Export it before starting the server.",
		},
		{
			name: "missing collection during source retrieval",
			setup: func(f *fixture) {
				f.retriever.err = rag.ErrCollectionNotFound
			},
			want: "Error: collection not found. Run the ingestion step to populate 'sushi_docs' first.",
		},
		{
			name: "pipeline build failure",
			setup: func(f *fixture) {
				f.pipelines.err = errors.New("compile failed")
			},
			want: "Error: UnknownError: compile failed",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			tc.setup(f)
			out := f.svc.Query(context.Background(), params.QueryInput{
				Question: "What is nigiri?", KDocs: 4, IncludeSources: true, ResponseFormat: params.FormatMarkdown,
			}, NopProgress{})
			if out != tc.want {
				t.Errorf("expected %q, got %q", tc.want, out)
			}
			if got := counterValue(t, f.metrics, ToolQuery, outcomeError); got != 1 {
				t.Errorf("error counter: expected 1, got %v", got)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Real retriever and pipeline
// ---------------------------------------------------------------------------

// stubEmbedder returns one fixed vector per text, or err.
type stubEmbedder struct{ err error }

func (e stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

// memStore serves a fixed result list from Search.
type memStore struct{ results []rag.ScoredChunk }

func (m *memStore) Upsert(context.Context, []rag.Chunk, [][]float32) error { return nil }
func (m *memStore) Delete(context.Context, []string) error                 { return nil }
func (m *memStore) Metadata(context.Context) ([]map[string]any, error)     { return nil, nil }
func (m *memStore) Count(context.Context) (uint64, error)                  { return 0, nil }
func (m *memStore) EnsureCollection(context.Context, uint64) error         { return nil }
func (m *memStore) Close() error                                           { return nil }

func (m *memStore) Search(_ context.Context, _ []float32, topK int) ([]rag.ScoredChunk, error) {
	if len(m.results) > topK {
		return m.results[:topK], nil
	}
	return m.results, nil
}

type cannedModel struct{}

func (cannedModel) Generate(context.Context, []*schema.Message, ...model.Option) (*schema.Message, error) {
	return schema.AssistantMessage("Use warm rice.", nil), nil
}

func (c cannedModel) Stream(ctx context.Context, msgs []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := c.Generate(ctx, msgs, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// newWiredService builds a Service over a real rag.Retriever and a real
// pipeline cache so failures travel the same path as in production.
func newWiredService(t *testing.T, emb rag.Embedder, vs rag.VectorStore) *Service {
	t.Helper()
	r, err := rag.NewRetriever(emb, vs)
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}
	cache, err := pipeline.NewCache(context.Background(), r, cannedModel{}, params.DefaultKDocs)
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	svc, err := New(Config{
		Retriever: r,
		Pipelines: cache,
		Scanner:   &fakeScanner{},
		Store:     StoreInfo{Collection: "sushi_menu"},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

func TestUnclassifiedFailures_ReadableMessages(t *testing.T) {
	t.Parallel()

	svc := newWiredService(t, stubEmbedder{err: errors.New("dial tcp: connection refused")}, &memStore{})

	query := svc.Query(context.Background(), params.QueryInput{
		Question: "How warm is sushi rice?", KDocs: params.DefaultKDocs, ResponseFormat: params.FormatMarkdown,
	}, NopProgress{})
	search := svc.Search(context.Background(), params.SearchInput{
		Query: "sushi rice", K: 5, ResponseFormat: params.FormatMarkdown,
	}, NopProgress{})

	tests := []struct {
		name string
		got  string
		want string
	}{
		{name: "query", got: query, want: "Error: UnknownError: pipeline: rag: embedding query failed: dial tcp: connection refused"},
		{name: "search", got: search, want: "Error: UnknownError: rag: embedding query failed: dial tcp: connection refused"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if tc.got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, tc.got)
			}
			if strings.Contains(tc.got, "\n") {
				t.Errorf("message must be a single line: %q", tc.got)
			}
		})
	}
}

func TestSearch_NigiriBasicsEndToEnd(t *testing.T) {
	t.Parallel()

	vs := &memStore{results: []rag.ScoredChunk{
		{
			Chunk: rag.Chunk{
				ID:       "c1",
				Content:  "Nigiri is hand-pressed sushi rice topped with fish.",
				Metadata: map[string]any{"source": "Nigiri Basics"},
			},
			Score: 0.87,
		},
	}}
	svc := newWiredService(t, stubEmbedder{}, vs)

	out := svc.Search(context.Background(), params.SearchInput{
		Query: "nigiri", K: 1, ResponseFormat: params.FormatJSON,
	}, NopProgress{})

	var got []struct {
		Rank     int            `json:"rank"`
		Content  string         `json:"content"`
		Metadata map[string]any `json:"metadata"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 result, got %d: %s", len(got), out)
	}
	if got[0].Rank != 1 || got[0].Metadata["source"] != "Nigiri Basics" {
		t.Errorf("unexpected result: %+v", got[0])
	}
	if got[0].Content != "Nigiri is hand-pressed sushi rice topped with fish." {
		t.Errorf("content: got %q", got[0].Content)
	}
}

// ---------------------------------------------------------------------------
// Search
// ---------------------------------------------------------------------------

func TestSearch_ThresholdFilters(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	rec := &recorder{}
	threshold := 0.8

	out := f.svc.Search(context.Background(), params.SearchInput{
		Query: "nigiri", K: 5, ScoreThreshold: &threshold, ResponseFormat: params.FormatJSON,
	}, rec)

	var got []struct {
		Rank  int     `json:"rank"`
		Score float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(got) != 1 || got[0].Rank != 1 || got[0].Score != 0.91 {
		t.Errorf("unexpected results: %+v", got)
	}
	if len(rec.messages) != 2 || rec.messages[0] != "Running semantic search..." || rec.values[0] != 0.2 {
		t.Errorf("unexpected progress: %v %v", rec.values, rec.messages)
	}
}

func TestSearch_NoResults(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.retriever.chunks = nil

	out := f.svc.Search(context.Background(), params.SearchInput{
		Query: "wasabi", K: 5, ResponseFormat: params.FormatMarkdown,
	}, NopProgress{})

	if out != "No results found for query: 'wasabi'" {
		t.Errorf("unexpected output: %q", out)
	}
}

// ---------------------------------------------------------------------------
// ListTopics and Stats
// ---------------------------------------------------------------------------

func TestListTopics(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	out := f.svc.ListTopics(context.Background(), params.TopicsInput{Limit: 50})

	var got struct {
		Total    int      `json:"total_unique_topics"`
		Returned int      `json:"returned"`
		Topics   []string `json:"topics"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if got.Total != 2 || got.Returned != 2 || got.Topics[0] != "Knives" {
		t.Errorf("unexpected report: %+v", got)
	}
}

func TestListTopics_ScanFailure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.scanner.err = rag.ErrCollectionNotFound

	out := f.svc.ListTopics(context.Background(), params.TopicsInput{Limit: 50})
	if !strings.HasPrefix(out, "Error: collection not found.") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestStats(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	out := f.svc.Stats(context.Background())

	var got map[string]any
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if got["collection"] != "sushi_docs" || got["document_chunks"] != float64(42) {
		t.Errorf("unexpected stats: %v", got)
	}
	if !f.counter.closed {
		t.Error("expected the transient store handle to be closed")
	}
}

func TestStats_Failure(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.counter.err = errors.New("connection refused")

	out := f.svc.Stats(context.Background())

	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if got["error"] != "connection refused" {
		t.Errorf("unexpected error body: %v", got)
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	t.Parallel()
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for empty config")
	}
}
