package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeEmbedder returns a fixed vector, or err when set.
type fakeEmbedder struct {
	// err is returned by Embed when non-nil.
	err error
	// calls counts Embed invocations.
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

// fakeStore serves canned search results.
type fakeStore struct {
	// results is returned by Search.
	results []ScoredChunk
	// err is returned by Search when non-nil.
	err error
	// lastTopK records the topK passed to Search.
	lastTopK int
}

func (f *fakeStore) Upsert(context.Context, []Chunk, [][]float32) error { return nil }
func (f *fakeStore) Delete(context.Context, []string) error             { return nil }
func (f *fakeStore) Metadata(context.Context) ([]map[string]any, error) { return nil, nil }
func (f *fakeStore) Count(context.Context) (uint64, error)              { return 0, nil }
func (f *fakeStore) EnsureCollection(context.Context, uint64) error     { return nil }
func (f *fakeStore) Close() error                                       { return nil }

func (f *fakeStore) Search(_ context.Context, _ []float32, topK int) ([]ScoredChunk, error) {
	f.lastTopK = topK
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func scored(content string, score float64) ScoredChunk {
	return ScoredChunk{Chunk: Chunk{Content: content, Metadata: map[string]any{"source": content + ".md"}}, Score: score}
}

// ---------------------------------------------------------------------------
// Retriever
// ---------------------------------------------------------------------------

func TestNewRetriever_NilArgs(t *testing.T) {
	t.Parallel()
	if _, err := NewRetriever(nil, &fakeStore{}); err == nil {
		t.Error("expected error for nil embedder")
	}
	if _, err := NewRetriever(&fakeEmbedder{}, nil); err == nil {
		t.Error("expected error for nil store")
	}
}

func TestRetrieveScored_PassesKAndPreservesOrder(t *testing.T) {
	t.Parallel()

	store := &fakeStore{results: []ScoredChunk{scored("nigiri", 0.9), scored("maki", 0.7)}}
	emb := &fakeEmbedder{}
	r, err := NewRetriever(emb, store)
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	got, err := r.RetrieveScored(context.Background(), "what is nigiri", 3)
	if err != nil {
		t.Fatalf("RetrieveScored: %v", err)
	}
	if store.lastTopK != 3 {
		t.Errorf("topK: expected 3, got %d", store.lastTopK)
	}
	if emb.calls != 1 {
		t.Errorf("embed calls: expected 1, got %d", emb.calls)
	}
	if len(got) != 2 || got[0].Content != "nigiri" || got[1].Content != "maki" {
		t.Errorf("unexpected results: %+v", got)
	}
}

func TestRetrieveScored_TruncatesToK(t *testing.T) {
	t.Parallel()

	store := &fakeStore{results: []ScoredChunk{scored("a", 0.9), scored("b", 0.8), scored("c", 0.7)}}
	r, _ := NewRetriever(&fakeEmbedder{}, store)

	got, err := r.RetrieveScored(context.Background(), "q", 2)
	if err != nil {
		t.Fatalf("RetrieveScored: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 results, got %d", len(got))
	}
}

func TestRetrieve_DropsScores(t *testing.T) {
	t.Parallel()

	store := &fakeStore{results: []ScoredChunk{scored("uni", 0.5)}}
	r, _ := NewRetriever(&fakeEmbedder{}, store)

	got, err := r.Retrieve(context.Background(), "sea urchin", 4)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 1 || got[0].Content != "uni" || got[0].Metadata["source"] != "uni.md" {
		t.Errorf("unexpected chunks: %+v", got)
	}
}

func TestRetrieve_NonPositiveK(t *testing.T) {
	t.Parallel()
	r, _ := NewRetriever(&fakeEmbedder{}, &fakeStore{})
	if _, err := r.Retrieve(context.Background(), "q", 0); err == nil {
		t.Error("expected error for k=0")
	}
}

func TestRetrieve_ErrorsPropagate(t *testing.T) {
	t.Parallel()

	credErr := &CredentialError{EnvVar: "OPENAI_API_KEY", Component: "embedder"}
	tests := []struct {
		name   string
		embErr error
		stErr  error
		target error
	}{
		{name: "embedder credential", embErr: credErr, target: credErr},
		{name: "missing collection", stErr: ErrCollectionNotFound, target: ErrCollectionNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			r, _ := NewRetriever(&fakeEmbedder{err: tc.embErr}, &fakeStore{err: tc.stErr})
			_, err := r.Retrieve(context.Background(), "q", 4)
			if !errors.Is(err, tc.target) {
				t.Errorf("expected errors.Is(%v, %v)", err, tc.target)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// FilterByScore
// ---------------------------------------------------------------------------

func TestFilterByScore(t *testing.T) {
	t.Parallel()

	in := []ScoredChunk{scored("a", 0.9), scored("b", 0.5), scored("c", 0.49), scored("d", 0.7)}
	half := 0.5
	one := 1.0

	tests := []struct {
		name      string
		threshold *float64
		want      []string
	}{
		{name: "nil keeps all", threshold: nil, want: []string{"a", "b", "c", "d"}},
		{name: "inclusive boundary", threshold: &half, want: []string{"a", "b", "d"}},
		{name: "filters everything", threshold: &one, want: nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := FilterByScore(in, tc.threshold)
			if len(got) != len(tc.want) {
				t.Fatalf("expected %d results, got %d", len(tc.want), len(got))
			}
			for i, w := range tc.want {
				if got[i].Content != w {
					t.Errorf("result %d: expected %q, got %q", i, w, got[i].Content)
				}
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Qdrant helpers
// ---------------------------------------------------------------------------

func TestSplitPayload(t *testing.T) {
	t.Parallel()

	payload := qdrant.NewValueMap(map[string]any{
		"content": "Salmon nigiri is...",
		"source":  "menu/nigiri.md",
		"page":    int64(3),
		"score":   0.5,
		"public":  true,
		"tags":    []any{"fish"},
	})

	content, meta := splitPayload(payload)
	if content != "Salmon nigiri is..." {
		t.Errorf("content: got %q", content)
	}
	if _, ok := meta["content"]; ok {
		t.Error("content must not appear in metadata")
	}
	if meta["source"] != "menu/nigiri.md" {
		t.Errorf("source: got %v", meta["source"])
	}
	if meta["page"] != int64(3) {
		t.Errorf("page: got %#v", meta["page"])
	}
	if meta["public"] != true {
		t.Errorf("public: got %#v", meta["public"])
	}
	if _, ok := meta["tags"]; ok {
		t.Error("list payload values should be skipped")
	}
}

func TestClampScore(t *testing.T) {
	t.Parallel()
	cases := map[float64]float64{-0.2: 0, 0: 0, 0.42: 0.42, 1: 1, 1.0001: 1}
	for in, want := range cases {
		if got := clampScore(in); got != want {
			t.Errorf("clampScore(%v): expected %v, got %v", in, want, got)
		}
	}
}

func TestWrap_NotFoundBecomesCollectionError(t *testing.T) {
	t.Parallel()

	s := &QdrantStore{cfg: QdrantConfig{Collection: "sushi_menu"}}

	err := s.wrap("search", status.Error(codes.NotFound, "Collection `sushi_menu` doesn't exist!"))
	if !errors.Is(err, ErrCollectionNotFound) {
		t.Errorf("expected ErrCollectionNotFound, got %v", err)
	}
	if status.Code(err) != codes.NotFound {
		t.Errorf("expected wrapped gRPC status to survive, got %v", status.Code(err))
	}

	err = s.wrap("search", status.Error(codes.Unavailable, "connection refused"))
	if errors.Is(err, ErrCollectionNotFound) {
		t.Error("Unavailable must not map to ErrCollectionNotFound")
	}
}

func TestPointID(t *testing.T) {
	t.Parallel()
	if got := pointID(qdrant.NewIDUUID("3f2c")); got != "3f2c" {
		t.Errorf("uuid id: got %q", got)
	}
	if got := pointID(qdrant.NewIDNum(42)); got != "42" {
		t.Errorf("numeric id: got %q", got)
	}
	if got := pointID(nil); got != "" {
		t.Errorf("nil id: got %q", got)
	}
}
