package rag

import (
	"context"
	"fmt"
)

// Retriever combines an Embedder and a VectorStore. It embeds the query at
// retrieval time and delegates similarity search to the store. It holds no
// mutable state and is safe for concurrent use.
type Retriever struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// store performs the vector similarity search.
	store VectorStore
}

// NewRetriever constructs a Retriever from the given Embedder and VectorStore.
func NewRetriever(embedder Embedder, store VectorStore) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	return &Retriever{embedder: embedder, store: store}, nil
}

// Retrieve returns up to k chunks most similar to query, best first.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]Chunk, error) {
	scored, err := r.RetrieveScored(ctx, query, k)
	if err != nil {
		return nil, err
	}
	chunks := make([]Chunk, len(scored))
	for i, s := range scored {
		chunks[i] = s.Chunk
	}
	return chunks, nil
}

// RetrieveScored returns up to k chunks with their relevance scores, in
// descending score order as reported by the store.
func (r *Retriever) RetrieveScored(ctx context.Context, query string, k int) ([]ScoredChunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("rag: k must be positive, got %d", k)
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for query")
	}

	results, err := r.store.Search(ctx, embeddings[0], k)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}
	if len(results) > k {
		results = results[:k]
	}

	return results, nil
}

// FilterByScore keeps the chunks whose score is at least threshold,
// preserving order. A nil threshold returns the input unchanged.
func FilterByScore(chunks []ScoredChunk, threshold *float64) []ScoredChunk {
	if threshold == nil {
		return chunks
	}
	out := make([]ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		if c.Score >= *threshold {
			out = append(out, c)
		}
	}
	return out
}
