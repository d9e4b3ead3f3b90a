// Package rag defines the retrieval side of the knowledge base: the chunk
// types returned to callers, the vector store and embedder contracts, and the
// Retriever adapter that combines them. Concrete backends (Qdrant) satisfy
// these interfaces so the tool layer never depends on a specific store.
package rag

import (
	"context"
)

// Chunk is a unit of retrieved text. It is immutable once returned and is
// owned by the call that fetched it.
type Chunk struct {
	// ID is the vector store point identifier.
	ID string

	// Content is the raw text of the chunk.
	Content string

	// Metadata holds scalar payload values (source, title, topic, ...).
	Metadata map[string]any
}

// ScoredChunk pairs a Chunk with its relevance score in [0.0, 1.0],
// higher meaning more relevant.
type ScoredChunk struct {
	Chunk

	// Score is the relevance score assigned by the similarity search.
	Score float64
}

// VectorStore is the interface for persisting and searching chunk embeddings.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Upsert stores or updates a batch of chunks with their pre-computed embeddings.
	// embeddings[i] is the vector for chunks[i].
	Upsert(ctx context.Context, chunks []Chunk, embeddings [][]float32) error

	// Delete removes the points with the given ids. Unknown ids are ignored.
	Delete(ctx context.Context, ids []string) error

	// Search returns up to topK chunks ordered by descending relevance.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]ScoredChunk, error)

	// Metadata scans every stored item and returns its metadata payload.
	// It does not touch the embedding index.
	Metadata(ctx context.Context) ([]map[string]any, error)

	// Count returns the number of chunks in the collection.
	Count(ctx context.Context) (uint64, error)

	// EnsureCollection creates the collection if it is absent. Only the
	// ingestion path calls it; serving never creates collections.
	EnsureCollection(ctx context.Context, vectorSize uint64) error

	// Close releases any resources held by the store.
	Close() error
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
