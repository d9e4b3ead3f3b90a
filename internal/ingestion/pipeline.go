// Package ingestion loads sushi documentation from local files or URLs,
// splits it into chunks, embeds each chunk, and upserts the results into the
// vector store. A manifest of content hashes lets repeated runs skip sources
// that have not changed. It is invoked by the `sushi-rag ingest` command.
package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/54b3r/sushi-rag/internal/rag"
	"github.com/54b3r/sushi-rag/internal/store"
)

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// Collection names the vector store collection; it keys manifest entries.
	Collection string

	// ChunkSize is the maximum number of characters per chunk.
	// Defaults to 1000 if zero.
	ChunkSize int

	// ChunkOverlap is the number of characters shared by consecutive chunks.
	// Defaults to 200 if negative or not smaller than ChunkSize.
	ChunkOverlap int

	// BatchSize is the number of chunks embedded per request. Defaults to 64.
	BatchSize int

	// Force re-ingests sources even when the manifest hash matches.
	Force bool

	// HTTPTimeout is the timeout for each URL fetch. Defaults to 30s.
	HTTPTimeout time.Duration

	// UserAgent is sent with URL fetch requests.
	UserAgent string
}

// Report summarises one Ingest call.
type Report struct {
	// Ingested counts sources written to the store.
	Ingested int
	// Skipped counts sources left untouched because their hash matched.
	Skipped int
	// Chunks counts chunks upserted across all ingested sources.
	Chunks int
	// Pruned counts stale chunks deleted after a source shrank.
	Pruned int
}

// Pipeline orchestrates the split → embed → upsert flow for loaded documents.
type Pipeline struct {
	// embedder converts chunk text into dense vectors.
	embedder rag.Embedder

	// store persists the embedded chunks.
	store rag.VectorStore

	// manifest records what has been ingested. Nil disables skipping.
	manifest store.Manifest

	// cfg holds the resolved pipeline configuration.
	cfg *Config

	// httpClient fetches URL sources.
	httpClient *http.Client

	// log receives per-source progress.
	log *slog.Logger

	// collectionReady is set once EnsureCollection has succeeded.
	collectionReady bool
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
// manifest may be nil. A nil logger discards output.
func NewPipeline(embedder rag.Embedder, vs rag.VectorStore, manifest store.Manifest, cfg *Config, log *slog.Logger) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if vs == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("ingestion: collection must not be empty")
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = min(200, cfg.ChunkSize/5)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "sushi-rag/1.0 (knowledge base ingestion)"
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Pipeline{
		embedder: embedder,
		store:    vs,
		manifest: manifest,
		cfg:      cfg,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		log: log,
	}, nil
}

// Ingest splits, embeds and stores every document in order. It stops at the
// first error; sources already written stay recorded in the manifest.
func (p *Pipeline) Ingest(ctx context.Context, docs []Document) (Report, error) {
	var rep Report
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if doc.Text == "" {
			p.log.Warn("skipping empty document", "source", doc.Source)
			rep.Skipped++
			continue
		}

		hash := hashContent(doc.Text)
		prev, seen, err := p.lookup(ctx, doc.Source)
		if err != nil {
			return rep, err
		}
		if seen && prev.Hash == hash && !p.cfg.Force {
			p.log.Info("source unchanged, skipping", "source", doc.Source, "chunks", prev.Chunks)
			rep.Skipped++
			continue
		}

		n, err := p.ingestOne(ctx, doc)
		if err != nil {
			return rep, fmt.Errorf("ingestion: %s: %w", doc.Source, err)
		}

		if seen && prev.Chunks > n {
			stale := make([]string, 0, prev.Chunks-n)
			for i := n; i < prev.Chunks; i++ {
				stale = append(stale, chunkID(doc.Source, i))
			}
			if err := p.store.Delete(ctx, stale); err != nil {
				return rep, fmt.Errorf("ingestion: pruning %s: %w", doc.Source, err)
			}
			rep.Pruned += len(stale)
		}

		if p.manifest != nil {
			entry := store.Entry{Source: doc.Source, Collection: p.cfg.Collection, Hash: hash, Chunks: n}
			if err := p.manifest.Record(ctx, entry); err != nil {
				return rep, fmt.Errorf("ingestion: %w", err)
			}
		}

		p.log.Info("ingested source", "source", doc.Source, "chunks", n)
		rep.Ingested++
		rep.Chunks += n
	}
	return rep, nil
}

// ingestOne splits, embeds and upserts a single document, returning the
// number of chunks written.
func (p *Pipeline) ingestOne(ctx context.Context, doc Document) (int, error) {
	texts, err := p.split(doc)
	if err != nil {
		return 0, fmt.Errorf("splitting: %w", err)
	}
	if len(texts) == 0 {
		return 0, nil
	}

	meta := InferMetadata(doc.Source, doc.Text)
	if doc.Title != "" {
		meta.Title = doc.Title
	}
	if doc.Topic != "" {
		meta.Topic = doc.Topic
	}

	for start := 0; start < len(texts); start += p.cfg.BatchSize {
		end := min(start+p.cfg.BatchSize, len(texts))

		embeddings, err := p.embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return 0, fmt.Errorf("embedding: %w", err)
		}
		if len(embeddings) != end-start {
			return 0, fmt.Errorf("embedding: expected %d vectors, got %d", end-start, len(embeddings))
		}
		if err := p.ensureCollection(ctx, embeddings); err != nil {
			return 0, err
		}

		chunks := make([]rag.Chunk, 0, end-start)
		for i := start; i < end; i++ {
			chunks = append(chunks, rag.Chunk{
				ID:       chunkID(doc.Source, i),
				Content:  texts[i],
				Metadata: chunkMetadata(doc.Source, meta, i),
			})
		}
		if err := p.store.Upsert(ctx, chunks, embeddings); err != nil {
			return 0, fmt.Errorf("upsert: %w", err)
		}
	}
	return len(texts), nil
}

// ensureCollection creates the collection on the first batch, sized to the
// embedder's output dimension.
func (p *Pipeline) ensureCollection(ctx context.Context, embeddings [][]float32) error {
	if p.collectionReady {
		return nil
	}
	dim := len(embeddings[0])
	if dim == 0 {
		return fmt.Errorf("embedding: embedder returned zero-length vectors")
	}
	if err := p.store.EnsureCollection(ctx, uint64(dim)); err != nil {
		return err
	}
	p.collectionReady = true
	return nil
}

func (p *Pipeline) lookup(ctx context.Context, source string) (store.Entry, bool, error) {
	if p.manifest == nil {
		return store.Entry{}, false, nil
	}
	e, ok, err := p.manifest.Lookup(ctx, p.cfg.Collection, source)
	if err != nil {
		return store.Entry{}, false, fmt.Errorf("ingestion: %w", err)
	}
	return e, ok, nil
}

// split chooses the heading-aware splitter for markdown and the recursive
// character splitter for everything else.
func (p *Pipeline) split(doc Document) ([]string, error) {
	opts := []textsplitter.Option{
		textsplitter.WithChunkSize(p.cfg.ChunkSize),
		textsplitter.WithChunkOverlap(p.cfg.ChunkOverlap),
	}
	var splitter textsplitter.TextSplitter
	if doc.Markdown {
		splitter = textsplitter.NewMarkdownTextSplitter(append(opts, textsplitter.WithHeadingHierarchy(true))...)
	} else {
		splitter = textsplitter.NewRecursiveCharacter(opts...)
	}

	parts, err := splitter.SplitText(doc.Text)
	if err != nil {
		return nil, err
	}
	out := parts[:0]
	for _, s := range parts {
		if s = normalizeText(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// chunkMetadata builds the payload stored with each chunk.
func chunkMetadata(source string, meta InferredMetadata, index int) map[string]any {
	m := map[string]any{
		"source":      source,
		"chunk_index": index,
	}
	if meta.Title != "" {
		m["title"] = meta.Title
	}
	if meta.Topic != "" {
		m["topic"] = meta.Topic
	}
	return m
}

// chunkNamespace scopes chunk ids so they cannot collide with other UUIDv5 users.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/54b3r/sushi-rag/chunk"))

// chunkID generates a deterministic UUIDv5 for a chunk from its source and
// index, so re-ingesting a source overwrites its previous points.
func chunkID(source string, index int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(source+"#"+strconv.Itoa(index))).String()
}

// hashContent returns the hex SHA-256 of text.
func hashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
