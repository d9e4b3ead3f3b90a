package rag

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// scrollPageSize bounds the number of points fetched per Scroll round trip
// during a metadata scan.
const scrollPageSize = 256

// contentKey is the payload key holding chunk text. Every other payload key
// is exposed as chunk metadata.
const contentKey = "content"

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// PoolSize is the number of gRPC connections. Zero uses the client default.
	PoolSize uint

	// SkipCompatibilityCheck skips the server version check made on connect.
	SkipCompatibilityCheck bool
}

// QdrantStore implements VectorStore backed by a Qdrant instance.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg QdrantConfig
}

// NewQdrantStore connects to Qdrant. The collection is not checked or
// created here: a missing collection surfaces as ErrCollectionNotFound on
// first use, and ingestion calls EnsureCollection explicitly.
func NewQdrantStore(cfg QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant: collection name must not be empty")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:                   cfg.Host,
		Port:                   cfg.Port,
		APIKey:                 cfg.APIKey,
		UseTLS:                 cfg.UseTLS,
		PoolSize:               cfg.PoolSize,
		SkipCompatibilityCheck: cfg.SkipCompatibilityCheck,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	return &QdrantStore{client: client, cfg: cfg}, nil
}

// Collection returns the collection name this store reads and writes.
func (s *QdrantStore) Collection() string {
	return s.cfg.Collection
}

// Ping checks that the Qdrant server is reachable.
func (s *QdrantStore) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// EnsureCollection creates the collection with cosine distance if it does
// not already exist.
func (s *QdrantStore) EnsureCollection(ctx context.Context, vectorSize uint64) error {
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	return nil
}

// Upsert stores or updates a batch of chunks with their embeddings.
func (s *QdrantStore) Upsert(ctx context.Context, chunks []Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("qdrant: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, c := range chunks {
		payload := make(map[string]any, len(c.Metadata)+1)
		for k, v := range c.Metadata {
			payload[k] = v
		}
		payload[contentKey] = c.Content

		values, err := qdrant.TryValueMap(payload)
		if err != nil {
			return fmt.Errorf("qdrant: payload for chunk %s: %w", c.ID, err)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(c.ID),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: values,
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return s.wrap("upsert", err)
	}

	return nil
}

// Delete removes points by id and waits for the operation to be applied.
func (s *QdrantStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pids := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pids[i] = qdrant.NewIDUUID(id)
	}
	wait := true
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Wait:           &wait,
		Points:         qdrant.NewPointsSelectorIDs(pids),
	})
	if err != nil {
		return s.wrap("delete", err)
	}
	return nil
}

// Search performs a cosine similarity search and returns the top-k results.
func (s *QdrantStore) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]ScoredChunk, error) {
	limit := uint64(topK)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, s.wrap("search", err)
	}

	out := make([]ScoredChunk, 0, len(results))
	for _, r := range results {
		content, meta := splitPayload(r.GetPayload())
		out = append(out, ScoredChunk{
			Chunk: Chunk{
				ID:       pointID(r.GetId()),
				Content:  content,
				Metadata: meta,
			},
			Score: clampScore(float64(r.GetScore())),
		})
	}

	return out, nil
}

// Metadata pages through the whole collection with Scroll, fetching payloads
// only, and returns the metadata of every point.
func (s *QdrantStore) Metadata(ctx context.Context) ([]map[string]any, error) {
	var (
		out    []map[string]any
		offset *qdrant.PointId
	)
	limit := uint32(scrollPageSize)
	for {
		points, next, err := s.client.ScrollAndOffset(ctx, &qdrant.ScrollPoints{
			CollectionName: s.cfg.Collection,
			Offset:         offset,
			Limit:          &limit,
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(false),
		})
		if err != nil {
			return nil, s.wrap("scroll", err)
		}
		for _, p := range points {
			_, meta := splitPayload(p.GetPayload())
			out = append(out, meta)
		}
		if next == nil {
			return out, nil
		}
		offset = next
	}
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (uint64, error) {
	exact := true
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Exact:          &exact,
	})
	if err != nil {
		return 0, s.wrap("count", err)
	}
	return n, nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// wrap annotates a Qdrant error with the operation name and, when the server
// reports NotFound, with ErrCollectionNotFound.
func (s *QdrantStore) wrap(op string, err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("qdrant: %s on %q: %w: %w", op, s.cfg.Collection, ErrCollectionNotFound, err)
	}
	return fmt.Errorf("qdrant: %s failed: %w", op, err)
}

// splitPayload separates chunk text from the remaining scalar payload values.
func splitPayload(p map[string]*qdrant.Value) (string, map[string]any) {
	meta := make(map[string]any, len(p))
	var content string
	for k, v := range p {
		if k == contentKey {
			content = v.GetStringValue()
			continue
		}
		if val, ok := scalarValue(v); ok {
			meta[k] = val
		}
	}
	return content, meta
}

// scalarValue converts a Qdrant payload value into a Go scalar. Lists,
// structs and nulls are not carried as chunk metadata.
func scalarValue(v *qdrant.Value) (any, bool) {
	switch k := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return k.StringValue, true
	case *qdrant.Value_IntegerValue:
		return k.IntegerValue, true
	case *qdrant.Value_DoubleValue:
		return k.DoubleValue, true
	case *qdrant.Value_BoolValue:
		return k.BoolValue, true
	default:
		return nil, false
	}
}

// pointID renders a point id as a string regardless of its UUID or numeric form.
func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return fmt.Sprintf("%d", id.GetNum())
}

// clampScore keeps similarity scores inside [0, 1].
func clampScore(s float64) float64 {
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	default:
		return s
	}
}

var _ VectorStore = (*QdrantStore)(nil)

