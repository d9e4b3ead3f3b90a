package server

import (
	"context"
	"fmt"
)

// healthChecker is satisfied by *rag.QdrantStore.
type healthChecker interface {
	Ping(ctx context.Context) error
}

// QdrantPinger checks the vector store using its native HealthCheck RPC.
// It satisfies the Pinger interface and is used by GET /api/ready.
type QdrantPinger struct {
	// store is the vector store to check.
	store healthChecker
}

// NewQdrantPinger constructs a QdrantPinger for the given store.
func NewQdrantPinger(store healthChecker) *QdrantPinger {
	return &QdrantPinger{store: store}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping returns nil if Qdrant is reachable, or a descriptive error otherwise.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	if err := p.store.Ping(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// CollectionPinger reports the collection as ready only when it holds at
// least one chunk, so a server started before ingestion reports not-ready.
type CollectionPinger struct {
	// counter counts chunks in the collection.
	counter interface {
		Count(ctx context.Context) (uint64, error)
	}
}

// NewCollectionPinger constructs a CollectionPinger.
func NewCollectionPinger(counter interface {
	Count(ctx context.Context) (uint64, error)
}) *CollectionPinger {
	return &CollectionPinger{counter: counter}
}

// Name returns the dependency label used in readiness responses.
func (p *CollectionPinger) Name() string { return "collection" }

// Ping fails when the collection is missing or empty.
func (p *CollectionPinger) Ping(ctx context.Context) error {
	n, err := p.counter.Count(ctx)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("collection is empty, run ingestion first")
	}
	return nil
}
