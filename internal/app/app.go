// Package app assembles the long-lived resources shared by every tool call:
// embedder, vector store, retriever, chat model and the default answer
// pipeline. They are built once at startup and released by Close.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/sushi-rag/internal/embedder"
	"github.com/54b3r/sushi-rag/internal/kb"
	"github.com/54b3r/sushi-rag/internal/logging"
	"github.com/54b3r/sushi-rag/internal/pipeline"
	"github.com/54b3r/sushi-rag/internal/provider"
	"github.com/54b3r/sushi-rag/internal/rag"
)

// App holds the shared resources. Fields are read-only after New.
type App struct {
	// Settings is the configuration App was built from.
	Settings Settings
	// Store is the serving vector store connection.
	Store *rag.QdrantStore
	// Retriever embeds queries and searches Store.
	Retriever *rag.Retriever
	// ChatModel generates answers.
	ChatModel model.BaseChatModel
	// Pipelines holds the default-width pipeline.
	Pipelines *pipeline.Cache
	// Metrics are the knowledge-base metrics.
	Metrics *kb.Metrics
	// Service runs the tool operations.
	Service *kb.Service
}

// New builds every shared resource. The collection is not required to exist
// yet: a missing collection surfaces on first use as an actionable message.
func New(ctx context.Context, s Settings) (*App, error) {
	log := logging.FromContext(ctx)

	if s.DefaultK <= 0 {
		return nil, fmt.Errorf("app: default k must be positive, got %d", s.DefaultK)
	}
	if s.Provider == nil {
		return nil, fmt.Errorf("app: provider config must not be nil")
	}
	reg := s.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	embedder.Preflight(log, s.Embedder)
	emb, err := embedder.New(s.Embedder)
	if err != nil {
		return nil, fmt.Errorf("app: failed to initialise embedder: %w", err)
	}

	store, err := rag.NewQdrantStore(s.Qdrant)
	if err != nil {
		return nil, fmt.Errorf("app: failed to connect to qdrant: %w", err)
	}

	a := &App{Settings: s, Store: store}
	ok := false
	defer func() {
		if !ok {
			_ = store.Close()
		}
	}()

	a.Retriever, err = rag.NewRetriever(emb, store)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	a.ChatModel, err = provider.New(ctx, s.Provider)
	if err != nil {
		return nil, fmt.Errorf("app: failed to initialise model provider: %w", err)
	}

	a.Metrics = kb.NewMetrics(reg)

	a.Pipelines, err = pipeline.NewCache(ctx, a.Retriever, a.ChatModel, s.DefaultK,
		pipeline.WithBuildCounter(a.Metrics.PipelineBuilds))
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	a.Service, err = kb.New(kb.Config{
		Retriever:   a.Retriever,
		Pipelines:   a.Pipelines,
		Scanner:     store,
		OpenCounter: a.openCounter,
		Store: kb.StoreInfo{
			Collection: store.Collection(),
			Host:       s.Qdrant.Host,
			Port:       s.Qdrant.Port,
		},
		Metrics: a.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	log.Info("knowledge base ready",
		slog.String("collection", store.Collection()),
		slog.String("provider", string(s.Provider.Backend)),
		slog.String("model", s.Provider.ModelName()),
		slog.String("embedder", s.Embedder.Backend),
		slog.Int("default_k", s.DefaultK),
	)

	ok = true
	return a, nil
}

// openCounter opens a short-lived store connection for one stats read.
func (a *App) openCounter(context.Context) (kb.Counter, error) {
	cfg := a.Settings.Qdrant
	cfg.PoolSize = 1
	cfg.SkipCompatibilityCheck = true
	st, err := rag.NewQdrantStore(cfg)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Close releases the vector store connection.
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	return a.Store.Close()
}
