// Package kb implements the knowledge-base operations behind the MCP tools:
// answering questions, semantic search, topic listing and collection stats.
// Every operation catches its own failures and returns the classified
// message as its result text.
package kb

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/54b3r/sushi-rag/internal/errclass"
	"github.com/54b3r/sushi-rag/internal/logging"
	"github.com/54b3r/sushi-rag/internal/params"
	"github.com/54b3r/sushi-rag/internal/pipeline"
	"github.com/54b3r/sushi-rag/internal/rag"
	"github.com/54b3r/sushi-rag/internal/render"
	"github.com/54b3r/sushi-rag/internal/topics"
)

// Tool names.
const (
	ToolQuery  = "sushi_rag_query"
	ToolSearch = "sushi_semantic_search"
	ToolTopics = "sushi_list_topics"
)

// Progress receives progress updates for a long-running call.
type Progress interface {
	Report(ctx context.Context, progress float64, message string)
}

// NopProgress discards updates.
type NopProgress struct{}

// Report implements Progress.
func (NopProgress) Report(context.Context, float64, string) {}

// Retriever is the retrieval surface the service needs.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]rag.Chunk, error)
	RetrieveScored(ctx context.Context, query string, k int) ([]rag.ScoredChunk, error)
}

// Pipelines hands out answer pipelines by retrieval width.
type Pipelines interface {
	For(ctx context.Context, k int) (pipeline.Pipeline, error)
}

// Counter is a transient store handle used for stats.
type Counter interface {
	Count(ctx context.Context) (uint64, error)
	Close() error
}

// CounterOpener opens a fresh store handle for one stats read.
type CounterOpener func(ctx context.Context) (Counter, error)

// StoreInfo describes the vector store for the stats resource.
type StoreInfo struct {
	// Collection is the collection name.
	Collection string
	// Host is the store host.
	Host string
	// Port is the store port.
	Port int
}

// Config wires a Service.
type Config struct {
	// Retriever serves search and source retrieval.
	Retriever Retriever
	// Pipelines serves answer pipelines.
	Pipelines Pipelines
	// Scanner serves topic listing.
	Scanner topics.MetadataScanner
	// OpenCounter opens the transient stats handle.
	OpenCounter CounterOpener
	// Store describes the vector store.
	Store StoreInfo
	// Classifier maps failures onto messages. Defaults to one for Store.Collection.
	Classifier *errclass.Classifier
	// Metrics is optional.
	Metrics *Metrics
}

// Service runs the knowledge-base operations. It is safe for concurrent use.
type Service struct {
	cfg Config
}

// New constructs a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Retriever == nil || cfg.Pipelines == nil || cfg.Scanner == nil {
		return nil, fmt.Errorf("kb: retriever, pipelines and scanner are required")
	}
	if cfg.Classifier == nil {
		cfg.Classifier = &errclass.Classifier{Collection: cfg.Store.Collection}
	}
	return &Service{cfg: cfg}, nil
}

// Query answers a question with the retrieval-augmented pipeline. When
// sources are requested they come from a second, independent retrieval with
// the same width.
func (s *Service) Query(ctx context.Context, in params.QueryInput, progress Progress) string {
	return s.run(ctx, ToolQuery, func(ctx context.Context) (string, error) {
		progress.Report(ctx, 0.1, "Retrieving relevant documents...")
		p, err := s.cfg.Pipelines.For(ctx, in.KDocs)
		if err != nil {
			return "", err
		}

		progress.Report(ctx, 0.4, "Generating answer...")
		answer, err := p.Invoke(ctx, in.Question)
		if err != nil {
			return "", err
		}

		var sources []rag.Chunk
		if in.IncludeSources {
			sources, err = s.cfg.Retriever.Retrieve(ctx, in.Question, in.KDocs)
			if err != nil {
				return "", err
			}
		}

		progress.Report(ctx, 1.0, "Done")
		return render.Answer(in.Question, answer, sources, in.IncludeSources, in.ResponseFormat)
	})
}

// Search returns the chunks most similar to the query, optionally filtered by
// a minimum score.
func (s *Service) Search(ctx context.Context, in params.SearchInput, progress Progress) string {
	return s.run(ctx, ToolSearch, func(ctx context.Context) (string, error) {
		progress.Report(ctx, 0.2, "Running semantic search...")
		results, err := s.cfg.Retriever.RetrieveScored(ctx, in.Query, in.K)
		if err != nil {
			return "", err
		}
		results = rag.FilterByScore(results, in.ScoreThreshold)

		progress.Report(ctx, 1.0, "Done")
		return render.Search(in.Query, results, in.ResponseFormat)
	})
}

// ListTopics returns the distinct source/title/topic labels.
func (s *Service) ListTopics(ctx context.Context, in params.TopicsInput) string {
	return s.run(ctx, ToolTopics, func(ctx context.Context) (string, error) {
		report, err := topics.List(ctx, s.cfg.Scanner, in.Limit)
		if err != nil {
			return "", err
		}
		return render.Topics(report)
	})
}

// Stats counts the collection through a freshly opened store handle and
// renders the stats JSON, or {"error": ...} on failure.
func (s *Service) Stats(ctx context.Context) string {
	body, err := s.stats(ctx)
	if err != nil {
		logging.FromContext(ctx).Warn("kb: stats lookup failed", slog.Any("error", err))
		return render.StatsError(err)
	}
	return body
}

func (s *Service) stats(ctx context.Context) (string, error) {
	if s.cfg.OpenCounter == nil {
		return "", fmt.Errorf("kb: stats store not configured")
	}
	c, err := s.cfg.OpenCounter(ctx)
	if err != nil {
		return "", err
	}
	defer c.Close()

	n, err := c.Count(ctx)
	if err != nil {
		return "", err
	}
	return render.StatsJSON(render.Stats{
		Collection:     s.cfg.Store.Collection,
		Host:           s.cfg.Store.Host,
		Port:           s.cfg.Store.Port,
		DocumentChunks: n,
	})
}

// run times fn, records its outcome, and converts any failure into the
// classified message.
func (s *Service) run(ctx context.Context, tool string, fn func(context.Context) (string, error)) string {
	log := logging.FromContext(ctx).With(slog.String("tool", tool))
	start := time.Now()

	out, err := fn(ctx)

	outcome := outcomeOK
	if err != nil {
		outcome = outcomeError
		classified := s.cfg.Classifier.Classify(err)
		log.Error("kb: tool call failed",
			slog.String("kind", string(classified.Kind)),
			slog.Any("error", err),
		)
		out = classified.Message()
	} else {
		log.Debug("kb: tool call completed", slog.Duration("duration", time.Since(start)))
	}

	if m := s.cfg.Metrics; m != nil {
		m.CallsTotal.WithLabelValues(tool, outcome).Inc()
		m.DurationSeconds.WithLabelValues(tool).Observe(time.Since(start).Seconds())
	}
	return out
}
