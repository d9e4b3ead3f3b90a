// Package pipeline composes the retrieval-augmented answer chain: retrieve
// context for a question, fill the chef prompt, call the chat model and
// return its text.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync/atomic"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/sushi-rag/internal/rag"
)

// systemPrompt instructs grounded answering. {context} is filled with the
// retrieved chunks.
const systemPrompt = "You are a knowledgeable sushi chef and expert. " +
	"Use the following retrieved context to answer the question accurately. " +
	"If you are unsure or the context doesn't cover the question, say so clearly.\n\n{context}"

// contextSeparator joins retrieved chunks into one context block.
const contextSeparator = "\n\n"

// Retriever fetches the chunks a pipeline uses as context.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]rag.Chunk, error)
}

// Pipeline answers a question end to end.
type Pipeline interface {
	Invoke(ctx context.Context, question string) (string, error)
}

// runnable adapts a compiled eino chain to Pipeline.
type runnable struct {
	r compose.Runnable[string, string]
}

func (p *runnable) Invoke(ctx context.Context, question string) (string, error) {
	out, err := p.r.Invoke(ctx, question)
	if err != nil {
		return "", fmt.Errorf("pipeline: %w", nodeCause(err))
	}
	return out, nil
}

// einoPkg prefixes the import path of every eino package.
const einoPkg = "github.com/cloudwego/eino/"

// nodeCause strips the graph and node run wrappers eino puts around a
// failing node. Their Error text carries a multi-line node path trace that
// must not reach tool results.
func nodeCause(err error) error {
	for {
		t := reflect.TypeOf(err)
		for t != nil && t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if t == nil || !strings.HasPrefix(t.PkgPath(), einoPkg) {
			return err
		}
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

// Build compiles a chain retrieving k chunks per question.
func Build(ctx context.Context, retriever Retriever, chatModel model.BaseChatModel, k int) (Pipeline, error) {
	if retriever == nil || chatModel == nil {
		return nil, fmt.Errorf("pipeline: retriever and chat model are required")
	}
	if k <= 0 {
		return nil, fmt.Errorf("pipeline: k must be positive, got %d", k)
	}

	retrieve := compose.InvokableLambda(func(ctx context.Context, question string) (string, error) {
		chunks, err := retriever.Retrieve(ctx, question, k)
		if err != nil {
			return "", err
		}
		return joinContents(chunks), nil
	})

	extract := compose.InvokableLambda(func(_ context.Context, msg *schema.Message) (string, error) {
		if msg == nil {
			return "", nil
		}
		return msg.Content, nil
	})

	template := prompt.FromMessages(schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("{question}"),
	)

	chain := compose.NewChain[string, string]()
	chain.
		AppendParallel(compose.NewParallel().
			AddLambda("context", retrieve).
			AddPassthrough("question")).
		AppendChatTemplate(template).
		AppendChatModel(chatModel).
		AppendLambda(extract)

	r, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("pipeline: compile: %w", err)
	}
	return &runnable{r: r}, nil
}

func joinContents(chunks []rag.Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Content
	}
	return strings.Join(parts, contextSeparator)
}

// BuildFunc matches Build; Cache takes one so tests can count builds.
type BuildFunc func(ctx context.Context, retriever Retriever, chatModel model.BaseChatModel, k int) (Pipeline, error)

// Cache holds the default-width pipeline built once at startup and builds
// throwaway pipelines for any other width.
type Cache struct {
	// retriever and chatModel are shared by every pipeline built.
	retriever Retriever
	chatModel model.BaseChatModel

	// defaultK is the width of the cached pipeline.
	defaultK int
	// def is the cached pipeline.
	def Pipeline

	build  BuildFunc
	builds atomic.Int64
	// buildCounter mirrors builds when metrics are registered.
	buildCounter prometheus.Counter
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithBuildFunc replaces Build.
func WithBuildFunc(fn BuildFunc) CacheOption {
	return func(c *Cache) { c.build = fn }
}

// WithBuildCounter counts every pipeline construction on counter.
func WithBuildCounter(counter prometheus.Counter) CacheOption {
	return func(c *Cache) { c.buildCounter = counter }
}

// NewCache builds the default-width pipeline immediately.
func NewCache(ctx context.Context, retriever Retriever, chatModel model.BaseChatModel, defaultK int, opts ...CacheOption) (*Cache, error) {
	c := &Cache{retriever: retriever, chatModel: chatModel, defaultK: defaultK, build: Build}
	for _, opt := range opts {
		opt(c)
	}
	def, err := c.construct(ctx, defaultK)
	if err != nil {
		return nil, err
	}
	c.def = def
	return c, nil
}

// For returns the cached pipeline when k equals the default width and a
// freshly built, uncached one otherwise.
func (c *Cache) For(ctx context.Context, k int) (Pipeline, error) {
	if k == c.defaultK {
		return c.def, nil
	}
	return c.construct(ctx, k)
}

// DefaultK is the width of the cached pipeline.
func (c *Cache) DefaultK() int { return c.defaultK }

// Builds reports how many pipelines this cache has constructed.
func (c *Cache) Builds() int64 { return c.builds.Load() }

func (c *Cache) construct(ctx context.Context, k int) (Pipeline, error) {
	p, err := c.build(ctx, c.retriever, c.chatModel, k)
	if err != nil {
		return nil, err
	}
	c.builds.Add(1)
	if c.buildCounter != nil {
		c.buildCounter.Inc()
	}
	return p, nil
}
