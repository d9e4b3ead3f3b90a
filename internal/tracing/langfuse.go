// Package tracing wires optional Langfuse tracing into the eino callback
// system so every answer pipeline run (retrieval, prompt, chat model) is
// recorded as a trace.
package tracing

import (
	"log/slog"
	"os"
	"strings"

	"github.com/cloudwego/eino-ext/callbacks/langfuse"
	"github.com/cloudwego/eino/callbacks"
)

// DefaultHost is used when LANGFUSE_HOST is unset.
const DefaultHost = "http://localhost:3000"

// Config holds Langfuse credentials.
type Config struct {
	// Host is the Langfuse API base URL.
	Host string
	// PublicKey and SecretKey authenticate the project.
	PublicKey string
	SecretKey string
}

// ConfigFromEnv reads LANGFUSE_HOST, LANGFUSE_PUBLIC_KEY and
// LANGFUSE_SECRET_KEY.
func ConfigFromEnv() Config {
	host := strings.TrimSpace(os.Getenv("LANGFUSE_HOST"))
	if host == "" {
		host = DefaultHost
	}
	return Config{
		Host:      host,
		PublicKey: strings.TrimSpace(os.Getenv("LANGFUSE_PUBLIC_KEY")),
		SecretKey: strings.TrimSpace(os.Getenv("LANGFUSE_SECRET_KEY")),
	}
}

// Enabled reports whether both keys are present.
func (c Config) Enabled() bool {
	return c.PublicKey != "" && c.SecretKey != ""
}

// Setup builds the Langfuse callback handler. The returned flush function
// must be called before process exit so buffered traces are sent. When the
// config is not enabled the handler and flush are nil and ok is false.
func Setup(cfg Config) (handler callbacks.Handler, flush func(), ok bool) {
	if !cfg.Enabled() {
		return nil, nil, false
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}

	handler, flush = langfuse.NewLangfuseHandler(&langfuse.Config{
		Host:      cfg.Host,
		PublicKey: cfg.PublicKey,
		SecretKey: cfg.SecretKey,
	})
	return handler, flush, true
}

// Enable registers the Langfuse handler globally when configured and returns
// its flush function. Without credentials it logs why tracing is off and
// returns a no-op.
func Enable(log *slog.Logger, cfg Config) func() {
	handler, flush, ok := Setup(cfg)
	if !ok {
		log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY or LANGFUSE_SECRET_KEY not set"))
		return func() {}
	}
	callbacks.AppendGlobalHandlers(handler)
	log.Info("langfuse tracing enabled", slog.String("host", cfg.Host))
	return flush
}
