package embedder

import (
	"log/slog"
	"strings"
)

// knownChatModelFragments identify chat/completion models that are not
// suitable for embedding.
var knownChatModelFragments = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama-3",
	"mistral",
	"mixtral",
	"gemma",
	"claude",
	"deepseek",
	"qwen",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat/completion model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	if strings.Contains(lower, "embed") {
		return false
	}
	for _, frag := range knownChatModelFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// Preflight logs warnings for embedding configurations that will start but
// are likely broken. It never fails: a missing key is reported per call.
func Preflight(log *slog.Logger, cfg Config) {
	if cfg.KeyEnv != "" && cfg.APIKey == "" {
		log.Warn("embedder: no API key configured, tool calls will fail until it is set",
			slog.String("backend", cfg.Backend),
			slog.String("env", cfg.KeyEnv),
		)
	}
	if looksLikeChatModel(cfg.Model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model",
			slog.String("model", cfg.Model),
			slog.String("hint", "use a dedicated embedding model e.g. text-embedding-3-small, nomic-embed-text"),
		)
	}
}
