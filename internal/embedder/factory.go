package embedder

import (
	"fmt"
	"os"
	"strconv"

	"github.com/54b3r/sushi-rag/internal/rag"
)

// Default embedding models per backend.
const (
	defaultOpenAIModel = "text-embedding-3-small"
	defaultOllamaModel = "nomic-embed-text"

	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	defaultOllamaDimensions = 768
)

// Config is the resolved embedding configuration.
type Config struct {
	// Backend is one of openai, azure, ollama.
	Backend string
	// Model is the embedding model (or Azure deployment) name.
	Model string
	// Dimensions is the vector size used when creating a collection.
	Dimensions int
	// APIKey is the backend credential. Empty is allowed; see KeyEnv.
	APIKey string
	// KeyEnv names the env var that should hold APIKey.
	KeyEnv string
	// Endpoint overrides the backend base URL.
	Endpoint string
	// APIVersion is the Azure OpenAI API version.
	APIVersion string
}

// ConfigFromEnv resolves the embedding configuration from the environment.
//
// Resolution order:
//
//  1. EMBEDDING_PROVIDER, falling back to MODEL_PROVIDER, then openai
//  2. EMBEDDING_MODEL overrides the backend's default model
//  3. EMBEDDING_API_KEY overrides the credential inherited from the chat provider
//  4. EMBEDDING_ENDPOINT overrides the inherited endpoint
//  5. EMBEDDING_DIMENSIONS overrides the default dimensions
func ConfigFromEnv() Config {
	backend := os.Getenv("EMBEDDING_PROVIDER")
	if backend == "" {
		backend = getEnvOrDefault("MODEL_PROVIDER", "openai")
	}
	// Chat-only providers have no embedder here; fall back to OpenAI.
	if backend == "bedrock" || backend == "gemini" {
		backend = "openai"
	}

	cfg := Config{Backend: backend, Endpoint: os.Getenv("EMBEDDING_ENDPOINT")}
	switch backend {
	case "ollama":
		cfg.Model = getEnvOrDefault("EMBEDDING_MODEL", defaultOllamaModel)
		cfg.Dimensions = getEnvInt("EMBEDDING_DIMENSIONS", defaultOllamaDimensions)
		if cfg.Endpoint == "" {
			cfg.Endpoint = getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
		}
	case "azure":
		cfg.Model = getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel)
		cfg.Dimensions = getEnvInt("EMBEDDING_DIMENSIONS", defaultOpenAIDimensions)
		cfg.KeyEnv = "AZURE_OPENAI_API_KEY"
		cfg.APIKey = firstNonEmpty(os.Getenv("EMBEDDING_API_KEY"), os.Getenv(cfg.KeyEnv))
		if cfg.Endpoint == "" {
			cfg.Endpoint = os.Getenv("AZURE_OPENAI_ENDPOINT")
		}
		cfg.APIVersion = getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2025-04-01-preview")
	default:
		cfg.Model = getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel)
		cfg.Dimensions = getEnvInt("EMBEDDING_DIMENSIONS", defaultOpenAIDimensions)
		cfg.KeyEnv = "OPENAI_API_KEY"
		cfg.APIKey = firstNonEmpty(os.Getenv("EMBEDDING_API_KEY"), os.Getenv(cfg.KeyEnv))
		if cfg.Endpoint == "" {
			cfg.Endpoint = "https://api.openai.com/v1"
		}
	}
	return cfg
}

// New constructs a rag.Embedder for cfg. A missing OpenAI or Azure key is not
// an error here: the embedder reports a *rag.CredentialError on each call so
// the server can start and answer with an actionable message.
func New(cfg Config) (rag.Embedder, error) {
	switch cfg.Backend {
	case "ollama":
		return NewOllamaEmbedder(&OllamaConfig{Host: cfg.Endpoint, Model: cfg.Model}), nil

	case "openai":
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint,
			APIKey:     cfg.APIKey,
			KeyEnv:     cfg.KeyEnv,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		}), nil

	case "azure":
		if cfg.Endpoint == "" {
			return nil, fmt.Errorf("embedder: azure requires AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint + "/openai",
			APIKey:     cfg.APIKey,
			KeyEnv:     cfg.KeyEnv,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Azure:      true,
			APIVersion: cfg.APIVersion,
		}), nil

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q (valid: openai, azure, ollama)", cfg.Backend)
	}
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of key, or fallback if it is unset or
// not a positive integer.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return fallback
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
