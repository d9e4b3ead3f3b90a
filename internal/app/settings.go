package app

import (
	"os"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/sushi-rag/internal/embedder"
	"github.com/54b3r/sushi-rag/internal/params"
	"github.com/54b3r/sushi-rag/internal/provider"
	"github.com/54b3r/sushi-rag/internal/rag"
)

// Defaults for the vector store connection.
const (
	DefaultQdrantHost = "localhost"
	DefaultQdrantPort = 6334
	DefaultCollection = "sushi_menu"
)

// Settings is everything New needs to assemble the shared resources.
type Settings struct {
	// Qdrant is the vector store connection.
	Qdrant rag.QdrantConfig
	// Embedder selects and configures the embedding backend.
	Embedder embedder.Config
	// Provider selects and configures the chat model backend.
	Provider *provider.Config
	// DefaultK is the retrieval width of the pipeline built at startup.
	DefaultK int
	// Registerer receives the knowledge-base metrics. Nil means
	// prometheus.DefaultRegisterer.
	Registerer prometheus.Registerer
}

// SettingsFromEnv reads Settings from the environment.
//
//	QDRANT_HOST        vector store host (default: localhost)
//	QDRANT_PORT        vector store gRPC port (default: 6334)
//	QDRANT_COLLECTION  collection name (default: sushi_menu)
//	QDRANT_API_KEY     optional API key
//	QDRANT_TLS         "true" enables TLS
//
// Embedder and provider variables are documented in their packages.
func SettingsFromEnv() Settings {
	return Settings{
		Qdrant:   QdrantFromEnv(),
		Embedder: embedder.ConfigFromEnv(),
		Provider: provider.ConfigFromEnv(),
		DefaultK: params.DefaultKDocs,
	}
}

// QdrantFromEnv reads the vector store connection from the environment.
func QdrantFromEnv() rag.QdrantConfig {
	return rag.QdrantConfig{
		Host:       getEnvOrDefault("QDRANT_HOST", DefaultQdrantHost),
		Port:       getEnvInt("QDRANT_PORT", DefaultQdrantPort),
		Collection: getEnvOrDefault("QDRANT_COLLECTION", DefaultCollection),
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     strings.EqualFold(os.Getenv("QDRANT_TLS"), "true"),
	}
}

func getEnvOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
