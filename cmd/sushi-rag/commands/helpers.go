package commands

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/54b3r/sushi-rag/internal/store"
)

// manifestDisabled is the SUSHI_MANIFEST_DB value that turns the manifest off.
const manifestDisabled = "disabled"

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// openManifest opens the ingestion manifest named by path, falling back to
// SUSHI_MANIFEST_DB and then ~/.sushi-rag/manifest.db. It returns nil when
// the manifest is disabled or cannot be opened; ingestion then re-embeds
// every source.
func openManifest(log *slog.Logger, path string) store.Manifest {
	if path == "" {
		path = strings.TrimSpace(os.Getenv("SUSHI_MANIFEST_DB"))
	}
	if path == manifestDisabled {
		log.Info("manifest: disabled, every source will be re-ingested")
		return nil
	}
	if path == "" {
		var err error
		if path, err = store.DefaultDBPath(); err != nil {
			log.Warn("manifest: could not resolve default path, disabling", slog.Any("error", err))
			return nil
		}
	}
	m, err := store.Open(path)
	if err != nil {
		log.Warn("manifest: failed to open, disabling", slog.String("path", path), slog.Any("error", err))
		return nil
	}
	log.Info("manifest: opened", slog.String("path", path))
	return m
}
