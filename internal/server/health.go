package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/54b3r/sushi-rag/internal/logging"
)

// serverName is reported by the health and readiness endpoints.
const serverName = "sushi_rag_mcp"

// checkTimeout bounds each dependency check run by GET /api/ready.
const checkTimeout = 5 * time.Second

// Pinger is a dependency checked by GET /api/ready. Implementations must be
// safe to call from multiple goroutines.
type Pinger interface {
	// Ping returns nil when the dependency is usable.
	Ping(ctx context.Context) error

	// Name labels the check in the readiness body ("qdrant", "collection").
	Name() string
}

// checkResult is one entry of the readiness body.
type checkResult struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type readiness struct {
	Server string        `json:"server"`
	Ready  bool          `json:"ready"`
	Checks []checkResult `json:"checks"`
}

// handleHealth reports liveness only; it never touches dependencies.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok", "server": serverName})
}

// handleReady runs every pinger concurrently and answers 503 if any fails.
// Results keep the registration order.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	results := checkAll(r.Context(), s.pingers)

	body := readiness{Server: serverName, Ready: true, Checks: results}
	for _, res := range results {
		if !res.OK {
			body.Ready = false
			logging.FromContext(r.Context()).Warn("readiness check failed",
				slog.String("dependency", res.Name),
				slog.String("error", res.Error),
			)
		}
	}

	status := http.StatusOK
	if !body.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, body)
}

func checkAll(ctx context.Context, pingers []Pinger) []checkResult {
	results := make([]checkResult, len(pingers))
	var wg sync.WaitGroup
	for i, p := range pingers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()

			start := time.Now()
			err := p.Ping(pctx)
			results[i] = checkResult{Name: p.Name(), OK: err == nil, LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				results[i].Error = err.Error()
			}
		}()
	}
	wg.Wait()
	return results
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("response encode failed", slog.Any("error", err))
	}
}

// writeError sends {"error": msg}.
func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}
