package server

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func postMCP(s *Server, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.RemoteAddr = remote
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestMCPRateLimit_BurstThen429(t *testing.T) {
	t.Parallel()

	// A near-zero refill rate makes the burst the whole budget.
	s := newRoutedServer(t, &Config{RateLimit: 0.001, RateBurst: 2})

	for i := range 2 {
		if w := postMCP(s, "10.0.0.1:5000"); w.Code != http.StatusAccepted {
			t.Fatalf("request %d inside the burst: expected 202, got %d", i, w.Code)
		}
	}

	w := postMCP(s, "10.0.0.1:5001")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("over the burst: expected 429, got %d", w.Code)
	}
	secs, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || secs < 1 {
		t.Errorf("Retry-After must be a positive number of seconds, got %q", w.Header().Get("Retry-After"))
	}
	if w.Header().Get("Content-Type") != "application/json" {
		t.Errorf("429 body should be JSON, got %q", w.Header().Get("Content-Type"))
	}
}

func TestMCPRateLimit_PerClient(t *testing.T) {
	t.Parallel()
	s := newRoutedServer(t, &Config{RateLimit: 0.001, RateBurst: 1})

	if w := postMCP(s, "10.0.0.1:5000"); w.Code != http.StatusAccepted {
		t.Fatalf("first client: expected 202, got %d", w.Code)
	}
	if w := postMCP(s, "10.0.0.1:5000"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("first client again: expected 429, got %d", w.Code)
	}
	if w := postMCP(s, "10.0.0.2:5000"); w.Code != http.StatusAccepted {
		t.Errorf("second client must have its own bucket, got %d", w.Code)
	}
}

func TestMCPRateLimit_HealthNotLimited(t *testing.T) {
	t.Parallel()
	s := newRoutedServer(t, &Config{RateLimit: 0.001, RateBurst: 1})

	for i := range 5 {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("health request %d: expected 200, got %d", i, w.Code)
		}
	}
}

func TestRateLimiter_SweepDropsIdleClients(t *testing.T) {
	t.Parallel()

	rl, stop := newRateLimiter(10, 20)
	defer stop()

	now := time.Now()
	rl.bucket("10.0.0.1", now.Add(-2*clientTTL))
	rl.bucket("10.0.0.2", now)

	rl.sweep(now)
	if got := rl.tracked(); got != 1 {
		t.Errorf("expected 1 client after sweep, got %d", got)
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		remote string
		want   string
	}{
		{remote: "192.168.1.9:443", want: "192.168.1.9"},
		{remote: "[::1]:8000", want: "::1"},
		{remote: "unix-socket", want: "unix-socket"},
	}
	for _, tc := range tests {
		req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
		req.RemoteAddr = tc.remote
		req.Header.Set("X-Forwarded-For", "203.0.113.7")
		if got := clientIP(req); got != tc.want {
			t.Errorf("clientIP(%q) = %q, want %q", tc.remote, got, tc.want)
		}
	}
}
