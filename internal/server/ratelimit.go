package server

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/sushi-rag/internal/logging"
)

// Per-client defaults for /mcp when Config leaves them zero.
const (
	defaultRateLimit = 10
	defaultRateBurst = 20
)

const (
	// clientTTL is how long an idle client keeps its bucket.
	clientTTL = 5 * time.Minute
	// sweepEvery is the eviction interval.
	sweepEvery = time.Minute
)

type client struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps one token bucket per client IP.
type rateLimiter struct {
	mu      sync.Mutex
	clients map[string]*client
	limit   rate.Limit
	burst   int
	// onReject, when set, is called for every 429.
	onReject func()
}

// newRateLimiter starts the eviction loop; the returned func stops it and is
// safe to call more than once.
func newRateLimiter(rps float64, burst int) (*rateLimiter, func()) {
	rl := &rateLimiter{
		clients: make(map[string]*client),
		limit:   rate.Limit(rps),
		burst:   burst,
	}

	done := make(chan struct{})
	go func() {
		t := time.NewTicker(sweepEvery)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case now := <-t.C:
				rl.sweep(now)
			}
		}
	}()

	var once sync.Once
	return rl, func() { once.Do(func() { close(done) }) }
}

func (rl *rateLimiter) bucket(ip string, now time.Time) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.clients[ip]
	if !ok {
		c = &client{bucket: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[ip] = c
	}
	c.lastSeen = now
	return c.bucket
}

// sweep drops clients idle for longer than clientTTL.
func (rl *rateLimiter) sweep(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, c := range rl.clients {
		if now.Sub(c.lastSeen) > clientTTL {
			delete(rl.clients, ip)
		}
	}
}

// tracked returns the number of clients currently holding a bucket.
func (rl *rateLimiter) tracked() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// middleware answers 429 once a client exhausts its bucket. Retry-After is
// the whole number of seconds until the next token.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		now := time.Now()

		res := rl.bucket(ip, now).ReserveN(now, 1)
		if !res.OK() {
			rl.reject(w, r, ip, time.Second)
			return
		}
		if wait := res.DelayFrom(now); wait > 0 {
			res.CancelAt(now)
			rl.reject(w, r, ip, wait)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *rateLimiter) reject(w http.ResponseWriter, r *http.Request, ip string, wait time.Duration) {
	if rl.onReject != nil {
		rl.onReject()
	}
	secs := max(1, int(math.Ceil(wait.Seconds())))
	logging.FromContext(r.Context()).Warn("rate limit exceeded",
		slog.String("ip", ip),
		slog.Int("retry_after_s", secs),
	)
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
}

// clientIP is the remote address without its port. X-Forwarded-For is
// ignored because the server is not meant to sit behind a trusted proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
