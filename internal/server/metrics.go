package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "sushi_rag"
	metricsSubsystem = "http"

	// labelHandler is the logical endpoint ("mcp", "health", "ready"), never
	// the raw path, to keep cardinality fixed.
	labelHandler = "handler"
)

// Reasons recorded by rejectedTotal.
const (
	rejectAuth      = "auth"
	rejectRateLimit = "rate_limit"
)

// serverMetrics is created per Server so tests can pass their own registry.
type serverMetrics struct {
	requestsTotal   *prometheus.CounterVec
	durationSeconds *prometheus.HistogramVec
	// rejectedTotal counts /mcp requests refused before reaching the MCP
	// handler.
	rejectedTotal *prometheus.CounterVec
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	f := promauto.With(reg)
	return &serverMetrics{
		requestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "requests_total",
			Help:      "HTTP requests by method, handler and status code.",
		}, []string{"method", labelHandler, "code"}),
		durationSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "duration_seconds",
			Help:      "HTTP request latency by method and handler.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
		rejectedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "mcp_rejected_total",
			Help:      "MCP requests refused by authentication or rate limiting.",
		}, []string{"reason"}),
	}
}

// rejected returns a hook that counts refusals for reason.
func (m *serverMetrics) rejected(reason string) func() {
	c := m.rejectedTotal.WithLabelValues(reason)
	return c.Inc
}
