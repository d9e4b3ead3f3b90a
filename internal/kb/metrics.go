package kb

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

// Metrics holds the knowledge-base tool metrics.
type Metrics struct {
	// CallsTotal counts tool calls by tool and outcome.
	CallsTotal *prometheus.CounterVec

	// DurationSeconds records tool call latency by tool.
	DurationSeconds *prometheus.HistogramVec

	// PipelineBuilds counts answer pipeline constructions.
	PipelineBuilds prometheus.Counter
}

// NewMetrics registers the tool metrics against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sushi_rag",
			Subsystem: "tool",
			Name:      "calls_total",
			Help:      "Knowledge-base tool calls, partitioned by tool and outcome.",
		}, []string{"tool", "outcome"}),

		DurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sushi_rag",
			Subsystem: "tool",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of knowledge-base tool calls.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"tool"}),

		PipelineBuilds: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sushi_rag",
			Subsystem: "pipeline",
			Name:      "builds_total",
			Help:      "Answer pipelines constructed, including the default built at startup.",
		}),
	}
}
