package orchestrator

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for request processing.
type Metrics struct {
	Requests       *prometheus.CounterVec
	TierFailures   *prometheus.CounterVec
	Clarifications prometheus.Counter
	RAGUses        prometheus.Counter
	Duration       *prometheus.HistogramVec
}

// NewMetrics registers the orchestrator metrics once per process.
//
//   - expertd_orchestrator_requests_total{tier}
//   - expertd_orchestrator_tier_failures_total{tier,reason}
//   - expertd_orchestrator_clarifications_total
//   - expertd_orchestrator_rag_uses_total
//   - expertd_orchestrator_request_duration_seconds{tier}
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			Requests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "expertd_orchestrator_requests_total",
					Help: "Processed requests by the tier that answered",
				},
				[]string{"tier"},
			),
			TierFailures: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "expertd_orchestrator_tier_failures_total",
					Help: "Tier attempts that fell through",
				},
				[]string{"tier", "reason"},
			),
			Clarifications: promauto.NewCounter(prometheus.CounterOpts{
				Name: "expertd_orchestrator_clarifications_total",
				Help: "Responses that asked the user for more context",
			}),
			RAGUses: promauto.NewCounter(prometheus.CounterOpts{
				Name: "expertd_orchestrator_rag_uses_total",
				Help: "Responses generated from retrieved documents",
			}),
			Duration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "expertd_orchestrator_request_duration_seconds",
					Help:    "End-to-end request latency",
					Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
				},
				[]string{"tier"},
			),
		}
	})
	return globalMetrics
}

func (m *Metrics) record(a *answer) {
	m.Requests.WithLabelValues(string(a.tier)).Inc()
	if a.clarifies() {
		m.Clarifications.Inc()
	}
	if a.ragUsed {
		m.RAGUses.Inc()
	}
}
