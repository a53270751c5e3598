package llm

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for text generation.
type Metrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewMetrics registers the generation metrics once per process.
//
//   - expertd_llm_requests_total{generator,outcome}
//   - expertd_llm_request_duration_seconds{generator}
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			Requests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "expertd_llm_requests_total",
					Help: "Text generation calls by outcome",
				},
				[]string{"generator", "outcome"}, // ok, timeout, rate_limited, api_error
			),
			Duration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "expertd_llm_request_duration_seconds",
					Help:    "Text generation latency including retries",
					Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 40},
				},
				[]string{"generator"},
			),
		}
	})
	return globalMetrics
}
