package conversation

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for conversation memory.
type Metrics struct {
	CacheEntries   prometheus.Gauge
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheEvictions prometheus.Counter
	StoreErrors    *prometheus.CounterVec
	Reprocessings  *prometheus.CounterVec
}

// NewMetrics registers the conversation metrics once per process.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			CacheEntries: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "expertd_conversation_cache_entries",
				Help: "Conversations held in the in-memory cache",
			}),
			CacheHits: promauto.NewCounter(prometheus.CounterOpts{
				Name: "expertd_conversation_cache_hits_total",
				Help: "Conversation lookups served from the cache",
			}),
			CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
				Name: "expertd_conversation_cache_misses_total",
				Help: "Conversation lookups that went to the store",
			}),
			CacheEvictions: promauto.NewCounter(prometheus.CounterOpts{
				Name: "expertd_conversation_cache_evictions_total",
				Help: "Conversations evicted from the cache",
			}),
			StoreErrors: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "expertd_conversation_store_errors_total",
					Help: "Conversation store failures by operation",
				},
				[]string{"operation"}, // load, save, delete, purge
			),
			Reprocessings: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "expertd_conversation_reprocessings_total",
					Help: "Original-question reprocessing attempts by status",
				},
				[]string{"status"},
			),
		}
	})
	return globalMetrics
}
