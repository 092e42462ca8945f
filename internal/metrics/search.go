package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Search Prometheus metrics.
var (
	WindowCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docsearch",
			Name:      "window_cache_total",
			Help:      "Candidate window cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	RankingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docsearch",
			Name:      "ranking_duration_seconds",
			Help:      "Time to index and rank a candidate window",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"op"}, // "search" / "suggest"
	)

	RankingWindowSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "docsearch",
			Name:      "ranking_window_documents",
			Help:      "Number of documents in a ranked candidate window",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	BulkItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docsearch",
			Name:      "bulk_items_total",
			Help:      "Bulk upsert items by outcome",
		},
		[]string{"status"}, // "ok" / "error"
	)
)

var registerSearchOnce sync.Once

// RegisterSearchMetrics registers search metrics with the default registry.
// Safe to call more than once.
func RegisterSearchMetrics() {
	registerSearchOnce.Do(func() {
		prometheus.MustRegister(WindowCacheTotal)
		prometheus.MustRegister(RankingDuration)
		prometheus.MustRegister(RankingWindowSize)
		prometheus.MustRegister(BulkItemsTotal)
	})
}
