package metrics

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Oracle metrics
	oracleRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "prefforge_oracle_request_duration_seconds",
			Help:    "Oracle scoring request duration in seconds by model",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s to ~100s
		},
		[]string{"model", "status"},
	)

	oracleCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "prefforge_oracle_cache_hits_total",
			Help: "Total number of oracle requests served from the per-run cache",
		},
	)

	// Annotation metrics
	pairsAnnotated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prefforge_pairs_annotated_total",
			Help: "Total number of pairs processed by the annotator",
		},
		[]string{"status"}, // "success", "error", "passthrough"
	)

	annotationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "prefforge_pair_annotation_duration_seconds",
			Help:    "Per-pair annotation duration in seconds (both oracle calls)",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	activeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "prefforge_annotation_active_workers",
			Help: "Number of active annotation workers",
		},
	)
)

// Collector provides convenience methods for recording metrics.
type Collector struct {
	logger *slog.Logger
}

// NewCollector creates a new metrics collector.
func NewCollector(logger *slog.Logger) *Collector {
	return &Collector{logger: logger}
}

// RecordOracleRequest records an oracle request duration.
func (c *Collector) RecordOracleRequest(model string, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	oracleRequestDuration.WithLabelValues(model, status).Observe(duration.Seconds())
}

// RecordCacheHit records a cache-served oracle request.
func (c *Collector) RecordCacheHit() {
	oracleCacheHits.Inc()
}

// RecordPair records the outcome of annotating one pair.
func (c *Collector) RecordPair(status string, duration time.Duration) {
	pairsAnnotated.WithLabelValues(status).Inc()
	if status == "success" {
		annotationDuration.Observe(duration.Seconds())
	}
}

// SetActiveWorkers sets the current worker count.
func (c *Collector) SetActiveWorkers(count int) {
	activeWorkers.Set(float64(count))
}
