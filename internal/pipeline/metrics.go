// internal/pipeline/metrics.go
package pipeline

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "intelvault",
		Subsystem: "pipeline",
		Name:      "queue_depth",
		Help:      "Tasks queued but not yet claimed, per queue.",
	}, []string{"queue"})

	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intelvault",
		Subsystem: "pipeline",
		Name:      "fetches_total",
		Help:      "Remote catalog fetches by role and outcome.",
	}, []string{"role", "outcome"})

	cacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "intelvault",
		Subsystem: "pipeline",
		Name:      "cache_hits_total",
		Help:      "Fetches avoided because the artifact already existed on disk.",
	}, []string{"role"})
)

// MetricsHandler exposes the pipeline metrics in Prometheus text format.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// ServeMetrics serves MetricsHandler on addr for the lifetime of the process.
// Run failures are logged, not fatal: a run without scraping still works.
func ServeMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler())

	logger.Info("serving metrics", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil { // #nosec G114 - scrape endpoint
		logger.Error("metrics endpoint stopped", zap.Error(err))
	}
}
