package prometheus

import (
	"time"

	"github.com/marmos91/dittofiles/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// gcMetrics is the Prometheus implementation of metrics.GCMetrics.
type gcMetrics struct {
	runsTotal    *prometheus.CounterVec
	runDuration  prometheus.Histogram
	orphansFound prometheus.Counter
	missingFiles prometheus.Gauge
}

// NewGCMetrics creates a new Prometheus-backed GCMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewGCMetrics() metrics.GCMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopGCMetrics()
	}

	reg := metrics.GetRegistry()

	return &gcMetrics{
		runsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittofiles_gc_runs_total",
				Help: "Total number of garbage collection runs by status",
			},
			[]string{"status"},
		),
		runDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dittofiles_gc_run_duration_seconds",
				Help:    "Duration of garbage collection runs in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
		),
		orphansFound: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittofiles_gc_orphans_total",
				Help: "Total unreferenced files found by garbage collection",
			},
		),
		missingFiles: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "dittofiles_gc_missing_files",
				Help: "Records whose bytes were missing on disk at the last run",
			},
		),
	}
}

func (m *gcMetrics) RecordRun(duration time.Duration, orphans, missing int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.runsTotal.WithLabelValues(status).Inc()
	m.runDuration.Observe(duration.Seconds())
	m.orphansFound.Add(float64(orphans))
	m.missingFiles.Set(float64(missing))
}
