package metrics

import (
	"github.com/marmos91/dittofiles/pkg/metadata/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// cacheMetrics is the Prometheus implementation of cache.CacheMetrics interface.
type cacheMetrics struct {
	lookups *prometheus.CounterVec
	entries prometheus.Gauge
}

// NewCacheMetrics creates a new Prometheus-backed CacheMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called), which
// causes the cache to use the built-in no-op implementation.
func NewCacheMetrics() cache.CacheMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &cacheMetrics{
		lookups: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittofiles_listing_cache_lookups_total",
				Help: "Folder listing cache lookups by result",
			},
			[]string{"result"},
		),
		entries: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "dittofiles_listing_cache_entries",
				Help: "Current number of cached folder listings",
			},
		),
	}
}

// RecordHit implements cache.CacheMetrics.RecordHit
func (m *cacheMetrics) RecordHit() {
	m.lookups.WithLabelValues("hit").Inc()
}

// RecordMiss implements cache.CacheMetrics.RecordMiss
func (m *cacheMetrics) RecordMiss() {
	m.lookups.WithLabelValues("miss").Inc()
}

// SetEntries implements cache.CacheMetrics.SetEntries
func (m *cacheMetrics) SetEntries(n int) {
	m.entries.Set(float64(n))
}
