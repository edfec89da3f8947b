package prometheus

import (
	"time"

	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// engineMetrics is the Prometheus implementation of metrics.EngineMetrics.
type engineMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	dedupLookups      *prometheus.CounterVec
	bytesWritten      prometheus.Counter
	rollbacks         prometheus.Counter
	rollbackOps       prometheus.Counter
}

// NewEngineMetrics creates a new Prometheus-backed EngineMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewEngineMetrics() metrics.EngineMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopEngineMetrics()
	}

	reg := metrics.GetRegistry()

	return &engineMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittofiles_engine_operations_total",
				Help: "Total number of engine operations by operation, status and error kind",
			},
			[]string{"operation", "status", "error_code"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittofiles_engine_operation_duration_milliseconds",
				Help: "Duration of engine operations in milliseconds",
				Buckets: []float64{
					1,     // 1ms
					10,    // 10ms
					100,   // 100ms
					1000,  // 1s
					10000, // 10s
				},
			},
			[]string{"operation"},
		),
		dedupLookups: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittofiles_dedup_lookups_total",
				Help: "Deduplication lookups by result and privacy scope",
			},
			[]string{"result", "scope"},
		),
		bytesWritten: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittofiles_bytes_written_total",
				Help: "Total bytes written to the managed root",
			},
		),
		rollbacks: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittofiles_rollbacks_total",
				Help: "Total aborted transactions that touched the engine",
			},
		),
		rollbackOps: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittofiles_rollback_operations_total",
				Help: "Total file operations undone by aborted transactions",
			},
		),
	}
}

func (m *engineMetrics) RecordOperation(operation string, duration time.Duration, err error) {
	status, code := "success", ""
	if err != nil {
		status = "error"
		if c, ok := metadata.ErrorCodeOf(err); ok {
			code = c.String()
		} else {
			code = "internal"
		}
	}

	m.operationsTotal.WithLabelValues(operation, status, code).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds() * 1000) // Convert to milliseconds
}

func (m *engineMetrics) RecordDedup(hit bool, isPrivate bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	scope := "public"
	if isPrivate {
		scope = "private"
	}
	m.dedupLookups.WithLabelValues(result, scope).Inc()
}

func (m *engineMetrics) RecordBytesWritten(bytes int64) {
	m.bytesWritten.Add(float64(bytes))
}

func (m *engineMetrics) RecordRollback(ops int) {
	m.rollbacks.Inc()
	m.rollbackOps.Add(float64(ops))
}
