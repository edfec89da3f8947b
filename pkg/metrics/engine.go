package metrics

import "time"

// EngineMetrics provides observability for file engine operations.
//
// This interface is optional - if not provided to the engine, operations
// proceed without metrics collection (zero overhead).
type EngineMetrics interface {
	// RecordOperation records a completed engine operation.
	//
	// Parameters:
	//   - operation: Operation name (e.g., "Create", "SetPrivate", "Unzip")
	//   - duration: Time taken to complete the operation
	//   - err: Error if operation failed, nil if successful
	RecordOperation(operation string, duration time.Duration, err error)

	// RecordDedup records a deduplication lookup outcome.
	RecordDedup(hit bool, isPrivate bool)

	// RecordBytesWritten records bytes written to disk.
	RecordBytesWritten(bytes int64)

	// RecordRollback records an aborted transaction and how many file
	// operations it undid.
	RecordRollback(ops int)
}

// NewNoopEngineMetrics returns an EngineMetrics that discards everything.
func NewNoopEngineMetrics() EngineMetrics {
	return noopEngineMetrics{}
}

// noopEngineMetrics is a no-op implementation of EngineMetrics with zero overhead.
type noopEngineMetrics struct{}

func (noopEngineMetrics) RecordOperation(string, time.Duration, error) {}
func (noopEngineMetrics) RecordDedup(bool, bool)                       {}
func (noopEngineMetrics) RecordBytesWritten(int64)                     {}
func (noopEngineMetrics) RecordRollback(int)                           {}
