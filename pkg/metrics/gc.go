package metrics

import "time"

// GCMetrics provides observability for garbage collection runs.
type GCMetrics interface {
	// RecordRun records a completed collection.
	//
	// Parameters:
	//   - duration: Time taken by the run
	//   - orphans: Unreferenced files found (removed unless dry-run)
	//   - missing: Records whose bytes are missing on disk
	//   - err: Error if the run failed
	RecordRun(duration time.Duration, orphans, missing int, err error)
}

// NewNoopGCMetrics returns a GCMetrics that discards everything.
func NewNoopGCMetrics() GCMetrics {
	return noopGCMetrics{}
}

type noopGCMetrics struct{}

func (noopGCMetrics) RecordRun(time.Duration, int, int, error) {}
