package cache

// CacheMetrics receives listing cache events.
//
// Implementations live in pkg/metrics; a nil CacheMetrics disables
// collection.
type CacheMetrics interface {
	RecordHit()
	RecordMiss()
	SetEntries(n int)
}

type noopCacheMetrics struct{}

func (noopCacheMetrics) RecordHit()     {}
func (noopCacheMetrics) RecordMiss()    {}
func (noopCacheMetrics) SetEntries(int) {}
