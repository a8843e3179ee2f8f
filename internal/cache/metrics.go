package cache

import (
	"sync/atomic"
	"time"
)

type CacheMetrics struct {
	hits     atomic.Int64
	misses   atomic.Int64
	errors   atomic.Int64
	sets     atomic.Int64
	bypassed atomic.Int64

	startTime time.Time
}

func NewCacheMetrics() *CacheMetrics {
	return &CacheMetrics{startTime: time.Now()}
}

func (m *CacheMetrics) RecordHit()   { m.hits.Add(1) }
func (m *CacheMetrics) RecordMiss()  { m.misses.Add(1) }
func (m *CacheMetrics) RecordError() { m.errors.Add(1) }
func (m *CacheMetrics) RecordSet()   { m.sets.Add(1) }

// RecordBypass counts lookups served from the store because the breaker was open.
func (m *CacheMetrics) RecordBypass() { m.bypassed.Add(1) }

// HitRate is a percentage of hits over hits plus misses.
func (m *CacheMetrics) HitRate() float64 {
	hits := m.hits.Load()
	total := hits + m.misses.Load()
	if total == 0 {
		return 0.0
	}
	return float64(hits) / float64(total) * 100.0
}

func (m *CacheMetrics) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"hits":           m.hits.Load(),
		"misses":         m.misses.Load(),
		"errors":         m.errors.Load(),
		"sets":           m.sets.Load(),
		"bypassed":       m.bypassed.Load(),
		"hit_rate":       m.HitRate(),
		"uptime_seconds": int64(time.Since(m.startTime).Seconds()),
	}
}
