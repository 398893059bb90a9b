package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	rateLimited     uint64
	totalDurationMs uint64

	viewCacheHits   uint64
	viewCacheMisses uint64
	streamClients   int64

	mu       sync.Mutex
	jobRuns  map[string]uint64
	jobFails map[string]uint64
	mutation map[string]uint64
}

func New() *Collector {
	return &Collector{
		jobRuns:  map[string]uint64{},
		jobFails: map[string]uint64{},
		mutation: map[string]uint64{},
	}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	if status == 429 {
		atomic.AddUint64(&c.rateLimited, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

func (c *Collector) ViewCache(hit bool) {
	if hit {
		atomic.AddUint64(&c.viewCacheHits, 1)
		return
	}
	atomic.AddUint64(&c.viewCacheMisses, 1)
}

// StreamOpened and StreamClosed track live snapshot stream connections.
func (c *Collector) StreamOpened() { atomic.AddInt64(&c.streamClients, 1) }
func (c *Collector) StreamClosed() { atomic.AddInt64(&c.streamClients, -1) }

// Mutation counts committed writes by kind (create, update, softDelete, ...).
func (c *Collector) Mutation(kind string, n int) {
	if n <= 0 {
		return
	}
	c.mu.Lock()
	c.mutation[kind] += uint64(n)
	c.mu.Unlock()
}

func (c *Collector) JobRun(jobType string, failed bool) {
	c.mu.Lock()
	c.jobRuns[jobType]++
	if failed {
		c.jobFails[jobType]++
	}
	c.mu.Unlock()
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	limited := atomic.LoadUint64(&c.rateLimited)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}

	c.mu.Lock()
	runs := copyCounts(c.jobRuns)
	fails := copyCounts(c.jobFails)
	mutations := copyCounts(c.mutation)
	c.mu.Unlock()

	return map[string]any{
		"requestsTotal":        total,
		"errorsTotal":          errs,
		"rateLimitedTotal":     limited,
		"avgDurationMs":        avg,
		"totalDurationMs":      totalMs,
		"viewCacheHitsTotal":   atomic.LoadUint64(&c.viewCacheHits),
		"viewCacheMissesTotal": atomic.LoadUint64(&c.viewCacheMisses),
		"streamClients":        atomic.LoadInt64(&c.streamClients),
		"mutationsTotal":       mutations,
		"jobRunsTotal":         runs,
		"jobFailuresTotal":     fails,
	}
}

func copyCounts(in map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
