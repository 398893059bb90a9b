package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCollectorSnapshot(t *testing.T) {
	c := New()
	c.Record(200, 10*time.Millisecond)
	c.Record(500, 30*time.Millisecond)
	c.Record(429, 0)
	c.ViewCache(true)
	c.ViewCache(false)
	c.ViewCache(false)
	c.Mutation("create", 1)
	c.Mutation("bulkUpdate", 3)
	c.Mutation("noop", 0)
	c.JobRun("recycle_bin_retention", false)
	c.JobRun("recycle_bin_retention", true)
	c.StreamOpened()
	c.StreamOpened()
	c.StreamClosed()

	snap := c.Snapshot()
	assert.Equal(t, uint64(3), snap["requestsTotal"])
	assert.Equal(t, uint64(1), snap["errorsTotal"])
	assert.Equal(t, uint64(1), snap["rateLimitedTotal"])
	assert.InDelta(t, 40.0/3.0, snap["avgDurationMs"], 0.001)
	assert.Equal(t, uint64(1), snap["viewCacheHitsTotal"])
	assert.Equal(t, uint64(2), snap["viewCacheMissesTotal"])
	assert.Equal(t, int64(1), snap["streamClients"])
	assert.Equal(t, map[string]uint64{"create": 1, "bulkUpdate": 3}, snap["mutationsTotal"])
	assert.Equal(t, map[string]uint64{"recycle_bin_retention": 2}, snap["jobRunsTotal"])
	assert.Equal(t, map[string]uint64{"recycle_bin_retention": 1}, snap["jobFailuresTotal"])
}

func TestCollectorConcurrentRecord(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Record(200, time.Millisecond)
			c.JobRun("x", false)
		}()
	}
	wg.Wait()
	snap := c.Snapshot()
	assert.Equal(t, uint64(50), snap["requestsTotal"])
	assert.Equal(t, map[string]uint64{"x": 50}, snap["jobRunsTotal"])
}
