package listing

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staffbook/internal/domain/employee"
)

type staticSource struct {
	snap employee.Snapshot
}

func (s *staticSource) Snapshot(_ context.Context, collection string) (employee.Snapshot, error) {
	snap := s.snap
	snap.Collection = collection
	return snap, nil
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]string
	hits int
}

func (c *mapCache) Get(_ context.Context, key string) ([]string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids, ok := c.data[key]
	if ok {
		c.hits++
	}
	return ids, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, ids []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = ids
	return nil
}

func TestViewerMatchesUncachedResolve(t *testing.T) {
	ctx := context.Background()
	source := &staticSource{snap: employee.Snapshot{Version: 4, Employees: []employee.Employee{
		emp("k1", func(e *employee.Employee) { e.Name = "Dara"; e.Group = "A" }),
		emp("k2", func(e *employee.Employee) { e.Name = "Bopha"; e.Group = "A" }),
		emp("k3", func(e *employee.Employee) { e.Name = "Chan"; e.Group = "B" }),
	}}}
	cache := &mapCache{data: map[string][]string{}}
	q := Query{Filters: map[string]string{"group": "A"}, Sort: &Sort{Field: "name"}, Page: 7}

	plain, version, err := NewViewer(source, nil).Resolve(ctx, ActiveView, q)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), version)

	cached := NewViewer(source, cache)
	first, _, err := cached.Resolve(ctx, ActiveView, q)
	require.NoError(t, err)
	second, _, err := cached.Resolve(ctx, ActiveView, q)
	require.NoError(t, err)

	assert.Equal(t, []string{"k2", "k1"}, IDs(plain.PageItems))
	assert.Equal(t, 1, plain.Page, "out of range pages are clamped")
	assert.Equal(t, IDs(plain.PageItems), IDs(first.PageItems))
	assert.Equal(t, IDs(first.PageItems), IDs(second.PageItems))
	assert.Equal(t, 1, cache.hits)

	source.snap.Version = 5
	_, _, err = cached.Resolve(ctx, ActiveView, q)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits, "a new version misses the cache")
}

func TestViewerCacheFollowsContentsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	cache := &mapCache{data: map[string][]string{}}
	q := Query{Sort: &Sort{Field: "name"}, Page: 1}

	a := &staticSource{snap: employee.Snapshot{Version: 3, Digest: "d1", Employees: []employee.Employee{
		emp("k1", func(e *employee.Employee) { e.Name = "Dara"; e.Group = "A" }),
	}}}
	b := &staticSource{snap: a.snap}
	first, second := NewViewer(a, cache), NewViewer(b, cache)

	view, _, err := first.Resolve(ctx, ActiveView, q)
	require.NoError(t, err)
	assert.Equal(t, []string{"k1"}, IDs(view.PageItems))
	_, _, err = second.Resolve(ctx, ActiveView, q)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits, "instances reading the same contents share the entry")

	filtered := Query{Filters: map[string]string{"group": "A"}, Page: 1}
	view, _, err = first.Resolve(ctx, ActiveView, filtered)
	require.NoError(t, err)
	assert.Equal(t, []string{"k1"}, IDs(view.PageItems))

	// Another instance wrote to the shared database; the local version did not move.
	a.snap = employee.Snapshot{Version: 3, Digest: "d2", Employees: []employee.Employee{
		emp("k1", func(e *employee.Employee) { e.Name = "Dara"; e.Group = "B" }),
		emp("k2", func(e *employee.Employee) { e.Name = "Bopha"; e.Group = "A" }),
	}}
	view, _, err = first.Resolve(ctx, ActiveView, q)
	require.NoError(t, err)
	assert.Equal(t, []string{"k2", "k1"}, IDs(view.PageItems))
	assert.Equal(t, 1, cache.hits)

	view, _, err = first.Resolve(ctx, ActiveView, filtered)
	require.NoError(t, err)
	assert.Equal(t, []string{"k2"}, IDs(view.PageItems), "an edited record stops matching at once")
	assert.Equal(t, 1, cache.hits)
}
