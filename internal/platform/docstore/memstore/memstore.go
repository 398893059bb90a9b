// Package memstore keeps documents in process memory. It backs tests and
// ephemeral deployments; nothing survives a restart.
package memstore

import (
	"context"
	"sort"
	"sync"

	"staffbook/internal/platform/docstore"
)

var _ docstore.Backend = (*Backend)(nil)

type Backend struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
}

func New() *Backend {
	return &Backend{collections: map[string]map[string]map[string]any{}}
}

func (b *Backend) View(ctx context.Context, fn func(docstore.Tx) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return fn(&tx{backend: b})
}

func (b *Backend) Update(ctx context.Context, fn func(docstore.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	t := &tx{backend: b, writable: true, pending: map[string]map[string]map[string]any{}}
	if err := fn(t); err != nil {
		return err
	}
	for collection, docs := range t.pending {
		for key, data := range docs {
			if data == nil {
				delete(b.collections[collection], key)
				continue
			}
			if b.collections[collection] == nil {
				b.collections[collection] = map[string]map[string]any{}
			}
			b.collections[collection][key] = data
		}
		if len(b.collections[collection]) == 0 {
			delete(b.collections, collection)
		}
	}
	return nil
}

func (b *Backend) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (b *Backend) Close() error {
	return nil
}

// tx stages writes in pending (nil marks a delete) until Update commits.
type tx struct {
	backend  *Backend
	writable bool
	pending  map[string]map[string]map[string]any
}

func (t *tx) lookup(collection, key string) (map[string]any, bool) {
	if docs, ok := t.pending[collection]; ok {
		if data, staged := docs[key]; staged {
			return data, data != nil
		}
	}
	data, ok := t.backend.collections[collection][key]
	return data, ok
}

func (t *tx) Get(ctx context.Context, collection, key string) (map[string]any, bool, error) {
	data, ok := t.lookup(collection, key)
	if !ok {
		return nil, false, nil
	}
	return cloneMap(data), true, nil
}

func (t *tx) Put(ctx context.Context, collection, key string, data map[string]any) error {
	t.stage(collection, key, cloneMap(data))
	return nil
}

func (t *tx) Delete(ctx context.Context, collection, key string) error {
	t.stage(collection, key, nil)
	return nil
}

func (t *tx) stage(collection, key string, data map[string]any) {
	if !t.writable {
		panic("memstore: write inside a read-only transaction")
	}
	if t.pending[collection] == nil {
		t.pending[collection] = map[string]map[string]any{}
	}
	t.pending[collection][key] = data
}

func (t *tx) List(ctx context.Context, collection string) ([]docstore.Document, error) {
	keys := map[string]struct{}{}
	for key := range t.backend.collections[collection] {
		keys[key] = struct{}{}
	}
	for key := range t.pending[collection] {
		keys[key] = struct{}{}
	}

	out := make([]docstore.Document, 0, len(keys))
	for key := range keys {
		if data, ok := t.lookup(collection, key); ok {
			out = append(out, docstore.Document{Key: key, Data: cloneMap(data)})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return cloneMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = cloneValue(typed[i])
		}
		return out
	default:
		return v
	}
}
