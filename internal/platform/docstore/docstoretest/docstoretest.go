// Package docstoretest holds the behaviour every docstore backend must share.
package docstoretest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staffbook/internal/platform/docstore"
)

var errAbort = errors.New("abort")

// Run exercises a backend through a docstore.Store. newBackend must return
// an empty backend for every call.
func Run(t *testing.T, newBackend func(t *testing.T) docstore.Backend) {
	t.Helper()

	open := func(t *testing.T) *docstore.Store {
		counter := 0
		var mu sync.Mutex
		store := docstore.New(newBackend(t), docstore.WithKeyFunc(func() string {
			mu.Lock()
			defer mu.Unlock()
			counter++
			return fmt.Sprintf("k%03d", counter)
		}))
		t.Cleanup(func() { _ = store.Close() })
		return store
	}

	t.Run("set and get nested values", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)

		require.NoError(t, store.Set(ctx, "people/a", map[string]any{"name": "Dara", "schedule": map[string]any{"monday": "AM"}}))

		value, ok, err := store.Get(ctx, "people/a/schedule/monday")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "AM", value)

		_, ok, err = store.Get(ctx, "people/a/missing")
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = store.Get(ctx, "people/nobody")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("multi path update is applied together", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)
		require.NoError(t, store.Set(ctx, "people/a", map[string]any{"name": "A", "group": "G1"}))
		require.NoError(t, store.Set(ctx, "people/b", map[string]any{"name": "B", "group": "G1"}))

		require.NoError(t, store.Update(ctx, map[string]any{
			"people/a/group":           "G2",
			"people/b/group":           "G2",
			"people/b/schedule/friday": "PM",
		}))

		docs, err := store.List(ctx, "people")
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "a", docs[0].Key)
		assert.Equal(t, "G2", docs[0].Data["group"])
		assert.Equal(t, "G2", docs[1].Data["group"])
		assert.Equal(t, map[string]any{"friday": "PM"}, docs[1].Data["schedule"])
	})

	t.Run("nil removes and empty parents are pruned", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)
		require.NoError(t, store.Set(ctx, "people/a", map[string]any{"name": "A", "schedule": map[string]any{"monday": "AM"}}))

		require.NoError(t, store.Remove(ctx, "people/a/schedule/monday"))
		doc, ok, err := store.Get(ctx, "people/a")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, map[string]any{"name": "A"}, doc)

		require.NoError(t, store.Remove(ctx, "people/a/name"))
		_, ok, err = store.Get(ctx, "people/a")
		require.NoError(t, err)
		assert.False(t, ok, "a document with no fields left is removed")
	})

	t.Run("overlapping and malformed paths are rejected", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)

		err := store.Update(ctx, map[string]any{"people/a": map[string]any{"x": "1"}, "people/a/x": "2"})
		assert.ErrorIs(t, err, docstore.ErrOverlappingPaths)

		assert.ErrorIs(t, store.Set(ctx, "people", map[string]any{}), docstore.ErrInvalidPath)
		assert.ErrorIs(t, store.Set(ctx, "people//x", "v"), docstore.ErrInvalidPath)
		assert.ErrorIs(t, store.Set(ctx, "people/a", "not an object"), docstore.ErrInvalidValue)
	})

	t.Run("push assigns keys in order", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)

		first, err := store.Push(ctx, "people", map[string]any{"name": "first"})
		require.NoError(t, err)
		second, err := store.Push(ctx, "people", map[string]any{"name": "second"})
		require.NoError(t, err)
		assert.Less(t, first, second)

		docs, err := store.List(ctx, "people")
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, first, docs[0].Key)
	})

	t.Run("failed transaction keeps nothing", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)
		require.NoError(t, store.Set(ctx, "people/a", map[string]any{"name": "A"}))

		before, err := store.Snapshot(ctx, "people")
		require.NoError(t, err)

		err = store.Transact(ctx, func(txn *docstore.Txn) error {
			if err := txn.Set("bin/a", map[string]any{"name": "A"}); err != nil {
				return err
			}
			if err := txn.Remove("people/a"); err != nil {
				return err
			}
			return errAbort
		})
		require.ErrorIs(t, err, errAbort)

		after, err := store.Snapshot(ctx, "people")
		require.NoError(t, err)
		assert.Equal(t, before, after)
		bin, err := store.List(ctx, "bin")
		require.NoError(t, err)
		assert.Empty(t, bin)
	})

	t.Run("transaction reads its own writes", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)

		err := store.Transact(ctx, func(txn *docstore.Txn) error {
			if err := txn.Set("people/a", map[string]any{"name": "A"}); err != nil {
				return err
			}
			doc, ok, err := txn.Document("people", "a")
			if err != nil {
				return err
			}
			if !ok || doc["name"] != "A" {
				return fmt.Errorf("staged write not visible: %v", doc)
			}
			docs, err := txn.List("people")
			if err != nil {
				return err
			}
			if len(docs) != 1 {
				return fmt.Errorf("expected one staged document, got %d", len(docs))
			}
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("snapshot versions advance per collection", func(t *testing.T) {
		ctx := context.Background()
		store := open(t)

		snap, err := store.Snapshot(ctx, "people")
		require.NoError(t, err)
		assert.Equal(t, uint64(0), snap.Version)
		assert.NotNil(t, snap.Documents)

		require.NoError(t, store.Set(ctx, "people/a", map[string]any{"name": "A"}))
		require.NoError(t, store.Set(ctx, "other/x", map[string]any{"name": "X"}))

		snap, err = store.Snapshot(ctx, "people")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), snap.Version)
	})

	t.Run("digest follows writes from another store on the same backend", func(t *testing.T) {
		ctx := context.Background()
		backend := newBackend(t)
		mine := docstore.New(backend)
		theirs := docstore.New(backend)
		t.Cleanup(func() { _ = mine.Close() })

		require.NoError(t, mine.Set(ctx, "people/a", map[string]any{"name": "A"}))
		before, err := mine.Snapshot(ctx, "people")
		require.NoError(t, err)
		assert.NotEmpty(t, before.Digest)

		again, err := mine.Snapshot(ctx, "people")
		require.NoError(t, err)
		assert.Equal(t, before.Digest, again.Digest, "unchanged contents keep their digest")

		require.NoError(t, theirs.Set(ctx, "people/a/name", "B"))
		after, err := mine.Snapshot(ctx, "people")
		require.NoError(t, err)
		assert.Equal(t, before.Version, after.Version, "versions only count local commits")
		assert.NotEqual(t, before.Digest, after.Digest)

		require.NoError(t, theirs.Set(ctx, "people/a/name", "A"))
		restored, err := mine.Snapshot(ctx, "people")
		require.NoError(t, err)
		assert.Equal(t, before.Digest, restored.Digest)
	})

	t.Run("subscribers see the initial and every later snapshot", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		store := open(t)
		require.NoError(t, store.Set(ctx, "people/a", map[string]any{"name": "A"}))

		ch, err := store.Subscribe(ctx, "people")
		require.NoError(t, err)

		initial := receive(t, ch)
		require.Len(t, initial.Documents, 1)

		require.NoError(t, store.Set(ctx, "people/b", map[string]any{"name": "B"}))
		next := receive(t, ch)
		assert.Greater(t, next.Version, initial.Version)
		assert.Len(t, next.Documents, 2)

		cancel()
		select {
		case _, ok := <-ch:
			for ok {
				_, ok = <-ch
			}
		case <-time.After(2 * time.Second):
			t.Fatal("subscription was not closed after cancel")
		}
	})

	t.Run("closing subscriptions ends every stream", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		store := open(t)

		ch, err := store.Subscribe(ctx, "people")
		require.NoError(t, err)
		receive(t, ch)

		store.CloseSubscriptions()
		select {
		case _, ok := <-ch:
			assert.False(t, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("subscription was not closed")
		}
		require.NoError(t, store.Set(ctx, "people/a", map[string]any{"name": "A"}))
	})

	t.Run("slow subscribers only see the latest snapshot", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		store := open(t)

		ch, err := store.Subscribe(ctx, "people")
		require.NoError(t, err)

		for i := 0; i < 5; i++ {
			require.NoError(t, store.Set(ctx, docstore.Join("people", fmt.Sprintf("p%d", i)), map[string]any{"n": i}))
		}
		latest := receive(t, ch)
		assert.Len(t, latest.Documents, 5)
		assert.Equal(t, uint64(5), latest.Version)
	})
}

func receive(t *testing.T, ch <-chan docstore.Snapshot) docstore.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "subscription closed early")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return docstore.Snapshot{}
}
