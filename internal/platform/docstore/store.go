package docstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"staffbook/internal/platform/logger"
)

// Snapshot is a full point-in-time copy of one collection. Version grows by
// one with every committed write that touches the collection and is only
// meaningful inside the current process. Digest identifies the documents
// themselves, so it also changes on writes made by other processes sharing
// the backend.
type Snapshot struct {
	Collection string     `json:"collection"`
	Version    uint64     `json:"version"`
	Digest     string     `json:"digest"`
	Documents  []Document `json:"documents"`
}

// digest hashes documents in key order. Map keys marshal sorted, so equal
// contents always give equal digests.
func digest(docs []Document) (string, error) {
	h := sha256.New()
	enc := json.NewEncoder(h)
	for _, doc := range docs {
		if err := enc.Encode(doc.Key); err != nil {
			return "", err
		}
		if err := enc.Encode(doc.Data); err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

type Option func(*Store)

// WithKeyFunc replaces the generator used by Push.
func WithKeyFunc(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newKey = fn
		}
	}
}

// Store is a hierarchical key/value store addressed by slash separated
// paths ("collection/key/field/..."). Writes are last-write-wins.
type Store struct {
	backend Backend
	newKey  func() string

	// commitMu orders commits against snapshot reads so a snapshot version
	// always describes exactly the documents returned with it.
	commitMu sync.RWMutex
	versions map[string]uint64

	hub *hub
}

func New(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend:  backend,
		newKey:   newPushKey,
		versions: map[string]uint64{},
		hub:      newHub(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newPushKey() string {
	return uuid.Must(uuid.NewV7()).String()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

func (s *Store) Close() error {
	s.CloseSubscriptions()
	return s.backend.Close()
}

// CloseSubscriptions closes the channel of every live subscription.
func (s *Store) CloseSubscriptions() {
	s.hub.closeAll()
}

// Get reads the value at path. Missing values report ok == false.
func (s *Store) Get(ctx context.Context, raw string) (any, bool, error) {
	p, err := parsePath(raw)
	if err != nil {
		return nil, false, err
	}
	s.commitMu.RLock()
	defer s.commitMu.RUnlock()

	var value any
	var found bool
	err = s.backend.View(ctx, func(tx Tx) error {
		value, found, err = readPath(ctx, tx, p)
		return err
	})
	return value, found, err
}

func (s *Store) List(ctx context.Context, collection string) ([]Document, error) {
	snap, err := s.Snapshot(ctx, collection)
	if err != nil {
		return nil, err
	}
	return snap.Documents, nil
}

func (s *Store) Snapshot(ctx context.Context, collection string) (Snapshot, error) {
	s.commitMu.RLock()
	defer s.commitMu.RUnlock()

	snap := Snapshot{Collection: collection, Version: s.versions[collection]}
	err := s.backend.View(ctx, func(tx Tx) error {
		docs, err := tx.List(ctx, collection)
		if err != nil {
			return err
		}
		snap.Documents = docs
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	if snap.Documents == nil {
		snap.Documents = []Document{}
	}
	if snap.Digest, err = digest(snap.Documents); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (s *Store) Set(ctx context.Context, raw string, value any) error {
	return s.Update(ctx, map[string]any{raw: value})
}

func (s *Store) Remove(ctx context.Context, raw string) error {
	return s.Update(ctx, map[string]any{raw: nil})
}

// Update applies every path -> value pair in one transaction. A nil value
// removes the node at that path.
func (s *Store) Update(ctx context.Context, updates map[string]any) error {
	return s.Transact(ctx, func(txn *Txn) error {
		return txn.Update(updates)
	})
}

// Push stores data under a freshly generated, time ordered key.
func (s *Store) Push(ctx context.Context, collection string, data map[string]any) (string, error) {
	var key string
	err := s.Transact(ctx, func(txn *Txn) error {
		var err error
		key, err = txn.Push(collection, data)
		return err
	})
	return key, err
}

// Transact runs fn inside one backend transaction. Subscribers of every
// collection fn wrote to receive a fresh snapshot after the commit.
func (s *Store) Transact(ctx context.Context, fn func(*Txn) error) error {
	var changed map[string]struct{}

	s.commitMu.Lock()
	err := s.backend.Update(ctx, func(tx Tx) error {
		txn := &Txn{ctx: ctx, tx: tx, newKey: s.newKey, changed: map[string]struct{}{}}
		if err := fn(txn); err != nil {
			return err
		}
		changed = txn.changed
		return nil
	})
	if err == nil {
		for collection := range changed {
			s.versions[collection]++
		}
	}
	s.commitMu.Unlock()

	if err != nil {
		return err
	}
	s.publish(context.WithoutCancel(ctx), changed)
	return nil
}

// Subscribe delivers the current snapshot of collection and then a new one
// after every committed change. A slow reader only sees the latest pending
// snapshot. The channel is closed once ctx is done.
func (s *Store) Subscribe(ctx context.Context, collection string) (<-chan Snapshot, error) {
	sub := s.hub.add(collection)

	snap, err := s.Snapshot(ctx, collection)
	if err != nil {
		s.hub.remove(sub)
		return nil, err
	}
	sub.offer(snap)

	go func() {
		<-ctx.Done()
		s.hub.remove(sub)
	}()
	return sub.ch, nil
}

func (s *Store) publish(ctx context.Context, changed map[string]struct{}) {
	for collection := range changed {
		if !s.hub.watched(collection) {
			continue
		}
		snap, err := s.Snapshot(ctx, collection)
		if err != nil {
			logger.From(ctx).Warn().Err(err).Str("collection", collection).Msg("snapshot after commit failed")
			continue
		}
		s.hub.broadcast(snap)
	}
}

// Txn is the handle passed to Transact. It is only valid inside fn.
type Txn struct {
	ctx     context.Context
	tx      Tx
	newKey  func() string
	changed map[string]struct{}
}

func (t *Txn) Get(raw string) (any, bool, error) {
	p, err := parsePath(raw)
	if err != nil {
		return nil, false, err
	}
	return readPath(t.ctx, t.tx, p)
}

// Document returns the object stored at collection/key.
func (t *Txn) Document(collection, key string) (map[string]any, bool, error) {
	return t.tx.Get(t.ctx, collection, key)
}

func (t *Txn) List(collection string) ([]Document, error) {
	return t.tx.List(t.ctx, collection)
}

func (t *Txn) Set(raw string, value any) error {
	return t.Update(map[string]any{raw: value})
}

func (t *Txn) Remove(raw string) error {
	return t.Update(map[string]any{raw: nil})
}

func (t *Txn) Update(updates map[string]any) error {
	paths, err := parseUpdates(updates)
	if err != nil {
		return err
	}
	for _, p := range paths {
		value, err := normalizeValue(updates[p.raw])
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		if err := t.write(p, value); err != nil {
			return err
		}
	}
	return nil
}

func (t *Txn) Push(collection string, data map[string]any) (string, error) {
	key := t.newKey()
	if err := t.Set(Join(collection, key), data); err != nil {
		return "", err
	}
	return key, nil
}

func (t *Txn) write(p path, value any) error {
	if len(p.fields) == 0 {
		t.changed[p.collection] = struct{}{}
		if value == nil {
			return t.tx.Delete(t.ctx, p.collection, p.key)
		}
		doc, ok := value.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: %w", p, ErrInvalidValue)
		}
		return t.tx.Put(t.ctx, p.collection, p.key, doc)
	}

	doc, found, err := t.tx.Get(t.ctx, p.collection, p.key)
	if err != nil {
		return err
	}
	if !found {
		if value == nil {
			return nil
		}
		doc = map[string]any{}
	}
	setNested(doc, p.fields, value)
	t.changed[p.collection] = struct{}{}
	if len(doc) == 0 {
		return t.tx.Delete(t.ctx, p.collection, p.key)
	}
	return t.tx.Put(t.ctx, p.collection, p.key, doc)
}

func readPath(ctx context.Context, tx Tx, p path) (any, bool, error) {
	doc, found, err := tx.Get(ctx, p.collection, p.key)
	if err != nil || !found {
		return nil, false, err
	}
	var current any = doc
	for _, field := range p.fields {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false, nil
		}
		current, ok = m[field]
		if !ok {
			return nil, false, nil
		}
	}
	return current, true, nil
}

func setNested(m map[string]any, fields []string, value any) {
	head := fields[0]
	if len(fields) == 1 {
		if value == nil {
			delete(m, head)
		} else {
			m[head] = value
		}
		return
	}
	child, ok := m[head].(map[string]any)
	if !ok {
		if value == nil {
			return
		}
		child = map[string]any{}
		m[head] = child
	}
	setNested(child, fields[1:], value)
	if len(child) == 0 {
		delete(m, head)
	}
}

// normalizeValue gives every backend the same JSON shaped values
// (objects, arrays, strings, float64, bool).
func normalizeValue(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return out, nil
}
