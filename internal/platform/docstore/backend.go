package docstore

import "context"

// Document is one keyed node directly under a collection.
type Document struct {
	Key  string         `json:"key"`
	Data map[string]any `json:"data"`
}

// Tx operates on whole documents inside a single backend transaction.
type Tx interface {
	Get(ctx context.Context, collection, key string) (map[string]any, bool, error)
	Put(ctx context.Context, collection, key string, data map[string]any) error
	Delete(ctx context.Context, collection, key string) error
	// List returns the documents of a collection ordered by key.
	List(ctx context.Context, collection string) ([]Document, error)
}

// Backend persists documents. Update must be all-or-nothing: if fn returns
// an error nothing it wrote is kept.
type Backend interface {
	View(ctx context.Context, fn func(Tx) error) error
	Update(ctx context.Context, fn func(Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}
