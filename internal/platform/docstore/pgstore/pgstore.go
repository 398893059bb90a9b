// Package pgstore keeps documents as JSONB rows in PostgreSQL.
package pgstore

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"staffbook/internal/platform/db"
	"staffbook/internal/platform/docstore"
)

//go:embed migrations/*.sql
var migrations embed.FS

var _ docstore.Backend = (*Backend)(nil)

type Backend struct {
	DB *pgxpool.Pool
}

// Open connects to databaseURL and applies the document schema.
func Open(ctx context.Context, databaseURL string, opts db.PoolOptions) (*Backend, error) {
	pool, err := db.Connect(ctx, databaseURL, opts)
	if err != nil {
		return nil, err
	}
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := db.Migrate(ctx, pool, sub); err != nil {
		pool.Close()
		return nil, err
	}
	return &Backend{DB: pool}, nil
}

func (b *Backend) View(ctx context.Context, fn func(docstore.Tx) error) error {
	return b.run(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly}, fn)
}

func (b *Backend) Update(ctx context.Context, fn func(docstore.Tx) error) error {
	return b.run(ctx, pgx.TxOptions{}, fn)
}

func (b *Backend) run(ctx context.Context, opts pgx.TxOptions, fn func(docstore.Tx) error) error {
	pgTx, err := b.DB.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	if err := fn(&tx{tx: pgTx}); err != nil {
		_ = pgTx.Rollback(ctx)
		return err
	}
	return pgTx.Commit(ctx)
}

func (b *Backend) Ping(ctx context.Context) error {
	return b.DB.Ping(ctx)
}

func (b *Backend) Close() error {
	b.DB.Close()
	return nil
}

type tx struct {
	tx pgx.Tx
}

func (t *tx) Get(ctx context.Context, collection, key string) (map[string]any, bool, error) {
	var raw string
	err := t.tx.QueryRow(ctx, `
    SELECT data::text
    FROM documents
    WHERE collection = $1 AND key = $2
  `, collection, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	data, err := decode(raw)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (t *tx) Put(ctx context.Context, collection, key string, data map[string]any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
    INSERT INTO documents (collection, key, data)
    VALUES ($1, $2, $3::jsonb)
    ON CONFLICT (collection, key)
    DO UPDATE SET data = EXCLUDED.data, updated_at = now()
  `, collection, key, string(payload))
	return err
}

func (t *tx) Delete(ctx context.Context, collection, key string) error {
	_, err := t.tx.Exec(ctx, "DELETE FROM documents WHERE collection = $1 AND key = $2", collection, key)
	return err
}

func (t *tx) List(ctx context.Context, collection string) ([]docstore.Document, error) {
	rows, err := t.tx.Query(ctx, `
    SELECT key, data::text
    FROM documents
    WHERE collection = $1
    ORDER BY key
  `, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []docstore.Document
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, err
		}
		data, err := decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, docstore.Document{Key: key, Data: data})
	}
	return out, rows.Err()
}

func decode(raw string) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, err
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}
