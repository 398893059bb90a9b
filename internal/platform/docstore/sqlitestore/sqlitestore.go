// Package sqlitestore keeps documents as JSON text in an embedded SQLite
// database.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"staffbook/internal/platform/docstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
  collection TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  updated INTEGER NOT NULL DEFAULT (unixepoch()),
  PRIMARY KEY (collection, key)
);`

var _ docstore.Backend = (*Backend)(nil)

type Backend struct {
	conn *sql.DB
}

// Open opens the database at dsn (a file path or ":memory:") and creates
// the document table.
func Open(ctx context.Context, dsn string) (*Backend, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	// One connection serialises writers and keeps ":memory:" databases alive.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Backend{conn: conn}, nil
}

func (b *Backend) View(ctx context.Context, fn func(docstore.Tx) error) error {
	return b.run(ctx, fn)
}

func (b *Backend) Update(ctx context.Context, fn func(docstore.Tx) error) error {
	return b.run(ctx, fn)
}

func (b *Backend) run(ctx context.Context, fn func(docstore.Tx) error) error {
	sqlTx, err := b.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(&tx{tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	return sqlTx.Commit()
}

func (b *Backend) Ping(ctx context.Context) error {
	return b.conn.PingContext(ctx)
}

func (b *Backend) Close() error {
	return b.conn.Close()
}

type tx struct {
	tx *sql.Tx
}

func (t *tx) Get(ctx context.Context, collection, key string) (map[string]any, bool, error) {
	var raw string
	err := t.tx.QueryRowContext(ctx, `SELECT data FROM documents WHERE collection = ? AND key = ?`, collection, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
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
	_, err = t.tx.ExecContext(ctx, `
    INSERT INTO documents (collection, key, data) VALUES (?, ?, ?)
    ON CONFLICT (collection, key) DO UPDATE SET data = excluded.data, updated = unixepoch()
  `, collection, key, string(payload))
	return err
}

func (t *tx) Delete(ctx context.Context, collection, key string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND key = ?`, collection, key)
	return err
}

func (t *tx) List(ctx context.Context, collection string) ([]docstore.Document, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT key, data FROM documents WHERE collection = ? ORDER BY key`, collection)
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
