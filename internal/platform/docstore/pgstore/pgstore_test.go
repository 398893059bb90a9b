package pgstore_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"staffbook/internal/platform/db"
	"staffbook/internal/platform/docstore"
	"staffbook/internal/platform/docstore/docstoretest"
	"staffbook/internal/platform/docstore/pgstore"
)

func TestBackend(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	docstoretest.Run(t, func(t *testing.T) docstore.Backend {
		ctx := context.Background()
		backend, err := pgstore.Open(ctx, dbURL, db.PoolOptions{MaxConns: 4})
		require.NoError(t, err)
		_, err = backend.DB.Exec(ctx, "TRUNCATE documents")
		require.NoError(t, err)
		return backend
	})
}
