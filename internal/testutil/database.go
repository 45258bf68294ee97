// Package testutil provides shared helpers for tests that need a real
// database or canned catalog data.
package testutil

import (
	"context"
	"testing"

	"github.com/fodmapworks/fodmap-flow/internal/model"
	"github.com/fodmapworks/fodmap-flow/internal/storage"
)

// TestDB wraps an in-memory migrated database for one test.
type TestDB struct {
	Storage *storage.SQLiteStorage
	t       *testing.T
}

// SetupTestDB creates a new in-memory test database, optionally seeded with
// pending products. It automatically handles migrations and cleanup.
func SetupTestDB(t *testing.T, seed ...model.Product) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	if len(seed) > 0 {
		if _, err := store.InsertPending(ctx, seed); err != nil {
			t.Fatalf("failed to seed products: %v", err)
		}
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{Storage: store, t: t}
}

// MustFind returns the stored product for the given identity hash, failing
// the test when it does not exist.
func (db *TestDB) MustFind(ctx context.Context, identityHash string) model.Product {
	db.t.Helper()

	products, err := db.Storage.FindByIdentities(ctx, []string{identityHash})
	if err != nil {
		db.t.Fatalf("failed to look up product %s: %v", identityHash, err)
	}
	if len(products) != 1 {
		db.t.Fatalf("expected product %s to exist, found %d rows", identityHash, len(products))
	}
	return products[0]
}

// NewProduct builds a pending product with a derived identity hash.
func NewProduct(name, category string) model.Product {
	return model.NewPending(name, category)
}
