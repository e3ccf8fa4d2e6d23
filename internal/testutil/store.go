package testutil

import (
	"testing"

	"dugsi-go/internal/dugsi"
	"dugsi-go/internal/localstore"
)

// NewTestLocalStore creates an in-memory local store for testing.
func NewTestLocalStore() dugsi.LocalStore {
	return localstore.NewMemoryStore()
}

// NewTestSQLiteStore creates an in-memory SQLite local store with the
// schema applied. The store is automatically closed when the test
// completes.
func NewTestSQLiteStore(t *testing.T) dugsi.LocalStore {
	t.Helper()

	store, err := localstore.NewSQLiteStore(":memory:", nil)
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})

	return store
}
