package localstore_test

import (
	"path/filepath"
	"testing"

	"dugsi-go/internal/dugsi"
	"dugsi-go/internal/localstore"
	"dugsi-go/internal/testutil"
)

func TestSQLiteStore(t *testing.T) {
	t.Run("load before any save returns absent", func(t *testing.T) {
		t.Parallel()

		store := testutil.NewTestSQLiteStore(t)

		snap, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if snap != nil {
			t.Errorf("Load() = %+v, want nil", snap)
		}
	})

	t.Run("save then load round trips", func(t *testing.T) {
		t.Parallel()

		store := testutil.NewTestSQLiteStore(t)

		in := dugsi.Seed(testutil.FixedClock(), testutil.NewStubIDGenerator())
		in.LastUpdated = 42
		if err := store.Save(in); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		out, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if out == nil {
			t.Fatal("Load() = nil after Save")
		}
		if out.LastUpdated != in.LastUpdated {
			t.Errorf("lastUpdated = %d, want %d", out.LastUpdated, in.LastUpdated)
		}
		if len(out.Students) != len(in.Students) {
			t.Errorf("students = %d, want %d", len(out.Students), len(in.Students))
		}
	})

	t.Run("save replaces the previous snapshot", func(t *testing.T) {
		t.Parallel()

		store := testutil.NewTestSQLiteStore(t)

		first := dugsi.NewSnapshot()
		first.LastUpdated = 1
		second := dugsi.NewSnapshot()
		second.LastUpdated = 2
		second.Settings.PrincipalName = "Maxamed Warsame"

		if err := store.Save(first); err != nil {
			t.Fatalf("Save(first) error = %v", err)
		}
		if err := store.Save(second); err != nil {
			t.Fatalf("Save(second) error = %v", err)
		}

		out, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if out.LastUpdated != 2 || out.Settings.PrincipalName != "Maxamed Warsame" {
			t.Errorf("loaded %d %q, want second snapshot", out.LastUpdated, out.Settings.PrincipalName)
		}
	})

	t.Run("undecodable blob is treated as absent", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "school.db")

		store, err := localstore.NewSQLiteStore(path, nil)
		if err != nil {
			t.Fatalf("NewSQLiteStore() error = %v", err)
		}
		if err := store.Save(dugsi.NewSnapshot()); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		store.Close()

		db, err := localstore.OpenConnection(path)
		if err != nil {
			t.Fatalf("OpenConnection() error = %v", err)
		}
		if _, err := db.Exec(
			"UPDATE snapshots SET data = ? WHERE key = ?", []byte("{not json"), "dugsiga_data"); err != nil {
			t.Fatalf("corrupting row: %v", err)
		}
		db.Close()

		store, err = localstore.NewSQLiteStore(path, nil)
		if err != nil {
			t.Fatalf("NewSQLiteStore() reopen error = %v", err)
		}
		defer store.Close()

		snap, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if snap != nil {
			t.Errorf("Load() = %+v, want nil for corrupt blob", snap)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	store := localstore.NewMemoryStore()
	defer store.Close()

	if snap, err := store.Load(); err != nil || snap != nil {
		t.Fatalf("Load() = %v, %v, want nil, nil before first save", snap, err)
	}

	in := dugsi.NewSnapshot()
	in.LastUpdated = 7
	if err := store.Save(in); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	out, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if out == nil || out.LastUpdated != 7 {
		t.Errorf("Load() = %+v, want lastUpdated 7", out)
	}
}
