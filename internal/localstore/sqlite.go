package localstore

import (
	"database/sql"
	"errors"
	"fmt"

	"dugsi-go/internal/dugsi"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// snapshotKey is the fixed row key the whole school snapshot lives under.
// There is exactly one school per database, so one row.
const snapshotKey = "dugsiga_data"

// SQLiteStore persists the snapshot in a single-row SQLite table.
type SQLiteStore struct {
	db   *sql.DB
	path string
	log  dugsi.Logger
}

var _ dugsi.LocalStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path and applies any
// pending schema migrations. path can be ":memory:" for tests.
func NewSQLiteStore(path string, log dugsi.Logger) (*SQLiteStore, error) {
	if log == nil {
		log = dugsi.NewNopLogger()
	}

	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := MigrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, path: path, log: log}, nil
}

// OpenConnection opens and configures a SQLite connection with the PRAGMAs
// the store relies on. Exported for tools and tests that need a raw handle.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return db, nil
}

// Load returns the stored snapshot, or (nil, nil) when nothing is stored.
// A stored blob that no longer decodes is treated as absent so the caller
// can recover by reseeding instead of refusing to start.
func (s *SQLiteStore) Load() (*dugsi.Snapshot, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM snapshots WHERE key = ?", snapshotKey).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}

	snap, err := dugsi.DecodeSnapshot(data)
	if err != nil {
		s.log.Warn("stored snapshot does not decode, treating as absent", "error", err)
		return nil, nil
	}
	return snap, nil
}

// Save stores the snapshot, replacing any previous one.
func (s *SQLiteStore) Save(snap *dugsi.Snapshot) error {
	data, err := snap.Encode()
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO snapshots (key, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		snapshotKey, data, snap.LastUpdated)
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
