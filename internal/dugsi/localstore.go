package dugsi

// LocalStore is durable storage for exactly one snapshot under a fixed key.
// It performs no merging and triggers no synchronization; those concerns
// belong to the Store and the SyncEngine.
type LocalStore interface {
	// Load returns the previously saved snapshot, or (nil, nil) when none
	// has been saved yet or the stored payload no longer parses. Callers
	// fall back to seed data; a broken local store is never fatal.
	Load() (*Snapshot, error)

	// Save serializes the snapshot and overwrites the stored copy
	// unconditionally. No partial writes: either the whole snapshot is
	// replaced or the previous one remains intact.
	Save(s *Snapshot) error

	// Close releases the underlying storage.
	Close() error
}
