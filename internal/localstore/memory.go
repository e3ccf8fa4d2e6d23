package localstore

import (
	"sync"

	"dugsi-go/internal/dugsi"
)

// MemoryStore keeps the snapshot in memory. Useful for tests and for the
// throwaway "memory" configuration. Safe for concurrent use.
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

var _ dugsi.LocalStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the stored snapshot, or (nil, nil) when nothing is stored.
func (m *MemoryStore) Load() (*dugsi.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.data == nil {
		return nil, nil
	}
	snap, err := dugsi.DecodeSnapshot(m.data)
	if err != nil {
		return nil, nil
	}
	return snap, nil
}

// Save stores the snapshot, replacing any previous one.
func (m *MemoryStore) Save(snap *dugsi.Snapshot) error {
	data, err := snap.Encode()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}
