package remote

import (
	"context"
	"sync"

	"dugsi-go/internal/dugsi"
)

// MemoryRemote is an in-memory implementation of the Remote interface.
// It stores one document per principal and fans Put notifications out to
// all watchers, making it useful for testing. Safe for concurrent use.
type MemoryRemote struct {
	mu       sync.Mutex
	docs     map[string]dugsi.Document
	watchers map[string]map[int]chan dugsi.WatchEvent
	nextID   int
}

var _ dugsi.Remote = (*MemoryRemote)(nil)

// NewMemoryRemote creates an empty in-memory remote.
func NewMemoryRemote() *MemoryRemote {
	return &MemoryRemote{
		docs:     make(map[string]dugsi.Document),
		watchers: make(map[string]map[int]chan dugsi.WatchEvent),
	}
}

// Load returns the principal's document, or (nil, nil) when absent.
func (m *MemoryRemote) Load(_ context.Context, principal string) (*dugsi.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[principal]
	if !ok {
		return nil, nil
	}
	return copyDoc(doc), nil
}

// Put stores the principal's document and notifies all watchers.
func (m *MemoryRemote) Put(_ context.Context, principal string, doc dugsi.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.docs[principal] = *copyDoc(doc)
	for _, ch := range m.watchers[principal] {
		// Buffered channels; a watcher that has fallen this far behind
		// only needs the latest state, which it re-reads on reconnect.
		select {
		case ch <- dugsi.WatchEvent{Doc: copyDoc(doc)}:
		default:
		}
	}
	return nil
}

// Watch subscribes to the principal's document. The current state is
// delivered as the first event.
func (m *MemoryRemote) Watch(ctx context.Context, principal string) (<-chan dugsi.WatchEvent, func(), error) {
	ch := make(chan dugsi.WatchEvent, 16)

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	if m.watchers[principal] == nil {
		m.watchers[principal] = make(map[int]chan dugsi.WatchEvent)
	}
	m.watchers[principal][id] = ch

	if doc, ok := m.docs[principal]; ok {
		ch <- dugsi.WatchEvent{Doc: copyDoc(doc)}
	} else {
		ch <- dugsi.WatchEvent{}
	}
	m.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.watchers[principal], id)
			m.mu.Unlock()
			close(ch)
		})
	}

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}

	return ch, cancel, nil
}

func copyDoc(doc dugsi.Document) *dugsi.Document {
	out := dugsi.Document{Version: doc.Version}
	if doc.Data != nil {
		out.Data = make([]byte, len(doc.Data))
		copy(out.Data, doc.Data)
	}
	return &out
}
