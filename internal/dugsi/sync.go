package dugsi

import (
	"context"
	"fmt"
	"sync"
)

// SyncStatus is the sync engine's connection state, surfaced to the view
// layer's status indicator.
type SyncStatus string

const (
	// SyncDisconnected: no remote subscription active. Initial state, and
	// the state after sign-out.
	SyncDisconnected SyncStatus = "disconnected"
	// SyncSubscribing: the remote subscription is being established.
	SyncSubscribing SyncStatus = "subscribing"
	// SyncSynced: local and remote are believed consistent.
	SyncSynced SyncStatus = "synced"
	// SyncReconciling: a change was observed and comparison or a push is
	// in progress.
	SyncReconciling SyncStatus = "reconciling"
	// SyncError: the subscription or a push failed. Local state remains
	// authoritative and fully usable offline; no automatic retry happens
	// until the next local mutation or the next observed remote change.
	SyncError SyncStatus = "error"
)

// SyncEngine keeps the local snapshot and one principal's remote document
// convergent under last-writer-wins at whole-snapshot granularity: the
// larger lastUpdated wins in its entirety. There is no field- or
// entity-level merge; concurrent edits from two offline replicas resolve
// to whichever pushed the newer timestamp.
type SyncEngine struct {
	store  *Store
	remote Remote
	log    Logger

	enc Encryptor
	dec DecryptionContext

	mu        sync.Mutex
	status    SyncStatus
	principal string
	cancel    func()
	done      chan struct{}
	onStatus  func(SyncStatus)
}

// NewSyncEngine creates an engine for the given store and remote. The
// engine is Disconnected until Start.
func NewSyncEngine(store *Store, remote Remote, log Logger) *SyncEngine {
	return &SyncEngine{
		store:  store,
		remote: remote,
		log:    log,
		status: SyncDisconnected,
	}
}

// SetCipher makes the engine encrypt pushed payloads and decrypt pulled
// ones. Both halves are required: without the unlocked decryption context
// an encrypted remote document could be observed but never applied.
func (e *SyncEngine) SetCipher(enc Encryptor, dec DecryptionContext) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enc = enc
	e.dec = dec
}

// OnStatusChange registers a callback invoked on every status transition.
func (e *SyncEngine) OnStatusChange(fn func(SyncStatus)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onStatus = fn
}

// Status returns the current sync status.
func (e *SyncEngine) Status() SyncStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *SyncEngine) setStatus(s SyncStatus) {
	e.mu.Lock()
	if e.status == s {
		e.mu.Unlock()
		return
	}
	e.status = s
	fn := e.onStatus
	e.mu.Unlock()

	e.log.Debug("sync status changed", "status", string(s))
	if fn != nil {
		fn(s)
	}
}

// Start subscribes to the principal's remote document and begins
// reconciling. Any prior subscription is torn down first, so Start is safe
// for account switches and retries after errors. Reconciliation runs until
// Stop is called or ctx is canceled.
func (e *SyncEngine) Start(ctx context.Context, principal string) error {
	e.Stop()

	e.setStatus(SyncSubscribing)
	events, cancelWatch, err := e.remote.Watch(ctx, principal)
	if err != nil {
		e.setStatus(SyncError)
		return fmt.Errorf("subscribing to remote: %w", err)
	}

	runCtx, cancelRun := context.WithCancel(ctx)
	done := make(chan struct{})

	e.mu.Lock()
	e.principal = principal
	e.done = done
	e.cancel = func() {
		cancelWatch()
		cancelRun()
	}
	e.mu.Unlock()

	go e.run(runCtx, principal, events, done)
	return nil
}

// Stop cancels the remote subscription and waits for the reconciliation
// loop to exit. Idempotent; the engine returns to Disconnected.
func (e *SyncEngine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	done := e.done
	e.cancel = nil
	e.done = nil
	e.principal = ""
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	e.setStatus(SyncDisconnected)
}

func (e *SyncEngine) run(ctx context.Context, principal string, events <-chan WatchEvent, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			e.reconcile(ctx, principal, ev)
		case <-e.store.SyncRequests():
			if err := e.Push(ctx, principal); err != nil {
				e.log.Error("push failed", "error", err)
			}
		}
	}
}

// reconcile compares one observed remote document against local state and
// resolves by lastUpdated: remote newer pulls, local newer pushes, equal is
// a no-op. A missing remote document means this principal has never synced
// from any device, so local state becomes the remote master.
func (e *SyncEngine) reconcile(ctx context.Context, principal string, ev WatchEvent) {
	if ev.Err != nil {
		e.log.Error("remote subscription error", "error", ev.Err)
		e.setStatus(SyncError)
		return
	}

	e.setStatus(SyncReconciling)
	local := e.store.LastUpdated()

	switch {
	case ev.Doc == nil:
		e.log.Info("no remote document, pushing local state", "principal", principal)
		if err := e.Push(ctx, principal); err != nil {
			e.log.Error("initial push failed", "error", err)
		}
	case ev.Doc.Version > local:
		e.log.Info("remote is newer, pulling", "remote", ev.Doc.Version, "local", local)
		if err := e.apply(ev.Doc); err != nil {
			e.log.Error("applying remote snapshot failed", "error", err)
			e.setStatus(SyncError)
			return
		}
		e.setStatus(SyncSynced)
	case ev.Doc.Version < local:
		e.log.Info("local is newer, pushing", "remote", ev.Doc.Version, "local", local)
		if err := e.Push(ctx, principal); err != nil {
			e.log.Error("push failed", "error", err)
		}
	default:
		// Equal timestamps: consistent, often our own write echoing back.
		e.setStatus(SyncSynced)
	}
}

// apply installs a newer remote document wholesale.
func (e *SyncEngine) apply(doc *Document) error {
	e.mu.Lock()
	dec := e.dec
	e.mu.Unlock()

	data := doc.Data
	if dec != nil {
		plain, err := dec.Decrypt(data)
		if err != nil {
			return fmt.Errorf("decrypting remote snapshot: %w", err)
		}
		data = plain
	}
	snap, err := DecodeSnapshot(data)
	if err != nil {
		return err
	}
	return e.store.ReplaceFromRemote(snap)
}

// Push uploads the current local snapshot as the principal's remote
// document. Failures surface as the Error status and are not retried; the
// next mutation or remote event triggers the next attempt. Local mutations
// are never rolled back or blocked by a failed push.
func (e *SyncEngine) Push(ctx context.Context, principal string) error {
	e.setStatus(SyncReconciling)

	e.mu.Lock()
	enc := e.enc
	e.mu.Unlock()

	data, version, err := e.store.EncodedState()
	if err != nil {
		e.setStatus(SyncError)
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if enc != nil {
		if data, err = enc.Encrypt(data); err != nil {
			e.setStatus(SyncError)
			return fmt.Errorf("encrypting snapshot: %w", err)
		}
	}

	if err := e.remote.Put(ctx, principal, Document{Version: version, Data: data}); err != nil {
		e.setStatus(SyncError)
		return fmt.Errorf("pushing to remote: %w", err)
	}

	e.setStatus(SyncSynced)
	return nil
}
