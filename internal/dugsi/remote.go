package dugsi

import "context"

// Document is one principal's snapshot as held by the remote store. Data is
// the encoded snapshot (age-encrypted when an encryptor is configured);
// Version duplicates the snapshot's lastUpdated so replicas can compare
// timestamps without decoding or decrypting the payload.
type Document struct {
	Version int64  `json:"version"`
	Data    []byte `json:"data"`
}

// WatchEvent is one observation delivered by a remote subscription.
// Doc is nil when the principal has no remote document yet. Err is set when
// the subscription itself failed (e.g. permission denied); the local state
// remains authoritative in that case.
type WatchEvent struct {
	Doc *Document
	Err error
}

// Remote is a document store holding one snapshot document per
// authenticated principal. Writes are whole-document upserts; reads are
// either one-shot loads or live subscriptions.
type Remote interface {
	// Load returns the principal's document, or (nil, nil) when none
	// exists yet.
	Load(ctx context.Context, principal string) (*Document, error)

	// Put replaces the principal's document wholesale.
	Put(ctx context.Context, principal string, doc Document) error

	// Watch subscribes to the principal's document. The current state is
	// delivered as the first event (Doc nil if absent), then one event per
	// observed change. The returned cancel function tears down the
	// subscription and is safe to call more than once; the channel closes
	// once the subscription ends.
	Watch(ctx context.Context, principal string) (<-chan WatchEvent, func(), error)
}
