package dugsi_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"dugsi-go/internal/dugsi"
	"dugsi-go/internal/testutil"
)

const testSchool = "school-1"

// deniedRemote rejects every push and delivers a single empty watch event,
// simulating a principal whose credentials stopped being accepted.
type deniedRemote struct{}

func (deniedRemote) Load(context.Context, string) (*dugsi.Document, error) {
	return nil, nil
}

func (deniedRemote) Put(context.Context, string, dugsi.Document) error {
	return errors.New("permission denied")
}

func (deniedRemote) Watch(context.Context, string) (<-chan dugsi.WatchEvent, func(), error) {
	ch := make(chan dugsi.WatchEvent, 1)
	ch <- dugsi.WatchEvent{}
	return ch, func() {}, nil
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSyncEngine_InitialPush(t *testing.T) {
	t.Parallel()

	store, _ := openStore(t)
	remote := testutil.NewTestRemote()
	engine := dugsi.NewSyncEngine(store, remote, dugsi.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := engine.Start(ctx, testSchool); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer engine.Stop()

	// No remote document exists, so local state becomes the remote master.
	waitFor(t, "initial push", func() bool {
		doc, err := remote.Load(ctx, testSchool)
		return err == nil && doc != nil && doc.Version == store.LastUpdated()
	})

	if got := engine.Status(); got != dugsi.SyncSynced {
		t.Errorf("status = %q, want %q", got, dugsi.SyncSynced)
	}
}

func TestSyncEngine_LastWriterWins(t *testing.T) {
	t.Run("newer remote overwrites local wholesale", func(t *testing.T) {
		t.Parallel()

		local, _ := openStore(t)

		// A second device wrote after this one: its snapshot carries a
		// later lastUpdated and an extra student.
		other, otherClock := openStore(t)
		otherClock.Advance(time.Hour)
		added, err := other.AddStudent(dugsi.Student{FullName: "Remote Kid", Grade: "1"})
		if err != nil {
			t.Fatalf("AddStudent() error = %v", err)
		}
		data, version, err := other.EncodedState()
		if err != nil {
			t.Fatalf("EncodedState() error = %v", err)
		}

		remote := testutil.NewTestRemote()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if err := remote.Put(ctx, testSchool, dugsi.Document{Version: version, Data: data}); err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		engine := dugsi.NewSyncEngine(local, remote, dugsi.NewNopLogger())
		if err := engine.Start(ctx, testSchool); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		defer engine.Stop()

		waitFor(t, "remote pull", func() bool {
			return local.LastUpdated() == version
		})
		if _, ok := local.Student(added.ID); !ok {
			t.Errorf("pulled snapshot missing student %s", added.ID)
		}
	})

	t.Run("newer local overwrites remote", func(t *testing.T) {
		t.Parallel()

		store, clock := openStore(t)

		// The remote holds a snapshot older than local state.
		stale, err := store.ExportData()
		if err != nil {
			t.Fatalf("ExportData() error = %v", err)
		}
		staleVersion := store.LastUpdated() - 1000

		remote := testutil.NewTestRemote()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if err := remote.Put(ctx, testSchool, dugsi.Document{Version: staleVersion, Data: stale}); err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		clock.Advance(time.Minute)
		engine := dugsi.NewSyncEngine(store, remote, dugsi.NewNopLogger())
		if err := engine.Start(ctx, testSchool); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		defer engine.Stop()

		waitFor(t, "local push", func() bool {
			doc, err := remote.Load(ctx, testSchool)
			return err == nil && doc != nil && doc.Version == store.LastUpdated()
		})
	})

	t.Run("equal timestamps are a no-op", func(t *testing.T) {
		t.Parallel()

		store, _ := openStore(t)
		data, version, err := store.EncodedState()
		if err != nil {
			t.Fatalf("EncodedState() error = %v", err)
		}

		remote := testutil.NewTestRemote()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if err := remote.Put(ctx, testSchool, dugsi.Document{Version: version, Data: data}); err != nil {
			t.Fatalf("Put() error = %v", err)
		}

		engine := dugsi.NewSyncEngine(store, remote, dugsi.NewNopLogger())
		if err := engine.Start(ctx, testSchool); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		defer engine.Stop()

		waitFor(t, "synced status", func() bool {
			return engine.Status() == dugsi.SyncSynced
		})
		if got := store.LastUpdated(); got != version {
			t.Errorf("lastUpdated changed on equal reconcile: %d -> %d", version, got)
		}
	})
}

func TestSyncEngine_MutationTriggersPush(t *testing.T) {
	t.Parallel()

	store, clock := openStore(t)
	remote := testutil.NewTestRemote()
	engine := dugsi.NewSyncEngine(store, remote, dugsi.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := engine.Start(ctx, testSchool); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer engine.Stop()

	waitFor(t, "initial push", func() bool {
		doc, _ := remote.Load(ctx, testSchool)
		return doc != nil
	})

	clock.Advance(time.Minute)
	if _, err := store.AddStudent(dugsi.Student{FullName: "Pushed Kid", Grade: "1"}); err != nil {
		t.Fatalf("AddStudent() error = %v", err)
	}

	waitFor(t, "mutation push", func() bool {
		doc, err := remote.Load(ctx, testSchool)
		return err == nil && doc != nil && doc.Version == store.LastUpdated()
	})
}

func TestSyncEngine_PushFailure(t *testing.T) {
	t.Parallel()

	store, _ := openStore(t)
	engine := dugsi.NewSyncEngine(store, deniedRemote{}, dugsi.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := engine.Start(ctx, testSchool); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer engine.Stop()

	waitFor(t, "error status", func() bool {
		return engine.Status() == dugsi.SyncError
	})

	// Local state stays fully usable while the remote rejects us.
	if _, err := store.AddStudent(dugsi.Student{FullName: "Offline Kid", Grade: "1"}); err != nil {
		t.Fatalf("AddStudent() while in error state: %v", err)
	}
}

func TestSyncEngine_Stop(t *testing.T) {
	t.Parallel()

	store, _ := openStore(t)
	engine := dugsi.NewSyncEngine(store, testutil.NewTestRemote(), dugsi.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := engine.Start(ctx, testSchool); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	engine.Stop()
	if got := engine.Status(); got != dugsi.SyncDisconnected {
		t.Errorf("status after Stop = %q, want %q", got, dugsi.SyncDisconnected)
	}

	// Stop is idempotent, and Start after Stop re-subscribes cleanly.
	engine.Stop()
	if err := engine.Start(ctx, testSchool); err != nil {
		t.Fatalf("Start() after Stop error = %v", err)
	}
	engine.Stop()
}

func TestSyncEngine_Encryption(t *testing.T) {
	t.Parallel()

	store, _ := openStore(t)
	remote := testutil.NewTestRemote()
	engine := dugsi.NewSyncEngine(store, remote, dugsi.NewNopLogger())

	enc := testutil.NewTestEncryptor()
	dec, err := enc.Unlock("passphrase")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	engine.SetCipher(enc, dec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := engine.Push(ctx, testSchool); err != nil {
		t.Fatalf("Push() error = %v", err)
	}

	doc, err := remote.Load(ctx, testSchool)
	if err != nil || doc == nil {
		t.Fatalf("Load() = %v, %v", doc, err)
	}

	// The stored payload must not be plain snapshot JSON.
	if _, err := dugsi.DecodeSnapshot(doc.Data); err == nil {
		t.Error("pushed payload decodes without the key")
	}

	plain, err := dec.Decrypt(doc.Data)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	snap, err := dugsi.DecodeSnapshot(plain)
	if err != nil {
		t.Fatalf("DecodeSnapshot() after decrypt error = %v", err)
	}
	if snap.LastUpdated != doc.Version {
		t.Errorf("payload lastUpdated %d != document version %d", snap.LastUpdated, doc.Version)
	}
}
