package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"dugsi-go/internal/config"
	"dugsi-go/internal/dugsi"
	"dugsi-go/internal/encryption"
	"dugsi-go/internal/localstore"
	"dugsi-go/internal/remote"
)

// DugsiApp is the application layer between the CLI and the store. It
// constructs all dependencies from config and manages their lifecycle on
// Close.
type DugsiApp struct {
	cfg       *config.Config
	local     dugsi.LocalStore
	store     *dugsi.Store
	remote    dugsi.Remote
	engine    *dugsi.SyncEngine
	encryptor dugsi.Encryptor
	logger    dugsi.Logger
	logFile   *os.File
}

// NewDugsiApp creates a fully wired DugsiApp from the given config.
// operation identifies the CLI command being run (e.g. "AddStudent",
// "SyncPush"). The caller must call Close when done.
func NewDugsiApp(cfg *config.Config, operation string) (*DugsiApp, error) {
	if cfg.SchoolID == "" {
		return nil, fmt.Errorf("school_id not configured")
	}

	opID := time.Now().UTC().Format("20060102T150405Z") + "-" + operation
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	local, err := localstore.NewLocalStoreFromConfig(cfg.Store, cfg.SchoolID, logger)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating local store: %w", err)
	}

	store, err := dugsi.Open(local, dugsi.RealClock{}, dugsi.UUIDGenerator{}, logger)
	if err != nil {
		local.Close()
		logFile.Close()
		return nil, fmt.Errorf("opening store: %w", err)
	}

	rem, err := remote.NewRemoteFromConfig(context.Background(), cfg.Remote, logger)
	if err != nil {
		local.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating remote: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		local.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	a := &DugsiApp{
		cfg:       cfg,
		local:     local,
		store:     store,
		remote:    rem,
		encryptor: enc,
		logger:    logger,
		logFile:   logFile,
	}
	if rem != nil {
		a.engine = dugsi.NewSyncEngine(store, rem, logger)
	}
	return a, nil
}

// Store returns the school data store.
func (a *DugsiApp) Store() *dugsi.Store {
	return a.store
}

// Sync returns the sync engine, or nil when no remote is configured.
func (a *DugsiApp) Sync() *dugsi.SyncEngine {
	return a.engine
}

// Encryptor returns the configured encryptor.
func (a *DugsiApp) Encryptor() dugsi.Encryptor {
	return a.encryptor
}

// Config returns the loaded configuration.
func (a *DugsiApp) Config() *config.Config {
	return a.cfg
}

// UnlockEncryption unlocks the private key with the passphrase and arms the
// sync engine with the cipher pair. Pushed snapshots are encrypted from
// then on, and encrypted remote snapshots can be applied.
func (a *DugsiApp) UnlockEncryption(passphrase string) error {
	if a.engine == nil {
		return fmt.Errorf("no remote configured")
	}
	dec, err := a.encryptor.Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking encryption key: %w", err)
	}
	a.engine.SetCipher(a.encryptor, dec)
	return nil
}

// StartSync starts live synchronization for the configured school.
func (a *DugsiApp) StartSync(ctx context.Context) error {
	if a.engine == nil {
		return fmt.Errorf("no remote configured")
	}
	return a.engine.Start(ctx, a.cfg.SchoolID)
}

// PushNow uploads the current snapshot once, without a live subscription.
func (a *DugsiApp) PushNow(ctx context.Context) error {
	if a.engine == nil {
		return fmt.Errorf("no remote configured")
	}
	return a.engine.Push(ctx, a.cfg.SchoolID)
}

// Close stops synchronization and releases the local store and log file.
func (a *DugsiApp) Close() error {
	if a.engine != nil {
		a.engine.Stop()
	}
	err := a.local.Close()
	if a.logFile != nil {
		a.logFile.Close()
	}
	return err
}
