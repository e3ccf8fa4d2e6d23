package localstore

import (
	"fmt"
	"path/filepath"

	"dugsi-go/internal/config"
	"dugsi-go/internal/dugsi"
)

// NewLocalStoreFromConfig creates a LocalStore based on the store config
// type.
func NewLocalStoreFromConfig(cfg config.StoreConfig, schoolID string, log dugsi.Logger) (dugsi.LocalStore, error) {
	switch cfg.Type {
	case "sqlite", "":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite store")
		}
		return NewSQLiteStore(filepath.Join(cfg.DataDir, schoolID+".db"), log)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
