package testutil

import (
	"dugsi-go/internal/dugsi"
	"dugsi-go/internal/remote"
)

// NewTestRemote creates an in-memory remote for testing.
func NewTestRemote() *remote.MemoryRemote {
	return remote.NewMemoryRemote()
}

var _ dugsi.Remote = (*remote.MemoryRemote)(nil)
