package testutil

import (
	"dugsi-go/internal/dugsi"
	"dugsi-go/internal/encryption"
)

// NewTestEncryptor creates a deterministic encryptor for testing.
func NewTestEncryptor() dugsi.Encryptor {
	return encryption.NewTestEncryptor()
}
