package dugsi

// Encryptor encrypts snapshot payloads before they leave the device.
// Encryption uses the public key only; decryption requires a passphrase to
// unlock the private key, producing a DecryptionContext for the session.
// The remote store only ever sees ciphertext plus the version number.
type Encryptor interface {
	// Setup performs one-time key generation: a key pair is created, the
	// public key stored in plaintext, the private key encrypted with the
	// provided passphrase.
	Setup(passphrase string) error

	// Encrypt encrypts an encoded snapshot using the public key only.
	Encrypt(plaintext []byte) ([]byte, error)

	// Unlock decrypts the private key using the passphrase and returns a
	// DecryptionContext valid for the duration of the session.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether both key files exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory for the
// duration of a sync session. The unlocked key is never written to disk.
type DecryptionContext interface {
	// Decrypt decrypts a remote snapshot payload.
	Decrypt(ciphertext []byte) ([]byte, error)
}
