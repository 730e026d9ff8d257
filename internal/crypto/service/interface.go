// Package service provides the cryptographic services for field-level envelope
// encryption: AEAD providers, provider selection, key derivation, the
// request-scoped key cache, and the encryption manager that orchestrates them.
package service

import (
	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// Provider is one AEAD algorithm implementation behind a common interface.
//
// A provider owns three concerns for its algorithm: authenticated encryption,
// authenticated decryption, and subkey derivation from master key material.
// Implementations are stateless and safe for concurrent use.
type Provider interface {
	// Algorithm returns the identifier persisted inside envelopes.
	Algorithm() cryptoDomain.Algorithm

	// Priority ranks the provider for default selection; higher wins.
	Priority() int

	// Available reports whether the provider's backend can be used in this
	// process. Evaluated once at registry selection time.
	Available() bool

	// KeySize returns the required subkey length in bytes.
	KeySize() int

	// NonceSize returns the required nonce length in bytes.
	NonceSize() int

	// Encrypt seals plaintext under key with a fresh random nonce, binding aad
	// into authentication. Returns ciphertext, nonce, and the detached
	// authentication tag.
	Encrypt(plaintext, key, aad []byte) (ciphertext, nonce, tag []byte, err error)

	// Decrypt verifies the tag and opens the ciphertext. The same aad used at
	// encryption time must be provided. Tag verification is constant-time and
	// fails closed: on any mismatch no plaintext is returned.
	Decrypt(ciphertext, nonce, tag, key, aad []byte) ([]byte, error)

	// DeriveKey derives a subkey of exactly KeySize bytes from the master key
	// and the canonical context bytes. Derivation is deterministic: identical
	// inputs always yield the identical subkey.
	DeriveKey(masterKey, context []byte) ([]byte, error)
}
