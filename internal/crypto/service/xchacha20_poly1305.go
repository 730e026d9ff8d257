package service

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// xchachaPriority ranks XChaCha20-Poly1305 as the preferred default: its
// 192-bit nonce makes random nonce collisions negligible at any volume.
const xchachaPriority = 20

// XChaCha20Poly1305Provider implements the Provider interface using
// XChaCha20-Poly1305, the extended-nonce variant of ChaCha20-Poly1305.
//
// The 24-byte nonce is generated randomly per encryption; at that nonce size
// random generation is safe without any bookkeeping, which is why this
// provider carries the highest priority. The implementation is constant-time
// and needs no hardware support.
//
// Subkeys are derived with keyed BLAKE2b-256: the master key keys the hash and
// the personalization string plus canonical context bytes form the message.
//
// Thread safety: the provider is stateless and safe for concurrent use from
// multiple goroutines.
type XChaCha20Poly1305Provider struct {
	personalization []byte
}

// NewXChaCha20Poly1305Provider creates the XChaCha20-Poly1305 provider. The
// personalization string may be empty.
func NewXChaCha20Poly1305Provider(personalization string) *XChaCha20Poly1305Provider {
	var p []byte
	if personalization != "" {
		p = []byte(personalization)
	}
	return &XChaCha20Poly1305Provider{personalization: p}
}

// Algorithm returns the xchacha20-poly1305 identifier.
func (x *XChaCha20Poly1305Provider) Algorithm() cryptoDomain.Algorithm {
	return cryptoDomain.XChaCha20
}

// Priority ranks this provider for default selection.
func (x *XChaCha20Poly1305Provider) Priority() int {
	return xchachaPriority
}

// Available always reports true: the implementation is pure Go with no native
// backend dependency. The registry still evaluates the predicate so a
// hardware-gated provider can slot in beside this one.
func (x *XChaCha20Poly1305Provider) Available() bool {
	return true
}

// KeySize returns the 256-bit key length (32 bytes).
func (x *XChaCha20Poly1305Provider) KeySize() int {
	return cryptoDomain.KeySize
}

// NonceSize returns the extended nonce length (24 bytes).
func (x *XChaCha20Poly1305Provider) NonceSize() int {
	return cryptoDomain.XChaCha20.NonceSize()
}

// Encrypt seals plaintext under key with a fresh random 24-byte nonce, binding
// aad into the Poly1305 authentication. The tag is split off the sealed output
// and returned detached.
func (x *XChaCha20Poly1305Provider) Encrypt(plaintext, key, aad []byte) (ciphertext, nonce, tag []byte, err error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %v", cryptoDomain.ErrInvalidKeySize, err)
	}

	nonce = make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, plaintext, aad)
	split := len(sealed) - cryptoDomain.TagSize
	return sealed[:split], nonce, sealed[split:], nil
}

// Decrypt verifies the detached Poly1305 tag and opens the ciphertext. The
// underlying Poly1305 verification is constant-time and fails closed with
// cryptoDomain.ErrAuthenticationFailed.
func (x *XChaCha20Poly1305Provider) Decrypt(ciphertext, nonce, tag, key, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", cryptoDomain.ErrInvalidKeySize, err)
	}
	if len(nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("%w: nonce must be %d bytes", cryptoDomain.ErrMalformedEnvelope, aead.NonceSize())
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, nonce, sealed, aad)
	if err != nil {
		return nil, cryptoDomain.ErrAuthenticationFailed
	}
	return plaintext, nil
}

// DeriveKey derives a 32-byte subkey with keyed BLAKE2b-256 seeded with the
// master key. The personalization string (when configured) and the canonical
// context bytes are hashed with a zero-byte separator between them so the two
// inputs can never run together. Identical inputs always yield the identical
// subkey.
func (x *XChaCha20Poly1305Provider) DeriveKey(masterKey, context []byte) ([]byte, error) {
	if len(masterKey) != cryptoDomain.KeySize {
		return nil, cryptoDomain.ErrInvalidKeySize
	}

	h, err := blake2b.New256(masterKey)
	if err != nil {
		return nil, fmt.Errorf("blake2b initialization failed: %w", err)
	}
	if len(x.personalization) > 0 {
		h.Write(x.personalization)
		h.Write([]byte{0})
	}
	h.Write(context)
	return h.Sum(nil), nil
}
