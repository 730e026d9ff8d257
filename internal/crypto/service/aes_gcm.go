package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// aesGCMPriority ranks AES-GCM below XChaCha20-Poly1305: it is the guaranteed
// fallback built on the standard library's ubiquitous crypto, not the
// preferred default.
const aesGCMPriority = 10

// AESGCMProvider implements the Provider interface using AES-256-GCM.
//
// AES-GCM combines AES encryption with GMAC authentication. This provider uses
// a 256-bit key and a randomly generated 12-byte nonce per encryption, with the
// 16-byte tag carried detached in the envelope. It is hardware-accelerated on
// CPUs with AES-NI and is always available, which makes it the guaranteed
// fallback when no stronger provider can be selected.
//
// Subkeys are derived with HKDF-SHA256 seeded with the master key. The
// personalization string, when configured, is used as the HKDF salt for
// cross-deployment domain separation.
//
// Thread safety: the provider is stateless and safe for concurrent use from
// multiple goroutines. Each encryption generates a unique nonce independently.
type AESGCMProvider struct {
	personalization []byte
}

// NewAESGCMProvider creates the AES-256-GCM provider. The personalization
// string may be empty, in which case HKDF runs with a nil salt.
func NewAESGCMProvider(personalization string) *AESGCMProvider {
	var p []byte
	if personalization != "" {
		p = []byte(personalization)
	}
	return &AESGCMProvider{personalization: p}
}

// Algorithm returns the aes-gcm identifier.
func (a *AESGCMProvider) Algorithm() cryptoDomain.Algorithm {
	return cryptoDomain.AESGCM
}

// Priority ranks this provider for default selection.
func (a *AESGCMProvider) Priority() int {
	return aesGCMPriority
}

// Available always reports true: AES-GCM is built on the standard library and
// has no backend dependency.
func (a *AESGCMProvider) Available() bool {
	return true
}

// KeySize returns the AES-256 key length (32 bytes).
func (a *AESGCMProvider) KeySize() int {
	return cryptoDomain.KeySize
}

// NonceSize returns the standard GCM nonce length (12 bytes).
func (a *AESGCMProvider) NonceSize() int {
	return cryptoDomain.AESGCM.NonceSize()
}

func (a *AESGCMProvider) newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != cryptoDomain.KeySize {
		return nil, cryptoDomain.ErrInvalidKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}

// Encrypt seals plaintext under key with a fresh random 12-byte nonce, binding
// aad into the GMAC authentication. The tag is split off the sealed output and
// returned detached.
func (a *AESGCMProvider) Encrypt(plaintext, key, aad []byte) (ciphertext, nonce, tag []byte, err error) {
	aead, err := a.newAEAD(key)
	if err != nil {
		return nil, nil, nil, err
	}

	nonce = make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, plaintext, aad)
	split := len(sealed) - cryptoDomain.TagSize
	return sealed[:split], nonce, sealed[split:], nil
}

// Decrypt verifies the detached tag and opens the ciphertext. Verification is
// constant-time (GHASH comparison inside crypto/cipher does not short-circuit)
// and fails closed with cryptoDomain.ErrAuthenticationFailed.
func (a *AESGCMProvider) Decrypt(ciphertext, nonce, tag, key, aad []byte) ([]byte, error) {
	aead, err := a.newAEAD(key)
	if err != nil {
		return nil, err
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

// DeriveKey derives a 32-byte subkey with HKDF-SHA256: the master key is the
// HKDF secret, the personalization string the salt, and the canonical context
// bytes the info. Identical inputs always yield the identical subkey.
func (a *AESGCMProvider) DeriveKey(masterKey, context []byte) ([]byte, error) {
	if len(masterKey) != cryptoDomain.KeySize {
		return nil, cryptoDomain.ErrInvalidKeySize
	}

	reader := hkdf.New(sha256.New, masterKey, a.personalization, context)
	key := make([]byte, cryptoDomain.KeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("hkdf derivation failed: %w", err)
	}
	return key, nil
}
