package service

import (
	"fmt"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// Manager orchestrates field encryption and decryption: provider selection,
// subkey derivation, AAD binding, envelope construction and parsing, and error
// mapping.
//
// Every operation either completes fully or fails as a whole; there is no
// partial-success state. The manager holds only read-only state (registry,
// key ring, optional algorithm pin) and is safe for unlimited concurrent use.
// The only mutable collaborator is the optional request-scoped KeyCache, which
// callers pass explicitly per unit of work.
type Manager struct {
	registry *Registry
	ring     *cryptoDomain.KeyRing
	pinned   cryptoDomain.Algorithm
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithPinnedAlgorithm pins the manager to a specific provider for new
// encryptions instead of the registry default. Decryption always resolves the
// provider from the envelope's embedded algorithm identifier.
func WithPinnedAlgorithm(alg cryptoDomain.Algorithm) ManagerOption {
	return func(m *Manager) {
		m.pinned = alg
	}
}

// NewManager creates a Manager bound to a provider registry and a master key
// ring. Call ValidateConfiguration before serving traffic.
func NewManager(registry *Registry, ring *cryptoDomain.KeyRing, opts ...ManagerOption) *Manager {
	m := &Manager{registry: registry, ring: ring}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Ring returns the master key ring the manager encrypts under.
func (m *Manager) Ring() *cryptoDomain.KeyRing {
	return m.ring
}

// ValidateConfiguration verifies the manager can actually operate: at least
// one provider is available (or the pinned one is registered and available)
// and the ring's current key version resolves to a 32-byte key. It fails
// loudly so misconfiguration is caught at startup, not on the first write.
func (m *Manager) ValidateConfiguration() error {
	provider, err := m.encryptProvider()
	if err != nil {
		return err
	}

	current := m.ring.Current()
	if current == nil {
		return cryptoDomain.ErrCurrentVersionMissing
	}
	if len(current.Key) != provider.KeySize() {
		return fmt.Errorf(
			"%w: key version %s",
			cryptoDomain.ErrInvalidKeySize, current.Version,
		)
	}

	for _, version := range m.ring.Versions() {
		mk, _ := m.ring.Get(version)
		if len(mk.Key) != cryptoDomain.KeySize {
			return fmt.Errorf("%w: key version %s", cryptoDomain.ErrInvalidKeySize, version)
		}
	}

	return nil
}

// encryptProvider resolves the provider for new encryptions: the pinned
// algorithm when configured, otherwise the registry default.
func (m *Manager) encryptProvider() (Provider, error) {
	if m.pinned == "" {
		return m.registry.Default()
	}
	p, err := m.registry.Get(m.pinned)
	if err != nil {
		return nil, fmt.Errorf("%w: pinned algorithm %s", cryptoDomain.ErrProviderNotFound, m.pinned)
	}
	if !p.Available() {
		return nil, fmt.Errorf("%w: pinned algorithm %s", cryptoDomain.ErrNoProviderAvailable, m.pinned)
	}
	return p, nil
}

// subkey derives (or fetches from the cache) the field subkey for the master
// key and context. When derived outside a cache the caller owns the returned
// slice and must zero it after use.
func (m *Manager) subkey(
	provider Provider,
	masterKey *cryptoDomain.MasterKey,
	ectx cryptoDomain.EncryptionContext,
	cache *KeyCache,
) (key []byte, cached bool, err error) {
	if cache != nil {
		key, err = cache.GetOrDerive(provider, masterKey, ectx)
		return key, true, err
	}
	key, err = provider.DeriveKey(masterKey.Key, []byte(ectx.Path()))
	return key, false, err
}

// Encrypt encrypts one field value and returns the serialized envelope.
//
// The flow is: resolve provider (pin or default), derive the subkey for the
// ring's current key version and the context, build AAD bytes from the
// context's ordered AAD fields, seal, and serialize the envelope carrying the
// algorithm identifier and key version. Passing a nil cache derives the subkey
// fresh and zeroes it before returning.
func (m *Manager) Encrypt(
	plaintext []byte,
	ectx cryptoDomain.EncryptionContext,
	cache *KeyCache,
) ([]byte, error) {
	if err := ectx.Validate(); err != nil {
		return nil, err
	}

	provider, err := m.encryptProvider()
	if err != nil {
		return nil, err
	}

	return m.encryptWith(provider, m.ring.Current(), plaintext, ectx, cache)
}

// EncryptWithAlgorithm encrypts under an explicitly pinned provider for fields
// that override the process default.
func (m *Manager) EncryptWithAlgorithm(
	alg cryptoDomain.Algorithm,
	plaintext []byte,
	ectx cryptoDomain.EncryptionContext,
	cache *KeyCache,
) ([]byte, error) {
	if err := ectx.Validate(); err != nil {
		return nil, err
	}

	provider, err := m.registry.Get(alg)
	if err != nil {
		return nil, err
	}
	if !provider.Available() {
		return nil, fmt.Errorf("%w: %s", cryptoDomain.ErrNoProviderAvailable, alg)
	}

	return m.encryptWith(provider, m.ring.Current(), plaintext, ectx, cache)
}

func (m *Manager) encryptWith(
	provider Provider,
	masterKey *cryptoDomain.MasterKey,
	plaintext []byte,
	ectx cryptoDomain.EncryptionContext,
	cache *KeyCache,
) ([]byte, error) {
	key, cached, err := m.subkey(provider, masterKey, ectx, cache)
	if err != nil {
		return nil, err
	}
	if !cached {
		defer cryptoDomain.Zero(key)
	}

	ciphertext, nonce, tag, err := provider.Encrypt(plaintext, key, ectx.AADBytes())
	if err != nil {
		return nil, fmt.Errorf(
			"failed to encrypt %s under key version %s: %w",
			ectx.Path(), masterKey.Version, err,
		)
	}

	env := cryptoDomain.Envelope{
		Algorithm:  provider.Algorithm(),
		KeyVersion: masterKey.Version,
		Nonce:      nonce,
		Ciphertext: ciphertext,
		AuthTag:    tag,
	}
	return env.Marshal()
}

// Decrypt parses the envelope, resolves the provider by the embedded
// algorithm identifier, re-derives the subkey for the embedded key version,
// rebuilds AAD identically, and opens the ciphertext.
//
// Tag mismatch surfaces as ErrAuthenticationFailed and never as raw plaintext
// or an absent value. An envelope referencing a rotated-out key version fails
// with ErrUnknownKeyVersion so incomplete rotations stay visible. On success
// the plaintext is returned wrapped in a ConcealedValue and the intermediate
// buffer is zeroed.
func (m *Manager) Decrypt(
	envelopeBytes []byte,
	ectx cryptoDomain.EncryptionContext,
	cache *KeyCache,
) (*cryptoDomain.ConcealedValue, error) {
	if err := ectx.Validate(); err != nil {
		return nil, err
	}

	env, err := cryptoDomain.ParseEnvelope(envelopeBytes)
	if err != nil {
		return nil, err
	}

	provider, err := m.registry.Get(env.Algorithm)
	if err != nil {
		return nil, err
	}

	masterKey, ok := m.ring.Get(env.KeyVersion)
	if !ok {
		return nil, fmt.Errorf(
			"%w: envelope for %s references key version %s",
			cryptoDomain.ErrUnknownKeyVersion, ectx.Path(), env.KeyVersion,
		)
	}

	key, cached, err := m.subkey(provider, masterKey, ectx, cache)
	if err != nil {
		return nil, err
	}
	if !cached {
		defer cryptoDomain.Zero(key)
	}

	plaintext, err := provider.Decrypt(env.Ciphertext, env.Nonce, env.AuthTag, key, ectx.AADBytes())
	if err != nil {
		return nil, fmt.Errorf(
			"%w: %s under key version %s",
			cryptoDomain.ErrAuthenticationFailed, ectx.Path(), env.KeyVersion,
		)
	}

	value := cryptoDomain.NewConcealedValue(plaintext)
	cryptoDomain.Zero(plaintext)
	return value, nil
}
