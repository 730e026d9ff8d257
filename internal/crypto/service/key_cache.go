package service

import (
	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// KeyCache holds derived subkeys for the duration of one logical unit of work
// (one request, one rotation batch) so repeated operations against the same
// field do not re-run the KDF.
//
// A cache belongs to exactly one unit of work and must not be shared across
// concurrent units: create it at scope start, pass it explicitly to the
// manager's encrypt/decrypt calls, and defer Close so every entry is
// best-effort-zeroed when the scope ends, including on error. The cache is not
// safe for concurrent use.
//
// Entries are keyed by (key version, algorithm, canonical context path) and
// carry a monotonically increasing reference count.
type KeyCache struct {
	entries map[keyCacheKey]*keyCacheEntry
	closed  bool
}

type keyCacheKey struct {
	version   string
	algorithm cryptoDomain.Algorithm
	path      string
}

type keyCacheEntry struct {
	key  []byte
	refs uint64
}

// NewKeyCache creates an empty request-scoped cache. Callers must defer Close.
func NewKeyCache() *KeyCache {
	return &KeyCache{entries: make(map[keyCacheKey]*keyCacheEntry)}
}

// GetOrDerive returns the cached subkey for (masterKey.Version, provider
// algorithm, context path), deriving and caching it on first use. The returned
// slice is owned by the cache: callers must not modify or zero it, and must
// not retain it past Close.
func (c *KeyCache) GetOrDerive(
	provider Provider,
	masterKey *cryptoDomain.MasterKey,
	ectx cryptoDomain.EncryptionContext,
) ([]byte, error) {
	if c.closed {
		return nil, cryptoDomain.ErrAlreadyCleared
	}

	k := keyCacheKey{
		version:   masterKey.Version,
		algorithm: provider.Algorithm(),
		path:      ectx.Path(),
	}

	if entry, ok := c.entries[k]; ok {
		entry.refs++
		return entry.key, nil
	}

	key, err := provider.DeriveKey(masterKey.Key, []byte(ectx.Path()))
	if err != nil {
		return nil, err
	}

	c.entries[k] = &keyCacheEntry{key: key, refs: 1}
	return key, nil
}

// Len returns the number of cached subkeys.
func (c *KeyCache) Len() int {
	return len(c.entries)
}

// Refs returns the reference count recorded for a context and key version
// under the provider's algorithm, or 0 when nothing is cached.
func (c *KeyCache) Refs(provider Provider, version string, ectx cryptoDomain.EncryptionContext) uint64 {
	entry, ok := c.entries[keyCacheKey{version: version, algorithm: provider.Algorithm(), path: ectx.Path()}]
	if !ok {
		return 0
	}
	return entry.refs
}

// Close drains the cache and best-effort-zeroes every cached subkey. The cache
// is unusable afterwards; GetOrDerive fails with ErrAlreadyCleared.
func (c *KeyCache) Close() {
	if c.closed {
		return
	}
	for _, entry := range c.entries {
		cryptoDomain.Zero(entry.key)
	}
	c.entries = map[keyCacheKey]*keyCacheEntry{}
	c.closed = true
}
