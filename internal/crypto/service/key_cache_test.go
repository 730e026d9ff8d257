package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

func TestKeyCacheGetOrDerive(t *testing.T) {
	provider := NewXChaCha20Poly1305Provider("")
	masterKey := &cryptoDomain.MasterKey{Version: "v1", Key: randomBytes(t, 32)}
	ectx := cryptoDomain.EncryptionContext{RecordType: "User", FieldName: "email", RecordID: "u1"}

	t.Run("derives once and increments refs", func(t *testing.T) {
		cache := NewKeyCache()
		defer cache.Close()

		k1, err := cache.GetOrDerive(provider, masterKey, ectx)
		require.NoError(t, err)
		k2, err := cache.GetOrDerive(provider, masterKey, ectx)
		require.NoError(t, err)

		assert.Equal(t, k1, k2)
		assert.Equal(t, 1, cache.Len())
		assert.Equal(t, uint64(2), cache.Refs(provider, "v1", ectx))
	})

	t.Run("distinct contexts get distinct entries", func(t *testing.T) {
		cache := NewKeyCache()
		defer cache.Close()

		k1, err := cache.GetOrDerive(provider, masterKey, ectx)
		require.NoError(t, err)

		other := ectx
		other.RecordID = "u2"
		k2, err := cache.GetOrDerive(provider, masterKey, other)
		require.NoError(t, err)

		assert.NotEqual(t, k1, k2)
		assert.Equal(t, 2, cache.Len())
	})

	t.Run("distinct key versions get distinct entries", func(t *testing.T) {
		cache := NewKeyCache()
		defer cache.Close()

		_, err := cache.GetOrDerive(provider, masterKey, ectx)
		require.NoError(t, err)

		v2 := &cryptoDomain.MasterKey{Version: "v2", Key: randomBytes(t, 32)}
		_, err = cache.GetOrDerive(provider, v2, ectx)
		require.NoError(t, err)

		assert.Equal(t, 2, cache.Len())
	})

	t.Run("distinct algorithms get distinct entries", func(t *testing.T) {
		cache := NewKeyCache()
		defer cache.Close()

		_, err := cache.GetOrDerive(provider, masterKey, ectx)
		require.NoError(t, err)
		_, err = cache.GetOrDerive(NewAESGCMProvider(""), masterKey, ectx)
		require.NoError(t, err)

		assert.Equal(t, 2, cache.Len())
	})
}

func TestKeyCacheClose(t *testing.T) {
	provider := NewXChaCha20Poly1305Provider("")
	masterKey := &cryptoDomain.MasterKey{Version: "v1", Key: randomBytes(t, 32)}
	ectx := cryptoDomain.EncryptionContext{RecordType: "User", FieldName: "email", RecordID: "u1"}

	cache := NewKeyCache()
	key, err := cache.GetOrDerive(provider, masterKey, ectx)
	require.NoError(t, err)

	cache.Close()

	assert.Equal(t, make([]byte, len(key)), key, "cached subkey must be zeroed on close")
	assert.Equal(t, 0, cache.Len())

	_, err = cache.GetOrDerive(provider, masterKey, ectx)
	assert.ErrorIs(t, err, cryptoDomain.ErrAlreadyCleared)

	// Idempotent.
	cache.Close()
}
