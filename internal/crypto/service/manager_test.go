package service

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

func newTestManager(t *testing.T, current string, opts ...ManagerOption) *Manager {
	t.Helper()

	ring, err := cryptoDomain.NewKeyRing([]cryptoDomain.MasterKey{
		{Version: "v1", Key: randomBytes(t, 32)},
		{Version: "v2", Key: randomBytes(t, 32)},
	}, current)
	require.NoError(t, err)
	t.Cleanup(ring.Close)

	registry, err := NewDefaultRegistry("test-deploy")
	require.NoError(t, err)

	return NewManager(registry, ring, opts...)
}

func revealString(t *testing.T, cv *cryptoDomain.ConcealedValue) string {
	t.Helper()
	var out string
	require.NoError(t, cv.Reveal(func(plaintext []byte) error {
		out = string(plaintext)
		return nil
	}))
	return out
}

func TestManagerValidateConfiguration(t *testing.T) {
	t.Run("valid configuration", func(t *testing.T) {
		manager := newTestManager(t, "v1")
		assert.NoError(t, manager.ValidateConfiguration())
	})

	t.Run("pinned algorithm must be registered", func(t *testing.T) {
		manager := newTestManager(t, "v1", WithPinnedAlgorithm("rot13"))
		assert.ErrorIs(t, manager.ValidateConfiguration(), cryptoDomain.ErrProviderNotFound)
	})

	t.Run("no provider available", func(t *testing.T) {
		ring, err := cryptoDomain.NewKeyRing(
			[]cryptoDomain.MasterKey{{Version: "v1", Key: randomBytes(t, 32)}}, "v1")
		require.NoError(t, err)
		defer ring.Close()

		registry, err := NewRegistry(&fakeProvider{alg: "a", priority: 1, available: false})
		require.NoError(t, err)

		manager := NewManager(registry, ring)
		assert.ErrorIs(t, manager.ValidateConfiguration(), cryptoDomain.ErrNoProviderAvailable)
	})
}

func TestManagerEncryptDecrypt(t *testing.T) {
	manager := newTestManager(t, "v1")
	ectx := cryptoDomain.EncryptionContext{RecordType: "User", FieldName: "diary_entry", RecordID: "u1"}

	t.Run("round-trip with default provider", func(t *testing.T) {
		envelope, err := manager.Encrypt([]byte("hello world"), ectx, nil)
		require.NoError(t, err)

		cv, err := manager.Decrypt(envelope, ectx, nil)
		require.NoError(t, err)
		assert.Equal(t, "hello world", revealString(t, cv))
	})

	t.Run("envelope carries default algorithm and current version", func(t *testing.T) {
		envelope, err := manager.Encrypt([]byte("x"), ectx, nil)
		require.NoError(t, err)

		env, err := cryptoDomain.ParseEnvelope(envelope)
		require.NoError(t, err)
		assert.Equal(t, cryptoDomain.XChaCha20, env.Algorithm)
		assert.Equal(t, "v1", env.KeyVersion)
	})

	t.Run("round-trip with explicit algorithm", func(t *testing.T) {
		envelope, err := manager.EncryptWithAlgorithm(cryptoDomain.AESGCM, []byte("hello world"), ectx, nil)
		require.NoError(t, err)

		env, err := cryptoDomain.ParseEnvelope(envelope)
		require.NoError(t, err)
		assert.Equal(t, cryptoDomain.AESGCM, env.Algorithm)

		cv, err := manager.Decrypt(envelope, ectx, nil)
		require.NoError(t, err)
		assert.Equal(t, "hello world", revealString(t, cv))
	})

	t.Run("round-trip empty plaintext", func(t *testing.T) {
		envelope, err := manager.Encrypt(nil, ectx, nil)
		require.NoError(t, err)

		cv, err := manager.Decrypt(envelope, ectx, nil)
		require.NoError(t, err)
		assert.Equal(t, "", revealString(t, cv))
	})

	t.Run("invalid context rejected", func(t *testing.T) {
		_, err := manager.Encrypt([]byte("x"), cryptoDomain.EncryptionContext{}, nil)
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidContext)

		_, err = manager.Decrypt([]byte("{}"), cryptoDomain.EncryptionContext{}, nil)
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidContext)
	})
}

func TestManagerPinnedAlgorithm(t *testing.T) {
	manager := newTestManager(t, "v1", WithPinnedAlgorithm(cryptoDomain.AESGCM))
	ectx := cryptoDomain.EncryptionContext{RecordType: "User", FieldName: "email", RecordID: "u1"}

	envelope, err := manager.Encrypt([]byte("pinned"), ectx, nil)
	require.NoError(t, err)

	env, err := cryptoDomain.ParseEnvelope(envelope)
	require.NoError(t, err)
	assert.Equal(t, cryptoDomain.AESGCM, env.Algorithm)
}

func TestManagerKeyIsolation(t *testing.T) {
	manager := newTestManager(t, "v1")
	plaintext := []byte("same plaintext")

	base := cryptoDomain.EncryptionContext{RecordType: "User", FieldName: "email", RecordID: "u1"}

	otherField := base
	otherField.FieldName = "phone"

	otherRecord := base
	otherRecord.RecordID = "u2"

	envelope, err := manager.Encrypt(plaintext, base, nil)
	require.NoError(t, err)

	t.Run("different field name cannot decrypt", func(t *testing.T) {
		_, err := manager.Decrypt(envelope, otherField, nil)
		assert.ErrorIs(t, err, cryptoDomain.ErrAuthenticationFailed)
	})

	t.Run("different record id cannot decrypt", func(t *testing.T) {
		_, err := manager.Decrypt(envelope, otherRecord, nil)
		assert.ErrorIs(t, err, cryptoDomain.ErrAuthenticationFailed)
	})

	t.Run("original context still decrypts", func(t *testing.T) {
		cv, err := manager.Decrypt(envelope, base, nil)
		require.NoError(t, err)
		assert.Equal(t, string(plaintext), revealString(t, cv))
	})
}

func TestManagerAADBinding(t *testing.T) {
	manager := newTestManager(t, "v1")

	withAAD := cryptoDomain.EncryptionContext{
		RecordType: "User", FieldName: "ssn", RecordID: "u1",
		AADFields: []cryptoDomain.AADField{
			{Name: "email", Value: []byte("a@b.c")},
			{Name: "tier", Value: []byte("gold")},
		},
	}

	envelope, err := manager.Encrypt([]byte("123-45-6789"), withAAD, nil)
	require.NoError(t, err)

	t.Run("matching AAD decrypts", func(t *testing.T) {
		cv, err := manager.Decrypt(envelope, withAAD, nil)
		require.NoError(t, err)
		assert.Equal(t, "123-45-6789", revealString(t, cv))
	})

	t.Run("changed AAD value fails authentication", func(t *testing.T) {
		changed := withAAD
		changed.AADFields = []cryptoDomain.AADField{
			{Name: "email", Value: []byte("evil@b.c")},
			{Name: "tier", Value: []byte("gold")},
		}
		_, err := manager.Decrypt(envelope, changed, nil)
		assert.ErrorIs(t, err, cryptoDomain.ErrAuthenticationFailed)
	})

	t.Run("reordered AAD fields fail authentication", func(t *testing.T) {
		reordered := withAAD
		reordered.AADFields = []cryptoDomain.AADField{
			{Name: "tier", Value: []byte("gold")},
			{Name: "email", Value: []byte("a@b.c")},
		}
		_, err := manager.Decrypt(envelope, reordered, nil)
		assert.ErrorIs(t, err, cryptoDomain.ErrAuthenticationFailed)
	})

	t.Run("dropped AAD fields fail authentication", func(t *testing.T) {
		dropped := withAAD
		dropped.AADFields = nil
		_, err := manager.Decrypt(envelope, dropped, nil)
		assert.ErrorIs(t, err, cryptoDomain.ErrAuthenticationFailed)
	})
}

func TestManagerDecryptErrors(t *testing.T) {
	manager := newTestManager(t, "v1")
	ectx := cryptoDomain.EncryptionContext{RecordType: "User", FieldName: "email", RecordID: "u1"}

	t.Run("malformed envelope", func(t *testing.T) {
		_, err := manager.Decrypt([]byte("not an envelope"), ectx, nil)
		assert.ErrorIs(t, err, cryptoDomain.ErrMalformedEnvelope)
	})

	t.Run("unknown key version", func(t *testing.T) {
		envelope, err := manager.Encrypt([]byte("x"), ectx, nil)
		require.NoError(t, err)

		var doc map[string]any
		require.NoError(t, json.Unmarshal(envelope, &doc))
		doc["key_version"] = "v99"
		mutated, err := json.Marshal(doc)
		require.NoError(t, err)

		_, err = manager.Decrypt(mutated, ectx, nil)
		assert.ErrorIs(t, err, cryptoDomain.ErrUnknownKeyVersion)
	})

	t.Run("tampered ciphertext fails authentication", func(t *testing.T) {
		envelope, err := manager.Encrypt([]byte("untampered"), ectx, nil)
		require.NoError(t, err)

		var doc map[string]string
		require.NoError(t, json.Unmarshal(envelope, &doc))
		raw, err := base64.StdEncoding.DecodeString(doc["ciphertext"])
		require.NoError(t, err)
		raw[0] ^= 1
		doc["ciphertext"] = base64.StdEncoding.EncodeToString(raw)
		mutated, err := json.Marshal(doc)
		require.NoError(t, err)

		_, err = manager.Decrypt(mutated, ectx, nil)
		assert.ErrorIs(t, err, cryptoDomain.ErrAuthenticationFailed)
	})
}

func TestManagerWithKeyCache(t *testing.T) {
	manager := newTestManager(t, "v1")
	ectx := cryptoDomain.EncryptionContext{RecordType: "User", FieldName: "email", RecordID: "u1"}

	cache := NewKeyCache()
	defer cache.Close()

	envelope, err := manager.Encrypt([]byte("cached"), ectx, cache)
	require.NoError(t, err)

	cv, err := manager.Decrypt(envelope, ectx, cache)
	require.NoError(t, err)
	assert.Equal(t, "cached", revealString(t, cv))

	// One derivation shared by encrypt and decrypt.
	assert.Equal(t, 1, cache.Len())
	provider, err := manager.registry.Get(cryptoDomain.XChaCha20)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), cache.Refs(provider, "v1", ectx))
}

// Scenario from the engine's reference behaviour: encrypt under v1 with
// AES-GCM, decrypt with the same context, then swap the record identifier and
// observe an authentication failure.
func TestManagerScenarioDiaryEntry(t *testing.T) {
	manager := newTestManager(t, "v1")

	ectx := cryptoDomain.EncryptionContext{RecordType: "User", FieldName: "diary_entry", RecordID: "u1"}
	envelope, err := manager.EncryptWithAlgorithm(cryptoDomain.AESGCM, []byte("hello world"), ectx, nil)
	require.NoError(t, err)

	cv, err := manager.Decrypt(envelope, ectx, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello world", revealString(t, cv))

	swapped := ectx
	swapped.RecordID = "u2"
	_, err = manager.Decrypt(envelope, swapped, nil)
	assert.ErrorIs(t, err, cryptoDomain.ErrAuthenticationFailed)
}
