package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestZero(t *testing.T) {
	t.Run("zeroes buffer", func(t *testing.T) {
		b := []byte{1, 2, 3, 4}
		Zero(b)
		assert.Equal(t, []byte{0, 0, 0, 0}, b)
	})

	t.Run("nil is a no-op", func(t *testing.T) {
		Zero(nil)
	})
}

func TestAlgorithm(t *testing.T) {
	assert.Equal(t, 12, AESGCM.NonceSize())
	assert.Equal(t, 24, XChaCha20.NonceSize())
	assert.Equal(t, 0, Algorithm("rot13").NonceSize())

	assert.True(t, AESGCM.Valid())
	assert.True(t, XChaCha20.Valid())
	assert.False(t, Algorithm("").Valid())
}
