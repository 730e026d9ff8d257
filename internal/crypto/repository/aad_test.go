package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

func TestMarshalAADFields(t *testing.T) {
	t.Run("ordered array with string values", func(t *testing.T) {
		data, err := marshalAADFields([]cryptoDomain.AADField{
			{Name: "user_id", Value: []byte("user-42")},
			{Name: "tenant", Value: []byte("acme")},
		})
		require.NoError(t, err)
		assert.JSONEq(
			t,
			`[{"name":"user_id","value":"user-42"},{"name":"tenant","value":"acme"}]`,
			string(data),
		)
	})

	t.Run("no fields marshals to empty array", func(t *testing.T) {
		data, err := marshalAADFields(nil)
		require.NoError(t, err)
		assert.Equal(t, "[]", string(data))
	})
}

func TestUnmarshalAADFields(t *testing.T) {
	t.Run("round trip preserves order and bytes", func(t *testing.T) {
		original := []cryptoDomain.AADField{
			{Name: "user_id", Value: []byte("user-42")},
			{Name: "tenant", Value: []byte("acme")},
		}
		data, err := marshalAADFields(original)
		require.NoError(t, err)

		fields, err := unmarshalAADFields(data)
		require.NoError(t, err)
		assert.Equal(t, original, fields)
	})

	t.Run("empty input is nil", func(t *testing.T) {
		fields, err := unmarshalAADFields(nil)
		require.NoError(t, err)
		assert.Nil(t, fields)
	})

	t.Run("empty array is nil", func(t *testing.T) {
		fields, err := unmarshalAADFields([]byte("[]"))
		require.NoError(t, err)
		assert.Nil(t, fields)
	})

	t.Run("invalid json is rejected", func(t *testing.T) {
		_, err := unmarshalAADFields([]byte("{not json"))
		require.Error(t, err)
	})
}
