package domain

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptionContextValidate(t *testing.T) {
	t.Run("valid context", func(t *testing.T) {
		ectx := EncryptionContext{RecordType: "User", FieldName: "diary_entry", RecordID: "u1"}
		assert.NoError(t, ectx.Validate())
	})

	t.Run("missing components", func(t *testing.T) {
		tests := []struct {
			name string
			ectx EncryptionContext
		}{
			{"missing record type", EncryptionContext{FieldName: "f", RecordID: "1"}},
			{"missing field name", EncryptionContext{RecordType: "t", RecordID: "1"}},
			{"missing record id", EncryptionContext{RecordType: "t", FieldName: "f"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				assert.ErrorIs(t, tt.ectx.Validate(), ErrInvalidContext)
			})
		}
	})
}

func TestEncryptionContextPath(t *testing.T) {
	ectx := EncryptionContext{RecordType: "User", FieldName: "diary_entry", RecordID: "u1"}
	assert.Equal(t, "User:diary_entry:u1", ectx.Path())
}

func TestEncryptionContextAADBytes(t *testing.T) {
	t.Run("no AAD fields returns nil", func(t *testing.T) {
		ectx := EncryptionContext{RecordType: "t", FieldName: "f", RecordID: "1"}
		assert.Nil(t, ectx.AADBytes())
	})

	t.Run("length-prefixed concatenation", func(t *testing.T) {
		ectx := EncryptionContext{
			RecordType: "t", FieldName: "f", RecordID: "1",
			AADFields: []AADField{
				{Name: "email", Value: []byte("a@b.c")},
				{Name: "tier", Value: []byte("gold")},
			},
		}

		aad := ectx.AADBytes()
		require.NotNil(t, aad)

		// First field: len("email")=5, "email", len("a@b.c")=5, "a@b.c"
		assert.Equal(t, uint32(5), binary.BigEndian.Uint32(aad[0:4]))
		assert.Equal(t, "email", string(aad[4:9]))
		assert.Equal(t, uint32(5), binary.BigEndian.Uint32(aad[9:13]))
		assert.Equal(t, "a@b.c", string(aad[13:18]))
	})

	t.Run("ambiguous concatenations stay distinct", func(t *testing.T) {
		a := EncryptionContext{
			RecordType: "t", FieldName: "f", RecordID: "1",
			AADFields: []AADField{{Name: "x", Value: []byte("ab")}, {Name: "y", Value: []byte("c")}},
		}
		b := EncryptionContext{
			RecordType: "t", FieldName: "f", RecordID: "1",
			AADFields: []AADField{{Name: "x", Value: []byte("a")}, {Name: "y", Value: []byte("bc")}},
		}
		assert.NotEqual(t, a.AADBytes(), b.AADBytes())
	})

	t.Run("order is significant", func(t *testing.T) {
		a := EncryptionContext{
			RecordType: "t", FieldName: "f", RecordID: "1",
			AADFields: []AADField{{Name: "x", Value: []byte("1")}, {Name: "y", Value: []byte("2")}},
		}
		b := EncryptionContext{
			RecordType: "t", FieldName: "f", RecordID: "1",
			AADFields: []AADField{{Name: "y", Value: []byte("2")}, {Name: "x", Value: []byte("1")}},
		}
		assert.NotEqual(t, a.AADBytes(), b.AADBytes())
	})
}
