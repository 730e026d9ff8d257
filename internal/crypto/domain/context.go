package domain

import (
	"encoding/binary"
	"fmt"

	"github.com/jellydator/validation"
)

// AADField is one named plaintext attribute value bound into authentication
// without being encrypted itself. The declared order of fields is significant:
// encryption and decryption must present the same fields in the same order.
type AADField struct {
	Name  string
	Value []byte
}

// EncryptionContext identifies what is being encrypted: the record type, the
// field name, and the record identifier, plus the ordered AAD source fields.
//
// The (RecordType, FieldName, RecordID) tuple is the key-derivation scope: two
// contexts that differ in any component derive different subkeys, so no two
// fields ever share a key. Re-deriving for the same context and key version is
// deterministic, which is what allows decryption to re-derive rather than
// store the subkey.
//
// AAD field values are snapshots captured by the caller at operation start;
// the engine never re-fetches them. A context is created fresh for every
// encrypt/decrypt call and never persisted.
type EncryptionContext struct {
	RecordType string
	FieldName  string
	RecordID   string
	AADFields  []AADField
}

// Validate checks that the identifying tuple is complete.
func (c EncryptionContext) Validate() error {
	err := validation.ValidateStruct(&c,
		validation.Field(&c.RecordType, validation.Required),
		validation.Field(&c.FieldName, validation.Required),
		validation.Field(&c.RecordID, validation.Required),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidContext, err)
	}
	return nil
}

// Path returns the canonical context string "{record_type}:{field_name}:{record_identifier}"
// fed into key derivation.
func (c EncryptionContext) Path() string {
	return fmt.Sprintf("%s:%s:%s", c.RecordType, c.FieldName, c.RecordID)
}

// AADBytes builds the additional authenticated data by concatenating the named
// AAD field values in declared order. Every name and value is length-prefixed
// with a 4-byte big-endian length so that ("ab","c") can never collide with
// ("a","bc"). Returns nil when no AAD fields are declared so the AEAD sees the
// same input as a plain nil AAD.
func (c EncryptionContext) AADBytes() []byte {
	if len(c.AADFields) == 0 {
		return nil
	}

	size := 0
	for _, f := range c.AADFields {
		size += 8 + len(f.Name) + len(f.Value)
	}

	out := make([]byte, 0, size)
	var lenBuf [4]byte
	for _, f := range c.AADFields {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(f.Name)))
		out = append(out, lenBuf[:]...)
		out = append(out, f.Name...)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(f.Value)))
		out = append(out, lenBuf[:]...)
		out = append(out, f.Value...)
	}
	return out
}
