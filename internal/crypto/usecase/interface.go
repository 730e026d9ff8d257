package usecase

import (
	"context"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// StoredEnvelope is one encrypted field value as persisted by the host record
// layer, together with the context metadata needed to re-derive its subkey.
// AAD values are the host's snapshot of the bound plaintext attributes at the
// time of the original write.
type StoredEnvelope struct {
	ID         uuid.UUID
	RecordType string
	FieldName  string
	RecordID   string
	AADFields  []cryptoDomain.AADField
	Envelope   []byte
}

// Context rebuilds the EncryptionContext the envelope was written under.
func (s StoredEnvelope) Context() cryptoDomain.EncryptionContext {
	return cryptoDomain.EncryptionContext{
		RecordType: s.RecordType,
		FieldName:  s.FieldName,
		RecordID:   s.RecordID,
		AADFields:  s.AADFields,
	}
}

// EnvelopeStore is the host persistence boundary the rotation sweep walks.
// Implementations are expected to order results by ID so the sweep can
// checkpoint on the last-processed identifier and resume after interruption.
type EnvelopeStore interface {
	// ListStale returns up to limit envelopes whose key version differs from
	// currentVersion, with ID greater than afterID, ordered by ID.
	ListStale(ctx context.Context, currentVersion string, afterID uuid.UUID, limit int) ([]StoredEnvelope, error)

	// Replace atomically swaps the stored envelope bytes for the given ID.
	Replace(ctx context.Context, id uuid.UUID, envelope []byte) error
}

// EnvelopeRepository is the full persistence surface of the reference
// envelope store: the rotation sweep's EnvelopeStore plus the write and
// lookup operations the command layer uses.
type EnvelopeRepository interface {
	EnvelopeStore

	// Create inserts a new stored envelope.
	Create(ctx context.Context, stored StoredEnvelope) error

	// GetByField retrieves the stored envelope for one field of one record.
	GetByField(ctx context.Context, recordType, fieldName, recordID string) (*StoredEnvelope, error)
}

// FieldWrite is one field value queued for encryption within a single record
// write.
type FieldWrite struct {
	Plaintext []byte
	Context   cryptoDomain.EncryptionContext
}

// FieldRead is one stored envelope queued for decryption within a single
// record read.
type FieldRead struct {
	Envelope []byte
	Context  cryptoDomain.EncryptionContext
}

// FieldCryptoUseCase is the surface the host record layer calls around its own
// I/O: EncryptField before writing an attribute, DecryptField after reading
// one. The record-level variants share one request-scoped key cache across all
// fields of a record, so multi-field records derive each subkey once.
type FieldCryptoUseCase interface {
	EncryptField(ctx context.Context, plaintext []byte, ectx cryptoDomain.EncryptionContext) ([]byte, error)
	DecryptField(ctx context.Context, envelope []byte, ectx cryptoDomain.EncryptionContext) (*cryptoDomain.ConcealedValue, error)
	EncryptRecord(ctx context.Context, writes []FieldWrite) ([][]byte, error)
	DecryptRecord(ctx context.Context, reads []FieldRead) ([]*cryptoDomain.ConcealedValue, error)
}

// RotationUseCase re-encrypts stored envelopes under the ring's current key
// version. The sweep is cancellable and resumable; individual record failures
// are collected, never fatal to the batch.
type RotationUseCase interface {
	Rotate(ctx context.Context, params RotationParams) (*RotationReport, error)
}
