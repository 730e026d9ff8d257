package commands

import (
	"context"
	"fmt"
	"io"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoUseCase "github.com/allisson/fieldcrypt/internal/crypto/usecase"
)

// RunDecrypt decrypts one field value and writes the plaintext to w.
//
// When envelope is non-empty it is decrypted directly, using the AAD pairs
// given on the command line. Otherwise the envelope is looked up in the
// reference envelope store by (record type, field name, record identifier)
// and decrypted under the AAD snapshot persisted with it.
func RunDecrypt(
	ctx context.Context,
	fieldCrypto cryptoUseCase.FieldCryptoUseCase,
	repo cryptoUseCase.EnvelopeRepository,
	w io.Writer,
	recordType, fieldName, recordID, envelope string,
	aadPairs []string,
) error {
	var (
		envelopeBytes []byte
		aadFields     []cryptoDomain.AADField
	)

	if envelope != "" {
		fields, err := parseAADFields(aadPairs)
		if err != nil {
			return err
		}
		envelopeBytes = []byte(envelope)
		aadFields = fields
	} else {
		stored, err := repo.GetByField(ctx, recordType, fieldName, recordID)
		if err != nil {
			return fmt.Errorf("failed to load stored envelope: %w", err)
		}
		envelopeBytes = stored.Envelope
		aadFields = stored.AADFields
	}

	ectx := cryptoDomain.EncryptionContext{
		RecordType: recordType,
		FieldName:  fieldName,
		RecordID:   recordID,
		AADFields:  aadFields,
	}

	value, err := fieldCrypto.DecryptField(ctx, envelopeBytes, ectx)
	if err != nil {
		return fmt.Errorf("failed to decrypt field: %w", err)
	}
	defer value.Clear()

	return value.Reveal(func(plaintext []byte) error {
		_, err := fmt.Fprintf(w, "%s\n", plaintext)
		return err
	})
}
