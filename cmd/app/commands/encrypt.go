package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoUseCase "github.com/allisson/fieldcrypt/internal/crypto/usecase"
)

// RunEncrypt encrypts one field value under the ring's current key version and
// writes the envelope JSON to w. AAD pairs are "name=value" and are bound into
// authentication in the order given.
//
// When store is true the envelope is also persisted to the reference envelope
// store, keyed by (record type, field name, record identifier), and the stored
// row identifier is written to w instead of the raw envelope.
func RunEncrypt(
	ctx context.Context,
	fieldCrypto cryptoUseCase.FieldCryptoUseCase,
	repo cryptoUseCase.EnvelopeRepository,
	logger *slog.Logger,
	w io.Writer,
	recordType, fieldName, recordID, plaintext string,
	aadPairs []string,
	store bool,
) error {
	aadFields, err := parseAADFields(aadPairs)
	if err != nil {
		return err
	}

	ectx := cryptoDomain.EncryptionContext{
		RecordType: recordType,
		FieldName:  fieldName,
		RecordID:   recordID,
		AADFields:  aadFields,
	}

	envelope, err := fieldCrypto.EncryptField(ctx, []byte(plaintext), ectx)
	if err != nil {
		return fmt.Errorf("failed to encrypt field: %w", err)
	}

	if !store {
		fmt.Fprintf(w, "%s\n", envelope)
		return nil
	}

	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate envelope id: %w", err)
	}
	stored := cryptoUseCase.StoredEnvelope{
		ID:         id,
		RecordType: recordType,
		FieldName:  fieldName,
		RecordID:   recordID,
		AADFields:  aadFields,
		Envelope:   envelope,
	}
	if err := repo.Create(ctx, stored); err != nil {
		return fmt.Errorf("failed to store envelope: %w", err)
	}

	logger.Info("field encrypted and stored",
		slog.String("envelope_id", id.String()),
		slog.String("path", ectx.Path()),
	)
	fmt.Fprintf(w, "stored envelope %s for %s\n", id, ectx.Path())
	return nil
}
