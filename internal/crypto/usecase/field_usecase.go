// Package usecase implements the application layer of the field encryption
// engine: the hooks the host record layer calls around its own reads and
// writes, and the rotation sweep that re-encrypts stored envelopes under the
// current key version.
package usecase

import (
	"context"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
)

// fieldCryptoUseCase implements FieldCryptoUseCase on top of the encryption
// manager. Single-field operations derive their subkey fresh; record-level
// operations open one request-scoped key cache for the whole record and close
// it (zeroing every derived subkey) before returning, including on error.
type fieldCryptoUseCase struct {
	manager *cryptoService.Manager
}

// NewFieldCryptoUseCase creates the use case the host record layer calls
// before writes and after reads.
func NewFieldCryptoUseCase(manager *cryptoService.Manager) FieldCryptoUseCase {
	return &fieldCryptoUseCase{manager: manager}
}

// EncryptField encrypts one attribute value and returns its serialized
// envelope.
func (f *fieldCryptoUseCase) EncryptField(
	_ context.Context,
	plaintext []byte,
	ectx cryptoDomain.EncryptionContext,
) ([]byte, error) {
	return f.manager.Encrypt(plaintext, ectx, nil)
}

// DecryptField decrypts one stored envelope and returns the concealed
// plaintext.
func (f *fieldCryptoUseCase) DecryptField(
	_ context.Context,
	envelope []byte,
	ectx cryptoDomain.EncryptionContext,
) (*cryptoDomain.ConcealedValue, error) {
	return f.manager.Decrypt(envelope, ectx, nil)
}

// EncryptRecord encrypts all field values of one record write under a shared
// key cache. Results are returned in input order. Any single failure aborts
// the whole record write; there is no partial-success state.
func (f *fieldCryptoUseCase) EncryptRecord(
	_ context.Context,
	writes []FieldWrite,
) ([][]byte, error) {
	cache := cryptoService.NewKeyCache()
	defer cache.Close()

	envelopes := make([][]byte, 0, len(writes))
	for _, w := range writes {
		envelope, err := f.manager.Encrypt(w.Plaintext, w.Context, cache)
		if err != nil {
			return nil, err
		}
		envelopes = append(envelopes, envelope)
	}
	return envelopes, nil
}

// DecryptRecord decrypts all stored envelopes of one record read under a
// shared key cache. Results are returned in input order. Any single failure
// aborts the whole record read.
func (f *fieldCryptoUseCase) DecryptRecord(
	_ context.Context,
	reads []FieldRead,
) ([]*cryptoDomain.ConcealedValue, error) {
	cache := cryptoService.NewKeyCache()
	defer cache.Close()

	values := make([]*cryptoDomain.ConcealedValue, 0, len(reads))
	for _, r := range reads {
		value, err := f.manager.Decrypt(r.Envelope, r.Context, cache)
		if err != nil {
			for _, v := range values {
				v.Clear()
			}
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}
