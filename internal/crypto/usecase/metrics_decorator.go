package usecase

import (
	"context"
	"time"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	"github.com/allisson/fieldcrypt/internal/metrics"
)

// fieldCryptoUseCaseWithMetrics decorates FieldCryptoUseCase with metrics instrumentation.
type fieldCryptoUseCaseWithMetrics struct {
	next    FieldCryptoUseCase
	metrics metrics.BusinessMetrics
}

// NewFieldCryptoUseCaseWithMetrics wraps a FieldCryptoUseCase with metrics recording.
func NewFieldCryptoUseCaseWithMetrics(useCase FieldCryptoUseCase, m metrics.BusinessMetrics) FieldCryptoUseCase {
	return &fieldCryptoUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (f *fieldCryptoUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	f.metrics.RecordOperation(ctx, "crypto", operation, status)
	f.metrics.RecordDuration(ctx, "crypto", operation, time.Since(start), status)
}

// EncryptField records metrics for single-field encryption operations.
func (f *fieldCryptoUseCaseWithMetrics) EncryptField(
	ctx context.Context,
	plaintext []byte,
	ectx cryptoDomain.EncryptionContext,
) ([]byte, error) {
	start := time.Now()
	envelope, err := f.next.EncryptField(ctx, plaintext, ectx)
	f.record(ctx, "field_encrypt", start, err)
	return envelope, err
}

// DecryptField records metrics for single-field decryption operations.
func (f *fieldCryptoUseCaseWithMetrics) DecryptField(
	ctx context.Context,
	envelope []byte,
	ectx cryptoDomain.EncryptionContext,
) (*cryptoDomain.ConcealedValue, error) {
	start := time.Now()
	value, err := f.next.DecryptField(ctx, envelope, ectx)
	f.record(ctx, "field_decrypt", start, err)
	return value, err
}

// EncryptRecord records metrics for record-level encryption operations.
func (f *fieldCryptoUseCaseWithMetrics) EncryptRecord(
	ctx context.Context,
	writes []FieldWrite,
) ([][]byte, error) {
	start := time.Now()
	envelopes, err := f.next.EncryptRecord(ctx, writes)
	f.record(ctx, "record_encrypt", start, err)
	return envelopes, err
}

// DecryptRecord records metrics for record-level decryption operations.
func (f *fieldCryptoUseCaseWithMetrics) DecryptRecord(
	ctx context.Context,
	reads []FieldRead,
) ([]*cryptoDomain.ConcealedValue, error) {
	start := time.Now()
	values, err := f.next.DecryptRecord(ctx, reads)
	f.record(ctx, "record_decrypt", start, err)
	return values, err
}

// rotationUseCaseWithMetrics decorates RotationUseCase with metrics instrumentation.
type rotationUseCaseWithMetrics struct {
	next    RotationUseCase
	metrics metrics.BusinessMetrics
}

// NewRotationUseCaseWithMetrics wraps a RotationUseCase with metrics recording.
func NewRotationUseCaseWithMetrics(useCase RotationUseCase, m metrics.BusinessMetrics) RotationUseCase {
	return &rotationUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Rotate records metrics for rotation sweeps.
func (r *rotationUseCaseWithMetrics) Rotate(
	ctx context.Context,
	params RotationParams,
) (*RotationReport, error) {
	start := time.Now()
	report, err := r.next.Rotate(ctx, params)

	status := "success"
	if err != nil {
		status = "error"
	}

	r.metrics.RecordOperation(ctx, "crypto", "rotation_sweep", status)
	r.metrics.RecordDuration(ctx, "crypto", "rotation_sweep", time.Since(start), status)

	return report, err
}
