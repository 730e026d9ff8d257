package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
)

// RotationParams controls one rotation sweep.
type RotationParams struct {
	// BatchSize bounds how many stale envelopes are fetched and processed per
	// batch.
	BatchSize int
	// RatePerSec throttles per-record processing; zero or negative disables
	// throttling.
	RatePerSec float64
	// StartAfter resumes a previous sweep from its last-processed identifier.
	// The zero UUID starts from the beginning.
	StartAfter uuid.UUID
}

// RotationFailure records one envelope that could not be rotated. The sweep
// carries on past it.
type RotationFailure struct {
	EnvelopeID uuid.UUID
	Path       string
	Err        error
}

// RotationReport summarizes a sweep. LastProcessedID is the resume checkpoint
// when the sweep was interrupted.
type RotationReport struct {
	Rotated         int
	Skipped         int
	Failures        []RotationFailure
	LastProcessedID uuid.UUID
}

// rotationUseCase implements RotationUseCase against the host's EnvelopeStore.
type rotationUseCase struct {
	manager *cryptoService.Manager
	store   EnvelopeStore
	logger  *slog.Logger
}

// NewRotationUseCase creates the rotation sweep. The logger is used for batch
// progress only; envelope contents and key material are never logged.
func NewRotationUseCase(
	manager *cryptoService.Manager,
	store EnvelopeStore,
	logger *slog.Logger,
) RotationUseCase {
	return &rotationUseCase{manager: manager, store: store, logger: logger}
}

// Rotate walks stored envelopes in bounded batches, re-encrypting each one
// under the ring's current key version with the same algorithm and a fresh
// nonce, and handing the new envelope back to the store for atomic
// replacement.
//
// A single record's failure is collected into the report, never fatal to the
// batch; there is no cross-record transaction. The sweep checkpoints on the
// last-processed identifier so a cancelled run resumes where it stopped: on
// context cancellation the report built so far is returned together with the
// context error.
func (r *rotationUseCase) Rotate(ctx context.Context, params RotationParams) (*RotationReport, error) {
	if params.BatchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size must be greater than 0", cryptoDomain.ErrInvalidContext)
	}

	var limiter *rate.Limiter
	if params.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(params.RatePerSec), 1)
	}

	current := r.manager.Ring().CurrentVersion()
	report := &RotationReport{LastProcessedID: params.StartAfter}

	for {
		batch, err := r.store.ListStale(ctx, current, report.LastProcessedID, params.BatchSize)
		if err != nil {
			return report, fmt.Errorf("failed to list stale envelopes: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		// One key cache per batch: envelopes of the same record and version
		// share their derivations, and everything is zeroed before the next
		// batch starts.
		cache := cryptoService.NewKeyCache()
		for _, stored := range batch {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					cache.Close()
					return report, err
				}
			} else if err := ctx.Err(); err != nil {
				cache.Close()
				return report, err
			}

			r.rotateOne(ctx, stored, current, cache, report)
			report.LastProcessedID = stored.ID
		}
		cache.Close()

		r.logger.Info("rotated batch of envelopes",
			slog.Int("batch_size", len(batch)),
			slog.Int("total_rotated", report.Rotated),
			slog.Int("total_failed", len(report.Failures)),
			slog.String("checkpoint", report.LastProcessedID.String()),
		)
	}

	return report, nil
}

// rotateOne processes a single stored envelope, recording the outcome on the
// report.
func (r *rotationUseCase) rotateOne(
	ctx context.Context,
	stored StoredEnvelope,
	current string,
	cache *cryptoService.KeyCache,
	report *RotationReport,
) {
	ectx := stored.Context()

	env, err := cryptoDomain.ParseEnvelope(stored.Envelope)
	if err != nil {
		report.Failures = append(report.Failures, RotationFailure{
			EnvelopeID: stored.ID, Path: ectx.Path(), Err: err,
		})
		return
	}
	if env.KeyVersion == current {
		report.Skipped++
		return
	}

	value, err := r.manager.Decrypt(stored.Envelope, ectx, cache)
	if err != nil {
		report.Failures = append(report.Failures, RotationFailure{
			EnvelopeID: stored.ID, Path: ectx.Path(), Err: err,
		})
		return
	}

	// Same algorithm, current key version, fresh nonce. The reveal scope
	// bounds the recovered plaintext's lifetime to the re-encryption.
	var replacement []byte
	err = value.Reveal(func(plaintext []byte) error {
		var encErr error
		replacement, encErr = r.manager.EncryptWithAlgorithm(env.Algorithm, plaintext, ectx, cache)
		return encErr
	})
	if err != nil {
		report.Failures = append(report.Failures, RotationFailure{
			EnvelopeID: stored.ID, Path: ectx.Path(), Err: err,
		})
		return
	}

	if err := r.store.Replace(ctx, stored.ID, replacement); err != nil {
		report.Failures = append(report.Failures, RotationFailure{
			EnvelopeID: stored.ID, Path: ectx.Path(), Err: err,
		})
		return
	}

	report.Rotated++
}
