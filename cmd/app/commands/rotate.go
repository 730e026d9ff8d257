package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	cryptoUseCase "github.com/allisson/fieldcrypt/internal/crypto/usecase"
	internalHTTP "github.com/allisson/fieldcrypt/internal/http"
)

// RunRotate sweeps the reference envelope store and re-encrypts every envelope
// whose key version differs from the ring's current version. The sweep runs in
// bounded batches and checkpoints on the last-processed identifier; on
// SIGINT/SIGTERM the checkpoint is logged so the sweep can be resumed with
// startAfter.
//
// When metricsServer is non-nil it serves /metrics for the duration of the
// sweep and is shut down once the sweep finishes.
func RunRotate(
	ctx context.Context,
	rotation cryptoUseCase.RotationUseCase,
	metricsServer *internalHTTP.MetricsServer,
	logger *slog.Logger,
	batchSize int,
	ratePerSec float64,
	startAfter string,
) error {
	var afterID uuid.UUID
	if startAfter != "" {
		parsed, err := uuid.Parse(startAfter)
		if err != nil {
			return fmt.Errorf("invalid start-after: %w", err)
		}
		afterID = parsed
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting rotation sweep",
		slog.Int("batch_size", batchSize),
		slog.Float64("rate_per_sec", ratePerSec),
		slog.String("start_after", afterID.String()),
	)

	g, gctx := errgroup.WithContext(ctx)

	if metricsServer != nil {
		g.Go(func() error {
			if err := metricsServer.Start(gctx); err != nil {
				return fmt.Errorf("metrics server error: %w", err)
			}
			return nil
		})
	}

	var report *cryptoUseCase.RotationReport
	g.Go(func() error {
		defer func() {
			if metricsServer == nil {
				return
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to shutdown metrics server", slog.Any("error", err))
			}
		}()

		var err error
		report, err = rotation.Rotate(gctx, cryptoUseCase.RotationParams{
			BatchSize:  batchSize,
			RatePerSec: ratePerSec,
			StartAfter: afterID,
		})
		return err
	})

	sweepErr := g.Wait()

	if report != nil {
		for _, failure := range report.Failures {
			logger.Warn("envelope rotation failed",
				slog.String("envelope_id", failure.EnvelopeID.String()),
				slog.String("path", failure.Path),
				slog.Any("error", failure.Err),
			)
		}
		logger.Info("rotation sweep finished",
			slog.Int("rotated", report.Rotated),
			slog.Int("skipped", report.Skipped),
			slog.Int("failures", len(report.Failures)),
			slog.String("last_processed_id", report.LastProcessedID.String()),
		)
	}

	if sweepErr != nil {
		return fmt.Errorf("rotation sweep: %w", sweepErr)
	}
	if report != nil && len(report.Failures) > 0 {
		return fmt.Errorf("rotation sweep completed with %d failures", len(report.Failures))
	}
	return nil
}
