package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/allisson/fieldcrypt/cmd/app/commands"
	"github.com/allisson/fieldcrypt/internal/app"
	"github.com/allisson/fieldcrypt/internal/config"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
)

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "generate-master-key",
			Usage: "Generate a new master key for the field encryption key ring",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:    "version",
					Aliases: []string{"v"},
					Value:   "",
					Usage:   "Key version identifier (e.g., v1, 2025-q3)",
				},
				&cli.StringFlag{
					Name:  "kms-key-uri",
					Value: "",
					Usage: "KMS key URI to wrap the key with (e.g., base64key://, gcpkms://projects/.../cryptoKeys/...)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunGenerateMasterKey(
					ctx,
					cryptoService.NewKMSService(),
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("version"),
					cmd.String("kms-key-uri"),
				)
			},
		},
		{
			Name:  "rotate",
			Usage: "Re-encrypt stored envelopes under the current key version",
			Flags: []cli.Flag{
				&cli.IntFlag{
					Name:    "batch-size",
					Aliases: []string{"b"},
					Value:   0,
					Usage:   "Envelopes to process per batch (defaults to ROTATION_BATCH_SIZE)",
				},
				&cli.FloatFlag{
					Name:    "rate",
					Aliases: []string{"r"},
					Value:   0,
					Usage:   "Max envelopes processed per second, 0 disables throttling (defaults to ROTATION_RATE_PER_SEC)",
				},
				&cli.StringFlag{
					Name:  "start-after",
					Value: "",
					Usage: "Resume after this envelope ID (from the checkpoint of an interrupted sweep)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				logger := container.Logger()
				defer func() { _ = container.Shutdown(ctx) }()

				rotation, err := container.RotationUseCase()
				if err != nil {
					return fmt.Errorf("failed to initialize rotation use case: %w", err)
				}

				metricsServer, err := container.MetricsServer()
				if err != nil {
					return fmt.Errorf("failed to initialize metrics server: %w", err)
				}

				batchSize := int(cmd.Int("batch-size"))
				if batchSize == 0 {
					batchSize = cfg.RotationBatchSize
				}
				ratePerSec := cmd.Float("rate")
				if ratePerSec == 0 {
					ratePerSec = cfg.RotationRatePerSec
				}

				return commands.RunRotate(
					ctx,
					rotation,
					metricsServer,
					logger,
					batchSize,
					ratePerSec,
					cmd.String("start-after"),
				)
			},
		},
	}
}
