package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/allisson/fieldcrypt/cmd/app/commands"
	"github.com/allisson/fieldcrypt/internal/app"
	"github.com/allisson/fieldcrypt/internal/config"
)

func contextFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "record-type",
			Aliases:  []string{"t"},
			Required: true,
			Usage:    "Record type (e.g., diary_entry)",
		},
		&cli.StringFlag{
			Name:     "field",
			Aliases:  []string{"f"},
			Required: true,
			Usage:    "Field name (e.g., content)",
		},
		&cli.StringFlag{
			Name:     "record-id",
			Aliases:  []string{"i"},
			Required: true,
			Usage:    "Record identifier",
		},
		&cli.StringSliceFlag{
			Name:    "aad",
			Aliases: []string{"a"},
			Usage:   "AAD field as name=value, repeatable, order is significant",
		},
	}
}

func getFieldCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "encrypt",
			Usage: "Encrypt a field value under the current key version",
			Flags: append(contextFlags(),
				&cli.StringFlag{
					Name:     "value",
					Aliases:  []string{"v"},
					Required: true,
					Usage:    "Plaintext value to encrypt",
				},
				&cli.BoolFlag{
					Name:  "store",
					Value: false,
					Usage: "Persist the envelope to the envelope store instead of printing it",
				},
			),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				fieldCrypto, err := container.FieldCryptoUseCase()
				if err != nil {
					return fmt.Errorf("failed to initialize field crypto use case: %w", err)
				}

				store := cmd.Bool("store")
				repo, err := envelopeRepo(container, store)
				if err != nil {
					return err
				}

				return commands.RunEncrypt(
					ctx,
					fieldCrypto,
					repo,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("record-type"),
					cmd.String("field"),
					cmd.String("record-id"),
					cmd.String("value"),
					cmd.StringSlice("aad"),
					store,
				)
			},
		},
		{
			Name:  "decrypt",
			Usage: "Decrypt a field value",
			Flags: append(contextFlags(),
				&cli.StringFlag{
					Name:    "envelope",
					Aliases: []string{"e"},
					Value:   "",
					Usage:   "Envelope JSON to decrypt (omit to load from the envelope store)",
				},
			),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				fieldCrypto, err := container.FieldCryptoUseCase()
				if err != nil {
					return fmt.Errorf("failed to initialize field crypto use case: %w", err)
				}

				envelope := cmd.String("envelope")
				repo, err := envelopeRepo(container, envelope == "")
				if err != nil {
					return err
				}

				return commands.RunDecrypt(
					ctx,
					fieldCrypto,
					repo,
					commands.DefaultIO().Writer,
					cmd.String("record-type"),
					cmd.String("field"),
					cmd.String("record-id"),
					envelope,
					cmd.StringSlice("aad"),
				)
			},
		},
	}
}
