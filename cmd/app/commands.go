package main

import (
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/allisson/fieldcrypt/internal/app"
	cryptoUseCase "github.com/allisson/fieldcrypt/internal/crypto/usecase"
)

func getCommands() []*cli.Command {
	cmds := []*cli.Command{}
	cmds = append(cmds, getSystemCommands()...)
	cmds = append(cmds, getKeyCommands()...)
	cmds = append(cmds, getFieldCommands()...)
	return cmds
}

// envelopeRepo initializes the envelope repository only when the command
// actually touches the store, so stateless encrypt/decrypt runs without a
// database connection.
func envelopeRepo(container *app.Container, needed bool) (cryptoUseCase.EnvelopeRepository, error) {
	if !needed {
		return nil, nil
	}
	repo, err := container.EnvelopeRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize envelope repository: %w", err)
	}
	return repo, nil
}
