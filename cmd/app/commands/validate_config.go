package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/allisson/fieldcrypt/internal/app"
)

// RunValidateConfig loads the key ring and encryption manager from the
// container and reports the effective encryption configuration. It fails when
// the ring cannot be loaded, a master key has the wrong size, or the pinned
// algorithm has no registered provider. The database is not touched.
func RunValidateConfig(container *app.Container, w io.Writer) error {
	cfg := container.Config()

	manager, err := container.EncryptionManager()
	if err != nil {
		return fmt.Errorf("encryption configuration is invalid: %w", err)
	}

	ring := manager.Ring()

	algorithm := cfg.EncryptionAlgorithm
	if algorithm == "" {
		algorithm = "highest-priority provider"
	}

	fmt.Fprintln(w, "encryption configuration OK")
	fmt.Fprintf(w, "  algorithm: %s\n", algorithm)
	fmt.Fprintf(w, "  key versions: %s\n", strings.Join(ring.Versions(), ", "))
	fmt.Fprintf(w, "  current version: %s\n", ring.CurrentVersion())
	fmt.Fprintf(w, "  kms: %v\n", cfg.KMSKeyURI != "")
	return nil
}
