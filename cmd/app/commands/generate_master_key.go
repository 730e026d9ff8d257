package commands

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"time"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
)

// RunGenerateMasterKey generates a cryptographically secure 32-byte master key
// for the field encryption key ring. Key material is zeroed from memory after
// encoding. If version is empty, a default in the format "key-YYYY-MM-DD" is
// used.
//
// When kmsKeyURI is set the key is wrapped with the referenced KMS key before
// output, so raw key material never reaches the environment. Without a KMS URI
// the raw key is emitted base64-encoded, which is only acceptable for local
// development.
//
// Output format:
//   - MASTER_KEYS="<version>:<base64-key-or-ciphertext>"
//   - CURRENT_KEY_VERSION="<version>"
//   - KMS_KEY_URI="<uri>" (KMS mode only)
func RunGenerateMasterKey(
	ctx context.Context,
	kmsService cryptoService.KMSService,
	logger *slog.Logger,
	w io.Writer,
	version string,
	kmsKeyURI string,
) error {
	if version == "" {
		version = fmt.Sprintf("key-%s", time.Now().Format("2006-01-02"))
	}

	masterKey := make([]byte, cryptoDomain.KeySize)
	if _, err := rand.Read(masterKey); err != nil {
		return fmt.Errorf("failed to generate master key: %w", err)
	}
	defer cryptoDomain.Zero(masterKey)

	material := masterKey
	if kmsKeyURI != "" {
		keeperInterface, err := kmsService.OpenKeeper(ctx, kmsKeyURI)
		if err != nil {
			return fmt.Errorf("failed to open KMS keeper: %w", err)
		}
		defer func() {
			closer, ok := keeperInterface.(io.Closer)
			if !ok {
				return
			}
			if closeErr := closer.Close(); closeErr != nil {
				logger.Warn("failed to close KMS keeper", slog.Any("error", closeErr))
			}
		}()

		keeper, ok := keeperInterface.(interface {
			Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
		})
		if !ok {
			return fmt.Errorf("KMS keeper does not support encryption")
		}

		ciphertext, err := keeper.Encrypt(ctx, masterKey)
		if err != nil {
			return fmt.Errorf("failed to wrap master key with KMS: %w", err)
		}
		material = ciphertext
	}

	encodedKey := base64.StdEncoding.EncodeToString(material)

	if kmsKeyURI != "" {
		fmt.Fprintln(w, "# Master Key Configuration (KMS mode)")
	} else {
		fmt.Fprintln(w, "# Master Key Configuration (plaintext mode, local development only)")
	}
	fmt.Fprintln(w, "# Copy these environment variables to your .env file or secrets manager")
	fmt.Fprintln(w)
	if kmsKeyURI != "" {
		fmt.Fprintf(w, "KMS_KEY_URI=%q\n", kmsKeyURI)
	}
	fmt.Fprintf(w, "MASTER_KEYS=%q\n", fmt.Sprintf("%s:%s", version, encodedKey))
	fmt.Fprintf(w, "CURRENT_KEY_VERSION=%q\n", version)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# When rotating, append the new entry and point CURRENT_KEY_VERSION at it:")
	fmt.Fprintf(w, "# MASTER_KEYS=\"%s:%s,<new-version>:<new-key>\"\n", version, encodedKey)
	fmt.Fprintln(w, "# CURRENT_KEY_VERSION=\"<new-version>\"")

	return nil
}
