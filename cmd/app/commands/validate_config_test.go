package commands

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/allisson/fieldcrypt/internal/app"
	"github.com/allisson/fieldcrypt/internal/config"
	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

func setMasterKeysEnv(t *testing.T) {
	t.Helper()
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0x11}, cryptoDomain.KeySize))
	t.Setenv("MASTER_KEYS", "v1:"+key)
	t.Setenv("CURRENT_KEY_VERSION", "v1")
}

func TestRunValidateConfig(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		setMasterKeysEnv(t)
		cfg := config.Load()
		container := app.NewContainer(cfg)

		var out bytes.Buffer
		err := RunValidateConfig(container, &out)
		require.NoError(t, err)
		require.Contains(t, out.String(), "encryption configuration OK")
		require.Contains(t, out.String(), "current version: v1")
	})

	t.Run("pinned-algorithm", func(t *testing.T) {
		setMasterKeysEnv(t)
		t.Setenv("ENCRYPTION_ALGORITHM", "aes-gcm")
		cfg := config.Load()
		container := app.NewContainer(cfg)

		var out bytes.Buffer
		err := RunValidateConfig(container, &out)
		require.NoError(t, err)
		require.Contains(t, out.String(), "algorithm: aes-gcm")
	})

	t.Run("unknown-algorithm", func(t *testing.T) {
		setMasterKeysEnv(t)
		t.Setenv("ENCRYPTION_ALGORITHM", "rot13")
		cfg := config.Load()
		container := app.NewContainer(cfg)

		err := RunValidateConfig(container, &bytes.Buffer{})
		require.Error(t, err)
		require.Contains(t, err.Error(), "encryption configuration is invalid")
	})

	t.Run("missing-master-keys", func(t *testing.T) {
		t.Setenv("MASTER_KEYS", "")
		t.Setenv("CURRENT_KEY_VERSION", "")
		cfg := config.Load()
		container := app.NewContainer(cfg)

		err := RunValidateConfig(container, &bytes.Buffer{})
		require.Error(t, err)
	})
}
