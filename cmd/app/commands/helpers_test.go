package commands

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/fieldcrypt/internal/errors"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	cryptoService "github.com/allisson/fieldcrypt/internal/crypto/service"
	cryptoUseCase "github.com/allisson/fieldcrypt/internal/crypto/usecase"
)

// newTestFieldCrypto builds a field crypto use case backed by a fixed
// single-version key ring.
func newTestFieldCrypto(t *testing.T) cryptoUseCase.FieldCryptoUseCase {
	t.Helper()

	registry, err := cryptoService.NewDefaultRegistry("fieldcrypt-test")
	require.NoError(t, err)

	key := bytes.Repeat([]byte{0x11}, cryptoDomain.KeySize)
	ring, err := cryptoDomain.NewKeyRing([]cryptoDomain.MasterKey{{Version: "v1", Key: key}}, "v1")
	require.NoError(t, err)
	t.Cleanup(ring.Close)

	manager := cryptoService.NewManager(registry, ring)
	return cryptoUseCase.NewFieldCryptoUseCase(manager)
}

// memoryEnvelopeRepo is an in-memory EnvelopeRepository for command tests.
type memoryEnvelopeRepo struct {
	mu    sync.Mutex
	items []cryptoUseCase.StoredEnvelope
}

func (m *memoryEnvelopeRepo) Create(_ context.Context, stored cryptoUseCase.StoredEnvelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, stored)
	sort.Slice(m.items, func(i, j int) bool {
		return bytes.Compare(m.items[i].ID[:], m.items[j].ID[:]) < 0
	})
	return nil
}

func (m *memoryEnvelopeRepo) GetByField(
	_ context.Context,
	recordType, fieldName, recordID string,
) (*cryptoUseCase.StoredEnvelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		item := m.items[i]
		if item.RecordType == recordType && item.FieldName == fieldName && item.RecordID == recordID {
			return &item, nil
		}
	}
	return nil, apperrors.Wrap(apperrors.ErrNotFound, "stored envelope not found")
}

func (m *memoryEnvelopeRepo) ListStale(
	_ context.Context,
	currentVersion string,
	afterID uuid.UUID,
	limit int,
) ([]cryptoUseCase.StoredEnvelope, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []cryptoUseCase.StoredEnvelope
	for _, item := range m.items {
		if bytes.Compare(item.ID[:], afterID[:]) <= 0 {
			continue
		}
		envelope, err := cryptoDomain.ParseEnvelope(item.Envelope)
		if err == nil && envelope.KeyVersion == currentVersion {
			continue
		}
		out = append(out, item)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memoryEnvelopeRepo) Replace(_ context.Context, id uuid.UUID, envelope []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id {
			m.items[i].Envelope = envelope
			return nil
		}
	}
	return apperrors.Wrap(apperrors.ErrNotFound, "stored envelope not found")
}

func TestParseAADFields(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		fields, err := parseAADFields(nil)
		require.NoError(t, err)
		require.Nil(t, fields)
	})

	t.Run("ordered-pairs", func(t *testing.T) {
		fields, err := parseAADFields([]string{"user_id=user-42", "tenant=acme"})
		require.NoError(t, err)
		require.Equal(t, []cryptoDomain.AADField{
			{Name: "user_id", Value: []byte("user-42")},
			{Name: "tenant", Value: []byte("acme")},
		}, fields)
	})

	t.Run("empty-value", func(t *testing.T) {
		fields, err := parseAADFields([]string{"user_id="})
		require.NoError(t, err)
		require.Equal(t, []cryptoDomain.AADField{{Name: "user_id", Value: []byte("")}}, fields)
	})

	t.Run("missing-separator", func(t *testing.T) {
		_, err := parseAADFields([]string{"user_id"})
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid aad pair")
	})

	t.Run("empty-name", func(t *testing.T) {
		_, err := parseAADFields([]string{"=value"})
		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid aad pair")
	})
}
