package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
	"github.com/allisson/fieldcrypt/internal/crypto/usecase"
	"github.com/allisson/fieldcrypt/internal/database"
	apperrors "github.com/allisson/fieldcrypt/internal/errors"
)

// MySQLEnvelopeRepository implements envelope persistence for MySQL databases.
type MySQLEnvelopeRepository struct {
	db *sql.DB
}

// NewMySQLEnvelopeRepository creates a new MySQL envelope repository instance.
func NewMySQLEnvelopeRepository(db *sql.DB) *MySQLEnvelopeRepository {
	return &MySQLEnvelopeRepository{db: db}
}

// Create inserts a new stored envelope into the MySQL database.
func (m *MySQLEnvelopeRepository) Create(ctx context.Context, stored usecase.StoredEnvelope) error {
	querier := database.GetTx(ctx, m.db)

	env, err := cryptoDomain.ParseEnvelope(stored.Envelope)
	if err != nil {
		return err
	}
	aad, err := marshalAADFields(stored.AADFields)
	if err != nil {
		return err
	}

	query := `INSERT INTO encrypted_fields (id, record_type, field_name, record_id, aad_fields, key_version, envelope, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	now := time.Now().UTC()
	_, err = querier.ExecContext(
		ctx,
		query,
		stored.ID.String(),
		stored.RecordType,
		stored.FieldName,
		stored.RecordID,
		aad,
		env.KeyVersion,
		stored.Envelope,
		now,
		now,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create encrypted field")
	}
	return nil
}

// GetByField retrieves the stored envelope for one field of one record.
func (m *MySQLEnvelopeRepository) GetByField(
	ctx context.Context,
	recordType, fieldName, recordID string,
) (*usecase.StoredEnvelope, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, record_type, field_name, record_id, aad_fields, envelope
			  FROM encrypted_fields
			  WHERE record_type = ? AND field_name = ? AND record_id = ?
			  LIMIT 1`

	var (
		stored usecase.StoredEnvelope
		rawID  string
		aad    []byte
	)
	err := querier.QueryRowContext(ctx, query, recordType, fieldName, recordID).Scan(
		&rawID,
		&stored.RecordType,
		&stored.FieldName,
		&stored.RecordID,
		&aad,
		&stored.Envelope,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get encrypted field")
	}

	stored.ID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to parse encrypted field id")
	}
	stored.AADFields, err = unmarshalAADFields(aad)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// ListStale returns up to limit envelopes encrypted under a key version other
// than currentVersion, with ID greater than afterID, ordered by ID.
func (m *MySQLEnvelopeRepository) ListStale(
	ctx context.Context,
	currentVersion string,
	afterID uuid.UUID,
	limit int,
) ([]usecase.StoredEnvelope, error) {
	querier := database.GetTx(ctx, m.db)

	query := `SELECT id, record_type, field_name, record_id, aad_fields, envelope
			  FROM encrypted_fields
			  WHERE key_version <> ? AND id > ?
			  ORDER BY id
			  LIMIT ?`

	rows, err := querier.QueryContext(ctx, query, currentVersion, afterID.String(), limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list stale encrypted fields")
	}
	defer rows.Close()

	var out []usecase.StoredEnvelope
	for rows.Next() {
		var (
			stored usecase.StoredEnvelope
			rawID  string
			aad    []byte
		)
		if err := rows.Scan(
			&rawID,
			&stored.RecordType,
			&stored.FieldName,
			&stored.RecordID,
			&aad,
			&stored.Envelope,
		); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan encrypted field")
		}
		stored.ID, err = uuid.Parse(rawID)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to parse encrypted field id")
		}
		stored.AADFields, err = unmarshalAADFields(aad)
		if err != nil {
			return nil, err
		}
		out = append(out, stored)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate encrypted fields")
	}
	return out, nil
}

// Replace atomically swaps the stored envelope bytes for the given ID and
// refreshes the denormalized key version column.
func (m *MySQLEnvelopeRepository) Replace(ctx context.Context, id uuid.UUID, envelope []byte) error {
	querier := database.GetTx(ctx, m.db)

	env, err := cryptoDomain.ParseEnvelope(envelope)
	if err != nil {
		return err
	}

	query := `UPDATE encrypted_fields
			  SET envelope = ?, key_version = ?, updated_at = ?
			  WHERE id = ?`

	result, err := querier.ExecContext(ctx, query, envelope, env.KeyVersion, time.Now().UTC(), id.String())
	if err != nil {
		return apperrors.Wrap(err, "failed to replace encrypted field")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to read affected rows")
	}
	if affected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
