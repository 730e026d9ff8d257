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

// PostgreSQLEnvelopeRepository implements envelope persistence for PostgreSQL
// databases.
type PostgreSQLEnvelopeRepository struct {
	db *sql.DB
}

// NewPostgreSQLEnvelopeRepository creates a new PostgreSQL envelope repository
// instance.
func NewPostgreSQLEnvelopeRepository(db *sql.DB) *PostgreSQLEnvelopeRepository {
	return &PostgreSQLEnvelopeRepository{db: db}
}

// Create inserts a new stored envelope into the PostgreSQL database. The key
// version column is denormalized from the envelope so rotation sweeps can
// filter stale rows without parsing every envelope.
func (p *PostgreSQLEnvelopeRepository) Create(ctx context.Context, stored usecase.StoredEnvelope) error {
	querier := database.GetTx(ctx, p.db)

	env, err := cryptoDomain.ParseEnvelope(stored.Envelope)
	if err != nil {
		return err
	}
	aad, err := marshalAADFields(stored.AADFields)
	if err != nil {
		return err
	}

	query := `INSERT INTO encrypted_fields (id, record_type, field_name, record_id, aad_fields, key_version, envelope, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	now := time.Now().UTC()
	_, err = querier.ExecContext(
		ctx,
		query,
		stored.ID,
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
func (p *PostgreSQLEnvelopeRepository) GetByField(
	ctx context.Context,
	recordType, fieldName, recordID string,
) (*usecase.StoredEnvelope, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, record_type, field_name, record_id, aad_fields, envelope
			  FROM encrypted_fields
			  WHERE record_type = $1 AND field_name = $2 AND record_id = $3
			  LIMIT 1`

	var (
		stored usecase.StoredEnvelope
		aad    []byte
	)
	err := querier.QueryRowContext(ctx, query, recordType, fieldName, recordID).Scan(
		&stored.ID,
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

	stored.AADFields, err = unmarshalAADFields(aad)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// ListStale returns up to limit envelopes encrypted under a key version other
// than currentVersion, with ID greater than afterID, ordered by ID.
func (p *PostgreSQLEnvelopeRepository) ListStale(
	ctx context.Context,
	currentVersion string,
	afterID uuid.UUID,
	limit int,
) ([]usecase.StoredEnvelope, error) {
	querier := database.GetTx(ctx, p.db)

	query := `SELECT id, record_type, field_name, record_id, aad_fields, envelope
			  FROM encrypted_fields
			  WHERE key_version <> $1 AND id > $2
			  ORDER BY id
			  LIMIT $3`

	rows, err := querier.QueryContext(ctx, query, currentVersion, afterID, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list stale encrypted fields")
	}
	defer rows.Close()

	var out []usecase.StoredEnvelope
	for rows.Next() {
		var (
			stored usecase.StoredEnvelope
			aad    []byte
		)
		if err := rows.Scan(
			&stored.ID,
			&stored.RecordType,
			&stored.FieldName,
			&stored.RecordID,
			&aad,
			&stored.Envelope,
		); err != nil {
			return nil, apperrors.Wrap(err, "failed to scan encrypted field")
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
func (p *PostgreSQLEnvelopeRepository) Replace(ctx context.Context, id uuid.UUID, envelope []byte) error {
	querier := database.GetTx(ctx, p.db)

	env, err := cryptoDomain.ParseEnvelope(envelope)
	if err != nil {
		return err
	}

	query := `UPDATE encrypted_fields
			  SET envelope = $1, key_version = $2, updated_at = $3
			  WHERE id = $4`

	result, err := querier.ExecContext(ctx, query, envelope, env.KeyVersion, time.Now().UTC(), id)
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
