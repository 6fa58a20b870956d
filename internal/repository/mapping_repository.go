package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/blueray32/bimcalc/internal/canonical"
	"github.com/blueray32/bimcalc/internal/db"
	"github.com/blueray32/bimcalc/internal/domain"
)

// uniqueViolation is the Postgres error code raised by the partial unique
// index on (tenant_id, canonical_key) WHERE valid_to IS NULL.
const uniqueViolation = "23505"

// serializationFailure is raised when two serializable writers conflict.
const serializationFailure = "40001"

type mappingRepository struct {
	conn *db.Connection
}

// NewMappingRepository creates the SCD Type-2 mapping store.
func NewMappingRepository(conn *db.Connection) MappingRepository {
	return &mappingRepository{conn: conn}
}

func (r *mappingRepository) LookupActive(ctx context.Context, tenantID uuid.UUID, key string) (uuid.UUID, error) {
	var priceItemID uuid.UUID
	err := r.conn.Pool.QueryRow(ctx, `
		SELECT price_item_id
		FROM item_price_mappings
		WHERE tenant_id = $1 AND canonical_key = $2 AND valid_to IS NULL`,
		tenantID, key,
	).Scan(&priceItemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, domain.ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to look up active mapping: %w", err)
	}
	return priceItemID, nil
}

func (r *mappingRepository) Write(ctx context.Context, tenantID uuid.UUID, key canonical.Key, priceItemID uuid.UUID, actor, reason string) (uuid.UUID, error) {
	var newID uuid.UUID

	err := r.conn.WithSerializableTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			UPDATE item_price_mappings
			SET valid_to = now()
			WHERE tenant_id = $1 AND canonical_key = $2 AND valid_to IS NULL`,
			tenantID, key.Hash,
		); err != nil {
			return fmt.Errorf("failed to close active mapping: %w", err)
		}

		if err := tx.QueryRow(ctx, `
			INSERT INTO item_price_mappings
				(id, tenant_id, canonical_key, canonical_source, price_item_id, valid_from, valid_to, created_by, reason)
			VALUES ($1, $2, $3, $4, $5, now(), NULL, $6, $7)
			RETURNING id`,
			uuid.New(), tenantID, key.Hash, key.Source, priceItemID, actor, reason,
		).Scan(&newID); err != nil {
			return fmt.Errorf("failed to insert mapping: %w", err)
		}

		return nil
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && (pgErr.Code == uniqueViolation || pgErr.Code == serializationFailure) {
			return uuid.Nil, domain.ErrMappingConflict
		}
		return uuid.Nil, err
	}

	return newID, nil
}

func (r *mappingRepository) LookupAsOf(ctx context.Context, tenantID uuid.UUID, key string, ts time.Time) (uuid.UUID, error) {
	var priceItemID uuid.UUID
	err := r.conn.Pool.QueryRow(ctx, `
		SELECT price_item_id
		FROM item_price_mappings
		WHERE tenant_id = $1 AND canonical_key = $2
		  AND valid_from <= $3
		  AND (valid_to IS NULL OR valid_to > $3)`,
		tenantID, key, ts,
	).Scan(&priceItemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, domain.ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to look up mapping as of %s: %w", ts, err)
	}
	return priceItemID, nil
}

func (r *mappingRepository) History(ctx context.Context, tenantID uuid.UUID, key string) ([]domain.MappingEntry, error) {
	rows, err := r.conn.Pool.Query(ctx, `
		SELECT id, tenant_id, canonical_key, canonical_source, price_item_id,
		       valid_from, valid_to, created_by, reason
		FROM item_price_mappings
		WHERE tenant_id = $1 AND canonical_key = $2
		ORDER BY valid_from ASC`,
		tenantID, key,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load mapping history: %w", err)
	}
	defer rows.Close()

	var entries []domain.MappingEntry
	for rows.Next() {
		var entry domain.MappingEntry
		if err := rows.Scan(
			&entry.ID, &entry.TenantID, &entry.CanonicalKey, &entry.CanonicalSource,
			&entry.PriceItemID, &entry.ValidFrom, &entry.ValidTo,
			&entry.CreatedBy, &entry.Reason,
		); err != nil {
			return nil, fmt.Errorf("failed to scan mapping entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read mapping history: %w", err)
	}

	return entries, nil
}
