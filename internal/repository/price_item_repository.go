package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/blueray32/bimcalc/internal/db"
	"github.com/blueray32/bimcalc/internal/domain"
)

type priceItemRepository struct {
	conn *db.Connection
}

// NewPriceItemRepository creates the read-only price catalog accessor.
func NewPriceItemRepository(conn *db.Connection) PriceItemRepository {
	return &priceItemRepository{conn: conn}
}

const priceItemColumns = `
	id, tenant_id, item_code, region, classification_code, sku, description,
	unit, unit_price, currency, vat_rate, width_mm, height_mm, dn_mm,
	angle_deg, material, vendor_note, is_current, updated_at`

// FindCandidates runs the blocking query: tenant scope, optional
// classification block, and independent per-dimension tolerance filters.
// A dimension filter passes when the dimension is null on either side or
// the difference is within tolerance.
func (r *priceItemRepository) FindCandidates(ctx context.Context, tenantID uuid.UUID, classCode *int, filter CandidateFilter, limit int) ([]domain.PriceItem, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.conn.Pool.Query(ctx, `
		SELECT `+priceItemColumns+`
		FROM price_items
		WHERE tenant_id = $1
		  AND is_current
		  AND ($2::int IS NULL OR classification_code = $2)
		  AND ($3::float8 IS NULL OR width_mm IS NULL OR abs(width_mm - $3) <= $6)
		  AND ($4::float8 IS NULL OR height_mm IS NULL OR abs(height_mm - $4) <= $6)
		  AND ($5::float8 IS NULL OR dn_mm IS NULL OR abs(dn_mm - $5) <= $7)
		ORDER BY updated_at DESC, id
		LIMIT $8`,
		tenantID, classCode,
		filter.WidthMM, filter.HeightMM, filter.DNMM,
		filter.LinearToleranceMM, filter.DiameterToleranceMM,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find price candidates: %w", err)
	}
	defer rows.Close()

	return scanPriceItems(rows)
}

func (r *priceItemRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.PriceItem, error) {
	row := r.conn.Pool.QueryRow(ctx, `
		SELECT `+priceItemColumns+`
		FROM price_items
		WHERE id = $1`,
		id,
	)

	item, err := scanPriceItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PriceItem{}, domain.ErrNotFound
		}
		return domain.PriceItem{}, fmt.Errorf("failed to get price item: %w", err)
	}
	return item, nil
}

func scanPriceItems(rows pgx.Rows) ([]domain.PriceItem, error) {
	var items []domain.PriceItem
	for rows.Next() {
		item, err := scanPriceItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read price items: %w", err)
	}
	return items, nil
}

func scanPriceItem(row pgx.Row) (domain.PriceItem, error) {
	var item domain.PriceItem
	err := row.Scan(
		&item.ID, &item.TenantID, &item.ItemCode, &item.Region,
		&item.ClassificationCode, &item.SKU, &item.Description,
		&item.Unit, &item.UnitPrice, &item.Currency, &item.VATRate,
		&item.WidthMM, &item.HeightMM, &item.DNMM, &item.AngleDeg,
		&item.Material, &item.VendorNote, &item.IsCurrent, &item.UpdatedAt,
	)
	return item, err
}
