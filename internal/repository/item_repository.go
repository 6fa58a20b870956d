package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/blueray32/bimcalc/internal/canonical"
	"github.com/blueray32/bimcalc/internal/db"
	"github.com/blueray32/bimcalc/internal/domain"
)

type itemRepository struct {
	conn *db.Connection
}

// NewItemRepository creates the schedule item accessor.
func NewItemRepository(conn *db.Connection) ItemRepository {
	return &itemRepository{conn: conn}
}

const itemColumns = `
	id, tenant_id, project_id, family, type_name, category, system_type,
	classification_code, canonical_key, unit, quantity, width_mm, height_mm,
	dn_mm, angle_deg, material, manufacturer_part, vendor_sku,
	external_class_code, assembly_code, created_at, updated_at`

func (r *itemRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Item, error) {
	row := r.conn.Pool.QueryRow(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE id = $1`,
		id,
	)

	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Item{}, domain.ErrNotFound
		}
		return domain.Item{}, fmt.Errorf("failed to get item: %w", err)
	}
	return item, nil
}

// ListUnmatched returns project items with no match result yet, oldest first.
func (r *itemRepository) ListUnmatched(ctx context.Context, tenantID, projectID uuid.UUID, limit int) ([]domain.Item, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.conn.Pool.Query(ctx, `
		SELECT `+itemColumns+`
		FROM items i
		WHERE tenant_id = $1 AND project_id = $2
		  AND NOT EXISTS (SELECT 1 FROM match_results m WHERE m.item_id = i.id)
		ORDER BY created_at ASC
		LIMIT $3`,
		tenantID, projectID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list unmatched items: %w", err)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read items: %w", err)
	}

	return items, nil
}

func (r *itemRepository) SaveClassification(ctx context.Context, id uuid.UUID, classCode int, key canonical.Key) error {
	tag, err := r.conn.Pool.Exec(ctx, `
		UPDATE items
		SET classification_code = $2, canonical_key = $3, updated_at = now()
		WHERE id = $1`,
		id, classCode, key.Hash,
	)
	if err != nil {
		return fmt.Errorf("failed to save classification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanItem(row pgx.Row) (domain.Item, error) {
	var item domain.Item
	err := row.Scan(
		&item.ID, &item.TenantID, &item.ProjectID, &item.Family,
		&item.TypeName, &item.Category, &item.SystemType,
		&item.ClassificationCode, &item.CanonicalKey, &item.Unit,
		&item.Quantity, &item.WidthMM, &item.HeightMM, &item.DNMM,
		&item.AngleDeg, &item.Material, &item.ManufacturerPart,
		&item.VendorSKU, &item.ExternalClassCode, &item.AssemblyCode,
		&item.CreatedAt, &item.UpdatedAt,
	)
	return item, err
}
