package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/blueray32/bimcalc/internal/db"
	"github.com/blueray32/bimcalc/internal/domain"
)

type matchResultRepository struct {
	conn *db.Connection
}

// NewMatchResultRepository creates the append-only audit store.
func NewMatchResultRepository(conn *db.Connection) MatchResultRepository {
	return &matchResultRepository{conn: conn}
}

func (r *matchResultRepository) Insert(ctx context.Context, result domain.MatchResult) (domain.MatchResult, error) {
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now()
	}
	if result.Flags == nil {
		result.Flags = []domain.Flag{}
	}

	flagsJSON, err := json.Marshal(result.Flags)
	if err != nil {
		return domain.MatchResult{}, fmt.Errorf("failed to marshal flags: %w", err)
	}

	if _, err := r.conn.Pool.Exec(ctx, `
		INSERT INTO match_results
			(id, item_id, tenant_id, price_item_id, confidence, method, source,
			 flags, decision, reason, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		result.ID, result.ItemID, result.TenantID, result.PriceItemID,
		result.Confidence, result.Method, string(result.Source),
		flagsJSON, string(result.Decision), result.Reason, result.Actor,
		result.CreatedAt,
	); err != nil {
		return domain.MatchResult{}, fmt.Errorf("failed to insert match result: %w", err)
	}

	return result, nil
}

func (r *matchResultRepository) ListByItem(ctx context.Context, itemID uuid.UUID) ([]domain.MatchResult, error) {
	rows, err := r.conn.Pool.Query(ctx, `
		SELECT id, item_id, tenant_id, price_item_id, confidence, method,
		       source, flags, decision, reason, actor, created_at
		FROM match_results
		WHERE item_id = $1
		ORDER BY created_at ASC`,
		itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list match results: %w", err)
	}
	defer rows.Close()

	var results []domain.MatchResult
	for rows.Next() {
		var result domain.MatchResult
		var flagsJSON []byte
		var source, decision string
		if err := rows.Scan(
			&result.ID, &result.ItemID, &result.TenantID, &result.PriceItemID,
			&result.Confidence, &result.Method, &source, &flagsJSON,
			&decision, &result.Reason, &result.Actor, &result.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan match result: %w", err)
		}
		result.Source = domain.DecisionSource(source)
		result.Decision = domain.Decision(decision)
		if err := json.Unmarshal(flagsJSON, &result.Flags); err != nil {
			return nil, fmt.Errorf("failed to decode flags for result %s: %w", result.ID, err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read match results: %w", err)
	}

	return results, nil
}
