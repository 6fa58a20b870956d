// Package repository holds the pgx-backed persistence layer of the
// matching core.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/blueray32/bimcalc/internal/canonical"
	"github.com/blueray32/bimcalc/internal/domain"
)

// MappingRepository is the temporal (SCD Type-2) key→price-record memory.
type MappingRepository interface {
	// LookupActive returns the price record id of the open-ended row for
	// (tenant, key), or domain.ErrNotFound. Single indexed lookup.
	LookupActive(ctx context.Context, tenantID uuid.UUID, key string) (uuid.UUID, error)

	// Write closes any active row for (tenant, key) and inserts a new
	// open-ended one, in a single serialized transaction. A concurrent
	// writer on the same key surfaces as domain.ErrMappingConflict, which
	// is safe to retry.
	Write(ctx context.Context, tenantID uuid.UUID, key canonical.Key, priceItemID uuid.UUID, actor, reason string) (uuid.UUID, error)

	// LookupAsOf returns the price record id that was valid at ts. Two
	// calls with the same ts return identical results forever.
	LookupAsOf(ctx context.Context, tenantID uuid.UUID, key string, ts time.Time) (uuid.UUID, error)

	// History returns all rows for (tenant, key) ordered by ValidFrom.
	History(ctx context.Context, tenantID uuid.UUID, key string) ([]domain.MappingEntry, error)
}

// CandidateFilter carries the numeric tolerance filters the candidate
// query applies. Nil dimensions on either side pass the filter.
type CandidateFilter struct {
	WidthMM             *float64
	HeightMM            *float64
	DNMM                *float64
	LinearToleranceMM   float64
	DiameterToleranceMM float64
}

// PriceItemRepository reads the vendor price catalog.
type PriceItemRepository interface {
	// FindCandidates returns currently-valid catalog rows for the tenant,
	// blocked to classCode when non-nil, tolerance-filtered, capped at limit.
	FindCandidates(ctx context.Context, tenantID uuid.UUID, classCode *int, filter CandidateFilter, limit int) ([]domain.PriceItem, error)

	GetByID(ctx context.Context, id uuid.UUID) (domain.PriceItem, error)
}

// MatchResultRepository appends audit rows; results are never mutated.
type MatchResultRepository interface {
	Insert(ctx context.Context, result domain.MatchResult) (domain.MatchResult, error)
	ListByItem(ctx context.Context, itemID uuid.UUID) ([]domain.MatchResult, error)
}

// ItemRepository reads schedule items and records classification output.
type ItemRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Item, error)
	ListUnmatched(ctx context.Context, tenantID, projectID uuid.UUID, limit int) ([]domain.Item, error)
	SaveClassification(ctx context.Context, id uuid.UUID, classCode int, key canonical.Key) error
}
