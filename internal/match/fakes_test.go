package match

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blueray32/bimcalc/internal/canonical"
	"github.com/blueray32/bimcalc/internal/domain"
	"github.com/blueray32/bimcalc/internal/repository"
)

// In-memory repository fakes mirroring the SQL semantics of the pgx
// implementations.

type fakeItemRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]domain.Item
	saved map[uuid.UUID]canonical.Key
}

func newFakeItemRepo() *fakeItemRepo {
	return &fakeItemRepo{
		items: make(map[uuid.UUID]domain.Item),
		saved: make(map[uuid.UUID]canonical.Key),
	}
}

func (r *fakeItemRepo) GetByID(_ context.Context, id uuid.UUID) (domain.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return domain.Item{}, domain.ErrNotFound
	}
	return item, nil
}

func (r *fakeItemRepo) ListUnmatched(_ context.Context, tenantID, projectID uuid.UUID, limit int) ([]domain.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []domain.Item
	for _, item := range r.items {
		if item.TenantID == tenantID && item.ProjectID == projectID {
			items = append(items, item)
		}
		if len(items) == limit {
			break
		}
	}
	return items, nil
}

func (r *fakeItemRepo) SaveClassification(_ context.Context, id uuid.UUID, classCode int, key canonical.Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved[id] = key
	if item, ok := r.items[id]; ok {
		item.ClassificationCode = &classCode
		item.CanonicalKey = &key.Hash
		r.items[id] = item
	}
	return nil
}

type fakePriceRepo struct {
	items []domain.PriceItem
}

func (r *fakePriceRepo) FindCandidates(_ context.Context, tenantID uuid.UUID, classCode *int, filter repository.CandidateFilter, limit int) ([]domain.PriceItem, error) {
	var out []domain.PriceItem
	for _, item := range r.items {
		if item.TenantID != tenantID || !item.IsCurrent {
			continue
		}
		if classCode != nil && (item.ClassificationCode == nil || *item.ClassificationCode != *classCode) {
			continue
		}
		if !withinTolerance(filter.WidthMM, item.WidthMM, filter.LinearToleranceMM) ||
			!withinTolerance(filter.HeightMM, item.HeightMM, filter.LinearToleranceMM) ||
			!withinTolerance(filter.DNMM, item.DNMM, filter.DiameterToleranceMM) {
			continue
		}
		out = append(out, item)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func withinTolerance(a, b *float64, tol float64) bool {
	if a == nil || b == nil {
		return true
	}
	return math.Abs(*a-*b) <= tol
}

func (r *fakePriceRepo) GetByID(_ context.Context, id uuid.UUID) (domain.PriceItem, error) {
	for _, item := range r.items {
		if item.ID == id {
			return item, nil
		}
	}
	return domain.PriceItem{}, domain.ErrNotFound
}

type fakeMappingRepo struct {
	mu      sync.Mutex
	entries []domain.MappingEntry

	// failNextWrite simulates a concurrent-writer conflict once.
	failNextWrite bool
}

func (r *fakeMappingRepo) LookupActive(_ context.Context, tenantID uuid.UUID, key string) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.entries {
		if entry.TenantID == tenantID && entry.CanonicalKey == key && entry.Active() {
			return entry.PriceItemID, nil
		}
	}
	return uuid.Nil, domain.ErrNotFound
}

func (r *fakeMappingRepo) Write(_ context.Context, tenantID uuid.UUID, key canonical.Key, priceItemID uuid.UUID, actor, reason string) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failNextWrite {
		r.failNextWrite = false
		return uuid.Nil, domain.ErrMappingConflict
	}

	now := time.Now()
	for i := range r.entries {
		entry := &r.entries[i]
		if entry.TenantID == tenantID && entry.CanonicalKey == key.Hash && entry.Active() {
			closed := now
			entry.ValidTo = &closed
		}
	}

	newID := uuid.New()
	r.entries = append(r.entries, domain.MappingEntry{
		ID:              newID,
		TenantID:        tenantID,
		CanonicalKey:    key.Hash,
		CanonicalSource: key.Source,
		PriceItemID:     priceItemID,
		ValidFrom:       now,
		CreatedBy:       actor,
		Reason:          reason,
	})
	return newID, nil
}

func (r *fakeMappingRepo) LookupAsOf(_ context.Context, tenantID uuid.UUID, key string, ts time.Time) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.entries {
		if entry.TenantID == tenantID && entry.CanonicalKey == key && entry.CoversInstant(ts) {
			return entry.PriceItemID, nil
		}
	}
	return uuid.Nil, domain.ErrNotFound
}

func (r *fakeMappingRepo) History(_ context.Context, tenantID uuid.UUID, key string) ([]domain.MappingEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var entries []domain.MappingEntry
	for _, entry := range r.entries {
		if entry.TenantID == tenantID && entry.CanonicalKey == key {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (r *fakeMappingRepo) activeCount(tenantID uuid.UUID, key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, entry := range r.entries {
		if entry.TenantID == tenantID && entry.CanonicalKey == key && entry.Active() {
			count++
		}
	}
	return count
}

type fakeResultRepo struct {
	mu      sync.Mutex
	results []domain.MatchResult
}

func (r *fakeResultRepo) Insert(_ context.Context, result domain.MatchResult) (domain.MatchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now()
	}
	r.results = append(r.results, result)
	return result, nil
}

func (r *fakeResultRepo) ListByItem(_ context.Context, itemID uuid.UUID) ([]domain.MatchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.MatchResult
	for _, result := range r.results {
		if result.ItemID == itemID {
			out = append(out, result)
		}
	}
	return out, nil
}
