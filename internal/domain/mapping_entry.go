package domain

import (
	"time"

	"github.com/google/uuid"
)

// MappingEntry is one temporal row of mapping memory: a canonical key
// resolved to a price record for a validity window. Rows are append-only;
// superseding a mapping closes the active row (sets ValidTo) and inserts
// a new one. For a given (tenant, canonical key) at most one row has
// ValidTo = nil at any instant.
type MappingEntry struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	CanonicalKey    string
	CanonicalSource string
	PriceItemID     uuid.UUID
	ValidFrom       time.Time
	ValidTo         *time.Time
	CreatedBy       string
	Reason          string
}

// Active reports whether this row is the open-ended one.
func (m *MappingEntry) Active() bool {
	return m.ValidTo == nil
}

// CoversInstant reports whether the validity window contains ts.
func (m *MappingEntry) CoversInstant(ts time.Time) bool {
	if ts.Before(m.ValidFrom) {
		return false
	}
	return m.ValidTo == nil || ts.Before(*m.ValidTo)
}
