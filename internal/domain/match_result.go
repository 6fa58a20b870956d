package domain

import (
	"time"

	"github.com/google/uuid"
)

// DecisionSource identifies which path of the pipeline produced a result.
type DecisionSource string

const (
	SourceMappingMemory DecisionSource = "mapping_memory"
	SourceFuzzyMatch    DecisionSource = "fuzzy_match"
	SourceManualReview  DecisionSource = "manual_review"
)

// Decision is the routing outcome for a match attempt.
type Decision string

const (
	DecisionAutoAccepted Decision = "auto-accepted"
	DecisionManualReview Decision = "manual-review"
	DecisionRejected     Decision = "rejected"
)

// Scoring methods, in the priority order the confidence scorer applies them.
const (
	MethodExactMPN      = "exact_mpn"
	MethodExactSKU      = "exact_sku"
	MethodCanonicalKey  = "canonical_key"
	MethodEnhancedFuzzy = "enhanced_fuzzy"
)

// MatchResult is the append-only audit record of one match attempt.
// Every item run produces exactly one, including rejects.
type MatchResult struct {
	ID          uuid.UUID
	ItemID      uuid.UUID
	TenantID    uuid.UUID
	PriceItemID *uuid.UUID
	Confidence  int
	Method      string
	Source      DecisionSource
	Flags       []Flag
	Decision    Decision
	Reason      string
	Actor       string
	CreatedAt   time.Time
}

// CandidateMatch pairs a price candidate with its score and flags while it
// moves between the ranker and the router. Transient, never persisted as-is.
type CandidateMatch struct {
	Candidate PriceItem
	Score     int
	Method    string
	Flags     []Flag
}
