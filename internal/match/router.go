package match

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/blueray32/bimcalc/internal/domain"
)

// Router turns a scored, flagged candidate into the final decision.
// Auto-accept requires confidence at or above the threshold AND zero flags
// of any severity; advisory flags are as blocking as critical ones here.
type Router struct {
	threshold int
}

// NewRouter creates a router with the given auto-accept threshold.
func NewRouter(threshold int) *Router {
	return &Router{threshold: threshold}
}

// Route produces the MatchResult for one candidate match.
func (r *Router) Route(item *domain.Item, cm domain.CandidateMatch, source domain.DecisionSource, actor string) domain.MatchResult {
	result := domain.MatchResult{
		ID:         uuid.New(),
		ItemID:     item.ID,
		TenantID:   item.TenantID,
		Confidence: cm.Score,
		Method:     cm.Method,
		Source:     source,
		Flags:      cm.Flags,
		Actor:      actor,
		CreatedAt:  time.Now(),
	}
	candidateID := cm.Candidate.ID
	result.PriceItemID = &candidateID

	if cm.Score >= r.threshold && len(cm.Flags) == 0 {
		result.Decision = domain.DecisionAutoAccepted
		result.Reason = fmt.Sprintf("confidence %d >= %d, no flags", cm.Score, r.threshold)
		return result
	}

	result.Decision = domain.DecisionManualReview
	result.Reason = r.reviewReason(cm)
	return result
}

// Reject builds the terminal result for an item with no usable candidates.
func (r *Router) Reject(item *domain.Item, reason, actor string) domain.MatchResult {
	return domain.MatchResult{
		ID:        uuid.New(),
		ItemID:    item.ID,
		TenantID:  item.TenantID,
		Source:    domain.SourceFuzzyMatch,
		Flags:     []domain.Flag{},
		Decision:  domain.DecisionRejected,
		Reason:    reason,
		Actor:     actor,
		CreatedAt: time.Now(),
	}
}

func (r *Router) reviewReason(cm domain.CandidateMatch) string {
	var shortfalls []string
	if cm.Score < r.threshold {
		shortfalls = append(shortfalls, fmt.Sprintf("confidence %d below threshold %d", cm.Score, r.threshold))
	}
	if len(cm.Flags) > 0 {
		shortfalls = append(shortfalls, "flags: "+strings.Join(domain.FlagTypes(cm.Flags), ", "))
	}
	return strings.Join(shortfalls, "; ")
}
