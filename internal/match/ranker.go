package match

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/blueray32/bimcalc/internal/domain"
	"github.com/blueray32/bimcalc/internal/normalize"
)

// Ranker orders price candidates by text similarity against an item.
type Ranker struct {
	minScore int
}

// NewRanker creates a ranker that discards candidates under minScore.
func NewRanker(minScore int) *Ranker {
	return &Ranker{minScore: minScore}
}

// Rank scores every candidate against the item's search text and returns
// the survivors sorted descending. The sort is stable, so candidates with
// equal scores keep their retrieval order.
func (r *Ranker) Rank(item *domain.Item, candidates []domain.PriceItem) ([]domain.CandidateMatch, error) {
	if item.Family == "" {
		return nil, domain.NewValidationError("family", "required for ranking")
	}

	itemText := itemSearchText(item)

	matches := make([]domain.CandidateMatch, 0, len(candidates))
	for _, candidate := range candidates {
		score := TokenSetRatio(itemText, candidate.SearchText())
		if score < r.minScore {
			continue
		}
		matches = append(matches, domain.CandidateMatch{Candidate: candidate, Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	return matches, nil
}

func itemSearchText(item *domain.Item) string {
	parts := []string{item.Family}
	if item.TypeName != "" {
		parts = append(parts, item.TypeName)
	}
	if item.Material != nil && *item.Material != "" {
		parts = append(parts, *item.Material)
	}
	return strings.Join(parts, " ")
}

// TokenSetRatio computes a token-order-insensitive similarity in [0,100].
// Both sides are normalized, tokenized, deduplicated and sorted before a
// Levenshtein comparison, so "Elbow Pipe Steel" and "steel pipe-elbow"
// score 100.
func TokenSetRatio(a, b string) int {
	left := sortedTokenString(a)
	right := sortedTokenString(b)

	if left == "" && right == "" {
		return 100
	}
	if left == "" || right == "" {
		return 0
	}
	if left == right {
		return 100
	}

	distance := levenshtein.ComputeDistance(left, right)
	longest := len([]rune(left))
	if l := len([]rune(right)); l > longest {
		longest = l
	}

	score := 100 - (100*distance)/longest
	if score < 0 {
		score = 0
	}
	return score
}

func sortedTokenString(s string) string {
	tokens := normalize.Tokens(s)
	if len(tokens) == 0 {
		return ""
	}

	seen := make(map[string]struct{}, len(tokens))
	unique := tokens[:0]
	for _, token := range tokens {
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		unique = append(unique, token)
	}

	sort.Strings(unique)
	return strings.Join(unique, " ")
}
