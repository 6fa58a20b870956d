package match

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/blueray32/bimcalc/internal/domain"
	"github.com/blueray32/bimcalc/internal/repository"
)

// CandidateGenerator retrieves price-catalog rows blocked by tenant and
// classification code. Blocking is what keeps fuzzy ranking affordable; the
// escape hatch trades a little precision back for recall when blocking
// yields nothing.
type CandidateGenerator struct {
	prices repository.PriceItemRepository
	cfg    Config
	logger zerolog.Logger
}

// NewCandidateGenerator wires a generator over the price catalog.
func NewCandidateGenerator(prices repository.PriceItemRepository, cfg Config, logger zerolog.Logger) *CandidateGenerator {
	return &CandidateGenerator{prices: prices, cfg: cfg, logger: logger}
}

// Generate returns in-class candidates for the item, tolerance-filtered and
// capped at limit.
func (g *CandidateGenerator) Generate(ctx context.Context, item *domain.Item, limit int) ([]domain.PriceItem, error) {
	if item.TenantID == uuid.Nil {
		return nil, domain.NewValidationError("tenant_id", "required for candidate generation")
	}
	if item.ClassificationCode == nil {
		return nil, domain.NewValidationError("classification_code", "required for candidate generation")
	}
	if limit <= 0 {
		limit = g.cfg.MaxCandidates
	}

	return g.prices.FindCandidates(ctx, item.TenantID, item.ClassificationCode, g.filter(item), limit)
}

// GenerateWithEscapeHatch first attempts in-class generation; when that is
// empty it relaxes the classification block (keeping tenant scope and
// numeric filters) and returns at most the configured escape-hatch cap.
// The boolean reports whether the hatch engaged.
func (g *CandidateGenerator) GenerateWithEscapeHatch(ctx context.Context, item *domain.Item) ([]domain.PriceItem, bool, error) {
	candidates, err := g.Generate(ctx, item, g.cfg.MaxCandidates)
	if err != nil {
		return nil, false, err
	}
	if len(candidates) > 0 {
		return candidates, false, nil
	}

	maxEscape := g.cfg.EscapeHatchCap
	if maxEscape <= 0 {
		return nil, false, nil
	}

	escaped, err := g.prices.FindCandidates(ctx, item.TenantID, nil, g.filter(item), maxEscape)
	if err != nil {
		return nil, false, err
	}
	if len(escaped) == 0 {
		return nil, false, nil
	}

	g.logger.Info().
		Str("item_id", item.ID.String()).
		Int("class", *item.ClassificationCode).
		Int("candidates", len(escaped)).
		Msg("classification block empty, escape hatch engaged")

	return escaped, true, nil
}

func (g *CandidateGenerator) filter(item *domain.Item) repository.CandidateFilter {
	return repository.CandidateFilter{
		WidthMM:             item.WidthMM,
		HeightMM:            item.HeightMM,
		DNMM:                item.DNMM,
		LinearToleranceMM:   g.cfg.LinearToleranceMM,
		DiameterToleranceMM: g.cfg.DiameterToleranceMM,
	}
}
