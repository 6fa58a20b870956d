package match

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/blueray32/bimcalc/internal/canonical"
	"github.com/blueray32/bimcalc/internal/classify"
	"github.com/blueray32/bimcalc/internal/domain"
	"github.com/blueray32/bimcalc/internal/repository"
)

// Engine is the orchestrated entry point: it sequences classification, key
// generation, mapping-memory lookup, candidate generation, ranking,
// scoring, flagging and routing for one item, and persists the outcome.
// Per-item work is independent; a single Engine is safe for concurrent use.
type Engine struct {
	classifier *classify.Classifier
	generator  *CandidateGenerator
	ranker     *Ranker
	scorer     *ConfidenceScorer
	flagEngine *FlagEngine
	router     *Router

	items    repository.ItemRepository
	prices   repository.PriceItemRepository
	mappings repository.MappingRepository
	results  repository.MatchResultRepository

	logger zerolog.Logger
}

// NewEngine wires the matching pipeline.
func NewEngine(
	classifier *classify.Classifier,
	cfg Config,
	items repository.ItemRepository,
	prices repository.PriceItemRepository,
	mappings repository.MappingRepository,
	results repository.MatchResultRepository,
	logger zerolog.Logger,
) *Engine {
	return &Engine{
		classifier: classifier,
		generator:  NewCandidateGenerator(prices, cfg, logger),
		ranker:     NewRanker(cfg.MinFuzzyScore),
		scorer:     NewConfidenceScorer(cfg),
		flagEngine: NewFlagEngine(cfg),
		router:     NewRouter(cfg.AutoAcceptThreshold),
		items:      items,
		prices:     prices,
		mappings:   mappings,
		results:    results,
		logger:     logger,
	}
}

// Classify resolves the item's classification code without running the
// full pipeline.
func (e *Engine) Classify(item *domain.Item) (int, error) {
	return e.classifier.Classify(item)
}

// CanonicalKey returns the item's canonical identity hash.
func (e *Engine) CanonicalKey(item *domain.Item) (string, error) {
	key, err := canonical.Generate(item)
	if err != nil {
		return "", err
	}
	return key.Hash, nil
}

// LookupAsOf exposes reproducible historical mapping lookups.
func (e *Engine) LookupAsOf(ctx context.Context, tenantID uuid.UUID, key string, ts time.Time) (uuid.UUID, error) {
	return e.mappings.LookupAsOf(ctx, tenantID, key, ts)
}

// Match runs the full pipeline for one item. Every path terminates in
// exactly one persisted MatchResult; "no candidates" is a rejected result,
// not an error.
func (e *Engine) Match(ctx context.Context, item *domain.Item, actor string) (domain.MatchResult, *domain.PriceItem, error) {
	if item.ClassificationCode == nil {
		code, err := e.classifier.Classify(item)
		if err != nil {
			return domain.MatchResult{}, nil, err
		}
		item.ClassificationCode = &code
	}

	key, err := canonical.Generate(item)
	if err != nil {
		return domain.MatchResult{}, nil, err
	}
	item.CanonicalKey = &key.Hash

	if item.ID != uuid.Nil {
		if err := e.items.SaveClassification(ctx, item.ID, *item.ClassificationCode, key); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return domain.MatchResult{}, nil, fmt.Errorf("failed to persist classification: %w", err)
		}
	}

	if result, candidate, ok, err := e.tryMappingMemory(ctx, item, key, actor); err != nil {
		return domain.MatchResult{}, nil, err
	} else if ok {
		return result, candidate, nil
	}

	candidates, usedEscapeHatch, err := e.generator.GenerateWithEscapeHatch(ctx, item)
	if err != nil {
		return domain.MatchResult{}, nil, err
	}
	if len(candidates) == 0 {
		return e.persistReject(ctx, item, "no candidates in price catalog", actor)
	}

	ranked, err := e.ranker.Rank(item, candidates)
	if err != nil {
		return domain.MatchResult{}, nil, err
	}
	if len(ranked) == 0 {
		return e.persistReject(ctx, item, "no candidate passed the rank threshold", actor)
	}

	top := ranked[0]
	candidate := top.Candidate

	score, method, _ := e.scorer.Calculate(item, &candidate, nil)
	flags := e.flagEngine.Compute(item, &candidate)
	if usedEscapeHatch && !hasFlag(flags, domain.FlagClassMismatch) {
		flags = append(flags, EscapeHatchFlag(item.ClassificationCode, candidate.ClassificationCode))
	}

	cm := domain.CandidateMatch{Candidate: candidate, Score: score, Method: method, Flags: flags}
	result := e.router.Route(item, cm, domain.SourceFuzzyMatch, actor)

	persisted, err := e.results.Insert(ctx, result)
	if err != nil {
		return domain.MatchResult{}, nil, err
	}

	if persisted.Decision == domain.DecisionAutoAccepted {
		if err := e.writeMapping(ctx, item, key, candidate.ID, actor, persisted.Reason); err != nil {
			return domain.MatchResult{}, nil, err
		}
	}

	e.logResult(item, persisted)
	return persisted, &candidate, nil
}

// tryMappingMemory checks for an active remembered mapping. A hit still
// runs the flag engine: a remembered candidate can fail flags later, for
// example when its price goes stale.
func (e *Engine) tryMappingMemory(ctx context.Context, item *domain.Item, key canonical.Key, actor string) (domain.MatchResult, *domain.PriceItem, bool, error) {
	priceItemID, err := e.mappings.LookupActive(ctx, item.TenantID, key.Hash)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.MatchResult{}, nil, false, nil
		}
		return domain.MatchResult{}, nil, false, err
	}

	candidate, err := e.prices.GetByID(ctx, priceItemID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Remembered target vanished from the catalog; fall through to
			// fresh candidate generation.
			return domain.MatchResult{}, nil, false, nil
		}
		return domain.MatchResult{}, nil, false, err
	}

	score, method, _ := e.scorer.Calculate(item, &candidate, &priceItemID)
	flags := e.flagEngine.Compute(item, &candidate)

	cm := domain.CandidateMatch{Candidate: candidate, Score: score, Method: method, Flags: flags}
	result := e.router.Route(item, cm, domain.SourceMappingMemory, actor)

	// The mapping is already active; accepting it again does not rewrite
	// the temporal store.
	persisted, err := e.results.Insert(ctx, result)
	if err != nil {
		return domain.MatchResult{}, nil, false, err
	}

	e.logResult(item, persisted)
	return persisted, &candidate, true, nil
}

func (e *Engine) persistReject(ctx context.Context, item *domain.Item, reason, actor string) (domain.MatchResult, *domain.PriceItem, error) {
	result := e.router.Reject(item, reason, actor)
	persisted, err := e.results.Insert(ctx, result)
	if err != nil {
		return domain.MatchResult{}, nil, err
	}
	e.logResult(item, persisted)
	return persisted, nil, nil
}

// writeMapping persists an accepted match into mapping memory, retrying
// once on a concurrent-writer conflict.
func (e *Engine) writeMapping(ctx context.Context, item *domain.Item, key canonical.Key, priceItemID uuid.UUID, actor, reason string) error {
	_, err := e.mappings.Write(ctx, item.TenantID, key, priceItemID, actor, reason)
	if errors.Is(err, domain.ErrMappingConflict) {
		e.logger.Warn().
			Str("key", key.Hash).
			Msg("mapping write conflict, retrying")
		_, err = e.mappings.Write(ctx, item.TenantID, key, priceItemID, actor, reason)
	}
	if err != nil {
		return fmt.Errorf("failed to write mapping for key %s: %w", key.Hash, err)
	}
	return nil
}

func (e *Engine) logResult(item *domain.Item, result domain.MatchResult) {
	e.logger.Info().
		Str("item_id", item.ID.String()).
		Str("tenant_id", item.TenantID.String()).
		Str("source", string(result.Source)).
		Str("decision", string(result.Decision)).
		Int("confidence", result.Confidence).
		Strs("flags", domain.FlagTypes(result.Flags)).
		Msg("match routed")
}
