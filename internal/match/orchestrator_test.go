package match

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/blueray32/bimcalc/internal/canonical"
	"github.com/blueray32/bimcalc/internal/classify"
	"github.com/blueray32/bimcalc/internal/domain"
)

const orchestratorRules = `
version: 1
levels:
  - kind: keyword_fallback
    priority: 50
    keyword_rules:
      - keywords: [elbow]
        code: 2215
  - kind: unknown
    priority: 0
    code: 9999
`

type engineFixture struct {
	engine   *Engine
	items    *fakeItemRepo
	prices   *fakePriceRepo
	mappings *fakeMappingRepo
	results  *fakeResultRepo
}

func newEngineFixture(t *testing.T, prices []domain.PriceItem) *engineFixture {
	t.Helper()

	rulePath := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(rulePath, []byte(orchestratorRules), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	classifier, err := classify.New(rulePath, zerolog.Nop())
	if err != nil {
		t.Fatalf("build classifier: %v", err)
	}

	fixture := &engineFixture{
		items:    newFakeItemRepo(),
		prices:   &fakePriceRepo{items: prices},
		mappings: &fakeMappingRepo{},
		results:  &fakeResultRepo{},
	}
	fixture.engine = NewEngine(
		classifier,
		DefaultConfig(),
		fixture.items,
		fixture.prices,
		fixture.mappings,
		fixture.results,
		zerolog.Nop(),
	)
	return fixture
}

var testTenant = uuid.New()

func elbowItem() *domain.Item {
	return &domain.Item{
		ID:                 uuid.New(),
		TenantID:           testTenant,
		ProjectID:          uuid.New(),
		Family:             "Pipe Elbow",
		ClassificationCode: ptr(2215),
		Unit:               "ea",
		DNMM:               ptr(100.0),
		AngleDeg:           ptr(90.0),
	}
}

func elbowCandidate() domain.PriceItem {
	return domain.PriceItem{
		ID:                 uuid.New(),
		TenantID:           testTenant,
		ItemCode:           "PE-100-90",
		Description:        "Pipe Elbow",
		ClassificationCode: ptr(2215),
		Unit:               "ea",
		UnitPrice:          decimal.NewFromFloat(45.50),
		Currency:           "EUR",
		VATRate:            decimalPtr("19"),
		DNMM:               ptr(100.0),
		AngleDeg:           ptr(90.0),
		IsCurrent:          true,
		UpdatedAt:          time.Now(),
	}
}

func TestMatch_AutoAcceptScenario(t *testing.T) {
	candidate := elbowCandidate()
	fixture := newEngineFixture(t, []domain.PriceItem{candidate})
	item := elbowItem()

	result, matched, err := fixture.engine.Match(context.Background(), item, "batch")
	if err != nil {
		t.Fatalf("match: %v", err)
	}

	if result.Decision != domain.DecisionAutoAccepted {
		t.Fatalf("decision = %s (reason %q), want auto-accepted", result.Decision, result.Reason)
	}
	if len(result.Flags) != 0 {
		t.Errorf("auto-accept requires zero flags, got %v", result.Flags)
	}
	if result.Confidence < 85 {
		t.Errorf("confidence = %d, want >= 85", result.Confidence)
	}
	if matched == nil || matched.ID != candidate.ID {
		t.Error("matched candidate should be returned")
	}

	// Accepted match is remembered.
	if item.CanonicalKey == nil {
		t.Fatal("canonical key must be set on the item")
	}
	id, err := fixture.mappings.LookupActive(context.Background(), item.TenantID, *item.CanonicalKey)
	if err != nil {
		t.Fatalf("mapping lookup: %v", err)
	}
	if id != candidate.ID {
		t.Errorf("mapping memory should point at the accepted candidate")
	}
}

func TestMatch_UnitConflictGoesToReview(t *testing.T) {
	candidate := elbowCandidate()
	fixture := newEngineFixture(t, []domain.PriceItem{candidate})
	item := elbowItem()
	item.Unit = "m"

	result, _, err := fixture.engine.Match(context.Background(), item, "batch")
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if result.Decision != domain.DecisionManualReview {
		t.Fatalf("decision = %s, want manual-review", result.Decision)
	}
	flag := findFlag(result.Flags, domain.FlagUnitConflict)
	if flag == nil || flag.Severity != domain.SeverityCritical {
		t.Errorf("expected critical unit conflict flag, got %v", result.Flags)
	}
	if fixture.mappings.activeCount(item.TenantID, *item.CanonicalKey) != 0 {
		t.Error("review decision must not write mapping memory")
	}
}

func TestMatch_EscapeHatch(t *testing.T) {
	// Three out-of-class candidates within tolerance; no in-class rows.
	outOfClass := make([]domain.PriceItem, 3)
	for i := range outOfClass {
		candidate := elbowCandidate()
		candidate.ID = uuid.New()
		candidate.ClassificationCode = ptr(22)
		outOfClass[i] = candidate
	}
	fixture := newEngineFixture(t, outOfClass)

	item := elbowItem()
	item.ClassificationCode = ptr(66)

	result, _, err := fixture.engine.Match(context.Background(), item, "batch")
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if result.Decision != domain.DecisionManualReview {
		t.Fatalf("escape hatch match must go to review, got %s", result.Decision)
	}
	flag := findFlag(result.Flags, domain.FlagClassMismatch)
	if flag == nil || flag.Severity != domain.SeverityCritical {
		t.Fatalf("expected critical class mismatch flag, got %v", result.Flags)
	}
}

func TestGenerateWithEscapeHatch_Cap(t *testing.T) {
	outOfClass := make([]domain.PriceItem, 5)
	for i := range outOfClass {
		candidate := elbowCandidate()
		candidate.ID = uuid.New()
		candidate.ClassificationCode = ptr(22)
		outOfClass[i] = candidate
	}
	fixture := newEngineFixture(t, outOfClass)

	item := elbowItem()
	item.ClassificationCode = ptr(66)

	candidates, usedHatch, err := fixture.engine.generator.GenerateWithEscapeHatch(context.Background(), item)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !usedHatch {
		t.Fatal("escape hatch should engage when blocking is empty")
	}
	if len(candidates) > DefaultConfig().EscapeHatchCap {
		t.Errorf("escape hatch returned %d candidates, cap is %d", len(candidates), DefaultConfig().EscapeHatchCap)
	}

	// With in-class candidates present the hatch stays closed.
	item.ClassificationCode = ptr(22)
	_, usedHatch, err = fixture.engine.generator.GenerateWithEscapeHatch(context.Background(), item)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if usedHatch {
		t.Error("escape hatch must not engage with in-class candidates")
	}
}

func TestMatch_NoCandidatesRejects(t *testing.T) {
	fixture := newEngineFixture(t, nil)
	item := elbowItem()

	result, matched, err := fixture.engine.Match(context.Background(), item, "batch")
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if result.Decision != domain.DecisionRejected {
		t.Fatalf("decision = %s, want rejected", result.Decision)
	}
	if matched != nil {
		t.Error("reject has no matched candidate")
	}
	if result.Reason == "" {
		t.Error("reject must carry a reason")
	}
	if len(fixture.results.results) != 1 {
		t.Errorf("every path persists exactly one result, got %d", len(fixture.results.results))
	}
}

func TestMatch_ClassifiesWhenUnset(t *testing.T) {
	candidate := elbowCandidate()
	fixture := newEngineFixture(t, []domain.PriceItem{candidate})

	item := elbowItem()
	item.ClassificationCode = nil // keyword fallback resolves "elbow" to 2215

	result, _, err := fixture.engine.Match(context.Background(), item, "batch")
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if item.ClassificationCode == nil || *item.ClassificationCode != 2215 {
		t.Fatalf("classifier should have assigned 2215, got %v", item.ClassificationCode)
	}
	if result.Decision != domain.DecisionAutoAccepted {
		t.Errorf("decision = %s, want auto-accepted", result.Decision)
	}
	if _, ok := fixture.items.saved[item.ID]; !ok {
		t.Error("classification must be persisted on the item")
	}
}

func TestMatch_MappingMemoryHit(t *testing.T) {
	candidate := elbowCandidate()
	fixture := newEngineFixture(t, []domain.PriceItem{candidate})
	item := elbowItem()

	// First run accepts and writes memory.
	first, _, err := fixture.engine.Match(context.Background(), item, "batch")
	if err != nil {
		t.Fatalf("first match: %v", err)
	}
	if first.Source != domain.SourceFuzzyMatch {
		t.Fatalf("first source = %s", first.Source)
	}

	// Second run of an identical item short-circuits through memory.
	second, matched, err := fixture.engine.Match(context.Background(), elbowItem(), "batch")
	if err != nil {
		t.Fatalf("second match: %v", err)
	}
	if second.Source != domain.SourceMappingMemory {
		t.Fatalf("second source = %s, want mapping_memory", second.Source)
	}
	if second.Confidence != 100 || second.Method != domain.MethodCanonicalKey {
		t.Errorf("memory hit should score 100 via canonical_key, got %d/%s", second.Confidence, second.Method)
	}
	if matched == nil || matched.ID != candidate.ID {
		t.Error("memory hit must return the remembered candidate")
	}

	// The hit does not rewrite the temporal store.
	history, err := fixture.mappings.History(context.Background(), item.TenantID, *item.CanonicalKey)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("memory hit must not append mapping rows, history has %d", len(history))
	}
}

func TestMatch_MappingMemoryHitStillRunsFlags(t *testing.T) {
	candidate := elbowCandidate()
	candidate.UpdatedAt = time.Now().AddDate(-2, 0, 0) // stale price
	fixture := newEngineFixture(t, []domain.PriceItem{candidate})
	item := elbowItem()

	// Seed memory directly, as if a reviewer accepted this mapping before
	// the price went stale.
	if _, err := fixture.mappings.Write(context.Background(), item.TenantID,
		mustKey(t, item), candidate.ID, "reviewer", "accepted in review"); err != nil {
		t.Fatalf("seed mapping: %v", err)
	}

	result, _, err := fixture.engine.Match(context.Background(), item, "batch")
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if result.Source != domain.SourceMappingMemory {
		t.Fatalf("source = %s, want mapping_memory", result.Source)
	}
	if result.Decision != domain.DecisionManualReview {
		t.Fatalf("stale remembered candidate must go to review, got %s", result.Decision)
	}
	if findFlag(result.Flags, domain.FlagStalePrice) == nil {
		t.Errorf("expected stale price flag on memory hit, got %v", result.Flags)
	}
}

func TestMatch_RetriesMappingConflictOnce(t *testing.T) {
	candidate := elbowCandidate()
	fixture := newEngineFixture(t, []domain.PriceItem{candidate})
	fixture.mappings.failNextWrite = true

	result, _, err := fixture.engine.Match(context.Background(), elbowItem(), "batch")
	if err != nil {
		t.Fatalf("match should survive one write conflict: %v", err)
	}
	if result.Decision != domain.DecisionAutoAccepted {
		t.Fatalf("decision = %s", result.Decision)
	}
}

func TestMappingFake_TemporalInvariants(t *testing.T) {
	fixture := newEngineFixture(t, nil)
	mappings := fixture.mappings
	ctx := context.Background()

	item := elbowItem()
	key := mustKey(t, item)

	firstTarget := uuid.New()
	secondTarget := uuid.New()

	if _, err := mappings.Write(ctx, testTenant, key, firstTarget, "a", "r1"); err != nil {
		t.Fatalf("write: %v", err)
	}
	t1 := time.Now()
	time.Sleep(5 * time.Millisecond)
	if _, err := mappings.Write(ctx, testTenant, key, secondTarget, "b", "r2"); err != nil {
		t.Fatalf("write: %v", err)
	}

	if got := mappings.activeCount(testTenant, key.Hash); got != 1 {
		t.Fatalf("exactly one active row expected, got %d", got)
	}

	asOf, err := mappings.LookupAsOf(ctx, testTenant, key.Hash, t1)
	if err != nil {
		t.Fatalf("as-of lookup: %v", err)
	}
	if asOf != firstTarget {
		t.Error("as-of t1 must return the t1 target even after later writes")
	}

	active, err := mappings.LookupActive(ctx, testTenant, key.Hash)
	if err != nil {
		t.Fatalf("active lookup: %v", err)
	}
	if active != secondTarget {
		t.Error("active lookup must return the latest target")
	}
}

func mustKey(t *testing.T, item *domain.Item) canonical.Key {
	t.Helper()
	key, err := canonical.Generate(item)
	if err != nil {
		t.Fatalf("canonical key: %v", err)
	}
	return key
}
