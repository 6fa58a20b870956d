package match

import (
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/blueray32/bimcalc/internal/domain"
	"github.com/blueray32/bimcalc/internal/normalize"
)

// Weighted fuzzy component weights. They sum to 1.0; components whose
// inputs are missing on both sides drop out and the rest renormalize.
const (
	weightFamily    = 0.30
	weightType      = 0.25
	weightMaterial  = 0.15
	weightDimension = 0.15
	weightUnit      = 0.10
	weightAngle     = 0.05
)

// ConfidenceScorer computes the 0–100 confidence of one (item, candidate)
// pairing along with the method that produced it.
type ConfidenceScorer struct {
	cfg Config
}

// NewConfidenceScorer creates a scorer with the given tunables.
func NewConfidenceScorer(cfg Config) *ConfidenceScorer {
	return &ConfidenceScorer{cfg: cfg}
}

// Calculate evaluates the strict priority ladder: exact manufacturer part,
// exact vendor SKU, mapping-memory identity, then the weighted fuzzy score.
// rememberedID is the active mapping-memory target for the item's canonical
// key, or nil. Details carries the per-component breakdown for audit.
func (s *ConfidenceScorer) Calculate(item *domain.Item, candidate *domain.PriceItem, rememberedID *uuid.UUID) (int, string, map[string]float64) {
	if mpn := normalizeCode(item.ManufacturerPart); mpn != "" {
		if mpn == normalizeCodeStr(candidate.SKU) || mpn == normalizeCodeStr(candidate.ItemCode) {
			return 100, domain.MethodExactMPN, map[string]float64{"exact_mpn": 1}
		}
	}

	if sku := normalizeCode(item.VendorSKU); sku != "" && sku == normalizeCodeStr(candidate.SKU) {
		return 100, domain.MethodExactSKU, map[string]float64{"exact_sku": 1}
	}

	if rememberedID != nil && *rememberedID == candidate.ID {
		return 100, domain.MethodCanonicalKey, map[string]float64{"canonical_key": 1}
	}

	return s.fuzzyScore(item, candidate)
}

func (s *ConfidenceScorer) fuzzyScore(item *domain.Item, candidate *domain.PriceItem) (int, string, map[string]float64) {
	details := make(map[string]float64)
	var weighted, totalWeight float64

	add := func(name string, weight, component float64) {
		details[name] = component
		weighted += weight * component
		totalWeight += weight
	}

	// Family similarity is always scored; an item without a family never
	// reaches the scorer.
	add("family", weightFamily, float64(TokenSetRatio(item.Family, candidate.Description))/100)

	if item.TypeName != "" {
		add("type_name", weightType, float64(TokenSetRatio(item.TypeName, candidate.Description))/100)
	}

	if item.Material != nil && candidate.Material != nil {
		component := 0.0
		if normalize.Text(*item.Material) == normalize.Text(*candidate.Material) {
			component = 1.0
		}
		add("material", weightMaterial, component)
	}

	if dimScore, available := s.dimensionScore(item, candidate); available {
		add("dimensions", weightDimension, dimScore)
	}

	itemUnit, itemUnitErr := normalize.Unit(item.Unit)
	candUnit, candUnitErr := normalize.Unit(candidate.Unit)
	if itemUnitErr == nil && candUnitErr == nil {
		component := 0.0
		if itemUnit == candUnit {
			component = 1.0
		}
		add("unit", weightUnit, component)
	}

	if item.AngleDeg != nil && candidate.AngleDeg != nil {
		component := 0.0
		if math.Abs(*item.AngleDeg-*candidate.AngleDeg) <= s.cfg.AngleToleranceDeg {
			component = 1.0
		}
		add("angle", weightAngle, component)
	}

	score := 0.0
	if totalWeight > 0 {
		score = weighted / totalWeight * 100
	}

	bonus := 0.0
	if exact, available := allDimensionsWithin(item, candidate, 1.0); available && exact {
		bonus += 5
		details["bonus_dimensions"] = 5
	}
	if details["material"] == 1.0 && details["unit"] == 1.0 {
		bonus += 5
		details["bonus_material_unit"] = 5
	}
	score += bonus

	final := int(math.Round(math.Min(100, math.Max(0, score))))
	details["final"] = float64(final)
	return final, domain.MethodEnhancedFuzzy, details
}

// dimensionScore averages linear proximity across the dimensions present
// on both sides, each falling linearly to zero at its tolerance boundary.
func (s *ConfidenceScorer) dimensionScore(item *domain.Item, candidate *domain.PriceItem) (float64, bool) {
	type dim struct {
		a, b *float64
		tol  float64
	}
	dims := []dim{
		{item.WidthMM, candidate.WidthMM, s.cfg.LinearToleranceMM},
		{item.HeightMM, candidate.HeightMM, s.cfg.LinearToleranceMM},
		{item.DNMM, candidate.DNMM, s.cfg.DiameterToleranceMM},
	}

	var sum float64
	count := 0
	for _, d := range dims {
		if d.a == nil || d.b == nil {
			continue
		}
		count++
		if d.tol <= 0 {
			if *d.a == *d.b {
				sum += 1
			}
			continue
		}
		delta := math.Abs(*d.a - *d.b)
		if delta < d.tol {
			sum += 1 - delta/d.tol
		}
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

func allDimensionsWithin(item *domain.Item, candidate *domain.PriceItem, tol float64) (bool, bool) {
	pairs := [][2]*float64{
		{item.WidthMM, candidate.WidthMM},
		{item.HeightMM, candidate.HeightMM},
		{item.DNMM, candidate.DNMM},
	}

	available := false
	for _, pair := range pairs {
		if pair[0] == nil || pair[1] == nil {
			continue
		}
		available = true
		if math.Abs(*pair[0]-*pair[1]) > tol {
			return false, true
		}
	}
	return available, available
}

func normalizeCode(s *string) string {
	if s == nil {
		return ""
	}
	return normalizeCodeStr(*s)
}

func normalizeCodeStr(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
