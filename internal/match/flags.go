package match

import (
	"fmt"
	"math"
	"time"

	"github.com/blueray32/bimcalc/internal/domain"
	"github.com/blueray32/bimcalc/internal/normalize"
)

// FlagEngine evaluates business-risk conditions between an item and a
// candidate. Checks are independent; every one that applies is returned.
type FlagEngine struct {
	cfg Config
	now func() time.Time
}

// NewFlagEngine creates a flag engine with the given tunables.
func NewFlagEngine(cfg Config) *FlagEngine {
	return &FlagEngine{cfg: cfg, now: time.Now}
}

// Compute runs every check. Field comparisons go through the FieldView
// interface both sides implement; the advisory checks read candidate
// pricing metadata.
func (e *FlagEngine) Compute(item domain.FieldView, candidate *domain.PriceItem) []domain.Flag {
	flags := []domain.Flag{}

	flags = appendIf(flags, e.checkUnit(item, candidate))
	flags = appendIf(flags, e.checkSize(item, candidate))
	flags = appendIf(flags, e.checkAngle(item, candidate))
	flags = appendIf(flags, e.checkMaterial(item, candidate))
	flags = appendIf(flags, e.checkClassification(item, candidate))
	flags = appendIf(flags, e.checkStalePrice(candidate))
	flags = appendIf(flags, e.checkCurrency(candidate))
	flags = appendIf(flags, e.checkVAT(candidate))
	flags = appendIf(flags, e.checkVendorNote(candidate))

	return flags
}

// EscapeHatchFlag is the synthetic critical veto attached to out-of-class
// candidates so escape-hatch matches can never auto-accept.
func EscapeHatchFlag(itemClass, candidateClass *int) domain.Flag {
	return domain.Flag{
		Type:     domain.FlagClassMismatch,
		Severity: domain.SeverityCritical,
		Message: fmt.Sprintf("out-of-class candidate: item class %s vs candidate class %s",
			formatClass(itemClass), formatClass(candidateClass)),
	}
}

func (e *FlagEngine) checkUnit(item domain.FieldView, candidate domain.FieldView) *domain.Flag {
	itemUnit, errA := normalize.Unit(item.UnitValue())
	candUnit, errB := normalize.Unit(candidate.UnitValue())
	if errA != nil || errB != nil {
		return nil
	}
	if item.UnitValue() == "" || candidate.UnitValue() == "" {
		return nil
	}
	if itemUnit == candUnit {
		return nil
	}
	return &domain.Flag{
		Type:     domain.FlagUnitConflict,
		Severity: domain.SeverityCritical,
		Message:  fmt.Sprintf("unit %s vs %s", itemUnit, candUnit),
	}
}

func (e *FlagEngine) checkSize(item, candidate domain.FieldView) *domain.Flag {
	type dim struct {
		name string
		a, b *float64
		tol  float64
	}
	dims := []dim{
		{"width", item.WidthValue(), candidate.WidthValue(), e.cfg.LinearToleranceMM},
		{"height", item.HeightValue(), candidate.HeightValue(), e.cfg.LinearToleranceMM},
		{"dn", item.DiameterValue(), candidate.DiameterValue(), e.cfg.DiameterToleranceMM},
	}

	for _, d := range dims {
		if d.a == nil || d.b == nil {
			continue
		}
		if delta := math.Abs(*d.a - *d.b); delta > d.tol {
			return &domain.Flag{
				Type:     domain.FlagSizeMismatch,
				Severity: domain.SeverityCritical,
				Message:  fmt.Sprintf("%s differs by %.1f mm (tolerance %.1f)", d.name, delta, d.tol),
			}
		}
	}
	return nil
}

func (e *FlagEngine) checkAngle(item, candidate domain.FieldView) *domain.Flag {
	a, b := item.AngleValue(), candidate.AngleValue()
	if a == nil || b == nil {
		return nil
	}
	delta := math.Abs(*a - *b)
	if delta <= e.cfg.AngleToleranceDeg {
		return nil
	}
	return &domain.Flag{
		Type:     domain.FlagAngleMismatch,
		Severity: domain.SeverityCritical,
		Message:  fmt.Sprintf("angle differs by %.1f° (tolerance %.1f)", delta, e.cfg.AngleToleranceDeg),
	}
}

func (e *FlagEngine) checkMaterial(item, candidate domain.FieldView) *domain.Flag {
	a, b := item.MaterialValue(), candidate.MaterialValue()
	if a == nil || b == nil || *a == "" || *b == "" {
		return nil
	}
	if normalize.Text(*a) == normalize.Text(*b) {
		return nil
	}
	return &domain.Flag{
		Type:     domain.FlagMaterialConflict,
		Severity: domain.SeverityCritical,
		Message:  fmt.Sprintf("material %q vs %q", *a, *b),
	}
}

func (e *FlagEngine) checkClassification(item, candidate domain.FieldView) *domain.Flag {
	a, b := item.ClassificationValue(), candidate.ClassificationValue()
	if a == nil || b == nil || *a == *b {
		return nil
	}
	return &domain.Flag{
		Type:     domain.FlagClassMismatch,
		Severity: domain.SeverityCritical,
		Message:  fmt.Sprintf("classification %d vs %d", *a, *b),
	}
}

func (e *FlagEngine) checkStalePrice(candidate *domain.PriceItem) *domain.Flag {
	staleAfter := time.Duration(e.cfg.StalePriceDays) * 24 * time.Hour
	age := e.now().Sub(candidate.UpdatedAt)
	if age <= staleAfter {
		return nil
	}
	return &domain.Flag{
		Type:     domain.FlagStalePrice,
		Severity: domain.SeverityAdvisory,
		Message:  fmt.Sprintf("price last updated %d days ago", int(age.Hours()/24)),
	}
}

func (e *FlagEngine) checkCurrency(candidate *domain.PriceItem) *domain.Flag {
	if candidate.Currency == "" || candidate.Currency == e.cfg.DefaultCurrency {
		return nil
	}
	return &domain.Flag{
		Type:     domain.FlagCurrencyMismatch,
		Severity: domain.SeverityAdvisory,
		Message:  fmt.Sprintf("candidate priced in %s, tenant default %s", candidate.Currency, e.cfg.DefaultCurrency),
	}
}

func (e *FlagEngine) checkVAT(candidate *domain.PriceItem) *domain.Flag {
	if candidate.VATRate != nil || candidate.UnitPrice.IsZero() {
		return nil
	}
	return &domain.Flag{
		Type:     domain.FlagVATUnclear,
		Severity: domain.SeverityAdvisory,
		Message:  "candidate has a price but no VAT rate",
	}
}

func (e *FlagEngine) checkVendorNote(candidate *domain.PriceItem) *domain.Flag {
	if candidate.VendorNote == nil || *candidate.VendorNote == "" {
		return nil
	}
	return &domain.Flag{
		Type:     domain.FlagVendorNote,
		Severity: domain.SeverityAdvisory,
		Message:  "vendor note: " + *candidate.VendorNote,
	}
}

func hasFlag(flags []domain.Flag, flagType string) bool {
	for _, f := range flags {
		if f.Type == flagType {
			return true
		}
	}
	return false
}

func appendIf(flags []domain.Flag, flag *domain.Flag) []domain.Flag {
	if flag == nil {
		return flags
	}
	return append(flags, *flag)
}

func formatClass(code *int) string {
	if code == nil {
		return "unset"
	}
	return fmt.Sprintf("%d", *code)
}
