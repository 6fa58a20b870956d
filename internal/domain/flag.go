package domain

// FlagSeverity grades a business-risk condition.
type FlagSeverity string

const (
	// SeverityCritical blocks auto-accept unconditionally.
	SeverityCritical FlagSeverity = "critical_veto"
	// SeverityAdvisory is informational. Under the current routing rule it
	// still forces manual review; it never vetoes a human decision.
	SeverityAdvisory FlagSeverity = "advisory"
)

// Flag types produced by the flag engine.
const (
	FlagUnitConflict     = "unit_conflict"
	FlagSizeMismatch     = "size_mismatch"
	FlagAngleMismatch    = "angle_mismatch"
	FlagMaterialConflict = "material_conflict"
	FlagClassMismatch    = "class_mismatch"
	FlagStalePrice       = "stale_price"
	FlagCurrencyMismatch = "currency_mismatch"
	FlagVATUnclear       = "vat_unclear"
	FlagVendorNote       = "vendor_note"
)

// Flag is a business-risk condition raised against a (item, candidate)
// pair. Ephemeral: produced per match attempt and stored only as part of
// the MatchResult it decorates.
type Flag struct {
	Type     string       `json:"type"`
	Severity FlagSeverity `json:"severity"`
	Message  string       `json:"message"`
}

// HasCritical reports whether any flag in the slice is a critical veto.
func HasCritical(flags []Flag) bool {
	for _, f := range flags {
		if f.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// FlagTypes returns the type names in order, for reason strings and logs.
func FlagTypes(flags []Flag) []string {
	types := make([]string, len(flags))
	for i, f := range flags {
		types[i] = f.Type
	}
	return types
}
