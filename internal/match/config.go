// Package match implements the candidate generation, ranking, scoring,
// flagging and routing pipeline that resolves items against the price
// catalog.
package match

// Config carries the process-wide matching tunables. Loaded once at
// startup, read-only thereafter.
type Config struct {
	// MinFuzzyScore is the rank cut-off; candidates scoring below it are
	// discarded before confidence scoring.
	MinFuzzyScore int

	// AutoAcceptThreshold is the minimum confidence for auto-accept.
	AutoAcceptThreshold int

	// LinearToleranceMM bounds width/height differences, both in candidate
	// filtering and flag checks.
	LinearToleranceMM float64

	// DiameterToleranceMM bounds nominal diameter differences.
	DiameterToleranceMM float64

	// AngleToleranceDeg bounds angle differences.
	AngleToleranceDeg float64

	// MaxCandidates caps the blocked candidate pool per item.
	MaxCandidates int

	// EscapeHatchCap caps out-of-class candidates when blocking comes up
	// empty.
	EscapeHatchCap int

	// DefaultCurrency is the tenant's expected price currency.
	DefaultCurrency string

	// StalePriceDays is the age past which a candidate price is flagged.
	StalePriceDays int
}

// DefaultConfig returns the stock tunables.
func DefaultConfig() Config {
	return Config{
		MinFuzzyScore:       40,
		AutoAcceptThreshold: 85,
		LinearToleranceMM:   5,
		DiameterToleranceMM: 10,
		AngleToleranceDeg:   5,
		MaxCandidates:       50,
		EscapeHatchCap:      2,
		DefaultCurrency:     "EUR",
		StalePriceDays:      365,
	}
}
