// Package normalize holds the canonicalization primitives every other
// matching component compares through. All functions are pure.
package normalize

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/blueray32/bimcalc/internal/domain"
)

// DefaultStepMM is the rounding step applied to millimeter and degree
// attributes when building canonical keys. Two values within ±2.5 of the
// same multiple collapse to the identical key.
const DefaultStepMM = 5.0

var (
	// Revision/version markers, ISO-ish dates and bracketed notes carry
	// project bookkeeping, not product identity.
	noisePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\brev\.?\s*[a-z0-9]+\b`),
		regexp.MustCompile(`(?i)\bv\d+(\.\d+)*\b`),
		regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`),
		regexp.MustCompile(`\b\d{2}[./]\d{2}[./]\d{4}\b`),
		regexp.MustCompile(`\([^)]*\)`),
		regexp.MustCompile(`\[[^\]]*\]`),
	}

	separators = regexp.MustCompile(`[-_/,;:+]+`)
	spaces     = regexp.MustCompile(`\s+`)

	stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	unitSynonyms = map[string]string{
		"m":     "m",
		"meter": "m",
		"metre": "m",
		"lm":    "m",
		"lfm":   "m",
		"ea":    "ea",
		"each":  "ea",
		"pcs":   "ea",
		"pc":    "ea",
		"st":    "ea",
		"stk":   "ea",
		"no":    "ea",
		"nr":    "ea",
		"m2":    "m2",
		"m²":    "m2",
		"sqm":   "m2",
		"sq.m":  "m2",
		"m3":    "m3",
		"m³":    "m3",
		"cbm":   "m3",
		"cu.m":  "m3",
	}
)

// Text canonicalizes free text for comparison: Unicode-decomposes and drops
// diacritics, lowercases, strips revision/date/bracket noise, and collapses
// separators and runs of whitespace to single spaces.
func Text(s string) string {
	if s == "" {
		return ""
	}

	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)

	for _, pattern := range noisePatterns {
		folded = pattern.ReplaceAllString(folded, " ")
	}

	folded = separators.ReplaceAllString(folded, " ")
	folded = spaces.ReplaceAllString(folded, " ")
	return strings.TrimSpace(folded)
}

// Slug renders normalized text as a single underscore-joined token for use
// inside canonical key strings.
func Slug(s string) string {
	return strings.ReplaceAll(Text(s), " ", "_")
}

// Unit maps a raw unit string to one of the four canonical units
// {m, ea, m2, m3}. Missing input defaults to "ea"; an unrecognized unit
// returns InvalidUnitError.
func Unit(s string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(s))
	trimmed = strings.TrimSuffix(trimmed, ".")
	if trimmed == "" {
		return "ea", nil
	}
	if canonical, ok := unitSynonyms[trimmed]; ok {
		return canonical, nil
	}
	return "", &domain.InvalidUnitError{Unit: s}
}

// RoundTo rounds v to the nearest multiple of step and returns it as an
// integer. A nil input passes through as nil.
func RoundTo(v *float64, step float64) *int {
	if v == nil {
		return nil
	}
	if step <= 0 {
		step = DefaultStepMM
	}
	rounded := int(math.Round(*v/step) * step)
	return &rounded
}

// Tokens splits normalized text into its word tokens.
func Tokens(s string) []string {
	text := Text(s)
	if text == "" {
		return nil
	}
	return strings.Fields(text)
}
