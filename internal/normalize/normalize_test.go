package normalize

import (
	"errors"
	"testing"

	"github.com/blueray32/bimcalc/internal/domain"
)

func TestText_StripsRevisionNoise(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Pipe Elbow RevA", "pipe elbow"},
		{"Pipe Elbow rev. B2", "pipe elbow"},
		{"Duct v2.1 Supply", "duct supply"},
		{"Valve 2024-03-15", "valve"},
		{"Valve 15.03.2024", "valve"},
		{"Elbow (site verified)", "elbow"},
		{"Elbow [note]", "elbow"},
		{"Stahl-Rohr_DN100", "stahl rohr dn100"},
		{"  Mixed   Spacing ", "mixed spacing"},
	}

	for _, tc := range cases {
		if got := Text(tc.in); got != tc.want {
			t.Errorf("Text(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestText_FoldsDiacritics(t *testing.T) {
	if got := Text("Stützen Träger"); got != "stutzen trager" {
		t.Errorf("expected diacritics folded, got %q", got)
	}
}

func TestSlug(t *testing.T) {
	if got := Slug("Pipe Elbow RevA"); got != "pipe_elbow" {
		t.Errorf("Slug = %q, want pipe_elbow", got)
	}
}

func TestUnit_Synonyms(t *testing.T) {
	cases := map[string]string{
		"m": "m", "Meter": "m", "metre": "m", "lm": "m",
		"ea": "ea", "EACH": "ea", "pcs": "ea", "St": "ea", "Stk.": "ea",
		"m2": "m2", "sqm": "m2", "m²": "m2",
		"m3": "m3", "cbm": "m3", "m³": "m3",
		"": "ea",
		"  ": "ea",
	}

	for in, want := range cases {
		got, err := Unit(in)
		if err != nil {
			t.Fatalf("Unit(%q) returned error: %v", in, err)
		}
		if got != want {
			t.Errorf("Unit(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUnit_Invalid(t *testing.T) {
	_, err := Unit("furlongs")
	if err == nil {
		t.Fatal("expected error for unknown unit")
	}
	var invalid *domain.InvalidUnitError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidUnitError, got %T", err)
	}
	if invalid.Unit != "furlongs" {
		t.Errorf("error should carry the raw unit, got %q", invalid.Unit)
	}
}

func TestRoundTo(t *testing.T) {
	cases := []struct {
		in   float64
		step float64
		want int
	}{
		{102.0, 5, 100},
		{103.0, 5, 105},
		{97.6, 5, 100},
		{90.0, 5, 90},
		{2.4, 5, 0},
		{2.5, 5, 5},
	}

	for _, tc := range cases {
		got := RoundTo(&tc.in, tc.step)
		if got == nil || *got != tc.want {
			t.Errorf("RoundTo(%v, %v) = %v, want %d", tc.in, tc.step, got, tc.want)
		}
	}

	if RoundTo(nil, 5) != nil {
		t.Error("nil input must pass through as nil")
	}
}

func TestTokens(t *testing.T) {
	got := Tokens("Pipe Elbow, Steel")
	want := []string{"pipe", "elbow", "steel"}
	if len(got) != len(want) {
		t.Fatalf("Tokens = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Tokens = %v, want %v", got, want)
		}
	}
}
