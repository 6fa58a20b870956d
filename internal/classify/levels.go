package classify

import (
	"strconv"
	"strings"

	"github.com/blueray32/bimcalc/internal/domain"
	"github.com/blueray32/bimcalc/internal/normalize"
)

// UnknownCode is the sentinel returned by the terminal level when no other
// level produced a classification.
const UnknownCode = 9999

// level is one entry of the trust hierarchy. Levels are evaluated from the
// highest priority down; the first one that yields a code wins.
type level interface {
	Priority() int
	Name() string
	Apply(item *domain.Item) (int, bool)
}

// explicitOverride reads designated fields on the item directly, first
// non-nil wins. Field names are bound in the rule file.
type explicitOverride struct {
	priority int
	fields   []string
}

func (l *explicitOverride) Priority() int { return l.priority }
func (l *explicitOverride) Name() string  { return "explicit_override" }

func (l *explicitOverride) Apply(item *domain.Item) (int, bool) {
	for _, field := range l.fields {
		switch field {
		case "external_class_code":
			if item.ExternalClassCode != nil {
				return *item.ExternalClassCode, true
			}
		case "assembly_code":
			code, err := strconv.Atoi(strings.TrimSpace(item.AssemblyCode))
			if err == nil && code > 0 {
				return code, true
			}
		}
	}
	return 0, false
}

// curatedList is an exact lookup against an operator-maintained table keyed
// by "family|type" first, then by bare "family". Keys are normalized text.
type curatedList struct {
	priority int
	entries  map[string]int
}

func (l *curatedList) Priority() int { return l.priority }
func (l *curatedList) Name() string  { return "curated_list" }

func (l *curatedList) Apply(item *domain.Item) (int, bool) {
	family := normalize.Text(item.Family)
	if item.TypeName != "" {
		if code, ok := l.entries[family+"|"+normalize.Text(item.TypeName)]; ok {
			return code, true
		}
	}
	code, ok := l.entries[family]
	return code, ok
}

// categoryRule matches on category (required) and optionally system type.
type categoryRule struct {
	Category   string
	SystemType string
	Code       int
}

type categorySystem struct {
	priority int
	rules    []categoryRule
}

func (l *categorySystem) Priority() int { return l.priority }
func (l *categorySystem) Name() string  { return "category_system" }

func (l *categorySystem) Apply(item *domain.Item) (int, bool) {
	category := normalize.Text(item.Category)
	systemType := normalize.Text(item.SystemType)
	for _, rule := range l.rules {
		if normalize.Text(rule.Category) != category {
			continue
		}
		if rule.SystemType != "" && normalize.Text(rule.SystemType) != systemType {
			continue
		}
		return rule.Code, true
	}
	return 0, false
}

// keywordRule assigns a code when any keyword occurs in family + type name.
type keywordRule struct {
	Keywords []string
	Code     int
}

type keywordFallback struct {
	priority int
	rules    []keywordRule
}

func (l *keywordFallback) Priority() int { return l.priority }
func (l *keywordFallback) Name() string  { return "keyword_fallback" }

func (l *keywordFallback) Apply(item *domain.Item) (int, bool) {
	haystack := normalize.Text(item.Family + " " + item.TypeName)
	for _, rule := range l.rules {
		for _, keyword := range rule.Keywords {
			if keyword == "" {
				continue
			}
			if strings.Contains(haystack, normalize.Text(keyword)) {
				return rule.Code, true
			}
		}
	}
	return 0, false
}

// unknown is the terminal level; it always matches.
type unknown struct {
	priority int
	code     int
}

func (l *unknown) Priority() int { return l.priority }
func (l *unknown) Name() string  { return "unknown" }

func (l *unknown) Apply(_ *domain.Item) (int, bool) {
	return l.code, true
}
