// Package classify assigns classification codes to items through an
// ordered trust hierarchy loaded from a declarative rule file.
package classify

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/blueray32/bimcalc/internal/domain"
)

// ruleFile mirrors the YAML rule document.
type ruleFile struct {
	Version int             `mapstructure:"version"`
	Levels  []ruleFileLevel `mapstructure:"levels"`
}

type ruleFileLevel struct {
	Kind     string `mapstructure:"kind"`
	Priority int    `mapstructure:"priority"`

	// explicit_override
	Fields []string `mapstructure:"fields"`

	// curated_list
	File string `mapstructure:"file"`

	// category_system
	CategoryRules []struct {
		Category   string `mapstructure:"category"`
		SystemType string `mapstructure:"system_type"`
		Code       int    `mapstructure:"code"`
	} `mapstructure:"rules"`

	// keyword_fallback
	KeywordRules []struct {
		Keywords []string `mapstructure:"keywords"`
		Code     int      `mapstructure:"code"`
	} `mapstructure:"keyword_rules"`

	// unknown
	Code int `mapstructure:"code"`
}

// Classifier evaluates the trust hierarchy highest-priority-first. The
// parsed level list is immutable after construction, so a single
// Classifier is safe for concurrent use.
type Classifier struct {
	levels []level
	logger zerolog.Logger
}

// New loads the rule file at path and builds the classifier. It fails fast
// with ConfigurationError when the file is missing, malformed, or declares
// zero levels.
func New(path string, logger zerolog.Logger) (*Classifier, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, &domain.ConfigurationError{Message: fmt.Sprintf("read rule file %s", path), Err: err}
	}

	var file ruleFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, &domain.ConfigurationError{Message: "decode rule file", Err: err}
	}
	if len(file.Levels) == 0 {
		return nil, &domain.ConfigurationError{Message: "rule file declares zero levels"}
	}

	levels := make([]level, 0, len(file.Levels))
	for _, raw := range file.Levels {
		built, err := buildLevel(raw, filepath.Dir(path))
		if err != nil {
			return nil, err
		}
		levels = append(levels, built)
	}

	sort.SliceStable(levels, func(i, j int) bool {
		return levels[i].Priority() > levels[j].Priority()
	})

	logger.Info().
		Int("rule_version", file.Version).
		Int("levels", len(levels)).
		Msg("classifier rule hierarchy loaded")

	return &Classifier{levels: levels, logger: logger}, nil
}

func buildLevel(raw ruleFileLevel, baseDir string) (level, error) {
	switch raw.Kind {
	case "explicit_override":
		if len(raw.Fields) == 0 {
			return nil, &domain.ConfigurationError{Message: "explicit_override level declares no fields"}
		}
		return &explicitOverride{priority: raw.Priority, fields: raw.Fields}, nil

	case "curated_list":
		if raw.File == "" {
			return nil, &domain.ConfigurationError{Message: "curated_list level declares no file"}
		}
		listPath := raw.File
		if !filepath.IsAbs(listPath) {
			listPath = filepath.Join(baseDir, listPath)
		}
		entries, err := loadCuratedList(listPath)
		if err != nil {
			return nil, err
		}
		return &curatedList{priority: raw.Priority, entries: entries}, nil

	case "category_system":
		rules := make([]categoryRule, 0, len(raw.CategoryRules))
		for _, r := range raw.CategoryRules {
			if r.Category == "" {
				return nil, &domain.ConfigurationError{Message: "category_system rule missing category"}
			}
			rules = append(rules, categoryRule{Category: r.Category, SystemType: r.SystemType, Code: r.Code})
		}
		return &categorySystem{priority: raw.Priority, rules: rules}, nil

	case "keyword_fallback":
		rules := make([]keywordRule, 0, len(raw.KeywordRules))
		for _, r := range raw.KeywordRules {
			rules = append(rules, keywordRule{Keywords: r.Keywords, Code: r.Code})
		}
		return &keywordFallback{priority: raw.Priority, rules: rules}, nil

	case "unknown":
		code := raw.Code
		if code == 0 {
			code = UnknownCode
		}
		return &unknown{priority: raw.Priority, code: code}, nil

	default:
		return nil, &domain.ConfigurationError{Message: fmt.Sprintf("unknown level kind %q", raw.Kind)}
	}
}

// Classify resolves the classification code for an item. The item itself
// is not mutated; the caller decides where to record the code.
func (c *Classifier) Classify(item *domain.Item) (int, error) {
	if item.Family == "" {
		return 0, domain.NewValidationError("family", "required for classification")
	}

	for _, lvl := range c.levels {
		code, ok := lvl.Apply(item)
		if !ok {
			continue
		}
		c.logger.Debug().
			Str("item_id", item.ID.String()).
			Str("level", lvl.Name()).
			Int("code", code).
			Msg("classified")
		return code, nil
	}

	// Rule files normally end with an unknown level; a hierarchy without
	// one still terminates here.
	return UnknownCode, nil
}
