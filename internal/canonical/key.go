// Package canonical derives the deterministic identity hash that mapping
// memory is keyed on.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/blueray32/bimcalc/internal/domain"
	"github.com/blueray32/bimcalc/internal/normalize"
)

// KeyLength is the hex-prefix length of the digest. 64 bits of identity;
// the canonical source string is stored alongside the hash so collisions
// stay auditable.
const KeyLength = 16

// Key is a canonical identity: the 16-hex hash plus the source string it
// was derived from.
type Key struct {
	Hash   string
	Source string
}

// Generate builds the canonical key for a classified item. The field order
// of the source string is fixed; attributes that are nil are omitted
// entirely. Dimensions are rounded to 5 mm, angles to 5°, so near-duplicate
// vendor descriptions converge on the same key. The key carries no tenant
// or project scoping.
func Generate(item *domain.Item) (Key, error) {
	if item.ClassificationCode == nil {
		return Key{}, domain.NewValidationError("classification_code", "required for canonical key")
	}
	if item.Family == "" {
		return Key{}, domain.NewValidationError("family", "required for canonical key")
	}

	unit, err := normalize.Unit(item.Unit)
	if err != nil {
		return Key{}, err
	}

	parts := []string{
		fmt.Sprintf("%d", *item.ClassificationCode),
		normalize.Slug(item.Family),
	}

	if slug := normalize.Slug(item.TypeName); slug != "" {
		parts = append(parts, slug)
	}
	if w := normalize.RoundTo(item.WidthMM, normalize.DefaultStepMM); w != nil {
		parts = append(parts, fmt.Sprintf("w=%d", *w))
	}
	if h := normalize.RoundTo(item.HeightMM, normalize.DefaultStepMM); h != nil {
		parts = append(parts, fmt.Sprintf("h=%d", *h))
	}
	if dn := normalize.RoundTo(item.DNMM, normalize.DefaultStepMM); dn != nil {
		parts = append(parts, fmt.Sprintf("dn=%d", *dn))
	}
	if a := normalize.RoundTo(item.AngleDeg, normalize.DefaultStepMM); a != nil {
		parts = append(parts, fmt.Sprintf("a=%d", *a))
	}
	if item.Material != nil {
		if slug := normalize.Slug(*item.Material); slug != "" {
			parts = append(parts, "mat="+slug)
		}
	}
	parts = append(parts, "u="+unit)

	source := strings.Join(parts, "|")
	digest := sha256.Sum256([]byte(source))

	return Key{
		Hash:   hex.EncodeToString(digest[:])[:KeyLength],
		Source: source,
	}, nil
}
