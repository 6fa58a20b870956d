package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceItem is a row from the vendor price catalog. The catalog owns it;
// the matching core only reads it and references it by ID from mapping
// memory and match results.
type PriceItem struct {
	ID                 uuid.UUID
	TenantID           uuid.UUID
	ItemCode           string
	Region             string
	ClassificationCode *int
	SKU                string
	Description        string
	Unit               string
	UnitPrice          decimal.Decimal
	Currency           string
	VATRate            *decimal.Decimal
	WidthMM            *float64
	HeightMM           *float64
	DNMM               *float64
	AngleDeg           *float64
	Material           *string
	VendorNote         *string
	IsCurrent          bool
	UpdatedAt          time.Time
}

func (p *PriceItem) UnitValue() string         { return p.Unit }
func (p *PriceItem) WidthValue() *float64      { return p.WidthMM }
func (p *PriceItem) HeightValue() *float64     { return p.HeightMM }
func (p *PriceItem) DiameterValue() *float64   { return p.DNMM }
func (p *PriceItem) AngleValue() *float64      { return p.AngleDeg }
func (p *PriceItem) MaterialValue() *string    { return p.Material }
func (p *PriceItem) ClassificationValue() *int { return p.ClassificationCode }

// SearchText joins the descriptive fields used for fuzzy ranking.
func (p *PriceItem) SearchText() string {
	text := p.Description
	if p.Material != nil && *p.Material != "" {
		text += " " + *p.Material
	}
	return text
}
