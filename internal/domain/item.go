package domain

import (
	"time"

	"github.com/google/uuid"
)

// Item is an unpriced physical inventory record extracted from a model
// schedule. Upstream ingestion creates it; the classifier sets
// ClassificationCode and the key generator sets CanonicalKey. Items are
// never deleted by the matching core.
type Item struct {
	ID                 uuid.UUID
	TenantID           uuid.UUID
	ProjectID          uuid.UUID
	Family             string
	TypeName           string
	Category           string
	SystemType         string
	ClassificationCode *int
	CanonicalKey       *string
	Unit               string
	Quantity           float64
	WidthMM            *float64
	HeightMM           *float64
	DNMM               *float64
	AngleDeg           *float64
	Material           *string
	ManufacturerPart   *string
	VendorSKU          *string
	ExternalClassCode  *int
	AssemblyCode       string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// FieldView is the single field-access interface the flag engine compares
// through. Both Item and PriceItem implement it.
type FieldView interface {
	UnitValue() string
	WidthValue() *float64
	HeightValue() *float64
	DiameterValue() *float64
	AngleValue() *float64
	MaterialValue() *string
	ClassificationValue() *int
}

func (i *Item) UnitValue() string          { return i.Unit }
func (i *Item) WidthValue() *float64       { return i.WidthMM }
func (i *Item) HeightValue() *float64      { return i.HeightMM }
func (i *Item) DiameterValue() *float64    { return i.DNMM }
func (i *Item) AngleValue() *float64       { return i.AngleDeg }
func (i *Item) MaterialValue() *string     { return i.Material }
func (i *Item) ClassificationValue() *int  { return i.ClassificationCode }
