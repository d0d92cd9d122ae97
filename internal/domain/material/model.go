// Package material provides the stocked-item catalog.
package material

import (
	"context"

	"github.com/shopspring/decimal"

	"inventra/internal/core/apperror"
	"inventra/internal/core/entity"
)

// Material represents a stocked item tracked by the movement register.
type Material struct {
	entity.Base

	// Code is a human-readable identifier (unique among live records)
	Code string `db:"code" json:"code"`

	// Name is the display name
	Name string `db:"name" json:"name"`

	// Unit is the unit of measure (pcs, kg, m, ...)
	Unit string `db:"unit" json:"unit"`

	// Barcode is the item barcode (EAN-13, etc.)
	Barcode *string `db:"barcode" json:"barcode,omitempty"`

	// UnitPrice is the default purchase price
	UnitPrice *decimal.Decimal `db:"unit_price" json:"unitPrice,omitempty"`

	// MinStockLevel triggers low-stock reporting when the balance drops below it
	MinStockLevel *decimal.Decimal `db:"min_stock_level" json:"minStockLevel,omitempty"`

	// Description is a detailed description
	Description *string `db:"description" json:"description,omitempty"`
}

// New creates a Material with required fields and a generated ID.
func New(code, name, unit string) *Material {
	return &Material{
		Base: entity.NewBase(),
		Code: code,
		Name: name,
		Unit: unit,
	}
}

// Validate implements entity.Validatable.
func (m *Material) Validate(ctx context.Context) error {
	if m.Code == "" {
		return apperror.NewValidation("code is required").
			WithDetail("field", "code")
	}

	if m.Name == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}

	if m.Unit == "" {
		return apperror.NewValidation("unit is required").
			WithDetail("field", "unit")
	}

	if m.UnitPrice != nil && m.UnitPrice.IsNegative() {
		return apperror.NewValidation("unit price cannot be negative").
			WithDetail("field", "unitPrice")
	}

	if m.MinStockLevel != nil && m.MinStockLevel.IsNegative() {
		return apperror.NewValidation("min stock level cannot be negative").
			WithDetail("field", "minStockLevel")
	}

	return nil
}
