// Package movement provides the inventory movement register: the movement
// document itself and the service that maintains the running stock balance.
package movement

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"inventra/internal/core/apperror"
	"inventra/internal/core/entity"
	"inventra/internal/core/id"
)

// EntityName is the registry key and error-message name for movements.
const EntityName = "stock_movement"

// Type classifies a movement's effect on the stock balance.
type Type string

const (
	TypeIn          Type = "in"
	TypeOut         Type = "out"
	TypeTransfer    Type = "transfer"
	TypeAdjustment  Type = "adjustment"
	TypeProduction  Type = "production"
	TypeReturn      Type = "return"
	TypeConsumption Type = "consumption"
)

// Types lists the closed movement-type taxonomy.
var Types = []Type{
	TypeIn, TypeOut, TypeTransfer, TypeAdjustment,
	TypeProduction, TypeReturn, TypeConsumption,
}

// IsValidType reports whether t belongs to the taxonomy.
func IsValidType(t Type) bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

// Status is the movement document lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// transitions is the one-way status machine:
// pending -> confirmed -> completed, or pending -> cancelled.
// Cancelled and completed are terminal.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted},
}

// CanTransition reports whether from -> to is a permitted transition.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Movement is one inventory movement with its balance snapshot.
type Movement struct {
	entity.Base

	// Number is the document number, issued by the service on creation.
	Number string `db:"number" json:"number"`

	// MaterialID references the stocked item; required.
	MaterialID id.ID `db:"material_id" json:"materialId"`

	// Type classifies the balance effect; required.
	Type Type `db:"movement_type" json:"type"`

	// Quantity is signed; the sign convention depends on Type.
	Quantity decimal.Decimal `db:"quantity" json:"quantity"`

	// UnitPrice is optional. TotalAmount is derived as Quantity x UnitPrice
	// when absent and UnitPrice is present.
	UnitPrice   *decimal.Decimal `db:"unit_price" json:"unitPrice,omitempty"`
	TotalAmount *decimal.Decimal `db:"total_amount" json:"totalAmount,omitempty"`

	// StockBalance is the running balance as of this movement. It is owned
	// exclusively by the movement service; callers never supply it.
	StockBalance decimal.Decimal `db:"stock_balance" json:"stockBalance"`

	// Status is the document lifecycle state.
	Status Status `db:"status" json:"status"`

	// MovementDate is the business date; defaults to now when unset.
	MovementDate time.Time `db:"movement_date" json:"movementDate"`

	// SourceLocation/TargetLocation describe transfers; optional.
	SourceLocation *string `db:"source_location" json:"sourceLocation,omitempty"`
	TargetLocation *string `db:"target_location" json:"targetLocation,omitempty"`

	// Reference is an optional external document reference.
	Reference *string `db:"reference" json:"reference,omitempty"`

	// Comment is an optional user comment.
	Comment *string `db:"comment" json:"comment,omitempty"`
}

// New creates a pending Movement with a generated ID.
func New(materialID id.ID, t Type, quantity decimal.Decimal) *Movement {
	return &Movement{
		Base:         entity.NewBase(),
		MaterialID:   materialID,
		Type:         t,
		Quantity:     quantity,
		Status:       StatusPending,
		MovementDate: time.Now().UTC(),
	}
}

// Validate implements entity.Validatable.
func (m *Movement) Validate(ctx context.Context) error {
	if id.IsNil(m.MaterialID) {
		return apperror.NewValidation("material is required").
			WithDetail("field", "materialId")
	}

	// Presence only: a value outside the taxonomy is accepted here and
	// treated as a balance no-op by the policy table.
	if m.Type == "" {
		return apperror.NewValidation("movement type is required").
			WithDetail("field", "type")
	}

	if m.Quantity.IsZero() {
		return apperror.NewValidation("quantity is required").
			WithDetail("field", "quantity")
	}

	if m.UnitPrice != nil && m.UnitPrice.IsNegative() {
		return apperror.NewValidation("unit price cannot be negative").
			WithDetail("field", "unitPrice")
	}

	return nil
}

// CanModify reports whether the movement still accepts edits.
// Cancelled and completed movements are immutable.
func (m *Movement) CanModify() error {
	if m.Status == StatusCancelled || m.Status == StatusCompleted {
		return apperror.NewBusinessRule(
			apperror.CodeBusinessRule,
			"Cannot modify a cancelled or completed movement",
		).WithDetail("movement_id", m.ID.String()).
			WithDetail("status", string(m.Status))
	}
	return nil
}
