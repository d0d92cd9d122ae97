package entity

import (
	"context"
	"time"

	"inventra/internal/core/id"
)

// Validatable is implemented by entities that support self-validation.
// Validation checks internal invariants (without database access).
type Validatable interface {
	// Validate checks entity invariants.
	// Returns nil if valid, AppError with details otherwise.
	Validate(ctx context.Context) error
}

// Entity is the contract every persisted record satisfies: identity,
// audit stamping and the soft-delete lifecycle. The generic repository
// operates on any type embedding Base.
type Entity interface {
	EntityID() id.ID
	StampCreate(actorID string, at time.Time)
	StampUpdate(actorID string, at time.Time)
	MarkDeleted(actorID string, at time.Time)
	ClearDeleted(actorID string, at time.Time)
	IsDeleted() bool
}

// Base contains the common fields for all persisted entities:
// a UUIDv7 identity, create/update audit stamps and soft-delete state.
type Base struct {
	// ID is the primary key (UUIDv7)
	ID id.ID `db:"id" json:"id"`

	// Audit fields. CreatedAt/CreatedBy are stamped exactly once on first
	// persist; UpdatedAt/UpdatedBy on every mutating write.
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	UpdatedBy string    `db:"updated_by" json:"updatedBy,omitempty"`

	// Soft-delete lifecycle. Deleted records stay in the store and are
	// excluded from default reads.
	Deleted   bool       `db:"is_deleted" json:"isDeleted"`
	DeletedAt *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`
	DeletedBy *string    `db:"deleted_by" json:"deletedBy,omitempty"`
}

// NewBase creates a new Base with generated ID.
func NewBase() Base {
	return Base{
		ID: id.New(),
	}
}

// EntityID returns the primary key.
func (b *Base) EntityID() id.ID {
	return b.ID
}

// StampCreate sets the create and update audit fields.
// A record that already carries a create stamp keeps it: the create
// stamp is written exactly once and never overwritten.
func (b *Base) StampCreate(actorID string, at time.Time) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = at
		b.CreatedBy = actorID
	}
	b.UpdatedAt = at
	b.UpdatedBy = actorID
}

// StampUpdate re-stamps the update audit fields.
func (b *Base) StampUpdate(actorID string, at time.Time) {
	b.UpdatedAt = at
	b.UpdatedBy = actorID
}

// MarkDeleted sets the soft-delete fields and re-stamps the update audit.
func (b *Base) MarkDeleted(actorID string, at time.Time) {
	b.Deleted = true
	b.DeletedAt = &at
	b.DeletedBy = &actorID
	b.StampUpdate(actorID, at)
}

// ClearDeleted reverses a soft delete. The create stamp is left untouched;
// only the update audit is refreshed.
func (b *Base) ClearDeleted(actorID string, at time.Time) {
	b.Deleted = false
	b.DeletedAt = nil
	b.DeletedBy = nil
	b.StampUpdate(actorID, at)
}

// IsDeleted reports whether the entity is soft-deleted.
func (b *Base) IsDeleted() bool {
	return b.Deleted
}
