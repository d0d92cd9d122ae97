// Package domain provides core business logic interfaces and types.
package domain

import (
	"context"

	"github.com/Masterminds/squirrel"

	"inventra/internal/core/entity"
	"inventra/internal/core/id"
	"inventra/internal/domain/filter"
)

// --- Filter & Pagination ---

// DefaultPageSize is used when a caller passes a non-positive page size.
// Page sizes must be >= 1; anything else falls back to this default rather
// than producing an unbounded query.
const DefaultPageSize = 50

// ListFilter contains common filtering options for list operations.
type ListFilter struct {
	// Search performs a contains-search over SearchFields.
	// Blank Search or empty SearchFields means no search predicate; when a
	// term is given without fields the result is empty, never "all fields".
	Search       string
	SearchFields []string

	// IncludeDeleted includes soft-deleted records alongside live ones.
	IncludeDeleted bool

	// DeletedOnly returns only soft-deleted records.
	DeletedOnly bool

	// Conditions are arbitrary structured filters applied as a conjunction.
	Conditions []filter.Condition

	// OrderBy specifies sorting (e.g., "name", "-created_at").
	OrderBy string

	// Page is 1-indexed. PageSize <= 0 falls back to DefaultPageSize.
	Page     int
	PageSize int
}

// DefaultListFilter returns sensible defaults.
func DefaultListFilter() ListFilter {
	return ListFilter{
		Page:     1,
		PageSize: DefaultPageSize,
		OrderBy:  "-created_at",
	}
}

// Page contains one page of results plus the total count of the filtered
// set, computed before the page slice is applied.
type Page[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	PageNumber int   `json:"page"`
	PageSize   int   `json:"pageSize"`
}

// --- Repository Interface ---

// Repository defines entity-type-agnostic persistence operations with the
// soft-delete and audit invariants enforced uniformly.
//
// Mutating operations stamp audit fields from the actor carried in context;
// a missing actor is an error, never a silent system default.
//
// "Not found" on delete/restore/hard-delete is reported as (false, nil):
// these are idempotent-style operations and the caller decides whether
// absence matters. Reads report absence as an apperror not-found.
type Repository[T entity.Entity] interface {
	// Create stamps create/update audit fields and persists the entity.
	Create(ctx context.Context, e T) error

	// CreateMany bulk inserts entities after stamping each.
	CreateMany(ctx context.Context, es []T) error

	// GetByID retrieves a non-deleted entity by ID.
	GetByID(ctx context.Context, entityID id.ID) (T, error)

	// GetByIDIncludeDeleted retrieves an entity regardless of deletion state.
	GetByIDIncludeDeleted(ctx context.Context, entityID id.ID) (T, error)

	// GetAll retrieves all non-deleted entities.
	GetAll(ctx context.Context) ([]T, error)

	// GetDeleted retrieves only soft-deleted entities.
	GetDeleted(ctx context.Context) ([]T, error)

	// Find retrieves non-deleted entities matching the predicate.
	Find(ctx context.Context, pred squirrel.Sqlizer) ([]T, error)

	// FindOne retrieves the first non-deleted entity matching the predicate.
	FindOne(ctx context.Context, pred squirrel.Sqlizer) (T, error)

	// Search performs a contains-search over the given fields.
	// Empty fields or a blank term returns an empty slice without querying.
	Search(ctx context.Context, term string, fields []string) ([]T, error)

	// List retrieves entities with filtering and pagination. TotalCount is
	// computed from the filtered set before the page slice.
	List(ctx context.Context, f ListFilter) (Page[T], error)

	// Update overwrites mutable fields of an existing non-deleted entity,
	// re-stamping the update audit. Absent or soft-deleted records yield a
	// not-found error.
	Update(ctx context.Context, e T) error

	// SoftDelete marks the record deleted, stamping the delete audit.
	// Returns false when no live record matched.
	SoftDelete(ctx context.Context, entityID id.ID) (bool, error)

	// Restore reverses a soft delete. Returns false when no deleted record
	// matched. Create audit fields are never touched.
	Restore(ctx context.Context, entityID id.ID) (bool, error)

	// HardDelete physically removes the row. Returns false when absent.
	HardDelete(ctx context.Context, entityID id.ID) (bool, error)

	// BulkUpdate applies the column assignments to every non-deleted record
	// matching the predicate, re-stamping update audit fields on each.
	// Returns the number of affected records.
	BulkUpdate(ctx context.Context, pred squirrel.Sqlizer, set map[string]any) (int64, error)

	// BulkSoftDelete soft-deletes every non-deleted record matching the
	// predicate. Returns the number of affected records.
	BulkSoftDelete(ctx context.Context, pred squirrel.Sqlizer) (int64, error)

	// Exists checks if a non-deleted entity with the given ID exists.
	Exists(ctx context.Context, entityID id.ID) (bool, error)
}
