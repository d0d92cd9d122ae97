package movement

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"inventra/internal/core/id"
	"inventra/internal/domain"
)

// Repository defines persistence operations for the movement register.
// It is the generic repository contract plus balance and history queries.
type Repository interface {
	domain.Repository[*Movement]

	// CurrentBalance returns the running balance for a material: the
	// balance snapshot of its latest live movement, zero when none exist.
	CurrentBalance(ctx context.Context, materialID id.ID) (decimal.Decimal, error)

	// CurrentBalanceForUpdate reads the balance while holding a row lock on
	// the material, serializing concurrent movements against the same
	// material for the duration of the transaction.
	CurrentBalanceForUpdate(ctx context.Context, materialID id.ID) (decimal.Decimal, error)

	// History retrieves movements matching the filter, newest first.
	History(ctx context.Context, f HistoryFilter) (domain.Page[*Movement], error)

	// NextNumber issues the next document number for the given date.
	NextNumber(ctx context.Context, date time.Time) (string, error)
}

// HistoryFilter narrows movement history queries.
type HistoryFilter struct {
	MaterialID *id.ID
	Type       *Type
	Status     *Status
	Location   *string // matches source or target location
	FromDate   *time.Time
	ToDate     *time.Time

	IncludeDeleted bool

	Page     int
	PageSize int
}
