package material

import (
	"context"

	"inventra/internal/domain"
)

// EntityName is the registry key and error-message name for materials.
const EntityName = "material"

// SearchFields are the columns offered to the dynamic search builder.
var SearchFields = []string{"code", "name", "barcode", "description"}

// Repository defines persistence operations for the material catalog.
// It is the generic repository contract plus material-specific lookups.
type Repository interface {
	domain.Repository[*Material]

	// GetByCode retrieves a non-deleted material by code.
	GetByCode(ctx context.Context, code string) (*Material, error)

	// ExistsByCode checks if a live material with the given code exists.
	ExistsByCode(ctx context.Context, code string) (bool, error)
}
