package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventra/internal/domain/material"
	"inventra/internal/domain/movement"
)

func TestExtractDBColumnsMaterial(t *testing.T) {
	cols := ExtractDBColumns[material.Material]()

	// Embedded Base columns come first, entity columns after.
	assert.Equal(t, "id", cols[0])
	assert.Contains(t, cols, "created_at")
	assert.Contains(t, cols, "is_deleted")
	assert.Contains(t, cols, "deleted_by")
	assert.Contains(t, cols, "code")
	assert.Contains(t, cols, "unit_price")
	assert.Contains(t, cols, "min_stock_level")
}

func TestExtractDBColumnsMovement(t *testing.T) {
	cols := ExtractDBColumns[movement.Movement]()

	assert.Contains(t, cols, "movement_type")
	assert.Contains(t, cols, "stock_balance")
	assert.Contains(t, cols, "material_id")
	assert.Contains(t, cols, "movement_date")
	assert.NotContains(t, cols, "type") // column name, not field name
}

func TestStructToMap(t *testing.T) {
	m := material.New("RM-1", "Steel", "kg")
	data := StructToMap(m)

	require.NotEmpty(t, data)
	assert.Equal(t, "RM-1", data["code"])
	assert.Equal(t, "Steel", data["name"])
	assert.Equal(t, "kg", data["unit"])
	assert.Equal(t, m.ID, data["id"])
	assert.Equal(t, false, data["is_deleted"])
}

func TestStructToMapIsStable(t *testing.T) {
	// The metadata cache must not leak values between instances.
	a := material.New("A-1", "First", "kg")
	b := material.New("B-1", "Second", "m")

	dataA := StructToMap(a)
	dataB := StructToMap(b)

	assert.Equal(t, "A-1", dataA["code"])
	assert.Equal(t, "B-1", dataB["code"])
}
