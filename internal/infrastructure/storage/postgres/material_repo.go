package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"inventra/internal/domain/material"
)

const materialsTable = "materials"

// MaterialRepo is the PostgreSQL material repository.
type MaterialRepo struct {
	*BaseRepo[*material.Material]
}

// NewMaterialRepo creates a material repository.
func NewMaterialRepo(txm *TxManager) *MaterialRepo {
	return &MaterialRepo{
		BaseRepo: NewBaseRepo(
			txm,
			materialsTable,
			material.EntityName,
			ExtractDBColumns[material.Material](),
			func() *material.Material { return &material.Material{} },
		),
	}
}

// RegisterMaterialRepo wires the material factory into the registry.
func RegisterMaterialRepo(reg *Registry, txm *TxManager) {
	reg.Register(material.EntityName, func(u *UnitOfWork) any {
		repo := NewMaterialRepo(txm)
		repo.bindUnitOfWork(u)
		return repo
	})
}

// GetByCode retrieves a non-deleted material by code.
func (r *MaterialRepo) GetByCode(ctx context.Context, code string) (*material.Material, error) {
	return r.FindOne(ctx, squirrel.Eq{"code": code})
}

// ExistsByCode checks if a live material with the given code exists.
func (r *MaterialRepo) ExistsByCode(ctx context.Context, code string) (bool, error) {
	sql, args, err := r.Builder().
		Select("1").
		From(materialsTable).
		Where(squirrel.Eq{"code": code}).
		Where(notDeleted()).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var one int
	err = r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&one)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists by code: %w", err)
	}

	return true, nil
}

var _ material.Repository = (*MaterialRepo)(nil)
