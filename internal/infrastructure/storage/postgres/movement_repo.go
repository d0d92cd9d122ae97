package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"inventra/internal/core/apperror"
	"inventra/internal/core/id"
	"inventra/internal/domain"
	"inventra/internal/domain/material"
	"inventra/internal/domain/movement"
)

const movementsTable = "stock_movements"

// MovementRepo is the PostgreSQL stock movement repository.
type MovementRepo struct {
	*BaseRepo[*movement.Movement]
}

// NewMovementRepo creates a stock movement repository.
func NewMovementRepo(txm *TxManager) *MovementRepo {
	return &MovementRepo{
		BaseRepo: NewBaseRepo(
			txm,
			movementsTable,
			movement.EntityName,
			ExtractDBColumns[movement.Movement](),
			func() *movement.Movement { return &movement.Movement{} },
		),
	}
}

// RegisterMovementRepo wires the movement factory into the registry.
func RegisterMovementRepo(reg *Registry, txm *TxManager) {
	reg.Register(movement.EntityName, func(u *UnitOfWork) any {
		repo := NewMovementRepo(txm)
		repo.bindUnitOfWork(u)
		return repo
	})
}

// buildCurrentBalanceQuery selects the latest live balance snapshot.
// Movements created in one batch share a create stamp, so the id (UUIDv7,
// time-ordered) breaks the tie.
func (r *MovementRepo) buildCurrentBalanceQuery(materialID id.ID) squirrel.SelectBuilder {
	return r.Builder().
		Select("stock_balance").
		From(movementsTable).
		Where(squirrel.Eq{"material_id": materialID}).
		Where(notDeleted()).
		OrderBy("created_at DESC", "id DESC").
		Limit(1)
}

// CurrentBalance returns the balance snapshot of the material's latest
// live movement, zero when it has none.
func (r *MovementRepo) CurrentBalance(ctx context.Context, materialID id.ID) (decimal.Decimal, error) {
	sql, args, err := r.buildCurrentBalanceQuery(materialID).ToSql()
	if err != nil {
		return decimal.Zero, fmt.Errorf("build query: %w", err)
	}

	var balance decimal.Decimal
	err = r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&balance)
	if err == pgx.ErrNoRows {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("current balance: %w", err)
	}

	return balance, nil
}

// CurrentBalanceForUpdate locks the material row for the duration of the
// surrounding transaction, then reads the balance. Concurrent movements
// against the same material serialize on this lock, so check-then-write
// sequences see a stable balance.
func (r *MovementRepo) CurrentBalanceForUpdate(ctx context.Context, materialID id.ID) (decimal.Decimal, error) {
	if r.txm.GetTx(ctx) == nil {
		return decimal.Zero, fmt.Errorf("balance lock requires a transaction")
	}

	sql, args, err := r.Builder().
		Select("id").
		From(materialsTable).
		Where(squirrel.Eq{"id": materialID}).
		Where(notDeleted()).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return decimal.Zero, fmt.Errorf("build lock query: %w", err)
	}

	var locked id.ID
	err = r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&locked)
	if err == pgx.ErrNoRows {
		return decimal.Zero, apperror.NewNotFound(material.EntityName, materialID.String())
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("lock material: %w", err)
	}

	return r.CurrentBalance(ctx, materialID)
}

// History retrieves movements matching the filter, newest first.
func (r *MovementRepo) History(ctx context.Context, f movement.HistoryFilter) (domain.Page[*movement.Movement], error) {
	page, pageSize := normalizePaging(f.Page, f.PageSize)
	result := domain.Page[*movement.Movement]{
		Items:      []*movement.Movement{},
		PageNumber: page,
		PageSize:   pageSize,
	}

	q := r.baseSelect()
	if !f.IncludeDeleted {
		q = q.Where(notDeleted())
	}
	if f.MaterialID != nil {
		q = q.Where(squirrel.Eq{"material_id": *f.MaterialID})
	}
	if f.Type != nil {
		q = q.Where(squirrel.Eq{"movement_type": *f.Type})
	}
	if f.Status != nil {
		q = q.Where(squirrel.Eq{"status": *f.Status})
	}
	if f.Location != nil {
		q = q.Where(squirrel.Or{
			squirrel.Eq{"source_location": *f.Location},
			squirrel.Eq{"target_location": *f.Location},
		})
	}
	if f.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"movement_date": *f.FromDate})
	}
	if f.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"movement_date": *f.ToDate})
	}

	countSQL, countArgs, err := r.Builder().
		Select("COUNT(*)").
		FromSelect(q, "sub").
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}

	querier := r.querier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count history: %w", err)
	}

	sql, args, err := q.
		OrderBy("movement_date DESC", "created_at DESC").
		Limit(uint64(pageSize)).
		Offset(uint64((page - 1) * pageSize)).
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("history: %w", err)
	}

	return result, nil
}

// movementNumberPrefix is the per-day document number prefix; issued
// numbers are prefix + a 4-digit sequence.
func movementNumberPrefix(date time.Time) string {
	return "MV-" + date.Format("20060102") + "-"
}

// NextNumber issues the next document number for the given date, formatted
// MV-YYYYMMDD-NNNN. Counts all movements of the day including deleted so
// numbers are never reissued. Must run inside the insert transaction: a
// transaction-scoped advisory lock on the day key serializes issuance
// across materials, since the material row lock alone would let two
// same-day inserts read the same count and collide on the unique number
// index.
func (r *MovementRepo) NextNumber(ctx context.Context, date time.Time) (string, error) {
	if r.txm.GetTx(ctx) == nil {
		return "", fmt.Errorf("number issuance requires a transaction")
	}

	prefix := movementNumberPrefix(date)

	if _, err := r.querier(ctx).Exec(ctx,
		"SELECT pg_advisory_xact_lock(hashtext($1))", prefix); err != nil {
		return "", fmt.Errorf("lock number sequence: %w", err)
	}

	sql, args, err := r.Builder().
		Select("COUNT(*)").
		From(movementsTable).
		Where(squirrel.Like{"number": prefix + "%"}).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build query: %w", err)
	}

	var count int64
	if err := r.querier(ctx).QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return "", fmt.Errorf("next number: %w", err)
	}

	return fmt.Sprintf("%s%04d", prefix, count+1), nil
}

var _ movement.Repository = (*MovementRepo)(nil)
