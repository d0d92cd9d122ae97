package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"inventra/internal/core/actor"
	"inventra/internal/core/apperror"
	"inventra/internal/core/entity"
	"inventra/internal/core/id"
	"inventra/internal/domain"
	"inventra/internal/domain/filter"
)

// BaseRepo provides common persistence operations for any entity embedding
// entity.Base. Embed it in entity-specific repositories.
//
// Soft-deleted rows are invisible to every default read; the deleted set is
// reachable only through GetDeleted, GetByIDIncludeDeleted and the explicit
// IncludeDeleted/DeletedOnly list flags. Audit fields are stamped from the
// actor carried in context; there is no system-user fallback.
type BaseRepo[T entity.Entity] struct {
	tableName  string
	entityName string
	selectCols []string
	newFn      func() T

	txm *TxManager
	uow *UnitOfWork // optional; enables deferred (staged) writes
}

// NewBaseRepo creates a new base repository.
func NewBaseRepo[T entity.Entity](
	txm *TxManager,
	tableName string,
	entityName string,
	selectCols []string,
	newFn func() T,
) *BaseRepo[T] {
	return &BaseRepo[T]{
		tableName:  tableName,
		entityName: entityName,
		selectCols: selectCols,
		newFn:      newFn,
		txm:        txm,
	}
}

// bindUnitOfWork attaches the repository to a Unit of Work so deferred
// writes can be staged on it. Called by the Unit of Work factory only.
func (r *BaseRepo[T]) bindUnitOfWork(u *UnitOfWork) {
	r.uow = u
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r *BaseRepo[T]) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func (r *BaseRepo[T]) baseSelect() squirrel.SelectBuilder {
	return r.Builder().
		Select(r.selectCols...).
		From(r.tableName)
}

func notDeleted() squirrel.Sqlizer {
	return squirrel.Eq{"is_deleted": false}
}

func (r *BaseRepo[T]) querier(ctx context.Context) Querier {
	return r.txm.GetQuerier(ctx)
}

// mutatingActor returns the actor required for any write.
func (r *BaseRepo[T]) mutatingActor(ctx context.Context) (string, error) {
	a, ok := actor.From(ctx)
	if !ok {
		return "", apperror.NewUnauthorized("actor is required for mutating operations").
			WithDetail("entity", r.entityName)
	}
	return a.ID, nil
}

// mapStorageError converts constraint violations into distinct conflict
// errors instead of swallowing them into a generic failure.
func (r *BaseRepo[T]) mapStorageError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return apperror.NewDuplicate(r.entityName, pgErr.ConstraintName, "").WithCause(err)
		case "23503": // foreign_key_violation
			return apperror.NewConflict("record is referenced by other data").
				WithDetail("entity", r.entityName).
				WithCause(err)
		}
	}
	return fmt.Errorf("%s %s: %w", op, r.tableName, err)
}

// insertValues builds the column map for an INSERT from db tags, filtered
// to columns that exist in the table.
func (r *BaseRepo[T]) insertValues(e T) (map[string]any, error) {
	data := StructToMap(e)
	if len(data) == 0 {
		return nil, fmt.Errorf("no db tags found in entity %s", r.entityName)
	}

	filtered := make(map[string]any, len(r.selectCols))
	for _, col := range r.selectCols {
		if val, ok := data[col]; ok {
			filtered[col] = val
		}
	}
	return filtered, nil
}

// updateValues builds the SET map for an UPDATE: immutable identity,
// create-audit and delete-lifecycle columns are never overwritten here.
func (r *BaseRepo[T]) updateValues(e T) (map[string]any, error) {
	data, err := r.insertValues(e)
	if err != nil {
		return nil, err
	}

	delete(data, "id")
	delete(data, "created_at")
	delete(data, "created_by")
	delete(data, "is_deleted")
	delete(data, "deleted_at")
	delete(data, "deleted_by")
	return data, nil
}

// --- Writes ---

// Create stamps create/update audit fields and inserts the entity.
func (r *BaseRepo[T]) Create(ctx context.Context, e T) error {
	actorID, err := r.mutatingActor(ctx)
	if err != nil {
		return err
	}
	e.StampCreate(actorID, time.Now().UTC())

	data, err := r.insertValues(e)
	if err != nil {
		return err
	}

	sql, args, err := r.Builder().
		Insert(r.tableName).
		SetMap(data).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return r.mapStorageError("insert", err)
	}

	return nil
}

// CreateMany bulk inserts entities after stamping each.
// Inside a transaction the COPY protocol is used; otherwise a single
// multi-row INSERT.
func (r *BaseRepo[T]) CreateMany(ctx context.Context, es []T) error {
	if len(es) == 0 {
		return nil
	}

	actorID, err := r.mutatingActor(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, e := range es {
		e.StampCreate(actorID, now)
	}

	// Fast path: COPY when inside a transaction.
	if r.txm.GetTx(ctx) != nil {
		rows := make([][]any, 0, len(es))
		for _, e := range es {
			data, err := r.insertValues(e)
			if err != nil {
				return err
			}
			row := make([]any, len(r.selectCols))
			for i, col := range r.selectCols {
				row[i] = data[col]
			}
			rows = append(rows, row)
		}

		inserter := NewBatchInserter(r.txm)
		if _, err := inserter.CopyFromSlice(ctx, r.tableName, r.selectCols, rows); err != nil {
			return r.mapStorageError("copy", err)
		}
		return nil
	}

	q := r.Builder().Insert(r.tableName).Columns(r.selectCols...)
	for _, e := range es {
		data, err := r.insertValues(e)
		if err != nil {
			return err
		}
		values := make([]any, len(r.selectCols))
		for i, col := range r.selectCols {
			values[i] = data[col]
		}
		q = q.Values(values...)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.querier(ctx).Exec(ctx, sql, args...); err != nil {
		return r.mapStorageError("insert", err)
	}
	return nil
}

// Update overwrites mutable fields of an existing non-deleted entity.
// Absent or soft-deleted records yield a not-found error.
func (r *BaseRepo[T]) Update(ctx context.Context, e T) error {
	actorID, err := r.mutatingActor(ctx)
	if err != nil {
		return err
	}
	e.StampUpdate(actorID, time.Now().UTC())

	data, err := r.updateValues(e)
	if err != nil {
		return err
	}

	sql, args, err := r.Builder().
		Update(r.tableName).
		SetMap(data).
		Where(squirrel.Eq{"id": e.EntityID()}).
		Where(notDeleted()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return r.mapStorageError("update", err)
	}

	if result.RowsAffected() == 0 {
		return apperror.NewNotFound(r.entityName, e.EntityID().String())
	}

	return nil
}

// SoftDelete marks the record deleted and stamps the delete audit.
// Returns false when no live record matched.
func (r *BaseRepo[T]) SoftDelete(ctx context.Context, entityID id.ID) (bool, error) {
	actorID, err := r.mutatingActor(ctx)
	if err != nil {
		return false, err
	}
	now := time.Now().UTC()

	sql, args, err := r.Builder().
		Update(r.tableName).
		Set("is_deleted", true).
		Set("deleted_at", now).
		Set("deleted_by", actorID).
		Set("updated_at", now).
		Set("updated_by", actorID).
		Where(squirrel.Eq{"id": entityID}).
		Where(notDeleted()).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build soft delete: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, r.mapStorageError("soft delete", err)
	}

	return result.RowsAffected() > 0, nil
}

// Restore reverses a soft delete: clears the delete fields and re-stamps
// the update audit. Create audit fields are never touched.
// Returns false when no deleted record matched.
func (r *BaseRepo[T]) Restore(ctx context.Context, entityID id.ID) (bool, error) {
	actorID, err := r.mutatingActor(ctx)
	if err != nil {
		return false, err
	}
	now := time.Now().UTC()

	sql, args, err := r.Builder().
		Update(r.tableName).
		Set("is_deleted", false).
		Set("deleted_at", nil).
		Set("deleted_by", nil).
		Set("updated_at", now).
		Set("updated_by", actorID).
		Where(squirrel.Eq{"id": entityID}).
		Where(squirrel.Eq{"is_deleted": true}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build restore: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, r.mapStorageError("restore", err)
	}

	return result.RowsAffected() > 0, nil
}

// HardDelete physically removes the row. Returns false when absent.
func (r *BaseRepo[T]) HardDelete(ctx context.Context, entityID id.ID) (bool, error) {
	sql, args, err := r.Builder().
		Delete(r.tableName).
		Where(squirrel.Eq{"id": entityID}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build delete: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return false, r.mapStorageError("delete", err)
	}

	return result.RowsAffected() > 0, nil
}

// buildBulkUpdate assembles the bulk UPDATE with the update audit re-stamp.
func (r *BaseRepo[T]) buildBulkUpdate(actorID string, now time.Time, pred squirrel.Sqlizer, set map[string]any) (string, []any, error) {
	if err := r.validateColumns(keysOf(set)); err != nil {
		return "", nil, err
	}

	q := r.Builder().
		Update(r.tableName).
		SetMap(set).
		Set("updated_at", now).
		Set("updated_by", actorID).
		Where(notDeleted())
	if pred != nil {
		q = q.Where(pred)
	}

	return q.ToSql()
}

// BulkUpdate applies the column assignments to every non-deleted record
// matching the predicate, re-stamping update audit fields on each.
// Returns the number of affected records.
func (r *BaseRepo[T]) BulkUpdate(ctx context.Context, pred squirrel.Sqlizer, set map[string]any) (int64, error) {
	actorID, err := r.mutatingActor(ctx)
	if err != nil {
		return 0, err
	}

	sql, args, err := r.buildBulkUpdate(actorID, time.Now().UTC(), pred, set)
	if err != nil {
		return 0, err
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, r.mapStorageError("bulk update", err)
	}

	return result.RowsAffected(), nil
}

// buildBulkSoftDelete assembles the bulk soft delete: the delete stamp and
// the update audit re-stamp in one statement.
func (r *BaseRepo[T]) buildBulkSoftDelete(actorID string, now time.Time, pred squirrel.Sqlizer) (string, []any, error) {
	q := r.Builder().
		Update(r.tableName).
		Set("is_deleted", true).
		Set("deleted_at", now).
		Set("deleted_by", actorID).
		Set("updated_at", now).
		Set("updated_by", actorID).
		Where(notDeleted())
	if pred != nil {
		q = q.Where(pred)
	}

	return q.ToSql()
}

// BulkSoftDelete soft-deletes every non-deleted record matching the
// predicate. Returns the number of affected records.
func (r *BaseRepo[T]) BulkSoftDelete(ctx context.Context, pred squirrel.Sqlizer) (int64, error) {
	actorID, err := r.mutatingActor(ctx)
	if err != nil {
		return 0, err
	}

	sql, args, err := r.buildBulkSoftDelete(actorID, time.Now().UTC(), pred)
	if err != nil {
		return 0, fmt.Errorf("build bulk delete: %w", err)
	}

	result, err := r.querier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return 0, r.mapStorageError("bulk delete", err)
	}

	return result.RowsAffected(), nil
}

// --- Reads ---

// GetByID retrieves a non-deleted entity by ID.
func (r *BaseRepo[T]) GetByID(ctx context.Context, entityID id.ID) (T, error) {
	return r.getOne(ctx, r.baseSelect().
		Where(squirrel.Eq{"id": entityID}).
		Where(notDeleted()).
		Limit(1), entityID.String())
}

// GetByIDIncludeDeleted retrieves an entity regardless of deletion state.
func (r *BaseRepo[T]) GetByIDIncludeDeleted(ctx context.Context, entityID id.ID) (T, error) {
	return r.getOne(ctx, r.baseSelect().
		Where(squirrel.Eq{"id": entityID}).
		Limit(1), entityID.String())
}

// GetAll retrieves all non-deleted entities.
func (r *BaseRepo[T]) GetAll(ctx context.Context) ([]T, error) {
	return r.selectMany(ctx, r.baseSelect().
		Where(notDeleted()).
		OrderBy("created_at"))
}

// GetDeleted retrieves only soft-deleted entities.
func (r *BaseRepo[T]) GetDeleted(ctx context.Context) ([]T, error) {
	return r.selectMany(ctx, r.baseSelect().
		Where(squirrel.Eq{"is_deleted": true}).
		OrderBy("deleted_at"))
}

// Find retrieves non-deleted entities matching the predicate.
func (r *BaseRepo[T]) Find(ctx context.Context, pred squirrel.Sqlizer) ([]T, error) {
	q := r.baseSelect().Where(notDeleted())
	if pred != nil {
		q = q.Where(pred)
	}
	return r.selectMany(ctx, q.OrderBy("created_at"))
}

// FindOne retrieves the first non-deleted entity matching the predicate.
func (r *BaseRepo[T]) FindOne(ctx context.Context, pred squirrel.Sqlizer) (T, error) {
	q := r.baseSelect().Where(notDeleted())
	if pred != nil {
		q = q.Where(pred)
	}
	return r.getOne(ctx, q.Limit(1), "matching query")
}

// Search performs a contains-search over the given fields.
// An empty field list or blank term returns an empty slice without
// querying - the search never silently widens to all columns.
func (r *BaseRepo[T]) Search(ctx context.Context, term string, fields []string) ([]T, error) {
	if err := r.validateColumns(fields); err != nil {
		return nil, err
	}

	pred := filter.Search(term, fields)
	if pred == nil {
		return []T{}, nil
	}

	return r.Find(ctx, pred)
}

// errEmptyResult signals a filter combination that matches nothing, so no
// query needs to run at all.
var errEmptyResult = errors.New("filter matches nothing")

// buildListQuery translates a ListFilter into the unpaged SELECT. Split out
// so query shapes can be asserted without a database.
func (r *BaseRepo[T]) buildListQuery(f domain.ListFilter) (squirrel.SelectBuilder, error) {
	q := r.baseSelect()

	// Soft-delete visibility: default filter, deleted-only, or both.
	switch {
	case f.DeletedOnly:
		q = q.Where(squirrel.Eq{"is_deleted": true})
	case !f.IncludeDeleted:
		q = q.Where(notDeleted())
	}

	if f.Search != "" {
		if err := r.validateColumns(f.SearchFields); err != nil {
			return q, err
		}
		pred := filter.Search(f.Search, f.SearchFields)
		if pred == nil {
			// A term without fields matches nothing.
			return q, errEmptyResult
		}
		q = q.Where(pred)
	}

	if len(f.Conditions) > 0 {
		fields := make([]string, 0, len(f.Conditions))
		for _, c := range f.Conditions {
			fields = append(fields, c.Field)
		}
		if err := r.validateColumns(fields); err != nil {
			return q, err
		}

		pred, err := filter.All(f.Conditions)
		if err != nil {
			return q, apperror.NewValidation(err.Error())
		}
		q = q.Where(pred)
	}

	return q, nil
}

// List retrieves entities with filtering and pagination.
// TotalCount is computed from the filtered set before the page slice.
func (r *BaseRepo[T]) List(ctx context.Context, f domain.ListFilter) (domain.Page[T], error) {
	page, pageSize := normalizePaging(f.Page, f.PageSize)
	result := domain.Page[T]{
		Items:      []T{},
		PageNumber: page,
		PageSize:   pageSize,
	}

	q, err := r.buildListQuery(f)
	if err != nil {
		if errors.Is(err, errEmptyResult) {
			return result, nil
		}
		return result, err
	}

	// Count total before pagination
	countSQL, countArgs, err := r.Builder().
		Select("COUNT(*)").
		FromSelect(q, "sub").
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build count query: %w", err)
	}

	querier := r.querier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	orderBy, err := r.parseOrderBy(f.OrderBy)
	if err != nil {
		return result, err
	}

	sql, args, err := q.OrderBy(orderBy).
		Limit(uint64(pageSize)).
		Offset(uint64((page - 1) * pageSize)).
		ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("list %s: %w", r.tableName, err)
	}

	return result, nil
}

// Exists checks if a non-deleted entity with the given ID exists.
func (r *BaseRepo[T]) Exists(ctx context.Context, entityID id.ID) (bool, error) {
	sql, args, err := r.Builder().
		Select("1").
		From(r.tableName).
		Where(squirrel.Eq{"id": entityID}).
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
		return false, fmt.Errorf("exists: %w", err)
	}

	return true, nil
}

// --- Deferred writes ---
// These stage statements on the owning Unit of Work instead of executing
// immediately; SaveChanges flushes them in issue order.

// CreateDeferred stamps the entity and stages its INSERT.
func (r *BaseRepo[T]) CreateDeferred(ctx context.Context, e T) error {
	if r.uow == nil {
		return fmt.Errorf("%s repository is not bound to a unit of work", r.entityName)
	}

	actorID, err := r.mutatingActor(ctx)
	if err != nil {
		return err
	}
	e.StampCreate(actorID, time.Now().UTC())

	data, err := r.insertValues(e)
	if err != nil {
		return err
	}

	sql, args, err := r.Builder().Insert(r.tableName).SetMap(data).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	r.uow.stage(sql, args)
	return nil
}

// UpdateDeferred stamps the entity and stages its UPDATE.
func (r *BaseRepo[T]) UpdateDeferred(ctx context.Context, e T) error {
	if r.uow == nil {
		return fmt.Errorf("%s repository is not bound to a unit of work", r.entityName)
	}

	actorID, err := r.mutatingActor(ctx)
	if err != nil {
		return err
	}
	e.StampUpdate(actorID, time.Now().UTC())

	data, err := r.updateValues(e)
	if err != nil {
		return err
	}

	sql, args, err := r.Builder().
		Update(r.tableName).
		SetMap(data).
		Where(squirrel.Eq{"id": e.EntityID()}).
		Where(notDeleted()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	r.uow.stage(sql, args)
	return nil
}

// SoftDeleteDeferred stages a soft delete.
func (r *BaseRepo[T]) SoftDeleteDeferred(ctx context.Context, entityID id.ID) error {
	if r.uow == nil {
		return fmt.Errorf("%s repository is not bound to a unit of work", r.entityName)
	}

	actorID, err := r.mutatingActor(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()

	sql, args, err := r.Builder().
		Update(r.tableName).
		Set("is_deleted", true).
		Set("deleted_at", now).
		Set("deleted_by", actorID).
		Set("updated_at", now).
		Set("updated_by", actorID).
		Where(squirrel.Eq{"id": entityID}).
		Where(notDeleted()).
		ToSql()
	if err != nil {
		return fmt.Errorf("build soft delete: %w", err)
	}

	r.uow.stage(sql, args)
	return nil
}

// --- Helpers ---

func (r *BaseRepo[T]) getOne(ctx context.Context, q squirrel.SelectBuilder, ref string) (T, error) {
	e := r.newFn()

	sql, args, err := q.ToSql()
	if err != nil {
		return e, fmt.Errorf("build query: %w", err)
	}

	if err := pgxscan.Get(ctx, r.querier(ctx), e, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return e, apperror.NewNotFound(r.entityName, ref)
		}
		return e, fmt.Errorf("get %s: %w", r.tableName, err)
	}

	return e, nil
}

func (r *BaseRepo[T]) selectMany(ctx context.Context, q squirrel.SelectBuilder) ([]T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	items := []T{}
	if err := pgxscan.Select(ctx, r.querier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select %s: %w", r.tableName, err)
	}

	return items, nil
}

// validateColumns whitelists column names against selectCols for SQL
// injection protection on dynamically-supplied field lists.
func (r *BaseRepo[T]) validateColumns(fields []string) error {
	valid := make(map[string]bool, len(r.selectCols))
	for _, col := range r.selectCols {
		valid[col] = true
	}

	for _, f := range fields {
		if !valid[f] {
			return apperror.NewValidation("invalid column").
				WithDetail("field", f).
				WithDetail("entity", r.entityName)
		}
	}
	return nil
}

func (r *BaseRepo[T]) parseOrderBy(orderBy string) (string, error) {
	if orderBy == "" {
		return "created_at DESC", nil
	}

	// Support "-field" for DESC.
	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	} else if strings.HasPrefix(orderBy, "+") {
		field = strings.TrimPrefix(orderBy, "+")
	}

	field = strings.TrimSpace(field)
	if field == "" {
		return "", apperror.NewValidation("invalid orderBy").WithDetail("orderBy", orderBy)
	}

	if err := r.validateColumns([]string{field}); err != nil {
		return "", apperror.NewValidation("invalid orderBy").
			WithDetail("orderBy", orderBy).
			WithDetail("field", field)
	}

	return field + " " + direction, nil
}

// normalizePaging clamps paging inputs: page is 1-indexed, a non-positive
// page size falls back to the documented default.
func normalizePaging(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = domain.DefaultPageSize
	}
	return page, pageSize
}

func keysOf(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
