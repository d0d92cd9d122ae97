package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventra/internal/core/actor"
	"inventra/internal/core/apperror"
	"inventra/internal/domain"
	"inventra/internal/domain/filter"
	"inventra/internal/domain/material"
)

func newTestRepo() *BaseRepo[*material.Material] {
	return NewBaseRepo(
		nil,
		materialsTable,
		material.EntityName,
		ExtractDBColumns[material.Material](),
		func() *material.Material { return &material.Material{} },
	)
}

func TestInsertValuesCoverAllColumns(t *testing.T) {
	repo := newTestRepo()
	m := material.New("RM-1", "Steel", "kg")

	data, err := repo.insertValues(m)
	require.NoError(t, err)

	assert.Len(t, data, len(repo.selectCols))
	assert.Equal(t, "RM-1", data["code"])
	assert.Equal(t, m.ID, data["id"])
}

func TestUpdateValuesExcludeImmutableColumns(t *testing.T) {
	repo := newTestRepo()
	m := material.New("RM-1", "Steel", "kg")

	data, err := repo.updateValues(m)
	require.NoError(t, err)

	for _, col := range []string{"id", "created_at", "created_by", "is_deleted", "deleted_at", "deleted_by"} {
		assert.NotContains(t, data, col, col)
	}
	assert.Contains(t, data, "name")
	assert.Contains(t, data, "updated_at")
}

func TestValidateColumns(t *testing.T) {
	repo := newTestRepo()

	assert.NoError(t, repo.validateColumns([]string{"code", "name"}))
	assert.NoError(t, repo.validateColumns(nil))

	err := repo.validateColumns([]string{"code", "name; DROP TABLE materials"})
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestParseOrderBy(t *testing.T) {
	repo := newTestRepo()

	tests := []struct {
		in   string
		want string
	}{
		{"", "created_at DESC"},
		{"name", "name ASC"},
		{"+name", "name ASC"},
		{"-name", "name DESC"},
		{"-created_at", "created_at DESC"},
	}
	for _, tt := range tests {
		got, err := repo.parseOrderBy(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := repo.parseOrderBy("no_such_column")
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))

	_, err = repo.parseOrderBy("-")
	require.Error(t, err)
}

func TestNormalizePaging(t *testing.T) {
	page, size := normalizePaging(0, 0)
	assert.Equal(t, 1, page)
	assert.Equal(t, domain.DefaultPageSize, size)

	page, size = normalizePaging(-3, -10)
	assert.Equal(t, 1, page)
	assert.Equal(t, domain.DefaultPageSize, size)

	page, size = normalizePaging(4, 25)
	assert.Equal(t, 4, page)
	assert.Equal(t, 25, size)
}

func TestBuildListQueryShapes(t *testing.T) {
	repo := newTestRepo()

	t.Run("default excludes deleted", func(t *testing.T) {
		q, err := repo.buildListQuery(domain.DefaultListFilter())
		require.NoError(t, err)

		sql, args, err := q.ToSql()
		require.NoError(t, err)
		assert.Contains(t, sql, "FROM materials WHERE is_deleted = $1")
		assert.Equal(t, []any{false}, args)
	})

	t.Run("deleted only", func(t *testing.T) {
		f := domain.DefaultListFilter()
		f.DeletedOnly = true

		q, err := repo.buildListQuery(f)
		require.NoError(t, err)

		sql, args, err := q.ToSql()
		require.NoError(t, err)
		assert.Contains(t, sql, "is_deleted = $1")
		assert.Equal(t, []any{true}, args)
	})

	t.Run("include deleted drops the filter", func(t *testing.T) {
		f := domain.DefaultListFilter()
		f.IncludeDeleted = true

		q, err := repo.buildListQuery(f)
		require.NoError(t, err)

		sql, args, err := q.ToSql()
		require.NoError(t, err)

		// The column list still selects is_deleted; only the WHERE
		// predicate must be gone.
		assert.NotContains(t, sql, "WHERE")
		assert.NotContains(t, sql, "is_deleted =")
		assert.Empty(t, args)
	})

	t.Run("search folds fields into a disjunction", func(t *testing.T) {
		f := domain.DefaultListFilter()
		f.Search = "bolt"
		f.SearchFields = []string{"code", "name"}

		q, err := repo.buildListQuery(f)
		require.NoError(t, err)

		sql, args, err := q.ToSql()
		require.NoError(t, err)
		assert.Contains(t, sql, "(code ILIKE $2 OR name ILIKE $3)")
		assert.Equal(t, []any{false, "%bolt%", "%bolt%"}, args)
	})

	t.Run("search term without fields matches nothing", func(t *testing.T) {
		f := domain.DefaultListFilter()
		f.Search = "bolt"
		f.SearchFields = nil

		_, err := repo.buildListQuery(f)
		require.ErrorIs(t, err, errEmptyResult)
	})

	t.Run("search rejects unknown columns", func(t *testing.T) {
		f := domain.DefaultListFilter()
		f.Search = "bolt"
		f.SearchFields = []string{"no_such_column"}

		_, err := repo.buildListQuery(f)
		require.Error(t, err)
		assert.True(t, apperror.IsValidation(err))
	})

	t.Run("conditions apply as a conjunction", func(t *testing.T) {
		f := domain.DefaultListFilter()
		f.Conditions = []filter.Condition{
			{Field: "unit", Operator: filter.Equal, Value: "kg"},
			{Field: "name", Operator: filter.Contains, Value: "steel"},
		}

		q, err := repo.buildListQuery(f)
		require.NoError(t, err)

		sql, args, err := q.ToSql()
		require.NoError(t, err)
		assert.Contains(t, sql, "(unit = $2 AND name ILIKE $3)")
		assert.Equal(t, []any{false, "kg", "%steel%"}, args)
	})

	t.Run("conditions reject unknown columns", func(t *testing.T) {
		f := domain.DefaultListFilter()
		f.Conditions = []filter.Condition{
			{Field: "evil; --", Operator: filter.Equal, Value: 1},
		}

		_, err := repo.buildListQuery(f)
		require.Error(t, err)
		assert.True(t, apperror.IsValidation(err))
	})
}

func TestBuildBulkUpdateRestampsAudit(t *testing.T) {
	repo := newTestRepo()
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

	sql, args, err := repo.buildBulkUpdate("alice", now,
		squirrel.Eq{"unit": "pcs"}, map[string]any{"unit": "kg"})
	require.NoError(t, err)

	assert.Equal(t,
		"UPDATE materials SET unit = $1, updated_at = $2, updated_by = $3 WHERE is_deleted = $4 AND unit = $5",
		sql)
	assert.Equal(t, []any{"kg", now, "alice", false, "pcs"}, args)
}

func TestBuildBulkUpdateRejectsUnknownColumns(t *testing.T) {
	repo := newTestRepo()

	_, _, err := repo.buildBulkUpdate("alice", time.Now(), nil,
		map[string]any{"no_such_column": 1})
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))
}

func TestBuildBulkSoftDeleteStampsLifecycle(t *testing.T) {
	repo := newTestRepo()
	now := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

	sql, args, err := repo.buildBulkSoftDelete("bob", now, squirrel.Eq{"unit": "pcs"})
	require.NoError(t, err)

	// Delete stamp and update audit re-stamp in one statement, applied
	// only to live rows.
	assert.Equal(t,
		"UPDATE materials SET is_deleted = $1, deleted_at = $2, deleted_by = $3, updated_at = $4, updated_by = $5 WHERE is_deleted = $6 AND unit = $7",
		sql)
	assert.Equal(t, []any{true, now, "bob", now, "bob", false, "pcs"}, args)
}

func TestMutatingActorRequired(t *testing.T) {
	repo := newTestRepo()
	ctx := context.Background()

	_, err := repo.mutatingActor(ctx)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeUnauthorized, appErr.Code)

	actorID, err := repo.mutatingActor(actor.With(ctx, actor.Actor{ID: "alice"}))
	require.NoError(t, err)
	assert.Equal(t, "alice", actorID)
}
