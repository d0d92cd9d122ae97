package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventra/internal/core/actor"
	"inventra/internal/domain/material"
	"inventra/internal/domain/movement"
)

func newTestRegistry() *Registry {
	reg := NewRegistry(nil)
	RegisterMaterialRepo(reg, nil)
	RegisterMovementRepo(reg, nil)
	return reg
}

func TestRegistryRejectsDuplicateRegistration(t *testing.T) {
	reg := newTestRegistry()

	assert.Panics(t, func() {
		reg.Register(material.EntityName, func(u *UnitOfWork) any { return nil })
	})
}

func TestUnitOfWorkCachesRepositories(t *testing.T) {
	uow := newTestRegistry().NewUnitOfWork()

	first, err := RepoFor[material.Repository](uow, material.EntityName)
	require.NoError(t, err)
	second, err := RepoFor[material.Repository](uow, material.EntityName)
	require.NoError(t, err)

	// Same instance, not a new construction per call.
	assert.Same(t, first.(*MaterialRepo), second.(*MaterialRepo))

	movements, err := RepoFor[movement.Repository](uow, movement.EntityName)
	require.NoError(t, err)
	assert.NotNil(t, movements)
}

func TestUnitOfWorkUnknownEntity(t *testing.T) {
	uow := newTestRegistry().NewUnitOfWork()

	_, err := uow.Repo("warehouse")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no repository registered")
}

func TestRepoForTypeMismatch(t *testing.T) {
	uow := newTestRegistry().NewUnitOfWork()

	_, err := RepoFor[movement.Repository](uow, material.EntityName)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not the requested type")
}

func TestUnitOfWorkStagesInIssueOrder(t *testing.T) {
	uow := newTestRegistry().NewUnitOfWork()

	uow.stage("INSERT 1", nil)
	uow.stage("UPDATE 2", []any{42})
	uow.stage("INSERT 3", nil)

	require.Equal(t, 3, uow.StagedCount())
	assert.Equal(t, "INSERT 1", uow.staged[0].sql)
	assert.Equal(t, "UPDATE 2", uow.staged[1].sql)
	assert.Equal(t, []any{42}, uow.staged[1].args)
	assert.Equal(t, "INSERT 3", uow.staged[2].sql)
}

func TestUnitOfWorkCloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	uow := newTestRegistry().NewUnitOfWork()

	uow.stage("INSERT 1", nil)

	require.NoError(t, uow.Close(ctx))
	require.NoError(t, uow.Close(ctx))
	require.NoError(t, uow.Close(ctx))

	assert.Zero(t, uow.StagedCount())

	// A closed unit refuses further work.
	_, err := uow.Repo(material.EntityName)
	require.Error(t, err)

	_, err = uow.SaveChanges(ctx)
	require.Error(t, err)

	_, err = uow.Begin(ctx)
	require.Error(t, err)
}

func TestDeferredWritesRequireBinding(t *testing.T) {
	// A repository constructed directly has no unit of work to stage on.
	repo := NewMaterialRepo(nil)

	err := repo.CreateDeferred(context.Background(), material.New("RM-1", "Steel", "kg"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not bound to a unit of work")
}

func TestDeferredCreateStagesStatement(t *testing.T) {
	uow := newTestRegistry().NewUnitOfWork()

	repo, err := RepoFor[material.Repository](uow, material.EntityName)
	require.NoError(t, err)

	ctx := actor.With(context.Background(), actor.Actor{ID: "alice"})
	m := material.New("RM-1", "Steel", "kg")
	require.NoError(t, repo.(*MaterialRepo).CreateDeferred(ctx, m))

	require.Equal(t, 1, uow.StagedCount())
	assert.Contains(t, uow.staged[0].sql, "INSERT INTO materials")

	// The create stamp was applied at staging time.
	assert.Equal(t, "alice", m.CreatedBy)
	assert.False(t, m.CreatedAt.IsZero())
}
