package postgres

import (
	"context"
	"fmt"

	"inventra/pkg/logger"
)

// RepoFactory constructs an entity repository bound to the given
// Unit of Work.
type RepoFactory func(u *UnitOfWork) any

// Registry maps entity names to repository factories. It is populated
// once at startup; after that it is read-only and safe to share.
//
// Dispatch by registered name keeps repository lookup explicit and
// verifiable at wire-up time instead of discovering types at runtime.
type Registry struct {
	txm       *TxManager
	factories map[string]RepoFactory
}

// NewRegistry creates an empty repository registry.
func NewRegistry(txm *TxManager) *Registry {
	return &Registry{
		txm:       txm,
		factories: make(map[string]RepoFactory),
	}
}

// Register adds a factory under the entity name. Registering the same
// name twice is a wiring bug and panics immediately.
func (r *Registry) Register(entityName string, factory RepoFactory) {
	if _, exists := r.factories[entityName]; exists {
		panic(fmt.Sprintf("repository factory already registered for %q", entityName))
	}
	r.factories[entityName] = factory
}

// NewUnitOfWork creates a Unit of Work over this registry.
func (r *Registry) NewUnitOfWork() *UnitOfWork {
	return &UnitOfWork{
		txm:      r.txm,
		registry: r,
		repos:    make(map[string]any),
	}
}

type stagedStmt struct {
	sql  string
	args []any
}

// UnitOfWork coordinates repositories over a single transaction.
// Repositories obtained through it are cached: asking for the same
// entity twice returns the same instance.
//
// A UnitOfWork is intended for one request flow and is NOT safe for
// concurrent use. Create one per unit of business work and Close it
// when done; Close is idempotent and rolls back an uncommitted
// transaction.
type UnitOfWork struct {
	txm      *TxManager
	registry *Registry

	repos  map[string]any
	staged []stagedStmt

	txCtx  context.Context // non-nil while a transaction is open
	closed bool
}

// Repo returns the cached repository for the entity name, constructing
// it on first access.
func (u *UnitOfWork) Repo(entityName string) (any, error) {
	if u.closed {
		return nil, fmt.Errorf("unit of work is closed")
	}

	if repo, ok := u.repos[entityName]; ok {
		return repo, nil
	}

	factory, ok := u.registry.factories[entityName]
	if !ok {
		return nil, fmt.Errorf("no repository registered for %q", entityName)
	}

	repo := factory(u)
	u.repos[entityName] = repo
	return repo, nil
}

// RepoFor is the typed accessor over UnitOfWork.Repo.
func RepoFor[R any](u *UnitOfWork, entityName string) (R, error) {
	var zero R

	repo, err := u.Repo(entityName)
	if err != nil {
		return zero, err
	}

	typed, ok := repo.(R)
	if !ok {
		return zero, fmt.Errorf("repository for %q is %T, not the requested type", entityName, repo)
	}
	return typed, nil
}

// Begin opens a transaction and returns the context carrying it.
// Pass the returned context to every repository call in this unit.
// Beginning twice without a Commit or Rollback is an error.
func (u *UnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	if u.closed {
		return ctx, fmt.Errorf("unit of work is closed")
	}
	if u.txCtx != nil {
		return u.txCtx, fmt.Errorf("transaction already started")
	}

	txCtx, err := u.txm.Begin(ctx, DefaultTxOptions())
	if err != nil {
		return ctx, err
	}

	u.txCtx = txCtx
	return txCtx, nil
}

// Commit flushes staged writes and commits the open transaction.
func (u *UnitOfWork) Commit(ctx context.Context) error {
	if u.txCtx == nil {
		return fmt.Errorf("no transaction to commit")
	}

	if _, err := u.flush(u.txCtx); err != nil {
		rbErr := u.Rollback(ctx)
		if rbErr != nil {
			logger.Error(ctx, "rollback after failed flush", "error", rbErr)
		}
		return err
	}

	err := u.txm.Commit(u.txCtx)
	u.txCtx = nil
	return err
}

// Rollback aborts the open transaction and discards staged writes.
func (u *UnitOfWork) Rollback(ctx context.Context) error {
	if u.txCtx == nil {
		return nil
	}

	err := u.txm.Rollback(u.txCtx)
	u.txCtx = nil
	u.staged = nil
	return err
}

// SaveChanges executes the staged writes in the order they were issued.
// Inside an open transaction they run on it and remain uncommitted until
// Commit; without one they run in their own short transaction. Returns
// the total number of affected rows.
func (u *UnitOfWork) SaveChanges(ctx context.Context) (int64, error) {
	if u.closed {
		return 0, fmt.Errorf("unit of work is closed")
	}

	if u.txCtx != nil {
		return u.flush(u.txCtx)
	}

	var affected int64
	err := u.txm.RunInTransaction(ctx, func(txCtx context.Context) error {
		n, err := u.flush(txCtx)
		affected = n
		return err
	})
	return affected, err
}

// Close releases the unit. An open transaction is rolled back.
// Safe to call multiple times.
func (u *UnitOfWork) Close(ctx context.Context) error {
	if u.closed {
		return nil
	}
	u.closed = true

	if u.txCtx != nil {
		if err := u.Rollback(ctx); err != nil {
			return err
		}
	}

	u.staged = nil
	u.repos = nil
	return nil
}

// stage queues a statement for the next SaveChanges.
func (u *UnitOfWork) stage(sql string, args []any) {
	u.staged = append(u.staged, stagedStmt{sql: sql, args: args})
}

// StagedCount reports how many writes are queued but not yet flushed.
func (u *UnitOfWork) StagedCount() int {
	return len(u.staged)
}

func (u *UnitOfWork) flush(ctx context.Context) (int64, error) {
	if len(u.staged) == 0 {
		return 0, nil
	}

	querier := u.txm.GetQuerier(ctx)

	var affected int64
	for i, stmt := range u.staged {
		result, err := querier.Exec(ctx, stmt.sql, stmt.args...)
		if err != nil {
			return affected, fmt.Errorf("staged statement %d: %w", i, err)
		}
		affected += result.RowsAffected()
	}

	u.staged = nil
	return affected, nil
}
