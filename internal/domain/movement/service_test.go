package movement

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventra/internal/core/apperror"
	"inventra/internal/core/id"
	"inventra/internal/domain"
	"inventra/internal/domain/material"
)

// fakeTxManager runs the function inline; nested calls just reuse the
// same context, mirroring the real manager's nesting behavior.
type fakeTxManager struct {
	began int
}

func (f *fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	f.began++
	return fn(ctx)
}

// fakeMaterials stubs only what the movement service touches; any other
// call panics on the embedded nil interface.
type fakeMaterials struct {
	material.Repository
	existing map[id.ID]bool
}

func (f *fakeMaterials) Exists(_ context.Context, materialID id.ID) (bool, error) {
	return f.existing[materialID], nil
}

// fakeMovements is an in-memory movement store.
type fakeMovements struct {
	Repository
	items   map[id.ID]*Movement
	order   []id.ID
	numbers int

	failCreate error
}

func newFakeMovements() *fakeMovements {
	return &fakeMovements{items: make(map[id.ID]*Movement)}
}

func (f *fakeMovements) Create(_ context.Context, m *Movement) error {
	if f.failCreate != nil {
		return f.failCreate
	}
	f.items[m.ID] = m
	f.order = append(f.order, m.ID)
	return nil
}

func (f *fakeMovements) GetByID(_ context.Context, movementID id.ID) (*Movement, error) {
	m, ok := f.items[movementID]
	if !ok || m.Deleted {
		return nil, apperror.NewNotFound(EntityName, movementID.String())
	}
	return m, nil
}

func (f *fakeMovements) Update(_ context.Context, m *Movement) error {
	existing, ok := f.items[m.ID]
	if !ok || existing.Deleted {
		return apperror.NewNotFound(EntityName, m.ID.String())
	}
	f.items[m.ID] = m
	return nil
}

func (f *fakeMovements) SoftDelete(_ context.Context, movementID id.ID) (bool, error) {
	m, ok := f.items[movementID]
	if !ok || m.Deleted {
		return false, nil
	}
	m.Deleted = true
	return true, nil
}

func (f *fakeMovements) Restore(_ context.Context, movementID id.ID) (bool, error) {
	m, ok := f.items[movementID]
	if !ok || !m.Deleted {
		return false, nil
	}
	m.Deleted = false
	return true, nil
}

func (f *fakeMovements) CurrentBalance(_ context.Context, materialID id.ID) (decimal.Decimal, error) {
	for i := len(f.order) - 1; i >= 0; i-- {
		m := f.items[f.order[i]]
		if m.MaterialID == materialID && !m.Deleted {
			return m.StockBalance, nil
		}
	}
	return decimal.Zero, nil
}

func (f *fakeMovements) CurrentBalanceForUpdate(ctx context.Context, materialID id.ID) (decimal.Decimal, error) {
	return f.CurrentBalance(ctx, materialID)
}

func (f *fakeMovements) NextNumber(_ context.Context, date time.Time) (string, error) {
	f.numbers++
	return fmt.Sprintf("MV-%s-%04d", date.Format("20060102"), f.numbers), nil
}

func (f *fakeMovements) History(_ context.Context, hf HistoryFilter) (domain.Page[*Movement], error) {
	page := domain.Page[*Movement]{Items: []*Movement{}, PageNumber: 1, PageSize: domain.DefaultPageSize}
	for i := len(f.order) - 1; i >= 0; i-- {
		m := f.items[f.order[i]]
		if m.Deleted && !hf.IncludeDeleted {
			continue
		}
		if hf.MaterialID != nil && m.MaterialID != *hf.MaterialID {
			continue
		}
		page.Items = append(page.Items, m)
	}
	page.TotalCount = int64(len(page.Items))
	return page, nil
}

type loggedChange struct {
	entityType string
	action     string
}

type fakeChanges struct {
	logged []loggedChange
}

func (f *fakeChanges) LogChange(_ context.Context, entityType string, _ id.ID, action string, _ map[string]any) error {
	f.logged = append(f.logged, loggedChange{entityType: entityType, action: action})
	return nil
}

type fixture struct {
	svc        *Service
	movements  *fakeMovements
	materials  *fakeMaterials
	changes    *fakeChanges
	tx         *fakeTxManager
	materialID id.ID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	materialID := id.New()
	movements := newFakeMovements()
	materials := &fakeMaterials{existing: map[id.ID]bool{materialID: true}}
	changes := &fakeChanges{}
	txm := &fakeTxManager{}

	return &fixture{
		svc:        NewService(movements, materials, txm, changes),
		movements:  movements,
		materials:  materials,
		changes:    changes,
		tx:         txm,
		materialID: materialID,
	}
}

func TestAddMovementComputesBalance(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	m := New(fx.materialID, TypeIn, d("100"))
	require.NoError(t, fx.svc.AddMovement(ctx, m))

	assert.True(t, d("100").Equal(m.StockBalance))
	assert.NotEmpty(t, m.Number)
	assert.Equal(t, StatusPending, m.Status)
	require.Len(t, fx.changes.logged, 1)
	assert.Equal(t, "create", fx.changes.logged[0].action)
	assert.Equal(t, EntityName, fx.changes.logged[0].entityType)

	balance, err := fx.svc.CurrentBalance(ctx, fx.materialID)
	require.NoError(t, err)
	assert.True(t, d("100").Equal(balance))
}

func TestAddMovementSequence(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	steps := []struct {
		typ  Type
		qty  string
		want string
	}{
		{TypeIn, "100", "100"},
		{TypeOut, "30", "70"},
		{TypeAdjustment, "-20", "50"},
		{TypeTransfer, "50", "50"},
		{TypeConsumption, "10", "40"},
		{TypeReturn, "5", "45"},
		{TypeProduction, "15", "60"},
	}

	for _, step := range steps {
		m := New(fx.materialID, step.typ, d(step.qty))
		require.NoError(t, fx.svc.AddMovement(ctx, m))
		assert.True(t, d(step.want).Equal(m.StockBalance),
			"%s %s: want balance %s, got %s", step.typ, step.qty, step.want, m.StockBalance)
	}
}

func TestAddMovementUnknownMaterial(t *testing.T) {
	fx := newFixture(t)

	m := New(id.New(), TypeIn, d("10"))
	err := fx.svc.AddMovement(context.Background(), m)

	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
	assert.Empty(t, fx.movements.items)
}

func TestAddMovementUnknownTypeKeepsBalance(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.svc.StockIn(ctx, fx.materialID, d("40"), nil)
	require.NoError(t, err)

	m := New(fx.materialID, Type("teleport"), d("99"))
	require.NoError(t, fx.svc.AddMovement(ctx, m))

	// The movement is persisted but the balance is untouched.
	assert.True(t, d("40").Equal(m.StockBalance))
	assert.Len(t, fx.movements.items, 2)
}

func TestAddMovementDerivesTotalAmount(t *testing.T) {
	fx := newFixture(t)

	price := d("2.50")
	m := New(fx.materialID, TypeIn, d("4"))
	m.UnitPrice = &price

	require.NoError(t, fx.svc.AddMovement(context.Background(), m))

	require.NotNil(t, m.TotalAmount)
	assert.True(t, d("10").Equal(*m.TotalAmount))
}

func TestAddMovementNormalizesSign(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	m := New(fx.materialID, TypeIn, d("-50"))
	require.NoError(t, fx.svc.AddMovement(ctx, m))

	assert.True(t, d("50").Equal(m.Quantity))
	assert.True(t, d("50").Equal(m.StockBalance))
}

func TestStockOutInsufficientStock(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.svc.StockIn(ctx, fx.materialID, d("10"), nil)
	require.NoError(t, err)

	_, err = fx.svc.StockOut(ctx, fx.materialID, d("25"), nil)
	require.Error(t, err)
	assert.True(t, apperror.IsInsufficientStock(err))

	// Nothing was written by the failed attempt.
	assert.Len(t, fx.movements.items, 1)

	balance, err := fx.svc.CurrentBalance(ctx, fx.materialID)
	require.NoError(t, err)
	assert.True(t, d("10").Equal(balance))
}

func TestStockOutSucceedsWhenCovered(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.svc.StockIn(ctx, fx.materialID, d("10"), nil)
	require.NoError(t, err)

	m, err := fx.svc.StockOut(ctx, fx.materialID, d("4"), nil)
	require.NoError(t, err)
	assert.True(t, d("6").Equal(m.StockBalance))
}

func TestAdjustBelowZeroClampsWithoutGuard(t *testing.T) {
	// The availability guard applies to the stock-out entry point only;
	// adjustments rely on the zero floor.
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.svc.StockIn(ctx, fx.materialID, d("10"), nil)
	require.NoError(t, err)

	m, err := fx.svc.Adjust(ctx, fx.materialID, d("-25"), "stocktake correction")
	require.NoError(t, err)
	assert.True(t, m.StockBalance.IsZero())
}

func TestTransferKeepsBalance(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.svc.StockIn(ctx, fx.materialID, d("30"), nil)
	require.NoError(t, err)

	m, err := fx.svc.Transfer(ctx, fx.materialID, d("30"), "WH-1", "WH-2")
	require.NoError(t, err)

	assert.True(t, d("30").Equal(m.StockBalance))
	require.NotNil(t, m.SourceLocation)
	require.NotNil(t, m.TargetLocation)
	assert.Equal(t, "WH-1", *m.SourceLocation)
	assert.Equal(t, "WH-2", *m.TargetLocation)
}

func TestTransitions(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	m, err := fx.svc.StockIn(ctx, fx.materialID, d("5"), nil)
	require.NoError(t, err)

	require.NoError(t, fx.svc.Confirm(ctx, m.ID))
	assert.Equal(t, StatusConfirmed, fx.movements.items[m.ID].Status)

	// Confirmed movements cannot be cancelled.
	err = fx.svc.Cancel(ctx, m.ID)
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInvalidTransition, appErr.Code)

	require.NoError(t, fx.svc.Complete(ctx, m.ID))
	assert.Equal(t, StatusCompleted, fx.movements.items[m.ID].Status)

	// Completed is terminal.
	require.Error(t, fx.svc.Confirm(ctx, m.ID))
}

func TestCancelPending(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	m, err := fx.svc.StockIn(ctx, fx.materialID, d("5"), nil)
	require.NoError(t, err)

	require.NoError(t, fx.svc.Cancel(ctx, m.ID))
	assert.Equal(t, StatusCancelled, fx.movements.items[m.ID].Status)

	// Pending -> completed requires confirmation first; cancelled blocks all.
	require.Error(t, fx.svc.Complete(ctx, m.ID))
}

func TestUpdatePreservesServiceOwnedFields(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	stored, err := fx.svc.StockIn(ctx, fx.materialID, d("20"), nil)
	require.NoError(t, err)

	edit := New(fx.materialID, TypeIn, d("20"))
	edit.ID = stored.ID
	edit.StockBalance = d("9999") // caller-supplied balance must be ignored
	edit.Status = StatusCompleted
	edit.Number = "FORGED-1"
	comment := "supplier delivery"
	edit.Comment = &comment

	require.NoError(t, fx.svc.Update(ctx, edit))

	saved := fx.movements.items[stored.ID]
	assert.True(t, d("20").Equal(saved.StockBalance))
	assert.Equal(t, StatusPending, saved.Status)
	assert.Equal(t, stored.Number, saved.Number)
	require.NotNil(t, saved.Comment)
	assert.Equal(t, "supplier delivery", *saved.Comment)
}

func TestUpdateRejectsTerminalStatus(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	m, err := fx.svc.StockIn(ctx, fx.materialID, d("5"), nil)
	require.NoError(t, err)
	require.NoError(t, fx.svc.Cancel(ctx, m.ID))

	edit := New(fx.materialID, TypeIn, d("5"))
	edit.ID = m.ID
	err = fx.svc.Update(ctx, edit)

	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeBusinessRule, appErr.Code)
}

func TestDeleteAndRestore(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	m, err := fx.svc.StockIn(ctx, fx.materialID, d("5"), nil)
	require.NoError(t, err)

	require.NoError(t, fx.svc.Delete(ctx, m.ID))
	assert.True(t, fx.movements.items[m.ID].Deleted)

	// Absent records surface as not-found.
	err = fx.svc.Delete(ctx, m.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))

	require.NoError(t, fx.svc.Restore(ctx, m.ID))
	assert.False(t, fx.movements.items[m.ID].Deleted)

	err = fx.svc.Restore(ctx, m.ID)
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))
}

func TestAddMovementValidation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	err := fx.svc.AddMovement(ctx, New(fx.materialID, TypeIn, decimal.Zero))
	require.Error(t, err)
	assert.True(t, apperror.IsValidation(err))

	// Validation failures never open a transaction.
	assert.Zero(t, fx.tx.began)
}

func TestAddMovementStorageFailurePropagates(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.movements.failCreate = fmt.Errorf("connection reset")

	m := New(fx.materialID, TypeIn, d("10"))
	err := fx.svc.AddMovement(ctx, m)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	// The failed write left no trace; a later read still sees zero.
	assert.Empty(t, fx.movements.items)
	balance, err := fx.svc.CurrentBalance(ctx, fx.materialID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
	assert.Empty(t, fx.changes.logged)
}

func TestHistoryFiltersByMaterial(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	otherID := id.New()
	fx.materials.existing[otherID] = true

	_, err := fx.svc.StockIn(ctx, fx.materialID, d("5"), nil)
	require.NoError(t, err)
	_, err = fx.svc.StockIn(ctx, otherID, d("7"), nil)
	require.NoError(t, err)

	page, err := fx.svc.History(ctx, HistoryFilter{MaterialID: &fx.materialID})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, fx.materialID, page.Items[0].MaterialID)
}
