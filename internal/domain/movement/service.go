package movement

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"inventra/internal/core/apperror"
	"inventra/internal/core/id"
	"inventra/internal/core/tx"
	"inventra/internal/domain"
	"inventra/internal/domain/material"
	"inventra/pkg/logger"
)

// ChangeLogger records entity change history. Implemented by the audit
// service in infrastructure; nil disables history logging.
type ChangeLogger interface {
	LogChange(ctx context.Context, entityType string, entityID id.ID, action string, changes map[string]any) error
}

// Service maintains the stock balance as a running total under the
// movement-type policy. It exclusively owns the write path to
// Movement.StockBalance; no other component sets it.
//
// Each operation runs inside one transaction: the movement row and the
// balance snapshot are persisted atomically or not at all.
type Service struct {
	movements Repository
	materials material.Repository
	txManager tx.Manager
	changes   ChangeLogger
}

// NewService creates a new movement service.
func NewService(movements Repository, materials material.Repository, txManager tx.Manager, changes ChangeLogger) *Service {
	return &Service{
		movements: movements,
		materials: materials,
		txManager: txManager,
		changes:   changes,
	}
}

// AddMovement validates the movement, recomputes the stock balance under
// the movement-type policy and persists both atomically.
//
// The balance read holds a row lock on the material so concurrent
// movements against the same material serialize instead of producing a
// lost update.
func (s *Service) AddMovement(ctx context.Context, m *Movement) error {
	if err := m.Validate(ctx); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		exists, err := s.materials.Exists(ctx, m.MaterialID)
		if err != nil {
			return fmt.Errorf("check material: %w", err)
		}
		if !exists {
			return apperror.NewNotFound(material.EntityName, m.MaterialID.String())
		}

		// Normalize defaults
		if m.MovementDate.IsZero() {
			m.MovementDate = time.Now().UTC()
		}
		if m.Status == "" {
			m.Status = StatusPending
		}
		m.Quantity = NormalizedQuantity(m.Type, m.Quantity)

		if m.TotalAmount == nil && m.UnitPrice != nil {
			total := m.Quantity.Mul(*m.UnitPrice)
			m.TotalAmount = &total
		}

		current, err := s.movements.CurrentBalanceForUpdate(ctx, m.MaterialID)
		if err != nil {
			return fmt.Errorf("read balance: %w", err)
		}

		balance, recognized := NextBalance(current, m.Type, m.Quantity)
		if !recognized {
			logger.Warn(ctx, "unrecognized movement type, balance unchanged",
				"type", m.Type,
				"material_id", m.MaterialID,
			)
		}
		m.StockBalance = balance

		if m.Number == "" {
			number, err := s.movements.NextNumber(ctx, m.MovementDate)
			if err != nil {
				return fmt.Errorf("issue number: %w", err)
			}
			m.Number = number
		}

		if err := s.movements.Create(ctx, m); err != nil {
			return fmt.Errorf("create movement: %w", err)
		}

		if err := s.logChange(ctx, m.ID, "create", map[string]any{
			"type":          string(m.Type),
			"quantity":      m.Quantity.String(),
			"stock_balance": m.StockBalance.String(),
		}); err != nil {
			return err
		}

		logger.Info(ctx, "movement recorded",
			"id", m.ID,
			"number", m.Number,
			"material_id", m.MaterialID,
			"type", m.Type,
			"balance", m.StockBalance,
		)
		return nil
	})
}

// ProcessStockOut records an outbound movement, failing with an
// insufficient-stock error before any write when the current balance does
// not cover the quantity.
//
// This guard exists only here: raw AddMovement and adjustments rely on the
// zero floor alone. The asymmetry is deliberate.
func (s *Service) ProcessStockOut(ctx context.Context, materialID id.ID, quantity decimal.Decimal, unitPrice *decimal.Decimal) (*Movement, error) {
	qty := quantity.Abs()
	m := New(materialID, TypeOut, qty)
	m.UnitPrice = unitPrice

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		current, err := s.movements.CurrentBalanceForUpdate(ctx, materialID)
		if err != nil {
			return fmt.Errorf("read balance: %w", err)
		}

		if current.LessThan(qty) {
			return apperror.NewInsufficientStock(materialID.String(), qty.String(), current.String())
		}

		return s.AddMovement(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// --- Convenience entry points ---
// Each sets the movement type and quantity sign, then delegates.

// StockIn records an inbound movement. A negative quantity is treated as
// its magnitude.
func (s *Service) StockIn(ctx context.Context, materialID id.ID, quantity decimal.Decimal, unitPrice *decimal.Decimal) (*Movement, error) {
	m := New(materialID, TypeIn, quantity.Abs())
	m.UnitPrice = unitPrice
	if err := s.AddMovement(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// StockOut is the guarded outbound entry point.
func (s *Service) StockOut(ctx context.Context, materialID id.ID, quantity decimal.Decimal, unitPrice *decimal.Decimal) (*Movement, error) {
	return s.ProcessStockOut(ctx, materialID, quantity, unitPrice)
}

// Transfer records a location change; the balance stays untouched.
func (s *Service) Transfer(ctx context.Context, materialID id.ID, quantity decimal.Decimal, source, target string) (*Movement, error) {
	m := New(materialID, TypeTransfer, quantity.Abs())
	if source != "" {
		m.SourceLocation = &source
	}
	if target != "" {
		m.TargetLocation = &target
	}
	if err := s.AddMovement(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// Adjust records a signed correction. No availability guard applies; the
// zero floor alone bounds the result.
func (s *Service) Adjust(ctx context.Context, materialID id.ID, quantity decimal.Decimal, comment string) (*Movement, error) {
	m := New(materialID, TypeAdjustment, quantity)
	if comment != "" {
		m.Comment = &comment
	}
	if err := s.AddMovement(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// --- Document lifecycle ---

// Update overwrites mutable fields of a pending or confirmed movement.
// The balance snapshot and status are service-owned and kept from the
// stored record; status changes go through Confirm/Cancel/Complete.
func (s *Service) Update(ctx context.Context, m *Movement) error {
	if err := m.Validate(ctx); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.movements.GetByID(ctx, m.ID)
		if err != nil {
			return err
		}
		if err := existing.CanModify(); err != nil {
			return err
		}

		m.StockBalance = existing.StockBalance
		m.Status = existing.Status
		m.Number = existing.Number

		if err := s.movements.Update(ctx, m); err != nil {
			return fmt.Errorf("update movement: %w", err)
		}
		return nil
	})
}

// Confirm transitions a pending movement to confirmed.
func (s *Service) Confirm(ctx context.Context, movementID id.ID) error {
	return s.transition(ctx, movementID, StatusConfirmed, "confirm")
}

// Cancel transitions a pending movement to cancelled.
func (s *Service) Cancel(ctx context.Context, movementID id.ID) error {
	return s.transition(ctx, movementID, StatusCancelled, "cancel")
}

// Complete transitions a confirmed movement to completed.
func (s *Service) Complete(ctx context.Context, movementID id.ID) error {
	return s.transition(ctx, movementID, StatusCompleted, "complete")
}

func (s *Service) transition(ctx context.Context, movementID id.ID, target Status, action string) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		m, err := s.movements.GetByID(ctx, movementID)
		if err != nil {
			return err
		}

		if !CanTransition(m.Status, target) {
			return apperror.NewInvalidTransition(string(m.Status), string(target))
		}

		from := m.Status
		m.Status = target
		if err := s.movements.Update(ctx, m); err != nil {
			return fmt.Errorf("%s movement: %w", action, err)
		}

		if err := s.logChange(ctx, m.ID, action, map[string]any{
			"status": map[string]any{"old": string(from), "new": string(target)},
		}); err != nil {
			return err
		}

		logger.Info(ctx, "movement status changed",
			"id", m.ID, "from", from, "to", target)
		return nil
	})
}

// Delete soft-deletes a movement.
func (s *Service) Delete(ctx context.Context, movementID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		ok, err := s.movements.SoftDelete(ctx, movementID)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.NewNotFound(EntityName, movementID.String())
		}
		return nil
	})
}

// Restore reverses a soft delete.
func (s *Service) Restore(ctx context.Context, movementID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		ok, err := s.movements.Restore(ctx, movementID)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.NewNotFound(EntityName, movementID.String())
		}
		return nil
	})
}

// --- Queries ---

// GetByID retrieves a movement by ID.
func (s *Service) GetByID(ctx context.Context, movementID id.ID) (*Movement, error) {
	return s.movements.GetByID(ctx, movementID)
}

// CurrentBalance returns the running balance for a material.
func (s *Service) CurrentBalance(ctx context.Context, materialID id.ID) (decimal.Decimal, error) {
	return s.movements.CurrentBalance(ctx, materialID)
}

// History retrieves movements matching the filter, newest first.
func (s *Service) History(ctx context.Context, f HistoryFilter) (domain.Page[*Movement], error) {
	return s.movements.History(ctx, f)
}

func (s *Service) logChange(ctx context.Context, movementID id.ID, action string, changes map[string]any) error {
	if s.changes == nil {
		return nil
	}
	if err := s.changes.LogChange(ctx, EntityName, movementID, action, changes); err != nil {
		return fmt.Errorf("log %s: %w", action, err)
	}
	return nil
}
