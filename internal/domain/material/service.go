package material

import (
	"context"
	"fmt"

	"inventra/internal/core/apperror"
	"inventra/internal/core/id"
	"inventra/internal/core/tx"
	"inventra/internal/domain"
	"inventra/pkg/logger"
)

// Service provides business logic for the material catalog.
type Service struct {
	repo      Repository
	txManager tx.Manager
}

// NewService creates a new material service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
	}
}

// Create creates a new material after uniqueness checks.
func (s *Service) Create(ctx context.Context, m *Material) error {
	if err := m.Validate(ctx); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		exists, err := s.repo.ExistsByCode(ctx, m.Code)
		if err != nil {
			return fmt.Errorf("check code: %w", err)
		}
		if exists {
			return apperror.NewDuplicate(EntityName, "code", m.Code)
		}

		if err := s.repo.Create(ctx, m); err != nil {
			return fmt.Errorf("create material: %w", err)
		}
		return nil
	})
}

// GetByID retrieves a material by ID.
func (s *Service) GetByID(ctx context.Context, materialID id.ID) (*Material, error) {
	return s.repo.GetByID(ctx, materialID)
}

// GetByCode retrieves a material by code.
func (s *Service) GetByCode(ctx context.Context, code string) (*Material, error) {
	return s.repo.GetByCode(ctx, code)
}

// Update overwrites mutable fields of an existing material.
func (s *Service) Update(ctx context.Context, m *Material) error {
	if err := m.Validate(ctx); err != nil {
		return err
	}

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetByCode(ctx, m.Code)
		if err == nil && existing.ID != m.ID {
			return apperror.NewDuplicate(EntityName, "code", m.Code)
		}
		if err != nil && !apperror.IsNotFound(err) {
			return err
		}

		if err := s.repo.Update(ctx, m); err != nil {
			return fmt.Errorf("update material: %w", err)
		}
		return nil
	})
}

// Delete soft-deletes a material. Absence is reported as not-found so the
// HTTP layer can distinguish it from success.
func (s *Service) Delete(ctx context.Context, materialID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		ok, err := s.repo.SoftDelete(ctx, materialID)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.NewNotFound(EntityName, materialID.String())
		}
		logger.Info(ctx, "material deleted", "id", materialID)
		return nil
	})
}

// Restore reverses a soft delete.
func (s *Service) Restore(ctx context.Context, materialID id.ID) error {
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		ok, err := s.repo.Restore(ctx, materialID)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.NewNotFound(EntityName, materialID.String())
		}
		logger.Info(ctx, "material restored", "id", materialID)
		return nil
	})
}

// List retrieves materials with filtering and pagination.
func (s *Service) List(ctx context.Context, f domain.ListFilter) (domain.Page[*Material], error) {
	if len(f.SearchFields) == 0 {
		f.SearchFields = SearchFields
	}
	return s.repo.List(ctx, f)
}

// Search performs a contains-search over the default material fields.
func (s *Service) Search(ctx context.Context, term string) ([]*Material, error) {
	return s.repo.Search(ctx, term, SearchFields)
}
