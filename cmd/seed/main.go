// Command seed loads demo materials and opening stock into the database.
package main

import (
	"context"
	"os"

	"github.com/shopspring/decimal"

	"inventra/internal/config"
	"inventra/internal/core/actor"
	"inventra/internal/domain/material"
	"inventra/internal/domain/movement"
	"inventra/internal/infrastructure/storage/postgres"
	"inventra/pkg/logger"
)

type seedRow struct {
	code    string
	name    string
	unit    string
	price   string
	opening string
}

var seedData = []seedRow{
	{"RM-0001", "Steel sheet 2mm", "kg", "3.40", "500"},
	{"RM-0002", "Copper wire 1.5mm", "m", "0.85", "1200"},
	{"RM-0003", "Hex bolt M8x40", "pcs", "0.12", "10000"},
	{"RM-0004", "Hydraulic oil HLP46", "l", "4.10", "200"},
	{"RM-0005", "Paint RAL9005", "l", "11.90", "60"},
}

func main() {
	ctx := context.Background()
	ctx = actor.With(ctx, actor.Actor{ID: "seed", Name: "Seed Loader"})

	if err := run(ctx); err != nil {
		logger.Error(ctx, "seed failed", "error", err)
		os.Exit(1)
	}

	logger.Info(ctx, "seed complete", "materials", len(seedData))
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.Database.DSN))
	if err != nil {
		return err
	}
	defer pool.Close()

	txm := postgres.NewTxManager(pool)

	registry := postgres.NewRegistry(txm)
	postgres.RegisterMaterialRepo(registry, txm)
	postgres.RegisterMovementRepo(registry, txm)

	uow := registry.NewUnitOfWork()
	defer uow.Close(ctx)

	materials, err := postgres.RepoFor[material.Repository](uow, material.EntityName)
	if err != nil {
		return err
	}
	movements, err := postgres.RepoFor[movement.Repository](uow, movement.EntityName)
	if err != nil {
		return err
	}

	txCtx, err := uow.Begin(ctx)
	if err != nil {
		return err
	}

	items := make([]*material.Material, 0, len(seedData))
	for _, row := range seedData {
		price := decimal.RequireFromString(row.price)

		m := material.New(row.code, row.name, row.unit)
		m.UnitPrice = &price
		items = append(items, m)
	}

	// Bulk insert goes over the COPY protocol inside the transaction.
	if err := materials.CreateMany(txCtx, items); err != nil {
		uow.Rollback(ctx)
		return err
	}

	movementSvc := movement.NewService(movements, materials, txm, nil)
	for i, row := range seedData {
		opening := decimal.RequireFromString(row.opening)
		if _, err := movementSvc.StockIn(txCtx, items[i].ID, opening, items[i].UnitPrice); err != nil {
			uow.Rollback(ctx)
			return err
		}
	}

	return uow.Commit(ctx)
}
