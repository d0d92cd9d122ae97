package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"inventra/internal/config"
	"inventra/internal/domain/material"
	"inventra/internal/domain/movement"
	v1 "inventra/internal/infrastructure/http/v1"
	"inventra/internal/infrastructure/http/v1/handlers"
	"inventra/internal/infrastructure/storage/postgres"
	"inventra/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		logger.Default().Errorw("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: !cfg.IsProduction(),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, log)

	poolCfg := postgres.DefaultPoolConfig(cfg.Database.DSN)
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.MinConns = cfg.Database.MinConns
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	txm := postgres.NewTxManager(pool)

	registry := postgres.NewRegistry(txm)
	postgres.RegisterMaterialRepo(registry, txm)
	postgres.RegisterMovementRepo(registry, txm)

	materialRepo := postgres.NewMaterialRepo(txm)
	movementRepo := postgres.NewMovementRepo(txm)

	changes, err := postgres.NewChangeHistory(txm)
	if err != nil {
		return err
	}
	defer changes.Close()

	materialSvc := material.NewService(materialRepo, txm)
	movementSvc := movement.NewService(movementRepo, materialRepo, txm, changes)

	router := v1.NewRouter(v1.RouterConfig{
		JWTSecret: cfg.Auth.JWTSecret,
		Release:   cfg.IsProduction(),
		Materials: handlers.NewMaterialHandler(materialSvc),
		Movements: handlers.NewMovementHandler(movementSvc),
	})

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info(ctx, "shutdown complete")
	return nil
}
