package main

import (
	"context"
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/medsched/scheduler/internal/config"
	"github.com/medsched/scheduler/internal/domain/appointment"
	"github.com/medsched/scheduler/internal/platform/db"
	"github.com/medsched/scheduler/migrations"
)

// store is the configured appointment repository plus its health check.
type store struct {
	driver string
	repo   appointment.Repository
	health echo.HandlerFunc
	close  func()
}

func openStore(ctx context.Context, cfg *config.Config) (*store, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		return &store{
			driver: cfg.StoreDriver,
			repo:   appointment.NewAppointmentRepoPG(pool),
			health: db.HealthHandler(cfg.StoreDriver, pool, func() *db.PoolStats { return db.GetPoolStats(pool) }),
			close:  pool.Close,
		}, nil

	case config.StoreSQLite:
		gdb, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, fmt.Errorf("sqlite handle: %w", err)
		}
		repo, err := appointment.NewAppointmentRepoGorm(gdb)
		if err != nil {
			sqlDB.Close()
			return nil, err
		}
		return &store{
			driver: cfg.StoreDriver,
			repo:   repo,
			health: db.HealthHandler(cfg.StoreDriver, db.PingFunc(sqlDB.PingContext), nil),
			close:  func() { sqlDB.Close() },
		}, nil

	case config.StoreMemory:
		return &store{
			driver: cfg.StoreDriver,
			repo:   appointment.NewMemoryRepository(),
			health: db.HealthHandler(cfg.StoreDriver, nil, nil),
			close:  func() {},
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// migratePostgres applies pending migrations when the store is Postgres.
func migratePostgres(ctx context.Context, cfg *config.Config) (int, error) {
	if cfg.StoreDriver != config.StorePostgres {
		return 0, nil
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, 1, 0)
	if err != nil {
		return 0, err
	}
	defer pool.Close()
	return db.NewMigrator(pool, migrations.FS).Up(ctx)
}
