package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cassiomorais/tripcheckout/internal/infrastructure/config"
	"github.com/cassiomorais/tripcheckout/pkg/retry"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	applicationName = "tripcheckout"
	pingTimeout     = 5 * time.Second
)

// NewPool opens the pool used by the staging tier and the trip store. The
// server may still be starting, so opening and pinging is retried with
// retry.DefaultConfig.
func NewPool(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	pc, err := poolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (*pgxpool.Pool, error) {
		return openPool(ctx, pc)
	})
	if err != nil {
		return nil, fmt.Errorf("connect %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Database, err)
	}
	return pool, nil
}

func openPool(ctx context.Context, pc *pgxpool.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.NewWithConfig(ctx, pc.Copy())
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

func poolConfig(cfg *config.DatabaseConfig) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	if cfg.MaxConnections > 0 {
		pc.MaxConns = int32(cfg.MaxConnections)
	}
	if cfg.MinConnections > 0 {
		pc.MinConns = int32(cfg.MinConnections)
	}
	if cfg.ConnMaxLifetime > 0 {
		pc.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	pc.MaxConnIdleTime = 30 * time.Minute
	pc.HealthCheckPeriod = time.Minute
	pc.ConnConfig.RuntimeParams["application_name"] = applicationName
	return pc, nil
}
