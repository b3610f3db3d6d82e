// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AttrDesk Contributors

// Package store provides database plumbing: pool construction and
// schema migrations. Repositories live next to the domain packages
// they serve; this package only hands them a ready pool.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

const (
	connectMaxRetries = 5
	connectRetryBase  = 500 * time.Millisecond
)

// PoolConfig controls pool construction. Zero values fall back to
// pgxpool defaults.
type PoolConfig struct {
	// URL is a postgres:// connection string.
	URL string
	// MaxConns caps the pool size when positive.
	MaxConns int32
}

// Connect builds a pgx pool and verifies it with a retried ping.
// Databases restarting under an orchestrator come up slower than the
// processes pointed at them, so the ping backs off through a few
// fibonacci intervals before giving up. The caller owns the returned
// pool and must Close it.
func Connect(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_FAILED").Wrapf(err, "parse database url")
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").Wrapf(err, "create connection pool")
	}

	backoff := retry.WithMaxRetries(connectMaxRetries, retry.NewFibonacci(connectRetryBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if pingErr := pool.Ping(ctx); pingErr != nil {
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_PING_FAILED").
			With("host", poolCfg.ConnConfig.Host).
			With("database", poolCfg.ConnConfig.Database).
			Wrapf(err, "database did not become reachable")
	}

	return pool, nil
}
