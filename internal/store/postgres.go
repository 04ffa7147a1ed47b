// Package store holds the durable Postgres-backed repositories for
// bookings, transactions, and the outbox.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/traffictacos/reservation-core/internal/config"
)

// NewPostgresPool creates a connection pool sized for high-concurrency
// request load and verifies connectivity before returning.
func NewPostgresPool(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.HealthCheckPeriod = 30 * time.Second
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 15 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping failed: %w", err)
	}

	return pool, nil
}

// HealthCheck pings the pool and returns nil if healthy.
func HealthCheck(ctx context.Context, pool *pgxpool.Pool) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return pool.Ping(pingCtx)
}

// Schema is the DDL this repo expects to exist. It is not applied
// automatically; it is provided for migration tooling to run ahead of
// deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS bookings (
	id            BIGSERIAL PRIMARY KEY,
	user_id       TEXT NOT NULL,
	event_id      BIGINT NOT NULL,
	seat_ids      TEXT[] NOT NULL,
	amount_cents  BIGINT NOT NULL,
	status        TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	confirmed_at  TIMESTAMPTZ,
	expires_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_bookings_status_expires ON bookings (status, expires_at);

CREATE TABLE IF NOT EXISTS transactions (
	id                UUID PRIMARY KEY,
	idempotency_key   TEXT NOT NULL UNIQUE,
	booking_id        BIGINT NOT NULL REFERENCES bookings(id),
	user_id           TEXT NOT NULL,
	amount_cents      BIGINT NOT NULL,
	currency          TEXT NOT NULL,
	status            TEXT NOT NULL,
	gateway_reference TEXT,
	failure_reason    TEXT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS outbox_events (
	id            BIGSERIAL PRIMARY KEY,
	topic         TEXT NOT NULL,
	partition_key TEXT NOT NULL,
	payload       JSONB NOT NULL,
	published_at  TIMESTAMPTZ,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_outbox_unpublished ON outbox_events (id) WHERE published_at IS NULL;
`
