package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DB struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return &DB{Pool: pool}, nil
}

// Migrate creates the tables if they do not exist yet.
func (d *DB) Migrate(ctx context.Context) error {
	if _, err := d.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (d *DB) Close() {
	d.Pool.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const schema = `
CREATE TABLE IF NOT EXISTS alert_events (
	seq                  BIGSERIAL,
	id                   UUID PRIMARY KEY,
	product_id           TEXT NOT NULL,
	type                 TEXT NOT NULL,
	stock_at_trigger     INTEGER NOT NULL,
	threshold_at_trigger INTEGER NOT NULL,
	threshold_key        TEXT NOT NULL,
	frequency            TEXT NOT NULL,
	created_at           TIMESTAMPTZ NOT NULL,
	status               TEXT NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL,
	dispatched_at        TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS alert_events_product_idx ON alert_events (product_id, created_at);
CREATE INDEX IF NOT EXISTS alert_events_undispatched_idx ON alert_events (frequency, created_at) WHERE dispatched_at IS NULL;

CREATE TABLE IF NOT EXISTS replenishment_plans (
	seq             BIGSERIAL,
	id              UUID PRIMARY KEY,
	product_id      TEXT NOT NULL,
	plan_amount     INTEGER NOT NULL,
	expected_date   TIMESTAMPTZ NOT NULL,
	status          TEXT NOT NULL,
	supplier        TEXT NOT NULL DEFAULT '',
	unit_cost       DOUBLE PRECISION NOT NULL DEFAULT 0,
	estimated_cost  DOUBLE PRECISION NOT NULL DEFAULT 0,
	priority        TEXT NOT NULL,
	source          TEXT NOT NULL,
	stock_at_create INTEGER NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	seq        BIGSERIAL,
	id         UUID PRIMARY KEY,
	channel    TEXT NOT NULL,
	recipient  TEXT NOT NULL,
	subject    TEXT NOT NULL,
	body       TEXT NOT NULL,
	event_ids  UUID[] NOT NULL,
	digest     BOOLEAN NOT NULL,
	status     TEXT NOT NULL,
	last_error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);
`
