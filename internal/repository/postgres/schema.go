package postgres

import (
	"context"
	"fmt"
)

// schema creates the tables owned by the replenishment engine. Stock,
// sales and purchase order history stay in the ERP tables
// (daily_stock_data, products, brands, po_snapshots).
var schema = []string{
	`CREATE TABLE IF NOT EXISTS replenishment_runs (
		run_id      UUID PRIMARY KEY,
		kind        TEXT NOT NULL,
		status      TEXT NOT NULL,
		started_at  TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ,
		error_count INT NOT NULL DEFAULT 0,
		artifacts   JSONB NOT NULL DEFAULT '{}'::jsonb,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS replenishment_runs_kind_started_idx
		ON replenishment_runs (kind, started_at DESC)`,
	`CREATE TABLE IF NOT EXISTS purchase_order_drafts (
		id               BIGSERIAL PRIMARY KEY,
		sku              TEXT NOT NULL,
		quantity_on_hand DOUBLE PRECISION NOT NULL,
		unit_cost        NUMERIC(18,4) NOT NULL,
		status           TEXT NOT NULL DEFAULT 'draft',
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS seasonal_pre_orders (
		run_id               UUID NOT NULL,
		event_name           TEXT NOT NULL,
		sku                  TEXT NOT NULL,
		category             TEXT NOT NULL DEFAULT '',
		quantity             DOUBLE PRECISION NOT NULL,
		target_delivery_date DATE NOT NULL,
		created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (run_id, sku)
	)`,
}

// Migrate applies the engine schema. Every statement is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
