package database

import (
	"context"
	"fmt"
)

// schema holds the idempotent DDL for the catalog and the event
// outbox. Products are unique per (collection, asin): the same catalog
// code in two collections is two independent products. Price points
// are append-only and cascade away with their product or collection.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS collections (
		id         BIGSERIAL PRIMARY KEY,
		url        TEXT NOT NULL UNIQUE,
		name       TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id            BIGSERIAL PRIMARY KEY,
		collection_id BIGINT NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
		asin          TEXT NOT NULL,
		name          TEXT NOT NULL,
		url           TEXT NOT NULL,
		image         TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (collection_id, asin)
	)`,
	`CREATE TABLE IF NOT EXISTS price_points (
		id            BIGSERIAL PRIMARY KEY,
		product_id    BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		collection_id BIGINT NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
		price         DOUBLE PRECISION,
		observed_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_price_points_product
		ON price_points (product_id, observed_at)`,
	`CREATE TABLE IF NOT EXISTS outbox_event (
		id             UUID PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id   TEXT NOT NULL,
		event_type     TEXT NOT NULL,
		payload        JSONB NOT NULL,
		target_stream  TEXT NOT NULL,
		status         TEXT NOT NULL,
		retry_count    INT NOT NULL DEFAULT 0,
		error_message  TEXT,
		created_at     TIMESTAMPTZ NOT NULL,
		processed_at   TIMESTAMPTZ,
		next_retry_at  TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outbox_event_pending
		ON outbox_event (status, next_retry_at)`,
}

// Migrate applies the schema. Safe to run on every startup.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
