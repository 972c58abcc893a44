package database

import (
	"context"
	"fmt"
)

// schema creates the market data tables and their lookup indexes. Every statement is idempotent.
var schema = []string{
	`CREATE SCHEMA IF NOT EXISTS data`,
	`CREATE TABLE IF NOT EXISTS data.instruments (
		ticker     TEXT PRIMARY KEY,
		exchange   TEXT NOT NULL,
		name       TEXT,
		is_active  BOOLEAN NOT NULL DEFAULT TRUE,
		source     TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_instruments_exchange_active ON data.instruments (exchange, is_active)`,
	`CREATE TABLE IF NOT EXISTS data.bars_daily (
		ticker     TEXT NOT NULL,
		trade_date DATE NOT NULL,
		exchange   TEXT NOT NULL,
		open       DOUBLE PRECISION NOT NULL,
		high       DOUBLE PRECISION NOT NULL,
		low        DOUBLE PRECISION NOT NULL,
		close      DOUBLE PRECISION NOT NULL,
		adj_close  DOUBLE PRECISION,
		volume     DOUBLE PRECISION NOT NULL DEFAULT 0,
		source     TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (ticker, trade_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bars_daily_exchange_date ON data.bars_daily (exchange, trade_date)`,
	`CREATE INDEX IF NOT EXISTS idx_bars_daily_date ON data.bars_daily (trade_date)`,
}

// EnsureSchema creates missing tables and indexes
func (db *DB) EnsureSchema(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	return nil
}
