package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied in order on startup; every statement is idempotent
var schema = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		name TEXT NOT NULL,
		icon TEXT NOT NULL DEFAULT '',
		color TEXT NOT NULL DEFAULT '',
		keywords JSONB NOT NULL DEFAULT '[]',
		is_default BOOLEAN NOT NULL DEFAULT false,
		position INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_categories_user ON categories (user_id)`,

	`CREATE TABLE IF NOT EXISTS sms_import_logs (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		total_messages INTEGER NOT NULL,
		successful_imports INTEGER NOT NULL,
		duplicates_found INTEGER NOT NULL,
		parsing_errors INTEGER NOT NULL,
		transactions_created JSONB NOT NULL DEFAULT '[]',
		errors JSONB NOT NULL DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sms_import_logs_user ON sms_import_logs (user_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS transactions (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		amount NUMERIC(14, 2) NOT NULL CHECK (amount >= 0),
		direction TEXT NOT NULL CHECK (direction IN ('expense', 'income')),
		category_id TEXT NOT NULL REFERENCES categories (id),
		description TEXT NOT NULL DEFAULT '',
		counterparty TEXT NOT NULL DEFAULT '',
		provider_reference TEXT NOT NULL DEFAULT '',
		message_hash TEXT NOT NULL DEFAULT '',
		balance_after NUMERIC(14, 2),
		transaction_cost NUMERIC(14, 2),
		occurred_at TIMESTAMPTZ NOT NULL,
		source TEXT NOT NULL DEFAULT 'manual',
		parse_confidence DOUBLE PRECISION NOT NULL DEFAULT 1,
		mpesa_details JSONB,
		import_session_id UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_user_hash
		ON transactions (user_id, message_hash) WHERE message_hash <> ''`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_user_reference
		ON transactions (user_id, provider_reference) WHERE provider_reference <> ''`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_user_amount_time
		ON transactions (user_id, amount, occurred_at)`,

	`CREATE TABLE IF NOT EXISTS duplicate_logs (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		import_session_id UUID,
		original_transaction_id UUID,
		message_hash TEXT NOT NULL,
		provider_reference TEXT NOT NULL DEFAULT '',
		signals JSONB NOT NULL DEFAULT '[]',
		confidence DOUBLE PRECISION NOT NULL,
		action_taken TEXT NOT NULL,
		detected_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_duplicate_logs_user ON duplicate_logs (user_id, detected_at)`,
}

// EnsureSchema creates the tables and indexes the SMS pipeline needs
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
