package database

import "context"

// Migration statements for the four tables. The unique constraint on
// (indicator_id, ts_utc) is the idempotency key for collector re-runs;
// fgi_hourly is deprecated and kept only for backward read compatibility.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS indicators (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		description TEXT,
		category   TEXT NOT NULL,
		source     TEXT NOT NULL,
		is_active  BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS indicator_data (
		id           BIGSERIAL PRIMARY KEY,
		indicator_id TEXT NOT NULL REFERENCES indicators(id),
		ts_utc       TIMESTAMPTZ NOT NULL,
		value        NUMERIC NOT NULL,
		label        TEXT,
		metadata     JSONB,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT indicator_data_unique_constraint UNIQUE (indicator_id, ts_utc)
	)`,
	`CREATE INDEX IF NOT EXISTS indicator_data_indicator_idx ON indicator_data (indicator_id)`,
	`CREATE INDEX IF NOT EXISTS indicator_data_time_idx ON indicator_data (ts_utc)`,

	`CREATE TABLE IF NOT EXISTS indicator_views (
		id           BIGSERIAL PRIMARY KEY,
		indicator_id TEXT NOT NULL REFERENCES indicators(id),
		viewed_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		user_agent   TEXT,
		ip_hash      TEXT,
		user_id      TEXT,
		session_id   TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS indicator_views_indicator_idx ON indicator_views (indicator_id)`,
	`CREATE INDEX IF NOT EXISTS indicator_views_time_idx ON indicator_views (viewed_at)`,

	// The external auth system owns user identities; this projection exists
	// so view attribution can join a display name. The ledger never selects
	// email.
	`CREATE TABLE IF NOT EXISTS users (
		id    TEXT PRIMARY KEY,
		name  TEXT,
		email TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS fgi_hourly (
		ts_utc TIMESTAMPTZ PRIMARY KEY,
		score  SMALLINT NOT NULL,
		label  TEXT NOT NULL
	)`,
}

// Migrate applies the schema. Statements are idempotent so it runs on every
// startup.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
