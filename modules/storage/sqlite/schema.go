package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// schemaStatements are executed in order to create the database schema.
// All use IF NOT EXISTS for idempotent re-application.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS pending_actions (
		id               TEXT PRIMARY KEY,
		tool_name        TEXT NOT NULL,
		arguments        TEXT NOT NULL DEFAULT '{}',
		session_id       TEXT NOT NULL,
		user_id          TEXT NOT NULL,
		status           TEXT NOT NULL,
		created_at       TEXT NOT NULL,
		expires_at       TEXT NOT NULL,
		resolved_at      TEXT NOT NULL DEFAULT '',
		execution_result TEXT NOT NULL DEFAULT '',
		failure_reason   TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE INDEX IF NOT EXISTS idx_pending_status ON pending_actions(status, expires_at)`,

	`CREATE INDEX IF NOT EXISTS idx_pending_user ON pending_actions(user_id, status, created_at)`,

	`CREATE TABLE IF NOT EXISTS policy_overrides (
		user_id    TEXT NOT NULL,
		tool_name  TEXT NOT NULL,
		tier       TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (user_id, tool_name)
	)`,

	`CREATE TABLE IF NOT EXISTS audit_log (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		pending_action_id TEXT NOT NULL,
		user_id           TEXT NOT NULL,
		tool_name         TEXT NOT NULL,
		from_status       TEXT NOT NULL DEFAULT '',
		to_status         TEXT NOT NULL,
		actor             TEXT NOT NULL,
		detail            TEXT NOT NULL DEFAULT '',
		at                TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_audit_pending ON audit_log(pending_action_id)`,

	`CREATE INDEX IF NOT EXISTS idx_audit_user ON audit_log(user_id, at)`,

	`CREATE TABLE IF NOT EXISTS messages (
		session_id TEXT    NOT NULL,
		seq        INTEGER NOT NULL,
		kind       TEXT    NOT NULL,
		content    TEXT    NOT NULL DEFAULT '',
		created_at TEXT    NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
		PRIMARY KEY (session_id, seq)
	)`,

	`CREATE TABLE IF NOT EXISTS reminders (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL,
		text       TEXT NOT NULL,
		due_at     TEXT NOT NULL,
		fired      INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders(fired, due_at)`,
}

// migrate creates or updates the database schema to the latest version.
// All DDL uses IF NOT EXISTS, making migration idempotent.
func migrate(db *sql.DB) error {
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}

	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("sqlite: record schema version: %w", err)
	}

	return nil
}
