package db

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// migrations is an ordered list of SQL statements to run.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS properties (
		id          TEXT    PRIMARY KEY,
		name        TEXT    NOT NULL,
		address     TEXT    NOT NULL,
		owner_email TEXT    NOT NULL DEFAULT '',
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS blocked_times (
		id          TEXT     PRIMARY KEY,
		property_id TEXT     NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
		start_at    DATETIME NOT NULL,
		end_at      DATETIME NOT NULL,
		rrule       TEXT     NOT NULL DEFAULT '',
		note        TEXT     NOT NULL DEFAULT '',
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
		CHECK (end_at > start_at)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_blocked_times_property ON blocked_times(property_id)`,
	`CREATE TABLE IF NOT EXISTS showings (
		id              TEXT     PRIMARY KEY,
		property_id     TEXT     NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
		client_name     TEXT     NOT NULL,
		client_phone    TEXT     NOT NULL DEFAULT '',
		client_email    TEXT     NOT NULL DEFAULT '',
		scheduled_at    DATETIME NOT NULL,
		status          TEXT     NOT NULL DEFAULT 'pending'
		                CHECK (status IN ('pending', 'approved', 'declined')),
		lockbox_code    TEXT,
		code_expires_at DATETIME,
		created_at      DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at      DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_showings_property ON showings(property_id)`,
	`CREATE TABLE IF NOT EXISTS feedback (
		id         TEXT    PRIMARY KEY,
		showing_id TEXT    NOT NULL REFERENCES showings(id) ON DELETE CASCADE,
		rating     INTEGER NOT NULL CHECK (rating >= 1 AND rating <= 5),
		comment    TEXT    NOT NULL,
		author     TEXT    NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS tours (
		id         TEXT    PRIMARY KEY,
		buyer_name TEXT    NOT NULL DEFAULT '',
		created_by TEXT    NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS tour_stops (
		tour_id      TEXT     NOT NULL REFERENCES tours(id) ON DELETE CASCADE,
		position     INTEGER  NOT NULL,
		showing_id   TEXT     NOT NULL REFERENCES showings(id) ON DELETE CASCADE,
		scheduled_at DATETIME NOT NULL,
		PRIMARY KEY (tour_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS auth_tokens (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		token      TEXT     NOT NULL UNIQUE,
		email      TEXT     NOT NULL,
		expires_at DATETIME NOT NULL,
		used       INTEGER  DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id         TEXT     PRIMARY KEY,
		email      TEXT     NOT NULL,
		expires_at DATETIME NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS passkey_credentials (
		id              TEXT    PRIMARY KEY,
		email           TEXT    NOT NULL,
		name            TEXT    NOT NULL DEFAULT '',
		credential_json TEXT    NOT NULL,
		created_at      DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS api_keys (
		id           INTEGER  PRIMARY KEY AUTOINCREMENT,
		name         TEXT     NOT NULL,
		key_prefix   TEXT     NOT NULL,
		key_hash     TEXT     NOT NULL UNIQUE,
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_used_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS authorized_users (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		email      TEXT    NOT NULL UNIQUE,
		name       TEXT    NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
}

// migrate runs all migrations in order.
func migrate(db *sql.DB) error {
	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}

	// Column additions (idempotent, checks if column exists first)
	columnMigrations := []struct {
		table, column, definition string
	}{
		{"api_keys", "email", "TEXT NOT NULL DEFAULT ''"},
		{"authorized_users", "role", "TEXT NOT NULL DEFAULT 'agent'"},
		{"showings", "reminded_at", "DATETIME"},
		{"showings", "requested_by", "TEXT NOT NULL DEFAULT ''"},
	}

	for _, cm := range columnMigrations {
		if err := addColumnIfNotExists(db, cm.table, cm.column, cm.definition); err != nil {
			return fmt.Errorf("adding %s.%s: %w", cm.table, cm.column, err)
		}
	}

	return nil
}

// addColumnIfNotExists adds a column to a table if it doesn't already exist.
func addColumnIfNotExists(db *sql.DB, table, column, definition string) error {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("checking table info: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			slog.Warn("closing rows", "err", cerr)
		}
	}()

	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return fmt.Errorf("scanning column info: %w", err)
		}
		if name == column {
			return nil // column already exists
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating columns: %w", err)
	}

	_, err = db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, definition))
	return err
}
