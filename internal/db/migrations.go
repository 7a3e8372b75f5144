package db

import (
	"database/sql"
	"fmt"
)

// Base schema - link ids are Snowflake IDs (no AUTOINCREMENT)
const baseSchema = `
CREATE TABLE IF NOT EXISTS links (
  id INTEGER PRIMARY KEY,
  title TEXT NOT NULL,
  url TEXT NOT NULL,
  subtitle TEXT,
  icon_name TEXT,
  icon_type TEXT NOT NULL DEFAULT 'none',
  position INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_links_position ON links(position, created_at);

CREATE TABLE IF NOT EXISTS settings (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
`

func Migrate(db *sql.DB) error {
	if _, err := db.Exec(baseSchema); err != nil {
		return fmt.Errorf("migrate base schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// columnMigration adds a column to a table when it is missing.
type columnMigration struct {
	table  string
	column string
	ddl    string
}

var columnMigrations = []columnMigration{
	// Migration 1: icon fetch timestamp, drives stale favicon backfill
	{table: "links", column: "icon_updated_at", ddl: `ALTER TABLE links ADD COLUMN icon_updated_at TEXT`},
}

func runMigrations(db *sql.DB) error {
	for _, m := range columnMigrations {
		var count int
		err := db.QueryRow(
			`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
			m.table, m.column,
		).Scan(&count)
		if err != nil {
			return fmt.Errorf("check %s.%s column: %w", m.table, m.column, err)
		}
		if count > 0 {
			continue
		}
		if _, err := db.Exec(m.ddl); err != nil {
			return fmt.Errorf("add %s.%s column: %w", m.table, m.column, err)
		}
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_links_icon_type ON links(icon_type)`); err != nil {
		return fmt.Errorf("create idx_links_icon_type: %w", err)
	}

	return nil
}
