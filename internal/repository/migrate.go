package repository

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS templates (
		id VARCHAR(36) PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		fingerprint TEXT NOT NULL,
		regions TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS templates_created_at_idx ON templates (created_at)`,
	`CREATE TABLE IF NOT EXISTS processing_runs (
		id VARCHAR(36) PRIMARY KEY,
		document_id TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		mode TEXT NOT NULL,
		quality TEXT NOT NULL,
		engine TEXT NOT NULL DEFAULT '',
		refiner TEXT NOT NULL DEFAULT '',
		template_id TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL DEFAULT '',
		confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
		text_length INTEGER NOT NULL DEFAULT 0,
		element_count INTEGER NOT NULL DEFAULT 0,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		started_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS processing_runs_started_at_idx ON processing_runs (started_at)`,
	`CREATE INDEX IF NOT EXISTS processing_runs_document_id_idx ON processing_runs (document_id)`,
}

// Migrate creates the tables when missing. Statements are portable across Postgres and SQLite.
func (d *DB) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := d.SQL.ExecContext(ctx, stmt); err != nil {
			d.logger.Error("migration failed", "step", i, "error", err)
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	d.logger.Info("database schema up to date", "statements", len(schema))
	return nil
}
