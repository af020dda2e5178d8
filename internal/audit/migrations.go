package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the schema version this build writes.
const ExpectedSchemaVersion = 3

// Migration is one schema step.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Audit records",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS audit_records (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					run_id TEXT NOT NULL,
					document_id TEXT NOT NULL,
					source_path TEXT NOT NULL,
					target_path TEXT,
					category TEXT NOT NULL,
					provenance TEXT NOT NULL,
					rule_name TEXT,
					confidence REAL NOT NULL DEFAULT 0,
					action TEXT NOT NULL,
					target_template TEXT,
					collision TEXT,
					outcome TEXT NOT NULL,
					error TEXT,
					fields TEXT NOT NULL DEFAULT '[]',
					recorded_at TEXT NOT NULL
				)`,
				`CREATE INDEX idx_audit_run ON audit_records(run_id)`,
				`CREATE INDEX idx_audit_document ON audit_records(document_id)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Reject updates and deletes of audit records",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TRIGGER audit_records_no_update BEFORE UPDATE ON audit_records
				BEGIN SELECT RAISE(ABORT, 'audit records are append-only'); END`,
				`CREATE TRIGGER audit_records_no_delete BEFORE DELETE ON audit_records
				BEGIN SELECT RAISE(ABORT, 'audit records are append-only'); END`,
			})
		},
	},
	{
		Version:     3,
		Description: "Notes on filing side effects",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`ALTER TABLE audit_records ADD COLUMN note TEXT`,
			})
		},
	},
}

// Migrate brings the database to ExpectedSchemaVersion.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	var currentVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		slog.Debug("Applied audit migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion); err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}
	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("audit schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}
	return nil
}
