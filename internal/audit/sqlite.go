package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Veraticus/paperflow/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteStore is the append-only audit table.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the audit database at path and
// migrates it.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("audit database path cannot be empty")
	}

	dsn := path
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection also keeps an in-memory database alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Record appends one audit record.
func (s *SQLiteStore) Record(ctx context.Context, r model.AuditRecord) error {
	fields, err := json.Marshal(r.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode fields: %w", err)
	}
	if r.Fields == nil {
		fields = []byte("[]")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_records (
			run_id, document_id, source_path, target_path,
			category, provenance, rule_name, confidence,
			action, target_template, collision,
			outcome, error, note, fields, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.DocumentID, r.SourcePath, r.TargetPath,
		r.Classification.Category, string(r.Classification.Provenance), r.Classification.RuleName, r.Classification.Confidence,
		string(r.Action.Kind), r.Action.TargetTemplate, string(r.Action.Collision),
		string(r.Outcome), r.Error, r.Note, string(fields), r.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit record for %s: %w", r.DocumentID, err)
	}
	return nil
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	RunID      string
	DocumentID string
	Outcome    model.Outcome
	Limit      int
}

// List returns matching records, oldest first.
func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]model.AuditRecord, error) {
	query := `
		SELECT id, run_id, document_id, source_path, COALESCE(target_path, ''),
			category, provenance, COALESCE(rule_name, ''), confidence,
			action, COALESCE(target_template, ''), COALESCE(collision, ''),
			outcome, COALESCE(error, ''), COALESCE(note, ''), fields, recorded_at
		FROM audit_records`

	var (
		where []string
		args  []any
	)
	if f.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, f.RunID)
	}
	if f.DocumentID != "" {
		where = append(where, "document_id = ?")
		args = append(args, f.DocumentID)
	}
	if f.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, string(f.Outcome))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.AuditRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit records: %w", err)
	}
	return records, nil
}

// LastRunID returns the run that wrote the most recent record, or "".
func (s *SQLiteStore) LastRunID(ctx context.Context) (string, error) {
	var runID string
	err := s.db.QueryRowContext(ctx, `SELECT run_id FROM audit_records ORDER BY id DESC LIMIT 1`).Scan(&runID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query last run: %w", err)
	}
	return runID, nil
}

func scanRecord(rows *sql.Rows) (model.AuditRecord, error) {
	var (
		r                                model.AuditRecord
		provenance, kind, collision, out string
		fields, recordedAt               string
	)
	err := rows.Scan(
		&r.ID, &r.RunID, &r.DocumentID, &r.SourcePath, &r.TargetPath,
		&r.Classification.Category, &provenance, &r.Classification.RuleName, &r.Classification.Confidence,
		&kind, &r.Action.TargetTemplate, &collision,
		&out, &r.Error, &r.Note, &fields, &recordedAt,
	)
	if err != nil {
		return r, fmt.Errorf("failed to scan audit record: %w", err)
	}

	r.Classification.Provenance = model.Provenance(provenance)
	r.Action.Kind = model.ActionKind(kind)
	r.Action.Collision = model.CollisionPolicy(collision)
	r.Outcome = model.Outcome(out)

	if err := json.Unmarshal([]byte(fields), &r.Fields); err != nil {
		return r, fmt.Errorf("failed to decode fields of record %d: %w", r.ID, err)
	}
	r.Timestamp, err = time.Parse(time.RFC3339Nano, recordedAt)
	if err != nil {
		return r, fmt.Errorf("failed to parse timestamp of record %d: %w", r.ID, err)
	}
	return r, nil
}
