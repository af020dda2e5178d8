package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Veraticus/paperflow/internal/model"
)

func sampleRecord(runID, doc string, outcome model.Outcome) model.AuditRecord {
	return model.AuditRecord{
		Timestamp:  time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
		RunID:      runID,
		DocumentID: doc,
		SourcePath: "/inbox/" + doc + ".pdf",
		TargetPath: "/archive/factures/2024/" + doc + ".pdf",
		Classification: model.ResolvedClassification{
			Category:   "factures",
			Provenance: model.ProvenanceRule,
			RuleName:   "Factures",
			Confidence: 1,
		},
		Action:  model.ActionDescriptor{Kind: model.ActionCopy, TargetTemplate: "{{.Category}}", Collision: model.CollisionFail},
		Outcome: outcome,
		Fields: model.Fields{
			{Name: model.FieldDate, Raw: "01/03/2024", Value: "2024-03-01", Method: "date:numeric", Position: 4},
			{Name: model.FieldAmount, Raw: "12,50 €", Value: "12.50 EUR", Method: "amount:largest", Position: 20},
		},
	}
}

func openMemory(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(context.Background(), MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_RecordAndList(t *testing.T) {
	store := openMemory(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, sampleRecord("run-1", "a", model.OutcomeSuccess)))
	require.NoError(t, store.Record(ctx, sampleRecord("run-1", "b", model.OutcomeFailed)))
	require.NoError(t, store.Record(ctx, sampleRecord("run-2", "a", model.OutcomeSkipped)))

	all, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	first := all[0]
	want := sampleRecord("run-1", "a", model.OutcomeSuccess)
	want.ID = first.ID
	assert.Equal(t, want, first)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{name: "by run", filter: Filter{RunID: "run-1"}, want: 2},
		{name: "by document", filter: Filter{DocumentID: "a"}, want: 2},
		{name: "by outcome", filter: Filter{Outcome: model.OutcomeFailed}, want: 1},
		{name: "combined", filter: Filter{RunID: "run-2", DocumentID: "a"}, want: 1},
		{name: "limit", filter: Filter{Limit: 1}, want: 1},
		{name: "no match", filter: Filter{RunID: "missing"}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}

	last, err := store.LastRunID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-2", last)
}

func TestSQLiteStore_NilFieldsStoredAsEmptyList(t *testing.T) {
	store := openMemory(t)
	ctx := context.Background()

	rec := sampleRecord("run-1", "a", model.OutcomeFailed)
	rec.Fields = nil
	rec.TargetPath = ""
	require.NoError(t, store.Record(ctx, rec))

	got, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Empty(t, got[0].Fields)
	assert.Empty(t, got[0].TargetPath)
}

func TestSQLiteStore_AppendOnly(t *testing.T) {
	store := openMemory(t)
	ctx := context.Background()
	require.NoError(t, store.Record(ctx, sampleRecord("run-1", "a", model.OutcomeSuccess)))

	_, err := store.db.ExecContext(ctx, `UPDATE audit_records SET outcome = 'failed'`)
	assert.ErrorContains(t, err, "append-only")

	_, err = store.db.ExecContext(ctx, `DELETE FROM audit_records`)
	assert.ErrorContains(t, err, "append-only")

	got, err := store.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.OutcomeSuccess, got[0].Outcome)
}

func TestOpenSQLite_FileIsMigratedOnce(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "audit.db")

	store, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.Record(ctx, sampleRecord("run-1", "a", model.OutcomeSuccess)))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	var version int
	require.NoError(t, reopened.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, ExpectedSchemaVersion, version)

	got, err := reopened.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	_, err := OpenSQLite(context.Background(), " ")
	assert.Error(t, err)
}

type recordingSink struct {
	err     error
	records []model.AuditRecord
}

func (s *recordingSink) Record(_ context.Context, r model.AuditRecord) error {
	s.records = append(s.records, r)
	return s.err
}

func TestMultiSink(t *testing.T) {
	ok := &recordingSink{}
	broken := &recordingSink{err: errors.New("disk full")}
	last := &recordingSink{}

	err := MultiSink{ok, broken, last}.Record(context.Background(), sampleRecord("r", "a", model.OutcomeSuccess))
	assert.ErrorContains(t, err, "disk full")
	assert.Len(t, ok.records, 1)
	assert.Len(t, last.records, 1, "a failing sink does not stop later sinks")
}

func TestLogSink_WritesOneJSONLine(t *testing.T) {
	var buf bytes.Buffer
	rec := sampleRecord("run-1", "a", model.OutcomeFailed)
	rec.Error = "target exists with different content"

	require.NoError(t, NewLogSink(&buf).Record(context.Background(), rec))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "audit", entry["msg"])
	assert.Equal(t, "a", entry["document_id"])
	assert.Equal(t, "failed", entry["outcome"])
	assert.Equal(t, "Factures", entry["rule"])
	assert.Equal(t, rec.Error, entry["error"])
	assert.Len(t, entry["fields"], 2)
}

func TestExportXLSX(t *testing.T) {
	records := []model.AuditRecord{
		sampleRecord("run-1", "a", model.OutcomeSuccess),
		sampleRecord("run-1", "b", model.OutcomeFailed),
	}
	records[1].Error = "boom"
	records[1].Note = "source removed"

	var buf bytes.Buffer
	require.NoError(t, ExportXLSX(&buf, records))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(ExportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, exportHeaders, rows[0])
	assert.Equal(t, "/inbox/a.pdf", rows[1][2])
	assert.Equal(t, "factures", rows[1][4])
	assert.Equal(t, "2024-03-01", rows[1][10])
	assert.Equal(t, "12.50 EUR", rows[1][11])
	assert.Equal(t, "boom", rows[2][13])
	assert.Equal(t, "source removed", rows[2][14])
}

func TestSQLiteStore_KeepsNote(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLite(ctx, MemoryPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	rec := sampleRecord("run-1", "a", model.OutcomeSkipped)
	rec.Note = "source removed: identical content already filed at /out/a.pdf"
	require.NoError(t, store.Record(ctx, rec))
	require.NoError(t, store.Record(ctx, sampleRecord("run-1", "b", model.OutcomeSuccess)))

	got, err := store.List(ctx, Filter{RunID: "run-1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, rec.Note, got[0].Note)
	assert.Empty(t, got[1].Note)
}
