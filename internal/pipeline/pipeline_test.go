package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/paperflow/internal/classifier"
	"github.com/Veraticus/paperflow/internal/dispatch"
	"github.com/Veraticus/paperflow/internal/model"
	"github.com/Veraticus/paperflow/internal/ocr"
	"github.com/Veraticus/paperflow/internal/rules"
)

type stubClassifier struct {
	err   error
	pred  model.Prediction
	calls atomic.Int32
}

func (s *stubClassifier) Predict(_ context.Context, _ string) (model.Prediction, error) {
	s.calls.Add(1)
	return s.pred, s.err
}

func (s *stubClassifier) Identity() string { return "stub" }

type memorySink struct {
	err     error
	records []model.AuditRecord
	mu      sync.Mutex
}

func (s *memorySink) Record(_ context.Context, r model.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, r)
	return nil
}

func (s *memorySink) all() []model.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AuditRecord(nil), s.records...)
}

type fixture struct {
	pipeline *Pipeline
	sink     *memorySink
	inbox    string
	root     string
}

func invoiceRule() rules.Rule {
	return rules.Rule{
		Name:     "Factures",
		Category: "factures",
		Criteria: []model.Criterion{
			model.KeywordCriterion{Field: model.FieldTarget{Kind: model.FieldContent}, Keyword: "facture"},
		},
		Action: model.ActionDescriptor{Kind: model.ActionCopy, TargetTemplate: "{{.Category}}/{{.Year}}"},
	}
}

func newFixture(t *testing.T, cls classifier.Adapter) *fixture {
	t.Helper()
	engine, err := rules.NewEngine([]rules.Rule{invoiceRule()})
	require.NoError(t, err)

	f := &fixture{sink: &memorySink{}, inbox: t.TempDir(), root: t.TempDir()}
	source := ocr.NewAutoSource(map[string]ocr.Source{".txt": ocr.NewTextSource()})

	f.pipeline, err = New(Options{
		Source:     source,
		Rules:      engine,
		Classifier: cls,
		Dispatcher: dispatch.New(dispatch.Options{Root: f.root, RunID: "run-test"}),
		Sink:       f.sink,
		RunID:      "run-test",
		Workers:    2,
		Actions: model.ActionPolicy{
			Default:    model.ActionDescriptor{Kind: model.ActionCopy, TargetTemplate: "{{.Category}}"},
			Unresolved: model.ActionDescriptor{Kind: model.ActionCopy, TargetTemplate: "_a_verifier"},
			ByCategory: map[string]model.ActionDescriptor{
				"impots": {Kind: model.ActionMove, TargetTemplate: "impots/{{.Year}}"},
			},
		},
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.inbox, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func shortDigest(t *testing.T, path string) string {
	t.Helper()
	digest, err := dispatch.FileDigest(path)
	require.NoError(t, err)
	return digest[:12]
}

func TestProcess_RuleMatch(t *testing.T) {
	cls := &stubClassifier{pred: model.Prediction{Label: "banque", Score: 0.99}}
	f := newFixture(t, cls)
	path := f.write(t, "scan.txt", "FACTURE n° 12\nDate : 15/03/2024\nTotal TTC : 120,00 €\nSIRET 732 829 320 00074")

	record, err := f.pipeline.Process(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, model.OutcomeSuccess, record.Outcome, record.Error)
	assert.Equal(t, model.ProvenanceRule, record.Classification.Provenance)
	assert.Equal(t, "Factures", record.Classification.RuleName)
	assert.InDelta(t, 1.0, record.Classification.Confidence, 1e-9)
	assert.Equal(t, filepath.Join(f.root, "factures", "2024", shortDigest(t, path)+"_scan.txt"), record.TargetPath)
	assert.FileExists(t, record.TargetPath)
	assert.Equal(t, int32(0), cls.calls.Load(), "the model is not consulted when a rule matches")

	date, ok := record.Fields.Get(model.FieldDate)
	require.True(t, ok)
	assert.Equal(t, "2024-03-15", date.Value)
	amount, ok := record.Fields.Get(model.FieldAmount)
	require.True(t, ok)
	assert.Equal(t, "120.00 EUR", amount.Value)
	id, ok := record.Fields.Get(model.FieldIdentifier)
	require.True(t, ok)
	assert.Equal(t, "73282932000074", id.Value)
}

func TestProcess_ModelResolution(t *testing.T) {
	tests := []struct {
		name           string
		classifier     *stubClassifier
		wantProvenance model.Provenance
		wantDir        []string
		wantConfidence float64
		sourceKept     bool
	}{
		{
			name:           "confident prediction uses category override",
			classifier:     &stubClassifier{pred: model.Prediction{Label: "impots", Score: 0.9}},
			wantProvenance: model.ProvenanceModel,
			wantDir:        []string{"impots", "2023"},
			wantConfidence: 0.9,
		},
		{
			name:           "confident prediction uses default action",
			classifier:     &stubClassifier{pred: model.Prediction{Label: "banque", Score: 0.8}},
			wantProvenance: model.ProvenanceModel,
			wantDir:        []string{"banque"},
			wantConfidence: 0.8,
			sourceKept:     true,
		},
		{
			name:           "low score is unresolved",
			classifier:     &stubClassifier{pred: model.Prediction{Label: "banque", Score: 0.4}},
			wantProvenance: model.ProvenanceUnresolved,
			wantDir:        []string{"_a_verifier"},
			wantConfidence: 0.4,
			sourceKept:     true,
		},
		{
			name:           "classifier failure is unresolved",
			classifier:     &stubClassifier{err: errors.New("model unavailable")},
			wantProvenance: model.ProvenanceUnresolved,
			wantDir:        []string{"_a_verifier"},
			sourceKept:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.classifier)
			path := f.write(t, "avis.txt", "Avis d'imposition 2023, établi le 01/09/2023")

			record, err := f.pipeline.Process(context.Background(), path)
			require.NoError(t, err)
			assert.Equal(t, model.OutcomeSuccess, record.Outcome, record.Error)
			assert.Equal(t, tt.wantProvenance, record.Classification.Provenance)
			assert.InDelta(t, tt.wantConfidence, record.Classification.Confidence, 1e-9)

			wantPath := filepath.Join(append(append([]string{f.root}, tt.wantDir...), shortDigest(t, record.TargetPath)+"_avis.txt")...)
			assert.Equal(t, wantPath, record.TargetPath)
			if tt.sourceKept {
				assert.FileExists(t, path)
			} else {
				assert.NoFileExists(t, path)
			}
		})
	}
}

func TestProcess_RuleOnlyWithoutClassifier(t *testing.T) {
	f := newFixture(t, nil)
	path := f.write(t, "note.txt", "Compte rendu de réunion")

	record, err := f.pipeline.Process(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, model.ProvenanceUnresolved, record.Classification.Provenance)
	assert.Equal(t, model.UnresolvedCategory, record.Classification.Category)
}

func TestProcess_UnusableTextGoesToReview(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		sidecar string
	}{
		{name: "unsupported format", file: "lettre.docx", content: "PK\x03\x04"},
		{name: "sidecar without pages", file: "scan.txt", content: "facture", sidecar: `{"pages": []}`},
		{name: "malformed sidecar", file: "scan.txt", content: "facture", sidecar: `{"pages": [`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls := &stubClassifier{pred: model.Prediction{Label: "banque", Score: 0.99}}
			f := newFixture(t, cls)
			path := f.write(t, tt.file, tt.content)
			if tt.sidecar != "" {
				require.NoError(t, os.WriteFile(path+ocr.SidecarSuffix, []byte(tt.sidecar), 0o600))
			}

			record, err := f.pipeline.Process(context.Background(), path)
			require.NoError(t, err)
			assert.Equal(t, model.OutcomeSuccess, record.Outcome, record.Error)
			assert.Equal(t, model.ProvenanceUnresolved, record.Classification.Provenance)
			assert.Zero(t, record.Classification.Confidence)
			assert.Empty(t, record.Fields)
			assert.Equal(t, filepath.Join(f.root, "_a_verifier"), filepath.Dir(record.TargetPath))
			assert.Equal(t, int32(0), cls.calls.Load())
		})
	}
}

func TestProcess_MissingFileFails(t *testing.T) {
	f := newFixture(t, nil)
	record, err := f.pipeline.Process(context.Background(), filepath.Join(f.inbox, "gone.txt"))
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeFailed, record.Outcome)
	assert.Equal(t, "run-test", record.RunID)
	assert.NotEmpty(t, record.Error)
}

func TestRun_IdempotentRerun(t *testing.T) {
	f := newFixture(t, &stubClassifier{pred: model.Prediction{Label: "banque", Score: 0.9}})
	paths := []string{
		f.write(t, "a.txt", "Facture du 02/01/2024"),
		f.write(t, "b.txt", "Relevé bancaire"),
		f.write(t, "c.txt", "Facture du 03/02/2024"),
	}

	var seen atomic.Int32
	first := f.pipeline.Run(context.Background(), paths, func(Result) { seen.Add(1) })
	assert.Equal(t, int32(3), seen.Load())
	assert.Equal(t, 3, first.Total)
	assert.Equal(t, 3, first.Succeeded)
	assert.Equal(t, 0, first.ExitCode())

	second := f.pipeline.Run(context.Background(), paths, nil)
	assert.Equal(t, 3, second.Skipped)
	assert.Equal(t, 0, second.Failed)
	assert.Equal(t, 0, second.ExitCode())

	records := f.sink.all()
	assert.Len(t, records, 6)
	for _, r := range records {
		assert.Equal(t, "run-test", r.RunID)
	}
}

func TestRun_FailedDocumentSetsExitCode(t *testing.T) {
	f := newFixture(t, nil)
	good := f.write(t, "a.txt", "Facture du 02/01/2024")

	// Occupy the target with different content under the fail policy.
	target := filepath.Join(f.root, "factures", "2024", shortDigest(t, good)+"_a.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o750))
	require.NoError(t, os.WriteFile(target, []byte("something else"), 0o600))

	other := f.write(t, "b.txt", "Facture du 05/01/2024")

	summary := f.pipeline.Run(context.Background(), []string{good, other}, nil)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.ExitCode())
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	f := newFixture(t, nil)
	paths := []string{f.write(t, "a.txt", "Facture"), f.write(t, "b.txt", "Facture")}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary := f.pipeline.Run(ctx, paths, nil)
	assert.Equal(t, 2, summary.Abandoned)
	assert.Equal(t, 1, summary.ExitCode())
	assert.Empty(t, f.sink.all())

	entries, err := os.ReadDir(f.root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_AuditFailureSetsExitCode(t *testing.T) {
	f := newFixture(t, nil)
	f.sink.err = errors.New("database is locked")
	path := f.write(t, "a.txt", "Facture du 02/01/2024")

	summary := f.pipeline.Run(context.Background(), []string{path}, nil)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.AuditErrors)
	assert.Equal(t, 1, summary.ExitCode())
}

func TestNew_RequiresComponents(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	p, err := New(Options{
		Source:     ocr.NewTextSource(),
		Dispatcher: dispatch.New(dispatch.Options{Root: t.TempDir()}),
		Sink:       &memorySink{},
		Now:        func() time.Time { return time.Unix(0, 0) },
	})
	require.NoError(t, err)
	assert.NotEmpty(t, p.RunID())
}
