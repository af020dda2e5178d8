// Package audit records what happened to every document in a run.
package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/Veraticus/paperflow/internal/model"
)

// Sink receives one record per processed document.
type Sink interface {
	Record(ctx context.Context, record model.AuditRecord) error
}

// MultiSink forwards records to every sink, in order.
type MultiSink []Sink

// Record writes to all sinks and joins their errors.
func (m MultiSink) Record(ctx context.Context, record model.AuditRecord) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink emits each record as one structured JSON line.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink writes JSON records to w.
func NewLogSink(w io.Writer) *LogSink {
	return &LogSink{logger: slog.New(slog.NewJSONHandler(w, nil))}
}

// Record logs the record at info level.
func (s *LogSink) Record(ctx context.Context, record model.AuditRecord) error {
	attrs := []slog.Attr{
		slog.String("document_id", record.DocumentID),
		slog.String("run_id", record.RunID),
		slog.String("source_path", record.SourcePath),
		slog.String("target_path", record.TargetPath),
		slog.String("category", record.Classification.Category),
		slog.String("provenance", string(record.Classification.Provenance)),
		slog.Float64("confidence", record.Classification.Confidence),
		slog.String("action", string(record.Action.Kind)),
		slog.String("outcome", string(record.Outcome)),
		slog.Time("timestamp", record.Timestamp),
		slog.Any("fields", record.Fields),
	}
	if record.Classification.RuleName != "" {
		attrs = append(attrs, slog.String("rule", record.Classification.RuleName))
	}
	if record.Error != "" {
		attrs = append(attrs, slog.String("error", record.Error))
	}
	if record.Note != "" {
		attrs = append(attrs, slog.String("note", record.Note))
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
	return nil
}
