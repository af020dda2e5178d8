// Package dispatch files classified documents and reports what it did as
// audit records.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Veraticus/paperflow/internal/common"
	"github.com/Veraticus/paperflow/internal/model"
)

// maxSuffix bounds the search for a free suffixed name.
const maxSuffix = 1000

// Options configures a Dispatcher.
type Options struct {
	Locker *KeyedLocker
	Logger *slog.Logger
	Now    func() time.Time
	Root   string
	RunID  string
}

// Dispatcher applies filing actions. It is safe for concurrent use; two
// documents never write the same target path at the same time.
type Dispatcher struct {
	locker *KeyedLocker
	logger *slog.Logger
	now    func() time.Time
	root   string
	runID  string
}

// New creates a dispatcher filing under opts.Root.
func New(opts Options) *Dispatcher {
	if opts.Locker == nil {
		opts.Locker = NewKeyedLocker()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Dispatcher{
		locker: opts.Locker,
		logger: opts.Logger,
		now:    opts.Now,
		root:   opts.Root,
		runID:  opts.RunID,
	}
}

// TargetPath computes where doc is filed. The result is deterministic for a
// given document content, classification and fields.
func (d *Dispatcher) TargetPath(doc model.Document, resolved model.ResolvedClassification, fields model.Fields, action model.ActionDescriptor) (string, error) {
	name := FileName(doc)
	if action.Kind == model.ActionRename {
		return filepath.Join(filepath.Dir(doc.SourcePath), name), nil
	}
	dir, err := RenderDir(d.root, action.TargetTemplate, NewTargetData(resolved, fields))
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// Dispatch files doc according to action and returns its audit record.
// The only error is the context's: a document cancelled before its
// destination write is left untouched and gets no record.
func (d *Dispatcher) Dispatch(ctx context.Context, doc model.Document, resolved model.ResolvedClassification, fields model.Fields, action model.ActionDescriptor) (model.AuditRecord, error) {
	if err := ctx.Err(); err != nil {
		return model.AuditRecord{}, err
	}

	record := model.AuditRecord{
		DocumentID:     doc.ID,
		RunID:          d.runID,
		SourcePath:     doc.SourcePath,
		Classification: resolved,
		Fields:         fields,
		Action:         action,
	}

	target, err := d.TargetPath(doc, resolved, fields, action)
	if err != nil {
		return d.finish(record, model.OutcomeFailed, err), nil
	}
	record.TargetPath = target

	unlock := d.locker.Lock(target)
	defer unlock()

	final, outcome, err := d.resolveTarget(doc, target, action)
	if err != nil {
		return d.finish(record, model.OutcomeFailed, err), nil
	}
	record.TargetPath = final

	if outcome == model.OutcomeSkipped {
		if action.Kind == model.ActionMove && final != doc.SourcePath {
			record.Note = d.completeMove(doc, final)
		}
		return d.finish(record, model.OutcomeSkipped, nil), nil
	}

	// Last point at which the document may be abandoned.
	if err := ctx.Err(); err != nil {
		return model.AuditRecord{}, err
	}

	if err := d.apply(doc, final, action.Kind); err != nil {
		return d.finish(record, model.OutcomeFailed, err), nil
	}
	return d.finish(record, model.OutcomeSuccess, nil), nil
}

// resolveTarget applies the collision policy. It returns the path to write
// and OutcomeSkipped when identical content is already in place.
func (d *Dispatcher) resolveTarget(doc model.Document, target string, action model.ActionDescriptor) (string, model.Outcome, error) {
	if target == doc.SourcePath {
		return target, model.OutcomeSkipped, nil
	}

	candidate := target
	for n := 1; ; n++ {
		existing, err := existingDigest(candidate)
		if err != nil {
			return "", "", fmt.Errorf("failed to inspect target: %w", err)
		}
		switch {
		case existing == "":
			return candidate, model.OutcomeSuccess, nil
		case existing == doc.Digest:
			return candidate, model.OutcomeSkipped, nil
		}

		switch action.Collision {
		case model.CollisionOverwrite:
			return candidate, model.OutcomeSuccess, nil
		case model.CollisionSuffix:
			if n > maxSuffix {
				return "", "", fmt.Errorf("no free name for %s after %d attempts", target, maxSuffix)
			}
			candidate = suffixed(target, n)
		default:
			return "", "", &common.ActionConflictError{Target: candidate}
		}
	}
}

func (d *Dispatcher) apply(doc model.Document, target string, kind model.ActionKind) error {
	current, err := FileDigest(doc.SourcePath)
	if err != nil {
		return fmt.Errorf("failed to read source: %w", err)
	}
	if current != doc.Digest {
		return fmt.Errorf("%w: source changed since ingestion", ErrDigestMismatch)
	}

	switch kind {
	case model.ActionRename:
		return renameVerified(doc.SourcePath, target, doc.Digest)
	case model.ActionCopy:
		return copyDurable(doc.SourcePath, target, doc.Digest)
	case model.ActionMove:
		if err := copyDurable(doc.SourcePath, target, doc.Digest); err != nil {
			return err
		}
		if err := os.Remove(doc.SourcePath); err != nil {
			return fmt.Errorf("filed to %s but failed to remove source: %w", target, err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported action %q", kind)
	}
}

// completeMove removes a source whose content is already filed at target,
// finishing a move interrupted after its copy was verified. The source may
// also be a second file with the same content, so the removal is returned as
// a note for the audit record.
func (d *Dispatcher) completeMove(doc model.Document, target string) string {
	current, err := FileDigest(doc.SourcePath)
	if err != nil || current != doc.Digest {
		return ""
	}
	if err := os.Remove(doc.SourcePath); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			d.logger.Warn("Failed to remove already filed source", "source", doc.SourcePath, "error", err)
		}
		return ""
	}
	d.logger.Warn("Removed source whose content was already filed",
		"source", doc.SourcePath, "target", target)
	return fmt.Sprintf("source removed: identical content already filed at %s", target)
}

func (d *Dispatcher) finish(record model.AuditRecord, outcome model.Outcome, err error) model.AuditRecord {
	record.Outcome = outcome
	record.Timestamp = d.now().UTC()
	if err != nil {
		record.Error = err.Error()
	}

	attrs := []any{
		"document", record.DocumentID,
		"source", record.SourcePath,
		"target", record.TargetPath,
		"action", record.Action.Kind,
		"outcome", record.Outcome,
	}
	if err != nil {
		d.logger.Warn("Filing failed", append(attrs, "error", err)...)
	} else {
		d.logger.Debug("Filing finished", attrs...)
	}
	return record
}
