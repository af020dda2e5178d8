// Package pipeline runs documents through recognition, classification,
// extraction and filing, and records every outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/paperflow/internal/audit"
	"github.com/Veraticus/paperflow/internal/classifier"
	"github.com/Veraticus/paperflow/internal/common"
	"github.com/Veraticus/paperflow/internal/dispatch"
	"github.com/Veraticus/paperflow/internal/extract"
	"github.com/Veraticus/paperflow/internal/metrics"
	"github.com/Veraticus/paperflow/internal/model"
	"github.com/Veraticus/paperflow/internal/ocr"
	"github.com/Veraticus/paperflow/internal/resolver"
	"github.com/Veraticus/paperflow/internal/rules"
)

// Options wires the pipeline's components. Classifier may be nil when the
// run is restricted to rules.
type Options struct {
	Source     ocr.Source
	Rules      *rules.Engine
	Classifier classifier.Adapter
	Resolver   *resolver.Resolver
	Extractor  *extract.Extractor
	Dispatcher *dispatch.Dispatcher
	Sink       audit.Sink
	Metrics    *metrics.PipelineMetrics
	Logger     *slog.Logger
	Now        func() time.Time
	Actions    model.ActionPolicy
	RunID      string
	Workers    int
}

// Pipeline processes documents. Processing of different documents shares
// only read-only components, the keyed locker and the audit sink.
type Pipeline struct {
	source     ocr.Source
	rules      *rules.Engine
	classifier classifier.Adapter
	resolver   *resolver.Resolver
	extractor  *extract.Extractor
	dispatcher *dispatch.Dispatcher
	sink       audit.Sink
	metrics    *metrics.PipelineMetrics
	logger     *slog.Logger
	now        func() time.Time
	actions    model.ActionPolicy
	runID      string
	workers    int
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// New checks opts and builds a pipeline.
func New(opts Options) (*Pipeline, error) {
	switch {
	case opts.Source == nil:
		return nil, fmt.Errorf("%w: text source", common.ErrMissingConfig)
	case opts.Dispatcher == nil:
		return nil, fmt.Errorf("%w: dispatcher", common.ErrMissingConfig)
	case opts.Sink == nil:
		return nil, fmt.Errorf("%w: audit sink", common.ErrMissingConfig)
	}
	if opts.Rules == nil {
		engine, err := rules.NewEngine(nil)
		if err != nil {
			return nil, err
		}
		opts.Rules = engine
	}
	if opts.Resolver == nil {
		opts.Resolver = resolver.New(resolver.DefaultThreshold)
	}
	if opts.Extractor == nil {
		opts.Extractor = extract.New(extract.Options{Logger: opts.Logger})
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.RunID == "" {
		opts.RunID = NewRunID()
	}

	return &Pipeline{
		source:     opts.Source,
		rules:      opts.Rules,
		classifier: opts.Classifier,
		resolver:   opts.Resolver,
		extractor:  opts.Extractor,
		dispatcher: opts.Dispatcher,
		sink:       opts.Sink,
		metrics:    opts.Metrics,
		logger:     opts.Logger.With("run_id", opts.RunID),
		now:        opts.Now,
		actions:    opts.Actions,
		runID:      opts.RunID,
		workers:    opts.Workers,
	}, nil
}

// RunID identifies this pipeline's run in audit records.
func (p *Pipeline) RunID() string {
	return p.runID
}

// Run processes paths concurrently. onResult, if set, sees each result as
// it completes. Per-document failures never stop the run.
func (p *Pipeline) Run(ctx context.Context, paths []string, onResult func(Result)) Summary {
	start := p.now()
	summary := Summary{RunID: p.runID}

	pool := NewPool(p.workers, p.process)
	pool.Run(ctx, paths, func(r Result) {
		summary.Add(r)
		if onResult != nil {
			onResult(r)
		}
	})

	summary.Duration = p.now().Sub(start)
	p.metrics.FinishRun(p.now())
	p.logger.Info("Run finished",
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"unresolved", summary.Unresolved,
		"abandoned", summary.Abandoned)
	return summary
}

func (p *Pipeline) process(ctx context.Context, path string) Result {
	p.metrics.StartDocument()
	record, err := p.Process(ctx, path)
	if err != nil {
		p.metrics.AbandonDocument()
		return Result{Err: err}
	}
	p.metrics.FinishDocument(record)

	// Filing is done; the trace must be kept even if the run is being cancelled.
	if err := p.sink.Record(context.WithoutCancel(ctx), record); err != nil {
		common.LogError(err, "Failed to write audit record", common.Fields{
			"document": record.DocumentID,
			"source":   record.SourcePath,
		})
		return Result{Record: record, AuditErr: err}
	}
	return Result{Record: record}
}

// Process runs one document through every stage and returns its audit
// record. The record is not written to the sink. The only error is a
// cancellation that left the document untouched.
func (p *Pipeline) Process(ctx context.Context, path string) (model.AuditRecord, error) {
	logger := p.logger.With("source", path)

	doc, err := p.ingest(path)
	if err != nil {
		logger.Warn("Failed to ingest document", "error", err)
		return p.failed(path, err), nil
	}
	logger = logger.With("document", doc.ID)

	text, ocrErr := p.recognize(ctx, &doc)
	if err := ctx.Err(); err != nil {
		return model.AuditRecord{}, err
	}

	var (
		rule     *rules.Rule
		resolved model.ResolvedClassification
		fields   model.Fields
	)
	if ocrErr != nil {
		logger.Warn("Document has no usable text, routing to review", "error", ocrErr)
		resolved = resolver.Unresolved()
	} else {
		rule, resolved, err = p.classify(ctx, doc, text, logger)
		if err != nil {
			return model.AuditRecord{}, err
		}

		started := time.Now()
		fields = p.extractor.Extract(text.Text, resolved.Category)
		p.metrics.ObserveStage(metrics.StageExtract, time.Since(started))
	}

	action := p.actions.Select(rule, resolved)

	started := time.Now()
	record, err := p.dispatcher.Dispatch(ctx, doc, resolved, fields, action)
	if err != nil {
		return model.AuditRecord{}, err
	}
	p.metrics.ObserveStage(metrics.StageDispatch, time.Since(started))

	logger.Info("Document processed",
		"category", resolved.Category,
		"provenance", resolved.Provenance,
		"confidence", resolved.Confidence,
		"target", record.TargetPath,
		"outcome", record.Outcome)
	return record, nil
}

func (p *Pipeline) ingest(path string) (model.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return model.Document{}, fmt.Errorf("failed to stat source: %w", err)
	}
	if info.IsDir() {
		return model.Document{}, fmt.Errorf("%s is a directory", path)
	}
	digest, err := dispatch.FileDigest(path)
	if err != nil {
		return model.Document{}, fmt.Errorf("failed to hash source: %w", err)
	}

	return model.Document{
		ID:         model.NewDocumentID(path, digest),
		SourcePath: path,
		Digest:     digest,
		CreatedAt:  p.now().UTC(),
		Metadata: map[string]string{
			"extension": ocr.Extension(path),
			"size":      strconv.FormatInt(info.Size(), 10),
			"modified":  info.ModTime().UTC().Format(time.RFC3339),
		},
	}, nil
}

// recognize fills doc's pages and metadata and returns the aggregated text.
// Any failure is reported as an OCRDataError.
func (p *Pipeline) recognize(ctx context.Context, doc *model.Document) (model.AggregatedText, error) {
	started := time.Now()
	result, err := p.source.Recognize(ctx, doc.SourcePath)
	p.metrics.ObserveStage(metrics.StageOCR, time.Since(started))
	if err != nil {
		var dataErr *common.OCRDataError
		if !errors.As(err, &dataErr) {
			err = common.NewOCRDataError(doc.SourcePath, err)
		}
		return model.AggregatedText{}, err
	}

	for k, v := range result.Metadata {
		doc.Metadata[k] = v
	}
	doc.Pages = result.Pages

	return ocr.Aggregate(result.Pages)
}

// classify matches rules and, when no rule matched, asks the model. A
// classifier failure leaves the document to the resolver without a
// prediction.
func (p *Pipeline) classify(ctx context.Context, doc model.Document, text model.AggregatedText, logger *slog.Logger) (*rules.Rule, model.ResolvedClassification, error) {
	started := time.Now()
	defer func() { p.metrics.ObserveStage(metrics.StageClassify, time.Since(started)) }()

	if rule, ok := p.rules.Match(rules.NewSubject(doc, text)); ok {
		return rule, p.resolver.Resolve(rule, nil), nil
	}

	var pred *model.Prediction
	if p.classifier != nil {
		prediction, err := p.classifier.Predict(ctx, text.Text)
		switch {
		case err == nil:
			pred = &prediction
		case ctx.Err() != nil:
			return nil, model.ResolvedClassification{}, ctx.Err()
		default:
			logger.Warn("Classifier failed, continuing without a prediction",
				"classifier", p.classifier.Identity(), "error", err)
		}
	}
	return nil, p.resolver.Resolve(nil, pred), nil
}

// failed records a document that could not even be read.
func (p *Pipeline) failed(path string, err error) model.AuditRecord {
	return model.AuditRecord{
		Timestamp:      p.now().UTC(),
		DocumentID:     model.NewDocumentID(path, ""),
		RunID:          p.runID,
		SourcePath:     path,
		Classification: resolver.Unresolved(),
		Outcome:        model.OutcomeFailed,
		Error:          err.Error(),
	}
}
