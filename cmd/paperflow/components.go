package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Veraticus/paperflow/internal/classifier"
	"github.com/Veraticus/paperflow/internal/config"
	"github.com/Veraticus/paperflow/internal/extract"
	"github.com/Veraticus/paperflow/internal/ocr"
	"github.com/Veraticus/paperflow/internal/ocr/tesseract"
	"github.com/Veraticus/paperflow/internal/rules"
)

// newSource builds the text source selected by ocr.engine, bounded by the
// configured timeout and circuit breaker.
func newSource(cfg config.OCRConfig) (ocr.Source, error) {
	var inner ocr.Source
	switch cfg.Engine {
	case config.EngineSidecar:
		inner = ocr.NewSidecarSource()
	case config.EnginePDFText:
		inner = ocr.NewPDFTextSource()
	case config.EngineTesseract:
		inner = tesseract.New(cfg.Language)
	case config.EngineText:
		inner = ocr.NewTextSource()
	case config.EngineAuto:
		images := tesseract.New(cfg.Language)
		byExtension := map[string]ocr.Source{
			".txt": ocr.NewTextSource(),
			".pdf": ocr.NewPDFTextSource(),
		}
		for ext := range ocr.ImageExtensions {
			byExtension[ext] = images
		}
		inner = ocr.NewAutoSource(byExtension)
	default:
		return nil, fmt.Errorf("unknown OCR engine %q", cfg.Engine)
	}

	return ocr.NewGuardedSource(inner, ocr.GuardOptions{
		Timeout:          cfg.Timeout,
		OpenTimeout:      cfg.BreakerOpen,
		FailureThreshold: cfg.FailureThreshold,
	}), nil
}

// newClassifier loads the model. Without a usable model the run only
// proceeds when classifier.allow_rule_only is set, and then gets nil.
func newClassifier(cfg config.ClassifierConfig, logger *slog.Logger) (classifier.Adapter, error) {
	nb, err := classifier.Load(cfg.ModelPath)
	if err != nil {
		if cfg.AllowRuleOnly {
			logger.Warn("No usable classifier model, running with rules only",
				"model", cfg.ModelPath, "error", err)
			return nil, nil
		}
		return nil, err
	}
	logger.Info("Classifier loaded", "classifier", nb.Identity(), "labels", len(nb.Labels()))
	return classifier.NewCached(classifier.WithTimeout(nb, cfg.Timeout), cfg.CacheTTL, logger), nil
}

func newRuleEngine(cfg *config.Config) (*rules.Engine, error) {
	list, err := cfg.LoadRules()
	if err != nil {
		return nil, err
	}
	return rules.NewEngine(list)
}

func newExtractor(cfg *config.Config, logger *slog.Logger) (*extract.Extractor, error) {
	strategy, err := extract.ParseDateStrategy(cfg.Extract.DateStrategy)
	if err != nil {
		return nil, err
	}
	profiles, err := extract.ParseProfiles(cfg.Extract.Profiles)
	if err != nil {
		return nil, err
	}
	return extract.New(extract.Options{
		DateStrategy:    strategy,
		Profiles:        profiles,
		Logger:          logger,
		DefaultCurrency: cfg.DefaultCurrency,
	}), nil
}

// openAuditLog opens the JSON line log in append mode, or stderr.
func openAuditLog(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stderr, func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return f, func() {
		if err := f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
			slog.Warn("Failed to close audit log", "error", err)
		}
	}, nil
}
