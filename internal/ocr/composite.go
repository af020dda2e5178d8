package ocr

import (
	"context"
)

// AutoSource picks an engine per file: a sidecar when one exists, otherwise
// the engine registered for the file extension.
type AutoSource struct {
	sidecar     *SidecarSource
	byExtension map[string]Source
}

// NewAutoSource creates a dispatching source. byExtension maps lower-case
// extensions (".pdf") to the engine that handles them.
func NewAutoSource(byExtension map[string]Source) *AutoSource {
	return &AutoSource{
		sidecar:     NewSidecarSource(),
		byExtension: byExtension,
	}
}

// Name implements Source.
func (s *AutoSource) Name() string { return "auto" }

// Recognize implements Source.
func (s *AutoSource) Recognize(ctx context.Context, path string) (Result, error) {
	if HasSidecar(path) {
		return s.sidecar.Recognize(ctx, path)
	}
	engine, ok := s.byExtension[Extension(path)]
	if !ok {
		return Result{}, unsupported(path)
	}
	return engine.Recognize(ctx, path)
}
