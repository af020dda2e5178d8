package ocr

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Veraticus/paperflow/internal/model"
)

// TextSource reads plain-text documents, one page per form feed.
// Plain text carries no recognition confidence.
type TextSource struct{}

// NewTextSource creates a plain-text reader.
func NewTextSource() *TextSource {
	return &TextSource{}
}

// Name implements Source.
func (s *TextSource) Name() string { return "text" }

// Recognize implements Source.
func (s *TextSource) Recognize(ctx context.Context, path string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if Extension(path) != ".txt" {
		return Result{}, unsupported(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read text document: %w", err)
	}

	return Result{Pages: SplitPages(string(data))}, nil
}

// SplitPages splits text on form feeds into unscored pages.
func SplitPages(text string) []model.Page {
	parts := strings.Split(text, "\f")
	pages := make([]model.Page, 0, len(parts))
	for i, part := range parts {
		pages = append(pages, model.Page{Index: i, Text: strings.TrimSpace(part)})
	}
	return pages
}
