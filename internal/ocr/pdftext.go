package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/Veraticus/paperflow/internal/common"
	"github.com/Veraticus/paperflow/internal/model"
)

// PDFTextSource reads the embedded text layer of born-digital PDFs.
// Pages are returned without a confidence since nothing was recognized.
type PDFTextSource struct{}

// NewPDFTextSource creates a PDF text-layer reader.
func NewPDFTextSource() *PDFTextSource {
	return &PDFTextSource{}
}

// Name implements Source.
func (s *PDFTextSource) Name() string { return "pdftext" }

// Recognize implements Source.
func (s *PDFTextSource) Recognize(ctx context.Context, path string) (Result, error) {
	if Extension(path) != ".pdf" {
		return Result{}, unsupported(path)
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return Result{}, common.NewOCRDataError(path, fmt.Errorf("failed to open pdf: %w", err))
	}
	defer func() { _ = f.Close() }()

	total := r.NumPage()
	pages := make([]model.Page, 0, total)
	hasText := false
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return Result{}, common.NewOCRDataError(path, fmt.Errorf("page %d: %w", i, err))
		}
		text = strings.TrimSpace(text)
		if text != "" {
			hasText = true
		}
		pages = append(pages, model.Page{Index: i - 1, Text: text})
	}

	if len(pages) == 0 {
		return Result{}, common.NewOCRDataError(path, common.ErrNoPages)
	}

	return Result{
		Pages: pages,
		Metadata: map[string]string{
			"pdf_pages":      fmt.Sprintf("%d", total),
			"pdf_text_layer": fmt.Sprintf("%t", hasText),
		},
	}, nil
}
