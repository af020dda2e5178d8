// Package tesseract recognizes scanned images with the Tesseract engine.
//
// It requires Tesseract and Leptonica to be installed on the system:
//
//	apt-get install tesseract-ocr tesseract-ocr-fra libtesseract-dev
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/Veraticus/paperflow/internal/common"
	"github.com/Veraticus/paperflow/internal/model"
	"github.com/Veraticus/paperflow/internal/ocr"
)

// Source runs Tesseract on single-page raster images.
type Source struct {
	language string
}

// New creates a Tesseract source for the given language ("fra", "eng+fra").
func New(language string) *Source {
	if language == "" {
		language = "fra"
	}
	return &Source{language: language}
}

// Name implements ocr.Source.
func (s *Source) Name() string { return "tesseract" }

// Recognize implements ocr.Source. A client is created per call because
// gosseract clients are not safe for concurrent use.
func (s *Source) Recognize(ctx context.Context, path string) (ocr.Result, error) {
	if !ocr.ImageExtensions[ocr.Extension(path)] {
		return ocr.Result{}, common.NewOCRDataError(path, fmt.Errorf("%w: %q", common.ErrUnsupportedFormat, ocr.Extension(path)))
	}
	if err := ctx.Err(); err != nil {
		return ocr.Result{}, err
	}

	client := gosseract.NewClient()
	defer func() { _ = client.Close() }()

	if err := client.SetLanguage(strings.Split(s.language, "+")...); err != nil {
		return ocr.Result{}, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImage(path); err != nil {
		return ocr.Result{}, common.NewOCRDataError(path, fmt.Errorf("failed to set image: %w", err))
	}

	text, err := client.Text()
	if err != nil {
		return ocr.Result{}, fmt.Errorf("tesseract failed: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return ocr.Result{}, fmt.Errorf("tesseract word boxes: %w", err)
	}
	confidences := make([]float64, 0, len(boxes))
	for _, box := range boxes {
		confidences = append(confidences, box.Confidence)
	}

	return ocr.Result{
		Pages: []model.Page{{
			Index:      0,
			Text:       strings.TrimSpace(text),
			Confidence: MeanConfidence(confidences),
		}},
		Metadata: map[string]string{"ocr_language": s.language},
	}, nil
}

// MeanConfidence averages Tesseract word confidences (0-100) into [0,1].
// Negative values mark non-word boxes and are ignored; nil means no word was scored.
func MeanConfidence(confidences []float64) *float64 {
	var sum float64
	var n int
	for _, c := range confidences {
		if c < 0 {
			continue
		}
		sum += c
		n++
	}
	if n == 0 {
		return nil
	}
	mean := sum / float64(n) / 100
	if mean > 1 {
		mean = 1
	}
	return model.Score(mean)
}
