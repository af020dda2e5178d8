// Package ocr turns per-page recognition results into document-level text.
package ocr

import (
	"errors"
	"sort"
	"strings"

	"github.com/Veraticus/paperflow/internal/common"
	"github.com/Veraticus/paperflow/internal/model"
)

// Aggregate concatenates page texts in page order, separated by
// model.PageBreak, and averages the confidences that are present.
// Pages with empty text add nothing to the text but still count toward the
// mean when they carry a confidence. The confidence is nil when no page has one.
func Aggregate(pages []model.Page) (model.AggregatedText, error) {
	if len(pages) == 0 {
		return model.AggregatedText{}, common.NewOCRDataError("", common.ErrNoPages)
	}

	ordered := make([]model.Page, len(pages))
	copy(ordered, pages)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Index < ordered[j].Index
	})

	var (
		b     strings.Builder
		sum   float64
		count int
	)
	for _, page := range ordered {
		if page.Confidence != nil {
			sum += *page.Confidence
			count++
		}
		if page.Text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(model.PageBreak)
		}
		b.WriteString(page.Text)
	}

	result := model.AggregatedText{
		Text:      b.String(),
		PageCount: len(ordered),
	}
	if count > 0 {
		result.Confidence = model.Score(sum / float64(count))
	}
	return result, nil
}

// ValidateConfidence reports an error when a page confidence lies outside [0,1].
func ValidateConfidence(pages []model.Page) error {
	for _, page := range pages {
		if page.Confidence == nil {
			continue
		}
		if c := *page.Confidence; c < 0 || c > 1 {
			return errors.New("page confidence out of range [0,1]")
		}
	}
	return nil
}
