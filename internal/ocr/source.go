package ocr

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Veraticus/paperflow/internal/common"
	"github.com/Veraticus/paperflow/internal/model"
)

// Result is what an engine reports for one file.
type Result struct {
	Metadata map[string]string
	Pages    []model.Page
}

// Source recognizes the pages of a document file.
// Implementations must be safe for concurrent use.
type Source interface {
	Name() string
	Recognize(ctx context.Context, path string) (Result, error)
}

// SupportedExtensions lists the document formats accepted for ingestion.
var SupportedExtensions = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
	".txt":  true,
}

// ImageExtensions lists the raster formats handed to the tesseract engine.
var ImageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
}

// Extension returns the lower-cased extension of path.
func Extension(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// IsSupported reports whether path has an accepted document extension.
func IsSupported(path string) bool {
	return SupportedExtensions[Extension(path)]
}

func unsupported(path string) error {
	return common.NewOCRDataError(path, fmt.Errorf("%w: %q", common.ErrUnsupportedFormat, Extension(path)))
}
