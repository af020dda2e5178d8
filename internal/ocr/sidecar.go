package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/Veraticus/paperflow/internal/common"
	"github.com/Veraticus/paperflow/internal/model"
)

// SidecarSuffix is appended to a document path to locate its OCR sidecar.
const SidecarSuffix = ".ocr.json"

type sidecarFile struct {
	Metadata map[string]string `json:"metadata"`
	Pages    []model.Page      `json:"pages"`
}

// SidecarSource reads results written by an external OCR engine next to the
// document, as "<document>.ocr.json".
type SidecarSource struct{}

// NewSidecarSource creates a sidecar reader.
func NewSidecarSource() *SidecarSource {
	return &SidecarSource{}
}

// Name implements Source.
func (s *SidecarSource) Name() string { return "sidecar" }

// HasSidecar reports whether a sidecar exists for path.
func HasSidecar(path string) bool {
	info, err := os.Stat(path + SidecarSuffix)
	return err == nil && !info.IsDir()
}

// Recognize implements Source.
func (s *SidecarSource) Recognize(ctx context.Context, path string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	data, err := os.ReadFile(path + SidecarSuffix)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{}, common.NewOCRDataError(path, errors.New("no OCR sidecar"))
		}
		return Result{}, fmt.Errorf("failed to read sidecar: %w", err)
	}

	var file sidecarFile
	if err := json.Unmarshal(data, &file); err != nil {
		return Result{}, common.NewOCRDataError(path, fmt.Errorf("malformed sidecar: %w", err))
	}
	if len(file.Pages) == 0 {
		return Result{}, common.NewOCRDataError(path, common.ErrNoPages)
	}
	if err := ValidateConfidence(file.Pages); err != nil {
		return Result{}, common.NewOCRDataError(path, err)
	}

	return Result{Pages: file.Pages, Metadata: file.Metadata}, nil
}

// WriteSidecar stores pages as the sidecar of path.
func WriteSidecar(path string, pages []model.Page, metadata map[string]string) error {
	data, err := json.MarshalIndent(sidecarFile{Pages: pages, Metadata: metadata}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode sidecar: %w", err)
	}
	if err := os.WriteFile(path+SidecarSuffix, data, 0o600); err != nil {
		return fmt.Errorf("failed to write sidecar: %w", err)
	}
	return nil
}
