// Package model defines the core data structures for the paperflow application.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"time"
)

// PageBreak separates page texts in an AggregatedText. It contains a form
// feed so that single-line patterns never span two pages.
const PageBreak = "\n\f\n"

// Page is the recognition result for a single page of a document.
type Page struct {
	Confidence *float64 `json:"confidence,omitempty"` // nil when the engine could not score the page
	Text       string   `json:"text"`
	Index      int      `json:"index"`
}

// Document is an ingested source file with its recognized pages.
// It is immutable once ingested.
type Document struct {
	CreatedAt  time.Time         `json:"created_at"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	ID         string            `json:"id"`
	SourcePath string            `json:"source_path"`
	Digest     string            `json:"digest"`
	Pages      []Page            `json:"pages"`
}

// AggregatedText is the document-level view of all page results.
type AggregatedText struct {
	Confidence *float64 `json:"confidence,omitempty"` // nil when no page reported a confidence
	Text       string   `json:"text"`
	PageCount  int      `json:"page_count"`
}

// NewDocumentID derives the stable document identifier from the source path
// and the content digest.
func NewDocumentID(sourcePath, digest string) string {
	h := sha256.New()
	h.Write([]byte(sourcePath))
	h.Write([]byte{0})
	h.Write([]byte(digest))
	return hex.EncodeToString(h.Sum(nil))
}

// Filename returns the base name of the source file.
func (d Document) Filename() string {
	return filepath.Base(d.SourcePath)
}

// ShortDigest returns the first 12 characters of the content digest. It
// names filed copies, so it stays stable when the source is renamed or moved.
func (d Document) ShortDigest() string {
	if len(d.Digest) <= 12 {
		return d.Digest
	}
	return d.Digest[:12]
}

// Score returns a pointer to v, for building pages with a known confidence.
func Score(v float64) *float64 {
	return &v
}
