package rules

import (
	"strings"

	"github.com/Veraticus/paperflow/internal/model"
	"github.com/Veraticus/paperflow/internal/textnorm"
)

// Subject is the view of a document the rule engine inspects.
type Subject struct {
	Metadata map[string]string
	Filename string
	Content  string
}

// NewSubject builds a Subject from a document and its aggregated text.
// Metadata keys are lowercased to match parsed criterion targets.
func NewSubject(doc model.Document, text model.AggregatedText) Subject {
	metadata := make(map[string]string, len(doc.Metadata))
	for k, v := range doc.Metadata {
		metadata[strings.ToLower(k)] = v
	}
	return Subject{
		Filename: doc.Filename(),
		Content:  text.Text,
		Metadata: metadata,
	}
}

// fieldCache folds each field at most once per evaluation.
type fieldCache struct {
	folds   map[model.FieldTarget]string
	subject Subject
}

func newFieldCache(s Subject) *fieldCache {
	return &fieldCache{subject: s, folds: make(map[model.FieldTarget]string)}
}

func (f *fieldCache) raw(t model.FieldTarget) string {
	switch t.Kind {
	case model.FieldFilename:
		return f.subject.Filename
	case model.FieldContent:
		return f.subject.Content
	case model.FieldMetadata:
		return f.subject.Metadata[t.Key]
	default:
		return ""
	}
}

func (f *fieldCache) folded(t model.FieldTarget) string {
	if v, ok := f.folds[t]; ok {
		return v
	}
	v := textnorm.Fold(f.raw(t))
	f.folds[t] = v
	return v
}

func containsFolded(haystack, foldedNeedle string) bool {
	return strings.Contains(haystack, foldedNeedle)
}
