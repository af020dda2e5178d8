package dispatch

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"text/template"

	"github.com/Veraticus/paperflow/internal/model"
)

// Placeholders used when a template references a field that was not extracted.
const (
	UndatedPart = "undated"
	UnknownPart = "unknown"
)

// TargetData is the data available to target directory templates.
type TargetData struct {
	Category   string
	Rule       string
	Date       string
	Year       string
	Month      string
	Identifier string
}

// NewTargetData collects template data from a classification and its fields.
func NewTargetData(resolved model.ResolvedClassification, fields model.Fields) TargetData {
	data := TargetData{
		Category:   sanitizeSegment(resolved.Category),
		Rule:       sanitizeSegment(resolved.RuleName),
		Date:       UndatedPart,
		Year:       UndatedPart,
		Month:      UndatedPart,
		Identifier: UnknownPart,
	}
	if date, ok := fields.Get(model.FieldDate); ok && len(date.Value) == len("2006-01-02") {
		data.Date = date.Value
		data.Year = date.Value[:4]
		data.Month = date.Value[5:7]
	}
	if id, ok := fields.Get(model.FieldIdentifier); ok {
		data.Identifier = sanitizeSegment(id.Value)
	}
	return data
}

var templateFuncs = template.FuncMap{
	"lower": strings.ToLower,
	"upper": strings.ToUpper,
}

// ParseTemplate checks a target directory template.
func ParseTemplate(tmpl string) (*template.Template, error) {
	t, err := template.New("target").Funcs(templateFuncs).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		return nil, fmt.Errorf("invalid target template %q: %w", tmpl, err)
	}
	return t, nil
}

// ErrEscapesRoot is returned when a rendered target leaves the output root.
var ErrEscapesRoot = errors.New("target escapes output root")

// RenderDir renders tmpl and places the result under root. Absolute
// templates are kept as they are.
func RenderDir(root, tmpl string, data TargetData) (string, error) {
	t, err := ParseTemplate(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render target template %q: %w", tmpl, err)
	}

	rendered := strings.TrimSpace(buf.String())
	if filepath.IsAbs(rendered) {
		return filepath.Clean(rendered), nil
	}

	dir := filepath.Join(root, rendered)
	rel, err := filepath.Rel(root, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrEscapesRoot, rendered)
	}
	return dir, nil
}

var unsafeChars = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)

// sanitizeSegment makes s usable as a single path element.
func sanitizeSegment(s string) string {
	s = strings.TrimSpace(s)
	s = unsafeChars.ReplaceAllString(s, "_")
	s = strings.Trim(s, "._")
	if s == "" {
		return UnknownPart
	}
	return s
}

// FileName builds "<short-digest>_<sanitized base><ext>" for doc. A source
// already named after its own digest keeps its name.
func FileName(doc model.Document) string {
	base := doc.Filename()
	ext := strings.ToLower(filepath.Ext(base))
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	short := doc.ShortDigest()
	stem = strings.TrimPrefix(stem, short+"_")

	return short + "_" + sanitizeSegment(stem) + ext
}

// suffixed returns path with "_n" inserted before the extension.
func suffixed(path string, n int) string {
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(path, ext), n, ext)
}
