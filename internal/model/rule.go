package model

import (
	"errors"
	"fmt"
	"strings"
)

// FieldKind identifies which part of a document a criterion inspects.
type FieldKind string

// Field kinds recognized by the rule engine.
const (
	FieldFilename FieldKind = "filename"
	FieldContent  FieldKind = "content"
	FieldMetadata FieldKind = "metadata"
)

// FieldTarget is a parsed criterion target such as "content" or "metadata.author".
type FieldTarget struct {
	Kind FieldKind
	Key  string // only set for FieldMetadata
}

// ErrUnknownField is returned by ParseFieldTarget for unrecognized targets.
var ErrUnknownField = errors.New("unknown target field")

// ParseFieldTarget parses a target field name. French aliases used by the
// rule configuration ("nom_fichier", "contenu") are accepted.
func ParseFieldTarget(s string) (FieldTarget, error) {
	trimmed := strings.TrimSpace(s)
	name := strings.ToLower(trimmed)
	switch name {
	case "filename", "nom_fichier", "fichier":
		return FieldTarget{Kind: FieldFilename}, nil
	case "content", "contenu", "texte":
		return FieldTarget{Kind: FieldContent}, nil
	}

	for _, prefix := range []string{"metadata.", "metadonnees.", "métadonnées."} {
		if strings.HasPrefix(name, prefix) {
			// Metadata keys are stored lowercase.
			key := strings.TrimSpace(name[len(prefix):])
			if key == "" {
				return FieldTarget{}, fmt.Errorf("%w: %q has an empty metadata key", ErrUnknownField, s)
			}
			return FieldTarget{Kind: FieldMetadata, Key: key}, nil
		}
	}

	return FieldTarget{}, fmt.Errorf("%w: %q", ErrUnknownField, s)
}

func (t FieldTarget) String() string {
	if t.Kind == FieldMetadata {
		return "metadata." + t.Key
	}
	return string(t.Kind)
}

// CriterionKind names a criterion variant.
type CriterionKind string

// Criterion kinds.
const (
	CriterionRegex   CriterionKind = "regex"
	CriterionKeyword CriterionKind = "keyword"
)

// Criterion is a single side-effect free predicate of a classification rule.
// The set of implementations is closed to this package: RegexCriterion and
// KeywordCriterion.
type Criterion interface {
	Kind() CriterionKind
	Target() FieldTarget
	Pattern() string
	sealed()
}

// RegexCriterion matches when Expr finds at least one match in the target field.
type RegexCriterion struct {
	Field FieldTarget
	Expr  string
}

// Kind implements Criterion.
func (RegexCriterion) Kind() CriterionKind { return CriterionRegex }

// Target implements Criterion.
func (c RegexCriterion) Target() FieldTarget { return c.Field }

// Pattern implements Criterion.
func (c RegexCriterion) Pattern() string { return c.Expr }

func (RegexCriterion) sealed() {}

// KeywordCriterion matches when Keyword occurs in the target field, ignoring
// case and accents.
type KeywordCriterion struct {
	Field   FieldTarget
	Keyword string
}

// Kind implements Criterion.
func (KeywordCriterion) Kind() CriterionKind { return CriterionKeyword }

// Target implements Criterion.
func (c KeywordCriterion) Target() FieldTarget { return c.Field }

// Pattern implements Criterion.
func (c KeywordCriterion) Pattern() string { return c.Keyword }

func (KeywordCriterion) sealed() {}

// ClassificationRule is a named conjunction of criteria with the filing
// action to apply when all of them match.
type ClassificationRule struct {
	Action   ActionDescriptor `json:"action"`
	Name     string           `json:"name"`
	Category string           `json:"category"`
	Criteria []Criterion      `json:"-"`
}

// TargetCategory returns the category assigned by the rule, defaulting to its name.
func (r ClassificationRule) TargetCategory() string {
	if r.Category != "" {
		return r.Category
	}
	return r.Name
}
