// Package resolver fuses rule matches and model predictions into one classification.
package resolver

import (
	"github.com/Veraticus/paperflow/internal/model"
)

// DefaultThreshold is the model confidence needed to accept a prediction.
const DefaultThreshold = 0.6

// Resolver applies a fixed precedence: a matched rule always wins, then a
// prediction at or above the threshold, otherwise the document is unresolved.
type Resolver struct {
	threshold float64
}

// New creates a resolver with the given model confidence threshold.
func New(threshold float64) *Resolver {
	return &Resolver{threshold: threshold}
}

// Threshold returns the configured model confidence threshold.
func (r *Resolver) Threshold() float64 {
	return r.threshold
}

// Resolve picks the final category. A nil prediction counts as score 0.
func (r *Resolver) Resolve(rule *model.ClassificationRule, pred *model.Prediction) model.ResolvedClassification {
	if rule != nil {
		return model.ResolvedClassification{
			Category:   rule.TargetCategory(),
			Provenance: model.ProvenanceRule,
			RuleName:   rule.Name,
			Confidence: 1.0,
		}
	}

	// A prediction without a label carries no usable score.
	var score float64
	if pred != nil && pred.Label != "" {
		score = pred.Score
	}

	if pred != nil && pred.Label != "" && score >= r.threshold {
		return model.ResolvedClassification{
			Category:   pred.Label,
			Provenance: model.ProvenanceModel,
			Confidence: score,
		}
	}

	return model.ResolvedClassification{
		Category:   model.UnresolvedCategory,
		Provenance: model.ProvenanceUnresolved,
		Confidence: score,
	}
}

// Unresolved is the classification of a document without usable OCR data.
func Unresolved() model.ResolvedClassification {
	return model.ResolvedClassification{
		Category:   model.UnresolvedCategory,
		Provenance: model.ProvenanceUnresolved,
	}
}
