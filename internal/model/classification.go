package model

// Provenance records which subsystem produced the final category.
type Provenance string

// Provenance values.
const (
	ProvenanceRule       Provenance = "rule"
	ProvenanceModel      Provenance = "model"
	ProvenanceUnresolved Provenance = "unresolved"
)

// UnresolvedCategory is the holding category for documents awaiting manual review.
const UnresolvedCategory = "unresolved"

// Prediction is the statistical classifier output for one document.
type Prediction struct {
	Label  string  `json:"label"`
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

// ResolvedClassification is the fused outcome of rule matching and the model.
type ResolvedClassification struct {
	Category   string     `json:"category"`
	Provenance Provenance `json:"provenance"`
	RuleName   string     `json:"rule,omitempty"`
	Confidence float64    `json:"confidence"`
}

// IsUnresolved reports whether the document was routed to the holding category.
func (r ResolvedClassification) IsUnresolved() bool {
	return r.Provenance == ProvenanceUnresolved
}
