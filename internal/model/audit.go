package model

import "time"

// Outcome is the result of a filing action.
type Outcome string

// Outcomes recorded in the audit trail.
const (
	OutcomeSuccess Outcome = "success"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// AuditRecord is the append-only trace of one document in one pipeline run.
type AuditRecord struct {
	Timestamp      time.Time              `json:"timestamp"`
	Classification ResolvedClassification `json:"classification"`
	Action         ActionDescriptor       `json:"action"`
	DocumentID     string                 `json:"document_id"`
	RunID          string                 `json:"run_id"`
	SourcePath     string                 `json:"source_path"`
	TargetPath     string                 `json:"target_path,omitempty"`
	Outcome        Outcome                `json:"outcome"`
	Error          string                 `json:"error,omitempty"`
	Note           string                 `json:"note,omitempty"`
	Fields         Fields                 `json:"fields"`
	ID             int64                  `json:"id,omitempty"`
}
