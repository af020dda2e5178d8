package pipeline

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Veraticus/paperflow/internal/model"
)

// Summary counts the outcomes of one run.
type Summary struct {
	RunID       string        `json:"run_id"`
	Duration    time.Duration `json:"-"`
	Total       int           `json:"total"`
	Succeeded   int           `json:"succeeded"`
	Skipped     int           `json:"skipped"`
	Failed      int           `json:"failed"`
	Unresolved  int           `json:"unresolved"`
	Abandoned   int           `json:"abandoned"`
	AuditErrors int           `json:"audit_errors"`
}

// Add counts one result.
func (s *Summary) Add(r Result) {
	s.Total++
	if r.AuditErr != nil {
		s.AuditErrors++
	}
	if r.Err != nil {
		s.Abandoned++
		return
	}
	switch r.Record.Outcome {
	case model.OutcomeSuccess:
		s.Succeeded++
	case model.OutcomeSkipped:
		s.Skipped++
	case model.OutcomeFailed:
		s.Failed++
	}
	if r.Record.Classification.IsUnresolved() {
		s.Unresolved++
	}
}

// Summarize counts a finished result list.
func Summarize(runID string, results []Result) Summary {
	s := Summary{RunID: runID}
	for _, r := range results {
		s.Add(r)
	}
	return s
}

// ExitCode is zero only when every document was filed or skipped and
// every audit record was written.
func (s Summary) ExitCode() int {
	if s.Failed > 0 || s.AuditErrors > 0 || s.Abandoned > 0 {
		return 1
	}
	return 0
}

// JSON renders the summary for machine consumption.
func (s Summary) JSON() string {
	type summaryJSON struct {
		Summary
		Duration string `json:"duration"`
	}
	data, err := json.Marshal(summaryJSON{Summary: s, Duration: s.Duration.Round(time.Millisecond).String()})
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal summary: %v"}`, err)
	}
	return string(data)
}
