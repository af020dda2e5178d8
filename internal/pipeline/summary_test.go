package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/paperflow/internal/model"
	"github.com/Veraticus/paperflow/internal/resolver"
)

func TestSummarize(t *testing.T) {
	unresolved := resolver.Unresolved()
	results := []Result{
		{Record: model.AuditRecord{Outcome: model.OutcomeSuccess}},
		{Record: model.AuditRecord{Outcome: model.OutcomeSuccess, Classification: unresolved}},
		{Record: model.AuditRecord{Outcome: model.OutcomeSkipped}},
		{Record: model.AuditRecord{Outcome: model.OutcomeFailed}},
		{Err: context.Canceled},
	}

	s := Summarize("run-1", results)
	assert.Equal(t, Summary{RunID: "run-1", Total: 5, Succeeded: 2, Skipped: 1, Failed: 1, Unresolved: 1, Abandoned: 1}, s)
	assert.Equal(t, 1, s.ExitCode())
}

func TestSummary_ExitCode(t *testing.T) {
	tests := []struct {
		name    string
		summary Summary
		want    int
	}{
		{name: "all filed", summary: Summary{Total: 2, Succeeded: 1, Skipped: 1}, want: 0},
		{name: "unresolved is not a failure", summary: Summary{Total: 1, Succeeded: 1, Unresolved: 1}, want: 0},
		{name: "empty run", summary: Summary{}, want: 0},
		{name: "failed", summary: Summary{Total: 1, Failed: 1}, want: 1},
		{name: "audit error", summary: Summary{Total: 1, Succeeded: 1, AuditErrors: 1}, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.summary.ExitCode())
		})
	}
}

func TestSummary_AddAuditError(t *testing.T) {
	var s Summary
	s.Add(Result{Record: model.AuditRecord{Outcome: model.OutcomeSuccess}, AuditErr: errors.New("locked")})
	assert.Equal(t, 1, s.AuditErrors)
	assert.Equal(t, 1, s.Succeeded)
}

func TestSummary_JSON(t *testing.T) {
	s := Summary{RunID: "r", Total: 1, Succeeded: 1, Duration: 1500 * time.Millisecond}
	assert.JSONEq(t,
		`{"run_id":"r","total":1,"succeeded":1,"skipped":0,"failed":0,"unresolved":0,"abandoned":0,"audit_errors":0,"duration":"1.5s"}`,
		s.JSON())
}
