package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/Veraticus/paperflow/internal/model"
	"github.com/Veraticus/paperflow/internal/pipeline"
	"github.com/Veraticus/paperflow/internal/rules"
)

// RenderSummary shows the counts of a finished run.
func RenderSummary(s pipeline.Summary) string {
	lines := []string{
		SubtleStyle.Render("Run " + s.RunID),
		fmt.Sprintf("Documents:  %d", s.Total),
		SuccessStyle.Render(fmt.Sprintf("Filed:      %d", s.Succeeded)),
		SubtleStyle.Render(fmt.Sprintf("Skipped:    %d", s.Skipped)),
		WarningStyle.Render(fmt.Sprintf("To review:  %d", s.Unresolved)),
	}
	if s.Failed > 0 {
		lines = append(lines, ErrorStyle.Render(fmt.Sprintf("Failed:     %d", s.Failed)))
	}
	if s.Abandoned > 0 {
		lines = append(lines, WarningStyle.Render(fmt.Sprintf("Not started: %d", s.Abandoned)))
	}
	if s.AuditErrors > 0 {
		lines = append(lines, ErrorStyle.Render(fmt.Sprintf("Audit write errors: %d", s.AuditErrors)))
	}
	lines = append(lines, SubtleStyle.Render("Took "+s.Duration.Round(time.Millisecond).String()))

	return RenderBox("Run summary", strings.Join(lines, "\n"))
}

// RenderTable lays out rows under a header.
func RenderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}

	renderRow := func(cells []string, style lipgloss.Style) string {
		parts := make([]string, len(headers))
		for i := range headers {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			parts[i] = TableCellStyle.Width(widths[i] + 2).Render(cell)
		}
		return style.Render(lipgloss.JoinHorizontal(lipgloss.Top, parts...))
	}

	var b strings.Builder
	b.WriteString(renderRow(headers, TableHeaderStyle))
	for _, row := range rows {
		b.WriteString("\n")
		b.WriteString(renderRow(row, lipgloss.NewStyle()))
	}
	return b.String()
}

// RenderAuditRecords lists audit records, one line each.
func RenderAuditRecords(records []model.AuditRecord) string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.Timestamp.Local().Format("2006-01-02 15:04"),
			string(r.Outcome),
			r.Classification.Category,
			string(r.Classification.Provenance),
			strconv.FormatFloat(r.Classification.Confidence, 'f', 2, 64),
			r.SourcePath,
			r.TargetPath,
		})
	}
	return RenderTable([]string{"When", "Outcome", "Category", "By", "Conf.", "Source", "Target"}, rows)
}

// RenderRules lists rules in evaluation order.
func RenderRules(list []rules.Rule) string {
	rows := make([][]string, 0, len(list))
	for i, r := range list {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			r.Name,
			r.TargetCategory(),
			strconv.Itoa(len(r.Criteria)),
			string(r.Action.Kind),
			r.Action.TargetTemplate,
		})
	}
	return RenderTable([]string{"#", "Rule", "Category", "Criteria", "Action", "Target"}, rows)
}

// RenderExplain shows which criteria of each rule matched a document.
func RenderExplain(results []rules.RuleResult) string {
	var b strings.Builder
	for _, rr := range results {
		head := FormatError(rr.Rule.Name)
		if rr.Matched {
			head = FormatSuccess(rr.Rule.Name + " → " + rr.Rule.TargetCategory())
		}
		b.WriteString(head)
		b.WriteString("\n")
		for _, cr := range rr.Criteria {
			mark := ErrorIcon
			if cr.Matched {
				mark = SuccessIcon
			}
			c := cr.Criterion
			fmt.Fprintf(&b, "  %s %s %s %q\n", mark, c.Kind(), c.Target(), c.Pattern())
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
