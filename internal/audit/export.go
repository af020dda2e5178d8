package audit

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/Veraticus/paperflow/internal/model"
)

// ExportSheet is the worksheet written by ExportXLSX.
const ExportSheet = "Audit"

var exportHeaders = []string{
	"Timestamp",
	"Run",
	"Source",
	"Target",
	"Category",
	"Provenance",
	"Rule",
	"Confidence",
	"Action",
	"Outcome",
	"Date",
	"Amount",
	"Identifier",
	"Error",
	"Note",
}

// ExportXLSX writes records as a spreadsheet for manual review.
func ExportXLSX(w io.Writer, records []model.AuditRecord) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", ExportSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(ExportSheet, cell, h); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}

	for i, r := range records {
		row := i + 2
		values := []any{
			r.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			r.RunID,
			r.SourcePath,
			r.TargetPath,
			r.Classification.Category,
			string(r.Classification.Provenance),
			r.Classification.RuleName,
			r.Classification.Confidence,
			string(r.Action.Kind),
			string(r.Outcome),
			fieldValue(r.Fields, model.FieldDate),
			fieldValue(r.Fields, model.FieldAmount),
			fieldValue(r.Fields, model.FieldIdentifier),
			r.Error,
			r.Note,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(ExportSheet, cell, v); err != nil {
				return fmt.Errorf("failed to write row %d: %w", row, err)
			}
		}
	}

	_ = f.SetColWidth(ExportSheet, "A", "B", 20)
	_ = f.SetColWidth(ExportSheet, "C", "D", 48)
	_ = f.SetColWidth(ExportSheet, "E", "J", 14)
	_ = f.SetColWidth(ExportSheet, "K", "M", 18)
	_ = f.SetColWidth(ExportSheet, "N", "O", 40)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func fieldValue(fields model.Fields, name model.FieldName) string {
	if f, ok := fields.Get(name); ok {
		return f.Value
	}
	return ""
}
