package export

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/aashishaacharya/IMUdb-web/internal/domain"
)

const (
	EditsSheet   = "Pending Edits"
	ChangesSheet = "Field Changes"

	// ContentType is the MIME type of the generated workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var editsHeader = []string{
	"Edit ID",
	"Site ID",
	"Site Name",
	"Status",
	"Requested By",
	"Requested At",
	"Reviewed By",
	"Reviewed At",
	"Review Comment",
	"Summary",
	"Submitter Comment",
}

var changesHeader = []string{
	"Edit ID",
	"Site ID",
	"Section",
	"Field",
	"Old Value",
	"New Value",
}

// WriteReviewLog renders edits as an XLSX workbook with one row per edit and
// one row per changed field. names maps user ids to display names.
func WriteReviewLog(w io.Writer, edits []domain.PendingEdit, names map[uuid.UUID]string) error {
	f := excelize.NewFile()
	defer f.Close()

	editsIndex, err := f.NewSheet(EditsSheet)
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if _, err := f.NewSheet(ChangesSheet); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(editsIndex)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeHeader(f, EditsSheet, editsHeader, headerStyle); err != nil {
		return err
	}
	if err := writeHeader(f, ChangesSheet, changesHeader, headerStyle); err != nil {
		return err
	}

	changeRow := 2
	for i, edit := range edits {
		row := []any{
			edit.ID.String(),
			edit.TargetID,
			stringValue(edit.TargetName),
			string(edit.Status),
			lookupName(names, &edit.RequestedBy),
			formatTime(&edit.RequestedAt),
			lookupName(names, edit.ReviewedBy),
			formatTime(edit.ReviewedAt),
			stringValue(edit.ReviewComment),
			domain.ChangeSummary(edit.Changes),
			edit.Changes.Comment,
		}
		if err := setRow(f, EditsSheet, i+2, row); err != nil {
			return err
		}

		for _, section := range edit.Changes.Sections {
			for _, entry := range section.Diff {
				old := ""
				if entry.Change.OldPresent {
					old = formatValue(entry.Change.Old)
				}
				change := []any{
					edit.ID.String(),
					edit.TargetID,
					section.Key.Label(),
					entry.Field,
					old,
					formatValue(entry.Change.New),
				}
				if err := setRow(f, ChangesSheet, changeRow, change); err != nil {
					return err
				}
				changeRow++
			}
		}
	}

	if err := setWidths(f, EditsSheet, []float64{38, 12, 24, 12, 16, 22, 16, 22, 30, 40, 30}); err != nil {
		return err
	}
	if err := setWidths(f, ChangesSheet, []float64{38, 12, 22, 26, 24, 24}); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	values := make([]any, len(headers))
	for i, header := range headers {
		values[i] = header
	}
	if err := setRow(f, sheet, 1, values); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("failed to set header style: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", row, sheet, err)
	}
	return nil
}

func setWidths(f *excelize.File, sheet string, widths []float64) error {
	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("failed to convert column number: %w", err)
		}
		if err := f.SetColWidth(sheet, col, col, width); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}
	return nil
}

func lookupName(names map[uuid.UUID]string, id *uuid.UUID) string {
	if id == nil || *id == uuid.Nil {
		return ""
	}
	if name, ok := names[*id]; ok && name != "" {
		return name
	}
	return id.String()
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func formatTime(value *time.Time) string {
	if value == nil || value.IsZero() {
		return ""
	}
	return value.UTC().Format("2006-01-02 15:04:05")
}

// formatValue renders a changed field as text; nil stays blank.
func formatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case float64:
		return fmt.Sprintf("%g", typed)
	default:
		return fmt.Sprint(typed)
	}
}
