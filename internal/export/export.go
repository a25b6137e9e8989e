// Package export writes application history to Excel workbooks.
package export

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kalambet/apptrack/internal/storage"
)

const (
	applicationsSheet = "Applications"
	summarySheet      = "Summary"
)

var columns = []struct {
	title string
	width float64
}{
	{"Company", 24},
	{"Role", 28},
	{"Location", 18},
	{"Status", 12},
	{"Applied", 12},
	{"Job Link", 40},
	{"Notes", 40},
	{"Interview Date", 14},
	{"Interview Time", 14},
	{"Venue", 18},
	{"Completed", 11},
	{"Difficulty", 11},
	{"Interview Notes", 40},
}

// Workbook builds the workbook for apps. stats, when non-nil, fills the
// summary sheet with a count per status.
func Workbook(apps []storage.ApplicationDetail, stats map[string]int) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", applicationsSheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeApplications(f, apps); err != nil {
		f.Close()
		return nil, fmt.Errorf("applications sheet: %w", err)
	}
	if stats != nil {
		if err := writeSummary(f, stats, len(apps)); err != nil {
			f.Close()
			return nil, fmt.Errorf("summary sheet: %w", err)
		}
	}
	return f, nil
}

// Write streams the workbook for apps to w.
func Write(w io.Writer, apps []storage.ApplicationDetail, stats map[string]int) error {
	f, err := Workbook(apps, stats)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// WriteFile saves the workbook for apps at path, adding the .xlsx extension
// when it is missing. It returns the path written.
func WriteFile(path string, apps []storage.ApplicationDetail, stats map[string]int) (string, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		path += ".xlsx"
	}
	path = filepath.Clean(path)

	f, err := Workbook(apps, stats)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("saving %s: %w", path, err)
	}
	return path, nil
}

func headerStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border: []excelize.Border{
			{Type: "bottom", Color: "1F3864", Style: 1},
		},
	})
}

func writeApplications(f *excelize.File, apps []storage.ApplicationDetail) error {
	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c.title
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(applicationsSheet, col, col, c.width); err != nil {
			return err
		}
	}
	if err := f.SetSheetRow(applicationsSheet, "A1", &header); err != nil {
		return err
	}

	style, err := headerStyle(f)
	if err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(columns), 1)
	if err := f.SetCellStyle(applicationsSheet, "A1", last, style); err != nil {
		return err
	}

	for i, a := range apps {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := applicationRow(a)
		if err := f.SetSheetRow(applicationsSheet, cell, &row); err != nil {
			return err
		}
	}

	return f.SetPanes(applicationsSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func applicationRow(a storage.ApplicationDetail) []any {
	row := []any{a.Company, a.Role, a.Location, a.Status, a.AppliedDate, a.JobLink, a.Notes}
	if iv := a.Interview; iv != nil {
		completed := "No"
		if iv.Completed {
			completed = "Yes"
		}
		row = append(row, iv.Date, iv.Time, iv.Venue, completed, iv.Difficulty, iv.ExperienceNotes)
	}
	return row
}

func writeSummary(f *excelize.File, stats map[string]int, total int) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 22); err != nil {
		return err
	}
	style, err := headerStyle(f)
	if err != nil {
		return err
	}

	rows := [][]any{
		{"Status", "Count"},
	}
	for _, s := range storage.AllowedStatuses {
		rows = append(rows, []any{s, stats[s]})
	}
	rows = append(rows,
		[]any{"Total", total},
		[]any{"Generated", time.Now().Format("2006-01-02 15:04")},
	)
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &r); err != nil {
			return err
		}
	}
	return f.SetCellStyle(summarySheet, "A1", "B1", style)
}
