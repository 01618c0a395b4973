package workreport

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// GenerateCSV generates a CSV representation of a report
func GenerateCSV(report *Report) string {
	var sb strings.Builder

	sb.WriteString("=== Work Item Report ===\n")
	if report.User != "" {
		sb.WriteString(fmt.Sprintf("User,%s\n", report.User))
	}
	sb.WriteString(fmt.Sprintf("Period,%s..%s\n", report.Start, report.End))
	sb.WriteString("\n")

	s := report.Summary
	sb.WriteString("=== Summary ===\n")
	sb.WriteString("Metric,Value\n")
	sb.WriteString(fmt.Sprintf("Days,%d\n", s.DayCount))
	sb.WriteString(fmt.Sprintf("Actual Minutes,%d\n", s.TotalActualMinutes))
	sb.WriteString(fmt.Sprintf("Actual Hours,%v\n", s.TotalActualHours))
	sb.WriteString(fmt.Sprintf("Expected Minutes,%d\n", s.TotalExpectedMinutes))
	sb.WriteString(fmt.Sprintf("Expected Hours,%v\n", s.TotalExpectedHours))
	sb.WriteString(fmt.Sprintf("Average Hours/Day,%v\n", s.AverageHoursPerDay))
	sb.WriteString(fmt.Sprintf("Unaccounted Minutes,%d\n", s.UnaccountedMinutes))
	sb.WriteString(fmt.Sprintf("Invalid Days,%s\n", strings.Join(s.InvalidDays, " ")))
	sb.WriteString("\n")

	sb.WriteString("=== Days ===\n")
	sb.WriteString("Date,Weekday,Expected,Actual,Difference,Percent,Pre-holiday,Invalid\n")
	for _, d := range report.Days {
		sb.WriteString(fmt.Sprintf("%s,%s,%d,%d,%d,%v,%t,%t\n",
			d.Date, d.Weekday, d.ExpectedMinutes, d.ActualMinutes, d.Difference, d.Percent, d.PreHoliday, d.Invalid))
	}

	return sb.String()
}

var dayColumns = []string{"Date", "Weekday", "Expected (min)", "Actual (min)", "Difference", "Percent", "Pre-holiday", "Invalid"}

// WriteXLSX writes one worksheet per report to w.
func WriteXLSX(w io.Writer, reports []*Report) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true, Color: "#FFFFFF"},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	invalidStyle, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#F8CBAD"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create highlight style: %w", err)
	}

	used := map[string]int{"Sheet1": 1}
	var first string
	for i, report := range reports {
		name := sheetName(report, i, used)
		if err := writeSheet(f, name, report, headerStyle, invalidStyle); err != nil {
			return fmt.Errorf("failed to create sheet for %s: %w", name, err)
		}
		if i == 0 {
			first = name
		}
	}

	if first != "" {
		if err := f.DeleteSheet("Sheet1"); err != nil {
			return fmt.Errorf("failed to remove default sheet: %w", err)
		}
		if idx, err := f.GetSheetIndex(first); err == nil && idx >= 0 {
			f.SetActiveSheet(idx)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write excel file: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, name string, report *Report, headerStyle, invalidStyle int) error {
	if _, err := f.NewSheet(name); err != nil {
		return err
	}

	s := report.Summary
	meta := [][]any{
		{"User", report.User},
		{"Period", report.Start + " .. " + report.End},
		{"Days", s.DayCount},
		{"Actual Hours", s.TotalActualHours},
		{"Expected Hours", s.TotalExpectedHours},
		{"Average Hours/Day", s.AverageHoursPerDay},
		{"Unaccounted Minutes", s.UnaccountedMinutes},
	}
	row := 1
	for _, m := range meta {
		if err := f.SetSheetRow(name, cellName(1, row), &m); err != nil {
			return err
		}
		row++
	}

	row++
	header := make([]any, len(dayColumns))
	for i, c := range dayColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(name, cellName(1, row), &header); err != nil {
		return err
	}
	if err := f.SetCellStyle(name, cellName(1, row), cellName(len(dayColumns), row), headerStyle); err != nil {
		return err
	}

	for _, d := range report.Days {
		row++
		values := []any{d.Date, d.Weekday, d.ExpectedMinutes, d.ActualMinutes, d.Difference, d.Percent, d.PreHoliday, d.Invalid}
		if err := f.SetSheetRow(name, cellName(1, row), &values); err != nil {
			return err
		}
		if d.Invalid {
			if err := f.SetCellStyle(name, cellName(1, row), cellName(len(dayColumns), row), invalidStyle); err != nil {
				return err
			}
		}
	}

	return f.SetColWidth(name, "A", "H", 16)
}

func sheetName(report *Report, i int, used map[string]int) string {
	name := report.User
	if name == "" {
		name = fmt.Sprintf("Report %d", i+1)
	}
	name = sanitizeSheetName(name)
	used[name]++
	if n := used[name]; n > 1 {
		suffix := fmt.Sprintf(" (%d)", n)
		name = truncateRunes(name, maxSheetName-len(suffix)) + suffix
	}
	return name
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func sanitizeSheetName(name string) string {
	name = strings.NewReplacer("/", "-", "\\", "-", "?", "", "*", "", "[", "(", "]", ")", ":", "-").Replace(name)
	return truncateRunes(name, maxSheetName)
}

// maxSheetName is Excel's sheet name limit, counted in characters.
const maxSheetName = 31

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
