package profileexport

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"stmtrules/internal/domain"
)

const (
	ColumnsSheet = "Columns"
	SummarySheet = "Summary"
)

var summaryColumns = []string{
	"Profile ID",
	"Bank Name",
	"Format",
	"Columns",
	"Required Columns",
	"Filename Patterns",
	"Text Patterns",
	"Version",
}

// WriteXLSX writes a workbook with a Columns sheet (the catalog) and a
// Summary sheet (one row per profile).
func WriteXLSX(w io.Writer, profiles []*domain.BankProfile) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), ColumnsSheet); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		return fmt.Errorf("creating summary sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	if err := writeSheet(f, ColumnsSheet, columns, Rows(profiles), bold); err != nil {
		return err
	}
	if err := writeSheet(f, SummarySheet, summaryColumns, summaryRows(profiles), bold); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]string, headerStyle int) error {
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("styling %s header: %w", sheet, err)
	}
	for i, row := range rows {
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freezing %s header: %w", sheet, err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	vals := make([]interface{}, len(values))
	for i, v := range values {
		vals[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
		return fmt.Errorf("writing %s row %d: %w", sheet, row, err)
	}
	return nil
}

func summaryRows(profiles []*domain.BankProfile) [][]string {
	out := make([][]string, 0, len(profiles))
	for _, p := range profiles {
		required := 0
		for _, c := range p.Parsing.Columns {
			if c.Required {
				required++
			}
		}
		out = append(out, []string{
			p.ID,
			p.Name,
			string(p.Parsing.Format),
			fmt.Sprint(len(p.Parsing.Columns)),
			fmt.Sprint(required),
			fmt.Sprint(len(p.Identification.FilenamePatterns)),
			fmt.Sprint(len(p.Identification.TextPatterns)),
			p.Version,
		})
	}
	return out
}
