package excel

import (
	"fmt"
	"math"

	"godex/domain/detest"

	"github.com/xuri/excelize/v2"
)

// WriteTable saves a summary table to a workbook, one gene per row.
func WriteTable(path string, t *detest.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	names := t.ColumnNames()
	header := make([]interface{}, len(names))
	for i, n := range names {
		header[i] = n
	}
	if err := f.SetSheetRow(DefaultSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := 0; i < t.Len(); i++ {
		row := t.Row(i)
		for k, v := range row {
			if fv, ok := v.(float64); ok && math.IsNaN(fv) {
				row[k] = "NaN"
			}
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(DefaultSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}
