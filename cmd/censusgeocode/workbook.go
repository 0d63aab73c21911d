package main

import (
	"fmt"
	"strings"

	"github.com/sdsvn/gocensus"
	"github.com/xuri/excelize/v2"
)

// readWorkbook reads address rows from the first sheet of an .xlsx file.
// Columns are the same as the CSV batch format: id, street, city, state,
// zip. Blank rows are skipped.
func readWorkbook(path string) ([]gocensus.AddressRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook %s has no sheets", path)
	}

	cells, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}

	rows := make([]gocensus.AddressRow, 0, len(cells))
	for _, row := range cells {
		cell := func(i int) string {
			if i < len(row) {
				return strings.TrimSpace(row[i])
			}
			return ""
		}

		r := gocensus.AddressRow{ID: cell(0), Street: cell(1), City: cell(2), State: cell(3), Zip: cell(4)}
		if r == (gocensus.AddressRow{}) {
			continue
		}
		rows = append(rows, r)
	}
	return rows, nil
}
