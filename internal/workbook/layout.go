package workbook

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	layoutScanRows = 20
	layoutScanCols = 10
	// positionMarker labels the 1-based item-number column.
	positionMarker = "№"
)

// SheetLayout pins down the structural columns of one tender sheet. All
// indices are 1-based excelize coordinates. PositionCol is 0 when the sheet
// has no number column; row matching then falls back to name order.
type SheetLayout struct {
	Sheet       string
	HeaderRow   int
	NameCol     int
	PositionCol int
}

// ResolveLayout scans the top-left window of every sheet for the name header
// and, within the same window, the position-number header. Layouts differ
// between files sharing the same semantic shape, so this runs fresh on every
// merge rather than trusting remembered indices.
func ResolveLayout(f *excelize.File) (SheetLayout, error) {
	for _, sheet := range f.GetSheetList() {
		layout, found := scanSheet(f, sheet)
		if found {
			return layout, nil
		}
	}
	return SheetLayout{}, fmt.Errorf("%w: no %q header within the first %d rows of any sheet",
		ErrStructureNotFound, itemHeaderMarker, layoutScanRows)
}

func scanSheet(f *excelize.File, sheet string) (SheetLayout, bool) {
	layout := SheetLayout{Sheet: sheet}

	for row := 1; row <= layoutScanRows; row++ {
		for col := 1; col <= layoutScanCols; col++ {
			val := cellValue(f, sheet, col, row)
			if val == "" {
				continue
			}
			if layout.NameCol == 0 && containsMarker(val, itemHeaderMarker) {
				layout.NameCol = col
				layout.HeaderRow = row
			}
			if layout.PositionCol == 0 && strings.Contains(val, positionMarker) {
				layout.PositionCol = col
			}
		}
	}

	return layout, layout.NameCol != 0
}

func cellValue(f *excelize.File, sheet string, col, row int) string {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return ""
	}
	val, err := f.GetCellValue(sheet, cell)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(val)
}
