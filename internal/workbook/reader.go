package workbook

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"tenderscan/internal/models"
)

// ErrStructureNotFound means a required header, terminator or column is
// missing from the workbook. Fatal for the operation that hit it: without a
// bounded item list (or a resolvable layout) nothing downstream can run.
var ErrStructureNotFound = errors.New("workbook structure not found")

const (
	// itemHeaderMarker labels the item-name column.
	itemHeaderMarker = "наименование"
	// totalMarker terminates the item list.
	totalMarker = "итого без ндс"
)

// skipPrefixes start cells that sit inside the item range but are not items.
var skipPrefixes = []string{
	"возможность поставки",
	"валюта",
}

// ReadItems scans every sheet, every cell, in sheet-then-row-then-column
// order, for the item-name header; the first hit fixes the column and the data
// start. The list runs down to the grand-total terminator (exclusive). Each
// item's name is its cell text up to the first line break; positions are
// assigned 1-based in read order.
func ReadItems(path string) ([]models.Item, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}

		col, startRow, found := findItemHeader(rows)
		if !found {
			continue
		}

		endRow := -1
		for i := startRow; i < len(rows); i++ {
			if containsMarker(cellAt(rows, i, col), totalMarker) {
				endRow = i
				break
			}
		}
		if endRow < 0 {
			return nil, fmt.Errorf("%w: no %q terminator below item header on sheet %q",
				ErrStructureNotFound, totalMarker, sheet)
		}

		return collectItems(rows, col, startRow, endRow), nil
	}

	return nil, fmt.Errorf("%w: no %q header in any sheet", ErrStructureNotFound, itemHeaderMarker)
}

func findItemHeader(rows [][]string) (col, startRow int, found bool) {
	for i, row := range rows {
		for j, val := range row {
			if containsMarker(val, itemHeaderMarker) {
				return j, i + 1, true
			}
		}
	}
	return 0, 0, false
}

func collectItems(rows [][]string, col, startRow, endRow int) []models.Item {
	var items []models.Item
	for i := startRow; i < endRow; i++ {
		raw := strings.TrimSpace(cellAt(rows, i, col))
		if raw == "" || isSkipped(raw) {
			continue
		}
		name := raw
		if idx := strings.IndexByte(name, '\n'); idx >= 0 {
			name = name[:idx]
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		items = append(items, models.Item{
			Raw:      raw,
			Name:     name,
			Position: len(items) + 1,
		})
	}
	return items
}

func isSkipped(text string) bool {
	lower := strings.ToLower(text)
	for _, prefix := range skipPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func containsMarker(text, marker string) bool {
	return strings.Contains(strings.ToLower(text), marker)
}

func cellAt(rows [][]string, row, col int) string {
	if row < 0 || row >= len(rows) {
		return ""
	}
	if col < 0 || col >= len(rows[row]) {
		return ""
	}
	return rows[row][col]
}
