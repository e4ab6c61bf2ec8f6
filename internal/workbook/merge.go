package workbook

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"tenderscan/internal/models"
	"tenderscan/internal/scraper"
)

// ErrSaveFailed wraps any workbook-level I/O failure on save. The save is
// all-or-nothing: in-memory writes already applied are lost with it.
var ErrSaveFailed = errors.New("workbook save failed")

const (
	deltaHeaderPrefix = "Разница"
	winnerRankMarker  = "место"
	maxHeaderScanCols = 50
)

// DeltaCategory orders the delta coloring from worst to best outcome.
type DeltaCategory int

const (
	// DeltaHigher means the scraped price exceeds the reference.
	DeltaHigher DeltaCategory = iota
	// DeltaFar means the scraped price undercuts the reference by more than
	// the far threshold.
	DeltaFar
	// DeltaModerate sits between the moderate and far thresholds.
	DeltaModerate
	// DeltaNeutral covers deltas below the moderate threshold, zero included.
	DeltaNeutral
)

// ClassifyDelta buckets reference minus scraped against the two thresholds,
// both expressed as fractions of the reference price.
func ClassifyDelta(ref, scraped, moderateThreshold, farThreshold float64) DeltaCategory {
	delta := ref - scraped
	if delta < 0 {
		return DeltaHigher
	}
	if ref <= 0 {
		return DeltaNeutral
	}
	ratio := delta / ref
	switch {
	case ratio > farThreshold:
		return DeltaFar
	case ratio >= moderateThreshold:
		return DeltaModerate
	default:
		return DeltaNeutral
	}
}

// MergeOptions tune the merge engine. The thresholds, scan window and colors
// are tied to one spreadsheet template; they stay overridable rather than
// hard-coded. Zero values fall back to defaults.
type MergeOptions struct {
	HigherColor   string
	FarColor      string
	ModerateColor string
	NeutralColor  string

	// ModerateThreshold and FarThreshold are fractions of the reference price.
	ModerateThreshold float64
	FarThreshold      float64

	// LinkScanWindow bounds the highlight-cell search below an item's base
	// row; LinkOffset is the fallback row offset when nothing is marked.
	LinkScanWindow  int
	LinkOffset      int
	HighlightColors []string
	LinkLabel       string

	Logger *slog.Logger
}

func (o *MergeOptions) applyDefaults() {
	if o.HigherColor == "" {
		o.HigherColor = "FFC7CE"
	}
	if o.FarColor == "" {
		o.FarColor = "C6EFCE"
	}
	if o.ModerateColor == "" {
		o.ModerateColor = "FFEB9C"
	}
	if o.NeutralColor == "" {
		o.NeutralColor = "FFFFFF"
	}
	if o.ModerateThreshold <= 0 {
		o.ModerateThreshold = 0.01
	}
	if o.FarThreshold <= 0 {
		o.FarThreshold = 0.10
	}
	if o.LinkScanWindow <= 0 {
		o.LinkScanWindow = 13
	}
	if o.LinkOffset <= 0 {
		o.LinkOffset = 3
	}
	if len(o.HighlightColors) == 0 {
		o.HighlightColors = []string{"FFFF00", "FFC000"}
	}
	if o.LinkLabel == "" {
		o.LinkLabel = "Ссылка"
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Merger writes a finished result table back into the tender workbook's
// native layout. Merging is idempotent: re-running against its own output
// reuses the result column and rewrites identical cells instead of appending
// duplicates.
type Merger struct {
	opts   MergeOptions
	logger *slog.Logger
}

func NewMerger(opts MergeOptions) *Merger {
	opts.applyDefaults()
	return &Merger{
		opts:   opts,
		logger: opts.Logger.With("component", "merger"),
	}
}

// Merge opens outputPath when it already exists (so a second marketplace
// lands next to the first), otherwise originalPath, writes the table under
// the given marketplace label and saves to outputPath.
func (m *Merger) Merge(originalPath, outputPath string, table models.ResultTable, label string) error {
	source := originalPath
	if _, err := os.Stat(outputPath); err == nil {
		source = outputPath
	}

	f, err := excelize.OpenFile(source)
	if err != nil {
		return fmt.Errorf("failed to open workbook %s: %w", source, err)
	}
	defer f.Close()

	layout, err := ResolveLayout(f)
	if err != nil {
		return err
	}

	resultCol, created, err := m.resolveResultColumn(f, layout, label)
	if err != nil {
		return err
	}
	deltaCol, err := m.resolveDeltaColumn(f, layout, resultCol, label)
	if err != nil {
		return err
	}
	m.logger.Info("columns resolved",
		"sheet", layout.Sheet, "result_col", resultCol, "delta_col", deltaCol, "created", created)

	participants := m.participantColumns(f, layout, resultCol)
	skip := mergedContinuations(f, layout.Sheet)
	itemRows := m.itemRows(f, layout)
	lastRow := usedRows(f, layout.Sheet)

	if err := m.applyColumnBorders(f, layout, resultCol, deltaCol, lastRow); err != nil {
		return err
	}

	for _, pos := range table.Positions() {
		res := table.Get(pos)
		if !res.Found() && res.Link == "" {
			continue
		}
		base, ok := itemRows[pos]
		if !ok {
			m.logger.Warn("item row not found, skipping", "position", pos)
			continue
		}
		if err := m.writeItem(f, layout, resultCol, deltaCol, participants, skip, base, res); err != nil {
			return err
		}
	}

	if err := f.SaveAs(outputPath); err != nil {
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	return nil
}

// resolveResultColumn reuses an existing header containing the marketplace
// label, else appends a new column after the rightmost populated header.
func (m *Merger) resolveResultColumn(f *excelize.File, layout SheetLayout, label string) (int, bool, error) {
	rightmost := layout.NameCol
	for col := layout.NameCol + 1; col <= layout.NameCol+maxHeaderScanCols; col++ {
		val := cellValue(f, layout.Sheet, col, layout.HeaderRow)
		if val == "" {
			continue
		}
		if containsMarker(val, strings.ToLower(label)) {
			return col, false, nil
		}
		rightmost = col
	}

	col := rightmost + 1
	if err := m.writeHeader(f, layout, col, label, m.headerStyle); err != nil {
		return 0, false, err
	}
	return col, true, nil
}

// resolveDeltaColumn lives immediately right of the result column. A matching
// header from a prior run is reused so re-merging never duplicates it.
func (m *Merger) resolveDeltaColumn(f *excelize.File, layout SheetLayout, resultCol int, label string) (int, error) {
	col := resultCol + 1
	header := deltaHeaderPrefix + " " + label
	if cellValue(f, layout.Sheet, col, layout.HeaderRow) == header {
		return col, nil
	}
	if err := m.writeHeader(f, layout, col, header, m.deltaHeaderStyle); err != nil {
		return 0, err
	}
	return col, nil
}

func (m *Merger) writeHeader(f *excelize.File, layout SheetLayout, col int, text string,
	style func(*excelize.File) (int, error)) error {
	cell, err := excelize.CoordinatesToCellName(col, layout.HeaderRow)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(layout.Sheet, cell, text); err != nil {
		return fmt.Errorf("failed to write header %q: %w", text, err)
	}
	id, err := style(f)
	if err != nil {
		return err
	}
	return f.SetCellStyle(layout.Sheet, cell, cell, id)
}

// participantColumns are the populated headers between the name column and
// the result column. Delta columns from earlier merges are not bidders.
func (m *Merger) participantColumns(f *excelize.File, layout SheetLayout, resultCol int) []int {
	var out []int
	for col := layout.NameCol + 1; col < resultCol; col++ {
		val := cellValue(f, layout.Sheet, col, layout.HeaderRow)
		if val == "" || strings.HasPrefix(val, deltaHeaderPrefix) {
			continue
		}
		out = append(out, col)
	}
	return out
}

// itemRows maps item positions to base rows. With a position column each row
// is matched by its exact number text; without one, item cells below the name
// header are counted in order, mirroring how the reader assigned positions.
func (m *Merger) itemRows(f *excelize.File, layout SheetLayout) map[int]int {
	out := make(map[int]int)
	last := usedRows(f, layout.Sheet)

	if layout.PositionCol > 0 {
		for row := layout.HeaderRow + 1; row <= last; row++ {
			val := cellValue(f, layout.Sheet, layout.PositionCol, row)
			if val == "" {
				continue
			}
			if pos, err := strconv.Atoi(val); err == nil && pos > 0 {
				if _, dup := out[pos]; !dup {
					out[pos] = row
				}
			}
		}
		return out
	}

	pos := 0
	for row := layout.HeaderRow + 1; row <= last; row++ {
		val := cellValue(f, layout.Sheet, layout.NameCol, row)
		if val == "" || isSkipped(val) {
			continue
		}
		if containsMarker(val, totalMarker) {
			break
		}
		pos++
		out[pos] = row
	}
	return out
}

func (m *Merger) writeItem(f *excelize.File, layout SheetLayout, resultCol, deltaCol int,
	participants []int, skip map[string]bool, base int, res models.OfferResult) error {

	winnerCol := m.winnerColumn(f, layout, participants, base)

	// base+1 carries the pre-tax price, base+2 the tax-inclusive one.
	prices := [2]string{res.Price, res.BusinessPrice}
	for i, display := range prices {
		row := base + 1 + i
		amount, ok := scraper.DigitsValue(display)
		if !ok {
			continue
		}
		if err := m.setNumber(f, layout.Sheet, resultCol, row, amount, skip); err != nil {
			return err
		}
		if winnerCol == 0 {
			continue
		}
		ref := scraper.ParsePriceValue(cellValue(f, layout.Sheet, winnerCol, row))
		if math.IsInf(ref, 1) {
			continue
		}
		if err := m.writeDelta(f, layout.Sheet, deltaCol, row, ref, float64(amount), skip); err != nil {
			return err
		}
	}

	if res.Link != "" {
		if err := m.writeLink(f, layout, resultCol, base, res.Link); err != nil {
			return err
		}
	}
	return nil
}

// winnerColumn finds the participant whose cell in the item's base row names
// rank 1.
func (m *Merger) winnerColumn(f *excelize.File, layout SheetLayout, participants []int, base int) int {
	for _, col := range participants {
		val := strings.ToLower(cellValue(f, layout.Sheet, col, base))
		if strings.Contains(val, "1") && strings.Contains(val, winnerRankMarker) {
			return col
		}
	}
	return 0
}

func (m *Merger) setNumber(f *excelize.File, sheet string, col, row int, value int64, skip map[string]bool) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if skip[cell] {
		return nil
	}
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		return fmt.Errorf("failed to write price cell %s: %w", cell, err)
	}
	return nil
}

func (m *Merger) writeDelta(f *excelize.File, sheet string, col, row int, ref, scraped float64, skip map[string]bool) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if skip[cell] {
		return nil
	}
	delta := int64(math.Round(ref - scraped))
	if err := f.SetCellValue(sheet, cell, delta); err != nil {
		return fmt.Errorf("failed to write delta cell %s: %w", cell, err)
	}

	id, err := m.deltaStyle(f, ClassifyDelta(ref, scraped, m.opts.ModerateThreshold, m.opts.FarThreshold))
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, cell, cell, id)
}

// writeLink puts the hyperlink into the result column, on the first row
// within the scan window whose name-column cell carries a highlight fill,
// defaulting to a fixed offset below the base row.
func (m *Merger) writeLink(f *excelize.File, layout SheetLayout, resultCol, base int, link string) error {
	row := base + m.opts.LinkOffset
	for off := 1; off <= m.opts.LinkScanWindow; off++ {
		if m.highlighted(f, layout.Sheet, layout.NameCol, base+off) {
			row = base + off
			break
		}
	}

	cell, err := excelize.CoordinatesToCellName(resultCol, row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(layout.Sheet, cell, m.opts.LinkLabel); err != nil {
		return fmt.Errorf("failed to write link cell %s: %w", cell, err)
	}
	if err := f.SetCellHyperLink(layout.Sheet, cell, link, "External"); err != nil {
		return fmt.Errorf("failed to set hyperlink on %s: %w", cell, err)
	}
	id, err := m.linkStyle(f)
	if err != nil {
		return err
	}
	return f.SetCellStyle(layout.Sheet, cell, cell, id)
}

func (m *Merger) highlighted(f *excelize.File, sheet string, col, row int) bool {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return false
	}
	styleID, err := f.GetCellStyle(sheet, cell)
	if err != nil {
		return false
	}
	style, err := f.GetStyle(styleID)
	if err != nil || style == nil {
		return false
	}
	for _, c := range style.Fill.Color {
		for _, marker := range m.opts.HighlightColors {
			if strings.EqualFold(normalizeColor(c), marker) {
				return true
			}
		}
	}
	return false
}

// normalizeColor drops the alpha channel of ARGB values so fills compare
// against 6-digit markers.
func normalizeColor(c string) string {
	c = strings.TrimPrefix(c, "#")
	if len(c) == 8 {
		c = c[2:]
	}
	return c
}

func (m *Merger) applyColumnBorders(f *excelize.File, layout SheetLayout, resultCol, deltaCol, lastRow int) error {
	if lastRow <= layout.HeaderRow {
		return nil
	}
	id, err := m.borderStyle(f)
	if err != nil {
		return err
	}
	for _, col := range []int{resultCol, deltaCol} {
		top, err := excelize.CoordinatesToCellName(col, layout.HeaderRow+1)
		if err != nil {
			return err
		}
		bottom, err := excelize.CoordinatesToCellName(col, lastRow)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(layout.Sheet, top, bottom, id); err != nil {
			return fmt.Errorf("failed to apply column borders: %w", err)
		}
	}
	return nil
}

func thinBorders() []excelize.Border {
	return []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
}

func (m *Merger) headerStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D9D9D9"}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Border:    thinBorders(),
	})
}

func (m *Merger) deltaHeaderStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Italic: true},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"F2F2F2"}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Border:    thinBorders(),
	})
}

func (m *Merger) borderStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{Border: thinBorders()})
}

func (m *Merger) deltaStyle(f *excelize.File, cat DeltaCategory) (int, error) {
	color := m.opts.NeutralColor
	switch cat {
	case DeltaHigher:
		color = m.opts.HigherColor
	case DeltaFar:
		color = m.opts.FarColor
	case DeltaModerate:
		color = m.opts.ModerateColor
	}
	return f.NewStyle(&excelize.Style{
		Fill:   excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}},
		Border: thinBorders(),
	})
}

func (m *Merger) linkStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Color: "0563C1", Underline: "single", Size: 9},
		Border: thinBorders(),
	})
}

// mergedContinuations lists every cell covered by a merge range except its
// top-left anchor. Writing into one would silently vanish from the sheet.
func mergedContinuations(f *excelize.File, sheet string) map[string]bool {
	out := make(map[string]bool)
	ranges, err := f.GetMergeCells(sheet)
	if err != nil {
		return out
	}
	for _, mc := range ranges {
		startCol, startRow, err1 := excelize.CellNameToCoordinates(mc.GetStartAxis())
		endCol, endRow, err2 := excelize.CellNameToCoordinates(mc.GetEndAxis())
		if err1 != nil || err2 != nil {
			continue
		}
		for row := startRow; row <= endRow; row++ {
			for col := startCol; col <= endCol; col++ {
				if row == startRow && col == startCol {
					continue
				}
				if cell, err := excelize.CoordinatesToCellName(col, row); err == nil {
					out[cell] = true
				}
			}
		}
	}
	return out
}

func usedRows(f *excelize.File, sheet string) int {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return 0
	}
	return len(rows)
}
