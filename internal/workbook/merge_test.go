package workbook

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"tenderscan/internal/models"
)

func TestClassifyDelta(t *testing.T) {
	tests := []struct {
		name     string
		ref      float64
		scraped  float64
		expected DeltaCategory
	}{
		{"Scraped above reference", 1000, 1100, DeltaHigher},
		{"Far cheaper", 1000, 850, DeltaFar},
		{"Moderately cheaper", 1000, 950, DeltaModerate},
		{"Barely cheaper", 1000, 999, DeltaNeutral},
		{"Exactly equal", 1000, 1000, DeltaNeutral},
		{"At the far boundary", 1000, 900, DeltaModerate},
		{"Just past the far boundary", 1000, 899, DeltaFar},
		{"At the moderate boundary", 1000, 990, DeltaModerate},
		{"Zero reference", 0, 100, DeltaHigher},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ClassifyDelta(tt.ref, tt.scraped, 0.01, 0.10))
		})
	}
}

// tenderFixture builds a workbook shaped like a real tender sheet: a header
// row with number, name and two participant columns, and three multi-row item
// blocks with uneven spacing. Winner reference prices are 1500 pre-tax and
// 1830 tax-inclusive for every item.
func tenderFixture(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	set := func(cell string, val any) {
		require.NoError(t, f.SetCellValue("Sheet1", cell, val))
	}

	set("A2", "№")
	set("B2", "Наименование")
	set("C2", "Участник 1")
	set("D2", "Участник 2")

	set("A4", "1")
	set("B4", "Кабель ВВГнг 3x2.5")
	set("C4", "1 место")
	set("D4", "2 место")
	set("C5", 1500)
	set("C6", 1830)

	set("A8", "2")
	set("B8", "Светильник LED")
	set("C8", "2 место")
	set("D8", "1 место")
	set("D9", 1500)
	set("D10", 1830)

	set("A12", "3")
	set("B12", "Труба стальная")
	set("C12", "1 место")
	set("C13", 1500)
	set("C14", 1830)

	path := filepath.Join(t.TempDir(), "tender.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
	return path
}

func sampleTable() models.ResultTable {
	table := make(models.ResultTable)
	table.Set(1, models.OfferResult{
		Price:         "1 000 ₽",
		BusinessPrice: "1 220 ₽",
		Link:          "https://market.test/product/1",
	})
	table.Set(2, models.OfferResult{
		Price:         "2 000 ₽",
		BusinessPrice: "2 440 ₽",
		Link:          "https://market.test/product/2",
	})
	table.Set(3, models.OfferResult{})
	return table
}

func cellValues(t *testing.T, path string, cells []string) map[string]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	out := make(map[string]string, len(cells))
	for _, cell := range cells {
		val, err := f.GetCellValue("Sheet1", cell)
		require.NoError(t, err)
		out[cell] = val
	}
	return out
}

func TestMergeWritesPricesAndDeltas(t *testing.T) {
	original := tenderFixture(t)
	output := filepath.Join(t.TempDir(), "out.xlsx")
	merger := NewMerger(MergeOptions{})

	require.NoError(t, merger.Merge(original, output, sampleTable(), "Тест Маркет"))

	got := cellValues(t, output, []string{
		"E2", "F2", "E5", "E6", "F5", "F6", "E9", "E10", "F9", "E13", "F13",
	})

	assert.Equal(t, "Тест Маркет", got["E2"])
	assert.Equal(t, "Разница Тест Маркет", got["F2"])

	// Item 1: scraped 1000/1220 against winner 1500/1830.
	assert.Equal(t, "1000", got["E5"])
	assert.Equal(t, "1220", got["E6"])
	assert.Equal(t, "500", got["F5"])
	assert.Equal(t, "610", got["F6"])

	// Item 2: scraped 2000 against winner 1500, ours is higher.
	assert.Equal(t, "2000", got["E9"])
	assert.Equal(t, "2440", got["E10"])
	assert.Equal(t, "-500", got["F9"])

	// Item 3 found nothing: its cells stay empty.
	assert.Equal(t, "", got["E13"])
	assert.Equal(t, "", got["F13"])
}

func TestMergeWritesLinkCells(t *testing.T) {
	original := tenderFixture(t)
	output := filepath.Join(t.TempDir(), "out.xlsx")
	merger := NewMerger(MergeOptions{})

	require.NoError(t, merger.Merge(original, output, sampleTable(), "Тест Маркет"))

	f, err := excelize.OpenFile(output)
	require.NoError(t, err)
	defer f.Close()

	// No highlight markers in the fixture, so the link defaults to base+3.
	val, err := f.GetCellValue("Sheet1", "E7")
	require.NoError(t, err)
	assert.Equal(t, "Ссылка", val)

	hasLink, target, err := f.GetCellHyperLink("Sheet1", "E7")
	require.NoError(t, err)
	assert.True(t, hasLink)
	assert.Equal(t, "https://market.test/product/1", target)
}

func TestMergeIdempotent(t *testing.T) {
	original := tenderFixture(t)
	output := filepath.Join(t.TempDir(), "out.xlsx")
	merger := NewMerger(MergeOptions{})
	table := sampleTable()

	watched := []string{
		"E2", "F2", "E5", "E6", "F5", "F6", "E7", "E9", "E10", "F9", "F10", "G2", "H2",
	}

	require.NoError(t, merger.Merge(original, output, table, "Тест Маркет"))
	first := cellValues(t, output, watched)

	// Second merge lands on the existing output and must reuse both columns.
	require.NoError(t, merger.Merge(original, output, table, "Тест Маркет"))
	second := cellValues(t, output, watched)

	assert.Equal(t, first, second)
	assert.Equal(t, "", second["G2"])
	assert.Equal(t, "", second["H2"])
}

func TestMergeSecondMarketplaceAppends(t *testing.T) {
	original := tenderFixture(t)
	output := filepath.Join(t.TempDir(), "out.xlsx")
	merger := NewMerger(MergeOptions{})
	table := sampleTable()

	require.NoError(t, merger.Merge(original, output, table, "Яндекс Маркет"))
	require.NoError(t, merger.Merge(original, output, table, "Ozon"))

	got := cellValues(t, output, []string{"E2", "F2", "G2", "H2", "E5", "G5"})
	assert.Equal(t, "Яндекс Маркет", got["E2"])
	assert.Equal(t, "Разница Яндекс Маркет", got["F2"])
	assert.Equal(t, "Ozon", got["G2"])
	assert.Equal(t, "Разница Ozon", got["H2"])
	assert.Equal(t, "1000", got["E5"])
	assert.Equal(t, "1000", got["G5"])
}

func TestMergeSkipsMergedContinuations(t *testing.T) {
	original := tenderFixture(t)

	f, err := excelize.OpenFile(original)
	require.NoError(t, err)
	// The pre-tax row of item 1 becomes part of a vertical merge range, so
	// E5 is a continuation cell that must not be written.
	require.NoError(t, f.MergeCell("Sheet1", "E4", "E5"))
	require.NoError(t, f.Save())
	require.NoError(t, f.Close())

	output := filepath.Join(t.TempDir(), "out.xlsx")
	merger := NewMerger(MergeOptions{})
	require.NoError(t, merger.Merge(original, output, sampleTable(), "Тест Маркет"))

	got := cellValues(t, output, []string{"E5", "E6"})
	assert.Equal(t, "", got["E5"])
	assert.Equal(t, "1220", got["E6"])
}

func TestMergeMissingStructure(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Прайс-лист"))
	original := filepath.Join(t.TempDir(), "flat.xlsx")
	require.NoError(t, f.SaveAs(original))
	require.NoError(t, f.Close())

	output := filepath.Join(t.TempDir(), "out.xlsx")
	err := NewMerger(MergeOptions{}).Merge(original, output, sampleTable(), "Тест Маркет")
	assert.ErrorIs(t, err, ErrStructureNotFound)
}

func TestMergeSkipsUnmatchedPositions(t *testing.T) {
	original := tenderFixture(t)
	output := filepath.Join(t.TempDir(), "out.xlsx")

	table := sampleTable()
	table.Set(99, models.OfferResult{Price: "5 ₽", Link: "https://market.test/p/99"})

	// An unmatched position is logged and skipped, not fatal.
	require.NoError(t, NewMerger(MergeOptions{}).Merge(original, output, table, "Тест Маркет"))

	got := cellValues(t, output, []string{"E5"})
	assert.Equal(t, "1000", got["E5"])
}
