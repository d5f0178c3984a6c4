package taxonomy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func createTestWorkbook(t *testing.T, sheets map[string][][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	for name, rows := range sheets {
		sheet, err := f.AddSheet(name)
		require.NoError(t, err)
		for _, rowData := range rows {
			row := sheet.AddRow()
			for _, cellData := range rowData {
				cell := row.AddCell()
				cell.SetString(cellData)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "features.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func defaultSheets() map[string][][]string {
	return map[string][][]string{
		"pie_index": {
			{"key", "value", "pie_cat"},
			{"building", "yes", "Residential"},
			{"landuse", "residential", "Residential"},
			{"landuse", "industrial", "Industry"},
			{" leisure ", " Park ", "Green space"},
		},
		"poi_index": {
			{"category", "sub_label", "key", "value", "color", "icon"},
			{"Food", "Café", "amenity", "cafe", "orange", "cutlery"},
			{"Food", "Restaurant", "amenity", "restaurant", "orange", "cutlery"},
			{"Shopping", "Supermarket", "shop", "supermarket", "green", "shopping-cart"},
		},
	}
}

func TestLoadWorkbook(t *testing.T) {
	path := createTestWorkbook(t, defaultSheets())

	tax, err := LoadWorkbook(path, WorkbookOptions{})
	require.NoError(t, err)

	require.Len(t, tax.Entries, 4)
	// Whitespace trimmed and tags lower-cased to the provider vocabulary.
	assert.Equal(t, Entry{Key: "leisure", Value: "park", Category: "Green space"}, tax.Entries[3])

	cat, ok := tax.CategoryFor("building", "yes")
	require.True(t, ok)
	assert.Equal(t, "Residential", cat)

	_, ok = tax.CategoryFor("building", "no")
	assert.False(t, ok)

	require.Len(t, tax.Selectors, 3)
	assert.Equal(t, "Café", tax.Selectors[0].SubLabel)
	assert.Equal(t, []string{"Food", "Shopping"}, tax.Categories())
}

func TestLoadWorkbookDropsIncompleteRows(t *testing.T) {
	sheets := defaultSheets()
	sheets["pie_index"] = append(sheets["pie_index"],
		[]string{"", "forest", "Green space"},
		[]string{"natural", "", "Green space"},
		[]string{"natural", "water"},
	)
	path := createTestWorkbook(t, sheets)

	tax, err := LoadWorkbook(path, WorkbookOptions{})
	require.NoError(t, err)
	assert.Len(t, tax.Entries, 4, "rows missing key, value, or category are dropped")
}

func TestLoadWorkbookMissingSheet(t *testing.T) {
	path := createTestWorkbook(t, map[string][][]string{
		"pie_index": defaultSheets()["pie_index"],
	})

	_, err := LoadWorkbook(path, WorkbookOptions{})
	require.ErrorIs(t, err, ErrMissingSheet)
}

func TestLoadWorkbookMissingColumn(t *testing.T) {
	sheets := defaultSheets()
	sheets["pie_index"] = [][]string{
		{"key", "category"},
		{"building", "Residential"},
	}
	path := createTestWorkbook(t, sheets)

	_, err := LoadWorkbook(path, WorkbookOptions{})
	require.ErrorIs(t, err, ErrMissingColumn)
}

func TestLoadWorkbookDuplicateConflict(t *testing.T) {
	sheets := defaultSheets()
	sheets["pie_index"] = append(sheets["pie_index"], []string{"building", "yes", "Industry"})
	path := createTestWorkbook(t, sheets)

	_, err := LoadWorkbook(path, WorkbookOptions{})
	require.ErrorIs(t, err, ErrDuplicateMapping)
}

func TestLoadWorkbookExactDuplicateCollapsed(t *testing.T) {
	sheets := defaultSheets()
	sheets["pie_index"] = append(sheets["pie_index"], []string{"building", "yes", "Residential"})
	path := createTestWorkbook(t, sheets)

	tax, err := LoadWorkbook(path, WorkbookOptions{})
	require.NoError(t, err)
	assert.Len(t, tax.Entries, 4)
}

func TestLoadWorkbookCustomSheetNames(t *testing.T) {
	sheets := map[string][][]string{
		"categories": defaultSheets()["pie_index"],
		"pois":       defaultSheets()["poi_index"],
	}
	path := createTestWorkbook(t, sheets)

	tax, err := LoadWorkbook(path, WorkbookOptions{PieSheet: "categories", SelectorSheet: "pois"})
	require.NoError(t, err)
	assert.Len(t, tax.Entries, 4)
}

func TestLoadCSV(t *testing.T) {
	dir := t.TempDir()
	piePath := filepath.Join(dir, "features.csv")
	selPath := filepath.Join(dir, "features_poi.csv")

	pie := "key,value,pie_cat\nbuilding,yes,Residential\nlanduse, Forest ,Green space\n"
	sel := "category,sub_label,key,value,color,icon\nFood,Café,amenity,cafe,orange,cutlery\n"
	require.NoError(t, os.WriteFile(piePath, []byte(pie), 0o644))
	require.NoError(t, os.WriteFile(selPath, []byte(sel), 0o644))

	tax, err := Load(piePath, WorkbookOptions{})
	require.NoError(t, err)

	require.Len(t, tax.Entries, 2)
	assert.Equal(t, Entry{Key: "landuse", Value: "forest", Category: "Green space"}, tax.Entries[1])
	require.Len(t, tax.Selectors, 1)
	assert.Equal(t, "cafe", tax.Selectors[0].Value)
}

func TestLoadCSVMissingColumn(t *testing.T) {
	dir := t.TempDir()
	piePath := filepath.Join(dir, "features.csv")
	require.NoError(t, os.WriteFile(piePath, []byte("key,value\nbuilding,yes\n"), 0o644))

	_, err := LoadCSV(piePath, filepath.Join(dir, "missing_poi.csv"))
	require.ErrorIs(t, err, ErrMissingColumn)
}

func TestLoadUnsupportedExtension(t *testing.T) {
	_, err := Load("features.toml", WorkbookOptions{})
	require.Error(t, err)
}

func TestTagFilterFromSelectors(t *testing.T) {
	selectors := []POISelector{
		{Category: "Food", Key: "amenity", Value: "cafe"},
		{Category: "Food", Key: "amenity", Value: "restaurant"},
		{Category: "Shopping", Key: "shop", Value: "supermarket"},
	}

	filter := TagFilter(selectors)
	require.Len(t, filter, 2)
	assert.ElementsMatch(t, []string{"cafe", "restaurant"}, filter["amenity"].Values)
	assert.Equal(t, []string{"supermarket"}, filter["shop"].Values)
	assert.False(t, filter["amenity"].Any)
}

func TestSelectorsFor(t *testing.T) {
	path := createTestWorkbook(t, defaultSheets())
	tax, err := LoadWorkbook(path, WorkbookOptions{})
	require.NoError(t, err)

	food := tax.SelectorsFor([]string{"Food"})
	require.Len(t, food, 2)
	assert.Equal(t, "cafe", food[0].Value)

	all := tax.SelectorsFor(nil)
	assert.Len(t, all, 3)

	none := tax.SelectorsFor([]string{"Transit"})
	assert.Empty(t, none)
}

func TestCategoryOfTag(t *testing.T) {
	path := createTestWorkbook(t, defaultSheets())
	tax, err := LoadWorkbook(path, WorkbookOptions{})
	require.NoError(t, err)

	cat, ok := tax.CategoryOfTag("shop", "supermarket")
	require.True(t, ok)
	assert.Equal(t, "Shopping", cat)

	_, ok = tax.CategoryOfTag("shop", "bakery")
	assert.False(t, ok)
}

func TestSharedLoadsOnce(t *testing.T) {
	t.Cleanup(Invalidate)
	Invalidate()

	calls := 0
	load := func() (*Taxonomy, error) {
		calls++
		return New([]Entry{{Key: "building", Value: "yes", Category: "Residential"}}, nil)
	}

	first, err := Shared(load)
	require.NoError(t, err)
	second, err := Shared(load)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)

	Invalidate()
	_, err = Shared(load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
