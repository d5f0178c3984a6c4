package taxonomy

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
)

// WorkbookOptions names the sheets of a taxonomy workbook.
type WorkbookOptions struct {
	PieSheet      string // default "pie_index"
	SelectorSheet string // default "poi_index"
}

// Load parses a taxonomy source by file extension: a .xlsx workbook or
// a .csv pie table (with the selector table in <name>_poi.csv alongside).
func Load(path string, opts WorkbookOptions) (*Taxonomy, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return LoadWorkbook(path, opts)
	case ".csv":
		selPath := strings.TrimSuffix(path, filepath.Ext(path)) + "_poi.csv"
		return LoadCSV(path, selPath)
	default:
		return nil, eris.Errorf("taxonomy: unsupported file type %q", filepath.Ext(path))
	}
}

// LoadWorkbook parses both lookup tables from an XLSX workbook.
func LoadWorkbook(path string, opts WorkbookOptions) (*Taxonomy, error) {
	if opts.PieSheet == "" {
		opts.PieSheet = "pie_index"
	}
	if opts.SelectorSheet == "" {
		opts.SelectorSheet = "poi_index"
	}

	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "taxonomy: open workbook %s", path)
	}

	entries, err := parsePieSheet(f, opts.PieSheet)
	if err != nil {
		return nil, err
	}
	selectors, err := parseSelectorSheet(f, opts.SelectorSheet)
	if err != nil {
		return nil, err
	}

	t, err := New(entries, selectors)
	if err != nil {
		return nil, err
	}
	zap.L().Info("taxonomy loaded",
		zap.String("path", path),
		zap.Int("entries", len(t.Entries)),
		zap.Int("selectors", len(t.Selectors)),
	)
	return t, nil
}

func parsePieSheet(f *xlsx.File, name string) ([]Entry, error) {
	sheet, ok := f.Sheet[name]
	if !ok {
		return nil, eris.Wrapf(ErrMissingSheet, "sheet %q", name)
	}
	rows := sheetRows(sheet)
	if len(rows) == 0 {
		return nil, eris.Wrapf(ErrEmpty, "sheet %q", name)
	}

	cols, err := headerIndex(rows[0], "key", "value", "pie_cat")
	if err != nil {
		return nil, eris.Wrapf(err, "sheet %q", name)
	}

	var entries []Entry
	for _, row := range rows[1:] {
		key := normalizeTag(cell(row, cols["key"]))
		value := normalizeTag(cell(row, cols["value"]))
		category := strings.TrimSpace(cell(row, cols["pie_cat"]))
		// Rows missing key or value carry no mapping.
		if key == "" || value == "" || category == "" {
			continue
		}
		entries = append(entries, Entry{Key: key, Value: value, Category: category})
	}
	if len(entries) == 0 {
		return nil, eris.Wrapf(ErrEmpty, "sheet %q", name)
	}
	return entries, nil
}

func parseSelectorSheet(f *xlsx.File, name string) ([]POISelector, error) {
	sheet, ok := f.Sheet[name]
	if !ok {
		return nil, eris.Wrapf(ErrMissingSheet, "sheet %q", name)
	}
	rows := sheetRows(sheet)
	if len(rows) == 0 {
		return nil, eris.Wrapf(ErrEmpty, "sheet %q", name)
	}

	cols, err := headerIndex(rows[0], "category", "sub_label", "key", "value", "color", "icon")
	if err != nil {
		return nil, eris.Wrapf(err, "sheet %q", name)
	}

	var selectors []POISelector
	for _, row := range rows[1:] {
		key := normalizeTag(cell(row, cols["key"]))
		value := normalizeTag(cell(row, cols["value"]))
		if key == "" || value == "" {
			continue
		}
		selectors = append(selectors, POISelector{
			Category: strings.TrimSpace(cell(row, cols["category"])),
			SubLabel: strings.TrimSpace(cell(row, cols["sub_label"])),
			Key:      key,
			Value:    value,
			Color:    strings.TrimSpace(cell(row, cols["color"])),
			Icon:     strings.TrimSpace(cell(row, cols["icon"])),
		})
	}
	return selectors, nil
}

// pieCSVRow and selectorCSVRow mirror the workbook columns for CSV sources.
type pieCSVRow struct {
	Key      string `csv:"key"`
	Value    string `csv:"value"`
	Category string `csv:"pie_cat"`
}

type selectorCSVRow struct {
	Category string `csv:"category"`
	SubLabel string `csv:"sub_label"`
	Key      string `csv:"key"`
	Value    string `csv:"value"`
	Color    string `csv:"color"`
	Icon     string `csv:"icon"`
}

// LoadCSV parses the pie table and selector table from CSV files.
func LoadCSV(piePath, selectorPath string) (*Taxonomy, error) {
	pieRows, err := decodeCSVFile[pieCSVRow](piePath, "key", "value", "pie_cat")
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, r := range pieRows {
		key, value := normalizeTag(r.Key), normalizeTag(r.Value)
		category := strings.TrimSpace(r.Category)
		if key == "" || value == "" || category == "" {
			continue
		}
		entries = append(entries, Entry{Key: key, Value: value, Category: category})
	}
	if len(entries) == 0 {
		return nil, eris.Wrapf(ErrEmpty, "file %s", piePath)
	}

	var selectors []POISelector
	if _, err := os.Stat(selectorPath); err == nil {
		selRows, err := decodeCSVFile[selectorCSVRow](selectorPath, "category", "sub_label", "key", "value")
		if err != nil {
			return nil, err
		}
		for _, r := range selRows {
			key, value := normalizeTag(r.Key), normalizeTag(r.Value)
			if key == "" || value == "" {
				continue
			}
			selectors = append(selectors, POISelector{
				Category: strings.TrimSpace(r.Category),
				SubLabel: strings.TrimSpace(r.SubLabel),
				Key:      key,
				Value:    value,
				Color:    strings.TrimSpace(r.Color),
				Icon:     strings.TrimSpace(r.Icon),
			})
		}
	}

	return New(entries, selectors)
}

func decodeCSVFile[T any](path string, required ...string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "taxonomy: open %s", path)
	}
	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	dec, err := csvutil.NewDecoder(reader)
	if err != nil {
		return nil, eris.Wrapf(err, "taxonomy: read header %s", path)
	}

	header := make(map[string]bool, len(dec.Header()))
	for _, h := range dec.Header() {
		header[strings.ToLower(strings.TrimSpace(h))] = true
	}
	for _, col := range required {
		if !header[col] {
			return nil, eris.Wrapf(ErrMissingColumn, "column %q in %s", col, path)
		}
	}

	var rows []T
	for {
		var row T
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, eris.Wrapf(err, "taxonomy: decode %s", path)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func sheetRows(sheet *xlsx.Sheet) [][]string {
	var rows [][]string
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for i, c := range row.Cells {
			cells[i] = c.String()
		}
		rows = append(rows, cells)
	}
	return rows
}

// headerIndex maps required column names to their positions,
// case-insensitively.
func headerIndex(header []string, required ...string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	out := make(map[string]int, len(required))
	for _, col := range required {
		i, ok := idx[col]
		if !ok {
			return nil, eris.Wrapf(ErrMissingColumn, "column %q", col)
		}
		out[col] = i
	}
	return out, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// normalizeTag canonicalizes a tag key or value to the provider's
// lower-case vocabulary.
func normalizeTag(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
