// Package xlsx reads and writes feature tables as Excel workbooks.
package xlsx

import (
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/hed1ad/logwatch/pkg/dataset"
)

// DefaultSheet is the sheet name used for exports.
const DefaultSheet = "anomalies"

// Reader reads one sheet of a workbook as a feature table.
type Reader struct {
	file  *excelize.File
	name  string
	sheet string
}

// Option configures a Reader.
type Option func(*Reader)

// WithSheet selects a sheet by name instead of the first one.
func WithSheet(sheet string) Option {
	return func(r *Reader) {
		r.sheet = sheet
	}
}

// NewReader opens the workbook.
func NewReader(filename string, opts ...Option) (*Reader, error) {
	f, err := excelize.OpenFile(filename)
	if err != nil {
		return nil, errors.Wrapf(dataset.ErrDataLoad, "open %s: %v", filename, err)
	}

	r := &Reader{file: f, name: filename}
	for _, opt := range opts {
		opt(r)
	}
	if r.sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			f.Close()
			return nil, errors.Wrapf(dataset.ErrDataLoad, "%s: workbook has no sheets", filename)
		}
		r.sheet = sheets[0]
	}
	return r, nil
}

// Read returns the sheet as a validated table. The first non-empty row is
// the header; empty rows are skipped.
func (r *Reader) Read() (*dataset.Table, error) {
	rows, err := r.file.GetRows(r.sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.Wrapf(dataset.ErrDataLoad, "%s sheet %q: %v", r.name, r.sheet, err)
	}

	var t *dataset.Table
	for i, cells := range rows {
		if isBlank(cells) {
			continue
		}
		if t == nil {
			header := make([]string, len(cells))
			for j, c := range cells {
				header[j] = strings.TrimSpace(c)
			}
			t = &dataset.Table{Columns: header}
			continue
		}
		// Trailing empty cells are dropped by excelize, so a short row means
		// missing values.
		if len(cells) != len(t.Columns) {
			return nil, errors.Wrapf(dataset.ErrDataLoad, "%s row %d: %d cells, header has %d",
				r.name, i+1, len(cells), len(t.Columns))
		}
		row := make([]float64, len(cells))
		for j, c := range cells {
			v, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
			if err != nil {
				return nil, errors.Wrapf(dataset.ErrDataLoad, "%s row %d column %q: %q is not a number",
					r.name, i+1, t.Columns[j], c)
			}
			row[j] = v
		}
		t.Rows = append(t.Rows, row)
	}

	if t == nil {
		return nil, errors.Wrapf(dataset.ErrDataLoad, "%s sheet %q: missing header row", r.name, r.sheet)
	}
	if err := t.Validate(); err != nil {
		return nil, errors.Wrap(err, r.name)
	}
	return t, nil
}

// Close releases resources.
func (r *Reader) Close() error {
	return r.file.Close()
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Writer exports tables as a single-sheet workbook.
type Writer struct {
	w     io.Writer
	sheet string
}

// NewWriter returns a Writer that serializes the workbook to w on WriteTable.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w, sheet: DefaultSheet}
}

// WriteTable writes a bold header row and numeric cells, then serializes the
// workbook.
func (w *Writer) WriteTable(t *dataset.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", w.sheet); err != nil {
		return errors.Wrap(err, "failed to name sheet")
	}

	header := make([]interface{}, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(w.sheet, "A1", &header); err != nil {
		return errors.Wrap(err, "failed to write headers")
	}
	if bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(w.sheet, 1, 1, bold)
	}

	for i, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(w.sheet, cell, &values); err != nil {
			return errors.Wrapf(err, "failed to write record %d", i)
		}
	}

	if _, err := f.WriteTo(w.w); err != nil {
		return errors.Wrap(err, "failed to serialize workbook")
	}
	return nil
}

// Close is a no-op; the workbook is flushed by WriteTable.
func (w *Writer) Close() error {
	return nil
}
