// Package csv provides CSV file reading and writing for feature tables.
package csv

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/hed1ad/logwatch/pkg/dataset"
)

// Reader reads a feature table from a CSV file.
type Reader struct {
	file    *os.File
	reader  *csv.Reader
	name    string
	headers []string
}

// Option configures a CSV reader.
type Option func(*Reader)

// WithComma sets the field delimiter.
func WithComma(r rune) Option {
	return func(rd *Reader) {
		rd.reader.Comma = r
	}
}

// NewReader opens filename and consumes its header row.
func NewReader(filename string, opts ...Option) (*Reader, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(dataset.ErrDataLoad, "open %s: %v", filename, err)
	}

	r := &Reader{
		file:   file,
		reader: csv.NewReader(file),
		name:   filename,
	}
	// Field counts are checked against the header in Read so the error can
	// name the offending row.
	r.reader.FieldsPerRecord = -1
	r.reader.TrimLeadingSpace = true

	for _, opt := range opts {
		opt(r)
	}

	headers, err := r.reader.Read()
	if err != nil {
		file.Close()
		if err == io.EOF {
			return nil, errors.Wrapf(dataset.ErrDataLoad, "%s: missing header row", filename)
		}
		return nil, errors.Wrapf(dataset.ErrDataLoad, "%s: %v", filename, err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}
	// Strip a UTF-8 BOM left by spreadsheet exports.
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}
	r.headers = headers

	return r, nil
}

// Read returns all rows as a validated table. Unlike a lenient scanner it
// fails on the first malformed row.
func (r *Reader) Read() (*dataset.Table, error) {
	t := &dataset.Table{Columns: r.headers}

	for line := 2; ; line++ {
		record, err := r.reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(dataset.ErrDataLoad, "%s: %v", r.name, err)
		}
		if len(record) != len(r.headers) {
			return nil, errors.Wrapf(dataset.ErrDataLoad, "%s line %d: %d fields, header has %d",
				r.name, line, len(record), len(r.headers))
		}

		row, err := parseRow(record)
		if err != nil {
			return nil, errors.Wrapf(dataset.ErrDataLoad, "%s line %d: %v", r.name, line, err)
		}
		t.Rows = append(t.Rows, row)
	}

	if err := t.Validate(); err != nil {
		return nil, errors.Wrap(err, r.name)
	}
	return t, nil
}

// Close releases resources.
func (r *Reader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// parseRow converts string slice to float slice.
func parseRow(record []string) ([]float64, error) {
	row := make([]float64, len(record))
	for i, val := range record {
		val = strings.TrimSpace(val)
		if val == "" {
			return nil, errors.Errorf("field %d is empty", i+1)
		}
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, errors.Errorf("field %d: %q is not a number", i+1, val)
		}
		row[i] = f
	}
	return row, nil
}
