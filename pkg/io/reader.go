// Package io provides input/output utilities for feature tables.
package io

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/hed1ad/logwatch/pkg/dataset"
	"github.com/hed1ad/logwatch/pkg/io/csv"
	"github.com/hed1ad/logwatch/pkg/io/xlsx"
)

// TableReader is the interface for reading a complete feature table.
type TableReader interface {
	// Read returns the complete, validated table.
	Read() (*dataset.Table, error)

	// Close releases resources.
	Close() error
}

// TableWriter is the interface for exporting tables.
type TableWriter interface {
	// WriteTable outputs the header and all rows.
	WriteTable(t *dataset.Table) error

	// Close flushes and releases resources.
	Close() error
}

// Option configures how Open reads a table.
type Option func(*options)

type options struct {
	sheet string
}

// WithSheet selects the workbook sheet read from .xlsx files. An empty name
// keeps the first sheet; other formats ignore it.
func WithSheet(sheet string) Option {
	return func(o *options) {
		o.sheet = sheet
	}
}

// Open returns a reader for the file, chosen by extension.
func Open(filename string, opts ...Option) (TableReader, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".csv":
		return csv.NewReader(filename)
	case ".tsv":
		return csv.NewReader(filename, csv.WithComma('\t'))
	case ".xlsx":
		if o.sheet != "" {
			return xlsx.NewReader(filename, xlsx.WithSheet(o.sheet))
		}
		return xlsx.NewReader(filename)
	default:
		return nil, errors.Wrapf(dataset.ErrDataLoad, "unsupported feature file extension %q", ext)
	}
}

// ReadFile opens, reads and closes a feature table.
func ReadFile(filename string, opts ...Option) (*dataset.Table, error) {
	r, err := Open(filename, opts...)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return r.Read()
}
