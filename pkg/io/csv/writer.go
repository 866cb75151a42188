package csv

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"github.com/hed1ad/logwatch/pkg/dataset"
)

// Writer exports tables as CSV.
type Writer struct {
	writer *csv.Writer
	closer io.Closer
}

// NewWriter wraps w. If w is an io.Closer it is closed by Close.
func NewWriter(w io.Writer) *Writer {
	wr := &Writer{writer: csv.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		wr.closer = c
	}
	return wr
}

// WriteTable writes the header followed by every row.
func (w *Writer) WriteTable(t *dataset.Table) error {
	if err := w.writer.Write(t.Columns); err != nil {
		return errors.Wrap(err, "failed to write headers")
	}

	record := make([]string, len(t.Columns))
	for i, row := range t.Rows {
		for j, v := range row {
			record[j] = FormatValue(v)
		}
		if err := w.writer.Write(record[:len(row)]); err != nil {
			return errors.Wrapf(err, "failed to write record %d", i)
		}
	}

	w.writer.Flush()
	return w.writer.Error()
}

// Close flushes buffered output and closes the underlying writer if owned.
func (w *Writer) Close() error {
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		return err
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// FormatValue renders a number with the shortest exact representation.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
