// Package dataset defines the tabular feature data exchanged between loaders,
// the scoring pipeline and exporters.
package dataset

import (
	"math"

	"github.com/pkg/errors"
)

// Reserved column names written by a previous scoring run. They are never
// trusted as input features.
const (
	AnomalyColumn = "anomaly"
	ScoreColumn   = "score"
)

// ErrDataLoad reports a feature table that is missing, unreadable or malformed.
var ErrDataLoad = errors.New("data load error")

// Table is an ordered set of numeric rows sharing one header. Row order is
// the window index and therefore time order.
type Table struct {
	Columns []string
	Rows    [][]float64
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Validate checks the header and that every row is complete and finite.
// All failures wrap ErrDataLoad.
func (t *Table) Validate() error {
	seen := make(map[string]struct{}, len(t.Columns))
	for i, c := range t.Columns {
		if c == "" {
			return errors.Wrapf(ErrDataLoad, "column %d has an empty name", i+1)
		}
		if _, dup := seen[c]; dup {
			return errors.Wrapf(ErrDataLoad, "duplicate column %q", c)
		}
		seen[c] = struct{}{}
	}

	for r, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return errors.Wrapf(ErrDataLoad, "row %d has %d values, header has %d columns",
				r+1, len(row), len(t.Columns))
		}
		for c, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.Wrapf(ErrDataLoad, "row %d column %q: non-finite value %v",
					r+1, t.Columns[c], v)
			}
		}
	}
	return nil
}
