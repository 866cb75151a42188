// Package preprocess turns a feature table into the standardized matrix the
// detector consumes.
package preprocess

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/hed1ad/logwatch/pkg/dataset"
)

// ErrEmptyDataset reports a table with no rows or no usable feature columns.
var ErrEmptyDataset = errors.New("empty dataset")

// Matrix is a row-major numeric matrix with named columns.
type Matrix struct {
	Columns []string
	Rows    [][]float64
}

// Dims returns the number of rows and columns.
func (m Matrix) Dims() (rows, cols int) {
	return len(m.Rows), len(m.Columns)
}

// Prepare drops previously persisted anomaly and score columns, then
// standardizes every remaining column. The scaler is fitted and applied on
// the same rows.
func Prepare(t *dataset.Table) (features, standardized Matrix, scaler *Scaler, err error) {
	features = FeatureMatrix(t)
	rows, cols := features.Dims()
	if rows == 0 || cols == 0 {
		return Matrix{}, Matrix{}, nil, errors.Wrapf(ErrEmptyDataset, "%d rows, %d feature columns", rows, cols)
	}

	scaler = NewScaler()
	scaled, err := scaler.FitTransform(features.Rows)
	if err != nil {
		return Matrix{}, Matrix{}, nil, err
	}

	standardized = Matrix{Columns: features.Columns, Rows: scaled}
	return features, standardized, scaler, nil
}

// FeatureMatrix copies t without the anomaly and score columns. Their
// absence is not an error.
func FeatureMatrix(t *dataset.Table) Matrix {
	keep := make([]int, 0, len(t.Columns))
	m := Matrix{Columns: make([]string, 0, len(t.Columns))}
	for i, c := range t.Columns {
		if c == dataset.AnomalyColumn || c == dataset.ScoreColumn {
			continue
		}
		keep = append(keep, i)
		m.Columns = append(m.Columns, c)
	}

	m.Rows = make([][]float64, len(t.Rows))
	for r, row := range t.Rows {
		out := make([]float64, len(keep))
		for j, i := range keep {
			out[j] = row[i]
		}
		m.Rows[r] = out
	}
	return m
}

// Scaler standardizes columns to zero mean and unit variance using the
// population standard deviation. Columns without variance map to exactly 0.
type Scaler struct {
	mean     []float64
	scale    []float64
	constant []bool
	fitted   bool
}

// NewScaler returns an unfitted scaler.
func NewScaler() *Scaler {
	return &Scaler{}
}

// Fit computes per-column statistics.
func (s *Scaler) Fit(data [][]float64) error {
	if len(data) == 0 || len(data[0]) == 0 {
		return errors.Wrap(ErrEmptyDataset, "scaler fit")
	}

	cols := len(data[0])
	s.mean = make([]float64, cols)
	s.scale = make([]float64, cols)
	s.constant = make([]bool, cols)

	column := make([]float64, len(data))
	for c := 0; c < cols; c++ {
		lo, hi := data[0][c], data[0][c]
		for r, row := range data {
			if len(row) != cols {
				return errors.Errorf("row %d has %d values, expected %d", r, len(row), cols)
			}
			v := row[c]
			column[r] = v
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}

		mean, std := stat.PopMeanStdDev(column, nil)
		s.mean[c] = mean
		s.scale[c] = std
		s.constant[c] = lo == hi || std == 0
	}

	s.fitted = true
	return nil
}

// Transform standardizes data with the fitted statistics.
func (s *Scaler) Transform(data [][]float64) ([][]float64, error) {
	if !s.fitted {
		return nil, errors.New("scaler not fitted")
	}

	out := make([][]float64, len(data))
	for r, row := range data {
		if len(row) != len(s.mean) {
			return nil, errors.Errorf("row %d has %d values, scaler was fitted on %d", r, len(row), len(s.mean))
		}
		z := make([]float64, len(row))
		for c, v := range row {
			if s.constant[c] {
				continue
			}
			z[c] = (v - s.mean[c]) / s.scale[c]
		}
		out[r] = z
	}
	return out, nil
}

// FitTransform fits on data and returns the standardized copy.
func (s *Scaler) FitTransform(data [][]float64) ([][]float64, error) {
	if err := s.Fit(data); err != nil {
		return nil, err
	}
	return s.Transform(data)
}

// Mean returns the fitted column means.
func (s *Scaler) Mean() []float64 {
	return append([]float64(nil), s.mean...)
}

// Scale returns the fitted column standard deviations; constant columns
// report 1 since they are not divided.
func (s *Scaler) Scale() []float64 {
	out := make([]float64, len(s.scale))
	for i, v := range s.scale {
		if s.constant[i] {
			v = 1
		}
		out[i] = v
	}
	return out
}
