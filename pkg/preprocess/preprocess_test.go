package preprocess

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/logwatch/pkg/dataset"
)

func TestPrepareDropsLabelColumns(t *testing.T) {
	table := &dataset.Table{
		Columns: []string{"events", "anomaly", "errors", "score"},
		Rows: [][]float64{
			{1, -1, 10, -0.2},
			{2, 1, 20, 0.1},
			{3, 1, 30, 0.3},
		},
	}

	features, standardized, scaler, err := Prepare(table)
	require.NoError(t, err)

	assert.Equal(t, []string{"events", "errors"}, features.Columns)
	assert.Equal(t, [][]float64{{1, 10}, {2, 20}, {3, 30}}, features.Rows)
	assert.Equal(t, features.Columns, standardized.Columns)
	assert.Equal(t, []float64{2, 20}, scaler.Mean())

	// the source table is untouched
	assert.Len(t, table.Columns, 4)
	assert.Equal(t, -0.2, table.Rows[0][3])
}

func TestPrepareWithoutLabelColumns(t *testing.T) {
	table := &dataset.Table{Columns: []string{"a"}, Rows: [][]float64{{1}, {3}}}

	_, standardized, _, err := Prepare(table)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{-1}, {1}}, standardized.Rows)
}

func TestPrepareEmpty(t *testing.T) {
	tests := []struct {
		name  string
		table *dataset.Table
	}{
		{name: "no rows", table: &dataset.Table{Columns: []string{"a", "b"}}},
		{name: "no columns", table: &dataset.Table{}},
		{name: "only label columns", table: &dataset.Table{
			Columns: []string{"anomaly", "score"},
			Rows:    [][]float64{{1, 0.2}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := Prepare(tt.table)
			assert.ErrorIs(t, err, ErrEmptyDataset)
		})
	}
}

func TestStandardizationInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	data := make([][]float64, 200)
	for i := range data {
		data[i] = []float64{rng.NormFloat64()*50 + 1000, rng.ExpFloat64(), float64(i % 7)}
	}

	z, err := NewScaler().FitTransform(data)
	require.NoError(t, err)

	for c := 0; c < 3; c++ {
		var sum, sq float64
		for _, row := range z {
			sum += row[c]
		}
		mean := sum / float64(len(z))
		for _, row := range z {
			sq += (row[c] - mean) * (row[c] - mean)
		}
		std := math.Sqrt(sq / float64(len(z)))

		assert.InDelta(t, 0, mean, 1e-9, "column %d mean", c)
		assert.InDelta(t, 1, std, 1e-9, "column %d std", c)
	}
}

func TestZeroVarianceColumn(t *testing.T) {
	data := [][]float64{{0.1, 1}, {0.1, 2}, {0.1, 3}, {0.1, 4}}

	s := NewScaler()
	z, err := s.FitTransform(data)
	require.NoError(t, err)

	for _, row := range z {
		assert.Equal(t, 0.0, row[0])
		assert.False(t, math.IsNaN(row[1]))
	}
	assert.Equal(t, 1.0, s.Scale()[0])
}

func TestOutlierScenario(t *testing.T) {
	data := [][]float64{{0, 0}, {0, 0}, {0, 0}, {0, 0}, {10, 10}}

	z, err := NewScaler().FitTransform(data)
	require.NoError(t, err)

	// mean 2, population std 4
	for i := 0; i < 4; i++ {
		assert.Equal(t, []float64{-0.5, -0.5}, z[i])
	}
	assert.Equal(t, []float64{2, 2}, z[4])
}

func TestScalerErrors(t *testing.T) {
	s := NewScaler()
	_, err := s.Transform([][]float64{{1}})
	assert.Error(t, err)

	require.NoError(t, s.Fit([][]float64{{1, 2}, {3, 4}}))
	_, err = s.Transform([][]float64{{1}})
	assert.Error(t, err)

	assert.Error(t, NewScaler().Fit([][]float64{{1, 2}, {3}}))
	assert.ErrorIs(t, NewScaler().Fit(nil), ErrEmptyDataset)
}

func BenchmarkFitTransform(b *testing.B) {
	data := make([][]float64, 10000)
	for i := range data {
		data[i] = []float64{rand.Float64(), rand.Float64(), rand.Float64(), rand.Float64()}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		NewScaler().FitTransform(data)
	}
}
