package projection

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectDimensionality(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for _, d := range []int{2, 3, 8} {
		data := make([][]float64, 40)
		for i := range data {
			data[i] = make([]float64, d)
			for j := range data[i] {
				data[i][j] = rng.NormFloat64()
			}
		}

		p, err := Project(data)
		require.NoError(t, err)
		assert.Len(t, p.Points, len(data))
		assert.LessOrEqual(t, p.ExplainedVarianceRatio[1], p.ExplainedVarianceRatio[0])
		assert.LessOrEqual(t, p.ExplainedVarianceRatio[0]+p.ExplainedVarianceRatio[1], 1+1e-9)
	}
}

func TestProjectRecoversDominantDirection(t *testing.T) {
	// Points along the x=y diagonal with a little orthogonal noise.
	rng := rand.New(rand.NewSource(9))
	data := make([][]float64, 100)
	for i := range data {
		s := float64(i-50) / 10
		e := rng.NormFloat64() * 0.01
		data[i] = []float64{s + e, s - e}
	}

	p, err := Project(data)
	require.NoError(t, err)

	assert.Greater(t, p.ExplainedVarianceRatio[0], 0.99)

	// PC1 preserves the ordering along the diagonal up to sign, and the
	// distance of each point from the centroid.
	sign := math.Copysign(1, p.Points[99][0]-p.Points[0][0])
	for i := 1; i < len(data); i++ {
		assert.Greater(t, sign*(p.Points[i][0]-p.Points[i-1][0]), 0.0)
	}
	for i := range data {
		norm := math.Hypot(p.Points[i][0], p.Points[i][1])
		assert.InDelta(t, distanceFromCentroid(data, i), norm, 1e-9)
	}
}

func distanceFromCentroid(data [][]float64, i int) float64 {
	var cx, cy float64
	for _, row := range data {
		cx += row[0]
		cy += row[1]
	}
	cx /= float64(len(data))
	cy /= float64(len(data))
	return math.Hypot(data[i][0]-cx, data[i][1]-cy)
}

func TestProjectOutlierSeparates(t *testing.T) {
	data := [][]float64{{-0.5, -0.5}, {-0.5, -0.5}, {-0.5, -0.5}, {-0.5, -0.5}, {2, 2}}

	p, err := Project(data)
	require.NoError(t, err)

	for i := 1; i < 4; i++ {
		assert.InDelta(t, p.Points[0][0], p.Points[i][0], 1e-12)
	}
	assert.Greater(t, math.Abs(p.Points[4][0]), math.Abs(p.Points[0][0]))
	assert.InDelta(t, 1.0, p.ExplainedVarianceRatio[0], 1e-9)
}

func TestProjectDeterministic(t *testing.T) {
	data := [][]float64{{1, 2, 3}, {2, 1, 0}, {0, 0, 1}, {3, 5, 2}}

	a, err := Project(data)
	require.NoError(t, err)
	b, err := Project(data)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestProjectInsufficientDimensions(t *testing.T) {
	tests := []struct {
		name string
		data [][]float64
	}{
		{name: "no rows", data: nil},
		{name: "one column", data: [][]float64{{1}, {2}, {3}}},
		{name: "one row", data: [][]float64{{1, 2, 3}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Project(tt.data)
			assert.ErrorIs(t, err, ErrInsufficientDimensions)
		})
	}
}

func TestFlipSign(t *testing.T) {
	assert.True(t, flipSign([]float64{0.1, -0.9}))
	assert.False(t, flipSign([]float64{-0.1, 0.9}))
	assert.False(t, flipSign([]float64{0, 0}))
}
