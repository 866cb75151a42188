// Package projection reduces standardized feature vectors to their first two
// principal components for plotting.
package projection

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Components is the number of principal components produced.
const Components = 2

// ErrInsufficientDimensions reports input that has no second principal
// component.
var ErrInsufficientDimensions = errors.New("insufficient dimensions for projection")

// Projection holds the coordinates of every row on the top components.
type Projection struct {
	Points [][Components]float64
	// ExplainedVarianceRatio is each component's share of total variance.
	ExplainedVarianceRatio [Components]float64
}

// Project computes the top two principal components of data via the SVD of
// the centered matrix and projects each row onto them. Each component's sign
// is chosen so that its largest-magnitude loading is positive.
func Project(data [][]float64) (*Projection, error) {
	n := len(data)
	if n == 0 {
		return nil, errors.Wrap(ErrInsufficientDimensions, "no rows")
	}
	d := len(data[0])
	if d < Components {
		return nil, errors.Wrapf(ErrInsufficientDimensions, "%d feature column(s), need %d", d, Components)
	}
	if n < Components {
		return nil, errors.Wrapf(ErrInsufficientDimensions, "%d row(s), need %d", n, Components)
	}

	x := mat.NewDense(n, d, nil)
	for i, row := range data {
		if len(row) != d {
			return nil, errors.Errorf("row %d has %d values, expected %d", i, len(row), d)
		}
		x.SetRow(i, row)
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return nil, errors.New("principal component decomposition failed")
	}

	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	// Center with the column means so projected coordinates are zero-mean.
	centered := mat.NewDense(n, d, nil)
	for j := 0; j < d; j++ {
		col := mat.Col(nil, j, x)
		mean := stat.Mean(col, nil)
		for i := range col {
			centered.Set(i, j, col[i]-mean)
		}
	}

	top := mat.DenseCopyOf(vecs.Slice(0, d, 0, Components))
	for k := 0; k < Components; k++ {
		if flipSign(mat.Col(nil, k, top)) {
			for j := 0; j < d; j++ {
				top.Set(j, k, -top.At(j, k))
			}
		}
	}

	var coords mat.Dense
	coords.Mul(centered, top)

	p := &Projection{Points: make([][Components]float64, n)}
	for i := 0; i < n; i++ {
		for k := 0; k < Components; k++ {
			p.Points[i][k] = coords.At(i, k)
		}
	}

	var total float64
	for _, v := range vars {
		total += v
	}
	if total > 0 {
		for k := 0; k < Components && k < len(vars); k++ {
			p.ExplainedVarianceRatio[k] = vars[k] / total
		}
	}

	return p, nil
}

// flipSign reports whether the component's largest-magnitude loading is
// negative.
func flipSign(loadings []float64) bool {
	best := 0.0
	for _, v := range loadings {
		if math.Abs(v) > math.Abs(best) {
			best = v
		}
	}
	return best < 0
}
