package detectors

import (
	"math"
	"sort"
)

// Quantile returns the q-th quantile (0 <= q <= 1) of data using linear
// interpolation between the two nearest ranks: position q*(n-1) in sorted
// order. q is clamped to [0, 1]. Empty input yields NaN.
func Quantile(data []float64, q float64) float64 {
	if len(data) == 0 {
		return math.NaN()
	}

	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	q = math.Max(0, math.Min(1, q))
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
