// Package scoring applies a pretrained detector to a standardized matrix and
// derives the display threshold from the resulting score distribution.
package scoring

import (
	"math"

	"github.com/pkg/errors"

	"github.com/hed1ad/logwatch/pkg/detectors"
)

// DefaultQuantile is the low-tail quantile used for the threshold line.
const DefaultQuantile = 0.03

// ErrModelOutputMismatch reports model output that does not line up with
// the input rows.
var ErrModelOutputMismatch = errors.New("model output mismatch")

// Result holds one label and one score per input row, plus the threshold.
type Result struct {
	Labels    []int
	Scores    []float64
	Threshold float64
}

// Anomalies counts rows labelled detectors.Anomaly.
func (r *Result) Anomalies() int {
	n := 0
	for _, l := range r.Labels {
		if l == detectors.Anomaly {
			n++
		}
	}
	return n
}

// Score runs the model over data. Scores keep the model's sign convention;
// the threshold is the q-quantile of the scores.
func Score(model detectors.Model, data [][]float64, q float64) (*Result, error) {
	if q < 0 || q > 1 {
		return nil, errors.Errorf("quantile %v outside [0, 1]", q)
	}

	labels, err := model.Predict(data)
	if err != nil {
		return nil, errors.Wrap(err, "predict")
	}
	if len(labels) != len(data) {
		return nil, errors.Wrapf(ErrModelOutputMismatch, "predict returned %d labels for %d rows",
			len(labels), len(data))
	}
	for i, l := range labels {
		if l != detectors.Anomaly && l != detectors.Normal {
			return nil, errors.Wrapf(ErrModelOutputMismatch, "row %d: label %d is neither -1 nor 1", i, l)
		}
	}

	scores, err := model.DecisionFunction(data)
	if err != nil {
		return nil, errors.Wrap(err, "decision function")
	}
	if len(scores) != len(data) {
		return nil, errors.Wrapf(ErrModelOutputMismatch, "decision function returned %d scores for %d rows",
			len(scores), len(data))
	}
	for i, v := range scores {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, errors.Wrapf(ErrModelOutputMismatch, "row %d: non-finite score %v", i, v)
		}
	}

	return &Result{
		Labels:    labels,
		Scores:    scores,
		Threshold: detectors.Quantile(scores, q),
	}, nil
}
