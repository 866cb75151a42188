// Package render draws report views as PNG charts.
package render

import (
	"fmt"
	"io"
	"math"

	"github.com/pkg/errors"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/hed1ad/logwatch/pkg/detectors"
	"github.com/hed1ad/logwatch/pkg/report"
)

// Default canvas size in pixels.
const (
	Width  = 960
	Height = 400
)

// ErrNoProjection is returned when the report has no scatter to draw.
var ErrNoProjection = errors.New("projection not available")

// Scores draws the anomaly score of every window with the threshold as a
// dashed red line.
func Scores(w io.Writer, ts report.TimeSeries) error {
	if len(ts.Points) == 0 {
		return errors.New("no scores to draw")
	}

	xs := make([]float64, len(ts.Points))
	ys := make([]float64, len(ts.Points))
	for i, p := range ts.Points {
		xs[i] = float64(p.Index)
		ys[i] = p.Score
	}
	// A line needs two x values.
	if len(xs) == 1 {
		xs = append(xs, xs[0]+1)
		ys = append(ys, ys[0])
	}

	xMin, xMax := bounds(xs)
	yMin, yMax := bounds(append([]float64{ts.Threshold}, ys...))

	ch := chart.Chart{
		Title:      "Anomaly Score",
		Width:      Width,
		Height:     Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{Name: "window", Range: padded(xMin, xMax)},
		YAxis:      chart.YAxis{Name: "score", Range: padded(yMin, yMax)},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name:    "score",
				XValues: xs,
				YValues: ys,
				Style:   chart.Style{StrokeColor: chart.ColorBlue, StrokeWidth: 1.5},
			},
			chart.ContinuousSeries{
				Name:    fmt.Sprintf("threshold (q=%g)", ts.Quantile),
				XValues: []float64{xMin, xMax},
				YValues: []float64{ts.Threshold, ts.Threshold},
				Style: chart.Style{
					StrokeColor:     chart.ColorRed,
					StrokeWidth:     1.5,
					StrokeDashArray: []float64{6, 4},
				},
			},
		},
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	return errors.Wrap(ch.Render(chart.PNG, w), "render score chart")
}

// Projection draws the windows on their first two principal components,
// anomalies in red and normal windows in blue.
func Projection(w io.Writer, s report.Scatter) error {
	if !s.Available || len(s.Points) == 0 {
		return ErrNoProjection
	}

	var normal, anomalous struct{ xs, ys []float64 }
	xs := make([]float64, 0, len(s.Points))
	ys := make([]float64, 0, len(s.Points))
	for _, p := range s.Points {
		xs = append(xs, p.PC1)
		ys = append(ys, p.PC2)
		if p.Label == detectors.Anomaly {
			anomalous.xs = append(anomalous.xs, p.PC1)
			anomalous.ys = append(anomalous.ys, p.PC2)
		} else {
			normal.xs = append(normal.xs, p.PC1)
			normal.ys = append(normal.ys, p.PC2)
		}
	}
	xMin, xMax := bounds(xs)
	yMin, yMax := bounds(ys)

	var series []chart.Series
	if len(normal.xs) > 0 {
		series = append(series, chart.ContinuousSeries{
			Name:    "normal",
			XValues: normal.xs,
			YValues: normal.ys,
			Style:   pointStyle(chart.ColorBlue),
		})
	}
	if len(anomalous.xs) > 0 {
		series = append(series, chart.ContinuousSeries{
			Name:    "anomaly",
			XValues: anomalous.xs,
			YValues: anomalous.ys,
			Style:   pointStyle(chart.ColorRed),
		})
	}

	evr := s.ExplainedVarianceRatio
	ch := chart.Chart{
		Title:      "PCA Projection",
		Width:      Width,
		Height:     Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{Name: fmt.Sprintf("PC1 (%.1f%%)", 100*evr[0]), Range: padded(xMin, xMax)},
		YAxis:      chart.YAxis{Name: fmt.Sprintf("PC2 (%.1f%%)", 100*evr[1]), Range: padded(yMin, yMax)},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	return errors.Wrap(ch.Render(chart.PNG, w), "render projection chart")
}

// pointStyle renders points only, no connecting line.
func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: chart.Disabled,
		DotWidth:    4,
		DotColor:    col,
	}
}

func bounds(vs []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range vs {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// padded widens [lo, hi] by 5% on each side, or by 1 when the range is
// empty, so constant series still get a drawable axis.
func padded(lo, hi float64) *chart.ContinuousRange {
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = math.Max(math.Abs(lo)*0.05, 1)
	}
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}
