package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/logwatch/pkg/projection"
)

func input(labels []int, scores []float64) Input {
	rows := make([][]float64, len(labels))
	for i := range rows {
		rows[i] = []float64{float64(i), float64(10 * i)}
	}
	return Input{
		Columns:   []string{"events", "errors"},
		Rows:      rows,
		Labels:    labels,
		Scores:    scores,
		Threshold: -0.1,
		Quantile:  0.03,
	}
}

func TestBuildSummaryAndSeries(t *testing.T) {
	in := input([]int{1, -1, 1, -1}, []float64{0.2, -0.3, 0.1, -0.05})
	r := Build(in)

	assert.Equal(t, Summary{TotalWindows: 4, AnomalousWindows: 2, AnomalyRate: 0.5}, r.Summary)
	assert.Equal(t, []ScorePoint{{0, 0.2}, {1, -0.3}, {2, 0.1}, {3, -0.05}}, r.TimeSeries.Points)
	assert.Equal(t, -0.1, r.TimeSeries.Threshold)
	assert.Equal(t, 0.03, r.TimeSeries.Quantile)
}

func TestAnomalyTableOrdering(t *testing.T) {
	labels := []int{-1, 1, -1, -1, 1, -1}
	scores := []float64{-0.1, -0.9, -0.3, -0.1, 0.2, -0.2}
	r := Build(input(labels, scores))

	var windows []int
	for _, row := range r.Anomalies.Rows {
		assert.Equal(t, -1, row.Anomaly)
		windows = append(windows, row.Window)
	}
	// ascending by score; windows 0 and 3 tie and keep table order
	assert.Equal(t, []int{2, 5, 0, 3}, windows)
	assert.Equal(t, 4, r.Anomalies.Total)
	assert.Equal(t, []float64{2, 20}, r.Anomalies.Rows[0].Features)
}

func TestAnomalyTableTruncation(t *testing.T) {
	n := 120
	labels := make([]int, n)
	scores := make([]float64, n)
	for i := range labels {
		labels[i] = -1
		if i%3 == 0 {
			labels[i] = 1
		}
		scores[i] = float64(n-i) / 100
	}

	r := Build(input(labels, scores))
	require.Len(t, r.Anomalies.Rows, DefaultTopN)
	assert.Equal(t, 80, r.Anomalies.Total)
	for i := 1; i < len(r.Anomalies.Rows); i++ {
		assert.LessOrEqual(t, r.Anomalies.Rows[i-1].Score, r.Anomalies.Rows[i].Score)
	}
	// most anomalous anomaly is the last labelled -1 window
	assert.Equal(t, 119, r.Anomalies.Rows[0].Window)

	in := input(labels, scores)
	in.TopN = 5
	assert.Len(t, Build(in).Anomalies.Rows, 5)
}

func TestAnomalyTableFewerThanTopN(t *testing.T) {
	r := Build(input([]int{1, 1, -1}, []float64{0.1, 0.2, -0.4}))
	require.Len(t, r.Anomalies.Rows, 1)
	assert.Equal(t, 2, r.Anomalies.Rows[0].Window)

	none := Build(input([]int{1, 1}, []float64{0.1, 0.2}))
	assert.NotNil(t, none.Anomalies.Rows)
	assert.Empty(t, none.Anomalies.Rows)
}

func TestScatter(t *testing.T) {
	in := input([]int{1, -1}, []float64{0.1, -0.2})
	in.Projection = &projection.Projection{
		Points:                 [][2]float64{{1, 2}, {-1, -2}},
		ExplainedVarianceRatio: [2]float64{0.9, 0.1},
	}

	s := Build(in).Scatter
	assert.True(t, s.Available)
	assert.Equal(t, []ScatterPoint{{1, 2, 1}, {-1, -2, -1}}, s.Points)
	assert.Equal(t, [2]float64{0.9, 0.1}, s.ExplainedVarianceRatio)
}

func TestScatterUnavailable(t *testing.T) {
	in := input([]int{1, -1}, []float64{0.1, -0.2})
	in.ProjectionErr = projection.ErrInsufficientDimensions

	r := Build(in)
	assert.False(t, r.Scatter.Available)
	assert.Contains(t, r.Scatter.Reason, "insufficient dimensions")
	// the other views are still produced
	assert.Equal(t, 1, r.Summary.AnomalousWindows)
	assert.Len(t, r.Anomalies.Rows, 1)
}

func TestAnomalyTableExport(t *testing.T) {
	r := Build(input([]int{-1, 1, -1}, []float64{-0.1, 0.3, -0.2}))

	tbl := r.Anomalies.Table()
	assert.Equal(t, []string{"window", "events", "errors", "anomaly", "score"}, tbl.Columns)
	assert.Equal(t, [][]float64{
		{2, 2, 20, -1, -0.2},
		{0, 0, 0, -1, -0.1},
	}, tbl.Rows)
	assert.NoError(t, tbl.Validate())
}
