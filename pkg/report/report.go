// Package report assembles the dashboard views from scored windows. It only
// reshapes, filters and sorts; all numbers come from the pipeline.
package report

import (
	"sort"
	"time"

	"github.com/hed1ad/logwatch/pkg/dataset"
	"github.com/hed1ad/logwatch/pkg/detectors"
	"github.com/hed1ad/logwatch/pkg/projection"
)

// DefaultTopN is the maximum number of rows in the anomaly table.
const DefaultTopN = 50

// WindowColumn is the leading export column holding the window index.
const WindowColumn = "window"

// Report is everything the dashboard displays for one run.
type Report struct {
	RunID       string       `json:"run_id"`
	GeneratedAt time.Time    `json:"generated_at"`
	Features    string       `json:"features"`
	Model       string       `json:"model"`
	Summary     Summary      `json:"summary"`
	TimeSeries  TimeSeries   `json:"time_series"`
	Scatter     Scatter      `json:"scatter"`
	Anomalies   AnomalyTable `json:"anomalies"`
}

// Summary holds the headline counts.
type Summary struct {
	TotalWindows     int     `json:"total_windows"`
	AnomalousWindows int     `json:"anomalous_windows"`
	AnomalyRate      float64 `json:"anomaly_rate"`
}

// ScorePoint is one window's score.
type ScorePoint struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// TimeSeries is the score of every window in table order plus the
// threshold reference line.
type TimeSeries struct {
	Points    []ScorePoint `json:"points"`
	Threshold float64      `json:"threshold"`
	Quantile  float64      `json:"quantile"`
}

// ScatterPoint is one window on the principal plane.
type ScatterPoint struct {
	PC1   float64 `json:"pc1"`
	PC2   float64 `json:"pc2"`
	Label int     `json:"label"`
}

// Scatter is the 2-D projection colored by label. When the projection could
// not be computed Available is false and Reason says why.
type Scatter struct {
	Available              bool           `json:"available"`
	Reason                 string         `json:"reason,omitempty"`
	ExplainedVarianceRatio [2]float64     `json:"explained_variance_ratio"`
	Points                 []ScatterPoint `json:"points"`
}

// Row is a scored window.
type Row struct {
	Window   int       `json:"window"`
	Features []float64 `json:"features"`
	Anomaly  int       `json:"anomaly"`
	Score    float64   `json:"score"`
}

// AnomalyTable lists the most anomalous windows, lowest score first.
type AnomalyTable struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
	// Total is the number of anomalous windows before truncation.
	Total int `json:"total"`
}

// Table flattens the anomaly table for export: window, features, anomaly,
// score.
func (a *AnomalyTable) Table() *dataset.Table {
	t := &dataset.Table{
		Columns: make([]string, 0, len(a.Columns)+3),
		Rows:    make([][]float64, len(a.Rows)),
	}
	t.Columns = append(t.Columns, WindowColumn)
	t.Columns = append(t.Columns, a.Columns...)
	t.Columns = append(t.Columns, dataset.AnomalyColumn, dataset.ScoreColumn)

	for i, r := range a.Rows {
		row := make([]float64, 0, len(t.Columns))
		row = append(row, float64(r.Window))
		row = append(row, r.Features...)
		row = append(row, float64(r.Anomaly), r.Score)
		t.Rows[i] = row
	}
	return t
}

// Input carries the pipeline outputs into Build.
type Input struct {
	// Columns and Rows are the feature matrix in its original units.
	Columns   []string
	Rows      [][]float64
	Labels    []int
	Scores    []float64
	Threshold float64
	Quantile  float64
	// Projection is nil when ProjectionErr explains why it is missing.
	Projection    *projection.Projection
	ProjectionErr error
	TopN          int
}

// Build assembles the report views. Labels, Scores and Rows must have the
// same length.
func Build(in Input) *Report {
	topN := in.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}

	r := &Report{}

	r.Summary.TotalWindows = len(in.Rows)
	for _, l := range in.Labels {
		if l == detectors.Anomaly {
			r.Summary.AnomalousWindows++
		}
	}
	if r.Summary.TotalWindows > 0 {
		r.Summary.AnomalyRate = float64(r.Summary.AnomalousWindows) / float64(r.Summary.TotalWindows)
	}

	r.TimeSeries = TimeSeries{
		Points:    make([]ScorePoint, len(in.Scores)),
		Threshold: in.Threshold,
		Quantile:  in.Quantile,
	}
	for i, s := range in.Scores {
		r.TimeSeries.Points[i] = ScorePoint{Index: i, Score: s}
	}

	r.Scatter = buildScatter(in)
	r.Anomalies = buildAnomalies(in, topN)

	return r
}

func buildScatter(in Input) Scatter {
	if in.Projection == nil {
		reason := "projection unavailable"
		if in.ProjectionErr != nil {
			reason = in.ProjectionErr.Error()
		}
		return Scatter{Reason: reason, Points: []ScatterPoint{}}
	}

	s := Scatter{
		Available:              true,
		ExplainedVarianceRatio: in.Projection.ExplainedVarianceRatio,
		Points:                 make([]ScatterPoint, len(in.Projection.Points)),
	}
	for i, p := range in.Projection.Points {
		s.Points[i] = ScatterPoint{PC1: p[0], PC2: p[1], Label: in.Labels[i]}
	}
	return s
}

func buildAnomalies(in Input, topN int) AnomalyTable {
	t := AnomalyTable{Columns: in.Columns, Rows: []Row{}}

	for i, l := range in.Labels {
		if l != detectors.Anomaly {
			continue
		}
		t.Rows = append(t.Rows, Row{
			Window:   i,
			Features: in.Rows[i],
			Anomaly:  l,
			Score:    in.Scores[i],
		})
	}
	t.Total = len(t.Rows)

	// Rows are collected in window order, so a stable sort breaks ties by it.
	sort.SliceStable(t.Rows, func(a, b int) bool {
		return t.Rows[a].Score < t.Rows[b].Score
	})
	if len(t.Rows) > topN {
		t.Rows = t.Rows[:topN]
	}
	return t
}
