// Package pipeline runs one end-to-end scoring pass: load the feature table
// and model, standardize, score, project and assemble the report.
package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/heptiolabs/healthcheck"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/hed1ad/logwatch/pkg/dataset"
	"github.com/hed1ad/logwatch/pkg/detectors"
	"github.com/hed1ad/logwatch/pkg/metrics"
	"github.com/hed1ad/logwatch/pkg/preprocess"
	"github.com/hed1ad/logwatch/pkg/projection"
	"github.com/hed1ad/logwatch/pkg/report"
	"github.com/hed1ad/logwatch/pkg/scoring"
)

// Stage names, in execution order.
const (
	StageLoad    = "load"
	StagePrepare = "prepare"
	StageScore   = "score"
	StageProject = "project"
	StagePresent = "present"
)

// StageError tags a fatal error with the stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Loader supplies the cached inputs of a run. *artifact.Store implements it.
type Loader interface {
	Table(path string) (*dataset.Table, error)
	Model(path string) (detectors.Model, error)
}

// Pipeline runs scoring passes over cached artifacts. It holds no per-run
// state and may be shared between goroutines.
type Pipeline struct {
	loader   Loader
	quantile float64
	topN     int
	log      *log.Entry
	now      func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithQuantile sets the threshold quantile.
func WithQuantile(q float64) Option {
	return func(p *Pipeline) {
		p.quantile = q
	}
}

// WithTopN sets the maximum number of rows in the anomaly table.
func WithTopN(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.topN = n
		}
	}
}

// WithLogger sets the log entry runs are logged through.
func WithLogger(l *log.Entry) Option {
	return func(p *Pipeline) {
		p.log = l
	}
}

// New creates a pipeline reading its inputs from loader.
func New(loader Loader, opts ...Option) *Pipeline {
	p := &Pipeline{
		loader:   loader,
		quantile: scoring.DefaultQuantile,
		topN:     report.DefaultTopN,
		log:      log.WithField("component", "pipeline"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run scores the table at featuresPath with the model at modelPath. Fatal
// errors are returned as *StageError and no report is produced. A projection
// that cannot be computed only leaves the scatter unavailable.
func (p *Pipeline) Run(featuresPath, modelPath string) (*report.Report, error) {
	runID := uuid.NewString()
	rlog := p.log.WithField("run", runID)
	rlog.WithFields(log.Fields{"features": featuresPath, "model": modelPath}).Debug("starting run")

	var (
		table *dataset.Table
		model detectors.Model
	)
	err := p.stage(StageLoad, func() error {
		var err error
		if table, err = p.loader.Table(featuresPath); err != nil {
			return err
		}
		model, err = p.loader.Model(modelPath)
		return err
	})
	if err != nil {
		return nil, p.fail(rlog, err)
	}

	var features, standardized preprocess.Matrix
	err = p.stage(StagePrepare, func() error {
		var err error
		features, standardized, _, err = preprocess.Prepare(table)
		return err
	})
	if err != nil {
		return nil, p.fail(rlog, err)
	}

	var scored *scoring.Result
	err = p.stage(StageScore, func() error {
		var err error
		scored, err = scoring.Score(model, standardized.Rows, p.quantile)
		return err
	})
	if err != nil {
		return nil, p.fail(rlog, err)
	}

	var (
		proj    *projection.Projection
		projErr error
	)
	err = p.stage(StageProject, func() error {
		proj, projErr = projection.Project(standardized.Rows)
		if projErr == nil || errors.Is(projErr, projection.ErrInsufficientDimensions) {
			return nil
		}
		return projErr
	})
	if err != nil {
		return nil, p.fail(rlog, err)
	}
	if projErr != nil {
		rlog.WithError(projErr).Warn("skipping projection")
	}

	// Building the report cannot fail, so it is timed without a StageError.
	start := time.Now()
	rep := report.Build(report.Input{
		Columns:       features.Columns,
		Rows:          features.Rows,
		Labels:        scored.Labels,
		Scores:        scored.Scores,
		Threshold:     scored.Threshold,
		Quantile:      p.quantile,
		Projection:    proj,
		ProjectionErr: projErr,
		TopN:          p.topN,
	})
	observe(StagePresent, start)
	rep.RunID = runID
	rep.GeneratedAt = p.now().UTC()
	rep.Features = featuresPath
	rep.Model = modelPath

	metrics.Runs.WithLabelValues("ok").Inc()
	metrics.Windows.Set(float64(rep.Summary.TotalWindows))
	metrics.AnomalousWindows.Set(float64(rep.Summary.AnomalousWindows))
	metrics.Threshold.Set(scored.Threshold)

	rlog.WithFields(log.Fields{
		"windows":   rep.Summary.TotalWindows,
		"anomalies": rep.Summary.AnomalousWindows,
		"threshold": scored.Threshold,
	}).Info("run complete")

	return rep, nil
}

// Check loads both artifacts without scoring them.
func (p *Pipeline) Check(featuresPath, modelPath string) error {
	if _, err := p.loader.Table(featuresPath); err != nil {
		return &StageError{Stage: StageLoad, Err: err}
	}
	if _, err := p.loader.Model(modelPath); err != nil {
		return &StageError{Stage: StageLoad, Err: err}
	}
	return nil
}

// IsReady returns a health check that passes once both artifacts load.
func (p *Pipeline) IsReady(featuresPath, modelPath string) healthcheck.Check {
	return func() error {
		return p.Check(featuresPath, modelPath)
	}
}

func (p *Pipeline) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	observe(name, start)
	if err != nil {
		return &StageError{Stage: name, Err: err}
	}
	return nil
}

func observe(stage string, start time.Time) {
	metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (p *Pipeline) fail(rlog *log.Entry, err error) error {
	stage := "unknown"
	var se *StageError
	if errors.As(err, &se) {
		stage = se.Stage
	}
	metrics.Runs.WithLabelValues(stage).Inc()
	rlog.WithError(err).Error("run failed")
	return err
}
