// Package metrics holds the operational Prometheus metrics of logwatch.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "logwatch"

type metricDefinition struct {
	Name string
	Help string
	Type string
}

var definitions []metricDefinition

func define(name, help, typ string) {
	definitions = append(definitions, metricDefinition{Name: namespace + "_" + name, Help: help, Type: typ})
}

func newCounterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	define(opts.Name, opts.Help, "counter")
	opts.Namespace = namespace
	return promauto.NewCounterVec(opts, labels)
}

func newHistogramVec(opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	define(opts.Name, opts.Help, "histogram")
	opts.Namespace = namespace
	return promauto.NewHistogramVec(opts, labels)
}

func newGauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	define(opts.Name, opts.Help, "gauge")
	opts.Namespace = namespace
	return promauto.NewGauge(opts)
}

var (
	// Runs counts pipeline runs by outcome: "ok" or the failing stage.
	Runs = newCounterVec(prometheus.CounterOpts{
		Name: "runs_total",
		Help: "Pipeline runs by result",
	}, []string{"result"})

	// StageDuration observes the time spent in each pipeline stage.
	StageDuration = newHistogramVec(prometheus.HistogramOpts{
		Name:    "stage_duration_seconds",
		Help:    "Time spent per pipeline stage",
		Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
	}, []string{"stage"})

	// Windows is the number of windows scored by the last successful run.
	Windows = newGauge(prometheus.GaugeOpts{
		Name: "windows",
		Help: "Windows scored by the last successful run",
	})

	// AnomalousWindows is the number of windows labelled -1 by the last
	// successful run.
	AnomalousWindows = newGauge(prometheus.GaugeOpts{
		Name: "anomalous_windows",
		Help: "Windows labelled anomalous by the last successful run",
	})

	// Threshold is the score threshold of the last successful run.
	Threshold = newGauge(prometheus.GaugeOpts{
		Name: "score_threshold",
		Help: "Quantile score threshold of the last successful run",
	})

	// CacheLookups counts artifact cache lookups by artifact kind and result.
	CacheLookups = newCounterVec(prometheus.CounterOpts{
		Name: "artifact_cache_lookups_total",
		Help: "Artifact cache lookups by kind and result (hit, miss)",
	}, []string{"kind", "result"})
)

// GetDocumentation returns a markdown description of every metric.
func GetDocumentation() string {
	doc := ""
	for _, d := range definitions {
		doc += fmt.Sprintf(
			`
### %s
| **Name** | %s |
|:---|:---|
| **Description** | %s |
| **Type** | %s |

`,
			d.Name,
			d.Name,
			d.Help,
			d.Type,
		)
	}
	return doc
}
