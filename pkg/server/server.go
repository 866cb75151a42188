// Package server exposes the anomaly dashboard over HTTP: an HTML page, the
// report as JSON, PNG charts, table exports, metrics and health checks.
package server

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/hed1ad/logwatch/pkg/config"
	"github.com/hed1ad/logwatch/pkg/dataset"
	lwcsv "github.com/hed1ad/logwatch/pkg/io/csv"
	"github.com/hed1ad/logwatch/pkg/io/xlsx"
	charts "github.com/hed1ad/logwatch/pkg/render"
	"github.com/hed1ad/logwatch/pkg/report"
)

// Runner produces a report from the configured artifacts.
// *pipeline.Pipeline implements it.
type Runner interface {
	Run(featuresPath, modelPath string) (*report.Report, error)
	Check(featuresPath, modelPath string) error
}

// Server serves the dashboard for one feature table and model.
type Server struct {
	runner   Runner
	features string
	model    string
	log      *log.Entry
	health   healthcheck.Handler
	http     *http.Server
}

// New creates a server for the artifacts named in opts.
func New(runner Runner, opts *config.Options) *Server {
	s := &Server{
		runner:   runner,
		features: opts.Features,
		model:    opts.Model,
		log:      log.WithField("component", "server"),
		health:   healthcheck.NewHandler(),
	}
	s.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(1000))
	s.health.AddReadinessCheck("artifacts", func() error {
		return s.runner.Check(s.features, s.model)
	})

	s.http = &http.Server{
		Addr:              opts.Server.ListenAddress(),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Routes returns the dashboard router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.dashboard)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))
		r.Get("/report", s.withReport(func(w http.ResponseWriter, r *http.Request, rep *report.Report) {
			render.JSON(w, r, rep)
		}))
		r.Get("/summary", s.withReport(func(w http.ResponseWriter, r *http.Request, rep *report.Report) {
			render.JSON(w, r, rep.Summary)
		}))
		r.Get("/timeseries", s.withReport(func(w http.ResponseWriter, r *http.Request, rep *report.Report) {
			render.JSON(w, r, rep.TimeSeries)
		}))
		r.Get("/scatter", s.withReport(func(w http.ResponseWriter, r *http.Request, rep *report.Report) {
			render.JSON(w, r, rep.Scatter)
		}))
		r.Get("/anomalies", s.withReport(func(w http.ResponseWriter, r *http.Request, rep *report.Report) {
			render.JSON(w, r, rep.Anomalies)
		}))
	})

	r.Get("/charts/scores.png", s.withReport(func(w http.ResponseWriter, r *http.Request, rep *report.Report) {
		s.png(w, r, func(buf *bytes.Buffer) error { return charts.Scores(buf, rep.TimeSeries) })
	}))
	r.Get("/charts/projection.png", s.withReport(func(w http.ResponseWriter, r *http.Request, rep *report.Report) {
		s.png(w, r, func(buf *bytes.Buffer) error { return charts.Projection(buf, rep.Scatter) })
	}))

	r.Get("/export/anomalies.csv", s.withReport(func(w http.ResponseWriter, r *http.Request, rep *report.Report) {
		s.export(w, r, rep.Anomalies.Table(), "text/csv", "anomalies.csv", func(buf *bytes.Buffer, t *dataset.Table) error {
			return lwcsv.NewWriter(buf).WriteTable(t)
		})
	}))
	r.Get("/export/anomalies.xlsx", s.withReport(func(w http.ResponseWriter, r *http.Request, rep *report.Report) {
		s.export(w, r, rep.Anomalies.Table(), "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "anomalies.xlsx",
			func(buf *bytes.Buffer, t *dataset.Table) error {
				return xlsx.NewWriter(buf).WriteTable(t)
			})
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/live", s.health.LiveEndpoint)
	r.Get("/ready", s.health.ReadyEndpoint)

	return r
}

// ListenAndServe serves until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.log.WithField("address", s.http.Addr).Info("starting dashboard server")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down dashboard server")
	return s.http.Shutdown(ctx)
}

type reportHandler func(w http.ResponseWriter, r *http.Request, rep *report.Report)

// withReport runs the pipeline for every request and renders its failure
// as an APIError.
func (s *Server) withReport(next reportHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := s.runner.Run(s.features, s.model)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		next(w, r, rep)
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := NewAPIError(err)
	s.log.WithFields(log.Fields{
		"request_id": middleware.GetReqID(r.Context()),
		"code":       apiErr.ErrorCode,
	}).WithError(err).Error("request failed")
	_ = render.Render(w, r, apiErr)
}

// png buffers the chart so a rendering failure can still produce a JSON
// error.
func (s *Server) png(w http.ResponseWriter, r *http.Request, draw func(*bytes.Buffer) error) {
	var buf bytes.Buffer
	if err := draw(&buf); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) export(w http.ResponseWriter, r *http.Request, t *dataset.Table, contentType, filename string,
	write func(*bytes.Buffer, *dataset.Table) error) {
	var buf bytes.Buffer
	if err := write(&buf, t); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.log.WithFields(log.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start),
			}).Debug("request served")
		}()
		next.ServeHTTP(ww, r)
	})
}
