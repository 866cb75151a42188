package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/hed1ad/logwatch/pkg/report"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"percent": func(v float64) string { return fmt.Sprintf("%.2f%%", 100*v) },
	"number":  func(v float64) string { return fmt.Sprintf("%.4g", v) },
}).ParseFS(templateFS, "templates/*.html"))

type dashboardPage struct {
	Report *report.Report
}

type errorPage struct {
	Status  int
	Code    string
	Stage   string
	Message string
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	rep, err := s.runner.Run(s.features, s.model)
	if err != nil {
		apiErr := NewAPIError(err)
		s.log.WithError(err).Error("dashboard run failed")
		s.page(w, apiErr.StatusCode, "error.html", errorPage{
			Status:  apiErr.StatusCode,
			Code:    apiErr.ErrorCode,
			Stage:   apiErr.Stage,
			Message: apiErr.Message,
		})
		return
	}
	s.page(w, http.StatusOK, "dashboard.html", dashboardPage{Report: rep})
}

func (s *Server) page(w http.ResponseWriter, status int, name string, data interface{}) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.log.WithError(err).Error("template execution failed")
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
