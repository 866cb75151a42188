package server

import (
	"net/http"

	"github.com/go-chi/render"
	"github.com/pkg/errors"

	"github.com/hed1ad/logwatch/pkg/dataset"
	"github.com/hed1ad/logwatch/pkg/detectors"
	"github.com/hed1ad/logwatch/pkg/pipeline"
	"github.com/hed1ad/logwatch/pkg/preprocess"
	charts "github.com/hed1ad/logwatch/pkg/render"
	"github.com/hed1ad/logwatch/pkg/scoring"
)

// Error codes.
const (
	CodeLoadFailed          = "LOAD_FAILED"
	CodeEmptyDataset        = "EMPTY_DATASET"
	CodeModelOutputMismatch = "MODEL_OUTPUT_MISMATCH"
	CodeProjectionMissing   = "PROJECTION_UNAVAILABLE"
	CodeInternal            = "INTERNAL_ERROR"
)

// APIError is the JSON body of every failed API request.
type APIError struct {
	StatusCode int    `json:"status_code"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
	Stage      string `json:"stage,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// Render implements render.Renderer.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// NewAPIError maps a pipeline or rendering error onto a status and code.
func NewAPIError(err error) *APIError {
	e := &APIError{
		StatusCode: http.StatusInternalServerError,
		ErrorCode:  CodeInternal,
		Message:    err.Error(),
	}

	var se *pipeline.StageError
	if errors.As(err, &se) {
		e.Stage = se.Stage
	}

	switch {
	case errors.Is(err, dataset.ErrDataLoad), errors.Is(err, detectors.ErrModelLoad):
		e.ErrorCode = CodeLoadFailed
	case errors.Is(err, preprocess.ErrEmptyDataset):
		e.StatusCode = http.StatusUnprocessableEntity
		e.ErrorCode = CodeEmptyDataset
	case errors.Is(err, scoring.ErrModelOutputMismatch):
		e.ErrorCode = CodeModelOutputMismatch
	case errors.Is(err, charts.ErrNoProjection):
		e.StatusCode = http.StatusNotFound
		e.ErrorCode = CodeProjectionMissing
	}
	return e
}
