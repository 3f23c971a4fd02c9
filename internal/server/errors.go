// Package server provides the HTTP REST API for the job hunt pipeline.
package server

import (
	"errors"
	"net/http"

	"github.com/jonathan/jobhunt-pipeline/internal/db"
	"github.com/jonathan/jobhunt-pipeline/internal/docgen"
	"github.com/jonathan/jobhunt-pipeline/internal/workflow"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return "validation error: " + e.Field + " - " + e.Message
}

// HTTPStatus returns the appropriate HTTP status code for an error.
func HTTPStatus(err error) int {
	var ev *ErrValidation
	var tnf *docgen.TemplateNotFoundError
	switch {
	case errors.As(err, &ev):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrNotFound), errors.Is(err, workflow.ErrRunNotFound), errors.As(err, &tnf):
		return http.StatusNotFound
	case errors.Is(err, workflow.ErrRunActive),
		errors.Is(err, workflow.ErrRunTerminal),
		errors.Is(err, workflow.ErrNotWaiting),
		errors.Is(err, workflow.ErrVersionConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
