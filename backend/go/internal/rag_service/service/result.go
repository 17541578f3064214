package service

import (
	"net/http"

	"pdf_rag/backend/go/internal/rag_service/rag/pipeline"
	"pdf_rag/backend/go/internal/rag_service/rag/ragerr"
)

// Result is the outcome of one service call: either Ok with a message (and
// for queries an answer) or Err with a classified failure.
type Result struct {
	Message string
	Chunks  int
	Answer  *pipeline.Answer
	Err     error
}

// Ok builds a successful indexing result.
func Ok(message string, chunks int) Result {
	return Result{Message: message, Chunks: chunks}
}

// Answered builds a successful query result.
func Answered(a *pipeline.Answer) Result {
	return Result{Answer: a}
}

// Err builds a failed result. An unclassified err is treated as a storage failure.
func Err(err error) Result {
	if ragerr.KindOf(err) == "" {
		err = ragerr.New(ragerr.Storage, "", err)
	}
	return Result{Err: err}
}

// OK reports whether the call succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Kind is the failure kind, or "" on success.
func (r Result) Kind() ragerr.Kind { return ragerr.KindOf(r.Err) }

// HTTPStatus maps the result onto a response status code.
func (r Result) HTTPStatus() int {
	return StatusFor(r.Kind())
}

// StatusFor maps an error kind onto a response status code.
func StatusFor(kind ragerr.Kind) int {
	switch kind {
	case "":
		return http.StatusOK
	case ragerr.Validation:
		return http.StatusBadRequest
	case ragerr.Configuration:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}
