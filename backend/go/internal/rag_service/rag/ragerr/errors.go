// Package ragerr defines the error taxonomy shared by the object store gateway,
// the vector store client and both pipelines.
package ragerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	Validation    Kind = "validation"
	Storage       Kind = "storage"
	Configuration Kind = "configuration"
	Conversion    Kind = "conversion"
	Embedding     Kind = "embedding"
	Retrieval     Kind = "retrieval"
	Generation    Kind = "generation"
)

// Error implements the error interface so that errors.Is(err, ragerr.Storage) works.
func (k Kind) Error() string {
	return string(k)
}

// Error is a classified failure. StatusCode is only set for failures that
// observed an HTTP response (for example a blob download).
type Error struct {
	Kind       Kind
	Op         string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := string(e.Kind) + " error"
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches either another *Error of the same kind or a bare Kind.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case Kind:
		return e.Kind == t
	case *Error:
		return e.Kind == t.Kind
	}
	return false
}

// New wraps err with a kind and the failing operation. An err that is already
// classified is returned unchanged so the first classification wins.
func New(kind Kind, op string, err error) error {
	var existing *Error
	if errors.As(err, &existing) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf is New with a formatted message as the cause.
func Newf(kind Kind, op, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// WithStatus builds a Storage-style error that carries an HTTP status code.
func WithStatus(kind Kind, op string, status int, err error) error {
	return &Error{Kind: kind, Op: op, StatusCode: status, Err: err}
}

// KindOf returns the kind of err, or "" if it is unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return ""
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return 0
}
