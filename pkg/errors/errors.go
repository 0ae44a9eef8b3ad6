// Package errors defines the tagged failure classifications produced at the
// collaborator boundaries (feed client, store gateway). Classification is
// assigned where the failure happens, never inferred downstream by sniffing
// error text or status codes.
package errors

import (
	"errors"
	"fmt"
)

// Classification identifies which collaborator failed and how
type Classification string

const (
	// ClassFormat means the feed payload was not a sequence of records
	ClassFormat Classification = "format"
	// ClassTransportTimeout means the feed call exceeded its deadline
	ClassTransportTimeout Classification = "transport-timeout"
	// ClassTransportHTTP means the feed answered with a non-success status
	ClassTransportHTTP Classification = "transport-http"
	// ClassStore means a store operation failed and was rolled back
	ClassStore Classification = "store"
	// ClassContract means the store-side bulk update contract could not be verified
	ClassContract Classification = "contract"
)

// ClassifiedError carries a failure classification alongside the underlying
// error. Op names the operation that failed; Object optionally names the
// store object implicated.
type ClassifiedError struct {
	Class  Classification
	Op     string
	Object string
	Err    error
}

func (e *ClassifiedError) Error() string {
	if e.Object != "" {
		return fmt.Sprintf("%s: %s (%s): %v", e.Class, e.Op, e.Object, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Class, e.Op, e.Err)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// New creates a classified error
func New(class Classification, op string, err error) *ClassifiedError {
	return &ClassifiedError{Class: class, Op: op, Err: err}
}

// Newf creates a classified error with a formatted message
func Newf(class Classification, op string, format string, args ...any) *ClassifiedError {
	return &ClassifiedError{Class: class, Op: op, Err: fmt.Errorf(format, args...)}
}

// WithObject attaches the name of the store object implicated in the failure
func (e *ClassifiedError) WithObject(object string) *ClassifiedError {
	e.Object = object
	return e
}

// ClassOf returns the classification of err, or "" when err carries none
func ClassOf(err error) Classification {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class
	}
	return ""
}

// Is reports whether err carries the given classification
func Is(err error, class Classification) bool {
	return ClassOf(err) == class
}
