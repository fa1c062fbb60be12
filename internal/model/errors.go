// Package model defines the shared data types of the executor service:
// workspaces, snapshots, code actions, execution results, and the error
// taxonomy every other package reports through.
package model

import (
	"errors"
	"fmt"
)

// ErrorKind is a closed taxonomy, not a Go error type hierarchy — every
// ServiceError carries exactly one of these.
type ErrorKind string

const (
	ErrTraversal       ErrorKind = "TRAVERSAL"
	ErrNotFound        ErrorKind = "NOT_FOUND"
	ErrExists          ErrorKind = "EXISTS"
	ErrCloneFailed     ErrorKind = "CLONE_FAILED"
	ErrArchiveFailed   ErrorKind = "ARCHIVE_FAILED"
	ErrSyntaxError     ErrorKind = "SYNTAX_ERROR"
	ErrPolicyViolation ErrorKind = "POLICY_VIOLATION"
	ErrTimeout         ErrorKind = "TIMEOUT"
	ErrRuntime         ErrorKind = "RUNTIME"
	ErrInvalidArgument ErrorKind = "INVALID_ARGUMENT"
)

// ServiceError carries a taxonomy kind alongside the usual wrapped error,
// so callers can branch on Kind with errors.As instead of string matching.
type ServiceError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// NewError builds a ServiceError, wrapping an underlying cause if present.
func NewError(kind ErrorKind, msg string, cause error) *ServiceError {
	return &ServiceError{Kind: kind, Msg: msg, Err: cause}
}

// KindOf extracts the ErrorKind from err if it is (or wraps) a
// *ServiceError, returning ok=false otherwise.
func KindOf(err error) (ErrorKind, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return "", false
}
