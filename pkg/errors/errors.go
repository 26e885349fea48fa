// Package errors provides the tagged error taxonomy shared by all
// pipeline stages.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies a pipeline error for fatal-vs-recoverable handling.
type Kind string

const (
	KindConfig                 Kind = "config"
	KindDataSource             Kind = "data_source"
	KindSchema                 Kind = "schema"
	KindInsufficientData       Kind = "insufficient_data"
	KindHyperparameterCoverage Kind = "hyperparameter_coverage"
	KindTrainingEngine         Kind = "training_engine"
	KindNoCandidate            Kind = "no_candidate"
	KindAllocationEngine       Kind = "allocation_engine"
	KindStorage                Kind = "storage"
)

// Error is the tagged error type returned by pipeline stages. The top-level
// runner inspects the Kind to decide whether to abort the job.
type Error struct {
	Kind  Kind
	Stage string
	Err   error
}

func (e *Error) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s: %s error: %v", e.Stage, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError creates a tagged pipeline error.
func NewError(kind Kind, stage string, format string, args ...any) *Error {
	return &Error{Kind: kind, Stage: stage, Err: fmt.Errorf(format, args...)}
}

// WrapError tags an existing error. A nil err returns nil.
func WrapError(kind Kind, stage string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Stage: stage, Err: err}
}

// KindOf extracts the Kind from an error chain, or "" if the chain carries
// no pipeline error.
func KindOf(err error) Kind {
	var pe *Error
	if stderrors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsFatal reports whether an error aborts the job. Storage write failures
// outside the final status write and per-month allocation failures are the
// only recoverable kinds; everything else (including untagged errors) stops
// the pipeline.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case KindStorage, KindAllocationEngine:
		return false
	}
	return true
}
