// Package phgerr defines the error kinds used across the imputation
// pipeline (spec §7). It is built on the standard errors package alone and
// does not import github.com/grailbio/base/errors, which has no notion of a
// kind enum.
package phgerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the purposes of the recovery policy in
// spec §7: which errors abort only the current sample and which are fatal
// to the whole run. A degenerate HMM has no Kind: the path finders return
// an empty Path for it instead of an error.
type Kind int

const (
	// Other is the zero value: an error with no declared recovery policy.
	// Treated the same as IOFailure by callers that switch on Kind.
	Other Kind = iota
	// MalformedInput means a k-mer index, read-mapping, or key file
	// violates its format contract. Aborts the current sample.
	MalformedInput
	// MissingReference means the graph names a hapId with no sequence
	// source, or a sequence contains non-ACGT where validated ACGT was
	// required. Aborts the current sample.
	MissingReference
	// InvariantViolation indicates upstream graph corruption (e.g. a
	// sample gamete maps to two hapIds at one range). Fatal.
	InvariantViolation
	// IOFailure aborts the running sample; the orchestrator continues and
	// a retry of the entire sample is the recovery mechanism.
	IOFailure
)

func (k Kind) String() string {
	switch k {
	case MalformedInput:
		return "MalformedInput"
	case MissingReference:
		return "MissingReference"
	case InvariantViolation:
		return "InvariantViolation"
	case IOFailure:
		return "IOFailure"
	default:
		return "Other"
	}
}

// Error wraps an underlying cause with a Kind and a message, and composes
// with github.com/grailbio/base/errors' wrapping conventions (Error
// implements the standard `Unwrap` protocol so errors.Is/As still work
// through it).
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// E constructs an Error, preserving the same variadic call shape as
// github.com/grailbio/base/errors.E (kind, then message parts, with an
// optional trailing error to wrap).
func E(kind Kind, args ...interface{}) *Error {
	e := &Error{Kind: kind}
	var rest []interface{}
	for _, a := range args {
		if err, ok := a.(error); ok && e.Cause == nil {
			e.Cause = err
			continue
		}
		rest = append(rest, a)
	}
	e.Message = fmt.Sprint(rest...)
	return e
}

// Is reports whether err (or anything it wraps) is a *Error of the given
// Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
