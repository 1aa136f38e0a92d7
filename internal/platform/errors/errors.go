package errors

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// KindConfig marks fatal startup problems: missing credentials, unloadable classifier.
	KindConfig Kind = "config"
	// KindValidation marks client input rejected before the pipeline runs.
	KindValidation Kind = "validation"
	// KindGate marks a negative food-gate decision.
	KindGate Kind = "gate"
	// KindUpstream marks a failed call to the classifier, VLM or nutrition database.
	KindUpstream Kind = "upstream"
	// KindInternal marks unexpected per-request failures.
	KindInternal Kind = "internal"

	KindDomain    Kind = "domain"
	KindTransport Kind = "transport"
	KindBootstrap Kind = "bootstrap"
	KindStorage   Kind = "storage"
	KindUnknown   Kind = "unknown"
)

type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Kind, e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Wrap attaches kind and operation to err. A nil err yields nil, and an err that
// already carries a typed *Error is returned unchanged so the innermost kind wins.
func Wrap(kind Kind, op, message string, err error) *Error {
	if err == nil {
		return nil
	}

	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}

	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Cause:   err,
	}
}

// Rewrap always produces a new *Error, keeping err as the cause even when it is typed.
func Rewrap(kind Kind, op, message string, err error) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
		Cause:   err,
	}
}

func New(kind Kind, op, message string) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: message,
	}
}

// IsKind checks whether the outermost typed error in the chain matches the provided kind.
func IsKind(err error, kind Kind) bool {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind == kind
	}
	return false
}

// KindOf returns the kind of the outermost typed error, or KindUnknown.
func KindOf(err error) Kind {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind
	}
	return KindUnknown
}

// OpOf returns the operation of the outermost typed error, or "".
func OpOf(err error) string {
	var target *Error
	if errors.As(err, &target) {
		return target.Op
	}
	return ""
}
