// Package apperr defines the application error taxonomy. Every handler maps
// one of these kinds to an HTTP status and a machine-parseable JSON body;
// anything else is an internal error.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuthorization
	KindNotFound
	KindUpstream
)

// Authorization reasons, distinguishable by callers.
const (
	ReasonNotEnrolled    = "not_enrolled"
	ReasonNotAssigned    = "not_assigned"
	ReasonManualDisabled = "manual_disabled"
	ReasonRole           = "role"
)

// Upstream error classes for the recognition service.
const (
	UpstreamRefused = "connection_refused"
	UpstreamTimeout = "timeout"
	UpstreamUnknown = "unknown"
)

type Error struct {
	Kind   Kind
	Reason string // authorization reason or upstream class, empty otherwise
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func Authorization(reason, format string, args ...any) *Error {
	return &Error{Kind: KindAuthorization, Reason: reason, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Upstream(class string, err error, format string, args ...any) *Error {
	return &Error{Kind: KindUpstream, Reason: class, Msg: fmt.Sprintf(format, args...), Err: err}
}

// As extracts an *Error from an error chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// IsKind reports whether err is an application error of the given kind.
func IsKind(err error, kind Kind) bool {
	ae, ok := As(err)
	return ok && ae.Kind == kind
}
