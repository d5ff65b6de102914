package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed taxonomy every fallible operation maps into.
// Handlers translate kinds to HTTP status codes; services never invent
// ad-hoc categories.
type ErrorKind string

const (
	KindNotFound         ErrorKind = "NOT_FOUND"
	KindConflict         ErrorKind = "CONFLICT"
	KindValidation       ErrorKind = "VALIDATION"
	KindRuleViolation    ErrorKind = "RULE_VIOLATION"
	KindInsufficientData ErrorKind = "INSUFFICIENT_DATA"
	KindOutOfRange       ErrorKind = "OUT_OF_RANGE"
	KindForbidden        ErrorKind = "FORBIDDEN"
	KindUnavailable      ErrorKind = "UNAVAILABLE"
	KindTimeout          ErrorKind = "TIMEOUT"
	KindInternal         ErrorKind = "INTERNAL"
)

// Error is a classified error with a stable machine code. Code defaults to
// the kind itself; trade rejections carry the rejection reason instead.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Code != "" && e.Code != string(e.Kind) {
		return fmt.Sprintf("%s:%s: %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// E builds a classified error whose code equals the kind.
func E(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Code: string(kind), Message: fmt.Sprintf(format, args...)}
}

// EC builds a classified error with an explicit machine code.
func EC(kind ErrorKind, code, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error without losing the cause chain.
func Wrap(err error, kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Code: string(kind), Message: fmt.Sprintf(format, args...), cause: err}
}

// AsError unwraps err into a classified *Error if one is in the chain.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// KindOf returns the taxonomy kind of err. Unclassified errors are INTERNAL.
func KindOf(err error) ErrorKind {
	if de, ok := AsError(err); ok {
		return de.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
