// Package apperr defines the tagged failures returned by the store and the
// domain operations. A failure is user-correctable data, not a crash: handlers
// render its Message to the caller.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindNotFound   Kind = "not_found"
)

type Code string

const (
	CodeInvalidInput      Code = "invalid_input"
	CodeMissingData       Code = "missing_data"
	CodeTitleTooLong      Code = "title_too_long"
	CodeBadCredentials    Code = "bad_credentials"
	CodeForbidden         Code = "forbidden"
	CodeDuplicateUsername Code = "duplicate_username"
	CodeDuplicateEmail    Code = "duplicate_email"
	CodeSlugExhausted     Code = "slug_exhausted"
	CodeConflict          Code = "conflict"
	CodeNotFound          Code = "not_found"
)

var (
	ErrDuplicateUsername = Conflict(CodeDuplicateUsername, "That username is taken")
	ErrDuplicateEmail    = Conflict(CodeDuplicateEmail, "That email address is already in use")
	ErrSlugExhausted     = Conflict(CodeSlugExhausted, "could not find a free url for this post")
	ErrAccountExists     = Conflict(CodeConflict, "That account already exists")
	ErrNotFound          = NotFound("not found")
)

// Error is a failure tagged with a kind and a code. Op names the workflow step
// that produced it (for example "create-post" or "link-posts") when the caller
// needs to tell steps apart.
type Error struct {
	Kind    Kind
	Code    Code
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Message
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches on code so that sentinels survive WithOp and wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

func Validation(code Code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func Conflict(code Code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: message}
}

// WithOp returns a copy of err tagged with op. Errors that are not *Error are
// returned unchanged.
func WithOp(err error, op string) error {
	var ae *Error
	if !errors.As(err, &ae) {
		return err
	}
	cp := *ae
	cp.Op = op
	return &cp
}

// Wrap attaches a cause to a copy of a sentinel.
func Wrap(sentinel *Error, cause error) *Error {
	cp := *sentinel
	cp.Err = cause
	return &cp
}

func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func IsKind(err error, kind Kind) bool {
	ae, ok := As(err)
	return ok && ae.Kind == kind
}

// IsFailure reports whether err is user-correctable (validation or conflict).
func IsFailure(err error) bool {
	return IsKind(err, KindValidation) || IsKind(err, KindConflict)
}
