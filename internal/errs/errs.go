// Package errs holds the result taxonomy shared by every formatting component.
//
// Each failure is reported as an *Error carrying one Code. Sentinel values such as
// ErrTooSmall only carry a code, so errors.Is(err, errs.ErrTooSmall) matches any
// *Error with that code regardless of operation or cause.
package errs

import (
	"errors"
	"fmt"
	"os"

	pkgerrors "github.com/pkg/errors"
)

// Code is the outcome of a formatting operation.
type Code int

const (
	Success Code = iota
	AccessDenied
	DeviceBusy
	InvalidDevice
	IOError
	TooSmall
	UnknownError
)

var codeNames = map[Code]string{
	Success:       "success",
	AccessDenied:  "access denied",
	DeviceBusy:    "device busy",
	InvalidDevice: "invalid device",
	IOError:       "I/O error",
	TooSmall:      "device too small",
	UnknownError:  "unknown error",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Sentinels for errors.Is.
var (
	ErrAccessDenied  = &Error{Code: AccessDenied}
	ErrDeviceBusy    = &Error{Code: DeviceBusy}
	ErrInvalidDevice = &Error{Code: InvalidDevice}
	ErrIO            = &Error{Code: IOError}
	ErrTooSmall      = &Error{Code: TooSmall}
	ErrUnknown       = &Error{Code: UnknownError}
)

// Error is a classified failure. Op names the step that failed ("write MBR",
// "zero region", ...) and Err is the underlying cause, if any.
type Error struct {
	Op   string
	Code Code
	Err  error
}

// New builds an *Error, wrapping cause with a stack trace.
func New(op string, code Code, cause error) error {
	var wrapped error
	if cause != nil {
		wrapped = pkgerrors.WithStack(cause)
	}
	return &Error{Op: op, Code: code, Err: wrapped}
}

// Newf is New with a formatted cause.
func Newf(op string, code Code, format string, args ...interface{}) error {
	return &Error{Op: op, Code: code, Err: pkgerrors.Errorf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Code.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by code. A target with an Op also has to agree on Op.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Op != "" && t.Op != e.Op {
		return false
	}
	return t.Code == e.Code
}

// WithOp returns err relabelled with op if it is an *Error, keeping code and cause.
// Any other non-nil error becomes an UnknownError.
func WithOp(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return &Error{Op: op, Code: e.Code, Err: e.Err}
	}
	return New(op, UnknownError, err)
}

// CodeOf reports the code carried by err. nil is Success and unclassified errors
// are UnknownError.
func CodeOf(err error) Code {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return UnknownError
}

// Classify maps an OS-level error onto the taxonomy, returning fallback when the
// error has no more specific meaning.
func Classify(err error, fallback Code) Code {
	switch {
	case err == nil:
		return Success
	case errors.Is(err, os.ErrClosed), errors.Is(err, os.ErrInvalid):
		return InvalidDevice
	}
	if c, ok := classifyErrno(err); ok {
		return c
	}
	return fallback
}

// Interrupted reports whether err is an interrupted system call that is safe to
// retry.
func Interrupted(err error) bool {
	return err != nil && isInterrupted(err)
}
