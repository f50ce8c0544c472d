// Package ferr defines the error taxonomy shared by every layer of the
// simulated file system. Every failure the engine can produce is one of the
// Kind values below; callers use errors.Is against these constants rather
// than matching on strings.
package ferr

import (
	"errors"
	"fmt"
)

// Kind is a typed-string error, matching one category from the engine's
// error taxonomy. It implements the error interface directly so a bare
// Kind value (e.g. NotFound) can be returned and compared with errors.Is.
type Kind string

const (
	NotFound          = Kind("no such file or directory")
	AlreadyExists     = Kind("file already exists")
	NotADirectory     = Kind("not a directory")
	IsADirectory      = Kind("is a directory")
	DirectoryNotEmpty = Kind("directory not empty")
	PermissionDenied  = Kind("permission denied")
	NotAuthenticated  = Kind("not authenticated")
	OutOfInodes       = Kind("no free inodes")
	OutOfSpace        = Kind("no free data blocks")
	FileTooLarge      = Kind("file too large")
	InvalidPath       = Kind("invalid path")
	InvalidName       = Kind("invalid name")
	ImageCorrupt      = Kind("image corrupt")
	Io                = Kind("i/o error")
)

func (k Kind) Error() string {
	return string(k)
}

// WithMessage attaches additional context to a Kind without losing its
// identity: errors.Is(result, k) still holds.
func (k Kind) WithMessage(message string) *Error {
	return &Error{kind: k, message: fmt.Sprintf("%s: %s", k, message)}
}

// Wrap attaches an underlying cause to a Kind. errors.Is(result, k) and
// errors.Is(result, cause) both hold.
func (k Kind) Wrap(cause error) *Error {
	return &Error{
		kind:    k,
		message: fmt.Sprintf("%s: %s", k, cause.Error()),
		cause:   cause,
	}
}

// Error is the concrete error value produced once a Kind has been given a
// custom message or a wrapped cause. It is never constructed directly;
// use Kind.WithMessage or Kind.Wrap.
type Error struct {
	kind    Kind
	message string
	cause   error
}

func (e *Error) Error() string {
	return e.message
}

// Is reports whether target is the Kind this error was built from, so
// errors.Is(err, ferr.NotFound) works regardless of how much context was
// layered on with WithMessage/Wrap.
func (e *Error) Is(target error) bool {
	if k, ok := target.(Kind); ok {
		return k == e.kind
	}
	return false
}

func (e *Error) Unwrap() error {
	if e.cause != nil {
		return e.cause
	}
	return e.kind
}

// Of reports the Kind underlying any error produced by this package,
// returning (kind, true) if err is, or wraps, one of the Kind constants.
func Of(err error) (Kind, bool) {
	if err == nil {
		return "", false
	}
	if k, ok := err.(Kind); ok {
		return k, true
	}
	var e *Error
	if errors.As(err, &e) {
		return e.kind, true
	}
	return "", false
}
