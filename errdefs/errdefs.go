// Package errdefs defines the error kinds reported by image resolution,
// container allocation and namespace execution.
package errdefs

import (
	"errors"
	"fmt"
)

// Kind classifies an error by the stage and nature of the failure
type Kind int

// Error kinds, zero value is unknown
const (
	KindUnknown Kind = iota
	KindInvalidReference
	KindImageNotFound
	KindInvalidCommand
	KindIO
	KindEncoding
	KindNamespace
	KindProtocol
	KindExec
)

var kindToString = []string{
	"unknown",
	"invalid reference",
	"image not found",
	"invalid command",
	"io error",
	"encoding error",
	"namespace error",
	"protocol error",
	"exec error",
}

func (k Kind) String() string {
	if k > KindUnknown && int(k) < len(kindToString) {
		return kindToString[k]
	}
	return kindToString[0]
}

// Error is an error of a known kind carrying the operation and path
// it failed on
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		if msg != "" {
			msg += ": "
		}
		msg += e.Err.Error()
	}
	if msg == "" {
		return e.Kind.String()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the kind
func New(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// Errorf creates an error of the kind with a formatted message as its cause
func Errorf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in the chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err has the kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
