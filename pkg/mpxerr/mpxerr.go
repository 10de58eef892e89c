// SPDX-License-Identifier: GPL-2.0-or-later

// Package mpxerr defines the error taxonomy shared by every pipeline stage.
package mpxerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for machine consumption.
type Kind uint8

// Error kinds.
const (
	KindUnknown Kind = iota
	KindValidation
	KindEncoding
	KindDecoding
	KindIntegrity
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindEncoding:
		return "encoding"
	case KindDecoding:
		return "decoding"
	case KindIntegrity:
		return "integrity"
	}
	return "unknown"
}

// Error is a classified error. It wraps an optional cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v: %v: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors by kind, so callers can test
// `errors.Is(err, &Error{Kind: KindDecoding})`.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// Validation returns a validation error.
func Validation(format string, v ...interface{}) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, v...)}
}

// Encoding returns an encoding error.
func Encoding(format string, v ...interface{}) *Error {
	return &Error{Kind: KindEncoding, Msg: fmt.Sprintf(format, v...)}
}

// Decoding returns a decoding error.
func Decoding(format string, v ...interface{}) *Error {
	return &Error{Kind: KindDecoding, Msg: fmt.Sprintf(format, v...)}
}

// Integrity returns an integrity error.
func Integrity(format string, v ...interface{}) *Error {
	return &Error{Kind: KindIntegrity, Msg: fmt.Sprintf(format, v...)}
}

// Wrap classifies an existing error without losing the chain.
func Wrap(kind Kind, err error, format string, v ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, v...), Err: err}
}

// KindOf extracts the kind from an error chain, KindUnknown if unclassified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
