// Package errs wraps cockroachdb/errors so call sites can mark an error with a
// sentinel class while keeping the original cause inspectable.
package errs

import (
	cr "github.com/cockroachdb/errors"
)

// New creates an error with a stack trace.
func New(msg string) error {
	return cr.New(msg)
}

// Newf creates a formatted error with a stack trace.
func Newf(format string, args ...any) error {
	return cr.Newf(format, args...)
}

// Wrap annotates err with msg. Returns nil for a nil err.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return cr.Wrap(err, msg)
}

// Wrapf annotates err with a formatted message. Returns nil for a nil err.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return cr.Wrapf(err, format, args...)
}

// Mark makes Is(result, mark) true while preserving err's chain.
// The mark is only visible through Is, not the standard library errors.Is.
// A nil err yields the mark itself.
func Mark(err error, mark error) error {
	if err == nil {
		return mark
	}
	return cr.Mark(err, mark)
}

// Is reports whether any error in err's chain matches reference.
func Is(err, reference error) bool {
	return cr.Is(err, reference)
}
