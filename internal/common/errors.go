// Package common holds the pieces shared by every stage of a join: the error
// taxonomy and memory-mapped file access.
package common

import (
	"errors"
	"fmt"
)

// UsageError reports a problem with how the tool was invoked: conflicting
// join modes, unresolvable column selections, mismatched selection widths.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

// Usagef builds a UsageError from a format string.
func Usagef(format string, args ...any) error {
	return &UsageError{Msg: fmt.Sprintf(format, args...)}
}

// IoError reports an open/read/write/seek failure. Op names the operation
// and Path the file involved (empty for stdout).
type IoError struct {
	Op   string
	Path string
	Err  error
}

func (e *IoError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }

// ParseError reports a malformed delimited-text record.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsUsage reports whether err is, or wraps, a UsageError.
func IsUsage(err error) bool {
	var ue *UsageError
	return errors.As(err, &ue)
}
