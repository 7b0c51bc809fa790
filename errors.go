// Package au encodes and decodes the au container format: a compact
// binary framing for streams of JSON-like records. A stream is a header
// record followed by value records interleaved with dictionary records
// that intern frequently repeated strings. Records are self-delimited,
// so a reader can resynchronise from an arbitrary byte offset and
// rebuild the string dictionary by walking backref chains backwards —
// the basis of the tail subsystem.
package au

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic handling. Callers use errors.Is to
// distinguish recoverable conditions (ErrNoSync during tail) from wire
// corruption (a *ParseError, possibly wrapping ErrFormatVersion,
// ErrTooDeep, or ErrOverflow).
var (
	ErrFormatVersion = errors.New("unsupported format version")
	ErrTooDeep       = errors.New("value nested too deeply")
	ErrOverflow      = errors.New("integer overflows int64")
	ErrNoSync        = errors.New("no value record located")
	ErrClosed        = errors.New("source is closed")
	ErrNotSeekable   = errors.New("source is not seekable")
)

// ParseError reports malformed wire data: an unknown marker, a bad
// varint, a length mismatch, a dict index out of range. Pos is the
// absolute offset in the stream at which the problem was detected.
type ParseError struct {
	Pos int64
	Msg string
	err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d: %s", e.Pos, e.Msg)
}

func (e *ParseError) Unwrap() error { return e.err }

// parseErr builds a ParseError at pos with a formatted message.
func parseErr(pos int64, format string, args ...any) error {
	return &ParseError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// parseErrWrap is parseErr with an underlying sentinel for errors.Is.
func parseErrWrap(pos int64, err error, format string, args ...any) error {
	return &ParseError{Pos: pos, Msg: fmt.Sprintf(format, args...), err: err}
}

// IsParseError reports whether err is (or wraps) a ParseError. Resync
// uses this to tell "this candidate is not a record" from real I/O
// failures, which must abort the scan.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
