package pnginfo

import (
	"errors"
	"fmt"
)

// ErrFormat is the sentinel matched by every *FormatError via errors.Is.
var ErrFormat = errors.New("pnginfo: invalid PNG data")

// FormatError reports malformed container data. Parsing never returns a
// partial Record alongside a FormatError.
type FormatError struct {
	// Offset is the byte position where the problem was detected.
	Offset int

	// Reason describes what was wrong at Offset.
	Reason string
}

func newFormatError(offset int, reason string) *FormatError {
	return &FormatError{Offset: offset, Reason: reason}
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	return fmt.Sprintf("pnginfo: %s (offset %d)", e.Reason, e.Offset)
}

// Is reports whether target is ErrFormat.
func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}
