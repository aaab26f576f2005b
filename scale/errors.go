package scale

import (
	"errors"
	"fmt"
)

var (
	ErrUnexpectedEOF       = errors.New("unexpected end of input")
	ErrNonCanonicalCompact = errors.New("compact integer is not minimally encoded")
	ErrInvalidBool         = errors.New("invalid boolean byte")
	ErrInvalidOption       = errors.New("invalid option tag")
	ErrTrailingBytes       = errors.New("trailing bytes after decoding")
	ErrOverflow            = errors.New("integer overflows target width")
	ErrNegative            = errors.New("negative value for unsigned integer")
)

// DecodeError describes a decode failure at a specific byte offset
type DecodeError struct {
	Offset   int
	Expected string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("scale: decoding %s at offset %d: %v", e.Expected, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
