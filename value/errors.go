package value

import (
	"errors"
	"fmt"

	"github.com/0xPolygon/substrate-client/metadata"
)

var (
	ErrLeftoverBytes  = errors.New("leftover bytes after decoding")
	ErrUnknownVariant = errors.New("unknown variant")
	ErrTooDeep        = errors.New("type nesting too deep")
	ErrInvalidText    = errors.New("invalid utf-8")
)

// TypeMismatchError reports a value whose shape does not fit the type it is encoded against.
// Path locates the offending value, e.g. dest.Id[0]
type TypeMismatchError struct {
	Path     string
	TypeID   metadata.TypeID
	Expected string
	Got      string
}

func (e *TypeMismatchError) Error() string {
	path := e.Path
	if path == "" {
		path = "<root>"
	}

	return fmt.Sprintf("type mismatch at %s (type #%d): expected %s, got %s", path, e.TypeID, e.Expected, e.Got)
}

func mismatch(path string, id metadata.TypeID, expected string, got string) error {
	return &TypeMismatchError{Path: path, TypeID: id, Expected: expected, Got: got}
}

func fieldPath(path string, f metadata.Field, i int) string {
	if f.Name != "" {
		if path == "" {
			return f.Name
		}

		return path + "." + f.Name
	}

	return fmt.Sprintf("%s[%d]", path, i)
}

func itemPath(path string, i int) string {
	return fmt.Sprintf("%s[%d]", path, i)
}

func variantPath(path, name string) string {
	if path == "" {
		return name
	}

	return path + "." + name
}
