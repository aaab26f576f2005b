package metadata

import (
	"errors"
	"fmt"
)

var (
	ErrBadMagic           = errors.New("missing metadata magic prefix")
	ErrUnsupportedVersion = errors.New("unsupported metadata version")
	ErrDanglingType       = errors.New("reference to unknown type id")
	ErrDuplicateType      = errors.New("duplicate type id")
	ErrNotVariant         = errors.New("type is not a variant")
	ErrDuplicateIndex     = errors.New("duplicate index")
	ErrUnknownHasher      = errors.New("unknown storage hasher")
	ErrInvalidTypeDef     = errors.New("invalid type definition")

	ErrUnknownModule   = errors.New("unknown module")
	ErrUnknownCall     = errors.New("unknown call")
	ErrUnknownEvent    = errors.New("unknown event")
	ErrUnknownError    = errors.New("unknown error")
	ErrUnknownStorage  = errors.New("unknown storage entry")
	ErrUnknownConstant = errors.New("unknown constant")
	ErrTooManyKeys     = errors.New("more storage keys than hashers")
)

// MetadataError is returned for any metadata blob that cannot be resolved.
// Path names the element being read, e.g. pallets[Balances].calls
type MetadataError struct {
	Path string
	Err  error
}

func (e *MetadataError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("metadata: %v", e.Err)
	}

	return fmt.Sprintf("metadata: %s: %v", e.Path, e.Err)
}

func (e *MetadataError) Unwrap() error {
	return e.Err
}

func wrapErr(path string, err error) error {
	if err == nil {
		return nil
	}

	var metaErr *MetadataError
	if errors.As(err, &metaErr) {
		return err
	}

	return &MetadataError{Path: path, Err: err}
}
