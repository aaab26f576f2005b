package extrinsic

import (
	"errors"
	"fmt"

	"github.com/0xPolygon/substrate-client/crypto"
	"github.com/0xPolygon/substrate-client/metadata"
)

var (
	ErrUnknownModule = metadata.ErrUnknownModule
	ErrUnknownCall   = metadata.ErrUnknownCall

	ErrArgumentCount               = errors.New("wrong number of call arguments")
	ErrPayloadConsumed             = errors.New("unsigned payload already signed")
	ErrUnsupportedSignedExtension  = errors.New("unsupported signed extension")
	ErrInvalidEra                  = errors.New("invalid era")
	ErrUnsupportedExtrinsicVersion = errors.New("unsupported extrinsic version")
	ErrUnsupportedAddress          = errors.New("unsupported address type")
	ErrUnsupportedSignature        = errors.New("unsupported signature type")
)

// SigningError wraps a failure of the signer capability
type SigningError struct {
	KeyType crypto.KeyType
	Err     error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("%s signer failed: %v", e.KeyType, e.Err)
}

func (e *SigningError) Unwrap() error {
	return e.Err
}
