package types

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

// DefaultSS58Prefix is the generic Substrate network prefix
const DefaultSS58Prefix uint16 = 42

const (
	ss58ChecksumLength = 2
	maxSS58Prefix      = 1<<14 - 1
)

var (
	ss58Preimage = []byte("SS58PRE")

	ErrInvalidSS58         = errors.New("invalid ss58 address")
	ErrInvalidSS58Checksum = errors.New("invalid ss58 checksum")
)

// SS58Encode renders a public key as a base58 address with the network prefix and checksum
func SS58Encode(pub []byte, prefix uint16) string {
	if prefix > maxSS58Prefix {
		prefix = DefaultSS58Prefix
	}

	data := append(ss58PrefixBytes(prefix), pub...)
	data = append(data, ss58Checksum(data)[:ss58ChecksumLength]...)

	return base58.Encode(data)
}

// SS58Decode returns the public key and network prefix of an address
func SS58Decode(addr string) ([]byte, uint16, error) {
	data, err := base58.Decode(addr)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidSS58, err)
	}

	if len(data) < 2 {
		return nil, 0, fmt.Errorf("%w: too short", ErrInvalidSS58)
	}

	var (
		prefix    uint16
		prefixLen int
	)

	switch {
	case data[0] < 64:
		prefix, prefixLen = uint16(data[0]), 1
	case data[0] < 128:
		lower := (data[0] << 2) | (data[1] >> 6)
		upper := data[1] & 0b0011_1111
		prefix, prefixLen = uint16(lower)|uint16(upper)<<8, 2
	default:
		return nil, 0, fmt.Errorf("%w: reserved prefix byte 0x%02x", ErrInvalidSS58, data[0])
	}

	if len(data) != prefixLen+AccountIDLength+ss58ChecksumLength &&
		len(data) != prefixLen+AccountIDLength+1+ss58ChecksumLength {
		return nil, 0, fmt.Errorf("%w: unexpected length %d", ErrInvalidSS58, len(data))
	}

	body := data[:len(data)-ss58ChecksumLength]
	if !bytes.Equal(ss58Checksum(body)[:ss58ChecksumLength], data[len(body):]) {
		return nil, 0, ErrInvalidSS58Checksum
	}

	pub := make([]byte, len(body)-prefixLen)
	copy(pub, body[prefixLen:])

	return pub, prefix, nil
}

func ss58PrefixBytes(prefix uint16) []byte {
	if prefix < 64 {
		return []byte{byte(prefix)}
	}

	return []byte{
		byte((prefix&0b1111_1100)>>2) | 0b0100_0000,
		byte(prefix>>8) | byte((prefix&0b11)<<6),
	}
}

func ss58Checksum(data []byte) []byte {
	h, _ := blake2b.New512(nil)
	h.Write(ss58Preimage)
	h.Write(data)

	return h.Sum(nil)
}
