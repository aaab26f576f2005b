package types

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/0xPolygon/substrate-client/helper/hex"
)

const (
	HashLength      = 32
	AccountIDLength = 32
)

var (
	ZeroHash      = Hash{}
	ZeroAccountID = AccountID{}
)

// Hash is a 256-bit block, extrinsic or state hash
type Hash [HashLength]byte

// BytesToHash copies b into a hash, keeping the rightmost bytes if b is too long
func BytesToHash(b []byte) Hash {
	var h Hash

	size := len(b)
	if size > HashLength {
		size = HashLength
	}

	copy(h[HashLength-size:], b[len(b)-size:])

	return h
}

// ParseHash decodes a hex string holding exactly 32 bytes
func ParseHash(str string) (Hash, error) {
	buf, err := hex.DecodeHexFixed(str, HashLength)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid hash %q: %w", str, err)
	}

	return BytesToHash(buf), nil
}

// MustParseHash is ParseHash for constants and tests
func MustParseHash(str string) Hash {
	h, err := ParseHash(str)
	if err != nil {
		panic(err)
	}

	return h
}

func (h Hash) Bytes() []byte {
	return h[:]
}

func (h Hash) String() string {
	return hex.EncodeToHex(h[:])
}

func (h Hash) IsZero() bool {
	return h == ZeroHash
}

func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText parses a hash in hex syntax.
func (h *Hash) UnmarshalText(input []byte) error {
	parsed, err := ParseHash(string(input))
	if err != nil {
		return err
	}

	*h = parsed

	return nil
}

// AccountID is the 32-byte public identity of an account
type AccountID [AccountIDLength]byte

// NewAccountID builds an account id from a 32-byte slice
func NewAccountID(b []byte) (AccountID, error) {
	var a AccountID

	if len(b) != AccountIDLength {
		return a, fmt.Errorf("account id must be %d bytes, got %d", AccountIDLength, len(b))
	}

	copy(a[:], b)

	return a, nil
}

// ParseAccountID accepts either an SS58 address or a 0x-prefixed hex public key
func ParseAccountID(str string) (AccountID, error) {
	if hex.Has0xPrefix(str) {
		buf, err := hex.DecodeHexFixed(str, AccountIDLength)
		if err != nil {
			return AccountID{}, fmt.Errorf("invalid account id %q: %w", str, err)
		}

		return NewAccountID(buf)
	}

	pub, _, err := SS58Decode(str)
	if err != nil {
		return AccountID{}, err
	}

	return NewAccountID(pub)
}

func (a AccountID) Bytes() []byte {
	return a[:]
}

func (a AccountID) Hex() string {
	return hex.EncodeToHex(a[:])
}

// String returns the address in the generic SS58 format
func (a AccountID) String() string {
	return SS58Encode(a[:], DefaultSS58Prefix)
}

// Address returns the SS58 address for a specific network prefix
func (a AccountID) Address(prefix uint16) string {
	return SS58Encode(a[:], prefix)
}

func (a AccountID) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *AccountID) UnmarshalText(input []byte) error {
	parsed, err := ParseAccountID(string(input))
	if err != nil {
		return err
	}

	*a = parsed

	return nil
}

// HexBytes is a byte slice carried as a 0x-prefixed hex string in JSON
type HexBytes []byte

func (h HexBytes) String() string {
	return hex.EncodeToHex(h)
}

func (h HexBytes) Bytes() []byte {
	return h[:]
}

func (h HexBytes) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *HexBytes) UnmarshalText(input []byte) error {
	buf, err := hex.DecodeHex(string(input))
	if err != nil {
		return fmt.Errorf("invalid hex bytes: %w", err)
	}

	*h = buf

	return nil
}

// BlockNumber is a block height. Nodes send it as a hex string, sometimes as a plain number
type BlockNumber uint64

func (b BlockNumber) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeUint64(uint64(b))), nil
}

func (b *BlockNumber) UnmarshalJSON(input []byte) error {
	if len(input) > 0 && input[0] != '"' {
		n, err := strconv.ParseUint(string(input), 10, 64)
		if err != nil {
			return fmt.Errorf("invalid block number %s: %w", input, err)
		}

		*b = BlockNumber(n)

		return nil
	}

	var str string
	if err := json.Unmarshal(input, &str); err != nil {
		return err
	}

	n, err := hex.DecodeUint64(str)
	if err != nil {
		return fmt.Errorf("invalid block number %q: %w", str, err)
	}

	*b = BlockNumber(n)

	return nil
}
