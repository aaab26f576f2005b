package hex

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

var (
	ErrOddLength = errors.New("hex string of odd length")
	ErrEmptyHex  = errors.New("empty hex string")
)

// EncodeToHex generates a hex string based on the byte representation, with the '0x' prefix
func EncodeToHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// EncodeToString is a wrapper method for hex.EncodeToString
func EncodeToString(b []byte) string {
	return hex.EncodeToString(b)
}

// DecodeHex converts a hex string, with or without the 0x prefix, to a byte array
func DecodeHex(str string) ([]byte, error) {
	str = strings.TrimPrefix(strings.TrimPrefix(str, "0x"), "0X")
	if len(str)%2 == 1 {
		return nil, ErrOddLength
	}

	return hex.DecodeString(str)
}

// DecodeHexFixed decodes a hex string that must hold exactly size bytes
func DecodeHexFixed(str string, size int) ([]byte, error) {
	buf, err := DecodeHex(str)
	if err != nil {
		return nil, err
	}

	if len(buf) != size {
		return nil, fmt.Errorf("expected %d bytes, got %d", size, len(buf))
	}

	return buf, nil
}

// MustDecodeHex type-checks and converts a hex string to a byte array
func MustDecodeHex(str string) []byte {
	buf, err := DecodeHex(str)
	if err != nil {
		panic(fmt.Errorf("could not decode hex: %w", err))
	}

	return buf
}

// Has0xPrefix reports whether the string starts with 0x or 0X
func Has0xPrefix(str string) bool {
	return len(str) >= 2 && str[0] == '0' && (str[1] == 'x' || str[1] == 'X')
}

// EncodeUint64 encodes a number as a hex string with 0x prefix.
func EncodeUint64(i uint64) string {
	enc := make([]byte, 2, 18)
	copy(enc, "0x")

	return string(strconv.AppendUint(enc, i, 16))
}

// DecodeUint64 decodes a hex string with 0x prefix to uint64
func DecodeUint64(hexStr string) (uint64, error) {
	cleaned := strings.TrimPrefix(hexStr, "0x")
	if cleaned == "" {
		return 0, ErrEmptyHex
	}

	return strconv.ParseUint(cleaned, 16, 64)
}

// EncodeBig encodes bigint as a hex string with 0x prefix.
// The sign of the integer is ignored.
func EncodeBig(bigint *big.Int) string {
	if bigint.BitLen() == 0 {
		return "0x0"
	}

	return fmt.Sprintf("%#x", bigint)
}

// DecodeHexToBig converts a hex number, with or without the 0x prefix, to a big.Int value
func DecodeHexToBig(hexNum string) (*big.Int, error) {
	cleaned := strings.TrimPrefix(hexNum, "0x")

	v, ok := new(big.Int).SetString(cleaned, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex number %q", hexNum)
	}

	return v, nil
}
