package common

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// ParseUint64orHex parses the given uint64 hex string into the number.
// It can parse the string with 0x prefix as well.
func ParseUint64orHex(val *string) (uint64, error) {
	if val == nil {
		return 0, nil
	}

	str := *val
	base := 10

	if strings.HasPrefix(str, "0x") {
		str = str[2:]
		base = 16
	}

	return strconv.ParseUint(str, base, 64)
}

// ParseUint256orHex parses a decimal or 0x prefixed unsigned integer of at most 256 bits
func ParseUint256orHex(val *string) (*big.Int, error) {
	if val == nil {
		return nil, nil
	}

	str := *val
	base := 10

	if strings.HasPrefix(str, "0x") {
		str = str[2:]
		base = 16
	}

	b, ok := new(big.Int).SetString(str, base)
	if !ok {
		return nil, fmt.Errorf("could not parse %q", *val)
	}

	if b.Sign() < 0 || b.BitLen() > 256 {
		return nil, fmt.Errorf("%q is out of the uint256 range", *val)
	}

	return b, nil
}
