package scale

import (
	"encoding/binary"
	"fmt"
	"math/big"
)

// Decoder reads SCALE values from a byte slice and tracks the current offset
type Decoder struct {
	buf []byte
	off int
}

func NewDecoder(b []byte) *Decoder {
	return &Decoder{buf: b}
}

// Offset returns the number of bytes consumed so far
func (d *Decoder) Offset() int {
	return d.off
}

func (d *Decoder) Remaining() int {
	return len(d.buf) - d.off
}

// Errorf builds a DecodeError anchored at the current offset
func (d *Decoder) Errorf(expected string, err error) error {
	return &DecodeError{Offset: d.off, Expected: expected, Err: err}
}

// Read consumes exactly n bytes
func (d *Decoder) Read(n int, expected string) ([]byte, error) {
	if n < 0 || n > d.Remaining() {
		return nil, d.Errorf(expected, fmt.Errorf("%w: need %d bytes, have %d", ErrUnexpectedEOF, n, d.Remaining()))
	}

	out := d.buf[d.off : d.off+n]
	d.off += n

	return out, nil
}

func (d *Decoder) ReadByte() (byte, error) {
	b, err := d.Read(1, "byte")
	if err != nil {
		return 0, err
	}

	return b[0], nil
}

func (d *Decoder) Bool() (bool, error) {
	off := d.off

	b, err := d.Read(1, "bool")
	if err != nil {
		return false, err
	}

	switch b[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, &DecodeError{Offset: off, Expected: "bool", Err: fmt.Errorf("%w: 0x%02x", ErrInvalidBool, b[0])}
	}
}

// OptionFlag reads the Option discriminant, returning true for Some
func (d *Decoder) OptionFlag() (bool, error) {
	off := d.off

	b, err := d.Read(1, "option")
	if err != nil {
		return false, err
	}

	switch b[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, &DecodeError{Offset: off, Expected: "option", Err: fmt.Errorf("%w: 0x%02x", ErrInvalidOption, b[0])}
	}
}

func (d *Decoder) Uint8() (uint8, error) {
	b, err := d.Read(1, "u8")
	if err != nil {
		return 0, err
	}

	return b[0], nil
}

func (d *Decoder) Uint16() (uint16, error) {
	b, err := d.Read(2, "u16")
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint16(b), nil
}

func (d *Decoder) Uint32() (uint32, error) {
	b, err := d.Read(4, "u32")
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(b), nil
}

func (d *Decoder) Uint64() (uint64, error) {
	b, err := d.Read(8, "u64")
	if err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint64(b), nil
}

// UintN reads a size-byte little-endian unsigned integer
func (d *Decoder) UintN(size int) (*big.Int, error) {
	b, err := d.Read(size, fmt.Sprintf("u%d", size*8))
	if err != nil {
		return nil, err
	}

	return fromLittleEndian(b), nil
}

// IntN reads a size-byte little-endian two's complement integer
func (d *Decoder) IntN(size int) (*big.Int, error) {
	b, err := d.Read(size, fmt.Sprintf("i%d", size*8))
	if err != nil {
		return nil, err
	}

	v := fromLittleEndian(b)
	if size > 0 && b[size-1]&0x80 != 0 {
		v.Sub(v, new(big.Int).Lsh(bigOne, uint(size*8)))
	}

	return v, nil
}

// CompactBig reads a compact integer of any width
func (d *Decoder) CompactBig() (*big.Int, error) {
	start := d.off

	first, err := d.Read(1, "compact")
	if err != nil {
		return nil, err
	}

	nonCanonical := func(mode string) error {
		return &DecodeError{Offset: start, Expected: "compact " + mode, Err: ErrNonCanonicalCompact}
	}

	switch first[0] & 0b11 {
	case 0b00:
		return big.NewInt(int64(first[0] >> 2)), nil
	case 0b01:
		rest, err := d.Read(1, "compact two-byte")
		if err != nil {
			return nil, err
		}

		v := uint64(binary.LittleEndian.Uint16([]byte{first[0], rest[0]}) >> 2)
		if v <= singleByteMax {
			return nil, nonCanonical("two-byte")
		}

		return new(big.Int).SetUint64(v), nil
	case 0b10:
		rest, err := d.Read(3, "compact four-byte")
		if err != nil {
			return nil, err
		}

		v := uint64(binary.LittleEndian.Uint32([]byte{first[0], rest[0], rest[1], rest[2]}) >> 2)
		if v <= twoByteMax {
			return nil, nonCanonical("four-byte")
		}

		return new(big.Int).SetUint64(v), nil
	default:
		n := int(first[0]>>2) + 4

		b, err := d.Read(n, "compact big-integer")
		if err != nil {
			return nil, err
		}

		if b[n-1] == 0 {
			return nil, nonCanonical("big-integer")
		}

		v := fromLittleEndian(b)
		if v.Cmp(bigFourByteMax) <= 0 {
			return nil, nonCanonical("big-integer")
		}

		return v, nil
	}
}

// Compact reads a compact integer that must fit into 64 bits
func (d *Decoder) Compact() (uint64, error) {
	start := d.off

	v, err := d.CompactBig()
	if err != nil {
		return 0, err
	}

	if !v.IsUint64() {
		return 0, &DecodeError{Offset: start, Expected: "compact u64", Err: ErrOverflow}
	}

	return v.Uint64(), nil
}

// Length reads a compact length prefix and checks it against the remaining input,
// assuming each element occupies at least minElemSize bytes
func (d *Decoder) Length(minElemSize int) (int, error) {
	start := d.off

	n, err := d.Compact()
	if err != nil {
		return 0, err
	}

	if minElemSize > 0 && n > uint64(d.Remaining()/minElemSize) {
		return 0, &DecodeError{
			Offset:   start,
			Expected: "length prefix",
			Err:      fmt.Errorf("%w: length %d exceeds remaining %d bytes", ErrUnexpectedEOF, n, d.Remaining()),
		}
	}

	if n > uint64(len(d.buf)) && minElemSize == 0 {
		// zero-sized elements are legal but an absurd count is not
		return 0, &DecodeError{Offset: start, Expected: "length prefix", Err: ErrOverflow}
	}

	return int(n), nil
}

// Bytes reads a compact length prefixed byte vector
func (d *Decoder) Bytes() ([]byte, error) {
	n, err := d.Length(1)
	if err != nil {
		return nil, err
	}

	b, err := d.Read(n, "bytes")
	if err != nil {
		return nil, err
	}

	out := make([]byte, n)
	copy(out, b)

	return out, nil
}

// Text reads a compact length prefixed UTF-8 string
func (d *Decoder) Text() (string, error) {
	b, err := d.Bytes()
	if err != nil {
		return "", err
	}

	return string(b), nil
}

// Done fails if any input is left unconsumed
func (d *Decoder) Done() error {
	if d.Remaining() != 0 {
		return d.Errorf("end of input", fmt.Errorf("%w: %d bytes left", ErrTrailingBytes, d.Remaining()))
	}

	return nil
}

// DecodeCompact decodes a single compact integer occupying all of b
func DecodeCompact(b []byte) (uint64, error) {
	d := NewDecoder(b)

	v, err := d.Compact()
	if err != nil {
		return 0, err
	}

	return v, d.Done()
}

func fromLittleEndian(b []byte) *big.Int {
	be := make([]byte, len(b))
	for i := range b {
		be[len(b)-1-i] = b[i]
	}

	return new(big.Int).SetBytes(be)
}
