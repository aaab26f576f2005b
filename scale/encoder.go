package scale

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"
)

const (
	singleByteMax = 1<<6 - 1
	twoByteMax    = 1<<14 - 1
	fourByteMax   = 1<<30 - 1

	// maxBigCompactLen is the widest payload the big-integer compact mode can describe
	maxBigCompactLen = 63 + 4
)

var (
	bigOne          = big.NewInt(1)
	bigFourByteMax  = big.NewInt(fourByteMax)
	bigCompactLimit = new(big.Int).Lsh(bigOne, 8*maxBigCompactLen)
)

// Encoder is an append-only SCALE output buffer
type Encoder struct {
	buf []byte
}

var encPool = sync.Pool{
	New: func() interface{} {
		return new(Encoder)
	},
}

// AcquireEncoder returns an empty encoder from the pool
func AcquireEncoder() *Encoder {
	e, _ := encPool.Get().(*Encoder)
	e.buf = e.buf[:0]

	return e
}

// ReleaseEncoder hands the encoder back to the pool
func ReleaseEncoder(e *Encoder) {
	encPool.Put(e)
}

// Bytes returns the encoded bytes. The slice is only valid until the encoder is released
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// CopyBytes returns a copy of the encoded bytes
func (e *Encoder) CopyBytes() []byte {
	out := make([]byte, len(e.buf))
	copy(out, e.buf)

	return out
}

func (e *Encoder) Len() int {
	return len(e.buf)
}

func (e *Encoder) PushByte(b byte) {
	e.buf = append(e.buf, b)
}

// Write appends raw bytes without a length prefix
func (e *Encoder) Write(b []byte) {
	e.buf = append(e.buf, b...)
}

func (e *Encoder) PutBool(v bool) {
	if v {
		e.PushByte(1)
	} else {
		e.PushByte(0)
	}
}

func (e *Encoder) PutUint8(v uint8) {
	e.PushByte(v)
}

func (e *Encoder) PutUint16(v uint16) {
	e.buf = binary.LittleEndian.AppendUint16(e.buf, v)
}

func (e *Encoder) PutUint32(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

func (e *Encoder) PutUint64(v uint64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
}

// PutUintN writes v as a size-byte little-endian unsigned integer
func (e *Encoder) PutUintN(v *big.Int, size int) error {
	if v.Sign() < 0 {
		return ErrNegative
	}

	if v.BitLen() > size*8 {
		return fmt.Errorf("%w: %s does not fit in %d bytes", ErrOverflow, v.String(), size)
	}

	e.buf = append(e.buf, littleEndian(v, size)...)

	return nil
}

// PutIntN writes v as a size-byte little-endian two's complement integer
func (e *Encoder) PutIntN(v *big.Int, size int) error {
	bits := uint(size * 8)
	limit := new(big.Int).Lsh(bigOne, bits-1)
	lowest := new(big.Int).Neg(limit)

	if v.Cmp(limit) >= 0 || v.Cmp(lowest) < 0 {
		return fmt.Errorf("%w: %s does not fit in i%d", ErrOverflow, v.String(), bits)
	}

	u := new(big.Int).Set(v)
	if u.Sign() < 0 {
		u.Add(u, new(big.Int).Lsh(bigOne, bits))
	}

	e.buf = append(e.buf, littleEndian(u, size)...)

	return nil
}

// PutCompact writes v in the compact integer form
func (e *Encoder) PutCompact(v uint64) {
	switch {
	case v <= singleByteMax:
		e.PushByte(byte(v << 2))
	case v <= twoByteMax:
		e.PutUint16(uint16(v<<2) | 0b01)
	case v <= fourByteMax:
		e.PutUint32(uint32(v<<2) | 0b10)
	default:
		n := (bitLen64(v) + 7) / 8
		e.PushByte(byte((n-4)<<2) | 0b11)

		for i := 0; i < n; i++ {
			e.PushByte(byte(v >> (8 * i)))
		}
	}
}

// PutCompactBig writes an arbitrary precision unsigned value in the compact form
func (e *Encoder) PutCompactBig(v *big.Int) error {
	if v.Sign() < 0 {
		return ErrNegative
	}

	if v.IsUint64() {
		e.PutCompact(v.Uint64())

		return nil
	}

	if v.Cmp(bigCompactLimit) >= 0 {
		return fmt.Errorf("%w: %s exceeds the compact range", ErrOverflow, v.String())
	}

	n := (v.BitLen() + 7) / 8
	e.PushByte(byte((n-4)<<2) | 0b11)
	e.buf = append(e.buf, littleEndian(v, n)...)

	return nil
}

// PutBytes writes a compact length prefix followed by b
func (e *Encoder) PutBytes(b []byte) {
	e.PutCompact(uint64(len(b)))
	e.Write(b)
}

func (e *Encoder) PutString(s string) {
	e.PutCompact(uint64(len(s)))
	e.buf = append(e.buf, s...)
}

// PutOptionFlag writes the Option discriminant
func (e *Encoder) PutOptionFlag(some bool) {
	e.PutBool(some)
}

// EncodeCompact returns the compact form of v
func EncodeCompact(v uint64) []byte {
	e := AcquireEncoder()
	defer ReleaseEncoder(e)

	e.PutCompact(v)

	return e.CopyBytes()
}

func littleEndian(v *big.Int, size int) []byte {
	be := v.Bytes()
	out := make([]byte, size)

	for i := 0; i < len(be) && i < size; i++ {
		out[i] = be[len(be)-1-i]
	}

	return out
}

func bitLen64(v uint64) int {
	n := 0
	for ; v != 0; v >>= 1 {
		n++
	}

	return n
}
