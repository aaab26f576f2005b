package extrinsic

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"

	"github.com/0xPolygon/substrate-client/scale"
)

const (
	minEraPeriod = 4
	maxEraPeriod = 1 << 16
)

// Era is the validity window of a transaction. The zero value is immortal
type Era struct {
	Period uint64
	Phase  uint64
}

func Immortal() Era {
	return Era{}
}

// Mortal builds an era valid for about period blocks starting at the block current.
// The period is rounded up to a power of two within [4, 65536] and the phase is quantized
func Mortal(period, current uint64) Era {
	if period > maxEraPeriod {
		period = maxEraPeriod
	}

	if period < minEraPeriod {
		period = minEraPeriod
	}

	// next power of two
	if period&(period-1) != 0 {
		period = 1 << bits.Len64(period)
	}

	quantize := period >> 12
	if quantize < 1 {
		quantize = 1
	}

	phase := current % period / quantize * quantize

	return Era{Period: period, Phase: phase}
}

func (e Era) IsImmortal() bool {
	return e.Period == 0
}

// Birth is the first block the era is valid at, relative to current
func (e Era) Birth(current uint64) uint64 {
	if e.IsImmortal() {
		return 0
	}

	base := current
	if base < e.Phase {
		base = e.Phase
	}

	return (base-e.Phase)/e.Period*e.Period + e.Phase
}

// Death is the first block the era is no longer valid at
func (e Era) Death(current uint64) uint64 {
	if e.IsImmortal() {
		return math.MaxUint64
	}

	return e.Birth(current) + e.Period
}

// Encode returns 0x00 for immortal eras and the two-byte period/phase form otherwise
func (e Era) Encode() []byte {
	if e.IsImmortal() {
		return []byte{0}
	}

	quantize := e.Period >> 12
	if quantize < 1 {
		quantize = 1
	}

	low := uint64(bits.TrailingZeros64(e.Period)) - 1
	if low < 1 {
		low = 1
	}

	if low > 15 {
		low = 15
	}

	encoded := uint16(low | (e.Phase/quantize)<<4)

	out := make([]byte, 2)
	binary.LittleEndian.PutUint16(out, encoded)

	return out
}

func (e Era) String() string {
	if e.IsImmortal() {
		return "immortal"
	}

	return fmt.Sprintf("mortal(period=%d, phase=%d)", e.Period, e.Phase)
}

// DecodeEra reads an era from d
func DecodeEra(d *scale.Decoder) (Era, error) {
	off := d.Offset()

	first, err := d.ReadByte()
	if err != nil {
		return Era{}, err
	}

	if first == 0 {
		return Immortal(), nil
	}

	second, err := d.ReadByte()
	if err != nil {
		return Era{}, err
	}

	encoded := uint64(first) | uint64(second)<<8
	period := uint64(2) << (encoded % 16)

	quantize := period >> 12
	if quantize < 1 {
		quantize = 1
	}

	phase := (encoded >> 4) * quantize

	if period < minEraPeriod || phase >= period {
		return Era{}, &scale.DecodeError{
			Offset:   off,
			Expected: "era",
			Err:      fmt.Errorf("%w: period %d, phase %d", ErrInvalidEra, period, phase),
		}
	}

	return Era{Period: period, Phase: phase}, nil
}
