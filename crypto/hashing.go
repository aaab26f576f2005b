package crypto

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/0xPolygon/substrate-client/types"
)

// Blake2_256 calculates the 32-byte blake2b digest of the concatenated input
func Blake2_256(v ...[]byte) []byte {
	h, _ := blake2b.New256(nil)
	for _, i := range v {
		h.Write(i)
	}

	return h.Sum(nil)
}

// Blake2_256Hash is Blake2_256 returned as a Hash
func Blake2_256Hash(v ...[]byte) types.Hash {
	return types.BytesToHash(Blake2_256(v...))
}

// Blake2_128 calculates the 16-byte blake2b digest of the concatenated input
func Blake2_128(v ...[]byte) []byte {
	h, _ := blake2b.New(16, nil)
	for _, i := range v {
		h.Write(i)
	}

	return h.Sum(nil)
}

// Twox64 is xxhash64 with seed 0, little-endian
func Twox64(data []byte) []byte {
	return twox(data, 1)
}

// Twox128 concatenates xxhash64 digests with seeds 0 and 1
func Twox128(data []byte) []byte {
	return twox(data, 2)
}

// Twox256 concatenates xxhash64 digests with seeds 0 to 3
func Twox256(data []byte) []byte {
	return twox(data, 4)
}

func twox(data []byte, rounds int) []byte {
	out := make([]byte, 0, rounds*8)

	for seed := 0; seed < rounds; seed++ {
		d := xxhash.NewWithSeed(uint64(seed))
		_, _ = d.Write(data)
		out = binary.LittleEndian.AppendUint64(out, d.Sum64())
	}

	return out
}
