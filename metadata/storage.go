package metadata

import (
	"fmt"

	"github.com/0xPolygon/substrate-client/crypto"
)

type Hasher uint8

const (
	Blake2_128 Hasher = iota
	Blake2_256
	Blake2_128Concat
	Twox128
	Twox256
	Twox64Concat
	Identity
)

var hasherNames = [...]string{"Blake2_128", "Blake2_256", "Blake2_128Concat", "Twox128", "Twox256",
	"Twox64Concat", "Identity"}

func (h Hasher) String() string {
	if int(h) < len(hasherNames) {
		return hasherNames[h]
	}

	return fmt.Sprintf("hasher(%d)", uint8(h))
}

func (h Hasher) Valid() bool {
	return h <= Identity
}

// Hash applies the hasher to an encoded key
func (h Hasher) Hash(key []byte) []byte {
	switch h {
	case Blake2_128:
		return crypto.Blake2_128(key)
	case Blake2_256:
		return crypto.Blake2_256(key)
	case Blake2_128Concat:
		return append(crypto.Blake2_128(key), key...)
	case Twox128:
		return crypto.Twox128(key)
	case Twox256:
		return crypto.Twox256(key)
	case Twox64Concat:
		return append(crypto.Twox64(key), key...)
	default:
		out := make([]byte, len(key))
		copy(out, key)

		return out
	}
}

// Transparent reports whether the original key can be read back from the hashed form
func (h Hasher) Transparent() bool {
	return h == Blake2_128Concat || h == Twox64Concat || h == Identity
}

type StorageModifier uint8

const (
	ModifierOptional StorageModifier = iota
	ModifierDefault
)

func (m StorageModifier) String() string {
	if m == ModifierDefault {
		return "Default"
	}

	return "Optional"
}

type StorageEntry struct {
	Module   string
	Prefix   string
	Name     string
	Modifier StorageModifier

	// IsMap is false for plain values, which have no hashers and no key
	IsMap   bool
	Hashers []Hasher
	Key     TypeID
	Value   TypeID

	Default []byte
	Docs    []string
}

// KeyTypes returns the type of each key component, one per hasher.
// Multi-hasher maps key on a tuple whose members line up with the hashers
func (e *StorageEntry) KeyTypes(reg *Registry) ([]TypeID, error) {
	if !e.IsMap {
		return nil, nil
	}

	if len(e.Hashers) == 1 {
		return []TypeID{e.Key}, nil
	}

	t, ok := reg.Type(e.Key)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrDanglingType, e.Key)
	}

	if t.Def.Kind != KindTuple || len(t.Def.Tuple) != len(e.Hashers) {
		return nil, fmt.Errorf("storage %s.%s: key type #%d does not match %d hashers",
			e.Module, e.Name, e.Key, len(e.Hashers))
	}

	return t.Def.Tuple, nil
}

// StorageKey builds the raw storage key from already encoded key components.
// Fewer components than hashers yields a prefix usable for iteration
func (e *StorageEntry) StorageKey(keys ...[]byte) ([]byte, error) {
	if len(keys) > len(e.Hashers) {
		return nil, fmt.Errorf("%w: %s.%s takes %d keys, got %d", ErrTooManyKeys, e.Module, e.Name,
			len(e.Hashers), len(keys))
	}

	out := make([]byte, 0, 32+len(keys)*48)
	out = append(out, crypto.Twox128([]byte(e.Prefix))...)
	out = append(out, crypto.Twox128([]byte(e.Name))...)

	for i, k := range keys {
		out = append(out, e.Hashers[i].Hash(k)...)
	}

	return out, nil
}
