package value

import (
	"fmt"
	"math/big"

	"github.com/0xPolygon/substrate-client/metadata"
	"github.com/0xPolygon/substrate-client/scale"
)

// maxDepth bounds recursion through self-referencing types
const maxDepth = 128

// noCompactValue stands in for the inner kind of Compact<()>; bool is never a valid compact target otherwise
const noCompactValue = metadata.Bool

// Encode serializes v against the registry type id
func Encode(v Value, id metadata.TypeID, reg *metadata.Registry) ([]byte, error) {
	e := scale.AcquireEncoder()
	defer scale.ReleaseEncoder(e)

	if err := EncodeTo(e, v, id, reg, ""); err != nil {
		return nil, err
	}

	return e.CopyBytes(), nil
}

// EncodeTo appends v to an existing encoder. path prefixes error locations
func EncodeTo(e *scale.Encoder, v Value, id metadata.TypeID, reg *metadata.Registry, path string) error {
	enc := &encoder{e: e, reg: reg}

	return enc.encode(v, id, path, 0)
}

type encoder struct {
	e   *scale.Encoder
	reg *metadata.Registry
}

func (enc *encoder) encode(v Value, id metadata.TypeID, path string, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("%s: %w", path, ErrTooDeep)
	}

	t, ok := enc.reg.Type(id)
	if !ok {
		return fmt.Errorf("%s: %w: %d", path, metadata.ErrDanglingType, id)
	}

	def := &t.Def

	switch def.Kind {
	case metadata.KindPrimitive:
		return enc.primitive(v, id, def.Primitive, path)
	case metadata.KindCompact:
		return enc.compact(v, id, path, depth)
	case metadata.KindComposite:
		return enc.composite(v, id, def.Fields, path, depth)
	case metadata.KindVariant:
		return enc.variant(v, t, path, depth)
	case metadata.KindSequence:
		return enc.sequence(v, id, def.Elem, -1, path, depth)
	case metadata.KindArray:
		return enc.sequence(v, id, def.Elem, int(def.Len), path, depth)
	case metadata.KindTuple:
		return enc.tuple(v, id, def.Tuple, path, depth)
	case metadata.KindBitSequence:
		return enc.bitSequence(v, id, def, path)
	default:
		return mismatch(path, id, "known type kind", def.Kind.String())
	}
}

func (enc *encoder) primitive(v Value, id metadata.TypeID, kind metadata.PrimitiveKind, path string) error {
	switch kind {
	case metadata.Bool:
		if v.Kind != KindBool {
			return mismatch(path, id, "bool", v.Kind.String())
		}

		enc.e.PutBool(v.Bool)
	case metadata.Char:
		if v.Kind != KindChar {
			return mismatch(path, id, "char", v.Kind.String())
		}

		enc.e.PutUint32(uint32(v.Char))
	case metadata.Str:
		if v.Kind != KindString {
			return mismatch(path, id, "string", v.Kind.String())
		}

		enc.e.PutString(v.Str)
	default:
		if (v.Kind != KindUint && v.Kind != KindInt) || v.Int == nil {
			return mismatch(path, id, kind.String(), v.Kind.String())
		}

		var err error
		if kind.IsSigned() {
			err = enc.e.PutIntN(v.Int, kind.Size())
		} else {
			err = enc.e.PutUintN(v.Int, kind.Size())
		}

		if err != nil {
			return mismatch(path, id, kind.String(), "out of range integer "+v.Int.String())
		}
	}

	return nil
}

// compactTarget finds the integer kind a compact wraps, looking through single-field composites.
// Compact<()> reports the zero-width kind noCompactValue
func compactTarget(reg *metadata.Registry, id metadata.TypeID) (metadata.PrimitiveKind, bool) {
	for i := 0; i < maxDepth; i++ {
		t, ok := reg.Type(id)
		if !ok {
			return 0, false
		}

		switch {
		case t.Def.Kind == metadata.KindPrimitive && t.Def.Primitive.IsInteger() && !t.Def.Primitive.IsSigned():
			return t.Def.Primitive, true
		case t.Def.Kind == metadata.KindComposite && len(t.Def.Fields) == 1:
			id = t.Def.Fields[0].Type
		case t.Def.Kind == metadata.KindTuple && len(t.Def.Tuple) == 0:
			return noCompactValue, true
		default:
			return 0, false
		}
	}

	return 0, false
}

func (enc *encoder) compact(v Value, id metadata.TypeID, path string, depth int) error {
	t, _ := enc.reg.Type(id)

	kind, ok := compactTarget(enc.reg, t.Def.Elem)
	if !ok {
		return mismatch(path, id, "compact of an unsigned integer", enc.reg.TypeName(t.Def.Elem))
	}

	if kind == noCompactValue {
		return nil
	}

	n := v.Unwrap()
	if (n.Kind != KindUint && n.Kind != KindInt) || n.Int == nil {
		return mismatch(path, id, "compact "+kind.String(), v.Kind.String())
	}

	if n.Int.Sign() < 0 || n.Int.BitLen() > kind.Size()*8 {
		return mismatch(path, id, "compact "+kind.String(), "out of range integer "+n.Int.String())
	}

	if err := enc.e.PutCompactBig(n.Int); err != nil {
		return mismatch(path, id, "compact "+kind.String(), err.Error())
	}

	return nil
}

// fields encodes caller fields against declared fields: named ones are matched by
// name in declared order, unnamed ones positionally
func (enc *encoder) fields(given []Field, declared []metadata.Field, id metadata.TypeID, path string, depth int) error {
	if len(declared) > 0 && declared[0].Name != "" && len(given) > 0 && given[0].Name != "" {
		byName := make(map[string]Value, len(given))
		for _, f := range given {
			byName[f.Name] = f.Value
		}

		for i, f := range declared {
			fv, ok := byName[f.Name]
			if !ok {
				return mismatch(fieldPath(path, f, i), id, "field "+f.Name, "nothing")
			}

			delete(byName, f.Name)

			if err := enc.encode(fv, f.Type, fieldPath(path, f, i), depth+1); err != nil {
				return err
			}
		}

		for _, f := range given {
			if _, extra := byName[f.Name]; extra {
				return mismatch(variantPath(path, f.Name), id, "no such field", "field "+f.Name)
			}
		}

		return nil
	}

	if len(given) != len(declared) {
		return mismatch(path, id, fmt.Sprintf("%d fields", len(declared)), fmt.Sprintf("%d fields", len(given)))
	}

	for i, f := range declared {
		if err := enc.encode(given[i].Value, f.Type, fieldPath(path, f, i), depth+1); err != nil {
			return err
		}
	}

	return nil
}

func (enc *encoder) composite(v Value, id metadata.TypeID, declared []metadata.Field, path string, depth int) error {
	switch {
	case v.Kind == KindComposite:
		// a single-field wrapper may also be given its inner composite directly
		if len(declared) == 1 && len(v.Fields) != 1 && len(v.Fields) > 0 {
			return enc.encode(v, declared[0].Type, path, depth+1)
		}

		return enc.fields(v.Fields, declared, id, path, depth)
	case v.Kind == KindSequence && len(declared) == len(v.Items) && (len(declared) == 0 || declared[0].Name == ""):
		return enc.fields(Tuple(v.Items...).Fields, declared, id, path, depth)
	case len(declared) == 1:
		// transparent newtype such as AccountId32([u8; 32]); the wrapper adds no path segment
		return enc.encode(v, declared[0].Type, path, depth+1)
	default:
		return mismatch(path, id, "composite", v.Kind.String())
	}
}

func (enc *encoder) variant(v Value, t *metadata.Type, path string, depth int) error {
	if v.Kind != KindVariant {
		return mismatch(path, t.ID, "variant of "+t.Name(), v.Kind.String())
	}

	var (
		selected *metadata.Variant
		ok       bool
	)

	if v.Variant != "" {
		selected, ok = t.Def.VariantByName(v.Variant)
	} else {
		selected, ok = t.Def.VariantByIndex(v.VariantIndex)
	}

	if !ok {
		got := v.Variant
		if got == "" {
			got = fmt.Sprintf("index %d", v.VariantIndex)
		}

		return mismatch(path, t.ID, "variant of "+t.Name(), got)
	}

	enc.e.PutUint8(selected.Index)

	vpath := variantPath(path, selected.Name)

	// a lone positional payload may be given without wrapping
	if len(selected.Fields) == 1 && len(v.Fields) == 1 && v.Fields[0].Name == "" {
		return enc.encode(v.Fields[0].Value, selected.Fields[0].Type, fieldPath(vpath, selected.Fields[0], 0), depth+1)
	}

	return enc.fields(v.Fields, selected.Fields, t.ID, vpath, depth)
}

func (enc *encoder) isU8(id metadata.TypeID) bool {
	t, ok := enc.reg.Type(id)

	return ok && t.Def.Kind == metadata.KindPrimitive && t.Def.Primitive == metadata.U8
}

// sequence encodes vectors (fixed < 0) and arrays of length fixed
func (enc *encoder) sequence(v Value, id, elem metadata.TypeID, fixed int, path string, depth int) error {
	if v.Kind == KindBytes && enc.isU8(elem) {
		if fixed >= 0 {
			if len(v.Bytes) != fixed {
				return mismatch(path, id, fmt.Sprintf("%d bytes", fixed), fmt.Sprintf("%d bytes", len(v.Bytes)))
			}

			enc.e.Write(v.Bytes)
		} else {
			enc.e.PutBytes(v.Bytes)
		}

		return nil
	}

	items := v.Items

	switch v.Kind {
	case KindSequence:
	case KindComposite:
		// positional composites double as fixed-size arrays
		items = make([]Value, len(v.Fields))
		for i, f := range v.Fields {
			items[i] = f.Value
		}
	default:
		return mismatch(path, id, "sequence", v.Kind.String())
	}

	if fixed >= 0 {
		if len(items) != fixed {
			return mismatch(path, id, fmt.Sprintf("%d items", fixed), fmt.Sprintf("%d items", len(items)))
		}
	} else {
		enc.e.PutCompact(uint64(len(items)))
	}

	for i, item := range items {
		if err := enc.encode(item, elem, itemPath(path, i), depth+1); err != nil {
			return err
		}
	}

	return nil
}

func (enc *encoder) tuple(v Value, id metadata.TypeID, members []metadata.TypeID, path string, depth int) error {
	var items []Value

	switch v.Kind {
	case KindComposite:
		items = make([]Value, len(v.Fields))
		for i, f := range v.Fields {
			items[i] = f.Value
		}
	case KindSequence:
		items = v.Items
	default:
		if len(members) != 1 {
			return mismatch(path, id, fmt.Sprintf("tuple of %d", len(members)), v.Kind.String())
		}

		items = []Value{v}
	}

	if len(items) != len(members) {
		return mismatch(path, id, fmt.Sprintf("tuple of %d", len(members)), fmt.Sprintf("%d items", len(items)))
	}

	for i, member := range members {
		if err := enc.encode(items[i], member, itemPath(path, i), depth+1); err != nil {
			return err
		}
	}

	return nil
}

// bitStoreSize is the byte width of the bit sequence store type
func bitStoreSize(reg *metadata.Registry, def *metadata.TypeDef) int {
	t, ok := reg.Type(def.BitStore)
	if !ok || t.Def.Kind != metadata.KindPrimitive || t.Def.Primitive.Size() == 0 {
		return 1
	}

	return t.Def.Primitive.Size()
}

func bitSequenceBytes(bitLen uint64, storeSize int) uint64 {
	storeBits := uint64(storeSize) * 8

	return (bitLen + storeBits - 1) / storeBits * uint64(storeSize)
}

func (enc *encoder) bitSequence(v Value, id metadata.TypeID, def *metadata.TypeDef, path string) error {
	if v.Kind != KindBitSequence {
		return mismatch(path, id, "bit sequence", v.Kind.String())
	}

	want := bitSequenceBytes(v.BitLen, bitStoreSize(enc.reg, def))
	if uint64(len(v.Bytes)) != want {
		return mismatch(path, id, fmt.Sprintf("%d packed bytes", want), fmt.Sprintf("%d bytes", len(v.Bytes)))
	}

	if err := enc.e.PutCompactBig(new(big.Int).SetUint64(v.BitLen)); err != nil {
		return err
	}

	enc.e.Write(v.Bytes)

	return nil
}
