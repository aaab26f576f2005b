package value

import (
	"fmt"
	"unicode/utf8"

	"github.com/0xPolygon/substrate-client/metadata"
	"github.com/0xPolygon/substrate-client/scale"
)

// Decode reads one value of type id from the front of b and reports how many bytes it used
func Decode(b []byte, id metadata.TypeID, reg *metadata.Registry) (Value, int, error) {
	d := scale.NewDecoder(b)

	v, err := DecodeWith(d, id, reg)
	if err != nil {
		return Value{}, 0, err
	}

	return v, d.Offset(), nil
}

// DecodeAll decodes b as exactly one value of type id
func DecodeAll(b []byte, id metadata.TypeID, reg *metadata.Registry) (Value, error) {
	v, n, err := Decode(b, id, reg)
	if err != nil {
		return Value{}, err
	}

	if n != len(b) {
		return Value{}, fmt.Errorf("%w: %d of %d bytes at offset %d", ErrLeftoverBytes, len(b)-n, len(b), n)
	}

	return v, nil
}

// DecodeWith continues decoding from d, which is left positioned after the value
func DecodeWith(d *scale.Decoder, id metadata.TypeID, reg *metadata.Registry) (Value, error) {
	dec := &decoder{d: d, reg: reg}

	return dec.decode(id, "", 0)
}

type decoder struct {
	d   *scale.Decoder
	reg *metadata.Registry
}

func (dec *decoder) fail(path string, err error) error {
	if path == "" {
		return err
	}

	return fmt.Errorf("%s: %w", path, err)
}

func (dec *decoder) decode(id metadata.TypeID, path string, depth int) (Value, error) {
	if depth > maxDepth {
		return Value{}, dec.fail(path, ErrTooDeep)
	}

	t, ok := dec.reg.Type(id)
	if !ok {
		return Value{}, dec.fail(path, fmt.Errorf("%w: %d", metadata.ErrDanglingType, id))
	}

	def := &t.Def

	switch def.Kind {
	case metadata.KindPrimitive:
		v, err := dec.primitive(def.Primitive)
		if err != nil {
			return Value{}, dec.fail(path, err)
		}

		return v, nil
	case metadata.KindCompact:
		return dec.compact(id, def.Elem, path)
	case metadata.KindComposite:
		fields, err := dec.fields(def.Fields, path, depth)
		if err != nil {
			return Value{}, err
		}

		return Value{Kind: KindComposite, Fields: fields}, nil
	case metadata.KindVariant:
		return dec.variant(t, path, depth)
	case metadata.KindSequence:
		n, err := dec.d.Length(dec.minSize(def.Elem))
		if err != nil {
			return Value{}, dec.fail(path, err)
		}

		return dec.items(def.Elem, n, path, depth)
	case metadata.KindArray:
		return dec.items(def.Elem, int(def.Len), path, depth)
	case metadata.KindTuple:
		fields := make([]Field, len(def.Tuple))

		for i, member := range def.Tuple {
			v, err := dec.decode(member, itemPath(path, i), depth+1)
			if err != nil {
				return Value{}, err
			}

			fields[i] = Field{Value: v}
		}

		return Value{Kind: KindComposite, Fields: fields}, nil
	case metadata.KindBitSequence:
		return dec.bitSequence(def, path)
	default:
		return Value{}, dec.fail(path, mismatch(path, id, "known type kind", def.Kind.String()))
	}
}

func (dec *decoder) primitive(kind metadata.PrimitiveKind) (Value, error) {
	switch kind {
	case metadata.Bool:
		b, err := dec.d.Bool()
		if err != nil {
			return Value{}, err
		}

		return Bool(b), nil
	case metadata.Char:
		off := dec.d.Offset()

		r, err := dec.d.Uint32()
		if err != nil {
			return Value{}, err
		}

		if !utf8.ValidRune(rune(r)) {
			return Value{}, &scale.DecodeError{Offset: off, Expected: "char", Err: ErrInvalidText}
		}

		return Char(rune(r)), nil
	case metadata.Str:
		off := dec.d.Offset()

		s, err := dec.d.Text()
		if err != nil {
			return Value{}, err
		}

		if !utf8.ValidString(s) {
			return Value{}, &scale.DecodeError{Offset: off, Expected: "str", Err: ErrInvalidText}
		}

		return String(s), nil
	default:
		if kind.IsSigned() {
			n, err := dec.d.IntN(kind.Size())
			if err != nil {
				return Value{}, err
			}

			return Value{Kind: KindInt, Int: n}, nil
		}

		n, err := dec.d.UintN(kind.Size())
		if err != nil {
			return Value{}, err
		}

		return Value{Kind: KindUint, Int: n}, nil
	}
}

func (dec *decoder) compact(id, inner metadata.TypeID, path string) (Value, error) {
	kind, ok := compactTarget(dec.reg, inner)
	if !ok {
		return Value{}, mismatch(path, id, "compact of an unsigned integer", dec.reg.TypeName(inner))
	}

	if kind == noCompactValue {
		return Unit(), nil
	}

	off := dec.d.Offset()

	n, err := dec.d.CompactBig()
	if err != nil {
		return Value{}, dec.fail(path, err)
	}

	if n.BitLen() > kind.Size()*8 {
		return Value{}, dec.fail(path, &scale.DecodeError{Offset: off, Expected: "compact " + kind.String(), Err: scale.ErrOverflow})
	}

	return Value{Kind: KindUint, Int: n}, nil
}

func (dec *decoder) fields(declared []metadata.Field, path string, depth int) ([]Field, error) {
	if len(declared) == 0 {
		return nil, nil
	}

	out := make([]Field, len(declared))

	for i, f := range declared {
		v, err := dec.decode(f.Type, fieldPath(path, f, i), depth+1)
		if err != nil {
			return nil, err
		}

		out[i] = Field{Name: f.Name, Value: v}
	}

	return out, nil
}

func (dec *decoder) variant(t *metadata.Type, path string, depth int) (Value, error) {
	off := dec.d.Offset()

	idx, err := dec.d.Uint8()
	if err != nil {
		return Value{}, dec.fail(path, err)
	}

	selected, ok := t.Def.VariantByIndex(idx)
	if !ok {
		return Value{}, dec.fail(path, &scale.DecodeError{
			Offset:   off,
			Expected: "variant of " + t.Name(),
			Err:      fmt.Errorf("%w: index %d", ErrUnknownVariant, idx),
		})
	}

	fields, err := dec.fields(selected.Fields, variantPath(path, selected.Name), depth)
	if err != nil {
		return Value{}, err
	}

	return Value{Kind: KindVariant, Variant: selected.Name, VariantIndex: selected.Index, Fields: fields}, nil
}

// minSize is a lower bound on the encoded size of a type, used to reject absurd length prefixes early
func (dec *decoder) minSize(id metadata.TypeID) int {
	return minEncodedSize(dec.reg, id, 0)
}

func minEncodedSize(reg *metadata.Registry, id metadata.TypeID, depth int) int {
	t, ok := reg.Type(id)
	if !ok || depth > 8 {
		return 0
	}

	switch t.Def.Kind {
	case metadata.KindPrimitive:
		switch t.Def.Primitive {
		case metadata.Bool, metadata.Str:
			return 1
		case metadata.Char:
			return 4
		default:
			return t.Def.Primitive.Size()
		}
	case metadata.KindComposite:
		size := 0
		for _, f := range t.Def.Fields {
			size += minEncodedSize(reg, f.Type, depth+1)
		}

		return size
	case metadata.KindTuple:
		size := 0
		for _, member := range t.Def.Tuple {
			size += minEncodedSize(reg, member, depth+1)
		}

		return size
	case metadata.KindArray:
		return int(t.Def.Len) * minEncodedSize(reg, t.Def.Elem, depth+1)
	case metadata.KindCompact, metadata.KindVariant, metadata.KindSequence, metadata.KindBitSequence:
		return 1
	default:
		return 0
	}
}

func (dec *decoder) isU8(id metadata.TypeID) bool {
	t, ok := dec.reg.Type(id)

	return ok && t.Def.Kind == metadata.KindPrimitive && t.Def.Primitive == metadata.U8
}

func (dec *decoder) items(elem metadata.TypeID, n int, path string, depth int) (Value, error) {
	if dec.isU8(elem) {
		b, err := dec.d.Read(n, "bytes")
		if err != nil {
			return Value{}, dec.fail(path, err)
		}

		return Bytes(b), nil
	}

	items := make([]Value, 0, n)

	for i := 0; i < n; i++ {
		v, err := dec.decode(elem, itemPath(path, i), depth+1)
		if err != nil {
			return Value{}, err
		}

		items = append(items, v)
	}

	return Value{Kind: KindSequence, Items: items}, nil
}

func (dec *decoder) bitSequence(def *metadata.TypeDef, path string) (Value, error) {
	bitLen, err := dec.d.Compact()
	if err != nil {
		return Value{}, dec.fail(path, err)
	}

	size := bitSequenceBytes(bitLen, bitStoreSize(dec.reg, def))
	if size > uint64(dec.d.Remaining()) {
		return Value{}, dec.fail(path, dec.d.Errorf("bit sequence", scale.ErrUnexpectedEOF))
	}

	packed, err := dec.d.Read(int(size), "bit sequence")
	if err != nil {
		return Value{}, dec.fail(path, err)
	}

	out := make([]byte, len(packed))
	copy(out, packed)

	return BitSequence(bitLen, out), nil
}
