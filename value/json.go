package value

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/0xPolygon/substrate-client/helper/hex"
	"github.com/0xPolygon/substrate-client/metadata"
	"github.com/0xPolygon/substrate-client/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Native converts the value into plain Go data: maps for named composites, slices
// for positional ones and sequences, *big.Int for integers and []byte for bytes.
// Single-field positional wrappers are flattened and unit variants become their name
func (v Value) Native() interface{} {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindChar:
		return string(v.Char)
	case KindString:
		return v.Str
	case KindUint, KindInt:
		if v.Int == nil {
			return new(big.Int)
		}

		return new(big.Int).Set(v.Int)
	case KindBytes:
		return append([]byte{}, v.Bytes...)
	case KindBitSequence:
		return map[string]interface{}{"bits": v.BitLen, "packed": append([]byte{}, v.Bytes...)}
	case KindComposite:
		return nativeFields(v.Fields)
	case KindVariant:
		name := v.Variant
		if name == "" {
			name = fmt.Sprintf("%d", v.VariantIndex)
		}

		if len(v.Fields) == 0 {
			return name
		}

		return map[string]interface{}{name: nativeFields(v.Fields)}
	case KindSequence:
		out := make([]interface{}, len(v.Items))
		for i, item := range v.Items {
			out[i] = item.Native()
		}

		return out
	default:
		return nil
	}
}

func nativeFields(fields []Field) interface{} {
	if len(fields) == 0 {
		return []interface{}{}
	}

	if fields[0].Name != "" {
		out := make(map[string]interface{}, len(fields))
		for _, f := range fields {
			out[f.Name] = f.Value.Native()
		}

		return out
	}

	if len(fields) == 1 {
		return fields[0].Value.Native()
	}

	out := make([]interface{}, len(fields))
	for i, f := range fields {
		out[i] = f.Value.Native()
	}

	return out
}

// MarshalJSON renders Native with hex bytes and decimal integers.
// Integers beyond 53 bits are quoted so javascript consumers keep precision
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonFriendly(v.Native()))
}

const maxSafeJSONInt = 1<<53 - 1

func jsonFriendly(n interface{}) interface{} {
	switch x := n.(type) {
	case *big.Int:
		if x.IsInt64() && x.Int64() <= maxSafeJSONInt && x.Int64() >= -maxSafeJSONInt {
			return x.Int64()
		}

		return x.String()
	case []byte:
		return hex.EncodeToHex(x)
	case []interface{}:
		out := make([]interface{}, len(x))
		for i := range x {
			out[i] = jsonFriendly(x[i])
		}

		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, item := range x {
			out[k] = jsonFriendly(item)
		}

		return out
	default:
		return n
	}
}

// FromJSON builds a value of type id from loosely typed JSON such as a CLI argument.
// Integers may be numbers, decimal strings or 0x strings; byte strings are hex;
// 32-byte accounts may also be SS58 addresses; variants are "Name" or {"Name": payload}
// and null selects an Option's None
func FromJSON(raw []byte, id metadata.TypeID, reg *metadata.Registry) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var in interface{}
	if err := dec.Decode(&in); err != nil {
		return Value{}, fmt.Errorf("invalid json: %w", err)
	}

	c := &jsonConverter{reg: reg}

	return c.convert(in, id, "", 0)
}

type jsonConverter struct {
	reg *metadata.Registry
}

func describe(in interface{}) string {
	switch in.(type) {
	case nil:
		return "null"
	case bool:
		return "json bool"
	case jsoniter.Number:
		return "json number"
	case string:
		return "json string"
	case []interface{}:
		return "json array"
	case map[string]interface{}:
		return "json object"
	default:
		return fmt.Sprintf("%T", in)
	}
}

func (c *jsonConverter) convert(in interface{}, id metadata.TypeID, path string, depth int) (Value, error) {
	if depth > maxDepth {
		return Value{}, fmt.Errorf("%s: %w", path, ErrTooDeep)
	}

	t, ok := c.reg.Type(id)
	if !ok {
		return Value{}, fmt.Errorf("%s: %w: %d", path, metadata.ErrDanglingType, id)
	}

	def := &t.Def

	switch def.Kind {
	case metadata.KindPrimitive:
		return c.primitive(in, id, def.Primitive, path)
	case metadata.KindCompact:
		kind, ok := compactTarget(c.reg, def.Elem)
		if !ok {
			return Value{}, mismatch(path, id, "compact of an unsigned integer", c.reg.TypeName(def.Elem))
		}

		if kind == noCompactValue {
			return Unit(), nil
		}

		return c.primitive(in, id, kind, path)
	case metadata.KindComposite:
		return c.composite(in, id, def.Fields, path, depth)
	case metadata.KindVariant:
		return c.variant(in, t, path, depth)
	case metadata.KindSequence, metadata.KindArray:
		return c.sequence(in, id, def, path, depth)
	case metadata.KindTuple:
		items, ok := in.([]interface{})
		if !ok || len(items) != len(def.Tuple) {
			return Value{}, mismatch(path, id, fmt.Sprintf("array of %d", len(def.Tuple)), describe(in))
		}

		out := make([]Value, len(items))

		for i, item := range items {
			v, err := c.convert(item, def.Tuple[i], itemPath(path, i), depth+1)
			if err != nil {
				return Value{}, err
			}

			out[i] = v
		}

		return Tuple(out...), nil
	case metadata.KindBitSequence:
		return c.bitSequence(in, id, def, path)
	default:
		return Value{}, mismatch(path, id, "known type kind", def.Kind.String())
	}
}

func parseInteger(in interface{}) (*big.Int, bool) {
	var s string

	switch x := in.(type) {
	case jsoniter.Number:
		s = x.String()
	case string:
		s = strings.TrimSpace(x)
	default:
		return nil, false
	}

	if hex.Has0xPrefix(s) {
		n, err := hex.DecodeHexToBig(s)
		if err != nil {
			return nil, false
		}

		return n, true
	}

	return new(big.Int).SetString(s, 10)
}

func (c *jsonConverter) primitive(in interface{}, id metadata.TypeID, kind metadata.PrimitiveKind, path string) (Value, error) {
	switch kind {
	case metadata.Bool:
		b, ok := in.(bool)
		if !ok {
			return Value{}, mismatch(path, id, "bool", describe(in))
		}

		return Bool(b), nil
	case metadata.Char:
		s, ok := in.(string)
		if !ok || len([]rune(s)) != 1 {
			return Value{}, mismatch(path, id, "single character", describe(in))
		}

		return Char([]rune(s)[0]), nil
	case metadata.Str:
		s, ok := in.(string)
		if !ok {
			return Value{}, mismatch(path, id, "string", describe(in))
		}

		return String(s), nil
	default:
		n, ok := parseInteger(in)
		if !ok {
			return Value{}, mismatch(path, id, kind.String(), describe(in))
		}

		if kind.IsSigned() {
			return Value{Kind: KindInt, Int: n}, nil
		}

		if n.Sign() < 0 {
			return Value{}, mismatch(path, id, kind.String(), "negative number")
		}

		return Value{Kind: KindUint, Int: n}, nil
	}
}

func (c *jsonConverter) composite(in interface{}, id metadata.TypeID, declared []metadata.Field, path string, depth int) (Value, error) {
	switch x := in.(type) {
	case map[string]interface{}:
		if len(declared) > 0 && declared[0].Name != "" {
			fields := make([]Field, len(declared))

			for i, f := range declared {
				item, ok := x[f.Name]
				if !ok {
					return Value{}, mismatch(fieldPath(path, f, i), id, "field "+f.Name, "nothing")
				}

				v, err := c.convert(item, f.Type, fieldPath(path, f, i), depth+1)
				if err != nil {
					return Value{}, err
				}

				fields[i] = Named(f.Name, v)
			}

			if len(x) != len(declared) {
				return Value{}, mismatch(path, id, fmt.Sprintf("%d fields", len(declared)), fmt.Sprintf("%d keys", len(x)))
			}

			return Composite(fields...), nil
		}
	case []interface{}:
		if len(declared) != 1 || len(declared[0].Name) > 0 {
			if len(x) != len(declared) {
				return Value{}, mismatch(path, id, fmt.Sprintf("%d fields", len(declared)), fmt.Sprintf("%d items", len(x)))
			}

			fields := make([]Field, len(declared))

			for i, f := range declared {
				v, err := c.convert(x[i], f.Type, fieldPath(path, f, i), depth+1)
				if err != nil {
					return Value{}, err
				}

				fields[i] = Named(f.Name, v)
			}

			return Value{Kind: KindComposite, Fields: fields}, nil
		}
	}

	if len(declared) == 1 {
		f := declared[0]

		// transparent newtype, no path segment
		v, err := c.convert(in, f.Type, path, depth+1)
		if err != nil {
			return Value{}, err
		}

		return Composite(Named(f.Name, v)), nil
	}

	return Value{}, mismatch(path, id, "json object", describe(in))
}

func isOption(t *metadata.Type) bool {
	if len(t.Def.Variants) != 2 {
		return false
	}

	none, okNone := t.Def.VariantByName("None")
	some, okSome := t.Def.VariantByName("Some")

	return okNone && okSome && len(none.Fields) == 0 && len(some.Fields) == 1
}

func (c *jsonConverter) variant(in interface{}, t *metadata.Type, path string, depth int) (Value, error) {
	option := isOption(t)

	var (
		name    string
		payload interface{}
		hasBody bool
	)

	switch x := in.(type) {
	case nil:
		if !option {
			return Value{}, mismatch(path, t.ID, "variant of "+t.Name(), "null")
		}

		return Variant("None"), nil
	case string:
		if _, ok := t.Def.VariantByName(x); ok || !option {
			name = x
		}
	case map[string]interface{}:
		if len(x) == 1 {
			for k, body := range x {
				if _, ok := t.Def.VariantByName(k); ok || !option {
					name, payload, hasBody = k, body, true
				}
			}
		}
	}

	if name == "" {
		if option {
			// bare payload of Some
			name, payload, hasBody = "Some", in, true
		} else {
			return Value{}, mismatch(path, t.ID, "variant of "+t.Name(), describe(in))
		}
	}

	selected, ok := t.Def.VariantByName(name)
	if !ok {
		return Value{}, mismatch(path, t.ID, "variant of "+t.Name(), name)
	}

	vpath := variantPath(path, selected.Name)

	if len(selected.Fields) == 0 {
		if hasBody && payload != nil {
			if items, ok := payload.([]interface{}); !ok || len(items) != 0 {
				return Value{}, mismatch(vpath, t.ID, "no fields", describe(payload))
			}
		}

		return Value{Kind: KindVariant, Variant: selected.Name, VariantIndex: selected.Index}, nil
	}

	if !hasBody {
		return Value{}, mismatch(vpath, t.ID, fmt.Sprintf("%d fields", len(selected.Fields)), "nothing")
	}

	var body Value

	if len(selected.Fields) == 1 && selected.Fields[0].Name == "" {
		f := selected.Fields[0]

		inner, err := c.convert(payload, f.Type, fieldPath(vpath, f, 0), depth+1)
		if err != nil {
			return Value{}, err
		}

		body = Tuple(inner)
	} else {
		var err error

		body, err = c.composite(payload, t.ID, selected.Fields, vpath, depth)
		if err != nil {
			return Value{}, err
		}
	}

	return Value{Kind: KindVariant, Variant: selected.Name, VariantIndex: selected.Index, Fields: body.Fields}, nil
}

func (c *jsonConverter) isU8(id metadata.TypeID) bool {
	t, ok := c.reg.Type(id)

	return ok && t.Def.Kind == metadata.KindPrimitive && t.Def.Primitive == metadata.U8
}

func (c *jsonConverter) sequence(in interface{}, id metadata.TypeID, def *metadata.TypeDef, path string, depth int) (Value, error) {
	if s, ok := in.(string); ok && c.isU8(def.Elem) {
		if def.Kind == metadata.KindArray && def.Len == 32 && !hex.Has0xPrefix(s) {
			acc, err := types.ParseAccountID(s)
			if err != nil {
				return Value{}, mismatch(path, id, "ss58 address or hex", "invalid string "+s)
			}

			return Bytes(acc.Bytes()), nil
		}

		b, err := hex.DecodeHex(s)
		if err != nil {
			return Value{}, mismatch(path, id, "hex bytes", "invalid hex "+s)
		}

		if def.Kind == metadata.KindArray && len(b) != int(def.Len) {
			return Value{}, mismatch(path, id, fmt.Sprintf("%d bytes", def.Len), fmt.Sprintf("%d bytes", len(b)))
		}

		return Bytes(b), nil
	}

	items, ok := in.([]interface{})
	if !ok {
		return Value{}, mismatch(path, id, "json array", describe(in))
	}

	if def.Kind == metadata.KindArray && len(items) != int(def.Len) {
		return Value{}, mismatch(path, id, fmt.Sprintf("%d items", def.Len), fmt.Sprintf("%d items", len(items)))
	}

	out := make([]Value, len(items))

	for i, item := range items {
		v, err := c.convert(item, def.Elem, itemPath(path, i), depth+1)
		if err != nil {
			return Value{}, err
		}

		out[i] = v
	}

	if c.isU8(def.Elem) {
		b := make([]byte, len(out))
		for i, v := range out {
			if v.Int.BitLen() > 8 {
				return Value{}, mismatch(itemPath(path, i), def.Elem, "u8", v.Int.String())
			}

			b[i] = byte(v.Int.Uint64())
		}

		return Bytes(b), nil
	}

	return Sequence(out...), nil
}

// bitSequence accepts an array of booleans and packs it according to the store and order types
func (c *jsonConverter) bitSequence(in interface{}, id metadata.TypeID, def *metadata.TypeDef, path string) (Value, error) {
	items, ok := in.([]interface{})
	if !ok {
		return Value{}, mismatch(path, id, "array of bools", describe(in))
	}

	bits := make([]bool, len(items))

	for i, item := range items {
		b, ok := item.(bool)
		if !ok {
			return Value{}, mismatch(itemPath(path, i), id, "bool", describe(item))
		}

		bits[i] = b
	}

	msb := false
	if order, ok := c.reg.Type(def.BitOrder); ok {
		msb = order.Name() == "Msb0"
	}

	return PackBits(bits, bitStoreSize(c.reg, def), msb), nil
}

// PackBits lays bits out in store words of storeSize bytes, little-endian per word
func PackBits(bits []bool, storeSize int, msb bool) Value {
	wordBits := storeSize * 8
	packed := make([]byte, bitSequenceBytes(uint64(len(bits)), storeSize))

	for i, bit := range bits {
		if !bit {
			continue
		}

		word, pos := i/wordBits, i%wordBits
		if msb {
			pos = wordBits - 1 - pos
		}

		packed[word*storeSize+pos/8] |= 1 << (pos % 8)
	}

	return BitSequence(uint64(len(bits)), packed)
}
