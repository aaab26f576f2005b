// Package value is a dynamic representation of SCALE data whose shape is only known from metadata
package value

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/0xPolygon/substrate-client/helper/hex"
)

type Kind uint8

const (
	KindBool Kind = iota
	KindChar
	KindString
	KindUint
	KindInt
	KindBytes
	// KindComposite covers structs, tuples and tuple structs; field names are empty for the latter two
	KindComposite
	KindVariant
	// KindSequence covers vectors and arrays of anything but u8
	KindSequence
	KindBitSequence
)

var kindNames = [...]string{"bool", "char", "string", "unsigned integer", "signed integer", "bytes",
	"composite", "variant", "sequence", "bit sequence"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}

	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Field is a possibly unnamed member of a composite or variant
type Field struct {
	Name  string
	Value Value
}

// Value is a dynamically typed SCALE value. It only has meaning together with
// the type id it was decoded from or will be encoded against
type Value struct {
	Kind Kind

	Bool bool
	Char rune
	Str  string

	// Int holds both signed and unsigned integers of any width
	Int *big.Int

	// Bytes holds u8 vectors and arrays, and the packed storage of bit sequences
	Bytes []byte
	// BitLen is the number of bits of a bit sequence
	BitLen uint64

	// Variant selection: by name when set, else by index
	Variant      string
	VariantIndex uint8

	Fields []Field
	Items  []Value
}

func Bool(b bool) Value {
	return Value{Kind: KindBool, Bool: b}
}

func Char(r rune) Value {
	return Value{Kind: KindChar, Char: r}
}

func String(s string) Value {
	return Value{Kind: KindString, Str: s}
}

func Uint(v uint64) Value {
	return Value{Kind: KindUint, Int: new(big.Int).SetUint64(v)}
}

func BigUint(v *big.Int) Value {
	return Value{Kind: KindUint, Int: new(big.Int).Set(v)}
}

func Int(v int64) Value {
	return Value{Kind: KindInt, Int: big.NewInt(v)}
}

func BigInt(v *big.Int) Value {
	return Value{Kind: KindInt, Int: new(big.Int).Set(v)}
}

func Bytes(b []byte) Value {
	out := make([]byte, len(b))
	copy(out, b)

	return Value{Kind: KindBytes, Bytes: out}
}

// BitSequence carries bitLen bits packed in their on-chain store representation
func BitSequence(bitLen uint64, packed []byte) Value {
	return Value{Kind: KindBitSequence, BitLen: bitLen, Bytes: packed}
}

// Named builds a field for Composite and Variant
func Named(name string, v Value) Field {
	return Field{Name: name, Value: v}
}

// Composite builds a struct value from named fields
func Composite(fields ...Field) Value {
	return Value{Kind: KindComposite, Fields: fields}
}

// Tuple builds an unnamed composite, used for tuples and tuple structs
func Tuple(items ...Value) Value {
	fields := make([]Field, len(items))
	for i, item := range items {
		fields[i] = Field{Value: item}
	}

	return Value{Kind: KindComposite, Fields: fields}
}

// Unit is the empty tuple
func Unit() Value {
	return Value{Kind: KindComposite}
}

func Sequence(items ...Value) Value {
	return Value{Kind: KindSequence, Items: items}
}

// Variant selects an enum variant by name
func Variant(name string, fields ...Field) Value {
	return Value{Kind: KindVariant, Variant: name, Fields: fields}
}

// VariantAt selects an enum variant by discriminant
func VariantAt(index uint8, fields ...Field) Value {
	return Value{Kind: KindVariant, VariantIndex: index, Fields: fields}
}

// UnnamedVariant is Variant with positional fields
func UnnamedVariant(name string, items ...Value) Value {
	return Value{Kind: KindVariant, Variant: name, Fields: Tuple(items...).Fields}
}

// Field returns the named field of a composite or variant
func (v Value) Field(name string) (Value, bool) {
	for _, f := range v.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}

	return Value{}, false
}

// Uint64 returns the integer if it fits into 64 bits
func (v Value) Uint64() (uint64, bool) {
	if (v.Kind != KindUint && v.Kind != KindInt) || v.Int == nil || !v.Int.IsUint64() {
		return 0, false
	}

	return v.Int.Uint64(), true
}

// Unwrap strips single-field unnamed composites such as AccountId32([u8; 32])
func (v Value) Unwrap() Value {
	for v.Kind == KindComposite && len(v.Fields) == 1 && v.Fields[0].Name == "" {
		v = v.Fields[0].Value
	}

	return v
}

// Equal compares two values structurally
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}

	switch v.Kind {
	case KindBool:
		return v.Bool == o.Bool
	case KindChar:
		return v.Char == o.Char
	case KindString:
		return v.Str == o.Str
	case KindUint, KindInt:
		if v.Int == nil || o.Int == nil {
			return v.Int == o.Int
		}

		return v.Int.Cmp(o.Int) == 0
	case KindBytes:
		return bytes.Equal(v.Bytes, o.Bytes)
	case KindBitSequence:
		return v.BitLen == o.BitLen && bytes.Equal(v.Bytes, o.Bytes)
	case KindVariant:
		if v.Variant != o.Variant || v.VariantIndex != o.VariantIndex {
			return false
		}

		return fieldsEqual(v.Fields, o.Fields)
	case KindComposite:
		return fieldsEqual(v.Fields, o.Fields)
	case KindSequence:
		if len(v.Items) != len(o.Items) {
			return false
		}

		for i := range v.Items {
			if !v.Items[i].Equal(o.Items[i]) {
				return false
			}
		}

		return true
	default:
		return false
	}
}

func fieldsEqual(a, b []Field) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i].Name != b[i].Name || !a[i].Value.Equal(b[i].Value) {
			return false
		}
	}

	return true
}

// String renders the value compactly for logs and the CLI
func (v Value) String() string {
	var b strings.Builder

	v.write(&b)

	return b.String()
}

func (v Value) write(b *strings.Builder) {
	switch v.Kind {
	case KindBool:
		fmt.Fprintf(b, "%t", v.Bool)
	case KindChar:
		fmt.Fprintf(b, "%q", v.Char)
	case KindString:
		fmt.Fprintf(b, "%q", v.Str)
	case KindUint, KindInt:
		if v.Int == nil {
			b.WriteString("0")
		} else {
			b.WriteString(v.Int.String())
		}
	case KindBytes:
		b.WriteString(hex.EncodeToHex(v.Bytes))
	case KindBitSequence:
		fmt.Fprintf(b, "bits(%d, %s)", v.BitLen, hex.EncodeToHex(v.Bytes))
	case KindVariant:
		name := v.Variant
		if name == "" {
			name = fmt.Sprintf("#%d", v.VariantIndex)
		}

		b.WriteString(name)

		if len(v.Fields) > 0 {
			writeFields(b, v.Fields)
		}
	case KindComposite:
		writeFields(b, v.Fields)
	case KindSequence:
		b.WriteString("[")

		for i, item := range v.Items {
			if i > 0 {
				b.WriteString(", ")
			}

			item.write(b)
		}

		b.WriteString("]")
	}
}

func writeFields(b *strings.Builder, fields []Field) {
	named := len(fields) > 0 && fields[0].Name != ""

	if named {
		b.WriteString("{")
	} else {
		b.WriteString("(")
	}

	for i, f := range fields {
		if i > 0 {
			b.WriteString(", ")
		}

		if f.Name != "" {
			b.WriteString(f.Name)
			b.WriteString(": ")
		}

		f.Value.write(b)
	}

	if named {
		b.WriteString("}")
	} else {
		b.WriteString(")")
	}
}
