package metadata

import (
	"fmt"
	"strings"
)

// TypeID is a key into the portable type registry
type TypeID uint32

type PrimitiveKind uint8

const (
	Bool PrimitiveKind = iota
	Char
	Str
	U8
	U16
	U32
	U64
	U128
	U256
	I8
	I16
	I32
	I64
	I128
	I256
)

var primitiveNames = [...]string{"bool", "char", "str", "u8", "u16", "u32", "u64", "u128", "u256",
	"i8", "i16", "i32", "i64", "i128", "i256"}

func (k PrimitiveKind) String() string {
	if int(k) < len(primitiveNames) {
		return primitiveNames[k]
	}

	return fmt.Sprintf("primitive(%d)", uint8(k))
}

func (k PrimitiveKind) Valid() bool {
	return k <= I256
}

// Size returns the encoded byte width of integer kinds, 0 for others
func (k PrimitiveKind) Size() int {
	switch k {
	case U8, I8:
		return 1
	case U16, I16:
		return 2
	case U32, I32:
		return 4
	case U64, I64:
		return 8
	case U128, I128:
		return 16
	case U256, I256:
		return 32
	default:
		return 0
	}
}

func (k PrimitiveKind) IsSigned() bool {
	return k >= I8 && k <= I256
}

func (k PrimitiveKind) IsInteger() bool {
	return k.Size() > 0
}

// DefKind discriminates TypeDef, numbered as in the portable registry encoding
type DefKind uint8

const (
	KindComposite DefKind = iota
	KindVariant
	KindSequence
	KindArray
	KindTuple
	KindPrimitive
	KindCompact
	KindBitSequence
)

var defKindNames = [...]string{"composite", "variant", "sequence", "array", "tuple", "primitive", "compact", "bitsequence"}

func (k DefKind) String() string {
	if int(k) < len(defKindNames) {
		return defKindNames[k]
	}

	return fmt.Sprintf("kind(%d)", uint8(k))
}

type Field struct {
	Name     string
	Type     TypeID
	TypeName string
	Docs     []string
}

type Variant struct {
	Name   string
	Index  uint8
	Fields []Field
	Docs   []string
}

// TypeDef is the shape of a registry type. Only the members matching Kind are set
type TypeDef struct {
	Kind DefKind

	// composite
	Fields []Field

	// variant
	Variants []Variant

	// sequence, array and compact element
	Elem TypeID

	// array length
	Len uint32

	// tuple members
	Tuple []TypeID

	Primitive PrimitiveKind

	// bit sequence store and order types
	BitStore TypeID
	BitOrder TypeID
}

// VariantByName returns the variant called name
func (d *TypeDef) VariantByName(name string) (*Variant, bool) {
	for i := range d.Variants {
		if d.Variants[i].Name == name {
			return &d.Variants[i], true
		}
	}

	return nil, false
}

// VariantByIndex returns the variant with the given discriminant
func (d *TypeDef) VariantByIndex(idx uint8) (*Variant, bool) {
	for i := range d.Variants {
		if d.Variants[i].Index == idx {
			return &d.Variants[i], true
		}
	}

	return nil, false
}

type TypeParam struct {
	Name string
	Type *TypeID
}

type Type struct {
	ID     TypeID
	Path   []string
	Params []TypeParam
	Def    TypeDef
	Docs   []string
}

// PathString joins the type path the way rust prints it
func (t *Type) PathString() string {
	return strings.Join(t.Path, "::")
}

// Name is the last path segment, or a structural description for anonymous types
func (t *Type) Name() string {
	if len(t.Path) > 0 {
		return t.Path[len(t.Path)-1]
	}

	switch t.Def.Kind {
	case KindPrimitive:
		return t.Def.Primitive.String()
	case KindSequence:
		return fmt.Sprintf("Vec<#%d>", t.Def.Elem)
	case KindArray:
		return fmt.Sprintf("[#%d; %d]", t.Def.Elem, t.Def.Len)
	case KindCompact:
		return fmt.Sprintf("Compact<#%d>", t.Def.Elem)
	case KindTuple:
		parts := make([]string, len(t.Def.Tuple))
		for i, id := range t.Def.Tuple {
			parts[i] = fmt.Sprintf("#%d", id)
		}

		return "(" + strings.Join(parts, ", ") + ")"
	default:
		return fmt.Sprintf("#%d", t.ID)
	}
}
