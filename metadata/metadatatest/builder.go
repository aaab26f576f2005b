// Package metadatatest assembles metadata blobs for tests
package metadatatest

import (
	"sort"

	"github.com/0xPolygon/substrate-client/metadata"
	"github.com/0xPolygon/substrate-client/scale"
)

type Field struct {
	Name     string
	Type     metadata.TypeID
	TypeName string
}

type Variant struct {
	Name   string
	Index  uint8
	Fields []Field
}

type StorageEntry struct {
	Name     string
	Modifier metadata.StorageModifier
	Hashers  []metadata.Hasher
	// Key is ignored for plain entries (no hashers)
	Key     metadata.TypeID
	Value   metadata.TypeID
	Default []byte
}

type Constant struct {
	Name  string
	Type  metadata.TypeID
	Value []byte
}

type Pallet struct {
	Name      string
	Index     uint8
	Prefix    string
	Storage   []StorageEntry
	Calls     *metadata.TypeID
	Event     *metadata.TypeID
	Error     *metadata.TypeID
	Constants []Constant
	Docs      []string
}

type SignedExtension struct {
	Identifier       string
	Type             metadata.TypeID
	AdditionalSigned metadata.TypeID
}

type Extrinsic struct {
	Version          uint8
	Type             metadata.TypeID
	Address          metadata.TypeID
	Call             metadata.TypeID
	Signature        metadata.TypeID
	Extra            metadata.TypeID
	SignedExtensions []SignedExtension
}

type APIMethod struct {
	Name   string
	Inputs []Field
	Output metadata.TypeID
}

type API struct {
	Name    string
	Methods []APIMethod
}

// Ref is a convenience for the optional type ids of a pallet
func Ref(id metadata.TypeID) *metadata.TypeID {
	return &id
}

type typeEntry struct {
	id     metadata.TypeID
	path   []string
	params []typeParam
	def    func(e *scale.Encoder)
}

type typeParam struct {
	name string
	id   *metadata.TypeID
}

// Builder accumulates types and pallets and encodes them as a metadata blob.
// Type ids are assigned sequentially in the order types are added
type Builder struct {
	types       []typeEntry
	pallets     []Pallet
	extrinsic   Extrinsic
	runtimeType metadata.TypeID
	apis        []API
	outerEnums  [3]metadata.TypeID
	custom      map[string]Constant
}

func NewBuilder() *Builder {
	return &Builder{custom: map[string]Constant{}}
}

func (b *Builder) add(path []string, def func(e *scale.Encoder)) metadata.TypeID {
	id := metadata.TypeID(len(b.types))
	b.types = append(b.types, typeEntry{id: id, path: path, def: def})

	return id
}

// WithParam attaches a generic parameter to a previously added type
func (b *Builder) WithParam(id metadata.TypeID, name string, param metadata.TypeID) {
	b.types[id].params = append(b.types[id].params, typeParam{name: name, id: Ref(param)})
}

func (b *Builder) Primitive(kind metadata.PrimitiveKind) metadata.TypeID {
	return b.add(nil, func(e *scale.Encoder) {
		e.PutUint8(uint8(metadata.KindPrimitive))
		e.PutUint8(uint8(kind))
	})
}

func (b *Builder) Composite(path []string, fields ...Field) metadata.TypeID {
	return b.add(path, func(e *scale.Encoder) {
		e.PutUint8(uint8(metadata.KindComposite))
		putFields(e, fields)
	})
}

func (b *Builder) Variant(path []string, variants ...Variant) metadata.TypeID {
	return b.add(path, func(e *scale.Encoder) {
		e.PutUint8(uint8(metadata.KindVariant))
		e.PutCompact(uint64(len(variants)))

		for _, v := range variants {
			e.PutString(v.Name)
			putFields(e, v.Fields)
			e.PutUint8(v.Index)
			e.PutCompact(0)
		}
	})
}

func (b *Builder) Sequence(elem metadata.TypeID) metadata.TypeID {
	return b.add(nil, func(e *scale.Encoder) {
		e.PutUint8(uint8(metadata.KindSequence))
		e.PutCompact(uint64(elem))
	})
}

func (b *Builder) Array(length uint32, elem metadata.TypeID) metadata.TypeID {
	return b.add(nil, func(e *scale.Encoder) {
		e.PutUint8(uint8(metadata.KindArray))
		e.PutUint32(length)
		e.PutCompact(uint64(elem))
	})
}

func (b *Builder) Tuple(members ...metadata.TypeID) metadata.TypeID {
	return b.add(nil, func(e *scale.Encoder) {
		e.PutUint8(uint8(metadata.KindTuple))
		e.PutCompact(uint64(len(members)))

		for _, m := range members {
			e.PutCompact(uint64(m))
		}
	})
}

func (b *Builder) Compact(inner metadata.TypeID) metadata.TypeID {
	return b.add(nil, func(e *scale.Encoder) {
		e.PutUint8(uint8(metadata.KindCompact))
		e.PutCompact(uint64(inner))
	})
}

func (b *Builder) BitSequence(store, order metadata.TypeID) metadata.TypeID {
	return b.add(nil, func(e *scale.Encoder) {
		e.PutUint8(uint8(metadata.KindBitSequence))
		e.PutCompact(uint64(store))
		e.PutCompact(uint64(order))
	})
}

func (b *Builder) Pallet(p Pallet) {
	b.pallets = append(b.pallets, p)
}

func (b *Builder) Extrinsic(ext Extrinsic) {
	b.extrinsic = ext
}

func (b *Builder) RuntimeType(id metadata.TypeID) {
	b.runtimeType = id
}

func (b *Builder) API(api API) {
	b.apis = append(b.apis, api)
}

func (b *Builder) OuterEnums(call, event, errorType metadata.TypeID) {
	b.outerEnums = [3]metadata.TypeID{call, event, errorType}
}

func (b *Builder) Custom(c Constant) {
	b.custom[c.Name] = c
}

func putFields(e *scale.Encoder, fields []Field) {
	e.PutCompact(uint64(len(fields)))

	for _, f := range fields {
		putOptionalString(e, f.Name)
		e.PutCompact(uint64(f.Type))
		putOptionalString(e, f.TypeName)
		e.PutCompact(0)
	}
}

func putOptionalString(e *scale.Encoder, s string) {
	if s == "" {
		e.PutOptionFlag(false)

		return
	}

	e.PutOptionFlag(true)
	e.PutString(s)
}

func putOptionalID(e *scale.Encoder, id *metadata.TypeID) {
	if id == nil {
		e.PutOptionFlag(false)

		return
	}

	e.PutOptionFlag(true)
	e.PutCompact(uint64(*id))
}

func putStrings(e *scale.Encoder, s []string) {
	e.PutCompact(uint64(len(s)))

	for _, item := range s {
		e.PutString(item)
	}
}

// Build encodes the metadata with the magic prefix for the given version.
// Versions other than 14 and 15 produce only the prefix
func (b *Builder) Build(version uint8) []byte {
	e := scale.AcquireEncoder()
	defer scale.ReleaseEncoder(e)

	e.PutUint32(metadata.Magic)
	e.PutUint8(version)

	if version != metadata.V14 && version != metadata.V15 {
		return e.CopyBytes()
	}

	e.PutCompact(uint64(len(b.types)))

	for _, t := range b.types {
		e.PutCompact(uint64(t.id))
		putStrings(e, t.path)
		e.PutCompact(uint64(len(t.params)))

		for _, p := range t.params {
			e.PutString(p.name)
			putOptionalID(e, p.id)
		}

		t.def(e)
		e.PutCompact(0)
	}

	e.PutCompact(uint64(len(b.pallets)))

	for _, p := range b.pallets {
		b.putPallet(e, p, version)
	}

	ext := b.extrinsic
	if version == metadata.V14 {
		e.PutCompact(uint64(ext.Type))
		e.PutUint8(ext.Version)
	} else {
		e.PutUint8(ext.Version)
		e.PutCompact(uint64(ext.Address))
		e.PutCompact(uint64(ext.Call))
		e.PutCompact(uint64(ext.Signature))
		e.PutCompact(uint64(ext.Extra))
	}

	e.PutCompact(uint64(len(ext.SignedExtensions)))

	for _, se := range ext.SignedExtensions {
		e.PutString(se.Identifier)
		e.PutCompact(uint64(se.Type))
		e.PutCompact(uint64(se.AdditionalSigned))
	}

	e.PutCompact(uint64(b.runtimeType))

	if version == metadata.V15 {
		b.putV15(e)
	}

	return e.CopyBytes()
}

func (b *Builder) putPallet(e *scale.Encoder, p Pallet, version uint8) {
	e.PutString(p.Name)

	if len(p.Storage) == 0 {
		e.PutOptionFlag(false)
	} else {
		e.PutOptionFlag(true)

		prefix := p.Prefix
		if prefix == "" {
			prefix = p.Name
		}

		e.PutString(prefix)
		e.PutCompact(uint64(len(p.Storage)))

		for _, s := range p.Storage {
			e.PutString(s.Name)
			e.PutUint8(uint8(s.Modifier))

			if len(s.Hashers) == 0 {
				e.PutUint8(0)
				e.PutCompact(uint64(s.Value))
			} else {
				e.PutUint8(1)
				e.PutCompact(uint64(len(s.Hashers)))

				for _, h := range s.Hashers {
					e.PutUint8(uint8(h))
				}

				e.PutCompact(uint64(s.Key))
				e.PutCompact(uint64(s.Value))
			}

			e.PutBytes(s.Default)
			e.PutCompact(0)
		}
	}

	putOptionalID(e, p.Calls)
	putOptionalID(e, p.Event)

	e.PutCompact(uint64(len(p.Constants)))

	for _, c := range p.Constants {
		e.PutString(c.Name)
		e.PutCompact(uint64(c.Type))
		e.PutBytes(c.Value)
		e.PutCompact(0)
	}

	putOptionalID(e, p.Error)
	e.PutUint8(p.Index)

	if version == metadata.V15 {
		putStrings(e, p.Docs)
	}
}

func (b *Builder) putV15(e *scale.Encoder) {
	e.PutCompact(uint64(len(b.apis)))

	for _, api := range b.apis {
		e.PutString(api.Name)
		e.PutCompact(uint64(len(api.Methods)))

		for _, m := range api.Methods {
			e.PutString(m.Name)
			e.PutCompact(uint64(len(m.Inputs)))

			for _, in := range m.Inputs {
				e.PutString(in.Name)
				e.PutCompact(uint64(in.Type))
			}

			e.PutCompact(uint64(m.Output))
			e.PutCompact(0)
		}

		e.PutCompact(0)
	}

	for _, id := range b.outerEnums {
		e.PutCompact(uint64(id))
	}

	e.PutCompact(uint64(len(b.custom)))

	for _, name := range sortedKeys(b.custom) {
		c := b.custom[name]
		e.PutString(name)
		e.PutCompact(uint64(c.Type))
		e.PutBytes(c.Value)
	}
}

func sortedKeys(m map[string]Constant) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}
