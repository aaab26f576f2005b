package metadata

import (
	"encoding/binary"
	"fmt"

	"github.com/0xPolygon/substrate-client/scale"
)

const (
	// Magic is "meta" read as a little-endian u32
	Magic uint32 = 0x6174656d

	V14 uint8 = 14
	V15 uint8 = 15
)

// SupportedVersions lists the metadata versions Resolve understands, newest first
var SupportedVersions = []uint8{V15, V14}

type rawPallet struct {
	name      string
	prefix    string
	storage   []*StorageEntry
	calls     *TypeID
	event     *TypeID
	errorType *TypeID
	constants []*Constant
	index     uint8
	docs      []string
}

type rawMetadata struct {
	version     uint8
	types       []*Type
	pallets     []*rawPallet
	extrinsic   ExtrinsicMetadata
	runtimeType TypeID
	apis        []RuntimeAPI
	outerEnums  *OuterEnums
	custom      map[string]CustomValue
}

// Version reads the metadata version byte without resolving the blob
func Version(raw []byte) (uint8, error) {
	if len(raw) < 5 {
		return 0, &MetadataError{Path: "prefix", Err: scale.ErrUnexpectedEOF}
	}

	if binary.LittleEndian.Uint32(raw[:4]) != Magic {
		return 0, &MetadataError{Path: "prefix", Err: fmt.Errorf("%w: 0x%x", ErrBadMagic, raw[:4])}
	}

	return raw[4], nil
}

// Resolve parses a SCALE encoded, magic prefixed metadata blob into a Registry
func Resolve(raw []byte) (*Registry, error) {
	version, err := Version(raw)
	if err != nil {
		return nil, err
	}

	if version != V14 && version != V15 {
		return nil, &MetadataError{Path: "version", Err: fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)}
	}

	p := &parser{d: scale.NewDecoder(raw[5:]), version: version}

	meta, err := p.parse()
	if err != nil {
		return nil, err
	}

	return build(meta)
}

type parser struct {
	d       *scale.Decoder
	version uint8
}

func (p *parser) parse() (*rawMetadata, error) {
	meta := &rawMetadata{version: p.version}

	var err error

	if meta.types, err = p.types(); err != nil {
		return nil, err
	}

	if meta.pallets, err = p.pallets(); err != nil {
		return nil, err
	}

	if meta.extrinsic, err = p.extrinsic(); err != nil {
		return nil, err
	}

	if meta.runtimeType, err = p.typeID("runtime_type"); err != nil {
		return nil, err
	}

	if p.version >= V15 {
		if meta.apis, err = p.apis(); err != nil {
			return nil, err
		}

		if meta.outerEnums, err = p.outerEnums(); err != nil {
			return nil, err
		}

		if meta.custom, err = p.custom(); err != nil {
			return nil, err
		}
	}

	if err := p.d.Done(); err != nil {
		return nil, wrapErr("trailer", err)
	}

	return meta, nil
}

func (p *parser) typeID(path string) (TypeID, error) {
	v, err := p.d.Compact()
	if err != nil {
		return 0, wrapErr(path, err)
	}

	if v > uint64(^uint32(0)) {
		return 0, &MetadataError{Path: path, Err: fmt.Errorf("%w: type id %d", scale.ErrOverflow, v)}
	}

	return TypeID(v), nil
}

func (p *parser) optionalTypeID(path string) (*TypeID, error) {
	some, err := p.d.OptionFlag()
	if err != nil {
		return nil, wrapErr(path, err)
	}

	if !some {
		return nil, nil
	}

	id, err := p.typeID(path)
	if err != nil {
		return nil, err
	}

	return &id, nil
}

func (p *parser) text(path string) (string, error) {
	s, err := p.d.Text()
	if err != nil {
		return "", wrapErr(path, err)
	}

	return s, nil
}

func (p *parser) optionalText(path string) (string, error) {
	some, err := p.d.OptionFlag()
	if err != nil {
		return "", wrapErr(path, err)
	}

	if !some {
		return "", nil
	}

	return p.text(path)
}

func (p *parser) strings(path string) ([]string, error) {
	n, err := p.d.Length(1)
	if err != nil {
		return nil, wrapErr(path, err)
	}

	if n == 0 {
		return nil, nil
	}

	out := make([]string, n)
	for i := range out {
		if out[i], err = p.text(fmt.Sprintf("%s[%d]", path, i)); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func (p *parser) length(path string) (int, error) {
	n, err := p.d.Length(1)
	if err != nil {
		return 0, wrapErr(path, err)
	}

	return n, nil
}

func (p *parser) types() ([]*Type, error) {
	n, err := p.length("types")
	if err != nil {
		return nil, err
	}

	out := make([]*Type, n)

	for i := range out {
		path := fmt.Sprintf("types[%d]", i)

		t := &Type{}
		if t.ID, err = p.typeID(path + ".id"); err != nil {
			return nil, err
		}

		if t.Path, err = p.strings(path + ".path"); err != nil {
			return nil, err
		}

		if t.Params, err = p.typeParams(path + ".params"); err != nil {
			return nil, err
		}

		if t.Def, err = p.typeDef(path + ".def"); err != nil {
			return nil, err
		}

		if t.Docs, err = p.strings(path + ".docs"); err != nil {
			return nil, err
		}

		out[i] = t
	}

	return out, nil
}

func (p *parser) typeParams(path string) ([]TypeParam, error) {
	n, err := p.length(path)
	if err != nil {
		return nil, err
	}

	out := make([]TypeParam, n)
	for i := range out {
		elem := fmt.Sprintf("%s[%d]", path, i)

		if out[i].Name, err = p.text(elem + ".name"); err != nil {
			return nil, err
		}

		if out[i].Type, err = p.optionalTypeID(elem + ".type"); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func (p *parser) fields(path string) ([]Field, error) {
	n, err := p.length(path)
	if err != nil {
		return nil, err
	}

	out := make([]Field, n)
	for i := range out {
		elem := fmt.Sprintf("%s[%d]", path, i)

		if out[i].Name, err = p.optionalText(elem + ".name"); err != nil {
			return nil, err
		}

		if out[i].Type, err = p.typeID(elem + ".type"); err != nil {
			return nil, err
		}

		if out[i].TypeName, err = p.optionalText(elem + ".type_name"); err != nil {
			return nil, err
		}

		if out[i].Docs, err = p.strings(elem + ".docs"); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func (p *parser) typeDef(path string) (TypeDef, error) {
	var def TypeDef

	tag, err := p.d.Uint8()
	if err != nil {
		return def, wrapErr(path, err)
	}

	def.Kind = DefKind(tag)

	switch def.Kind {
	case KindComposite:
		def.Fields, err = p.fields(path + ".fields")
	case KindVariant:
		def.Variants, err = p.variants(path + ".variants")
	case KindSequence:
		def.Elem, err = p.typeID(path + ".elem")
	case KindArray:
		if def.Len, err = p.d.Uint32(); err != nil {
			return def, wrapErr(path+".len", err)
		}

		def.Elem, err = p.typeID(path + ".elem")
	case KindTuple:
		var n int
		if n, err = p.length(path + ".tuple"); err != nil {
			return def, err
		}

		def.Tuple = make([]TypeID, n)
		for i := range def.Tuple {
			if def.Tuple[i], err = p.typeID(fmt.Sprintf("%s.tuple[%d]", path, i)); err != nil {
				return def, err
			}
		}
	case KindPrimitive:
		var kind uint8
		if kind, err = p.d.Uint8(); err != nil {
			return def, wrapErr(path+".primitive", err)
		}

		def.Primitive = PrimitiveKind(kind)
		if !def.Primitive.Valid() {
			return def, &MetadataError{Path: path + ".primitive", Err: fmt.Errorf("%w: primitive kind %d", ErrInvalidTypeDef, kind)}
		}
	case KindCompact:
		def.Elem, err = p.typeID(path + ".elem")
	case KindBitSequence:
		if def.BitStore, err = p.typeID(path + ".bit_store"); err != nil {
			return def, err
		}

		def.BitOrder, err = p.typeID(path + ".bit_order")
	default:
		return def, &MetadataError{Path: path, Err: fmt.Errorf("%w: tag %d", ErrInvalidTypeDef, tag)}
	}

	return def, err
}

func (p *parser) variants(path string) ([]Variant, error) {
	n, err := p.length(path)
	if err != nil {
		return nil, err
	}

	out := make([]Variant, n)
	for i := range out {
		elem := fmt.Sprintf("%s[%d]", path, i)

		if out[i].Name, err = p.text(elem + ".name"); err != nil {
			return nil, err
		}

		if out[i].Fields, err = p.fields(elem + ".fields"); err != nil {
			return nil, err
		}

		if out[i].Index, err = p.d.Uint8(); err != nil {
			return nil, wrapErr(elem+".index", err)
		}

		if out[i].Docs, err = p.strings(elem + ".docs"); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func (p *parser) pallets() ([]*rawPallet, error) {
	n, err := p.length("pallets")
	if err != nil {
		return nil, err
	}

	out := make([]*rawPallet, n)

	for i := range out {
		pl := &rawPallet{}

		if pl.name, err = p.text(fmt.Sprintf("pallets[%d].name", i)); err != nil {
			return nil, err
		}

		path := fmt.Sprintf("pallets[%s]", pl.name)

		if err := p.palletStorage(path+".storage", pl); err != nil {
			return nil, err
		}

		if pl.calls, err = p.optionalTypeID(path + ".calls"); err != nil {
			return nil, err
		}

		if pl.event, err = p.optionalTypeID(path + ".event"); err != nil {
			return nil, err
		}

		if pl.constants, err = p.constants(path + ".constants"); err != nil {
			return nil, err
		}

		if pl.errorType, err = p.optionalTypeID(path + ".error"); err != nil {
			return nil, err
		}

		if pl.index, err = p.d.Uint8(); err != nil {
			return nil, wrapErr(path+".index", err)
		}

		if p.version >= V15 {
			if pl.docs, err = p.strings(path + ".docs"); err != nil {
				return nil, err
			}
		}

		out[i] = pl
	}

	return out, nil
}

func (p *parser) palletStorage(path string, pl *rawPallet) error {
	some, err := p.d.OptionFlag()
	if err != nil {
		return wrapErr(path, err)
	}

	if !some {
		return nil
	}

	if pl.prefix, err = p.text(path + ".prefix"); err != nil {
		return err
	}

	n, err := p.length(path + ".entries")
	if err != nil {
		return err
	}

	pl.storage = make([]*StorageEntry, n)

	for i := range pl.storage {
		elem := fmt.Sprintf("%s.entries[%d]", path, i)
		e := &StorageEntry{Module: pl.name, Prefix: pl.prefix}

		if e.Name, err = p.text(elem + ".name"); err != nil {
			return err
		}

		elem = fmt.Sprintf("%s.entries[%s]", path, e.Name)

		modifier, err := p.d.Uint8()
		if err != nil {
			return wrapErr(elem+".modifier", err)
		}

		if modifier > uint8(ModifierDefault) {
			return &MetadataError{Path: elem + ".modifier", Err: fmt.Errorf("%w: modifier %d", ErrInvalidTypeDef, modifier)}
		}

		e.Modifier = StorageModifier(modifier)

		if err := p.storageType(elem, e); err != nil {
			return err
		}

		if e.Default, err = p.d.Bytes(); err != nil {
			return wrapErr(elem+".default", err)
		}

		if e.Docs, err = p.strings(elem + ".docs"); err != nil {
			return err
		}

		pl.storage[i] = e
	}

	return nil
}

func (p *parser) storageType(path string, e *StorageEntry) error {
	tag, err := p.d.Uint8()
	if err != nil {
		return wrapErr(path+".type", err)
	}

	switch tag {
	case 0:
		e.Value, err = p.typeID(path + ".value")

		return err
	case 1:
		n, err := p.length(path + ".hashers")
		if err != nil {
			return err
		}

		e.IsMap = true
		e.Hashers = make([]Hasher, n)

		for i := range e.Hashers {
			h, err := p.d.Uint8()
			if err != nil {
				return wrapErr(fmt.Sprintf("%s.hashers[%d]", path, i), err)
			}

			if !Hasher(h).Valid() {
				return &MetadataError{Path: fmt.Sprintf("%s.hashers[%d]", path, i), Err: fmt.Errorf("%w: %d", ErrUnknownHasher, h)}
			}

			e.Hashers[i] = Hasher(h)
		}

		if e.Key, err = p.typeID(path + ".key"); err != nil {
			return err
		}

		e.Value, err = p.typeID(path + ".value")

		return err
	default:
		return &MetadataError{Path: path + ".type", Err: fmt.Errorf("%w: storage type tag %d", ErrInvalidTypeDef, tag)}
	}
}

func (p *parser) constants(path string) ([]*Constant, error) {
	n, err := p.length(path)
	if err != nil {
		return nil, err
	}

	out := make([]*Constant, n)
	for i := range out {
		c := &Constant{}

		if c.Name, err = p.text(fmt.Sprintf("%s[%d].name", path, i)); err != nil {
			return nil, err
		}

		elem := fmt.Sprintf("%s[%s]", path, c.Name)

		if c.Type, err = p.typeID(elem + ".type"); err != nil {
			return nil, err
		}

		if c.Value, err = p.d.Bytes(); err != nil {
			return nil, wrapErr(elem+".value", err)
		}

		if c.Docs, err = p.strings(elem + ".docs"); err != nil {
			return nil, err
		}

		out[i] = c
	}

	return out, nil
}

func (p *parser) extrinsic() (ExtrinsicMetadata, error) {
	var (
		ext ExtrinsicMetadata
		err error
	)

	if p.version == V14 {
		if ext.Type, err = p.typeID("extrinsic.type"); err != nil {
			return ext, err
		}

		if ext.Version, err = p.d.Uint8(); err != nil {
			return ext, wrapErr("extrinsic.version", err)
		}
	} else {
		if ext.Version, err = p.d.Uint8(); err != nil {
			return ext, wrapErr("extrinsic.version", err)
		}

		if ext.AddressType, err = p.typeID("extrinsic.address_type"); err != nil {
			return ext, err
		}

		if ext.CallType, err = p.typeID("extrinsic.call_type"); err != nil {
			return ext, err
		}

		if ext.SignatureType, err = p.typeID("extrinsic.signature_type"); err != nil {
			return ext, err
		}

		if ext.ExtraType, err = p.typeID("extrinsic.extra_type"); err != nil {
			return ext, err
		}
	}

	n, err := p.length("extrinsic.signed_extensions")
	if err != nil {
		return ext, err
	}

	ext.SignedExtensions = make([]SignedExtension, n)

	for i := range ext.SignedExtensions {
		path := fmt.Sprintf("extrinsic.signed_extensions[%d]", i)
		se := &ext.SignedExtensions[i]

		if se.Identifier, err = p.text(path + ".identifier"); err != nil {
			return ext, err
		}

		if se.Type, err = p.typeID(path + ".type"); err != nil {
			return ext, err
		}

		if se.AdditionalSigned, err = p.typeID(path + ".additional_signed"); err != nil {
			return ext, err
		}
	}

	return ext, nil
}

func (p *parser) apis() ([]RuntimeAPI, error) {
	n, err := p.length("apis")
	if err != nil {
		return nil, err
	}

	out := make([]RuntimeAPI, n)

	for i := range out {
		api := &out[i]

		if api.Name, err = p.text(fmt.Sprintf("apis[%d].name", i)); err != nil {
			return nil, err
		}

		path := fmt.Sprintf("apis[%s]", api.Name)

		m, err := p.length(path + ".methods")
		if err != nil {
			return nil, err
		}

		api.Methods = make([]RuntimeAPIMethod, m)

		for j := range api.Methods {
			method := &api.Methods[j]

			if method.Name, err = p.text(fmt.Sprintf("%s.methods[%d].name", path, j)); err != nil {
				return nil, err
			}

			mpath := fmt.Sprintf("%s.methods[%s]", path, method.Name)

			k, err := p.length(mpath + ".inputs")
			if err != nil {
				return nil, err
			}

			method.Inputs = make([]RuntimeAPIMethodInput, k)
			for x := range method.Inputs {
				if method.Inputs[x].Name, err = p.text(fmt.Sprintf("%s.inputs[%d].name", mpath, x)); err != nil {
					return nil, err
				}

				if method.Inputs[x].Type, err = p.typeID(fmt.Sprintf("%s.inputs[%d].type", mpath, x)); err != nil {
					return nil, err
				}
			}

			if method.Output, err = p.typeID(mpath + ".output"); err != nil {
				return nil, err
			}

			if method.Docs, err = p.strings(mpath + ".docs"); err != nil {
				return nil, err
			}
		}

		if api.Docs, err = p.strings(path + ".docs"); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func (p *parser) outerEnums() (*OuterEnums, error) {
	var (
		oe  OuterEnums
		err error
	)

	if oe.CallType, err = p.typeID("outer_enums.call"); err != nil {
		return nil, err
	}

	if oe.EventType, err = p.typeID("outer_enums.event"); err != nil {
		return nil, err
	}

	if oe.ErrorType, err = p.typeID("outer_enums.error"); err != nil {
		return nil, err
	}

	return &oe, nil
}

func (p *parser) custom() (map[string]CustomValue, error) {
	n, err := p.length("custom")
	if err != nil {
		return nil, err
	}

	out := make(map[string]CustomValue, n)

	for i := 0; i < n; i++ {
		name, err := p.text(fmt.Sprintf("custom[%d].name", i))
		if err != nil {
			return nil, err
		}

		var cv CustomValue
		if cv.Type, err = p.typeID(fmt.Sprintf("custom[%s].type", name)); err != nil {
			return nil, err
		}

		if cv.Value, err = p.d.Bytes(); err != nil {
			return nil, wrapErr(fmt.Sprintf("custom[%s].value", name), err)
		}

		out[name] = cv
	}

	return out, nil
}
