package metadata

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/hashicorp/go-multierror"
)

// build indexes the parsed metadata and checks every type reference
func build(meta *rawMetadata) (*Registry, error) {
	reg := &Registry{
		Version:        meta.version,
		Extrinsic:      meta.extrinsic,
		RuntimeType:    meta.runtimeType,
		APIs:           meta.apis,
		OuterEnums:     meta.outerEnums,
		Custom:         meta.custom,
		types:          make(map[TypeID]*Type, len(meta.types)),
		typeIDs:        make([]TypeID, 0, len(meta.types)),
		modulesByName:  make(map[string]*Module, len(meta.pallets)),
		modulesByIndex: make(map[uint8]*Module, len(meta.pallets)),
		typesByPath:    make(map[string]*Type),
	}

	for i, t := range meta.types {
		if _, ok := reg.types[t.ID]; ok {
			return nil, &MetadataError{Path: fmt.Sprintf("types[%d].id", i), Err: fmt.Errorf("%w: %d", ErrDuplicateType, t.ID)}
		}

		reg.types[t.ID] = t
		reg.typeIDs = append(reg.typeIDs, t.ID)

		if len(t.Path) > 0 {
			if _, ok := reg.typesByPath[t.PathString()]; !ok {
				reg.typesByPath[t.PathString()] = t
			}
		}
	}

	sort.Slice(reg.typeIDs, func(i, j int) bool { return reg.typeIDs[i] < reg.typeIDs[j] })

	v := &validator{reg: reg}
	v.checkTypes()
	v.checkExtrinsic()
	v.checkV15(meta)

	for _, pl := range meta.pallets {
		m, err := v.module(pl)
		if err != nil {
			v.fail(err)

			continue
		}

		if other, ok := reg.modulesByIndex[m.Index]; ok {
			v.fail(&MetadataError{
				Path: fmt.Sprintf("pallets[%s].index", m.Name),
				Err:  fmt.Errorf("%w: %d already used by %s", ErrDuplicateIndex, m.Index, other.Name),
			})

			continue
		}

		reg.modules = append(reg.modules, m)
		reg.modulesByName[m.Name] = m
		reg.modulesByIndex[m.Index] = m
	}

	if err := v.errs.ErrorOrNil(); err != nil {
		return nil, &MetadataError{Err: err}
	}

	return reg, nil
}

type validator struct {
	reg  *Registry
	errs *multierror.Error
}

func (v *validator) fail(err error) {
	v.errs = multierror.Append(v.errs, err)
}

// ref records a dangling reference error unless id resolves
func (v *validator) ref(path string, id TypeID) {
	if _, ok := v.reg.types[id]; !ok {
		v.fail(&MetadataError{Path: path, Err: fmt.Errorf("%w: %d", ErrDanglingType, id)})
	}
}

func fieldLabel(f Field, i int) string {
	if f.Name != "" {
		return f.Name
	}

	return strconv.Itoa(i)
}

func (v *validator) fields(path string, fields []Field) {
	for i, f := range fields {
		v.ref(fmt.Sprintf("%s.fields[%s]", path, fieldLabel(f, i)), f.Type)
	}
}

func (v *validator) checkTypes() {
	for _, id := range v.reg.typeIDs {
		t := v.reg.types[id]
		path := fmt.Sprintf("types[%d]", id)

		for _, p := range t.Params {
			if p.Type != nil {
				v.ref(fmt.Sprintf("%s.params[%s]", path, p.Name), *p.Type)
			}
		}

		switch t.Def.Kind {
		case KindComposite:
			v.fields(path, t.Def.Fields)
		case KindVariant:
			seen := make(map[uint8]string, len(t.Def.Variants))

			for _, variant := range t.Def.Variants {
				if other, ok := seen[variant.Index]; ok {
					v.fail(&MetadataError{
						Path: fmt.Sprintf("%s.variants[%s]", path, variant.Name),
						Err:  fmt.Errorf("%w: %d already used by %s", ErrDuplicateIndex, variant.Index, other),
					})
				}

				seen[variant.Index] = variant.Name

				v.fields(fmt.Sprintf("%s.variants[%s]", path, variant.Name), variant.Fields)
			}
		case KindSequence, KindArray, KindCompact:
			v.ref(path+".elem", t.Def.Elem)
		case KindTuple:
			for i, member := range t.Def.Tuple {
				v.ref(fmt.Sprintf("%s.tuple[%d]", path, i), member)
			}
		case KindBitSequence:
			v.ref(path+".bit_store", t.Def.BitStore)
			v.ref(path+".bit_order", t.Def.BitOrder)
		}
	}
}

func (v *validator) checkExtrinsic() {
	ext := v.reg.Extrinsic

	if v.reg.Version == V14 {
		v.ref("extrinsic.type", ext.Type)
	} else {
		v.ref("extrinsic.address_type", ext.AddressType)
		v.ref("extrinsic.call_type", ext.CallType)
		v.ref("extrinsic.signature_type", ext.SignatureType)
		v.ref("extrinsic.extra_type", ext.ExtraType)
	}

	for _, se := range ext.SignedExtensions {
		path := fmt.Sprintf("extrinsic.signed_extensions[%s]", se.Identifier)
		v.ref(path+".type", se.Type)
		v.ref(path+".additional_signed", se.AdditionalSigned)
	}

	v.ref("runtime_type", v.reg.RuntimeType)
}

func (v *validator) checkV15(meta *rawMetadata) {
	for _, api := range meta.apis {
		for _, method := range api.Methods {
			path := fmt.Sprintf("apis[%s].methods[%s]", api.Name, method.Name)

			for _, in := range method.Inputs {
				v.ref(fmt.Sprintf("%s.inputs[%s]", path, in.Name), in.Type)
			}

			v.ref(path+".output", method.Output)
		}
	}

	if oe := meta.outerEnums; oe != nil {
		v.ref("outer_enums.call", oe.CallType)
		v.ref("outer_enums.event", oe.EventType)
		v.ref("outer_enums.error", oe.ErrorType)
	}

	for name, cv := range meta.custom {
		v.ref(fmt.Sprintf("custom[%s]", name), cv.Type)
	}
}

// variantOf returns the variants of a pallet's calls, event or error type
func (v *validator) variantOf(path string, id *TypeID) ([]Variant, error) {
	if id == nil {
		return nil, nil
	}

	t, ok := v.reg.types[*id]
	if !ok {
		return nil, &MetadataError{Path: path, Err: fmt.Errorf("%w: %d", ErrDanglingType, *id)}
	}

	if t.Def.Kind != KindVariant {
		return nil, &MetadataError{Path: path, Err: fmt.Errorf("%w: #%d is a %s", ErrNotVariant, *id, t.Def.Kind)}
	}

	return t.Def.Variants, nil
}

func argsOf(fields []Field) []Arg {
	args := make([]Arg, len(fields))
	for i, f := range fields {
		args[i] = Arg{Name: f.Name, Type: f.Type, TypeName: f.TypeName}
	}

	return args
}

func (v *validator) module(pl *rawPallet) (*Module, error) {
	path := fmt.Sprintf("pallets[%s]", pl.name)

	m := &Module{
		Name:           pl.name,
		Index:          pl.index,
		Docs:           pl.docs,
		StoragePrefix:  pl.prefix,
		Storage:        pl.storage,
		Constants:      pl.constants,
		CallType:       pl.calls,
		EventType:      pl.event,
		ErrorType:      pl.errorType,
		callsByName:    make(map[string]*CallDescriptor),
		eventsByName:   make(map[string]*EventDescriptor),
		eventsByIndex:  make(map[uint8]*EventDescriptor),
		errorsByName:   make(map[string]*ErrorDescriptor),
		errorsByIndex:  make(map[uint8]*ErrorDescriptor),
		storageByName:  make(map[string]*StorageEntry, len(pl.storage)),
		constantByName: make(map[string]*Constant, len(pl.constants)),
	}

	calls, err := v.variantOf(path+".calls", pl.calls)
	if err != nil {
		return nil, err
	}

	for _, variant := range calls {
		c := &CallDescriptor{
			Module:      m.Name,
			ModuleIndex: m.Index,
			Name:        variant.Name,
			Index:       variant.Index,
			Args:        argsOf(variant.Fields),
			Docs:        variant.Docs,
		}
		m.Calls = append(m.Calls, c)
		m.callsByName[c.Name] = c
	}

	events, err := v.variantOf(path+".event", pl.event)
	if err != nil {
		return nil, err
	}

	for _, variant := range events {
		e := &EventDescriptor{
			Module:      m.Name,
			ModuleIndex: m.Index,
			Name:        variant.Name,
			Index:       variant.Index,
			Args:        argsOf(variant.Fields),
			Docs:        variant.Docs,
		}
		m.Events = append(m.Events, e)
		m.eventsByName[e.Name] = e
		m.eventsByIndex[e.Index] = e
	}

	errs, err := v.variantOf(path+".error", pl.errorType)
	if err != nil {
		return nil, err
	}

	for _, variant := range errs {
		e := &ErrorDescriptor{
			Module:      m.Name,
			ModuleIndex: m.Index,
			Name:        variant.Name,
			Index:       variant.Index,
			Args:        argsOf(variant.Fields),
			Docs:        variant.Docs,
		}
		m.Errors = append(m.Errors, e)
		m.errorsByName[e.Name] = e
		m.errorsByIndex[e.Index] = e
	}

	for _, s := range pl.storage {
		spath := fmt.Sprintf("%s.storage[%s]", path, s.Name)
		if s.IsMap {
			v.ref(spath+".key", s.Key)
		}

		v.ref(spath+".value", s.Value)
		m.storageByName[s.Name] = s
	}

	for _, c := range pl.constants {
		v.ref(fmt.Sprintf("%s.constants[%s]", path, c.Name), c.Type)
		m.constantByName[c.Name] = c
	}

	return m, nil
}
