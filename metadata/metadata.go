package metadata

import (
	"fmt"
)

// Arg is one named, typed argument of a call, event or error
type Arg struct {
	Name     string
	Type     TypeID
	TypeName string
}

type CallDescriptor struct {
	Module      string
	ModuleIndex uint8
	Name        string
	Index       uint8
	Args        []Arg
	Docs        []string
}

type EventDescriptor struct {
	Module      string
	ModuleIndex uint8
	Name        string
	Index       uint8
	Args        []Arg
	Docs        []string
}

type ErrorDescriptor struct {
	Module      string
	ModuleIndex uint8
	Name        string
	Index       uint8
	Args        []Arg
	Docs        []string
}

type Constant struct {
	Name  string
	Type  TypeID
	Value []byte
	Docs  []string
}

// Module is a resolved pallet with its calls, events, errors, storage and constants in declaration order
type Module struct {
	Name  string
	Index uint8
	Docs  []string

	Calls     []*CallDescriptor
	Events    []*EventDescriptor
	Errors    []*ErrorDescriptor
	Storage   []*StorageEntry
	Constants []*Constant

	// StoragePrefix is the pallet prefix hashed into storage keys
	StoragePrefix string

	// outer variant types, nil when the pallet declares none
	CallType  *TypeID
	EventType *TypeID
	ErrorType *TypeID

	callsByName    map[string]*CallDescriptor
	eventsByName   map[string]*EventDescriptor
	eventsByIndex  map[uint8]*EventDescriptor
	errorsByIndex  map[uint8]*ErrorDescriptor
	errorsByName   map[string]*ErrorDescriptor
	storageByName  map[string]*StorageEntry
	constantByName map[string]*Constant
}

// SignedExtension is one entry of the transaction extension pipeline
type SignedExtension struct {
	Identifier string
	// Type is the "extra" carried inside the extrinsic
	Type TypeID
	// AdditionalSigned is signed over but never transmitted
	AdditionalSigned TypeID
}

type ExtrinsicMetadata struct {
	Version uint8
	// Type is the opaque extrinsic type (V14 only)
	Type TypeID

	// V15 only
	AddressType   TypeID
	CallType      TypeID
	SignatureType TypeID
	ExtraType     TypeID

	SignedExtensions []SignedExtension
}

type RuntimeAPIMethodInput struct {
	Name string
	Type TypeID
}

type RuntimeAPIMethod struct {
	Name   string
	Inputs []RuntimeAPIMethodInput
	Output TypeID
	Docs   []string
}

type RuntimeAPI struct {
	Name    string
	Methods []RuntimeAPIMethod
	Docs    []string
}

type OuterEnums struct {
	CallType  TypeID
	EventType TypeID
	ErrorType TypeID
}

type CustomValue struct {
	Type  TypeID
	Value []byte
}

// Registry is an immutable, resolved metadata snapshot. It is safe for concurrent reads
type Registry struct {
	Version uint8

	Extrinsic   ExtrinsicMetadata
	RuntimeType TypeID

	// V15 only
	APIs       []RuntimeAPI
	OuterEnums *OuterEnums
	Custom     map[string]CustomValue

	types   map[TypeID]*Type
	typeIDs []TypeID
	modules []*Module

	modulesByName  map[string]*Module
	modulesByIndex map[uint8]*Module
	typesByPath    map[string]*Type
}

// Type returns the registry entry for id
func (r *Registry) Type(id TypeID) (*Type, bool) {
	t, ok := r.types[id]

	return t, ok
}

// Types returns every type in ascending id order
func (r *Registry) Types() []*Type {
	out := make([]*Type, len(r.typeIDs))
	for i, id := range r.typeIDs {
		out[i] = r.types[id]
	}

	return out
}

// TypeByPath finds a type by its joined path, e.g. sp_core::crypto::AccountId32.
// Generic types sharing a path resolve to the first one declared
func (r *Registry) TypeByPath(path string) (*Type, bool) {
	t, ok := r.typesByPath[path]

	return t, ok
}

// Modules returns the pallets in declaration order
func (r *Registry) Modules() []*Module {
	return r.modules
}

func (r *Registry) ModuleByName(name string) (*Module, error) {
	m, ok := r.modulesByName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, name)
	}

	return m, nil
}

func (r *Registry) ModuleByIndex(idx uint8) (*Module, error) {
	m, ok := r.modulesByIndex[idx]
	if !ok {
		return nil, fmt.Errorf("%w: index %d", ErrUnknownModule, idx)
	}

	return m, nil
}

func (r *Registry) Call(module, name string) (*CallDescriptor, error) {
	m, err := r.ModuleByName(module)
	if err != nil {
		return nil, err
	}

	c, ok := m.callsByName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownCall, module, name)
	}

	return c, nil
}

func (r *Registry) Event(module, name string) (*EventDescriptor, error) {
	m, err := r.ModuleByName(module)
	if err != nil {
		return nil, err
	}

	e, ok := m.eventsByName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownEvent, module, name)
	}

	return e, nil
}

// EventByIndex resolves the (module index, event index) discriminant of an emitted event
func (r *Registry) EventByIndex(moduleIdx, eventIdx uint8) (*EventDescriptor, error) {
	m, err := r.ModuleByIndex(moduleIdx)
	if err != nil {
		return nil, err
	}

	e, ok := m.eventsByIndex[eventIdx]
	if !ok {
		return nil, fmt.Errorf("%w: %s event index %d", ErrUnknownEvent, m.Name, eventIdx)
	}

	return e, nil
}

func (r *Registry) Error(module, name string) (*ErrorDescriptor, error) {
	m, err := r.ModuleByName(module)
	if err != nil {
		return nil, err
	}

	e, ok := m.errorsByName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownError, module, name)
	}

	return e, nil
}

// ErrorByIndex resolves a module error, as carried by DispatchError::Module
func (r *Registry) ErrorByIndex(moduleIdx, errorIdx uint8) (*ErrorDescriptor, error) {
	m, err := r.ModuleByIndex(moduleIdx)
	if err != nil {
		return nil, err
	}

	e, ok := m.errorsByIndex[errorIdx]
	if !ok {
		return nil, fmt.Errorf("%w: %s error index %d", ErrUnknownError, m.Name, errorIdx)
	}

	return e, nil
}

func (r *Registry) StorageEntry(module, name string) (*StorageEntry, error) {
	m, err := r.ModuleByName(module)
	if err != nil {
		return nil, err
	}

	s, ok := m.storageByName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownStorage, module, name)
	}

	return s, nil
}

func (r *Registry) Constant(module, name string) (*Constant, error) {
	m, err := r.ModuleByName(module)
	if err != nil {
		return nil, err
	}

	c, ok := m.constantByName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownConstant, module, name)
	}

	return c, nil
}

// StorageKey hashes the pallet prefix, entry name and encoded keys into a raw storage key
func (r *Registry) StorageKey(module, entry string, keys ...[]byte) ([]byte, error) {
	e, err := r.StorageEntry(module, entry)
	if err != nil {
		return nil, err
	}

	return e.StorageKey(keys...)
}

// SignedExtensions returns the identifiers of the transaction extensions in signing order
func (r *Registry) SignedExtensions() []string {
	out := make([]string, len(r.Extrinsic.SignedExtensions))
	for i, ext := range r.Extrinsic.SignedExtensions {
		out[i] = ext.Identifier
	}

	return out
}
