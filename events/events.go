// Package events decodes the System.Events storage vector into ordered, named records
package events

import (
	"fmt"

	"github.com/0xPolygon/substrate-client/metadata"
	"github.com/0xPolygon/substrate-client/scale"
	"github.com/0xPolygon/substrate-client/types"
	"github.com/0xPolygon/substrate-client/value"
)

var ErrUnknownEvent = metadata.ErrUnknownEvent

type PhaseKind uint8

const (
	ApplyExtrinsic PhaseKind = iota
	Finalization
	Initialization
)

func (k PhaseKind) String() string {
	switch k {
	case ApplyExtrinsic:
		return "ApplyExtrinsic"
	case Finalization:
		return "Finalization"
	case Initialization:
		return "Initialization"
	default:
		return fmt.Sprintf("Phase(%d)", uint8(k))
	}
}

// Phase is the block execution stage an event was emitted in
type Phase struct {
	Kind PhaseKind
	// ExtrinsicIndex is the position of the extrinsic in the block, for ApplyExtrinsic
	ExtrinsicIndex uint32
}

func (p Phase) String() string {
	if p.Kind == ApplyExtrinsic {
		return fmt.Sprintf("ApplyExtrinsic(%d)", p.ExtrinsicIndex)
	}

	return p.Kind.String()
}

// EventRecord is one decoded event with its phase and topics
type EventRecord struct {
	Phase      Phase
	Descriptor *metadata.EventDescriptor
	Fields     []value.Field
	Topics     []types.Hash
}

func (r *EventRecord) Module() string {
	return r.Descriptor.Module
}

func (r *EventRecord) Name() string {
	return r.Descriptor.Name
}

// Is reports whether the record is module.name
func (r *EventRecord) Is(module, name string) bool {
	return r.Descriptor.Module == module && r.Descriptor.Name == name
}

// Field returns a named event field
func (r *EventRecord) Field(name string) (value.Value, bool) {
	return r.Value().Field(name)
}

// Value returns the event fields as a composite
func (r *EventRecord) Value() value.Value {
	return value.Value{Kind: value.KindComposite, Fields: r.Fields}
}

// DecodeInto copies the event fields into a Go struct
func (r *EventRecord) DecodeInto(out interface{}) error {
	return r.Value().DecodeInto(out)
}

func (r *EventRecord) String() string {
	return fmt.Sprintf("%s.%s%s", r.Descriptor.Module, r.Descriptor.Name, r.Value().String())
}

// Records is an ordered event vector
type Records []*EventRecord

// DecodeEvents decodes a compact length prefixed vector of event records.
// Order is preserved and every byte must be consumed
func DecodeEvents(b []byte, reg *metadata.Registry) (Records, error) {
	d := scale.NewDecoder(b)

	// phase, module, event and topic count take at least four bytes
	n, err := d.Length(4)
	if err != nil {
		return nil, err
	}

	out := make(Records, 0, n)

	for i := 0; i < n; i++ {
		r, err := decodeRecord(d, reg)
		if err != nil {
			return nil, fmt.Errorf("event record %d: %w", i, err)
		}

		out = append(out, r)
	}

	if err := d.Done(); err != nil {
		return nil, err
	}

	return out, nil
}

func decodeRecord(d *scale.Decoder, reg *metadata.Registry) (*EventRecord, error) {
	r := &EventRecord{}

	phaseOff := d.Offset()

	phase, err := d.Uint8()
	if err != nil {
		return nil, err
	}

	switch PhaseKind(phase) {
	case ApplyExtrinsic:
		if r.Phase.ExtrinsicIndex, err = d.Uint32(); err != nil {
			return nil, err
		}
	case Finalization, Initialization:
	default:
		return nil, &scale.DecodeError{Offset: phaseOff, Expected: "phase", Err: fmt.Errorf("%w: phase %d", value.ErrUnknownVariant, phase)}
	}

	r.Phase.Kind = PhaseKind(phase)

	eventOff := d.Offset()

	moduleIdx, err := d.Uint8()
	if err != nil {
		return nil, err
	}

	eventIdx, err := d.Uint8()
	if err != nil {
		return nil, err
	}

	if r.Descriptor, err = reg.EventByIndex(moduleIdx, eventIdx); err != nil {
		return nil, &scale.DecodeError{Offset: eventOff, Expected: "event discriminant", Err: err}
	}

	r.Fields = make([]value.Field, len(r.Descriptor.Args))

	for i, arg := range r.Descriptor.Args {
		v, err := value.DecodeWith(d, arg.Type, reg)
		if err != nil {
			return nil, fmt.Errorf("%s.%s %s: %w", r.Descriptor.Module, r.Descriptor.Name, arg.Name, err)
		}

		r.Fields[i] = value.Named(arg.Name, v)
	}

	topics, err := d.Length(types.HashLength)
	if err != nil {
		return nil, err
	}

	r.Topics = make([]types.Hash, topics)

	for i := range r.Topics {
		b, err := d.Read(types.HashLength, "topic")
		if err != nil {
			return nil, err
		}

		r.Topics[i] = types.BytesToHash(b)
	}

	return r, nil
}

// Encode is the inverse of DecodeEvents
func Encode(records Records, reg *metadata.Registry) ([]byte, error) {
	e := scale.AcquireEncoder()
	defer scale.ReleaseEncoder(e)

	e.PutCompact(uint64(len(records)))

	for i, r := range records {
		e.PutUint8(uint8(r.Phase.Kind))

		if r.Phase.Kind == ApplyExtrinsic {
			e.PutUint32(r.Phase.ExtrinsicIndex)
		}

		e.PutUint8(r.Descriptor.ModuleIndex)
		e.PutUint8(r.Descriptor.Index)

		if len(r.Fields) != len(r.Descriptor.Args) {
			return nil, fmt.Errorf("event record %d: %s.%s takes %d fields, got %d",
				i, r.Descriptor.Module, r.Descriptor.Name, len(r.Descriptor.Args), len(r.Fields))
		}

		for j, arg := range r.Descriptor.Args {
			if err := value.EncodeTo(e, r.Fields[j].Value, arg.Type, reg, arg.Name); err != nil {
				return nil, fmt.Errorf("event record %d: %w", i, err)
			}
		}

		e.PutCompact(uint64(len(r.Topics)))

		for _, topic := range r.Topics {
			e.Write(topic.Bytes())
		}
	}

	return e.CopyBytes(), nil
}

// NewRecord builds a record for module.name, mostly useful to tests and tooling
func NewRecord(reg *metadata.Registry, phase Phase, module, name string, fields ...value.Value) (*EventRecord, error) {
	desc, err := reg.Event(module, name)
	if err != nil {
		return nil, err
	}

	if len(fields) != len(desc.Args) {
		return nil, fmt.Errorf("%s.%s takes %d fields, got %d", module, name, len(desc.Args), len(fields))
	}

	r := &EventRecord{Phase: phase, Descriptor: desc, Fields: make([]value.Field, len(fields))}

	for i, arg := range desc.Args {
		r.Fields[i] = value.Named(arg.Name, fields[i])
	}

	return r, nil
}

// StorageKey is the key of the System.Events vector
func StorageKey(reg *metadata.Registry) ([]byte, error) {
	return reg.StorageKey("System", "Events")
}

// ForExtrinsic keeps the records emitted while applying the extrinsic at position idx
func (rs Records) ForExtrinsic(idx uint32) Records {
	var out Records

	for _, r := range rs {
		if r.Phase.Kind == ApplyExtrinsic && r.Phase.ExtrinsicIndex == idx {
			out = append(out, r)
		}
	}

	return out
}

// Find keeps the records of module.name
func (rs Records) Find(module, name string) Records {
	var out Records

	for _, r := range rs {
		if r.Is(module, name) {
			out = append(out, r)
		}
	}

	return out
}
