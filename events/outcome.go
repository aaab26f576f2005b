package events

import (
	"errors"
	"fmt"
	"strings"

	"github.com/0xPolygon/substrate-client/metadata"
	"github.com/0xPolygon/substrate-client/value"
)

const (
	systemModule     = "System"
	extrinsicSuccess = "ExtrinsicSuccess"
	extrinsicFailed  = "ExtrinsicFailed"
)

// ErrNoOutcome means neither ExtrinsicSuccess nor ExtrinsicFailed was found for the extrinsic
var ErrNoOutcome = errors.New("no dispatch outcome event for extrinsic")

// DispatchError is the reason a dispatched call failed, as reported by System.ExtrinsicFailed
type DispatchError struct {
	// Kind is the DispatchError variant, e.g. Module, BadOrigin or Token
	Kind string
	// Module and Name are set for Module errors resolved through the registry
	Module string
	Name   string
	Docs   []string
	// Detail names the inner variant of Token, Arithmetic and similar errors
	Detail string

	Raw value.Value
}

func (e *DispatchError) Error() string {
	switch {
	case e.Module != "":
		if len(e.Docs) > 0 {
			return fmt.Sprintf("dispatch error: %s.%s: %s", e.Module, e.Name, strings.Join(e.Docs, " "))
		}

		return fmt.Sprintf("dispatch error: %s.%s", e.Module, e.Name)
	case e.Detail != "":
		return fmt.Sprintf("dispatch error: %s(%s)", e.Kind, e.Detail)
	default:
		return "dispatch error: " + e.Kind
	}
}

// Outcome separates a successful dispatch from one that was included but failed
type Outcome struct {
	Success bool
	// Error is set when Success is false
	Error *DispatchError
	// Event is the ExtrinsicSuccess or ExtrinsicFailed record
	Event *EventRecord
}

// Outcome finds the dispatch result of the extrinsic at position idx
func (rs Records) Outcome(idx uint32, reg *metadata.Registry) (*Outcome, error) {
	for _, r := range rs.ForExtrinsic(idx) {
		switch {
		case r.Is(systemModule, extrinsicSuccess):
			return &Outcome{Success: true, Event: r}, nil
		case r.Is(systemModule, extrinsicFailed):
			raw, ok := r.Field("dispatch_error")
			if !ok && len(r.Fields) > 0 {
				raw = r.Fields[0].Value
			}

			dispatchErr, err := ResolveDispatchError(raw, reg)
			if err != nil {
				return nil, err
			}

			return &Outcome{Error: dispatchErr, Event: r}, nil
		}
	}

	return nil, fmt.Errorf("%w %d", ErrNoOutcome, idx)
}

// ResolveDispatchError turns a decoded DispatchError value into names, looking
// module errors up in the registry
func ResolveDispatchError(raw value.Value, reg *metadata.Registry) (*DispatchError, error) {
	if raw.Kind != value.KindVariant {
		return nil, fmt.Errorf("dispatch error is a %s, not a variant", raw.Kind)
	}

	out := &DispatchError{Kind: raw.Variant, Raw: raw}

	if len(raw.Fields) == 0 {
		return out, nil
	}

	inner := raw.Fields[0].Value.Unwrap()

	switch {
	case raw.Variant == "Module":
		moduleIdx, errIdx, err := moduleErrorIndices(inner)
		if err != nil {
			return nil, err
		}

		if desc, lookupErr := reg.ErrorByIndex(moduleIdx, errIdx); lookupErr == nil {
			out.Module, out.Name, out.Docs = desc.Module, desc.Name, desc.Docs
		} else {
			// keep the raw indices when the runtime does not describe the error
			out.Detail = fmt.Sprintf("module %d error %d", moduleIdx, errIdx)
		}
	case inner.Kind == value.KindVariant:
		out.Detail = inner.Variant
	default:
		out.Detail = inner.String()
	}

	return out, nil
}

// moduleErrorIndices reads {index: u8, error: [u8; 4]} and the older {index: u8, error: u8}
func moduleErrorIndices(v value.Value) (uint8, uint8, error) {
	index, okIndex := v.Field("index")
	errField, okErr := v.Field("error")

	if !okIndex || !okErr {
		return 0, 0, fmt.Errorf("module error has no index/error fields: %s", v)
	}

	moduleIdx, ok := index.Uint64()
	if !ok || moduleIdx > 0xff {
		return 0, 0, fmt.Errorf("module error index out of range: %s", index)
	}

	switch errField.Kind {
	case value.KindBytes:
		if len(errField.Bytes) == 0 {
			return 0, 0, fmt.Errorf("empty module error code")
		}

		return uint8(moduleIdx), errField.Bytes[0], nil
	default:
		errIdx, ok := errField.Uint64()
		if !ok || errIdx > 0xff {
			return 0, 0, fmt.Errorf("module error code out of range: %s", errField)
		}

		return uint8(moduleIdx), uint8(errIdx), nil
	}
}
