package extrinsic

import (
	"fmt"

	"github.com/0xPolygon/substrate-client/metadata"
	"github.com/0xPolygon/substrate-client/scale"
	"github.com/0xPolygon/substrate-client/value"
)

// BuildCall encodes module index, call index and then each argument against its declared type
func BuildCall(reg *metadata.Registry, module, function string, args ...value.Value) ([]byte, error) {
	call, err := reg.Call(module, function)
	if err != nil {
		return nil, err
	}

	if len(args) != len(call.Args) {
		return nil, fmt.Errorf("%w: %s.%s takes %d, got %d", ErrArgumentCount, module, function, len(call.Args), len(args))
	}

	e := scale.AcquireEncoder()
	defer scale.ReleaseEncoder(e)

	e.PutUint8(call.ModuleIndex)
	e.PutUint8(call.Index)

	for i, arg := range call.Args {
		if err := value.EncodeTo(e, args[i], arg.Type, reg, argName(arg, i)); err != nil {
			return nil, err
		}
	}

	return e.CopyBytes(), nil
}

// BuildCallNamed is BuildCall with arguments given by name in any order
func BuildCallNamed(reg *metadata.Registry, module, function string, args map[string]value.Value) ([]byte, error) {
	call, err := reg.Call(module, function)
	if err != nil {
		return nil, err
	}

	if len(args) != len(call.Args) {
		return nil, fmt.Errorf("%w: %s.%s takes %d, got %d", ErrArgumentCount, module, function, len(call.Args), len(args))
	}

	ordered := make([]value.Value, len(call.Args))

	for i, arg := range call.Args {
		v, ok := args[arg.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s is missing %q", ErrArgumentCount, module, function, arg.Name)
		}

		ordered[i] = v
	}

	return BuildCall(reg, module, function, ordered...)
}

// CallFromJSON builds call arguments from a JSON object keyed by argument name
func CallFromJSON(reg *metadata.Registry, module, function string, args map[string][]byte) ([]byte, error) {
	call, err := reg.Call(module, function)
	if err != nil {
		return nil, err
	}

	named := make(map[string]value.Value, len(args))

	for _, arg := range call.Args {
		raw, ok := args[arg.Name]
		if !ok {
			continue
		}

		v, err := value.FromJSON(raw, arg.Type, reg)
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", arg.Name, err)
		}

		named[arg.Name] = v
	}

	if len(named) != len(args) {
		return nil, fmt.Errorf("%w: %s.%s got unknown arguments", ErrArgumentCount, module, function)
	}

	return BuildCallNamed(reg, module, function, named)
}

func argName(arg metadata.Arg, i int) string {
	if arg.Name != "" {
		return arg.Name
	}

	return fmt.Sprintf("[%d]", i)
}

// DecodedCall is a call resolved against the registry
type DecodedCall struct {
	Descriptor *metadata.CallDescriptor
	Args       []value.Field
}

// DecodeCall resolves call bytes back into the called function and its arguments
func DecodeCall(reg *metadata.Registry, call []byte) (*DecodedCall, error) {
	d := scale.NewDecoder(call)

	moduleIdx, err := d.Uint8()
	if err != nil {
		return nil, err
	}

	callIdx, err := d.Uint8()
	if err != nil {
		return nil, err
	}

	module, err := reg.ModuleByIndex(moduleIdx)
	if err != nil {
		return nil, err
	}

	var desc *metadata.CallDescriptor

	for _, c := range module.Calls {
		if c.Index == callIdx {
			desc = c

			break
		}
	}

	if desc == nil {
		return nil, fmt.Errorf("%w: %s call index %d", ErrUnknownCall, module.Name, callIdx)
	}

	out := &DecodedCall{Descriptor: desc, Args: make([]value.Field, len(desc.Args))}

	for i, arg := range desc.Args {
		v, err := value.DecodeWith(d, arg.Type, reg)
		if err != nil {
			return nil, fmt.Errorf("%s.%s %s: %w", module.Name, desc.Name, argName(arg, i), err)
		}

		out.Args[i] = value.Named(arg.Name, v)
	}

	if err := d.Done(); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *DecodedCall) String() string {
	return fmt.Sprintf("%s.%s%s", c.Descriptor.Module, c.Descriptor.Name, value.Composite(c.Args...).String())
}
