package value

import (
	"fmt"
	"math/big"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

var bigIntType = reflect.TypeOf(new(big.Int))

// DecodeInto copies the value into a Go struct, map or slice. Struct fields are
// matched by their `scale` tag or case-insensitively by name. Every field of the
// value must land somewhere
func (v Value) DecodeInto(out interface{}) error {
	md := &mapstructure.Metadata{}
	dc := &mapstructure.DecoderConfig{
		Result:     out,
		TagName:    "scale",
		Metadata:   md,
		DecodeHook: bigIntHook,
	}

	ms, err := mapstructure.NewDecoder(dc)
	if err != nil {
		return err
	}

	if err = ms.Decode(v.Native()); err != nil {
		return err
	}

	if len(md.Unused) != 0 {
		return fmt.Errorf("some keys not used: %v", md.Unused)
	}

	return nil
}

// bigIntHook converts *big.Int into the integer, string or big.Int field it is decoded to
func bigIntHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if from != bigIntType {
		return data, nil
	}

	n, _ := data.(*big.Int)
	if n == nil {
		return data, nil
	}

	switch to.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if n.Sign() < 0 || n.BitLen() > int(to.Size())*8 {
			return nil, fmt.Errorf("%s does not fit into %s", n, to)
		}

		return n.Uint64(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if !n.IsInt64() || n.BitLen() >= int(to.Size())*8 {
			return nil, fmt.Errorf("%s does not fit into %s", n, to)
		}

		return n.Int64(), nil
	case reflect.String:
		return n.String(), nil
	case reflect.Ptr:
		if to == bigIntType {
			return n, nil
		}
	case reflect.Struct:
		if to == bigIntType.Elem() {
			return *n, nil
		}
	case reflect.Interface:
		return n, nil
	}

	return data, nil
}
