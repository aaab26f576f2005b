package metadatatest

import (
	"github.com/0xPolygon/substrate-client/value"
)

// DispatchInfo is a Normal, fee paying DispatchInfo value of the standard runtime
func DispatchInfo() value.Value {
	return value.Composite(
		value.Named("weight", value.Composite(
			value.Named("ref_time", value.Uint(1_000_000)),
			value.Named("proof_size", value.Uint(0)),
		)),
		value.Named("class", value.Variant("Normal")),
		value.Named("pays_fee", value.Variant("Yes")),
	)
}

// ModuleDispatchError is DispatchError::Module for the given pallet and error index
func ModuleDispatchError(module, code uint8) value.Value {
	return value.UnnamedVariant("Module", value.Composite(
		value.Named("index", value.Uint(uint64(module))),
		value.Named("error", value.Bytes([]byte{code, 0, 0, 0})),
	))
}
