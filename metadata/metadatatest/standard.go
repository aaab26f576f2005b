package metadatatest

import (
	"github.com/0xPolygon/substrate-client/metadata"
	"github.com/0xPolygon/substrate-client/scale"
)

// Pallet indices of the standard runtime
const (
	SystemIndex             uint8 = 0
	BalancesIndex           uint8 = 5
	TransactionPaymentIndex uint8 = 6
)

// Types are the ids assigned by Standard
type Types struct {
	Bool, U8, U16, U32, U64, U128, Str, Unit metadata.TypeID

	Bytes, Bytes32, Bytes64, Bytes65, Bytes4 metadata.TypeID

	AccountID, H256, VecH256 metadata.TypeID

	CompactU32, CompactU64, CompactU128 metadata.TypeID

	MultiAddress, MultiSignature, Era metadata.TypeID

	Weight, DispatchClass, Pays, DispatchInfo metadata.TypeID

	ModuleError, TokenError, ArithmeticError, DispatchError metadata.TypeID

	SystemCall, BalancesCall, RuntimeCall metadata.TypeID

	SystemEvent, BalancesEvent, TransactionPaymentEvent, RuntimeEvent metadata.TypeID

	SystemError, BalancesError, RuntimeError metadata.TypeID

	Phase, EventRecord, EventRecords metadata.TypeID

	AccountData, AccountInfo metadata.TypeID

	OptionBytes, Extra, UncheckedExtrinsic, Runtime metadata.TypeID
}

// Standard builds a trimmed node runtime with System, Balances and TransactionPayment pallets
func Standard() (*Builder, Types) {
	b := NewBuilder()

	var t Types

	t.Bool = b.Primitive(metadata.Bool)
	t.U8 = b.Primitive(metadata.U8)
	t.U16 = b.Primitive(metadata.U16)
	t.U32 = b.Primitive(metadata.U32)
	t.U64 = b.Primitive(metadata.U64)
	t.U128 = b.Primitive(metadata.U128)
	t.Str = b.Primitive(metadata.Str)
	t.Unit = b.Tuple()

	t.Bytes = b.Sequence(t.U8)
	t.Bytes4 = b.Array(4, t.U8)
	t.Bytes32 = b.Array(32, t.U8)
	t.Bytes64 = b.Array(64, t.U8)
	t.Bytes65 = b.Array(65, t.U8)

	t.AccountID = b.Composite([]string{"sp_core", "crypto", "AccountId32"}, Field{Type: t.Bytes32, TypeName: "[u8; 32]"})
	t.H256 = b.Composite([]string{"primitive_types", "H256"}, Field{Type: t.Bytes32, TypeName: "[u8; 32]"})
	t.VecH256 = b.Sequence(t.H256)

	t.CompactU32 = b.Compact(t.U32)
	t.CompactU64 = b.Compact(t.U64)
	t.CompactU128 = b.Compact(t.U128)

	t.MultiAddress = b.Variant([]string{"sp_runtime", "multiaddress", "MultiAddress"},
		Variant{Name: "Id", Index: 0, Fields: []Field{{Type: t.AccountID, TypeName: "AccountId"}}},
		Variant{Name: "Index", Index: 1, Fields: []Field{{Type: t.CompactU32, TypeName: "AccountIndex"}}},
		Variant{Name: "Raw", Index: 2, Fields: []Field{{Type: t.Bytes, TypeName: "Vec<u8>"}}},
		Variant{Name: "Address32", Index: 3, Fields: []Field{{Type: t.Bytes32, TypeName: "[u8; 32]"}}},
	)
	b.WithParam(t.MultiAddress, "AccountId", t.AccountID)

	t.MultiSignature = b.Variant([]string{"sp_runtime", "MultiSignature"},
		Variant{Name: "Ed25519", Index: 0, Fields: []Field{{Type: t.Bytes64}}},
		Variant{Name: "Sr25519", Index: 1, Fields: []Field{{Type: t.Bytes64}}},
		Variant{Name: "Ecdsa", Index: 2, Fields: []Field{{Type: t.Bytes65}}},
	)

	t.Era = b.Variant([]string{"sp_runtime", "generic", "era", "Era"},
		Variant{Name: "Immortal", Index: 0},
		Variant{Name: "Mortal1", Index: 1, Fields: []Field{{Type: t.U8}}},
	)

	t.Weight = b.Composite([]string{"sp_weights", "weight_v2", "Weight"},
		Field{Name: "ref_time", Type: t.CompactU64, TypeName: "u64"},
		Field{Name: "proof_size", Type: t.CompactU64, TypeName: "u64"},
	)
	t.DispatchClass = b.Variant([]string{"frame_support", "dispatch", "DispatchClass"},
		Variant{Name: "Normal", Index: 0},
		Variant{Name: "Operational", Index: 1},
		Variant{Name: "Mandatory", Index: 2},
	)
	t.Pays = b.Variant([]string{"frame_support", "dispatch", "Pays"},
		Variant{Name: "Yes", Index: 0},
		Variant{Name: "No", Index: 1},
	)
	t.DispatchInfo = b.Composite([]string{"frame_support", "dispatch", "DispatchInfo"},
		Field{Name: "weight", Type: t.Weight, TypeName: "Weight"},
		Field{Name: "class", Type: t.DispatchClass, TypeName: "DispatchClass"},
		Field{Name: "pays_fee", Type: t.Pays, TypeName: "Pays"},
	)

	t.ModuleError = b.Composite([]string{"sp_runtime", "ModuleError"},
		Field{Name: "index", Type: t.U8, TypeName: "u8"},
		Field{Name: "error", Type: t.Bytes4, TypeName: "[u8; MAX_MODULE_ERROR_ENCODED_SIZE]"},
	)
	t.TokenError = b.Variant([]string{"sp_runtime", "TokenError"},
		Variant{Name: "FundsUnavailable", Index: 0},
		Variant{Name: "OnlyProvider", Index: 1},
		Variant{Name: "BelowMinimum", Index: 2},
		Variant{Name: "CannotCreate", Index: 3},
	)
	t.ArithmeticError = b.Variant([]string{"sp_arithmetic", "ArithmeticError"},
		Variant{Name: "Underflow", Index: 0},
		Variant{Name: "Overflow", Index: 1},
		Variant{Name: "DivisionByZero", Index: 2},
	)
	t.DispatchError = b.Variant([]string{"sp_runtime", "DispatchError"},
		Variant{Name: "Other", Index: 0},
		Variant{Name: "CannotLookup", Index: 1},
		Variant{Name: "BadOrigin", Index: 2},
		Variant{Name: "Module", Index: 3, Fields: []Field{{Type: t.ModuleError, TypeName: "ModuleError"}}},
		Variant{Name: "ConsumerRemaining", Index: 4},
		Variant{Name: "NoProviders", Index: 5},
		Variant{Name: "TooManyConsumers", Index: 6},
		Variant{Name: "Token", Index: 7, Fields: []Field{{Type: t.TokenError, TypeName: "TokenError"}}},
		Variant{Name: "Arithmetic", Index: 8, Fields: []Field{{Type: t.ArithmeticError, TypeName: "ArithmeticError"}}},
	)

	t.SystemCall = b.Variant([]string{"frame_system", "pallet", "Call"},
		Variant{Name: "remark", Index: 0, Fields: []Field{{Name: "remark", Type: t.Bytes, TypeName: "Vec<u8>"}}},
		Variant{Name: "remark_with_event", Index: 7, Fields: []Field{{Name: "remark", Type: t.Bytes, TypeName: "Vec<u8>"}}},
	)
	t.BalancesCall = b.Variant([]string{"pallet_balances", "pallet", "Call"},
		Variant{Name: "transfer", Index: 0, Fields: []Field{
			{Name: "dest", Type: t.AccountID, TypeName: "AccountIdLookupOf<T>"},
			{Name: "value", Type: t.CompactU128, TypeName: "T::Balance"},
		}},
		Variant{Name: "transfer_keep_alive", Index: 3, Fields: []Field{
			{Name: "dest", Type: t.MultiAddress, TypeName: "AccountIdLookupOf<T>"},
			{Name: "value", Type: t.CompactU128, TypeName: "T::Balance"},
		}},
		Variant{Name: "transfer_all", Index: 4, Fields: []Field{
			{Name: "dest", Type: t.MultiAddress, TypeName: "AccountIdLookupOf<T>"},
			{Name: "keep_alive", Type: t.Bool, TypeName: "bool"},
		}},
	)
	t.RuntimeCall = b.Variant([]string{"node_runtime", "RuntimeCall"},
		Variant{Name: "System", Index: SystemIndex, Fields: []Field{{Type: t.SystemCall}}},
		Variant{Name: "Balances", Index: BalancesIndex, Fields: []Field{{Type: t.BalancesCall}}},
	)

	t.SystemEvent = b.Variant([]string{"frame_system", "pallet", "Event"},
		Variant{Name: "ExtrinsicSuccess", Index: 0, Fields: []Field{
			{Name: "dispatch_info", Type: t.DispatchInfo, TypeName: "DispatchInfo"},
		}},
		Variant{Name: "ExtrinsicFailed", Index: 1, Fields: []Field{
			{Name: "dispatch_error", Type: t.DispatchError, TypeName: "DispatchError"},
			{Name: "dispatch_info", Type: t.DispatchInfo, TypeName: "DispatchInfo"},
		}},
		Variant{Name: "CodeUpdated", Index: 2},
		Variant{Name: "NewAccount", Index: 3, Fields: []Field{{Name: "account", Type: t.AccountID, TypeName: "T::AccountId"}}},
		Variant{Name: "Remarked", Index: 7, Fields: []Field{
			{Name: "sender", Type: t.AccountID, TypeName: "T::AccountId"},
			{Name: "hash", Type: t.H256, TypeName: "T::Hash"},
		}},
	)
	t.BalancesEvent = b.Variant([]string{"pallet_balances", "pallet", "Event"},
		Variant{Name: "Endowed", Index: 0, Fields: []Field{
			{Name: "account", Type: t.AccountID, TypeName: "T::AccountId"},
			{Name: "free_balance", Type: t.U128, TypeName: "T::Balance"},
		}},
		Variant{Name: "Transfer", Index: 2, Fields: []Field{
			{Name: "from", Type: t.AccountID, TypeName: "T::AccountId"},
			{Name: "to", Type: t.AccountID, TypeName: "T::AccountId"},
			{Name: "amount", Type: t.U128, TypeName: "T::Balance"},
		}},
		Variant{Name: "Deposit", Index: 7, Fields: []Field{
			{Name: "who", Type: t.AccountID, TypeName: "T::AccountId"},
			{Name: "amount", Type: t.U128, TypeName: "T::Balance"},
		}},
		Variant{Name: "Withdraw", Index: 8, Fields: []Field{
			{Name: "who", Type: t.AccountID, TypeName: "T::AccountId"},
			{Name: "amount", Type: t.U128, TypeName: "T::Balance"},
		}},
	)
	t.TransactionPaymentEvent = b.Variant([]string{"pallet_transaction_payment", "pallet", "Event"},
		Variant{Name: "TransactionFeePaid", Index: 0, Fields: []Field{
			{Name: "who", Type: t.AccountID, TypeName: "T::AccountId"},
			{Name: "actual_fee", Type: t.U128, TypeName: "BalanceOf<T>"},
			{Name: "tip", Type: t.U128, TypeName: "BalanceOf<T>"},
		}},
	)
	t.RuntimeEvent = b.Variant([]string{"node_runtime", "RuntimeEvent"},
		Variant{Name: "System", Index: SystemIndex, Fields: []Field{{Type: t.SystemEvent}}},
		Variant{Name: "Balances", Index: BalancesIndex, Fields: []Field{{Type: t.BalancesEvent}}},
		Variant{Name: "TransactionPayment", Index: TransactionPaymentIndex, Fields: []Field{{Type: t.TransactionPaymentEvent}}},
	)

	t.SystemError = b.Variant([]string{"frame_system", "pallet", "Error"},
		Variant{Name: "InvalidSpecName", Index: 0},
		Variant{Name: "SpecVersionNeedsToIncrease", Index: 1},
		Variant{Name: "FailedToExtractRuntimeVersion", Index: 2},
	)
	t.BalancesError = b.Variant([]string{"pallet_balances", "pallet", "Error"},
		Variant{Name: "VestingBalance", Index: 0},
		Variant{Name: "LiquidityRestrictions", Index: 1},
		Variant{Name: "InsufficientBalance", Index: 2},
		Variant{Name: "ExistentialDeposit", Index: 3},
	)
	t.RuntimeError = b.Variant([]string{"node_runtime", "RuntimeError"},
		Variant{Name: "System", Index: SystemIndex, Fields: []Field{{Type: t.SystemError}}},
		Variant{Name: "Balances", Index: BalancesIndex, Fields: []Field{{Type: t.BalancesError}}},
	)

	t.Phase = b.Variant([]string{"frame_system", "Phase"},
		Variant{Name: "ApplyExtrinsic", Index: 0, Fields: []Field{{Type: t.U32, TypeName: "u32"}}},
		Variant{Name: "Finalization", Index: 1},
		Variant{Name: "Initialization", Index: 2},
	)
	t.EventRecord = b.Composite([]string{"frame_system", "EventRecord"},
		Field{Name: "phase", Type: t.Phase, TypeName: "Phase"},
		Field{Name: "event", Type: t.RuntimeEvent, TypeName: "E"},
		Field{Name: "topics", Type: t.VecH256, TypeName: "Vec<T>"},
	)
	t.EventRecords = b.Sequence(t.EventRecord)

	t.AccountData = b.Composite([]string{"pallet_balances", "types", "AccountData"},
		Field{Name: "free", Type: t.U128, TypeName: "Balance"},
		Field{Name: "reserved", Type: t.U128, TypeName: "Balance"},
		Field{Name: "frozen", Type: t.U128, TypeName: "Balance"},
		Field{Name: "flags", Type: t.U128, TypeName: "ExtraFlags"},
	)
	t.AccountInfo = b.Composite([]string{"frame_system", "AccountInfo"},
		Field{Name: "nonce", Type: t.U32, TypeName: "Nonce"},
		Field{Name: "consumers", Type: t.U32, TypeName: "RefCount"},
		Field{Name: "providers", Type: t.U32, TypeName: "RefCount"},
		Field{Name: "sufficients", Type: t.U32, TypeName: "RefCount"},
		Field{Name: "data", Type: t.AccountData, TypeName: "AccountData"},
	)

	t.OptionBytes = b.Variant([]string{"Option"},
		Variant{Name: "None", Index: 0},
		Variant{Name: "Some", Index: 1, Fields: []Field{{Type: t.Bytes}}},
	)
	b.WithParam(t.OptionBytes, "T", t.Bytes)

	t.Extra = b.Tuple(t.Unit, t.Unit, t.Unit, t.Unit, t.Era, t.CompactU32, t.Unit, t.CompactU128)
	t.UncheckedExtrinsic = b.Composite([]string{"sp_runtime", "generic", "unchecked_extrinsic", "UncheckedExtrinsic"},
		Field{Type: t.Bytes})
	b.WithParam(t.UncheckedExtrinsic, "Address", t.MultiAddress)
	b.WithParam(t.UncheckedExtrinsic, "Call", t.RuntimeCall)
	b.WithParam(t.UncheckedExtrinsic, "Signature", t.MultiSignature)
	b.WithParam(t.UncheckedExtrinsic, "Extra", t.Extra)

	t.Runtime = b.Composite([]string{"node_runtime", "Runtime"})

	b.Pallet(Pallet{
		Name:  "System",
		Index: SystemIndex,
		Storage: []StorageEntry{
			{
				Name:     "Account",
				Modifier: metadata.ModifierDefault,
				Hashers:  []metadata.Hasher{metadata.Blake2_128Concat},
				Key:      t.AccountID,
				Value:    t.AccountInfo,
				Default:  make([]byte, 80),
			},
			{Name: "Number", Modifier: metadata.ModifierDefault, Value: t.U32, Default: make([]byte, 4)},
			{
				Name:     "BlockHash",
				Modifier: metadata.ModifierDefault,
				Hashers:  []metadata.Hasher{metadata.Twox64Concat},
				Key:      t.U32,
				Value:    t.H256,
				Default:  make([]byte, 32),
			},
			{Name: "Events", Modifier: metadata.ModifierDefault, Value: t.EventRecords, Default: []byte{0}},
		},
		Calls: Ref(t.SystemCall),
		Event: Ref(t.SystemEvent),
		Error: Ref(t.SystemError),
		Constants: []Constant{
			{Name: "BlockHashCount", Type: t.U32, Value: le32(2400)},
			{Name: "SS58Prefix", Type: t.U16, Value: []byte{42, 0}},
		},
		Docs: []string{"The System pallet"},
	})
	b.Pallet(Pallet{
		Name:  "Balances",
		Index: BalancesIndex,
		Storage: []StorageEntry{
			{Name: "TotalIssuance", Modifier: metadata.ModifierDefault, Value: t.U128, Default: make([]byte, 16)},
		},
		Calls: Ref(t.BalancesCall),
		Event: Ref(t.BalancesEvent),
		Error: Ref(t.BalancesError),
		Constants: []Constant{
			{Name: "ExistentialDeposit", Type: t.U128, Value: append(le32(500), make([]byte, 12)...)},
		},
	})
	b.Pallet(Pallet{
		Name:  "TransactionPayment",
		Index: TransactionPaymentIndex,
		Event: Ref(t.TransactionPaymentEvent),
	})

	b.Extrinsic(Extrinsic{
		Version:   4,
		Type:      t.UncheckedExtrinsic,
		Address:   t.MultiAddress,
		Call:      t.RuntimeCall,
		Signature: t.MultiSignature,
		Extra:     t.Extra,
		SignedExtensions: []SignedExtension{
			{Identifier: "CheckNonZeroSender", Type: t.Unit, AdditionalSigned: t.Unit},
			{Identifier: "CheckSpecVersion", Type: t.Unit, AdditionalSigned: t.U32},
			{Identifier: "CheckTxVersion", Type: t.Unit, AdditionalSigned: t.U32},
			{Identifier: "CheckGenesis", Type: t.Unit, AdditionalSigned: t.H256},
			{Identifier: "CheckMortality", Type: t.Era, AdditionalSigned: t.H256},
			{Identifier: "CheckNonce", Type: t.CompactU32, AdditionalSigned: t.Unit},
			{Identifier: "CheckWeight", Type: t.Unit, AdditionalSigned: t.Unit},
			{Identifier: "ChargeTransactionPayment", Type: t.CompactU128, AdditionalSigned: t.Unit},
		},
	})
	b.RuntimeType(t.Runtime)

	b.API(API{
		Name: "Metadata",
		Methods: []APIMethod{
			{Name: "metadata_at_version", Inputs: []Field{{Name: "version", Type: t.U32}}, Output: t.OptionBytes},
		},
	})
	b.API(API{
		Name: "AccountNonceApi",
		Methods: []APIMethod{
			{Name: "account_nonce", Inputs: []Field{{Name: "account", Type: t.AccountID}}, Output: t.U32},
		},
	})
	b.OuterEnums(t.RuntimeCall, t.RuntimeEvent, t.RuntimeError)

	e := scale.AcquireEncoder()
	e.PutString("dev")
	b.Custom(Constant{Name: "chain_name", Type: t.Str, Value: e.CopyBytes()})
	scale.ReleaseEncoder(e)

	return b, t
}

// StandardBlob returns the encoded standard runtime for metadata version 14 or 15
func StandardBlob(version uint8) []byte {
	b, _ := Standard()

	return b.Build(version)
}

// MustResolve resolves the standard runtime and panics on failure
func MustResolve(version uint8) (*metadata.Registry, Types) {
	b, t := Standard()

	reg, err := metadata.Resolve(b.Build(version))
	if err != nil {
		panic(err)
	}

	return reg, t
}

func le32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}
