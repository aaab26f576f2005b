package value_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/0xPolygon/substrate-client/helper/hex"
	"github.com/0xPolygon/substrate-client/metadata"
	"github.com/0xPolygon/substrate-client/metadata/metadatatest"
	"github.com/0xPolygon/substrate-client/scale"
	"github.com/0xPolygon/substrate-client/types"
	"github.com/0xPolygon/substrate-client/value"
)

const (
	aliceHex  = "0xd43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"
	aliceSS58 = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
)

var alice = hex.MustDecodeHex(aliceHex)

func transfer(dest []byte, amount uint64) value.Value {
	return value.Variant("transfer",
		value.Named("dest", value.Bytes(dest)),
		value.Named("value", value.Uint(amount)),
	)
}

func TestEncode_TransferCall(t *testing.T) {
	t.Parallel()

	reg, types := metadatatest.MustResolve(metadata.V14)

	call := value.UnnamedVariant("Balances", transfer(alice, 1000))

	out, err := value.Encode(call, types.RuntimeCall, reg)
	require.NoError(t, err)
	assert.Equal(t, "0x0500"+aliceHex[2:]+"a10f", hex.EncodeToHex(out))
}

func TestEncode_DeclaredFieldOrder(t *testing.T) {
	t.Parallel()

	reg, types := metadatatest.MustResolve(metadata.V14)

	inOrder, err := value.Encode(transfer(alice, 7), types.BalancesCall, reg)
	require.NoError(t, err)

	reversed := value.Variant("transfer",
		value.Named("value", value.Uint(7)),
		value.Named("dest", value.Bytes(alice)),
	)

	out, err := value.Encode(reversed, types.BalancesCall, reg)
	require.NoError(t, err)
	assert.Equal(t, inOrder, out)
}

func TestEncode_MismatchPath(t *testing.T) {
	t.Parallel()

	reg, types := metadatatest.MustResolve(metadata.V14)

	cases := []struct {
		name     string
		v        value.Value
		id       metadata.TypeID
		expected string
	}{
		{
			"short account inside multiaddress",
			value.Variant("transfer_keep_alive",
				value.Named("dest", value.UnnamedVariant("Id", value.Bytes(alice[:31]))),
				value.Named("value", value.Uint(1)),
			),
			types.BalancesCall,
			"transfer_keep_alive.dest.Id[0]",
		},
		{
			"string for a balance",
			value.Variant("transfer",
				value.Named("dest", value.Bytes(alice)),
				value.Named("value", value.String("lots")),
			),
			types.BalancesCall,
			"transfer.value",
		},
		{
			"unknown variant",
			value.Variant("teleport"),
			types.BalancesCall,
			"",
		},
		{
			"missing field",
			value.Variant("transfer", value.Named("dest", value.Bytes(alice))),
			types.BalancesCall,
			"transfer.value",
		},
		{
			"sequence item",
			value.Sequence(value.Bytes(alice), value.Bool(true)),
			types.VecH256,
			"[1]",
		},
	}

	for _, c := range cases {
		_, err := value.Encode(c.v, c.id, reg)
		require.Error(t, err, c.name)

		var mismatch *value.TypeMismatchError
		require.True(t, errors.As(err, &mismatch), c.name)
		assert.Equal(t, c.expected, mismatch.Path, c.name)
	}
}

func TestEncode_CompactOutOfRange(t *testing.T) {
	t.Parallel()

	reg, types := metadatatest.MustResolve(metadata.V14)

	_, err := value.Encode(value.Uint(1<<32), types.CompactU32, reg)

	var mismatch *value.TypeMismatchError
	require.True(t, errors.As(err, &mismatch))

	out, err := value.Encode(value.Uint(1<<32-1), types.CompactU32, reg)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 0xff, 0xff, 0xff, 0xff}, out)
}

func TestDecode_CompactWiderThanInner(t *testing.T) {
	t.Parallel()

	reg, types := metadatatest.MustResolve(metadata.V14)

	_, _, err := value.Decode(scale.EncodeCompact(1<<32), types.CompactU32, reg)
	require.ErrorIs(t, err, scale.ErrOverflow)

	v, n, err := value.Decode(scale.EncodeCompact(1<<32), types.CompactU64, reg)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	got, ok := v.Uint64()
	require.True(t, ok)
	assert.Equal(t, uint64(1<<32), got)
}

func TestDecode_BytesAreCanonical(t *testing.T) {
	t.Parallel()

	reg, types := metadatatest.MustResolve(metadata.V14)

	v, err := value.DecodeAll([]byte{0x0c, 1, 2, 3}, types.Bytes, reg)
	require.NoError(t, err)
	assert.Equal(t, value.KindBytes, v.Kind)
	assert.Equal(t, []byte{1, 2, 3}, v.Bytes)

	// an explicit sequence of u8 encodes the same way
	out, err := value.Encode(value.Sequence(value.Uint(1), value.Uint(2), value.Uint(3)), types.Bytes, reg)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0c, 1, 2, 3}, out)
}

func TestDecode_Errors(t *testing.T) {
	t.Parallel()

	reg, types := metadatatest.MustResolve(metadata.V14)

	_, err := value.DecodeAll([]byte{1, 0, 0, 0, 9}, types.U32, reg)
	require.ErrorIs(t, err, value.ErrLeftoverBytes)

	_, _, err = value.Decode([]byte{1, 0}, types.U32, reg)
	require.ErrorIs(t, err, scale.ErrUnexpectedEOF)

	_, _, err = value.Decode([]byte{9}, types.Phase, reg)
	require.ErrorIs(t, err, value.ErrUnknownVariant)

	_, _, err = value.Decode([]byte{2}, types.Bool, reg)
	require.ErrorIs(t, err, scale.ErrInvalidBool)

	// a length prefix larger than the input is rejected before allocating
	_, _, err = value.Decode(scale.EncodeCompact(1<<30), types.VecH256, reg)
	require.ErrorIs(t, err, scale.ErrUnexpectedEOF)

	_, _, err = value.Decode([]byte{0x08, 0xff, 0xfe}, types.Str, reg)
	require.ErrorIs(t, err, value.ErrInvalidText)
}

func TestDecode_Consumed(t *testing.T) {
	t.Parallel()

	reg, types := metadatatest.MustResolve(metadata.V14)

	b := append([]byte{0x01}, 5, 0, 0, 0)
	b = append(b, 0xaa)

	v, n, err := value.Decode(b, types.Phase, reg)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "ApplyExtrinsic", v.Variant)
}

func accountInfo(nonce uint32, free *big.Int) value.Value {
	return value.Composite(
		value.Named("nonce", value.Uint(uint64(nonce))),
		value.Named("consumers", value.Uint(0)),
		value.Named("providers", value.Uint(1)),
		value.Named("sufficients", value.Uint(0)),
		value.Named("data", value.Composite(
			value.Named("free", value.BigUint(free)),
			value.Named("reserved", value.Uint(0)),
			value.Named("frozen", value.Uint(0)),
			value.Named("flags", value.Uint(0)),
		)),
	)
}

func TestRoundTrip_Property(t *testing.T) {
	t.Parallel()

	reg, types := metadatatest.MustResolve(metadata.V15)

	rapid.Check(t, func(rt *rapid.T) {
		var (
			nonce = rapid.Uint32().Draw(rt, "nonce")
			hi    = rapid.Uint64().Draw(rt, "free high bits")
			lo    = rapid.Uint64().Draw(rt, "free low bits")
			blob  = rapid.SliceOfN(rapid.Byte(), 0, 300).Draw(rt, "remark")
			phase = rapid.Uint32().Draw(rt, "extrinsic index")
		)

		free := new(big.Int).Lsh(new(big.Int).SetUint64(hi), 64)
		free.Or(free, new(big.Int).SetUint64(lo))

		cases := []struct {
			v  value.Value
			id metadata.TypeID
		}{
			{accountInfo(nonce, free), types.AccountInfo},
			{value.BigUint(free), types.CompactU128},
			{value.Bytes(blob), types.Bytes},
			{value.VariantAt(0, value.Field{Value: value.Uint(uint64(phase))}), types.Phase},
		}

		for _, c := range cases {
			enc, err := value.Encode(c.v, c.id, reg)
			require.NoError(rt, err)

			dec, err := value.DecodeAll(enc, c.id, reg)
			require.NoError(rt, err)

			again, err := value.Encode(dec, c.id, reg)
			require.NoError(rt, err)
			require.Equal(rt, enc, again)
		}
	})
}

func TestRoundTrip_EventRecords(t *testing.T) {
	t.Parallel()

	reg, types := metadatatest.MustResolve(metadata.V14)

	records := value.Sequence(
		value.Composite(
			value.Named("phase", value.UnnamedVariant("ApplyExtrinsic", value.Uint(1))),
			value.Named("event", value.UnnamedVariant("Balances", value.Variant("Transfer",
				value.Named("from", value.Bytes(alice)),
				value.Named("to", value.Bytes(alice)),
				value.Named("amount", value.Uint(1000)),
			))),
			value.Named("topics", value.Sequence()),
		),
	)

	enc, err := value.Encode(records, types.EventRecords, reg)
	require.NoError(t, err)

	dec, err := value.DecodeAll(enc, types.EventRecords, reg)
	require.NoError(t, err)
	require.Len(t, dec.Items, 1)

	event, ok := dec.Items[0].Field("event")
	require.True(t, ok)
	assert.Equal(t, "Balances", event.Variant)
	assert.Equal(t, uint8(5), event.VariantIndex)

	inner := event.Fields[0].Value
	assert.Equal(t, "Transfer", inner.Variant)

	amount, ok := inner.Field("amount")
	require.True(t, ok)
	assert.Equal(t, "1000", amount.String())
}

func TestBitSequence(t *testing.T) {
	t.Parallel()

	b := metadatatest.NewBuilder()
	u8 := b.Primitive(metadata.U8)
	u16 := b.Primitive(metadata.U16)
	lsb := b.Composite([]string{"bitvec", "order", "Lsb0"})
	msb := b.Composite([]string{"bitvec", "order", "Msb0"})
	bitsU8 := b.BitSequence(u8, lsb)
	bitsU16 := b.BitSequence(u16, msb)
	b.Extrinsic(metadatatest.Extrinsic{Version: 4, Type: u8})
	b.RuntimeType(u8)

	reg, err := metadata.Resolve(b.Build(metadata.V14))
	require.NoError(t, err)

	v, err := value.FromJSON([]byte(`[true, false, true, true, false, false, false, false, true]`), bitsU8, reg)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), v.BitLen)
	assert.Equal(t, []byte{0x0d, 0x01}, v.Bytes)

	enc, err := value.Encode(v, bitsU8, reg)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x24, 0x0d, 0x01}, enc)

	dec, err := value.DecodeAll(enc, bitsU8, reg)
	require.NoError(t, err)
	assert.True(t, v.Equal(dec))

	v, err = value.FromJSON([]byte(`[true]`), bitsU16, reg)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x80}, v.Bytes)

	_, err = value.Encode(value.BitSequence(9, []byte{0x01}), bitsU8, reg)
	require.Error(t, err)
}

func TestFromJSON(t *testing.T) {
	t.Parallel()

	reg, types := metadatatest.MustResolve(metadata.V14)

	expected, err := value.Encode(transfer(alice, 1000), types.BalancesCall, reg)
	require.NoError(t, err)

	inputs := []string{
		`{"transfer": {"dest": "` + aliceSS58 + `", "value": 1000}}`,
		`{"transfer": {"dest": "` + aliceHex + `", "value": "1000"}}`,
		`{"transfer": {"dest": "` + aliceHex + `", "value": "0x3e8"}}`,
	}

	for _, in := range inputs {
		v, err := value.FromJSON([]byte(in), types.BalancesCall, reg)
		require.NoError(t, err, in)

		out, err := value.Encode(v, types.BalancesCall, reg)
		require.NoError(t, err, in)
		assert.Equal(t, expected, out, in)
	}

	none, err := value.FromJSON([]byte(`null`), types.OptionBytes, reg)
	require.NoError(t, err)
	assert.Equal(t, "None", none.Variant)

	some, err := value.FromJSON([]byte(`"0x0102"`), types.OptionBytes, reg)
	require.NoError(t, err)

	out, err := value.Encode(some, types.OptionBytes, reg)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x08, 0x01, 0x02}, out)

	unit, err := value.FromJSON([]byte(`"Finalization"`), types.Phase, reg)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), unit.VariantIndex)

	_, err = value.FromJSON([]byte(`{"transfer": {"dest": "nope", "value": 1}}`), types.BalancesCall, reg)

	var mismatch *value.TypeMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "transfer.dest", mismatch.Path)

	_, err = value.FromJSON([]byte(`-1`), types.U32, reg)
	require.Error(t, err)
}

func TestMarshalJSON(t *testing.T) {
	t.Parallel()

	reg, types := metadatatest.MustResolve(metadata.V14)

	huge, _ := new(big.Int).SetString("340282366920938463463374607431768211455", 10)

	enc, err := value.Encode(accountInfo(3, huge), types.AccountInfo, reg)
	require.NoError(t, err)

	dec, err := value.DecodeAll(enc, types.AccountInfo, reg)
	require.NoError(t, err)

	out, err := dec.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"nonce": 3, "consumers": 0, "providers": 1, "sufficients": 0,
		"data": {"free": "340282366920938463463374607431768211455", "reserved": 0, "frozen": 0, "flags": 0}
	}`, string(out))

	phase, err := value.Encode(value.Variant("Finalization"), types.Phase, reg)
	require.NoError(t, err)

	dec, err = value.DecodeAll(phase, types.Phase, reg)
	require.NoError(t, err)

	out, err = dec.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"Finalization"`, string(out))
}

func TestDecodeInto(t *testing.T) {
	t.Parallel()

	reg, types2 := metadatatest.MustResolve(metadata.V14)

	enc, err := value.Encode(accountInfo(9, big.NewInt(12345)), types2.AccountInfo, reg)
	require.NoError(t, err)

	dec, err := value.DecodeAll(enc, types2.AccountInfo, reg)
	require.NoError(t, err)

	var info struct {
		Nonce       uint32 `scale:"nonce"`
		Consumers   uint32
		Providers   uint32
		Sufficients uint32
		Data        struct {
			Free     *big.Int
			Reserved string
			Frozen   uint64
			Flags    *big.Int
		}
	}

	require.NoError(t, dec.DecodeInto(&info))
	assert.Equal(t, uint32(9), info.Nonce)
	assert.Equal(t, uint32(1), info.Providers)
	assert.Equal(t, int64(12345), info.Data.Free.Int64())
	assert.Equal(t, "0", info.Data.Reserved)

	// unmatched keys fail loudly
	var partial struct {
		Nonce uint32
	}

	require.Error(t, dec.DecodeInto(&partial))

	// accounts land in fixed size arrays
	event := value.Composite(value.Named("account", value.Tuple(value.Bytes(alice))))

	var newAccount struct {
		Account types.AccountID
	}

	require.NoError(t, event.DecodeInto(&newAccount))
	assert.Equal(t, aliceSS58, newAccount.Account.String())

	// values too wide for the target are rejected
	var narrow struct {
		Nonce uint8
	}

	wide := value.Composite(value.Named("nonce", value.Uint(300)))
	require.Error(t, wide.DecodeInto(&narrow))
}
