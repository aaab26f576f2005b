package extrinsic_test

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xPolygon/substrate-client/crypto"
	"github.com/0xPolygon/substrate-client/extrinsic"
	"github.com/0xPolygon/substrate-client/helper/hex"
	"github.com/0xPolygon/substrate-client/metadata"
	"github.com/0xPolygon/substrate-client/metadata/metadatatest"
	"github.com/0xPolygon/substrate-client/scale"
	"github.com/0xPolygon/substrate-client/types"
	"github.com/0xPolygon/substrate-client/value"
)

const (
	aliceHex = "0xd43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"

	// signature of the transfer fixture by the ed25519 key seeded with 32 bytes of 0x42
	fixtureSignature = "0xf057a129031b67208850ed51454ed8d120f60899a08bb2ab79ef96553adde74e" +
		"03416969cf6b5e0d539b8b77d98d772ccf0bf818279f51920000118aa7847605"
	fixtureEnvelope = "0x290284002152f8d19b791d24453242e15f2eab6cb7cffa7b6a5ed30097960e069881db1200" +
		"f057a129031b67208850ed51454ed8d120f60899a08bb2ab79ef96553adde74e" +
		"03416969cf6b5e0d539b8b77d98d772ccf0bf818279f51920000118aa7847605" +
		"000000" +
		"0500d43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27da10f"
	fixtureHash = "0x3128df549d2f3ef0629959c6c7d845b25547177fd24ec506bbae9289ff5e14e0"
)

var alice = hex.MustDecodeHex(aliceHex)

func testChain() extrinsic.ChainInfo {
	return extrinsic.ChainInfo{
		SpecVersion:        100,
		TransactionVersion: 1,
		GenesisHash:        types.MustParseHash("0xb0a8d493285c2df73290dfb7e61f870f17b41801197a149ca93654499ea3dafe"),
	}
}

func testSigner(t *testing.T, kt crypto.KeyType) crypto.Signer {
	t.Helper()

	signer, err := crypto.NewSigner(kt, bytes.Repeat([]byte{0x42}, crypto.SeedLength))
	require.NoError(t, err)

	return signer
}

func transferCall(t *testing.T, reg *metadata.Registry) []byte {
	t.Helper()

	call, err := extrinsic.BuildCall(reg, "Balances", "transfer", value.Bytes(alice), value.Uint(1000))
	require.NoError(t, err)

	return call
}

func TestBuildCall_Transfer(t *testing.T) {
	t.Parallel()

	reg, _ := metadatatest.MustResolve(metadata.V14)

	call := transferCall(t, reg)
	assert.Equal(t, "0x0500"+aliceHex[2:]+"a10f", hex.EncodeToHex(call))

	// deterministic
	assert.Equal(t, call, transferCall(t, reg))

	named, err := extrinsic.BuildCallNamed(reg, "Balances", "transfer", map[string]value.Value{
		"value": value.Uint(1000),
		"dest":  value.Bytes(alice),
	})
	require.NoError(t, err)
	assert.Equal(t, call, named)

	fromJSON, err := extrinsic.CallFromJSON(reg, "Balances", "transfer", map[string][]byte{
		"dest":  []byte(`"5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"`),
		"value": []byte(`"1000"`),
	})
	require.NoError(t, err)
	assert.Equal(t, call, fromJSON)

	decoded, err := extrinsic.DecodeCall(reg, call)
	require.NoError(t, err)
	assert.Equal(t, "transfer", decoded.Descriptor.Name)
	assert.Equal(t, "dest", decoded.Args[0].Name)
	assert.Equal(t, "Balances.transfer{dest: ("+aliceHex+"), value: 1000}", decoded.String())
}

func TestBuildCall_Errors(t *testing.T) {
	t.Parallel()

	reg, _ := metadatatest.MustResolve(metadata.V14)

	_, err := extrinsic.BuildCall(reg, "Balances", "mint", value.Uint(1))
	require.ErrorIs(t, err, extrinsic.ErrUnknownCall)

	_, err = extrinsic.BuildCall(reg, "Treasury", "transfer")
	require.ErrorIs(t, err, extrinsic.ErrUnknownModule)

	_, err = extrinsic.BuildCall(reg, "Balances", "transfer", value.Bytes(alice))
	require.ErrorIs(t, err, extrinsic.ErrArgumentCount)

	_, err = extrinsic.BuildCall(reg, "Balances", "transfer_keep_alive",
		value.UnnamedVariant("Id", value.Bytes(alice[:31])), value.Uint(1))

	var mismatch *value.TypeMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, "dest.Id[0]", mismatch.Path)

	_, err = extrinsic.DecodeCall(reg, []byte{5, 99})
	require.ErrorIs(t, err, extrinsic.ErrUnknownCall)

	_, err = extrinsic.DecodeCall(reg, append(transferCall(t, reg), 0))
	require.ErrorIs(t, err, scale.ErrTrailingBytes)
}

func TestEra(t *testing.T) {
	t.Parallel()

	cases := []struct {
		period, current uint64
		expected        []byte
		era             extrinsic.Era
	}{
		{64, 42, []byte{0xa5, 0x02}, extrinsic.Era{Period: 64, Phase: 42}},
		{1_000_000, 1_000_000, []byte{0x4f, 0x42}, extrinsic.Era{Period: 65536, Phase: 16960}},
		{1, 5, []byte{0x11, 0x00}, extrinsic.Era{Period: 4, Phase: 1}},
		{50, 100, []byte{0x45, 0x02}, extrinsic.Era{Period: 64, Phase: 36}},
	}

	for _, c := range cases {
		era := extrinsic.Mortal(c.period, c.current)
		require.Equal(t, c.era, era)
		require.Equal(t, c.expected, era.Encode())

		decoded, err := extrinsic.DecodeEra(scale.NewDecoder(c.expected))
		require.NoError(t, err)
		require.Equal(t, era, decoded)
	}

	immortal := extrinsic.Immortal()
	assert.Equal(t, []byte{0}, immortal.Encode())
	assert.Equal(t, uint64(0), immortal.Birth(1000))

	era := extrinsic.Mortal(64, 42)
	assert.Equal(t, uint64(42), era.Birth(42))
	assert.Equal(t, uint64(106), era.Death(42))
	assert.Equal(t, uint64(42), era.Birth(100))
	assert.Equal(t, uint64(106), era.Birth(110))

	// phase outside the period
	_, err := extrinsic.DecodeEra(scale.NewDecoder([]byte{0x41, 0x00}))
	require.ErrorIs(t, err, extrinsic.ErrInvalidEra)
}

func TestSign_Ed25519Fixture(t *testing.T) {
	t.Parallel()

	for _, version := range []uint8{metadata.V14, metadata.V15} {
		reg, _ := metadatatest.MustResolve(version)

		payload := extrinsic.NewUnsignedPayload(transferCall(t, reg), 0, extrinsic.Immortal(), big.NewInt(0),
			testChain(), extrinsic.WithRegistry(reg))

		signed, err := extrinsic.Sign(payload, testSigner(t, crypto.KeyEd25519))
		require.NoError(t, err)
		assert.Equal(t, fixtureSignature, hex.EncodeToHex(signed.Signature.Signature))

		enc, err := signed.Encode()
		require.NoError(t, err)
		assert.Equal(t, fixtureEnvelope, hex.EncodeToHex(enc))

		hash, err := signed.Hash()
		require.NoError(t, err)
		assert.Equal(t, fixtureHash, hash.String())

		// a payload is consumed by signing
		_, err = extrinsic.Sign(payload, testSigner(t, crypto.KeyEd25519))
		require.ErrorIs(t, err, extrinsic.ErrPayloadConsumed)
	}
}

func TestSign_DefaultLayoutMatchesRuntimeExtensions(t *testing.T) {
	t.Parallel()

	reg, _ := metadatatest.MustResolve(metadata.V14)
	era := extrinsic.Mortal(64, 1000)
	chain := testChain()
	chain.CheckpointHash = types.BytesToHash(bytes.Repeat([]byte{7}, 32))

	plain := extrinsic.NewUnsignedPayload(transferCall(t, reg), 3, era, big.NewInt(10), chain)
	withReg := extrinsic.NewUnsignedPayload(transferCall(t, reg), 3, era, big.NewInt(10), chain, extrinsic.WithRegistry(reg))

	a, err := plain.SigningPayload()
	require.NoError(t, err)

	b, err := withReg.SigningPayload()
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// the mortal checkpoint is the last 32 bytes signed
	assert.Equal(t, chain.CheckpointHash.Bytes(), a[len(a)-32:])
}

func remarkPayload(t *testing.T, reg *metadata.Registry, remarkLen int) *extrinsic.UnsignedPayload {
	t.Helper()

	call, err := extrinsic.BuildCall(reg, "System", "remark", value.Bytes(bytes.Repeat([]byte{1}, remarkLen)))
	require.NoError(t, err)

	return extrinsic.NewUnsignedPayload(call, 0, extrinsic.Immortal(), nil, testChain())
}

func TestSign_HashingThreshold(t *testing.T) {
	t.Parallel()

	reg, _ := metadatatest.MustResolve(metadata.V14)

	cases := []struct {
		remarkLen  int
		payloadLen int
	}{
		// call is 2 + 2 (compact length) + remark, plus 3 bytes extra and 72 additional
		{177, 256},
		{178, 32},
	}

	for _, kt := range []crypto.KeyType{crypto.KeyEd25519, crypto.KeySr25519, crypto.KeyECDSA} {
		signer := testSigner(t, kt)

		for _, c := range cases {
			payload := remarkPayload(t, reg, c.remarkLen)

			msg, err := payload.SigningPayload()
			require.NoError(t, err)
			require.Len(t, msg, c.payloadLen)

			signed, err := extrinsic.Sign(payload, signer)
			require.NoError(t, err)
			assert.True(t, crypto.Verify(kt, signer.PublicKey(), msg, signed.Signature.Signature), "%s %d", kt, c.remarkLen)

			ok, err := signed.Verify(testChain(), nil, signer.PublicKey())
			require.NoError(t, err)
			assert.True(t, ok)
		}
	}
}

type failingSigner struct {
	crypto.Signer
}

func (failingSigner) Sign([]byte) ([]byte, error) {
	return nil, errors.New("hsm offline")
}

func TestSign_SignerFailure(t *testing.T) {
	t.Parallel()

	reg, _ := metadatatest.MustResolve(metadata.V14)
	payload := extrinsic.NewUnsignedPayload(transferCall(t, reg), 0, extrinsic.Immortal(), nil, testChain())

	_, err := extrinsic.Sign(payload, failingSigner{testSigner(t, crypto.KeySr25519)})

	var signErr *extrinsic.SigningError
	require.True(t, errors.As(err, &signErr))
	assert.Equal(t, crypto.KeySr25519, signErr.KeyType)
	assert.Contains(t, err.Error(), "hsm offline")
}

func TestDecodeExtrinsic(t *testing.T) {
	t.Parallel()

	reg, _ := metadatatest.MustResolve(metadata.V15)

	for _, kt := range []crypto.KeyType{crypto.KeyEd25519, crypto.KeySr25519, crypto.KeyECDSA} {
		signer := testSigner(t, kt)
		payload := extrinsic.NewUnsignedPayload(transferCall(t, reg), 9, extrinsic.Mortal(128, 77),
			big.NewInt(5000), testChain(), extrinsic.WithRegistry(reg))

		signed, err := extrinsic.Sign(payload, signer)
		require.NoError(t, err)

		enc, err := signed.Encode()
		require.NoError(t, err)

		for _, r := range []*metadata.Registry{reg, nil} {
			decoded, err := extrinsic.DecodeExtrinsic(enc, r)
			require.NoError(t, err)
			require.True(t, decoded.IsSigned())

			s := decoded.Signature
			assert.Equal(t, signer.AccountID(), s.Signer)
			assert.Equal(t, kt, s.KeyType)
			assert.Equal(t, uint64(9), s.Nonce)
			assert.Equal(t, int64(5000), s.Tip.Int64())
			assert.Equal(t, extrinsic.Mortal(128, 77), s.Era)
			assert.Equal(t, signed.Call, decoded.Call)

			again, err := decoded.Encode()
			require.NoError(t, err)
			assert.Equal(t, enc, again)
		}
	}

	unsigned := extrinsic.NewUnsigned(transferCall(t, reg))

	enc, err := unsigned.Encode()
	require.NoError(t, err)
	assert.Equal(t, byte(0x04), enc[1])

	decoded, err := extrinsic.DecodeExtrinsic(enc, reg)
	require.NoError(t, err)
	assert.False(t, decoded.IsSigned())

	_, err = extrinsic.DecodeExtrinsic(append(enc, 0), reg)
	require.ErrorIs(t, err, scale.ErrTrailingBytes)

	bad := append([]byte{}, enc...)
	bad[1] = 0x05
	_, err = extrinsic.DecodeExtrinsic(bad, reg)
	require.ErrorIs(t, err, extrinsic.ErrUnsupportedExtrinsicVersion)
}

func TestSignedExtensions_Unsupported(t *testing.T) {
	t.Parallel()

	b := metadatatest.NewBuilder()
	u8 := b.Primitive(metadata.U8)
	u32 := b.Primitive(metadata.U32)
	unit := b.Tuple()
	b.Extrinsic(metadatatest.Extrinsic{
		Version: 4,
		Type:    u8,
		SignedExtensions: []metadatatest.SignedExtension{
			{Identifier: "CheckNonce", Type: u32, AdditionalSigned: unit},
			{Identifier: "Harmless", Type: unit, AdditionalSigned: unit},
			{Identifier: "Mystery", Type: u32, AdditionalSigned: unit},
		},
	})
	b.RuntimeType(u8)

	reg, err := metadata.Resolve(b.Build(metadata.V14))
	require.NoError(t, err)

	payload := extrinsic.NewUnsignedPayload([]byte{0, 0}, 0, extrinsic.Immortal(), nil, testChain(), extrinsic.WithRegistry(reg))

	_, err = payload.SigningPayload()
	require.ErrorIs(t, err, extrinsic.ErrUnsupportedSignedExtension)
	assert.Contains(t, err.Error(), "Mystery")
}
