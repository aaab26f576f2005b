package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xPolygon/substrate-client/helper/hex"
)

func testSeed() []byte {
	return bytes.Repeat([]byte{0x42}, SeedLength)
}

func TestTwox128_StorageTrie(t *testing.T) {
	t.Parallel()

	cases := []struct {
		input    string
		expected string
	}{
		{"System", "0x26aa394eea5630e07c48ae0c9558cef7"},
		{"Events", "0x80d41e5e16056765bc8461851072c9d7"},
		{"Account", "0xb99d880ec681799c0cf30e8886371da9"},
	}

	for _, c := range cases {
		assert.Equal(t, c.expected, hex.EncodeToHex(Twox128([]byte(c.input))), c.input)
	}

	assert.Len(t, Twox64([]byte("a")), 8)
	assert.Len(t, Twox256([]byte("a")), 32)
	assert.Equal(t, Twox128([]byte("a")), Twox256([]byte("a"))[:16])
}

func TestBlake2(t *testing.T) {
	t.Parallel()

	// blake2b-256 of the empty input
	assert.Equal(t,
		"0x0e5751c026e543b2e8ab2eb06099daa1d1e5df47778f7787faab45cdf12fe3a8",
		hex.EncodeToHex(Blake2_256()),
	)
	assert.Equal(t, Blake2_256([]byte("ab")), Blake2_256([]byte("a"), []byte("b")))
	assert.Len(t, Blake2_128([]byte("x")), 16)
}

func TestSigners_SignAndVerify(t *testing.T) {
	t.Parallel()

	msg := []byte("payload to sign")

	cases := []struct {
		keyType KeyType
		sigLen  int
		pubLen  int
	}{
		{KeyEd25519, Ed25519SignatureLength, 32},
		{KeySr25519, Sr25519SignatureLength, 32},
		{KeyECDSA, ECDSASignatureLength, 33},
	}

	for _, c := range cases {
		signer, err := NewSigner(c.keyType, testSeed())
		require.NoError(t, err)
		require.Equal(t, c.keyType, signer.KeyType())
		require.Len(t, signer.PublicKey(), c.pubLen)

		sig, err := signer.Sign(msg)
		require.NoError(t, err)
		require.Len(t, sig, c.sigLen)

		assert.True(t, Verify(c.keyType, signer.PublicKey(), msg, sig), c.keyType)
		assert.False(t, Verify(c.keyType, signer.PublicKey(), []byte("other"), sig), c.keyType)
	}
}

func TestEd25519_Deterministic(t *testing.T) {
	t.Parallel()

	signer := NewEd25519Signer(testSeed())

	a, err := signer.Sign([]byte("x"))
	require.NoError(t, err)

	b, err := signer.Sign([]byte("x"))
	require.NoError(t, err)

	require.Equal(t, a, b)
	require.Equal(t, signer.PublicKey(), signer.AccountID().Bytes())
}

func TestECDSA_AccountID(t *testing.T) {
	t.Parallel()

	signer, err := NewECDSASigner(testSeed())
	require.NoError(t, err)

	require.Equal(t, Blake2_256(signer.PublicKey()), signer.AccountID().Bytes())

	sig, err := signer.Sign([]byte("msg"))
	require.NoError(t, err)

	recovered, err := RecoverECDSA([]byte("msg"), sig)
	require.NoError(t, err)
	require.Equal(t, signer.PublicKey(), recovered)

	_, err = NewECDSASigner(make([]byte, SeedLength))
	require.ErrorIs(t, err, ErrInvalidSeed)
}

func TestNewSigner_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewSigner(KeyEd25519, []byte{1, 2, 3})
	require.ErrorIs(t, err, ErrInvalidSeed)

	_, err = NewSigner("rsa", testSeed())
	require.ErrorIs(t, err, ErrUnknownKeyType)

	kt, err := ParseKeyType("SR25519")
	require.NoError(t, err)
	require.Equal(t, KeySr25519, kt)
}
