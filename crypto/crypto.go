package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/ChainSafe/go-schnorrkel"
	"github.com/btcsuite/btcd/btcec/v2"
	btc_ecdsa "github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/0xPolygon/substrate-client/types"
)

type KeyType string

const (
	KeyEd25519 KeyType = "ed25519"
	KeySr25519 KeyType = "sr25519"
	KeyECDSA   KeyType = "ecdsa"
)

const (
	// SeedLength is the byte length of the secret seed for every key type
	SeedLength = 32

	Ed25519SignatureLength = ed25519.SignatureSize
	Sr25519SignatureLength = 64

	// ECDSASignatureLength indicates the byte length required to carry a signature with recovery id.
	// (64 bytes ECDSA signature + 1 byte recovery id)
	ECDSASignatureLength = 64 + 1

	// recoveryID is the btcec compact signature header for uncompressed keys
	recoveryID = byte(27)

	// recoveryIDOffset points to the byte offset within the signature that contains the recovery id.
	recoveryIDOffset = 64
)

var (
	// signingContext is the sr25519 transcript label used by Substrate runtimes
	signingContext = []byte("substrate")

	ErrUnknownKeyType   = errors.New("unknown key type")
	ErrInvalidSeed      = errors.New("invalid seed")
	errInvalidSignature = errors.New("invalid signature")
)

// ParseKeyType maps a user supplied name onto a KeyType
func ParseKeyType(s string) (KeyType, error) {
	switch kt := KeyType(strings.ToLower(s)); kt {
	case KeyEd25519, KeySr25519, KeyECDSA:
		return kt, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKeyType, s)
	}
}

// Signer is the signing capability handed to the extrinsic builder.
// Implementations own their private key material
type Signer interface {
	// PublicKey returns the raw public key (33-byte compressed for ecdsa)
	PublicKey() []byte
	// AccountID returns the on-chain identity of the key
	AccountID() types.AccountID
	KeyType() KeyType
	Sign(msg []byte) ([]byte, error)
}

// NewSigner builds a signer of the given type from a 32-byte seed
func NewSigner(kt KeyType, seed []byte) (Signer, error) {
	if len(seed) != SeedLength {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSeed, SeedLength, len(seed))
	}

	switch kt {
	case KeyEd25519:
		return NewEd25519Signer(seed), nil
	case KeySr25519:
		return NewSr25519Signer(seed)
	case KeyECDSA:
		return NewECDSASigner(seed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKeyType, kt)
	}
}

// GenerateSeed returns a fresh random seed
func GenerateSeed() ([]byte, error) {
	seed := make([]byte, SeedLength)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}

	return seed, nil
}

// Verify checks sig over msg against the public key of the given scheme
func Verify(kt KeyType, pub, msg, sig []byte) bool {
	switch kt {
	case KeyEd25519:
		return len(pub) == ed25519.PublicKeySize && ed25519.Verify(pub, msg, sig)
	case KeySr25519:
		return verifySr25519(pub, msg, sig)
	case KeyECDSA:
		return verifyECDSA(pub, msg, sig)
	default:
		return false
	}
}

var _ Signer = (*Ed25519Signer)(nil)

type Ed25519Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

func NewEd25519Signer(seed []byte) *Ed25519Signer {
	priv := ed25519.NewKeyFromSeed(seed)

	pub, _ := priv.Public().(ed25519.PublicKey)

	return &Ed25519Signer{priv: priv, pub: pub}
}

func (s *Ed25519Signer) PublicKey() []byte {
	return s.pub
}

func (s *Ed25519Signer) AccountID() types.AccountID {
	id, _ := types.NewAccountID(s.pub)

	return id
}

func (s *Ed25519Signer) KeyType() KeyType {
	return KeyEd25519
}

func (s *Ed25519Signer) Sign(msg []byte) ([]byte, error) {
	return ed25519.Sign(s.priv, msg), nil
}

var _ Signer = (*Sr25519Signer)(nil)

type Sr25519Signer struct {
	secret *schnorrkel.SecretKey
	pub    [32]byte
}

// NewSr25519Signer expands the mini secret the way Substrate does (ed25519 expansion mode)
func NewSr25519Signer(seed []byte) (*Sr25519Signer, error) {
	var raw [32]byte

	copy(raw[:], seed)

	mini, err := schnorrkel.NewMiniSecretKeyFromRaw(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}

	secret := mini.ExpandEd25519()

	pub, err := secret.Public()
	if err != nil {
		return nil, err
	}

	return &Sr25519Signer{secret: secret, pub: pub.Encode()}, nil
}

func (s *Sr25519Signer) PublicKey() []byte {
	out := make([]byte, len(s.pub))
	copy(out, s.pub[:])

	return out
}

func (s *Sr25519Signer) AccountID() types.AccountID {
	return types.AccountID(s.pub)
}

func (s *Sr25519Signer) KeyType() KeyType {
	return KeySr25519
}

func (s *Sr25519Signer) Sign(msg []byte) ([]byte, error) {
	sig, err := s.secret.Sign(schnorrkel.NewSigningContext(signingContext, msg))
	if err != nil {
		return nil, err
	}

	enc := sig.Encode()

	return enc[:], nil
}

func verifySr25519(pub, msg, sig []byte) bool {
	if len(pub) != 32 || len(sig) != Sr25519SignatureLength {
		return false
	}

	var (
		rawPub [32]byte
		rawSig [64]byte
	)

	copy(rawPub[:], pub)
	copy(rawSig[:], sig)

	pk := &schnorrkel.PublicKey{}
	if err := pk.Decode(rawPub); err != nil {
		return false
	}

	s := &schnorrkel.Signature{}
	if err := s.Decode(rawSig); err != nil {
		return false
	}

	ok, err := pk.Verify(s, schnorrkel.NewSigningContext(signingContext, msg))

	return err == nil && ok
}

var _ Signer = (*ECDSASigner)(nil)

// ECDSASigner signs the blake2b-256 digest of the message on secp256k1
type ECDSASigner struct {
	priv *btcec.PrivateKey
	pub  []byte
}

func NewECDSASigner(seed []byte) (*ECDSASigner, error) {
	priv, _ := btcec.PrivKeyFromBytes(seed)
	if priv.Key.IsZero() {
		return nil, fmt.Errorf("%w: zero scalar", ErrInvalidSeed)
	}

	return &ECDSASigner{priv: priv, pub: priv.PubKey().SerializeCompressed()}, nil
}

func (s *ECDSASigner) PublicKey() []byte {
	return s.pub
}

// AccountID is the blake2b-256 digest of the compressed public key
func (s *ECDSASigner) AccountID() types.AccountID {
	return types.AccountID(Blake2_256Hash(s.pub))
}

func (s *ECDSASigner) KeyType() KeyType {
	return KeyECDSA
}

// Sign produces the signature in the [R || S || V] format where V is 0 or 1.
func (s *ECDSASigner) Sign(msg []byte) ([]byte, error) {
	sig, err := btc_ecdsa.SignCompact(s.priv, Blake2_256(msg), false)
	if err != nil {
		return nil, err
	}

	// move the recovery id from the header to the end
	v := sig[0] - recoveryID
	copy(sig, sig[1:])
	sig[recoveryIDOffset] = v

	return sig, nil
}

// RecoverECDSA returns the compressed public key that produced sig over msg
func RecoverECDSA(msg, sig []byte) ([]byte, error) {
	if len(sig) != ECDSASignatureLength {
		return nil, errInvalidSignature
	}

	// Convert to btcec input format with 'recovery id' v at the beginning.
	btcsig := make([]byte, ECDSASignatureLength)
	btcsig[0] = sig[recoveryIDOffset] + recoveryID
	copy(btcsig[1:], sig)

	pub, _, err := btc_ecdsa.RecoverCompact(btcsig, Blake2_256(msg))
	if err != nil {
		return nil, err
	}

	return pub.SerializeCompressed(), nil
}

func verifyECDSA(pub, msg, sig []byte) bool {
	recovered, err := RecoverECDSA(msg, sig)
	if err != nil {
		return false
	}

	return string(recovered) == string(pub)
}
