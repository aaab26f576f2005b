// Package extrinsic builds, signs and parses transactions in the version 4 envelope
package extrinsic

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/0xPolygon/substrate-client/crypto"
	"github.com/0xPolygon/substrate-client/metadata"
	"github.com/0xPolygon/substrate-client/scale"
	"github.com/0xPolygon/substrate-client/types"
	"github.com/0xPolygon/substrate-client/value"
)

const (
	// Version is the only extrinsic format version produced and accepted
	Version = 4

	signedBit   = 0x80
	versionMask = 0x7f

	multiAddressID = 0
)

// multiSignature discriminants
var signatureIndex = map[crypto.KeyType]uint8{
	crypto.KeyEd25519: 0,
	crypto.KeySr25519: 1,
	crypto.KeyECDSA:   2,
}

var signatureLength = map[crypto.KeyType]int{
	crypto.KeyEd25519: crypto.Ed25519SignatureLength,
	crypto.KeySr25519: crypto.Sr25519SignatureLength,
	crypto.KeyECDSA:   crypto.ECDSASignatureLength,
}

// Signature is the signed section of an extrinsic
type Signature struct {
	Signer types.AccountID
	// RawAddress is set when the runtime takes a bare AccountId instead of a MultiAddress
	RawAddress bool

	KeyType   crypto.KeyType
	Signature []byte

	Era   Era
	Nonce uint64
	Tip   *big.Int

	// Extra is the encoded signed extension data in runtime order
	Extra []byte
}

// SignedExtrinsic is a complete, immutable extrinsic. Signature is nil for unsigned ones
type SignedExtrinsic struct {
	Version   uint8
	Signature *Signature
	Call      []byte
}

// NewUnsigned wraps a call without a signature, as used by inherents
func NewUnsigned(call []byte) *SignedExtrinsic {
	return &SignedExtrinsic{Version: Version, Call: append([]byte{}, call...)}
}

// Sign computes the signing payload, lets the signer sign it and assembles the envelope.
// The payload cannot be signed again afterwards
func Sign(p *UnsignedPayload, signer crypto.Signer) (*SignedExtrinsic, error) {
	msg, err := p.SigningPayload()
	if err != nil {
		return nil, err
	}

	extra, err := p.Extra()
	if err != nil {
		return nil, err
	}

	raw, err := rawAddress(p.reg)
	if err != nil {
		return nil, err
	}

	kt := signer.KeyType()

	wantLen, ok := signatureLength[kt]
	if !ok {
		return nil, &SigningError{KeyType: kt, Err: crypto.ErrUnknownKeyType}
	}

	if err := p.consume(); err != nil {
		return nil, err
	}

	sig, err := signer.Sign(msg)
	if err != nil {
		return nil, &SigningError{KeyType: kt, Err: err}
	}

	if len(sig) != wantLen {
		return nil, &SigningError{KeyType: kt, Err: fmt.Errorf("signature is %d bytes, expected %d", len(sig), wantLen)}
	}

	return &SignedExtrinsic{
		Version: Version,
		Signature: &Signature{
			Signer:     signer.AccountID(),
			RawAddress: raw,
			KeyType:    kt,
			Signature:  sig,
			Era:        p.era,
			Nonce:      p.nonce,
			Tip:        new(big.Int).Set(p.tip),
			Extra:      extra,
		},
		Call: append([]byte{}, p.call...),
	}, nil
}

func (x *SignedExtrinsic) IsSigned() bool {
	return x.Signature != nil
}

// Encode returns the length prefixed envelope as submitted to the node
func (x *SignedExtrinsic) Encode() ([]byte, error) {
	body := scale.AcquireEncoder()
	defer scale.ReleaseEncoder(body)

	if x.Signature == nil {
		body.PutUint8(x.Version)
	} else {
		s := x.Signature

		idx, ok := signatureIndex[s.KeyType]
		if !ok {
			return nil, fmt.Errorf("%w: %s", crypto.ErrUnknownKeyType, s.KeyType)
		}

		body.PutUint8(x.Version | signedBit)

		if !s.RawAddress {
			body.PutUint8(multiAddressID)
		}

		body.Write(s.Signer.Bytes())
		body.PutUint8(idx)
		body.Write(s.Signature)
		body.Write(s.Extra)
	}

	body.Write(x.Call)

	out := scale.AcquireEncoder()
	defer scale.ReleaseEncoder(out)

	out.PutCompact(uint64(body.Len()))
	out.Write(body.Bytes())

	return out.CopyBytes(), nil
}

// Hash is the blake2b-256 hash of the encoded envelope, the transaction hash the node reports
func (x *SignedExtrinsic) Hash() (types.Hash, error) {
	b, err := x.Encode()
	if err != nil {
		return types.Hash{}, err
	}

	return crypto.Blake2_256Hash(b), nil
}

// Verify checks the signature against the payload it claims to sign
func (x *SignedExtrinsic) Verify(chain ChainInfo, reg *metadata.Registry, pub []byte) (bool, error) {
	if x.Signature == nil {
		return false, nil
	}

	s := x.Signature

	var opts []PayloadOption
	if reg != nil {
		opts = append(opts, WithRegistry(reg))
	}

	p := NewUnsignedPayload(x.Call, s.Nonce, s.Era, s.Tip, chain, opts...)

	msg, err := p.SigningPayload()
	if err != nil {
		return false, err
	}

	extra, err := p.Extra()
	if err != nil {
		return false, err
	}

	if !bytes.Equal(extra, s.Extra) {
		return false, nil
	}

	return crypto.Verify(s.KeyType, pub, msg, s.Signature), nil
}

// addressType finds the runtime's address type, from the V15 extrinsic metadata
// or the Address parameter of the V14 extrinsic type
func addressType(reg *metadata.Registry) (metadata.TypeID, bool) {
	if reg.Version >= metadata.V15 {
		return reg.Extrinsic.AddressType, true
	}

	t, ok := reg.Type(reg.Extrinsic.Type)
	if !ok {
		return 0, false
	}

	for _, param := range t.Params {
		if param.Name == "Address" && param.Type != nil {
			return *param.Type, true
		}
	}

	return 0, false
}

// rawAddress reports whether the runtime uses a plain 32-byte account as address
func rawAddress(reg *metadata.Registry) (bool, error) {
	if reg == nil {
		return false, nil
	}

	id, ok := addressType(reg)
	if !ok {
		return false, nil
	}

	t, ok := reg.Type(id)
	if !ok {
		return false, fmt.Errorf("%w: %d", metadata.ErrDanglingType, id)
	}

	switch t.Def.Kind {
	case metadata.KindVariant:
		v, ok := t.Def.VariantByIndex(multiAddressID)
		if !ok || v.Name != "Id" {
			return false, fmt.Errorf("%w: %s", ErrUnsupportedAddress, t.PathString())
		}

		return false, nil
	case metadata.KindComposite, metadata.KindArray:
		return true, nil
	default:
		return false, fmt.Errorf("%w: %s", ErrUnsupportedAddress, t.Name())
	}
}

// DecodeExtrinsic parses a length prefixed envelope. With a registry the signed
// extensions are read in runtime order, otherwise the default era, nonce, tip layout is assumed
func DecodeExtrinsic(b []byte, reg *metadata.Registry) (*SignedExtrinsic, error) {
	d := scale.NewDecoder(b)

	n, err := d.Length(1)
	if err != nil {
		return nil, err
	}

	if n != d.Remaining() {
		return nil, d.Errorf("extrinsic body", fmt.Errorf("%w: length prefix %d, body %d", scale.ErrTrailingBytes, n, d.Remaining()))
	}

	start := d.Offset()

	version, err := d.Uint8()
	if err != nil {
		return nil, err
	}

	if version&versionMask != Version {
		return nil, &scale.DecodeError{Offset: start, Expected: "extrinsic version", Err: fmt.Errorf("%w: %d", ErrUnsupportedExtrinsicVersion, version&versionMask)}
	}

	x := &SignedExtrinsic{Version: version & versionMask}

	if version&signedBit != 0 {
		if x.Signature, err = decodeSignature(d, b, reg); err != nil {
			return nil, err
		}
	}

	call, err := d.Read(d.Remaining(), "call")
	if err != nil {
		return nil, err
	}

	if len(call) < 2 {
		return nil, d.Errorf("call", scale.ErrUnexpectedEOF)
	}

	x.Call = append([]byte{}, call...)

	return x, nil
}

func decodeSignature(d *scale.Decoder, b []byte, reg *metadata.Registry) (*Signature, error) {
	raw, err := rawAddress(reg)
	if err != nil {
		return nil, err
	}

	s := &Signature{RawAddress: raw, Tip: new(big.Int)}

	if !raw {
		off := d.Offset()

		kind, err := d.Uint8()
		if err != nil {
			return nil, err
		}

		if kind != multiAddressID {
			return nil, &scale.DecodeError{Offset: off, Expected: "MultiAddress::Id", Err: fmt.Errorf("%w: variant %d", ErrUnsupportedAddress, kind)}
		}
	}

	signer, err := d.Read(types.AccountIDLength, "account id")
	if err != nil {
		return nil, err
	}

	copy(s.Signer[:], signer)

	off := d.Offset()

	idx, err := d.Uint8()
	if err != nil {
		return nil, err
	}

	for kt, i := range signatureIndex {
		if i == idx {
			s.KeyType = kt
		}
	}

	if s.KeyType == "" {
		return nil, &scale.DecodeError{Offset: off, Expected: "MultiSignature", Err: fmt.Errorf("%w: variant %d", ErrUnsupportedSignature, idx)}
	}

	sig, err := d.Read(signatureLength[s.KeyType], "signature")
	if err != nil {
		return nil, err
	}

	s.Signature = append([]byte{}, sig...)

	extraStart := d.Offset()

	if reg == nil || len(reg.Extrinsic.SignedExtensions) == 0 {
		err = decodeDefaultExtra(d, s)
	} else {
		err = decodeExtensions(d, s, reg)
	}

	if err != nil {
		return nil, err
	}

	s.Extra = append([]byte{}, b[extraStart:d.Offset()]...)

	return s, nil
}

func decodeDefaultExtra(d *scale.Decoder, s *Signature) error {
	var err error

	if s.Era, err = DecodeEra(d); err != nil {
		return err
	}

	if s.Nonce, err = d.Compact(); err != nil {
		return err
	}

	s.Tip, err = d.CompactBig()

	return err
}

func decodeExtensions(d *scale.Decoder, s *Signature, reg *metadata.Registry) error {
	var err error

	for _, ext := range reg.Extrinsic.SignedExtensions {
		switch ext.Identifier {
		case "CheckMortality", "CheckEra":
			s.Era, err = DecodeEra(d)
		case "CheckNonce":
			s.Nonce, err = d.Compact()
		case "ChargeTransactionPayment":
			s.Tip, err = d.CompactBig()
		case "ChargeAssetTxPayment":
			if s.Tip, err = d.CompactBig(); err == nil {
				_, err = decodeAssetID(d, ext, reg)
			}
		default:
			_, err = value.DecodeWith(d, ext.Type, reg)
		}

		if err != nil {
			return fmt.Errorf("signed extension %s: %w", ext.Identifier, err)
		}
	}

	return nil
}

// decodeAssetID skips the optional asset id following the tip of ChargeAssetTxPayment
func decodeAssetID(d *scale.Decoder, ext metadata.SignedExtension, reg *metadata.Registry) (bool, error) {
	t, ok := reg.Type(ext.Type)
	if !ok || t.Def.Kind != metadata.KindComposite || len(t.Def.Fields) != 2 {
		some, err := d.OptionFlag()

		return some, err
	}

	_, err := value.DecodeWith(d, t.Def.Fields[1].Type, reg)

	return err == nil, err
}
