package extrinsic

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/0xPolygon/substrate-client/crypto"
	"github.com/0xPolygon/substrate-client/metadata"
	"github.com/0xPolygon/substrate-client/scale"
	"github.com/0xPolygon/substrate-client/types"
)

// PayloadHashThreshold is the signing payload length from which the payload is
// blake2b-256 hashed before signing
const PayloadHashThreshold = 257

// ChainInfo is the chain state a transaction commits to
type ChainInfo struct {
	SpecVersion        uint32
	TransactionVersion uint32
	GenesisHash        types.Hash
	// CheckpointHash is the hash of the era's birth block. Ignored for immortal eras
	CheckpointHash types.Hash
}

type PayloadOption func(*UnsignedPayload)

// WithRegistry assembles the signed extensions the runtime declares instead of the default layout
func WithRegistry(reg *metadata.Registry) PayloadOption {
	return func(p *UnsignedPayload) {
		p.reg = reg
	}
}

// UnsignedPayload is everything a signature commits to. It can be signed exactly once
type UnsignedPayload struct {
	call  []byte
	nonce uint64
	era   Era
	tip   *big.Int
	chain ChainInfo
	reg   *metadata.Registry

	lock     sync.Mutex
	consumed bool
}

func NewUnsignedPayload(call []byte, nonce uint64, era Era, tip *big.Int, chain ChainInfo, opts ...PayloadOption) *UnsignedPayload {
	if tip == nil {
		tip = new(big.Int)
	}

	p := &UnsignedPayload{
		call:  append([]byte{}, call...),
		nonce: nonce,
		era:   era,
		tip:   new(big.Int).Set(tip),
		chain: chain,
	}

	if era.IsImmortal() {
		p.chain.CheckpointHash = chain.GenesisHash
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *UnsignedPayload) Call() []byte {
	return append([]byte{}, p.call...)
}

func (p *UnsignedPayload) Nonce() uint64 {
	return p.nonce
}

func (p *UnsignedPayload) Era() Era {
	return p.era
}

func (p *UnsignedPayload) Tip() *big.Int {
	return new(big.Int).Set(p.tip)
}

func (p *UnsignedPayload) ChainInfo() ChainInfo {
	return p.chain
}

// Extra returns the signed extension data transmitted in the extrinsic
func (p *UnsignedPayload) Extra() ([]byte, error) {
	extra, _, err := p.extensions()

	return extra, err
}

// SigningPayload returns the exact bytes handed to the signer:
// call ++ extra ++ additional, hashed when at least PayloadHashThreshold long
func (p *UnsignedPayload) SigningPayload() ([]byte, error) {
	extra, additional, err := p.extensions()
	if err != nil {
		return nil, err
	}

	raw := make([]byte, 0, len(p.call)+len(extra)+len(additional))
	raw = append(raw, p.call...)
	raw = append(raw, extra...)
	raw = append(raw, additional...)

	if len(raw) >= PayloadHashThreshold {
		return crypto.Blake2_256(raw), nil
	}

	return raw, nil
}

// consume marks the payload as signed, failing on reuse
func (p *UnsignedPayload) consume() error {
	p.lock.Lock()
	defer p.lock.Unlock()

	if p.consumed {
		return ErrPayloadConsumed
	}

	p.consumed = true

	return nil
}

func (p *UnsignedPayload) extensions() ([]byte, []byte, error) {
	extra := scale.AcquireEncoder()
	defer scale.ReleaseEncoder(extra)

	additional := scale.AcquireEncoder()
	defer scale.ReleaseEncoder(additional)

	if p.reg == nil || len(p.reg.Extrinsic.SignedExtensions) == 0 {
		p.putEra(extra)
		extra.PutCompact(p.nonce)

		if err := extra.PutCompactBig(p.tip); err != nil {
			return nil, nil, err
		}

		p.putSpec(additional)
		p.putTx(additional)
		p.putGenesis(additional)
		p.putCheckpoint(additional)

		return extra.CopyBytes(), additional.CopyBytes(), nil
	}

	for _, ext := range p.reg.Extrinsic.SignedExtensions {
		if err := p.putExtension(ext, extra, additional); err != nil {
			return nil, nil, err
		}
	}

	return extra.CopyBytes(), additional.CopyBytes(), nil
}

func (p *UnsignedPayload) putEra(e *scale.Encoder) {
	e.Write(p.era.Encode())
}

func (p *UnsignedPayload) putSpec(e *scale.Encoder) {
	e.PutUint32(p.chain.SpecVersion)
}

func (p *UnsignedPayload) putTx(e *scale.Encoder) {
	e.PutUint32(p.chain.TransactionVersion)
}

func (p *UnsignedPayload) putGenesis(e *scale.Encoder) {
	e.Write(p.chain.GenesisHash.Bytes())
}

func (p *UnsignedPayload) putCheckpoint(e *scale.Encoder) {
	if p.era.IsImmortal() {
		e.Write(p.chain.GenesisHash.Bytes())

		return
	}

	e.Write(p.chain.CheckpointHash.Bytes())
}

func (p *UnsignedPayload) putExtension(ext metadata.SignedExtension, extra, additional *scale.Encoder) error {
	switch ext.Identifier {
	case "CheckNonZeroSender", "CheckWeight", "PrevalidateAttests":
	case "CheckSpecVersion":
		p.putSpec(additional)
	case "CheckTxVersion":
		p.putTx(additional)
	case "CheckGenesis":
		p.putGenesis(additional)
	case "CheckMortality", "CheckEra":
		p.putEra(extra)
		p.putCheckpoint(additional)
	case "CheckNonce":
		extra.PutCompact(p.nonce)
	case "ChargeTransactionPayment":
		if err := extra.PutCompactBig(p.tip); err != nil {
			return err
		}
	case "ChargeAssetTxPayment":
		if err := extra.PutCompactBig(p.tip); err != nil {
			return err
		}

		// no asset id: pay in the native token
		extra.PutOptionFlag(false)
	case "CheckMetadataHash":
		// mode disabled, no hash
		extra.PutUint8(0)
		additional.PutOptionFlag(false)
	default:
		if !zeroSized(p.reg, ext.Type) || !zeroSized(p.reg, ext.AdditionalSigned) {
			return fmt.Errorf("%w: %s", ErrUnsupportedSignedExtension, ext.Identifier)
		}
	}

	return nil
}

// zeroSized reports whether values of the type always encode to nothing
func zeroSized(reg *metadata.Registry, id metadata.TypeID) bool {
	return zeroSizedDepth(reg, id, 0)
}

func zeroSizedDepth(reg *metadata.Registry, id metadata.TypeID, depth int) bool {
	t, ok := reg.Type(id)
	if !ok || depth > 16 {
		return false
	}

	switch t.Def.Kind {
	case metadata.KindTuple:
		for _, member := range t.Def.Tuple {
			if !zeroSizedDepth(reg, member, depth+1) {
				return false
			}
		}

		return true
	case metadata.KindComposite:
		for _, f := range t.Def.Fields {
			if !zeroSizedDepth(reg, f.Type, depth+1) {
				return false
			}
		}

		return true
	case metadata.KindArray:
		return t.Def.Len == 0 || zeroSizedDepth(reg, t.Def.Elem, depth+1)
	default:
		return false
	}
}
