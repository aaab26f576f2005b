package jsonrpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/0xPolygon/substrate-client/helper/hex"
	"github.com/0xPolygon/substrate-client/scale"
	"github.com/0xPolygon/substrate-client/types"
)

var (
	ErrBlockNotFound              = errors.New("block not found")
	ErrMetadataVersionUnavailable = errors.New("metadata version not available")
)

const metadataAtVersionCall = "Metadata_metadata_at_version"

// SubstrateClient is a typed wrapper around a Client for the node rpc methods the library uses
type SubstrateClient struct {
	client Client
}

// NewSubstrateClient creates a new SubstrateClient
func NewSubstrateClient(client Client) *SubstrateClient {
	return &SubstrateClient{client: client}
}

// Client returns the underlying transport
func (s *SubstrateClient) Client() Client {
	return s.client
}

func (s *SubstrateClient) Close() error {
	return s.client.Close()
}

// atParams appends the optional block hash parameter
func atParams(at *types.Hash, params ...interface{}) []interface{} {
	if at != nil {
		params = append(params, *at)
	}

	return params
}

// Metadata returns the raw metadata blob, at the given block or the best one
func (s *SubstrateClient) Metadata(ctx context.Context, at *types.Hash) ([]byte, error) {
	var res types.HexBytes
	if err := s.client.Call(ctx, "state_getMetadata", &res, atParams(at)...); err != nil {
		return nil, err
	}

	return res, nil
}

// MetadataAtVersion asks the runtime for a specific metadata version through the
// metadata runtime api. ErrMetadataVersionUnavailable means the runtime does not offer it
func (s *SubstrateClient) MetadataAtVersion(ctx context.Context, version uint32, at *types.Hash) ([]byte, error) {
	e := scale.AcquireEncoder()
	defer scale.ReleaseEncoder(e)

	e.PutUint32(version)

	var res types.HexBytes
	if err := s.client.Call(ctx, "state_call", &res,
		atParams(at, metadataAtVersionCall, hex.EncodeToHex(e.Bytes()))...); err != nil {
		return nil, err
	}

	// Option<OpaqueMetadata>, the opaque blob is itself a byte vector
	d := scale.NewDecoder(res)

	some, err := d.OptionFlag()
	if err != nil {
		return nil, err
	}

	if !some {
		return nil, fmt.Errorf("%w: v%d", ErrMetadataVersionUnavailable, version)
	}

	blob, err := d.Bytes()
	if err != nil {
		return nil, err
	}

	if err := d.Done(); err != nil {
		return nil, err
	}

	return blob, nil
}

// BlockHash returns the hash of block n, or of the best block when n is nil
func (s *SubstrateClient) BlockHash(ctx context.Context, n *uint64) (types.Hash, error) {
	var params []interface{}
	if n != nil {
		params = append(params, *n)
	}

	var res *types.Hash
	if err := s.client.Call(ctx, "chain_getBlockHash", &res, params...); err != nil {
		return types.ZeroHash, err
	}

	if res == nil {
		if n != nil {
			return types.ZeroHash, fmt.Errorf("%w: #%d", ErrBlockNotFound, *n)
		}

		return types.ZeroHash, ErrBlockNotFound
	}

	return *res, nil
}

// GenesisHash is the hash of block 0
func (s *SubstrateClient) GenesisHash(ctx context.Context) (types.Hash, error) {
	zero := uint64(0)

	return s.BlockHash(ctx, &zero)
}

func (s *SubstrateClient) FinalizedHead(ctx context.Context) (types.Hash, error) {
	var res types.Hash
	err := s.client.Call(ctx, "chain_getFinalizedHead", &res)

	return res, err
}

// Header returns a block header, of the best block when hash is nil
func (s *SubstrateClient) Header(ctx context.Context, hash *types.Hash) (*types.Header, error) {
	var res *types.Header
	if err := s.client.Call(ctx, "chain_getHeader", &res, atParams(hash)...); err != nil {
		return nil, err
	}

	if res == nil {
		return nil, ErrBlockNotFound
	}

	return res, nil
}

// Block returns a block with its encoded extrinsics, the best block when hash is nil
func (s *SubstrateClient) Block(ctx context.Context, hash *types.Hash) (*types.SignedBlock, error) {
	var res *types.SignedBlock
	if err := s.client.Call(ctx, "chain_getBlock", &res, atParams(hash)...); err != nil {
		return nil, err
	}

	if res == nil {
		return nil, ErrBlockNotFound
	}

	return res, nil
}

func (s *SubstrateClient) RuntimeVersion(ctx context.Context, at *types.Hash) (*types.RuntimeVersion, error) {
	var res types.RuntimeVersion
	if err := s.client.Call(ctx, "state_getRuntimeVersion", &res, atParams(at)...); err != nil {
		return nil, err
	}

	return &res, nil
}

// AccountNextIndex returns the next nonce of an account, pool transactions included
func (s *SubstrateClient) AccountNextIndex(ctx context.Context, account types.AccountID) (uint64, error) {
	var res uint64
	err := s.client.Call(ctx, "system_accountNextIndex", &res, account.String())

	return res, err
}

// Storage reads a raw storage value. The boolean is false when the key holds nothing
func (s *SubstrateClient) Storage(ctx context.Context, key []byte, at *types.Hash) ([]byte, bool, error) {
	var res *types.HexBytes
	if err := s.client.Call(ctx, "state_getStorage", &res, atParams(at, hex.EncodeToHex(key))...); err != nil {
		return nil, false, err
	}

	if res == nil {
		return nil, false, nil
	}

	return *res, true, nil
}

// SubmitExtrinsic submits an encoded extrinsic and returns its hash
func (s *SubstrateClient) SubmitExtrinsic(ctx context.Context, ext []byte) (types.Hash, error) {
	var res types.Hash
	err := s.client.Call(ctx, "author_submitExtrinsic", &res, hex.EncodeToHex(ext))

	return res, err
}

// SubmitAndWatchExtrinsic submits an encoded extrinsic and subscribes to its status updates
func (s *SubstrateClient) SubmitAndWatchExtrinsic(ctx context.Context, ext []byte) (Subscription, error) {
	return s.client.Subscribe(ctx, "author_submitAndWatchExtrinsic", "author_unwatchExtrinsic", hex.EncodeToHex(ext))
}
