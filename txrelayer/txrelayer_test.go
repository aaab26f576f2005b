package txrelayer

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xPolygon/substrate-client/crypto"
	"github.com/0xPolygon/substrate-client/events"
	"github.com/0xPolygon/substrate-client/extrinsic"
	"github.com/0xPolygon/substrate-client/helper/hex"
	"github.com/0xPolygon/substrate-client/jsonrpc"
	"github.com/0xPolygon/substrate-client/jsonrpc/jsonrpctest"
	"github.com/0xPolygon/substrate-client/metadata"
	"github.com/0xPolygon/substrate-client/metadata/metadatatest"
	"github.com/0xPolygon/substrate-client/tracker"
	"github.com/0xPolygon/substrate-client/types"
	"github.com/0xPolygon/substrate-client/value"
)

var (
	genesis  = types.MustParseHash("0xb0a8d493285c2df73290dfb7e61f870f17b41801197a149ca93654499ea3dafe")
	head     = types.BytesToHash([]byte{0x64})
	birth    = types.BytesToHash([]byte{0x60})
	included = types.BytesToHash([]byte{0xbb})

	bob = hex.MustDecodeHex("0x8eaf04151687736326c9fea17e25fc5287613693c912909cb226aa4794f26a48")
)

// testNode is a chain at finalized block #100 running the standard V14 runtime
type testNode struct {
	*jsonrpctest.Node

	reg *metadata.Registry

	lock      sync.Mutex
	nonces    []uint64
	rejects   []*jsonrpc.ErrorObject
	submitted [][]byte
}

func newTestNode(t *testing.T) *testNode {
	t.Helper()

	reg, _ := metadatatest.MustResolve(metadata.V14)

	n := &testNode{Node: jsonrpctest.NewNode(), reg: reg}

	n.Handle("chain_getBlockHash", func(params []interface{}) (interface{}, error) {
		switch params[0].(uint64) {
		case 0:
			return genesis, nil
		case 96:
			return birth, nil
		default:
			return nil, nil
		}
	})
	n.HandleResult("chain_getFinalizedHead", head)
	n.HandleResult("chain_getHeader", types.Header{Number: 100})
	n.HandleResult("state_getRuntimeVersion", types.RuntimeVersion{SpecName: "node", SpecVersion: 100, TransactionVersion: 1})
	// no metadata runtime api, the default blob is used
	n.HandleResult("state_call", "0x00")
	n.HandleResult("state_getMetadata", types.HexBytes(metadatatest.StandardBlob(metadata.V14)))

	n.Handle("system_accountNextIndex", func([]interface{}) (interface{}, error) {
		n.lock.Lock()
		defer n.lock.Unlock()

		next := n.nonces[0]
		if len(n.nonces) > 1 {
			n.nonces = n.nonces[1:]
		}

		return next, nil
	})

	n.HandleSubscribe("author_submitAndWatchExtrinsic", func(params []interface{}) (*jsonrpctest.Subscription, error) {
		ext := hex.MustDecodeHex(params[0].(string))

		n.lock.Lock()
		defer n.lock.Unlock()

		n.submitted = append(n.submitted, ext)

		if len(n.rejects) > 0 {
			reject := n.rejects[0]
			n.rejects = n.rejects[1:]

			if reject != nil {
				return nil, reject
			}
		}

		return jsonrpctest.NewSubscription(
			"ready",
			map[string]types.Hash{"inBlock": included},
			map[string]types.Hash{"finalized": included},
		), nil
	})

	n.Handle("author_submitExtrinsic", func(params []interface{}) (interface{}, error) {
		ext := hex.MustDecodeHex(params[0].(string))

		n.lock.Lock()
		n.submitted = append(n.submitted, ext)
		n.lock.Unlock()

		return crypto.Blake2_256Hash(ext), nil
	})

	n.Handle("chain_getBlock", func([]interface{}) (interface{}, error) {
		n.lock.Lock()
		defer n.lock.Unlock()

		last := n.submitted[len(n.submitted)-1]

		return types.SignedBlock{Block: types.Block{
			Header:     types.Header{Number: 101},
			Extrinsics: []types.HexBytes{{0x04, 0x03, 0x00}, last},
		}}, nil
	})

	success, err := events.NewRecord(reg, events.Phase{Kind: events.ApplyExtrinsic, ExtrinsicIndex: 1},
		"System", "ExtrinsicSuccess", metadatatest.DispatchInfo())
	require.NoError(t, err)

	blob, err := events.Encode(events.Records{success}, reg)
	require.NoError(t, err)

	n.HandleResult("state_getStorage", types.HexBytes(blob))

	return n
}

func (n *testNode) setNonces(nonces ...uint64) {
	n.lock.Lock()
	defer n.lock.Unlock()

	n.nonces = nonces
}

func (n *testNode) reject(errs ...*jsonrpc.ErrorObject) {
	n.lock.Lock()
	defer n.lock.Unlock()

	n.rejects = errs
}

func (n *testNode) submissions() [][]byte {
	n.lock.Lock()
	defer n.lock.Unlock()

	return append([][]byte{}, n.submitted...)
}

func newRelayer(t *testing.T, node *testNode, opts ...RelayerOption) *TxRelayer {
	t.Helper()

	r, err := NewTxRelayer(jsonrpc.NewSubstrateClient(node), hclog.NewNullLogger(), opts...)
	require.NoError(t, err)

	return r
}

func testSigner(t *testing.T) crypto.Signer {
	t.Helper()

	signer, err := crypto.NewSigner(crypto.KeyEd25519, bytes.Repeat([]byte{0x42}, crypto.SeedLength))
	require.NoError(t, err)

	return signer
}

func transferArgs() []value.Value {
	return []value.Value{value.Bytes(bob), value.Uint(1000)}
}

func TestSendCall(t *testing.T) {
	t.Parallel()

	node := newTestNode(t)
	node.setNonces(7)

	signer := testSigner(t)
	relayer := newRelayer(t, node, WithTip(big.NewInt(5)))

	res, err := relayer.SendCall(context.Background(), signer, "Balances", "transfer", transferArgs()...)
	require.NoError(t, err)

	assert.Equal(t, tracker.Finalized, res.Status.Kind)
	assert.True(t, res.Success())
	assert.Equal(t, uint32(1), res.Inclusion.ExtrinsicIndex)

	subs := node.submissions()
	require.Len(t, subs, 1)

	ext, err := extrinsic.DecodeExtrinsic(subs[0], node.reg)
	require.NoError(t, err)
	require.True(t, ext.IsSigned())

	assert.Equal(t, uint64(7), ext.Signature.Nonce)
	assert.Equal(t, int64(5), ext.Signature.Tip.Int64())
	assert.True(t, ext.Signature.Era.IsImmortal())
	assert.Equal(t, signer.AccountID(), ext.Signature.Signer)

	ok, err := ext.Verify(extrinsic.ChainInfo{SpecVersion: 100, TransactionVersion: 1, GenesisHash: genesis}, node.reg, signer.PublicKey())
	require.NoError(t, err)
	assert.True(t, ok)

	hash, err := ext.Hash()
	require.NoError(t, err)
	assert.Equal(t, hash, res.ExtrinsicHash)
}

func TestSendTxn_MortalEra(t *testing.T) {
	t.Parallel()

	cases := []struct {
		period     uint64
		checkpoint types.Hash
		era        extrinsic.Era
	}{
		// birth is the finalized head itself
		{64, head, extrinsic.Era{Period: 64, Phase: 36}},
		// 2^16 quantizes the phase to multiples of 16, the era starts at #96
		{65536, birth, extrinsic.Era{Period: 65536, Phase: 96}},
	}

	for _, c := range cases {
		node := newTestNode(t)
		node.setNonces(0)

		signer := testSigner(t)
		relayer := newRelayer(t, node, WithMortality(c.period))

		state, err := relayer.ChainState(context.Background())
		require.NoError(t, err)

		call, err := extrinsic.BuildCall(state.Registry, "Balances", "transfer", transferArgs()...)
		require.NoError(t, err)

		hash, err := relayer.SendTxnNoWait(context.Background(), signer, call)
		require.NoError(t, err)

		subs := node.submissions()
		require.Len(t, subs, 1)
		assert.Equal(t, crypto.Blake2_256Hash(subs[0]), hash)

		ext, err := extrinsic.DecodeExtrinsic(subs[0], node.reg)
		require.NoError(t, err)
		assert.Equal(t, c.era, ext.Signature.Era)

		chain := extrinsic.ChainInfo{SpecVersion: 100, TransactionVersion: 1, GenesisHash: genesis, CheckpointHash: c.checkpoint}

		ok, err := ext.Verify(chain, node.reg, signer.PublicKey())
		require.NoError(t, err)
		assert.True(t, ok, "period %d", c.period)
	}
}

func TestSendTxn_NonceRetry(t *testing.T) {
	t.Parallel()

	node := newTestNode(t)
	node.setNonces(3, 4)
	node.reject(&jsonrpc.ErrorObject{Code: 1014, Message: "Priority is too low: (186 vs 186)"})

	relayer := newRelayer(t, node, WithNonceRetry(2, time.Millisecond))

	res, err := relayer.SendCall(context.Background(), testSigner(t), "Balances", "transfer", transferArgs()...)
	require.NoError(t, err)
	assert.True(t, res.Success())

	subs := node.submissions()
	require.Len(t, subs, 2)

	first, err := extrinsic.DecodeExtrinsic(subs[0], node.reg)
	require.NoError(t, err)

	second, err := extrinsic.DecodeExtrinsic(subs[1], node.reg)
	require.NoError(t, err)

	assert.Equal(t, uint64(3), first.Signature.Nonce)
	assert.Equal(t, uint64(4), second.Signature.Nonce)
}

func TestSendTxn_Rejected(t *testing.T) {
	t.Parallel()

	outdated := &jsonrpc.ErrorObject{Code: 1010, Message: "Invalid Transaction", Data: "Transaction is outdated"}
	lowBalance := &jsonrpc.ErrorObject{Code: 1010, Message: "Invalid Transaction", Data: "Inability to pay some fees (e.g. account balance too low)"}

	cases := []struct {
		name     string
		retries  uint64
		rejects  []*jsonrpc.ErrorObject
		attempts int
		expected *jsonrpc.ErrorObject
	}{
		{"not retried", 3, []*jsonrpc.ErrorObject{lowBalance}, 1, lowBalance},
		{"retries exhausted", 1, []*jsonrpc.ErrorObject{outdated, outdated, outdated}, 2, outdated},
		{"retry disabled", 0, []*jsonrpc.ErrorObject{outdated}, 1, outdated},
	}

	for _, c := range cases {
		c := c

		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			node := newTestNode(t)
			node.setNonces(1)
			node.reject(c.rejects...)

			relayer := newRelayer(t, node, WithNonceRetry(c.retries, time.Millisecond))

			_, err := relayer.SendCall(context.Background(), testSigner(t), "Balances", "transfer", transferArgs()...)
			require.Error(t, err)

			var subErr *SubmissionError
			require.True(t, errors.As(err, &subErr))
			assert.Equal(t, uint64(1), subErr.Nonce)

			obj, ok := subErr.ErrorObject()
			require.True(t, ok)

			// reported verbatim
			assert.Same(t, c.expected, obj)
			assert.Len(t, node.submissions(), c.attempts)
		})
	}
}

func TestChainState_RegistryCache(t *testing.T) {
	t.Parallel()

	node := newTestNode(t)
	relayer := newRelayer(t, node)

	for i := 0; i < 3; i++ {
		state, err := relayer.ChainState(context.Background())
		require.NoError(t, err)

		assert.Equal(t, genesis, state.Genesis)
		assert.Equal(t, uint64(100), state.BestNumber)
		assert.Equal(t, head, state.BestHash)
		assert.Equal(t, uint32(100), state.Runtime.SpecVersion)
		assert.Equal(t, metadata.V14, state.Registry.Version)
	}

	// resolved once for the runtime version
	assert.Len(t, node.Calls("state_getMetadata"), 1)
	assert.Len(t, node.Calls("state_call"), 1)
}

func TestChainState_Failure(t *testing.T) {
	t.Parallel()

	node := newTestNode(t)
	node.Handle("state_getRuntimeVersion", func([]interface{}) (interface{}, error) {
		return nil, &jsonrpc.ErrorObject{Code: -32000, Message: "Client error: UnknownBlock"}
	})

	_, err := newRelayer(t, node).ChainState(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runtime version")
}

func TestIsNonceConflict(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err      error
		expected bool
	}{
		{&jsonrpc.ErrorObject{Code: 1014, Message: "Priority is too low: (0 vs 0)"}, true},
		{&jsonrpc.ErrorObject{Code: 1010, Message: "Invalid Transaction", Data: "Transaction is outdated"}, true},
		{&jsonrpc.ErrorObject{Code: 1010, Message: "Invalid Transaction", Data: "Transaction is stale"}, true},
		{&jsonrpc.ErrorObject{Code: 1010, Message: "Invalid Transaction", Data: "Bad proof"}, false},
		{&jsonrpc.ErrorObject{Code: 1012, Message: "Transaction is temporarily banned"}, false},
		{errors.New("outdated"), false},
	}

	for _, c := range cases {
		assert.Equal(t, c.expected, IsNonceConflict(c.err), c.err.Error())
	}
}

func TestRegistryAt(t *testing.T) {
	t.Parallel()

	node := newTestNode(t)
	relayer := newRelayer(t, node)

	reg, err := relayer.RegistryAt(context.Background(), &birth)
	require.NoError(t, err)
	assert.Equal(t, metadata.V14, reg.Version)

	calls := node.Calls("state_getMetadata")
	require.Len(t, calls, 1)
	assert.Equal(t, []interface{}{birth}, calls[0])

	// same runtime at the head, served from the cache
	_, err = relayer.RegistryAt(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, node.Calls("state_getMetadata"), 1)
	assert.Len(t, node.Calls("state_getRuntimeVersion"), 2)
}
