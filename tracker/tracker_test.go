package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xPolygon/substrate-client/crypto"
	"github.com/0xPolygon/substrate-client/events"
	"github.com/0xPolygon/substrate-client/helper/hex"
	"github.com/0xPolygon/substrate-client/jsonrpc"
	"github.com/0xPolygon/substrate-client/jsonrpc/jsonrpctest"
	"github.com/0xPolygon/substrate-client/metadata"
	"github.com/0xPolygon/substrate-client/metadata/metadatatest"
	"github.com/0xPolygon/substrate-client/types"
	"github.com/0xPolygon/substrate-client/value"
)

var (
	alice = hex.MustDecodeHex("0xd43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d")
	bob   = hex.MustDecodeHex("0x8eaf04151687736326c9fea17e25fc5287613693c912909cb226aa4794f26a48")

	h1 = types.BytesToHash([]byte{0x11})
	h2 = types.BytesToHash([]byte{0x22})
	h3 = types.BytesToHash([]byte{0x33})

	ours    = types.HexBytes{0x28, 0x04, 0x05, 0x00, 0xaa}
	inherit = types.HexBytes{0x28, 0x04, 0x03, 0x00, 0x0b}
	other   = types.HexBytes{0x28, 0x04, 0x05, 0x00, 0xbb}

	oursHash = crypto.Blake2_256Hash(ours)
)

type testChain struct {
	reg    *metadata.Registry
	node   *jsonrpctest.Node
	client *jsonrpc.SubstrateClient
}

func record(t *testing.T, reg *metadata.Registry, idx uint32, module, name string, fields ...value.Value) *events.EventRecord {
	t.Helper()

	r, err := events.NewRecord(reg, events.Phase{Kind: events.ApplyExtrinsic, ExtrinsicIndex: idx}, module, name, fields...)
	require.NoError(t, err)

	return r
}

// newTestChain serves three blocks:
// h1 includes ours at position 1 with a successful dispatch,
// h2 includes ours at position 2 where it fails with InsufficientBalance,
// h3 does not include it
func newTestChain(t *testing.T) *testChain {
	t.Helper()

	reg, _ := metadatatest.MustResolve(metadata.V14)
	dispatchInfo := metadatatest.DispatchInfo()

	encode := func(records ...*events.EventRecord) types.HexBytes {
		b, err := events.Encode(records, reg)
		require.NoError(t, err)

		return b
	}

	blocks := map[types.Hash][]types.HexBytes{
		h1: {inherit, ours, other},
		h2: {inherit, other, ours},
		h3: {inherit, other},
	}

	storage := map[types.Hash]types.HexBytes{
		h1: encode(
			record(t, reg, 0, "System", "ExtrinsicSuccess", dispatchInfo),
			record(t, reg, 1, "Balances", "Withdraw", value.Bytes(alice), value.Uint(150)),
			record(t, reg, 1, "Balances", "Transfer", value.Bytes(alice), value.Bytes(bob), value.Uint(1000)),
			record(t, reg, 1, "System", "ExtrinsicSuccess", dispatchInfo),
			record(t, reg, 2, "System", "ExtrinsicFailed", value.Variant("BadOrigin"), dispatchInfo),
		),
		h2: encode(
			record(t, reg, 0, "System", "ExtrinsicSuccess", dispatchInfo),
			record(t, reg, 1, "System", "ExtrinsicSuccess", dispatchInfo),
			record(t, reg, 2, "Balances", "Withdraw", value.Bytes(alice), value.Uint(150)),
			record(t, reg, 2, "System", "ExtrinsicFailed",
				metadatatest.ModuleDispatchError(metadatatest.BalancesIndex, 2), dispatchInfo),
		),
		h3: encode(
			record(t, reg, 0, "System", "ExtrinsicSuccess", dispatchInfo),
			record(t, reg, 1, "System", "ExtrinsicSuccess", dispatchInfo),
		),
	}

	node := jsonrpctest.NewNode()

	node.Handle("chain_getBlock", func(params []interface{}) (interface{}, error) {
		hash, _ := params[0].(types.Hash)

		exts, ok := blocks[hash]
		if !ok {
			return nil, nil
		}

		return types.SignedBlock{Block: types.Block{
			Header:     types.Header{Number: 7},
			Extrinsics: exts,
		}}, nil
	})

	node.Handle("state_getStorage", func(params []interface{}) (interface{}, error) {
		hash, _ := params[1].(types.Hash)

		raw, ok := storage[hash]
		if !ok {
			return nil, nil
		}

		return raw, nil
	})

	return &testChain{reg: reg, node: node, client: jsonrpc.NewSubstrateClient(node)}
}

func (c *testChain) tracker(opts ...ConfigOption) *Tracker {
	return NewTracker(c.client, c.reg, hclog.NewNullLogger(), opts...)
}

func ready() interface{} { return "ready" }
func future() interface{} { return "future" }
func dropped() interface{} { return "dropped" }
func invalid() interface{} { return "invalid" }
func broadcast() interface{} { return map[string][]string{"broadcast": {"12D3KooW"}} }
func inBlock(h types.Hash) interface{} { return map[string]types.Hash{"inBlock": h} }
func finalized(h types.Hash) interface{} { return map[string]types.Hash{"finalized": h} }
func retracted(h types.Hash) interface{} { return map[string]types.Hash{"retracted": h} }
func usurped(h types.Hash) interface{} { return map[string]types.Hash{"usurped": h} }
func timeout(h types.Hash) interface{} { return map[string]types.Hash{"finalityTimeout": h} }

func TestTrack_Finalized(t *testing.T) {
	t.Parallel()

	chain := newTestChain(t)
	sub := jsonrpctest.NewSubscription(ready(), broadcast(), inBlock(h1), finalized(h1))

	res, err := chain.tracker().Track(context.Background(), sub, oursHash)
	require.NoError(t, err)

	assert.Equal(t, Finalized, res.Status.Kind)
	assert.Equal(t, h1, res.Status.Block)
	assert.True(t, res.Included())
	assert.True(t, res.Success())
	assert.Nil(t, res.DispatchError())
	assert.NotEmpty(t, res.ID)

	require.NotNil(t, res.Inclusion)
	assert.Equal(t, uint32(1), res.Inclusion.ExtrinsicIndex)

	// only the events of our position
	evs := res.Events()
	require.Len(t, evs, 3)
	assert.True(t, evs[0].Is("Balances", "Withdraw"))
	assert.True(t, evs[1].Is("Balances", "Transfer"))
	assert.True(t, evs[2].Is("System", "ExtrinsicSuccess"))

	kinds := make([]StatusKind, len(res.History))
	for i, s := range res.History {
		kinds[i] = s.Kind
	}

	assert.Equal(t, []StatusKind{Ready, Broadcast, InBlock, Finalized}, kinds)
	assert.True(t, sub.Unsubscribed())

	// events were fetched only once, at finality
	assert.Len(t, chain.node.Calls("state_getStorage"), 1)
}

func TestTrack_DispatchFailure(t *testing.T) {
	t.Parallel()

	chain := newTestChain(t)
	sub := jsonrpctest.NewSubscription(ready(), inBlock(h2), finalized(h2))

	res, err := chain.tracker().Track(context.Background(), sub, oursHash)
	require.NoError(t, err)

	// included, yet the call itself failed
	assert.True(t, res.Included())
	assert.False(t, res.Success())

	dispatchErr := res.DispatchError()
	require.NotNil(t, dispatchErr)
	assert.Equal(t, "Balances", dispatchErr.Module)
	assert.Equal(t, "InsufficientBalance", dispatchErr.Name)

	require.Len(t, res.Events(), 2)
	assert.Equal(t, uint32(2), res.Inclusion.ExtrinsicIndex)
}

func TestTrack_TerminalConvergence(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		stream   []interface{}
		expected StatusKind
		pending  int
	}{
		{"dropped", []interface{}{future(), ready(), dropped(), ready(), finalized(h1)}, Dropped, 2},
		{"invalid", []interface{}{invalid(), finalized(h1)}, Invalid, 1},
		{"node finality timeout", []interface{}{ready(), inBlock(h1), timeout(h1), finalized(h1)}, FinalityTimeout, 1},
		{"finalized", []interface{}{ready(), finalized(h1), dropped()}, Finalized, 1},
	}

	for _, c := range cases {
		c := c

		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			chain := newTestChain(t)
			sub := jsonrpctest.NewSubscription(c.stream...)

			res, err := chain.tracker().Track(context.Background(), sub, oursHash)
			require.NoError(t, err)

			assert.Equal(t, c.expected, res.Status.Kind)
			assert.True(t, res.Status.IsTerminal())
			assert.Equal(t, c.pending, sub.Pending())
			assert.True(t, sub.Unsubscribed())

			if c.expected != Finalized {
				assert.False(t, res.Included())
				assert.False(t, res.Success())
			}
		})
	}
}

func TestTrack_WaitForInBlock(t *testing.T) {
	t.Parallel()

	chain := newTestChain(t)
	sub := jsonrpctest.NewSubscription(ready(), inBlock(h1), finalized(h1))

	var (
		lock     sync.Mutex
		reported []*Inclusion
	)

	handler := func(id string, inclusion *Inclusion) {
		lock.Lock()
		defer lock.Unlock()

		reported = append(reported, inclusion)
	}

	res, err := chain.tracker(WithWaitFor(WaitForInBlock), WithInBlockEvents(handler)).
		Track(context.Background(), sub, oursHash)
	require.NoError(t, err)

	assert.Equal(t, InBlock, res.Status.Kind)
	assert.True(t, res.Success())
	assert.Equal(t, 1, sub.Pending())
	require.Len(t, reported, 1)
	assert.Equal(t, h1, reported[0].BlockHash)
}

func TestTrack_InBlockEventsThroughReorg(t *testing.T) {
	t.Parallel()

	chain := newTestChain(t)
	sub := jsonrpctest.NewSubscription(ready(), inBlock(h2), retracted(h2), inBlock(h1), finalized(h1))

	var blocks []types.Hash

	handler := func(id string, inclusion *Inclusion) {
		blocks = append(blocks, inclusion.BlockHash)
	}

	res, err := chain.tracker(WithInBlockEvents(handler)).Track(context.Background(), sub, oursHash)
	require.NoError(t, err)

	// the failed dispatch in the retracted block does not leak into the result
	assert.Equal(t, []types.Hash{h2, h1}, blocks)
	assert.True(t, res.Success())
	assert.Equal(t, h1, res.Inclusion.BlockHash)
}

func TestTrack_ReorgCycles(t *testing.T) {
	t.Parallel()

	replacement := types.BytesToHash([]byte{0x99})

	cases := []struct {
		name     string
		cycles   int
		stream   []interface{}
		expected StatusKind
	}{
		{"tolerated", 1, []interface{}{ready(), usurped(replacement), inBlock(h1), finalized(h1)}, Finalized},
		{"exceeded", 1, []interface{}{ready(), usurped(replacement), retracted(h1), finalized(h1)}, Retracted},
		{"no tolerance", 0, []interface{}{ready(), usurped(replacement), finalized(h1)}, Usurped},
	}

	for _, c := range cases {
		c := c

		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			chain := newTestChain(t)
			sub := jsonrpctest.NewSubscription(c.stream...)

			res, err := chain.tracker(WithMaxReorgCycles(c.cycles)).Track(context.Background(), sub, oursHash)
			require.NoError(t, err)
			assert.Equal(t, c.expected, res.Status.Kind)

			if c.expected != Finalized {
				assert.False(t, res.Included())
				assert.Equal(t, 1, sub.Pending())
			}
		})
	}
}

func TestTrack_StreamClosed(t *testing.T) {
	t.Parallel()

	chain := newTestChain(t)

	sub := jsonrpctest.NewSubscription(ready(), broadcast())
	sub.End(errors.New("connection lost"))

	_, err := chain.tracker().Track(context.Background(), sub, oursHash)
	require.ErrorIs(t, err, ErrSubscriptionClosed)

	var trackErr *TrackingError
	require.True(t, errors.As(err, &trackErr))
	assert.Equal(t, Broadcast, trackErr.LastStatus.Kind)
	assert.Equal(t, oursHash, trackErr.ExtrinsicHash)
	assert.Contains(t, err.Error(), "connection lost")
}

func TestTrack_Aborted(t *testing.T) {
	t.Parallel()

	chain := newTestChain(t)
	sub := jsonrpctest.NewSubscription(ready())

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := chain.tracker().Track(ctx, sub, oursHash)
	require.ErrorIs(t, err, ErrTrackingAborted)
	assert.True(t, sub.Unsubscribed())
}

func TestTrack_Timeout(t *testing.T) {
	t.Parallel()

	chain := newTestChain(t)
	sub := jsonrpctest.NewSubscription(ready(), inBlock(h1))

	res, err := chain.tracker(WithTimeout(30*time.Millisecond)).Track(context.Background(), sub, oursHash)
	require.NoError(t, err)

	assert.Equal(t, FinalityTimeout, res.Status.Kind)
	assert.Equal(t, h1, res.Status.Block)
	assert.False(t, res.Included())
	assert.True(t, sub.Unsubscribed())
}

func TestTrack_Failures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		stream   []interface{}
		expected error
	}{
		{"malformed", []interface{}{ready(), map[string]int{"weird": 1}}, ErrMalformedStatus},
		{"not in block", []interface{}{finalized(h3)}, ErrExtrinsicNotInBlock},
		{"unknown block", []interface{}{finalized(types.BytesToHash([]byte{0x77}))}, jsonrpc.ErrBlockNotFound},
	}

	for _, c := range cases {
		c := c

		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			chain := newTestChain(t)

			_, err := chain.tracker().Track(context.Background(), jsonrpctest.NewSubscription(c.stream...), oursHash)
			require.ErrorIs(t, err, c.expected)

			var trackErr *TrackingError
			require.True(t, errors.As(err, &trackErr))
		})
	}
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	hash := "0x0000000000000000000000000000000000000000000000000000000000000011"

	cases := []struct {
		input    string
		expected TransactionStatus
		terminal bool
	}{
		{`"future"`, TransactionStatus{Kind: Future}, false},
		{`"ready"`, TransactionStatus{Kind: Ready}, false},
		{`"dropped"`, TransactionStatus{Kind: Dropped}, true},
		{`"invalid"`, TransactionStatus{Kind: Invalid}, true},
		{`{"broadcast":["a","b"]}`, TransactionStatus{Kind: Broadcast, Peers: []string{"a", "b"}}, false},
		{`{"inBlock":"` + hash + `"}`, TransactionStatus{Kind: InBlock, Block: h1}, false},
		{`{"retracted":"` + hash + `"}`, TransactionStatus{Kind: Retracted, Block: h1}, false},
		{`{"finalityTimeout":"` + hash + `"}`, TransactionStatus{Kind: FinalityTimeout, Block: h1}, true},
		{`{"finalized":"` + hash + `"}`, TransactionStatus{Kind: Finalized, Block: h1}, true},
		{`{"usurped":"` + hash + `"}`, TransactionStatus{Kind: Usurped, Usurper: h1}, false},
	}

	for _, c := range cases {
		status, err := ParseStatus(json.RawMessage(c.input))
		require.NoError(t, err, c.input)
		assert.Equal(t, c.expected, status)
		assert.Equal(t, c.terminal, status.IsTerminal())
	}

	for _, bad := range []string{`"unknown"`, `{}`, `{"inBlock":"0x12"}`, `{"a":1,"b":2}`, `42`} {
		_, err := ParseStatus(json.RawMessage(bad))
		require.ErrorIs(t, err, ErrMalformedStatus, bad)
	}
}

func TestParseWaitFor(t *testing.T) {
	t.Parallel()

	w, err := ParseWaitFor("inblock")
	require.NoError(t, err)
	assert.Equal(t, WaitForInBlock, w)

	w, err = ParseWaitFor("finalized")
	require.NoError(t, err)
	assert.Equal(t, WaitForFinalized, w)

	_, err = ParseWaitFor("soon")
	require.Error(t, err)
}
