// Package txrelayer builds, signs and submits extrinsics and waits for their outcome
package txrelayer

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/armon/go-metrics"
	"github.com/hashicorp/go-hclog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/0xPolygon/substrate-client/crypto"
	"github.com/0xPolygon/substrate-client/extrinsic"
	"github.com/0xPolygon/substrate-client/jsonrpc"
	"github.com/0xPolygon/substrate-client/metadata"
	"github.com/0xPolygon/substrate-client/tracker"
	"github.com/0xPolygon/substrate-client/types"
	"github.com/0xPolygon/substrate-client/value"
)

const (
	relayerMetrics = "substrate_client"

	defaultRetryBackoff = 500 * time.Millisecond

	// node error codes of a transaction that lost a nonce race
	codeInvalidTransaction = 1010
	codeTooLowPriority     = 1014
)

// SubmissionError is a node rejection of a submitted extrinsic. Err holds the
// node's *jsonrpc.ErrorObject unchanged when the node reported one
type SubmissionError struct {
	ExtrinsicHash types.Hash
	Nonce         uint64
	Err           error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission of %s with nonce %d rejected: %v", e.ExtrinsicHash, e.Nonce, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// ErrorObject returns the node error, if the rejection came from the node
func (e *SubmissionError) ErrorObject() (*jsonrpc.ErrorObject, bool) {
	var obj *jsonrpc.ErrorObject
	ok := errors.As(e.Err, &obj)

	return obj, ok
}

type RelayerOption func(*TxRelayer)

// WithMortality makes extrinsics valid for about period blocks, zero means immortal
func WithMortality(period uint64) RelayerOption {
	return func(t *TxRelayer) {
		t.mortality = period
	}
}

func WithTip(tip *big.Int) RelayerOption {
	return func(t *TxRelayer) {
		t.tip = new(big.Int).Set(tip)
	}
}

// WithNonceRetry resubmits with a fresh nonce up to maxRetries times when
// another transaction took the nonce first
func WithNonceRetry(maxRetries uint64, backoff time.Duration) RelayerOption {
	return func(t *TxRelayer) {
		t.nonceRetries = maxRetries

		if backoff > 0 {
			t.retryBackoff = backoff
		}
	}
}

func WithTrackerOptions(opts ...tracker.ConfigOption) RelayerOption {
	return func(t *TxRelayer) {
		t.trackerOpts = append(t.trackerOpts, opts...)
	}
}

// WithRegistryCache shares resolved registries between relayers
func WithRegistryCache(cache *metadata.Cache) RelayerOption {
	return func(t *TxRelayer) {
		t.cache = cache
	}
}

// ChainState is what a submission needs to know about the chain
type ChainState struct {
	Registry *metadata.Registry
	Runtime  *types.RuntimeVersion
	Genesis  types.Hash
	// BestNumber and BestHash are the finalized block the era starts from
	BestNumber uint64
	BestHash   types.Hash
}

// TxRelayer submits extrinsics signed by a local signer
type TxRelayer struct {
	logger hclog.Logger
	client *jsonrpc.SubstrateClient
	cache  *metadata.Cache

	mortality    uint64
	tip          *big.Int
	nonceRetries uint64
	retryBackoff time.Duration
	trackerOpts  []tracker.ConfigOption
}

func NewTxRelayer(client *jsonrpc.SubstrateClient, logger hclog.Logger, opts ...RelayerOption) (*TxRelayer, error) {
	t := &TxRelayer{
		logger:       logger.Named("txrelayer"),
		client:       client,
		tip:          new(big.Int),
		retryBackoff: defaultRetryBackoff,
	}

	for _, opt := range opts {
		opt(t)
	}

	if t.cache == nil {
		cache, err := metadata.NewCache(0, logger)
		if err != nil {
			return nil, err
		}

		t.cache = cache
	}

	return t, nil
}

// ChainState fetches genesis, runtime version and the finalized head concurrently,
// then resolves the runtime's metadata through the registry cache
func (t *TxRelayer) ChainState(ctx context.Context) (*ChainState, error) {
	var (
		state   = &ChainState{}
		g, gctx = errgroup.WithContext(ctx)
	)

	g.Go(func() error {
		genesis, err := t.client.GenesisHash(gctx)
		if err != nil {
			return fmt.Errorf("failed to fetch genesis hash: %w", err)
		}

		state.Genesis = genesis

		return nil
	})

	g.Go(func() error {
		rv, err := t.client.RuntimeVersion(gctx, nil)
		if err != nil {
			return fmt.Errorf("failed to fetch runtime version: %w", err)
		}

		state.Runtime = rv

		return nil
	})

	g.Go(func() error {
		head, err := t.client.FinalizedHead(gctx)
		if err != nil {
			return fmt.Errorf("failed to fetch finalized head: %w", err)
		}

		header, err := t.client.Header(gctx, &head)
		if err != nil {
			return fmt.Errorf("failed to fetch header %s: %w", head, err)
		}

		state.BestHash, state.BestNumber = head, uint64(header.Number)

		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	reg, err := t.Registry(ctx, state.Runtime.SpecVersion)
	if err != nil {
		return nil, err
	}

	state.Registry = reg

	return state, nil
}

// Registry returns the resolved metadata of a runtime version, fetching it on a cache miss.
// V15 is asked for first, nodes without the metadata runtime api get the default version
func (t *TxRelayer) Registry(ctx context.Context, specVersion uint32) (*metadata.Registry, error) {
	return t.registry(ctx, specVersion, nil)
}

// RegistryAt returns the metadata of the runtime active at block at, the best block when nil
func (t *TxRelayer) RegistryAt(ctx context.Context, at *types.Hash) (*metadata.Registry, error) {
	rv, err := t.client.RuntimeVersion(ctx, at)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch runtime version: %w", err)
	}

	return t.registry(ctx, rv.SpecVersion, at)
}

func (t *TxRelayer) registry(ctx context.Context, specVersion uint32, at *types.Hash) (*metadata.Registry, error) {
	return t.cache.GetOrResolve(specVersion, func() ([]byte, error) {
		blob, err := t.client.MetadataAtVersion(ctx, uint32(metadata.V15), at)
		if err == nil {
			return blob, nil
		}

		var obj *jsonrpc.ErrorObject
		if !errors.Is(err, jsonrpc.ErrMetadataVersionUnavailable) && !errors.As(err, &obj) {
			return nil, err
		}

		t.logger.Debug("metadata v15 not available, using default", "spec", specVersion, "err", err)

		return t.client.Metadata(ctx, at)
	})
}

// Client returns the node client the relayer submits through
func (t *TxRelayer) Client() *jsonrpc.SubstrateClient {
	return t.client
}

// era and its checkpoint hash for the current state
func (t *TxRelayer) era(ctx context.Context, state *ChainState) (extrinsic.Era, types.Hash, error) {
	if t.mortality == 0 {
		return extrinsic.Immortal(), state.Genesis, nil
	}

	era := extrinsic.Mortal(t.mortality, state.BestNumber)

	birth := era.Birth(state.BestNumber)
	if birth == state.BestNumber {
		return era, state.BestHash, nil
	}

	checkpoint, err := t.client.BlockHash(ctx, &birth)
	if err != nil {
		return extrinsic.Era{}, types.ZeroHash, fmt.Errorf("failed to fetch era checkpoint #%d: %w", birth, err)
	}

	return era, checkpoint, nil
}

// SendCall builds module.function from args and submits it like SendTxn
func (t *TxRelayer) SendCall(ctx context.Context, signer crypto.Signer,
	module, function string, args ...value.Value) (*tracker.Result, error) {
	state, err := t.ChainState(ctx)
	if err != nil {
		return nil, err
	}

	call, err := extrinsic.BuildCall(state.Registry, module, function, args...)
	if err != nil {
		return nil, err
	}

	return t.SendTxnWithState(ctx, state, signer, call)
}

// SendTxn signs call with signer, submits it and waits for the tracker's terminal result
func (t *TxRelayer) SendTxn(ctx context.Context, signer crypto.Signer, call []byte) (*tracker.Result, error) {
	state, err := t.ChainState(ctx)
	if err != nil {
		return nil, err
	}

	return t.SendTxnWithState(ctx, state, signer, call)
}

// SendTxnWithState is SendTxn against a chain state fetched earlier
func (t *TxRelayer) SendTxnWithState(ctx context.Context, state *ChainState,
	signer crypto.Signer, call []byte) (*tracker.Result, error) {
	var (
		sub  jsonrpc.Subscription
		hash types.Hash
	)

	err := t.submit(ctx, state, signer, call, func(ctx context.Context, ext []byte) error {
		var err error
		sub, err = t.client.SubmitAndWatchExtrinsic(ctx, ext)

		return err
	}, &hash)
	if err != nil {
		return nil, err
	}

	trk := tracker.NewTracker(t.client, state.Registry, t.logger, t.trackerOpts...)

	return trk.Track(ctx, sub, hash)
}

// SendTxnNoWait submits without watching and returns the extrinsic hash
func (t *TxRelayer) SendTxnNoWait(ctx context.Context, signer crypto.Signer, call []byte) (types.Hash, error) {
	state, err := t.ChainState(ctx)
	if err != nil {
		return types.ZeroHash, err
	}

	var hash types.Hash

	err = t.submit(ctx, state, signer, call, func(ctx context.Context, ext []byte) error {
		_, err := t.client.SubmitExtrinsic(ctx, ext)

		return err
	}, &hash)

	return hash, err
}

type submitFunc func(ctx context.Context, ext []byte) error

// submit signs with the next nonce and calls send, retrying with a fresh nonce on nonce conflicts
func (t *TxRelayer) submit(ctx context.Context, state *ChainState, signer crypto.Signer,
	call []byte, send submitFunc, hash *types.Hash) error {
	era, checkpoint, err := t.era(ctx, state)
	if err != nil {
		return err
	}

	chain := extrinsic.ChainInfo{
		SpecVersion:        state.Runtime.SpecVersion,
		TransactionVersion: state.Runtime.TransactionVersion,
		GenesisHash:        state.Genesis,
		CheckpointHash:     checkpoint,
	}

	backoff := retry.WithMaxRetries(t.nonceRetries, retry.NewConstant(t.retryBackoff))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		nonce, err := t.client.AccountNextIndex(ctx, signer.AccountID())
		if err != nil {
			return fmt.Errorf("failed to fetch nonce of %s: %w", signer.AccountID(), err)
		}

		payload := extrinsic.NewUnsignedPayload(call, nonce, era, t.tip, chain, extrinsic.WithRegistry(state.Registry))

		signed, err := extrinsic.Sign(payload, signer)
		if err != nil {
			return err
		}

		ext, err := signed.Encode()
		if err != nil {
			return err
		}

		if *hash, err = signed.Hash(); err != nil {
			return err
		}

		t.logger.Debug("submitting extrinsic", "hash", *hash, "nonce", nonce, "era", era)

		if err := send(ctx, ext); err != nil {
			subErr := &SubmissionError{ExtrinsicHash: *hash, Nonce: nonce, Err: err}

			if IsNonceConflict(err) {
				metrics.IncrCounter([]string{relayerMetrics, "relayer", "nonce_retry"}, 1)
				t.logger.Info("nonce conflict, retrying", "nonce", nonce, "err", err)

				return retry.RetryableError(subErr)
			}

			return subErr
		}

		return nil
	})
}

// IsNonceConflict reports whether the node rejected a transaction because its
// nonce was already used or is being replaced by a higher priority transaction
func IsNonceConflict(err error) bool {
	var obj *jsonrpc.ErrorObject
	if !errors.As(err, &obj) {
		return false
	}

	if obj.Code == codeTooLowPriority {
		return true
	}

	if obj.Code != codeInvalidTransaction {
		return false
	}

	reason := strings.ToLower(obj.Message + " " + fmt.Sprint(obj.Data))

	return strings.Contains(reason, "outdated") || strings.Contains(reason, "stale")
}
