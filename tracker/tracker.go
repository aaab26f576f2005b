// Package tracker follows a submitted extrinsic through its status stream until
// a terminal status, and extracts the events it emitted in its block
package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/armon/go-metrics"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/0xPolygon/substrate-client/crypto"
	"github.com/0xPolygon/substrate-client/events"
	"github.com/0xPolygon/substrate-client/jsonrpc"
	"github.com/0xPolygon/substrate-client/metadata"
	"github.com/0xPolygon/substrate-client/types"
)

const (
	trackerMetrics = "substrate_client"

	defaultMaxReorgCycles = 3
)

var (
	ErrSubscriptionClosed   = errors.New("status subscription closed before a terminal status")
	ErrTrackingAborted      = errors.New("tracking aborted")
	ErrExtrinsicNotInBlock  = errors.New("extrinsic not found in block")
	ErrEventsNotFound       = errors.New("block has no events")
	errUnexpectedTransition = errors.New("unexpected status")
)

// TrackingError is a failure to follow the status stream, as opposed to a
// terminal status reported by the node
type TrackingError struct {
	ExtrinsicHash types.Hash
	LastStatus    TransactionStatus
	Err           error
}

func (e *TrackingError) Error() string {
	return fmt.Sprintf("tracking %s (last status %s): %v", e.ExtrinsicHash, e.LastStatus, e.Err)
}

func (e *TrackingError) Unwrap() error {
	return e.Err
}

// WaitFor selects the status a Track call resolves at
type WaitFor uint8

const (
	WaitForFinalized WaitFor = iota
	WaitForInBlock
)

func (w WaitFor) String() string {
	if w == WaitForInBlock {
		return "inblock"
	}

	return "finalized"
}

// ParseWaitFor accepts "inblock" and "finalized"
func ParseWaitFor(s string) (WaitFor, error) {
	switch s {
	case "inblock", "inBlock", "in-block":
		return WaitForInBlock, nil
	case "finalized", "":
		return WaitForFinalized, nil
	default:
		return WaitForFinalized, fmt.Errorf("unknown wait mode %q", s)
	}
}

// Inclusion is the extrinsic's place in a block and the events it emitted there
type Inclusion struct {
	BlockHash      types.Hash
	ExtrinsicIndex uint32
	// Events holds only the records of this extrinsic's position
	Events  events.Records
	Outcome *events.Outcome
}

// InBlockHandler is told about every inclusion before finality
type InBlockHandler func(id string, inclusion *Inclusion)

// ChainReader is the subset of the node api needed to extract events
type ChainReader interface {
	Block(ctx context.Context, hash *types.Hash) (*types.SignedBlock, error)
	Storage(ctx context.Context, key []byte, at *types.Hash) ([]byte, bool, error)
}

var _ ChainReader = (*jsonrpc.SubstrateClient)(nil)

type Config struct {
	InBlockEvents  bool
	InBlockHandler InBlockHandler
	WaitFor        WaitFor
	// Timeout bounds the whole wait, zero disables it
	Timeout time.Duration
	// MaxReorgCycles is how many Usurped/Retracted statuses are tolerated
	MaxReorgCycles int
}

type ConfigOption func(*Config)

func DefaultConfig() *Config {
	return &Config{
		WaitFor:        WaitForFinalized,
		MaxReorgCycles: defaultMaxReorgCycles,
	}
}

// WithInBlockEvents extracts the events at every InBlock status and reports them to handler
func WithInBlockEvents(handler InBlockHandler) ConfigOption {
	return func(c *Config) {
		c.InBlockEvents = true
		c.InBlockHandler = handler
	}
}

func WithWaitFor(w WaitFor) ConfigOption {
	return func(c *Config) {
		c.WaitFor = w
	}
}

func WithTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

func WithMaxReorgCycles(n int) ConfigOption {
	return func(c *Config) {
		c.MaxReorgCycles = n
	}
}

// Result is the terminal outcome of a tracked extrinsic
type Result struct {
	ID            string
	ExtrinsicHash types.Hash
	// Status is the terminal status, InBlock when waiting for inclusion only
	Status  TransactionStatus
	History []TransactionStatus
	// Inclusion is set when the extrinsic made it into a block
	Inclusion *Inclusion
}

// Included reports whether the extrinsic was included in a block
func (r *Result) Included() bool {
	return r.Inclusion != nil && (r.Status.Kind == Finalized || r.Status.Kind == InBlock)
}

// Success reports inclusion with a successful dispatch
func (r *Result) Success() bool {
	return r.Included() && r.Inclusion.Outcome != nil && r.Inclusion.Outcome.Success
}

// DispatchError is the reason an included extrinsic failed, nil otherwise
func (r *Result) DispatchError() *events.DispatchError {
	if !r.Included() || r.Inclusion.Outcome == nil {
		return nil
	}

	return r.Inclusion.Outcome.Error
}

// Events of the extrinsic in its block
func (r *Result) Events() events.Records {
	if r.Inclusion == nil {
		return nil
	}

	return r.Inclusion.Events
}

// Tracker resolves status streams into results. It holds no per-submission
// state, one Tracker can follow any number of extrinsics concurrently
type Tracker struct {
	logger hclog.Logger
	config *Config
	chain  ChainReader
	reg    *metadata.Registry
}

func NewTracker(chain ChainReader, reg *metadata.Registry, logger hclog.Logger, opts ...ConfigOption) *Tracker {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}

	return &Tracker{
		logger: logger.Named("tracker"),
		config: config,
		chain:  chain,
		reg:    reg,
	}
}

// Track consumes sub until a terminal status. The subscription is cancelled on
// return. Cancelling ctx returns ErrTrackingAborted and says nothing about the
// fate of the transaction in the node's pool
func (t *Tracker) Track(ctx context.Context, sub jsonrpc.Subscription, extHash types.Hash) (*Result, error) {
	w := &watch{
		Tracker: t,
		sub:     sub,
		start:   time.Now(),
		result: &Result{
			ID:            uuid.New().String(),
			ExtrinsicHash: extHash,
			Status:        TransactionStatus{Kind: Submitted},
		},
	}

	w.logger = t.logger.With("id", w.result.ID, "hash", extHash)

	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			w.logger.Debug("unsubscribe failed", "err", err)
		}
	}()

	res, err := w.run(ctx)
	if err != nil {
		metrics.IncrCounter([]string{trackerMetrics, "tracker", "error"}, 1)
		w.logger.Warn("tracking failed", "err", err)

		return nil, err
	}

	metrics.IncrCounter([]string{trackerMetrics, "tracker", res.Status.Kind.String()}, 1)

	if res.Status.Kind == Finalized {
		metrics.MeasureSince([]string{trackerMetrics, "tracker", "finality_time"}, w.start)
	}

	w.logger.Info("extrinsic tracked", "status", res.Status, "success", res.Success())

	return res, nil
}

// watch is the state of one Track call
type watch struct {
	*Tracker

	logger hclog.Logger
	sub    jsonrpc.Subscription
	start  time.Time
	result *Result
	reorgs int
}

func (w *watch) fail(err error) error {
	return &TrackingError{ExtrinsicHash: w.result.ExtrinsicHash, LastStatus: w.result.Status, Err: err}
}

func (w *watch) run(ctx context.Context) (*Result, error) {
	waitCtx := ctx

	if w.config.Timeout > 0 {
		var cancel context.CancelFunc

		waitCtx, cancel = context.WithTimeout(ctx, w.config.Timeout)
		defer cancel()
	}

	for {
		raw, err := w.sub.Next(waitCtx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return nil, w.fail(fmt.Errorf("%w: %v", ErrTrackingAborted, ctx.Err()))
			case waitCtx.Err() != nil:
				// the caller's deadline is a terminal status like the node's own finality timeout
				w.logger.Debug("timed out waiting", "timeout", w.config.Timeout)

				return w.terminal(TransactionStatus{Kind: FinalityTimeout, Block: w.lastBlock()}), nil
			case errors.Is(err, io.EOF):
				if subErr := w.sub.Err(); subErr != nil {
					return nil, w.fail(fmt.Errorf("%w: %v", ErrSubscriptionClosed, subErr))
				}

				return nil, w.fail(ErrSubscriptionClosed)
			default:
				return nil, w.fail(err)
			}
		}

		status, err := ParseStatus(raw)
		if err != nil {
			return nil, w.fail(err)
		}

		res, done, err := w.handle(ctx, status)
		if err != nil {
			return nil, err
		}

		if done {
			return res, nil
		}
	}
}

func (w *watch) lastBlock() types.Hash {
	if w.result.Inclusion != nil {
		return w.result.Inclusion.BlockHash
	}

	return types.ZeroHash
}

func (w *watch) terminal(status TransactionStatus) *Result {
	w.result.Status = status
	w.result.History = append(w.result.History, status)

	// inclusion only counts for the block the extrinsic ended up in
	if w.result.Inclusion != nil && (status.Kind == Finalized || status.Kind == InBlock) &&
		w.result.Inclusion.BlockHash != status.Block {
		w.result.Inclusion = nil
	}

	return w.result
}

// handle applies one status. It reports whether the result is final
func (w *watch) handle(ctx context.Context, status TransactionStatus) (*Result, bool, error) {
	w.logger.Debug("status", "status", status)

	switch status.Kind {
	case Future, Ready, Broadcast:
		w.result.Status = status
		w.result.History = append(w.result.History, status)

		return nil, false, nil
	case InBlock:
		w.result.Status = status
		w.result.History = append(w.result.History, status)

		if !w.config.InBlockEvents && w.config.WaitFor != WaitForInBlock {
			w.result.Inclusion = &Inclusion{BlockHash: status.Block}

			return nil, false, nil
		}

		inclusion, err := w.extract(ctx, status.Block)
		if err != nil {
			return nil, false, w.fail(err)
		}

		w.result.Inclusion = inclusion

		if w.config.InBlockHandler != nil {
			w.config.InBlockHandler(w.result.ID, inclusion)
		}

		if w.config.WaitFor == WaitForInBlock {
			return w.terminal(status), true, nil
		}

		return nil, false, nil
	case Finalized:
		inclusion, err := w.extract(ctx, status.Block)
		if err != nil {
			return nil, false, w.fail(err)
		}

		w.result.Inclusion = inclusion

		return w.terminal(status), true, nil
	case Retracted, Usurped:
		w.reorgs++
		w.result.Status = status
		w.result.History = append(w.result.History, status)

		if status.Kind == Retracted {
			w.result.Inclusion = nil
		}

		if w.reorgs > w.config.MaxReorgCycles {
			w.logger.Warn("giving up after reorgs", "cycles", w.reorgs, "status", status)

			return w.result, true, nil
		}

		w.logger.Debug("waiting through reorg", "cycle", w.reorgs, "status", status)

		return nil, false, nil
	case Dropped, Invalid, FinalityTimeout:
		if status.Kind == FinalityTimeout {
			w.result.Inclusion = nil
		}

		return w.terminal(status), true, nil
	default:
		return nil, false, w.fail(fmt.Errorf("%w %s", errUnexpectedTransition, status))
	}
}

// extract locates the extrinsic in block hash and decodes the events of its position
func (w *watch) extract(ctx context.Context, hash types.Hash) (*Inclusion, error) {
	block, err := w.chain.Block(ctx, &hash)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch block %s: %w", hash, err)
	}

	idx := -1

	for i, ext := range block.Block.Extrinsics {
		if crypto.Blake2_256Hash(ext) == w.result.ExtrinsicHash {
			idx = i

			break
		}
	}

	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrExtrinsicNotInBlock, hash)
	}

	key, err := events.StorageKey(w.reg)
	if err != nil {
		return nil, err
	}

	raw, found, err := w.chain.Storage(ctx, key, &hash)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events of %s: %w", hash, err)
	}

	if !found {
		return nil, fmt.Errorf("%w: %s", ErrEventsNotFound, hash)
	}

	records, err := events.DecodeEvents(raw, w.reg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode events of %s: %w", hash, err)
	}

	outcome, err := records.Outcome(uint32(idx), w.reg)
	if err != nil {
		return nil, err
	}

	return &Inclusion{
		BlockHash:      hash,
		ExtrinsicIndex: uint32(idx),
		Events:         records.ForExtrinsic(uint32(idx)),
		Outcome:        outcome,
	}, nil
}
