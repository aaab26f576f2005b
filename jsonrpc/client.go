package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

var (
	ErrSubscriptionsUnsupported = errors.New("transport does not support subscriptions")
	ErrClientClosed             = errors.New("jsonrpc client closed")
	ErrRequestTimeout           = errors.New("jsonrpc request timed out")
)

// Client is the request/response and subscription contract of a node connection
type Client interface {
	// Call invokes method and decodes the result into out
	Call(ctx context.Context, method string, out interface{}, params ...interface{}) error
	// Subscribe starts a subscription; unsubscribeMethod is used to cancel it
	Subscribe(ctx context.Context, method, unsubscribeMethod string, params ...interface{}) (Subscription, error)
	Close() error
}

// Subscription is a pull based stream of notifications
type Subscription interface {
	// Next blocks for the next notification. It returns io.EOF once the
	// subscription is closed and its queue is drained
	Next(ctx context.Context) (json.RawMessage, error)
	// Unsubscribe cancels the subscription on the node and closes it locally
	Unsubscribe() error
	// Err is the reason the subscription was closed by the connection, if any
	Err() error
}

const (
	defaultCallTimeout = 30 * time.Second
	defaultParkTTL     = 5 * time.Second
	defaultQueueLimit  = 1024
)

type Config struct {
	Logger      hclog.Logger
	Headers     map[string]string
	CallTimeout time.Duration
	// ParkTTL is how long notifications for a not yet registered subscription are kept
	ParkTTL time.Duration
	// QueueLimit bounds the notifications buffered per subscription
	QueueLimit int
}

type ConfigOption func(*Config)

func DefaultConfig() *Config {
	return &Config{
		Logger:      hclog.NewNullLogger(),
		Headers:     map[string]string{},
		CallTimeout: defaultCallTimeout,
		ParkTTL:     defaultParkTTL,
		QueueLimit:  defaultQueueLimit,
	}
}

func WithLogger(logger hclog.Logger) ConfigOption {
	return func(c *Config) {
		c.Logger = logger
	}
}

func WithHeaders(headers map[string]string) ConfigOption {
	return func(c *Config) {
		for k, v := range headers {
			c.Headers[k] = v
		}
	}
}

func WithCallTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.CallTimeout = timeout
	}
}

func WithParkTTL(ttl time.Duration) ConfigOption {
	return func(c *Config) {
		c.ParkTTL = ttl
	}
}

func WithQueueLimit(limit int) ConfigOption {
	return func(c *Config) {
		c.QueueLimit = limit
	}
}

// Dial connects to a node. ws:// and wss:// urls get a websocket session
// with subscriptions, anything else a request/response http transport
func Dial(ctx context.Context, url string, opts ...ConfigOption) (Client, error) {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}

	if strings.HasPrefix(url, "ws://") || strings.HasPrefix(url, "wss://") {
		return newWebsocketClient(ctx, url, config)
	}

	return newHTTPClient(url, config)
}

// withCallTimeout bounds ctx by the configured call timeout unless it already has a deadline
func withCallTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, timeout)
}
