package jsonrpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/umbracle/ethgo/jsonrpc"
	"github.com/umbracle/ethgo/jsonrpc/codec"
)

// httpClient is a request/response only client on top of the ethgo jsonrpc transport
type httpClient struct {
	logger hclog.Logger
	config *Config
	client *jsonrpc.Client
}

func newHTTPClient(url string, config *Config) (*httpClient, error) {
	client, err := jsonrpc.NewClient(url, jsonrpc.WithHeaders(config.Headers))
	if err != nil {
		return nil, fmt.Errorf("failed to create http client for %s: %w", url, err)
	}

	return &httpClient{
		logger: config.Logger.Named("jsonrpc"),
		config: config,
		client: client,
	}, nil
}

type callResult struct {
	err error
}

func (h *httpClient) Call(ctx context.Context, method string, out interface{}, params ...interface{}) error {
	callCtx, cancel := withCallTimeout(ctx, h.config.CallTimeout)
	defer cancel()

	// the transport has no context support, an abandoned request finishes in the background
	done := make(chan callResult, 1)

	go func() {
		var discard interface{}

		target := out
		if target == nil {
			target = &discard
		}

		done <- callResult{err: h.client.Call(method, target, params...)}
	}()

	select {
	case res := <-done:
		return convertError(res.err)
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}

		return fmt.Errorf("%w: %s", ErrRequestTimeout, method)
	}
}

func (h *httpClient) Subscribe(context.Context, string, string, ...interface{}) (Subscription, error) {
	return nil, ErrSubscriptionsUnsupported
}

func (h *httpClient) Close() error {
	return h.client.Close()
}

// convertError surfaces node errors as *ErrorObject whichever transport produced them
func convertError(err error) error {
	if err == nil {
		return nil
	}

	var obj *codec.ErrorObject
	if errors.As(err, &obj) {
		return &ErrorObject{Code: obj.Code, Message: obj.Message, Data: obj.Data}
	}

	return err
}
