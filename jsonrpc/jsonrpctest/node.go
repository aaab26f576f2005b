// Package jsonrpctest provides an in-memory node implementing jsonrpc.Client for tests
package jsonrpctest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/0xPolygon/substrate-client/jsonrpc"
)

// Handler answers a call. The result is passed through json to reach the caller
type Handler func(params []interface{}) (interface{}, error)

// SubscribeHandler answers a subscribe call with a scripted subscription
type SubscribeHandler func(params []interface{}) (*Subscription, error)

// Node is a scripted jsonrpc.Client
type Node struct {
	lock       sync.Mutex
	handlers   map[string]Handler
	subscribes map[string]SubscribeHandler
	calls      map[string][][]interface{}
	closed     bool
}

var _ jsonrpc.Client = (*Node)(nil)

func NewNode() *Node {
	return &Node{
		handlers:   map[string]Handler{},
		subscribes: map[string]SubscribeHandler{},
		calls:      map[string][][]interface{}{},
	}
}

func (n *Node) Handle(method string, h Handler) {
	n.lock.Lock()
	defer n.lock.Unlock()

	n.handlers[method] = h
}

// HandleResult always answers method with result
func (n *Node) HandleResult(method string, result interface{}) {
	n.Handle(method, func([]interface{}) (interface{}, error) {
		return result, nil
	})
}

func (n *Node) HandleSubscribe(method string, h SubscribeHandler) {
	n.lock.Lock()
	defer n.lock.Unlock()

	n.subscribes[method] = h
}

// Calls returns the params of every call made to method
func (n *Node) Calls(method string) [][]interface{} {
	n.lock.Lock()
	defer n.lock.Unlock()

	return append([][]interface{}{}, n.calls[method]...)
}

func (n *Node) record(method string, params []interface{}) error {
	n.lock.Lock()
	defer n.lock.Unlock()

	if n.closed {
		return jsonrpc.ErrClientClosed
	}

	n.calls[method] = append(n.calls[method], params)

	return nil
}

func (n *Node) Call(ctx context.Context, method string, out interface{}, params ...interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := n.record(method, params); err != nil {
		return err
	}

	n.lock.Lock()
	h, ok := n.handlers[method]
	n.lock.Unlock()

	if !ok {
		return &jsonrpc.ErrorObject{Code: -32601, Message: fmt.Sprintf("Method not found: %s", method)}
	}

	res, err := h(params)
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}

	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}

	return json.Unmarshal(raw, out)
}

func (n *Node) Subscribe(ctx context.Context, method, _ string, params ...interface{}) (jsonrpc.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := n.record(method, params); err != nil {
		return nil, err
	}

	n.lock.Lock()
	h, ok := n.subscribes[method]
	n.lock.Unlock()

	if !ok {
		return nil, &jsonrpc.ErrorObject{Code: -32601, Message: fmt.Sprintf("Method not found: %s", method)}
	}

	return h(params)
}

func (n *Node) Close() error {
	n.lock.Lock()
	defer n.lock.Unlock()

	n.closed = true

	return nil
}

// ServeHTTP answers single jsonrpc requests over http, so the node can stand behind an
// httptest server. Subscriptions are not reachable this way
func (n *Node) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req jsonrpc.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	var params []interface{}
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)

			return
		}
	}

	resp := jsonrpc.Response{ID: req.ID, JSONRPC: "2.0"}

	var result json.RawMessage
	if err := n.Call(r.Context(), req.Method, &result, params...); err != nil {
		obj, ok := err.(*jsonrpc.ErrorObject)
		if !ok {
			obj = &jsonrpc.ErrorObject{Code: -32603, Message: err.Error()}
		}

		resp.Error = obj
	} else {
		resp.Result = result
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// Subscription replays pushed notifications in order
type Subscription struct {
	lock         sync.Mutex
	queue        []json.RawMessage
	ended        bool
	err          error
	unsubscribed bool
	delivered    int

	notify chan struct{}
}

var _ jsonrpc.Subscription = (*Subscription)(nil)

// NewSubscription creates a subscription with the given notifications already queued
func NewSubscription(notifications ...interface{}) *Subscription {
	s := &Subscription{notify: make(chan struct{}, 1)}

	for _, n := range notifications {
		s.Push(n)
	}

	return s
}

// Push queues a notification, anything json marshalable
func (s *Subscription) Push(v interface{}) {
	raw, ok := v.(json.RawMessage)
	if !ok {
		var err error
		if raw, err = json.Marshal(v); err != nil {
			panic(err)
		}
	}

	s.lock.Lock()
	s.queue = append(s.queue, raw)
	s.lock.Unlock()

	s.wake()
}

// End closes the stream once the queue drains. err is reported by Err
func (s *Subscription) End(err error) {
	s.lock.Lock()
	s.ended = true
	s.err = err
	s.lock.Unlock()

	s.wake()
}

func (s *Subscription) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) Next(ctx context.Context) (json.RawMessage, error) {
	for {
		s.lock.Lock()

		if s.unsubscribed {
			s.lock.Unlock()

			return nil, io.EOF
		}

		if len(s.queue) > 0 {
			next := s.queue[0]
			s.queue = s.queue[1:]
			s.delivered++
			s.lock.Unlock()

			return next, nil
		}

		ended := s.ended
		s.lock.Unlock()

		if ended {
			return nil, io.EOF
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.notify:
		}
	}
}

func (s *Subscription) Unsubscribe() error {
	s.lock.Lock()
	s.unsubscribed = true
	s.lock.Unlock()

	s.wake()

	return nil
}

func (s *Subscription) Err() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.err
}

// Unsubscribed reports whether the consumer cancelled the subscription
func (s *Subscription) Unsubscribed() bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.unsubscribed
}

// Delivered is how many notifications were consumed
func (s *Subscription) Delivered() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.delivered
}

// Pending is how many notifications were never consumed
func (s *Subscription) Pending() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return len(s.queue)
}
