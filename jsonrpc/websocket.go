package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-hclog"
	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrSubscriptionOverflow closes a subscription whose consumer fell too far behind
var ErrSubscriptionOverflow = errors.New("subscription queue overflow")

type parkedNotification struct {
	at     time.Time
	result json.RawMessage
}

// wsClient multiplexes calls and subscriptions over one websocket session.
// Calls are correlated by numeric id, notifications by subscription id
type wsClient struct {
	logger hclog.Logger
	config *Config

	conn      *websocket.Conn
	writeLock sync.Mutex
	seq       uint64

	handlerLock sync.Mutex
	handlers    map[uint64]chan *message

	subsLock sync.Mutex
	subs     map[SubscriptionID]*wsSubscription
	parked   map[SubscriptionID][]parkedNotification

	closeCh   chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func newWebsocketClient(ctx context.Context, url string, config *Config) (*wsClient, error) {
	headers := http.Header{}
	for k, v := range config.Headers {
		headers.Add(k, v)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	c := &wsClient{
		logger:   config.Logger.Named("jsonrpc"),
		config:   config,
		conn:     conn,
		handlers: map[uint64]chan *message{},
		subs:     map[SubscriptionID]*wsSubscription{},
		parked:   map[SubscriptionID][]parkedNotification{},
		closeCh:  make(chan struct{}),
	}

	go c.listen()

	return c, nil
}

func (c *wsClient) isClosed() bool {
	select {
	case <-c.closeCh:
		return true
	default:
		return false
	}
}

func (c *wsClient) listen() {
	for {
		_, buf, err := c.conn.ReadMessage()
		if err != nil {
			if !c.isClosed() {
				c.logger.Error("websocket read failed", "err", err)
			}

			c.shutdown(fmt.Errorf("connection lost: %w", err))

			return
		}

		var msg message
		if err := jsonAPI.Unmarshal(buf, &msg); err != nil {
			c.logger.Warn("dropping malformed frame", "err", err)

			continue
		}

		if msg.ID != nil {
			c.handleResponse(*msg.ID, &msg)

			continue
		}

		if len(msg.Params) == 0 {
			c.logger.Warn("dropping frame without id or params", "method", msg.Method)

			continue
		}

		var note notification
		if err := jsonAPI.Unmarshal(msg.Params, &note); err != nil {
			c.logger.Warn("dropping malformed notification", "method", msg.Method, "err", err)

			continue
		}

		c.handleNotification(note)
	}
}

func (c *wsClient) handleResponse(id uint64, msg *message) {
	c.handlerLock.Lock()
	ch, ok := c.handlers[id]
	delete(c.handlers, id)
	c.handlerLock.Unlock()

	if !ok {
		c.logger.Debug("response for unknown request", "id", id)

		return
	}

	// buffered with room for exactly one response
	ch <- msg
}

func (c *wsClient) handleNotification(note notification) {
	c.subsLock.Lock()
	defer c.subsLock.Unlock()

	if sub, ok := c.subs[note.Subscription]; ok {
		sub.push(note.Result)

		return
	}

	// the subscribe response may not have been processed yet, keep it for a while
	c.pruneParked(time.Now())

	parked := c.parked[note.Subscription]
	if len(parked) >= c.config.QueueLimit {
		c.logger.Warn("dropping notification for unknown subscription", "subscription", note.Subscription)

		return
	}

	c.parked[note.Subscription] = append(parked, parkedNotification{at: time.Now(), result: note.Result})
}

// pruneParked drops parked notifications older than ParkTTL. Callers hold subsLock
func (c *wsClient) pruneParked(now time.Time) {
	for id, notes := range c.parked {
		if len(notes) > 0 && now.Sub(notes[len(notes)-1].at) > c.config.ParkTTL {
			delete(c.parked, id)
		}
	}
}

func (c *wsClient) Call(ctx context.Context, method string, out interface{}, params ...interface{}) error {
	if c.isClosed() {
		return c.closedErr()
	}

	if params == nil {
		params = []interface{}{}
	}

	rawParams, err := jsonAPI.Marshal(params)
	if err != nil {
		return fmt.Errorf("failed to encode params of %s: %w", method, err)
	}

	req := Request{
		JSONRPC: "2.0",
		ID:      atomic.AddUint64(&c.seq, 1),
		Method:  method,
		Params:  rawParams,
	}

	raw, err := jsonAPI.Marshal(req)
	if err != nil {
		return err
	}

	ch := make(chan *message, 1)

	c.handlerLock.Lock()
	c.handlers[req.ID] = ch
	c.handlerLock.Unlock()

	defer func() {
		c.handlerLock.Lock()
		delete(c.handlers, req.ID)
		c.handlerLock.Unlock()
	}()

	if err := c.write(raw); err != nil {
		return err
	}

	callCtx, cancel := withCallTimeout(ctx, c.config.CallTimeout)
	defer cancel()

	select {
	case msg := <-ch:
		if msg.Error != nil {
			return msg.Error
		}

		if out == nil {
			return nil
		}

		if err := jsonAPI.Unmarshal(msg.Result, out); err != nil {
			return fmt.Errorf("failed to decode result of %s: %w", method, err)
		}

		return nil
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}

		return fmt.Errorf("%w: %s", ErrRequestTimeout, method)
	case <-c.closeCh:
		return c.closedErr()
	}
}

func (c *wsClient) write(b []byte) error {
	c.writeLock.Lock()
	defer c.writeLock.Unlock()

	if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return fmt.Errorf("websocket write failed: %w", err)
	}

	return nil
}

func (c *wsClient) Subscribe(ctx context.Context, method, unsubscribeMethod string, params ...interface{}) (Subscription, error) {
	var id SubscriptionID
	if err := c.Call(ctx, method, &id, params...); err != nil {
		return nil, err
	}

	sub := &wsSubscription{
		id:          id,
		client:      c,
		unsubMethod: unsubscribeMethod,
		limit:       c.config.QueueLimit,
		notify:      make(chan struct{}, 1),
		done:        make(chan struct{}),
	}

	c.subsLock.Lock()
	if c.isClosed() {
		c.subsLock.Unlock()

		return nil, c.closedErr()
	}

	c.subs[id] = sub

	for _, note := range c.parked[id] {
		sub.push(note.result)
	}

	delete(c.parked, id)
	c.subsLock.Unlock()

	c.logger.Debug("subscribed", "method", method, "subscription", id)

	return sub, nil
}

func (c *wsClient) unsubscribe(sub *wsSubscription) error {
	c.subsLock.Lock()
	_, ok := c.subs[sub.id]
	delete(c.subs, sub.id)
	c.subsLock.Unlock()

	sub.close(nil)

	if !ok || c.isClosed() {
		return nil
	}

	var result bool
	if err := c.Call(context.Background(), sub.unsubMethod, &result, sub.id); err != nil {
		return fmt.Errorf("failed to unsubscribe %s: %w", sub.id, err)
	}

	if !result {
		c.logger.Debug("node did not know the subscription", "subscription", sub.id)
	}

	return nil
}

func (c *wsClient) closedErr() error {
	if c.closeErr != nil {
		return c.closeErr
	}

	return ErrClientClosed
}

// shutdown closes the session once, ending every subscription with err
func (c *wsClient) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.closeErr = err

		c.subsLock.Lock()
		subs := c.subs
		c.subs = map[SubscriptionID]*wsSubscription{}
		c.parked = map[SubscriptionID][]parkedNotification{}
		c.subsLock.Unlock()

		close(c.closeCh)

		for _, sub := range subs {
			sub.close(err)
		}

		c.conn.Close()
	})
}

func (c *wsClient) Close() error {
	c.writeLock.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeLock.Unlock()

	c.shutdown(ErrClientClosed)

	return nil
}

type wsSubscription struct {
	id          SubscriptionID
	client      *wsClient
	unsubMethod string
	limit       int

	lock   sync.Mutex
	queue  []json.RawMessage
	closed bool
	err    error

	notify chan struct{}
	done   chan struct{}
}

func (s *wsSubscription) push(result json.RawMessage) {
	s.lock.Lock()

	if s.closed {
		s.lock.Unlock()

		return
	}

	if len(s.queue) >= s.limit {
		s.lock.Unlock()
		s.close(ErrSubscriptionOverflow)

		return
	}

	s.queue = append(s.queue, result)
	s.lock.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *wsSubscription) close(err error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed {
		return
	}

	s.closed = true
	s.err = err
	close(s.done)
}

func (s *wsSubscription) Next(ctx context.Context) (json.RawMessage, error) {
	for {
		s.lock.Lock()
		if len(s.queue) > 0 {
			next := s.queue[0]
			s.queue = s.queue[1:]
			s.lock.Unlock()

			return next, nil
		}

		closed := s.closed
		s.lock.Unlock()

		if closed {
			return nil, io.EOF
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.notify:
		case <-s.done:
		}
	}
}

func (s *wsSubscription) Unsubscribe() error {
	return s.client.unsubscribe(s)
}

func (s *wsSubscription) Err() error {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.err
}
