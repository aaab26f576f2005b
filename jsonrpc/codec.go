package jsonrpc

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Request is a jsonrpc request
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a jsonrpc response
type Response struct {
	ID      uint64          `json:"id"`
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// message is any frame the node sends: a response carries an id,
// a subscription notification carries method and params instead
type message struct {
	ID     *uint64         `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	Result json.RawMessage `json:"result"`
	Error  *ErrorObject    `json:"error"`
}

// notification is the params object of a subscription notification
type notification struct {
	Subscription SubscriptionID  `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

// ErrorObject is a jsonrpc error, kept verbatim as the node reported it
type ErrorObject struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Error implements error interface
func (e *ErrorObject) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("jsonrpc error %d: %s: %v", e.Code, e.Message, e.Data)
	}

	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// SubscriptionID is the id a node returns from a subscribe call. Nodes use
// either strings or numbers, both normalize to the same text form
type SubscriptionID string

func (s *SubscriptionID) UnmarshalJSON(input []byte) error {
	str := strings.TrimSpace(string(input))

	if strings.HasPrefix(str, `"`) {
		unquoted, err := strconv.Unquote(str)
		if err != nil {
			return fmt.Errorf("invalid subscription id %s: %w", str, err)
		}

		*s = SubscriptionID(unquoted)

		return nil
	}

	if _, err := strconv.ParseUint(str, 10, 64); err != nil {
		return fmt.Errorf("invalid subscription id %s", str)
	}

	*s = SubscriptionID(str)

	return nil
}

// MarshalJSON keeps numeric ids numeric so unsubscribe calls echo them back unchanged
func (s SubscriptionID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseUint(string(s), 10, 64); err == nil {
		return []byte(s), nil
	}

	return []byte(strconv.Quote(string(s))), nil
}
