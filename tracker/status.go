package tracker

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/0xPolygon/substrate-client/types"
)

// ErrMalformedStatus is returned for a notification that is not a transaction status
var ErrMalformedStatus = errors.New("malformed transaction status")

type StatusKind uint8

const (
	// Submitted is the state right after the submit call returned
	Submitted StatusKind = iota
	Future
	Ready
	Broadcast
	InBlock
	Retracted
	FinalityTimeout
	Finalized
	Usurped
	Dropped
	Invalid
)

var statusNames = map[StatusKind]string{
	Submitted:       "submitted",
	Future:          "future",
	Ready:           "ready",
	Broadcast:       "broadcast",
	InBlock:         "inBlock",
	Retracted:       "retracted",
	FinalityTimeout: "finalityTimeout",
	Finalized:       "finalized",
	Usurped:         "usurped",
	Dropped:         "dropped",
	Invalid:         "invalid",
}

func (k StatusKind) String() string {
	if name, ok := statusNames[k]; ok {
		return name
	}

	return fmt.Sprintf("status(%d)", uint8(k))
}

// TransactionStatus is one notification of the extrinsic status stream
type TransactionStatus struct {
	Kind StatusKind
	// Block is set for InBlock, Retracted, FinalityTimeout and Finalized
	Block types.Hash
	// Usurper is the hash of the transaction that replaced this one
	Usurper types.Hash
	// Peers the transaction was broadcast to
	Peers []string
}

// IsTerminal reports whether no further status is expected. Usurped and
// Retracted are not terminal, a reorg can bring the transaction back
func (s TransactionStatus) IsTerminal() bool {
	switch s.Kind {
	case Finalized, Dropped, Invalid, FinalityTimeout:
		return true
	default:
		return false
	}
}

func (s TransactionStatus) String() string {
	switch s.Kind {
	case InBlock, Retracted, FinalityTimeout, Finalized:
		return fmt.Sprintf("%s(%s)", s.Kind, s.Block)
	case Usurped:
		return fmt.Sprintf("%s(%s)", s.Kind, s.Usurper)
	case Broadcast:
		return fmt.Sprintf("%s(%d peers)", s.Kind, len(s.Peers))
	default:
		return s.Kind.String()
	}
}

// ParseStatus decodes an author_extrinsicUpdate notification. Unit statuses
// come as strings, the others as single key objects
func ParseStatus(raw json.RawMessage) (TransactionStatus, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		switch name {
		case "future":
			return TransactionStatus{Kind: Future}, nil
		case "ready":
			return TransactionStatus{Kind: Ready}, nil
		case "dropped":
			return TransactionStatus{Kind: Dropped}, nil
		case "invalid":
			return TransactionStatus{Kind: Invalid}, nil
		default:
			return TransactionStatus{}, fmt.Errorf("%w: %q", ErrMalformedStatus, name)
		}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || len(obj) != 1 {
		return TransactionStatus{}, fmt.Errorf("%w: %s", ErrMalformedStatus, raw)
	}

	for key, body := range obj {
		status := TransactionStatus{}

		switch key {
		case "broadcast":
			status.Kind = Broadcast
			if err := json.Unmarshal(body, &status.Peers); err != nil {
				return TransactionStatus{}, fmt.Errorf("%w: broadcast peers: %v", ErrMalformedStatus, err)
			}

			return status, nil
		case "usurped":
			status.Kind = Usurped
			if err := json.Unmarshal(body, &status.Usurper); err != nil {
				return TransactionStatus{}, fmt.Errorf("%w: usurped: %v", ErrMalformedStatus, err)
			}

			return status, nil
		case "inBlock":
			status.Kind = InBlock
		case "retracted":
			status.Kind = Retracted
		case "finalityTimeout":
			status.Kind = FinalityTimeout
		case "finalized":
			status.Kind = Finalized
		default:
			return TransactionStatus{}, fmt.Errorf("%w: unknown status %q", ErrMalformedStatus, key)
		}

		if err := json.Unmarshal(body, &status.Block); err != nil {
			return TransactionStatus{}, fmt.Errorf("%w: %s: %v", ErrMalformedStatus, key, err)
		}

		return status, nil
	}

	// unreachable, obj has exactly one key
	return TransactionStatus{}, ErrMalformedStatus
}
