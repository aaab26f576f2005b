package types

import (
	"encoding/json"
	"fmt"
)

// RuntimeVersion is the result of state_getRuntimeVersion
type RuntimeVersion struct {
	SpecName           string       `json:"specName"`
	ImplName           string       `json:"implName"`
	AuthoringVersion   uint32       `json:"authoringVersion"`
	SpecVersion        uint32       `json:"specVersion"`
	ImplVersion        uint32       `json:"implVersion"`
	APIs               []RuntimeAPI `json:"apis"`
	TransactionVersion uint32       `json:"transactionVersion"`
	StateVersion       uint8        `json:"stateVersion"`
}

// RuntimeAPI is one (api id, version) pair of the runtime version
type RuntimeAPI struct {
	ID      HexBytes
	Version uint32
}

func (r RuntimeAPI) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{r.ID, r.Version})
}

func (r *RuntimeAPI) UnmarshalJSON(input []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(input, &pair); err != nil {
		return err
	}

	if len(pair) != 2 {
		return fmt.Errorf("runtime api entry must have 2 elements, got %d", len(pair))
	}

	if err := json.Unmarshal(pair[0], &r.ID); err != nil {
		return err
	}

	return json.Unmarshal(pair[1], &r.Version)
}

// Digest holds the opaque digest items of a header
type Digest struct {
	Logs []HexBytes `json:"logs"`
}

// Header is the block header as returned by chain_getHeader
type Header struct {
	ParentHash     Hash        `json:"parentHash"`
	Number         BlockNumber `json:"number"`
	StateRoot      Hash        `json:"stateRoot"`
	ExtrinsicsRoot Hash        `json:"extrinsicsRoot"`
	Digest         Digest      `json:"digest"`
}

// Block is a header together with its opaque encoded extrinsics
type Block struct {
	Header     Header     `json:"header"`
	Extrinsics []HexBytes `json:"extrinsics"`
}

// SignedBlock is the result of chain_getBlock
type SignedBlock struct {
	Block          Block           `json:"block"`
	Justifications json.RawMessage `json:"justifications,omitempty"`
}
