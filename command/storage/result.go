package storage

import (
	"bytes"
	"fmt"

	"github.com/0xPolygon/substrate-client/command/helper"
	"github.com/0xPolygon/substrate-client/types"
	"github.com/0xPolygon/substrate-client/value"
)

type StorageResult struct {
	Module string         `json:"module"`
	Entry  string         `json:"entry"`
	Key    types.HexBytes `json:"key"`
	// Found is false when the node holds nothing under the key
	Found bool `json:"found"`
	// Default is set when the value was taken from the metadata default
	Default bool         `json:"default"`
	Value   *value.Value `json:"value"`
}

func (r *StorageResult) GetOutput() string {
	var buffer bytes.Buffer

	decoded := "<none>"
	if r.Value != nil {
		decoded = r.Value.String()
	}

	buffer.WriteString("\n[STORAGE]\n")
	buffer.WriteString(helper.FormatKV([]string{
		fmt.Sprintf("Entry|%s.%s", r.Module, r.Entry),
		fmt.Sprintf("Key|%s", r.Key),
		fmt.Sprintf("Found|%t", r.Found),
		fmt.Sprintf("Default|%t", r.Default),
	}))
	buffer.WriteString("\n\n")
	buffer.WriteString(decoded)
	buffer.WriteString("\n")

	return buffer.String()
}
