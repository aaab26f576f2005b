package submit

import (
	"bytes"
	"fmt"

	"github.com/0xPolygon/substrate-client/command/helper"
	"github.com/0xPolygon/substrate-client/types"
)

type SubmitResult struct {
	ExtrinsicHash types.Hash `json:"extrinsic_hash"`
	Signer        string     `json:"signer"`
	Status        string     `json:"status"`

	Block          *types.Hash `json:"block,omitempty"`
	ExtrinsicIndex *uint32     `json:"extrinsic_index,omitempty"`
	Success        bool        `json:"success"`
	DispatchError  string      `json:"dispatch_error,omitempty"`
	Events         []string    `json:"events,omitempty"`
}

func (r *SubmitResult) GetOutput() string {
	var buffer bytes.Buffer

	rows := []string{
		fmt.Sprintf("Extrinsic hash|%s", r.ExtrinsicHash),
		fmt.Sprintf("Signer|%s", r.Signer),
		fmt.Sprintf("Status|%s", r.Status),
	}

	if r.Block != nil {
		rows = append(rows,
			fmt.Sprintf("Block|%s", r.Block),
			fmt.Sprintf("Extrinsic index|%d", *r.ExtrinsicIndex),
			fmt.Sprintf("Success|%t", r.Success),
		)
	}

	if r.DispatchError != "" {
		rows = append(rows, fmt.Sprintf("Dispatch error|%s", r.DispatchError))
	}

	buffer.WriteString("\n[SUBMIT EXTRINSIC]\n")
	buffer.WriteString(helper.FormatKV(rows))
	buffer.WriteString("\n")

	if len(r.Events) > 0 {
		buffer.WriteString("\n[EVENTS]\n")
		buffer.WriteString(helper.FormatList(r.Events))
		buffer.WriteString("\n")
	}

	return buffer.String()
}
