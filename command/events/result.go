package events

import (
	"bytes"
	"fmt"

	"github.com/0xPolygon/substrate-client/command/helper"
	"github.com/0xPolygon/substrate-client/types"
	"github.com/0xPolygon/substrate-client/value"
)

type EventResult struct {
	Phase  string       `json:"phase"`
	Module string       `json:"module"`
	Name   string       `json:"name"`
	Fields value.Value  `json:"fields"`
	Topics []types.Hash `json:"topics,omitempty"`
}

type OutcomeResult struct {
	Extrinsic uint32 `json:"extrinsic"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

type EventsResult struct {
	Block    types.Hash      `json:"block"`
	Number   uint64          `json:"number"`
	Events   []EventResult   `json:"events"`
	Outcomes []OutcomeResult `json:"outcomes"`
}

func (r *EventsResult) GetOutput() string {
	var buffer bytes.Buffer

	buffer.WriteString("\n[EVENTS]\n")
	buffer.WriteString(helper.FormatKV([]string{
		fmt.Sprintf("Block|%s", r.Block),
		fmt.Sprintf("Number|%d", r.Number),
		fmt.Sprintf("Events|%d", len(r.Events)),
	}))
	buffer.WriteString("\n")

	if len(r.Events) > 0 {
		rows := make([]string, 0, len(r.Events)+1)
		rows = append(rows, "Phase|Event|Fields")

		for _, e := range r.Events {
			rows = append(rows, fmt.Sprintf("%s|%s.%s|%s", e.Phase, e.Module, e.Name, e.Fields))
		}

		buffer.WriteString("\n")
		buffer.WriteString(helper.FormatList(rows))
		buffer.WriteString("\n")
	}

	if len(r.Outcomes) > 0 {
		rows := make([]string, 0, len(r.Outcomes)+1)
		rows = append(rows, "Extrinsic|Result")

		for _, o := range r.Outcomes {
			status := "success"
			if !o.Success {
				status = o.Error
			}

			rows = append(rows, fmt.Sprintf("%d|%s", o.Extrinsic, status))
		}

		buffer.WriteString("\n[OUTCOMES]\n")
		buffer.WriteString(helper.FormatList(rows))
		buffer.WriteString("\n")
	}

	return buffer.String()
}
