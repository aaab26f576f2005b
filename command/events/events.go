package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/0xPolygon/substrate-client/command"
	"github.com/0xPolygon/substrate-client/command/helper"
	chainevents "github.com/0xPolygon/substrate-client/events"
	"github.com/0xPolygon/substrate-client/types"
)

func GetCommand() *cobra.Command {
	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "Decodes the events of a block and the dispatch outcome of its extrinsics",
		Run:   runCommand,
	}

	setFlags(eventsCmd)

	return eventsCmd
}

func setFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(
		&params.blockRaw,
		blockFlag,
		"",
		"the block hash or number (default finalized head)",
	)

	cmd.Flags().Int64Var(
		&params.extrinsic,
		extrinsicFlag,
		-1,
		"only show the events of the extrinsic at this index",
	)
}

func runCommand(cmd *cobra.Command, _ []string) {
	outputter := command.InitializeOutputter(cmd)
	defer outputter.WriteOutput()

	session, err := helper.NewSession(cmd.Context(), cmd)
	if err != nil {
		outputter.SetError(err)

		return
	}
	defer session.Close()

	at, err := session.ResolveBlock(cmd.Context(), params.blockRaw)
	if err != nil {
		outputter.SetError(err)

		return
	}

	res, err := blockEvents(cmd.Context(), session, at)
	if err != nil {
		outputter.SetError(err)

		return
	}

	outputter.SetCommandResult(res)
}

func blockEvents(ctx context.Context, session *helper.Session, at *types.Hash) (*EventsResult, error) {
	client := session.Client()

	if at == nil {
		head, err := client.FinalizedHead(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch finalized head: %w", err)
		}

		at = &head
	}

	header, err := client.Header(ctx, at)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch header %s: %w", at, err)
	}

	reg, err := session.Relayer.RegistryAt(ctx, at)
	if err != nil {
		return nil, err
	}

	key, err := chainevents.StorageKey(reg)
	if err != nil {
		return nil, err
	}

	raw, found, err := client.Storage(ctx, key, at)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events of %s: %w", at, err)
	}

	var records chainevents.Records

	if found {
		if records, err = chainevents.DecodeEvents(raw, reg); err != nil {
			return nil, err
		}
	}

	if params.filtered() {
		records = records.ForExtrinsic(uint32(params.extrinsic))
	}

	res := &EventsResult{
		Block:  *at,
		Number: uint64(header.Number),
		Events: make([]EventResult, 0, len(records)),
	}

	seen := map[uint32]bool{}

	for _, r := range records {
		res.Events = append(res.Events, EventResult{
			Phase:  r.Phase.String(),
			Module: r.Module(),
			Name:   r.Name(),
			Fields: r.Value(),
			Topics: r.Topics,
		})

		if r.Phase.Kind != chainevents.ApplyExtrinsic || seen[r.Phase.ExtrinsicIndex] {
			continue
		}

		idx := r.Phase.ExtrinsicIndex
		seen[idx] = true

		outcome, err := records.Outcome(idx, reg)
		if errors.Is(err, chainevents.ErrNoOutcome) {
			continue
		} else if err != nil {
			return nil, err
		}

		o := OutcomeResult{Extrinsic: idx, Success: outcome.Success}
		if outcome.Error != nil {
			o.Error = outcome.Error.Error()
		}

		res.Outcomes = append(res.Outcomes, o)
	}

	return res, nil
}
