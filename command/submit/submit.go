package submit

import (
	"github.com/spf13/cobra"

	"github.com/0xPolygon/substrate-client/command"
	"github.com/0xPolygon/substrate-client/command/helper"
	"github.com/0xPolygon/substrate-client/crypto"
	"github.com/0xPolygon/substrate-client/extrinsic"
	"github.com/0xPolygon/substrate-client/tracker"
)

func GetCommand() *cobra.Command {
	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "Signs a call, submits it and waits for its outcome",
		Run:   runCommand,
	}

	setFlags(submitCmd)
	helper.SetRequiredFlags(submitCmd, params.getRequiredFlags())

	return submitCmd
}

func setFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(
		&params.module,
		moduleFlag,
		"",
		"the module of the call",
	)

	cmd.Flags().StringVar(
		&params.call,
		callFlag,
		"",
		"the call name",
	)

	cmd.Flags().StringVar(
		&params.argsRaw,
		argsFlag,
		"{}",
		"the call arguments as a JSON object keyed by argument name",
	)

	cmd.Flags().StringVar(
		&params.keyFile,
		keyFileFlag,
		"",
		"the file holding the hex encoded signing seed",
	)

	cmd.Flags().StringVar(
		&params.keyType,
		keyTypeFlag,
		string(crypto.KeySr25519),
		"the signing scheme: sr25519, ed25519 or ecdsa",
	)

	cmd.Flags().StringVar(
		&params.waitFor,
		waitFlag,
		tracker.WaitForFinalized.String(),
		"wait for inblock or finalized",
	)

	cmd.Flags().Uint64Var(
		&params.mortality,
		mortalityFlag,
		0,
		"the era period in blocks, 0 for an immortal extrinsic",
	)

	cmd.Flags().StringVar(
		&params.tip,
		tipFlag,
		"0",
		"the tip paid to the block author",
	)

	cmd.Flags().BoolVar(
		&params.noWait,
		noWaitFlag,
		false,
		"return once the node accepted the extrinsic",
	)
}

func runCommand(cmd *cobra.Command, _ []string) {
	outputter := command.InitializeOutputter(cmd)
	defer outputter.WriteOutput()

	if err := params.init(); err != nil {
		outputter.SetError(err)

		return
	}

	session, err := helper.NewSession(cmd.Context(), cmd, params.applyFlags(cmd))
	if err != nil {
		outputter.SetError(err)

		return
	}
	defer session.Close()

	signer, err := loadSigner(session.Config)
	if err != nil {
		outputter.SetError(err)

		return
	}

	ctx := cmd.Context()

	state, err := session.Relayer.ChainState(ctx)
	if err != nil {
		outputter.SetError(err)

		return
	}

	call, err := extrinsic.CallFromJSON(state.Registry, params.module, params.call, params.args)
	if err != nil {
		outputter.SetError(err)

		return
	}

	res := &SubmitResult{Signer: signer.AccountID().String()}

	if params.noWait {
		if res.ExtrinsicHash, err = session.Relayer.SendTxnNoWait(ctx, signer, call); err != nil {
			outputter.SetError(err)

			return
		}

		res.Status = tracker.Submitted.String()
		outputter.SetCommandResult(res)

		return
	}

	tracked, err := session.Relayer.SendTxnWithState(ctx, state, signer, call)
	if err != nil {
		outputter.SetError(err)

		return
	}

	res.ExtrinsicHash = tracked.ExtrinsicHash
	res.Status = tracked.Status.String()
	res.Success = tracked.Success()

	if tracked.Inclusion != nil {
		block, idx := tracked.Inclusion.BlockHash, tracked.Inclusion.ExtrinsicIndex
		res.Block, res.ExtrinsicIndex = &block, &idx
	}

	if dispatchErr := tracked.DispatchError(); dispatchErr != nil {
		res.DispatchError = dispatchErr.Error()
	}

	for _, e := range tracked.Events() {
		res.Events = append(res.Events, e.String())
	}

	outputter.SetCommandResult(res)
}
