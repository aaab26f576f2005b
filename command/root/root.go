package root

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/0xPolygon/substrate-client/command/events"
	"github.com/0xPolygon/substrate-client/command/helper"
	"github.com/0xPolygon/substrate-client/command/key"
	"github.com/0xPolygon/substrate-client/command/metadata"
	"github.com/0xPolygon/substrate-client/command/storage"
	"github.com/0xPolygon/substrate-client/command/submit"
	"github.com/0xPolygon/substrate-client/command/version"
)

type RootCommand struct {
	baseCmd *cobra.Command
}

func NewRootCommand() *RootCommand {
	rootCommand := &RootCommand{
		baseCmd: &cobra.Command{
			Use:   "substrate-client",
			Short: "substrate-client inspects and submits extrinsics to Substrate based chains",
		},
	}

	helper.RegisterJSONOutputFlag(rootCommand.baseCmd)
	helper.RegisterClientFlags(rootCommand.baseCmd)

	rootCommand.registerSubCommands()

	return rootCommand
}

func (rc *RootCommand) registerSubCommands() {
	rc.baseCmd.AddCommand(
		version.GetCommand(),
		metadata.GetCommand(),
		events.GetCommand(),
		storage.GetCommand(),
		submit.GetCommand(),
		key.GetCommand(),
	)
}

func (rc *RootCommand) Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rc.baseCmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)

		cancel()
		os.Exit(1)
	}
}
