package metadata

import (
	"github.com/spf13/cobra"

	"github.com/0xPolygon/substrate-client/command"
	"github.com/0xPolygon/substrate-client/command/helper"
	chainmeta "github.com/0xPolygon/substrate-client/metadata"
)

func GetCommand() *cobra.Command {
	metadataCmd := &cobra.Command{
		Use:   "metadata",
		Short: "Lists the runtime modules with their calls, events, errors and storage",
		Run:   runCommand,
	}

	setFlags(metadataCmd)

	return metadataCmd
}

func setFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(
		&params.module,
		moduleFlag,
		"",
		"show a single module in full",
	)

	cmd.Flags().StringVar(
		&params.blockRaw,
		blockFlag,
		"",
		"the block hash or number whose runtime is inspected (default best block)",
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

	reg, err := session.Relayer.RegistryAt(cmd.Context(), at)
	if err != nil {
		outputter.SetError(err)

		return
	}

	modules := reg.Modules()

	if params.module != "" {
		m, err := reg.ModuleByName(params.module)
		if err != nil {
			outputter.SetError(err)

			return
		}

		modules = []*chainmeta.Module{m}
	}

	res := &MetadataResult{
		Version:          reg.Version,
		ExtrinsicVersion: reg.Extrinsic.Version,
		SignedExtensions: reg.SignedExtensions(),
		Modules:          make([]ModuleResult, 0, len(modules)),
	}

	for _, m := range modules {
		res.Modules = append(res.Modules, newModuleResult(reg, m))
	}

	outputter.SetCommandResult(res)
}
