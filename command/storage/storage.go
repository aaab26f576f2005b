package storage

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/0xPolygon/substrate-client/command"
	"github.com/0xPolygon/substrate-client/command/helper"
	"github.com/0xPolygon/substrate-client/metadata"
	"github.com/0xPolygon/substrate-client/value"
)

func GetCommand() *cobra.Command {
	storageCmd := &cobra.Command{
		Use:   "storage",
		Short: "Reads and decodes a storage value",
		Run:   runCommand,
	}

	setFlags(storageCmd)
	helper.SetRequiredFlags(storageCmd, params.getRequiredFlags())

	return storageCmd
}

func setFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(
		&params.module,
		moduleFlag,
		"",
		"the module owning the storage entry",
	)

	cmd.Flags().StringVar(
		&params.entry,
		entryFlag,
		"",
		"the storage entry name",
	)

	cmd.Flags().StringArrayVar(
		&params.keysRaw,
		keyFlag,
		nil,
		"a JSON map key, repeated once per hasher",
	)

	cmd.Flags().StringVar(
		&params.blockRaw,
		blockFlag,
		"",
		"the block hash or number to read at (default best block)",
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

	entry, err := reg.StorageEntry(params.module, params.entry)
	if err != nil {
		outputter.SetError(err)

		return
	}

	key, err := params.storageKey(reg, entry)
	if err != nil {
		outputter.SetError(err)

		return
	}

	raw, found, err := session.Client().Storage(cmd.Context(), key, at)
	if err != nil {
		outputter.SetError(err)

		return
	}

	res := &StorageResult{
		Module: entry.Module,
		Entry:  entry.Name,
		Key:    key,
		Found:  found,
	}

	if !found && entry.Modifier == metadata.ModifierDefault {
		raw, res.Default = entry.Default, true
	}

	if found || res.Default {
		v, err := value.DecodeAll(raw, entry.Value, reg)
		if err != nil {
			outputter.SetError(fmt.Errorf("failed to decode %s.%s: %w", entry.Module, entry.Name, err))

			return
		}

		res.Value = &v
	}

	outputter.SetCommandResult(res)
}
