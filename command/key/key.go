package key

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/0xPolygon/substrate-client/command"
	"github.com/0xPolygon/substrate-client/command/helper"
	"github.com/0xPolygon/substrate-client/crypto"
	"github.com/0xPolygon/substrate-client/helper/hex"
	"github.com/0xPolygon/substrate-client/helper/keystore"
)

const (
	keyFileFlag = "key-file"
	keyTypeFlag = "key-type"
)

var (
	params = &keyParams{}
)

type keyParams struct {
	keyFile string
	keyType string
}

type KeyResult struct {
	KeyFile   string `json:"key_file"`
	KeyType   string `json:"key_type"`
	PublicKey string `json:"public_key"`
	AccountID string `json:"account_id"`
	Address   string `json:"address"`
}

func (r *KeyResult) GetOutput() string {
	var buffer bytes.Buffer

	buffer.WriteString("\n[SIGNING KEY]\n")
	buffer.WriteString(helper.FormatKV([]string{
		fmt.Sprintf("Key file|%s", r.KeyFile),
		fmt.Sprintf("Key type|%s", r.KeyType),
		fmt.Sprintf("Public key|%s", r.PublicKey),
		fmt.Sprintf("Account ID|%s", r.AccountID),
		fmt.Sprintf("Address|%s", r.Address),
	}))
	buffer.WriteString("\n")

	return buffer.String()
}

func GetCommand() *cobra.Command {
	keyCmd := &cobra.Command{
		Use:   "key",
		Short: "Shows the account of a signing key, generating the key file if it is missing",
		Run:   runCommand,
	}

	keyCmd.Flags().StringVar(
		&params.keyFile,
		keyFileFlag,
		"",
		"the file holding the hex encoded signing seed",
	)

	keyCmd.Flags().StringVar(
		&params.keyType,
		keyTypeFlag,
		string(crypto.KeySr25519),
		"the signing scheme: sr25519, ed25519 or ecdsa",
	)

	helper.SetRequiredFlags(keyCmd, []string{keyFileFlag})

	return keyCmd
}

func runCommand(cmd *cobra.Command, _ []string) {
	outputter := command.InitializeOutputter(cmd)
	defer outputter.WriteOutput()

	kt, err := crypto.ParseKeyType(params.keyType)
	if err != nil {
		outputter.SetError(err)

		return
	}

	seed, err := keystore.CreateIfNotExists(params.keyFile, crypto.GenerateSeed)
	if err != nil {
		outputter.SetError(err)

		return
	}

	signer, err := crypto.NewSigner(kt, seed)
	if err != nil {
		outputter.SetError(err)

		return
	}

	account := signer.AccountID()

	outputter.SetCommandResult(&KeyResult{
		KeyFile:   params.keyFile,
		KeyType:   string(kt),
		PublicKey: hex.EncodeToHex(signer.PublicKey()),
		AccountID: account.Hex(),
		Address:   account.String(),
	})
}
