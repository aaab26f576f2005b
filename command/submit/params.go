package submit

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/0xPolygon/substrate-client/command/config"
	"github.com/0xPolygon/substrate-client/crypto"
	"github.com/0xPolygon/substrate-client/helper/keystore"
)

const (
	moduleFlag    = "module"
	callFlag      = "call"
	argsFlag      = "args"
	keyFileFlag   = "key-file"
	keyTypeFlag   = "key-type"
	waitFlag      = "wait"
	mortalityFlag = "mortality"
	tipFlag       = "tip"
	noWaitFlag    = "no-wait"
)

var (
	params = &submitParams{}
)

type submitParams struct {
	module  string
	call    string
	argsRaw string

	keyFile   string
	keyType   string
	waitFor   string
	mortality uint64
	tip       string
	noWait    bool

	args map[string][]byte
}

func (sp *submitParams) getRequiredFlags() []string {
	return []string{
		moduleFlag,
		callFlag,
	}
}

func (sp *submitParams) init() error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(sp.argsRaw), &raw); err != nil {
		return fmt.Errorf("--%s must be a JSON object keyed by argument name: %w", argsFlag, err)
	}

	sp.args = make(map[string][]byte, len(raw))
	for name, arg := range raw {
		sp.args[name] = arg
	}

	return nil
}

// applyFlags overrides the config with the flags set on the command line
func (sp *submitParams) applyFlags(cmd *cobra.Command) func(*config.Config) {
	return func(cfg *config.Config) {
		flags := cmd.Flags()

		if flags.Changed(keyFileFlag) {
			cfg.Signer.KeyFile = sp.keyFile
		}

		if flags.Changed(keyTypeFlag) {
			cfg.Signer.KeyType = sp.keyType
		}

		if flags.Changed(waitFlag) {
			cfg.Submission.WaitFor = sp.waitFor
		}

		if flags.Changed(mortalityFlag) {
			cfg.Submission.Mortality = sp.mortality
		}

		if flags.Changed(tipFlag) {
			cfg.Submission.Tip = sp.tip
		}
	}
}

func loadSigner(cfg *config.Config) (crypto.Signer, error) {
	if cfg.Signer.KeyFile == "" {
		return nil, fmt.Errorf("no signing key, set --%s or signer.key_file", keyFileFlag)
	}

	kt, err := cfg.KeyType()
	if err != nil {
		return nil, err
	}

	seed, err := keystore.ReadSeed(cfg.Signer.KeyFile)
	if err != nil {
		return nil, err
	}

	return crypto.NewSigner(kt, seed)
}
