package helper

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/ryanuber/columnize"
	"github.com/spf13/cobra"

	"github.com/0xPolygon/substrate-client/command"
	"github.com/0xPolygon/substrate-client/command/config"
	"github.com/0xPolygon/substrate-client/helper/common"
	"github.com/0xPolygon/substrate-client/jsonrpc"
	"github.com/0xPolygon/substrate-client/txrelayer"
	"github.com/0xPolygon/substrate-client/types"
)

// RegisterJSONOutputFlag registers the --json output setting for all child commands
func RegisterJSONOutputFlag(cmd *cobra.Command) {
	cmd.PersistentFlags().Bool(
		command.JSONOutputFlag,
		false,
		"get all outputs in json format (default false)",
	)
}

// RegisterClientFlags registers the node connection settings for all child commands
func RegisterClientFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String(
		command.NodeFlag,
		command.DefaultNodeURL,
		"the node endpoint, ws(s):// for subscriptions or http(s)://",
	)

	cmd.PersistentFlags().String(
		command.ConfigFlag,
		"",
		"the client config file (.hcl, .json, .yaml or .yml)",
	)

	cmd.PersistentFlags().String(
		command.LogLevelFlag,
		command.DefaultLogLevel,
		"the log level for console output",
	)
}

// LoadConfig reads the --config file when given and applies the explicitly set flags on top
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if path, _ := cmd.Flags().GetString(command.ConfigFlag); path != "" {
		var err error
		if cfg, err = config.ReadConfigFile(path); err != nil {
			return nil, err
		}
	}

	if flag := cmd.Flag(command.NodeFlag); flag != nil && flag.Changed {
		cfg.NodeURL = flag.Value.String()
	}

	if flag := cmd.Flag(command.LogLevelFlag); flag != nil && flag.Changed {
		cfg.LogLevel = flag.Value.String()
	}

	return cfg, nil
}

// NewLogger builds the root logger. Logs go to stderr, stdout is for command results
func NewLogger(cfg *config.Config) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:       "substrate-client",
		Level:      hclog.LevelFromString(cfg.LogLevel),
		JSONFormat: cfg.JSONLogFormat,
		Output:     os.Stderr,
	})
}

// Session is a node connection set up from the command's config
type Session struct {
	Config  *config.Config
	Logger  hclog.Logger
	Relayer *txrelayer.TxRelayer
}

// NewSession loads the config, lets the command adjust it from its own flags and dials the node
func NewSession(ctx context.Context, cmd *cobra.Command, adjust ...func(*config.Config)) (*Session, error) {
	cfg, err := LoadConfig(cmd)
	if err != nil {
		return nil, err
	}

	for _, fn := range adjust {
		fn(cfg)
	}

	logger := NewLogger(cfg)

	timeout, err := cfg.CallTimeoutDuration()
	if err != nil {
		return nil, err
	}

	relayerOpts, err := cfg.RelayerOptions()
	if err != nil {
		return nil, err
	}

	opts := []jsonrpc.ConfigOption{
		jsonrpc.WithLogger(logger),
		jsonrpc.WithHeaders(cfg.Headers),
	}

	if timeout > 0 {
		opts = append(opts, jsonrpc.WithCallTimeout(timeout))
	}

	client, err := jsonrpc.Dial(ctx, cfg.NodeURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.NodeURL, err)
	}

	relayer, err := txrelayer.NewTxRelayer(jsonrpc.NewSubstrateClient(client), logger, relayerOpts...)
	if err != nil {
		_ = client.Close()

		return nil, err
	}

	return &Session{Config: cfg, Logger: logger, Relayer: relayer}, nil
}

func (s *Session) Client() *jsonrpc.SubstrateClient {
	return s.Relayer.Client()
}

func (s *Session) Close() error {
	return s.Client().Close()
}

// SetRequiredFlags marks the command flags that must be set
func SetRequiredFlags(cmd *cobra.Command, required []string) {
	for _, requiredFlag := range required {
		_ = cmd.MarkFlagRequired(requiredFlag)
	}
}

// ResolveBlock turns a --block value into a block hash. The value is either a
// 0x prefixed 32-byte hash or a block number in decimal or hex; empty means the best block
func (s *Session) ResolveBlock(ctx context.Context, raw string) (*types.Hash, error) {
	if raw == "" {
		return nil, nil
	}

	if hash, err := types.ParseHash(raw); err == nil {
		return &hash, nil
	}

	number, err := common.ParseUint64orHex(&raw)
	if err != nil {
		return nil, fmt.Errorf("invalid block %q, expected a hash or a number", raw)
	}

	hash, err := s.Client().BlockHash(ctx, &number)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch hash of block #%d: %w", number, err)
	}

	return &hash, nil
}

// OUTPUT FORMATTING //

// FormatList formats a list, using a specific blank value replacement
func FormatList(in []string) string {
	columnConf := columnize.DefaultConfig()
	columnConf.Empty = "<none>"

	return columnize.Format(in, columnConf)
}

// FormatKV formats key value pairs:
//
// Key = Value
//
// Key = <none>
func FormatKV(in []string) string {
	columnConf := columnize.DefaultConfig()
	columnConf.Empty = "<none>"
	columnConf.Glue = " = "

	return columnize.Format(in, columnConf)
}
