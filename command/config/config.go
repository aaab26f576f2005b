package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/hcl"
	"gopkg.in/yaml.v3"

	"github.com/0xPolygon/substrate-client/command"
	"github.com/0xPolygon/substrate-client/crypto"
	"github.com/0xPolygon/substrate-client/helper/common"
	"github.com/0xPolygon/substrate-client/tracker"
	"github.com/0xPolygon/substrate-client/txrelayer"
)

const (
	DefaultCallTimeout     = "30s"
	DefaultRetryBackoff    = "500ms"
	DefaultFinalityTimeout = "5m"
	DefaultNonceRetries    = 3
	DefaultMaxReorgCycles  = 3
)

// Config defines the client configuration params
type Config struct {
	NodeURL       string            `json:"node" yaml:"node" hcl:"node"`
	Headers       map[string]string `json:"headers" yaml:"headers" hcl:"headers"`
	CallTimeout   string            `json:"call_timeout" yaml:"call_timeout" hcl:"call_timeout"`
	LogLevel      string            `json:"log_level" yaml:"log_level" hcl:"log_level"`
	JSONLogFormat bool              `json:"json_log_format" yaml:"json_log_format" hcl:"json_log_format"`

	Signer     *Signer     `json:"signer" yaml:"signer" hcl:"signer"`
	Submission *Submission `json:"submission" yaml:"submission" hcl:"submission"`
}

// Signer locates the key extrinsics are signed with
type Signer struct {
	KeyFile string `json:"key_file" yaml:"key_file" hcl:"key_file"`
	KeyType string `json:"key_type" yaml:"key_type" hcl:"key_type"`
}

// Submission holds the extrinsic building and tracking params
type Submission struct {
	// Mortality is the era period in blocks, zero for immortal extrinsics
	Mortality       uint64 `json:"mortality" yaml:"mortality" hcl:"mortality"`
	Tip             string `json:"tip" yaml:"tip" hcl:"tip"`
	NonceRetries    uint64 `json:"nonce_retries" yaml:"nonce_retries" hcl:"nonce_retries"`
	RetryBackoff    string `json:"retry_backoff" yaml:"retry_backoff" hcl:"retry_backoff"`
	MaxReorgCycles  int    `json:"max_reorg_cycles" yaml:"max_reorg_cycles" hcl:"max_reorg_cycles"`
	FinalityTimeout string `json:"finality_timeout" yaml:"finality_timeout" hcl:"finality_timeout"`
	WaitFor         string `json:"wait_for" yaml:"wait_for" hcl:"wait_for"`
}

// DefaultConfig returns the default client config
func DefaultConfig() *Config {
	return &Config{
		NodeURL:     command.DefaultNodeURL,
		Headers:     map[string]string{},
		CallTimeout: DefaultCallTimeout,
		LogLevel:    command.DefaultLogLevel,
		Signer: &Signer{
			KeyType: string(crypto.KeySr25519),
		},
		Submission: &Submission{
			Tip:             "0",
			NonceRetries:    DefaultNonceRetries,
			RetryBackoff:    DefaultRetryBackoff,
			MaxReorgCycles:  DefaultMaxReorgCycles,
			FinalityTimeout: DefaultFinalityTimeout,
			WaitFor:         tracker.WaitForFinalized.String(),
		},
	}
}

// ReadConfigFile reads the config file from the specified path, on top of the defaults.
//
// Supported file types: .json, .hcl, .yaml, .yml
func ReadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var unmarshalFunc func([]byte, interface{}) error

	switch {
	case strings.HasSuffix(path, ".hcl"):
		unmarshalFunc = hcl.Unmarshal
	case strings.HasSuffix(path, ".json"):
		unmarshalFunc = json.Unmarshal
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		unmarshalFunc = yaml.Unmarshal
	default:
		return nil, fmt.Errorf("suffix of %s is neither hcl, json, yaml nor yml", path)
	}

	config := DefaultConfig()

	if err := unmarshalFunc(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	// sections left out of the file keep their defaults
	defaults := DefaultConfig()

	if config.Signer == nil {
		config.Signer = defaults.Signer
	}

	if config.Submission == nil {
		config.Submission = defaults.Submission
	}

	return config, nil
}

// CallTimeoutDuration parses the per request timeout
func (c *Config) CallTimeoutDuration() (time.Duration, error) {
	return parseDuration("call_timeout", c.CallTimeout)
}

// KeyType parses the signer key type
func (c *Config) KeyType() (crypto.KeyType, error) {
	return crypto.ParseKeyType(c.Signer.KeyType)
}

// RelayerOptions converts the submission params into relayer options
func (c *Config) RelayerOptions() ([]txrelayer.RelayerOption, error) {
	s := c.Submission

	tip, err := common.ParseUint256orHex(&s.Tip)
	if err != nil {
		return nil, fmt.Errorf("invalid tip: %w", err)
	}

	backoff, err := parseDuration("retry_backoff", s.RetryBackoff)
	if err != nil {
		return nil, err
	}

	timeout, err := parseDuration("finality_timeout", s.FinalityTimeout)
	if err != nil {
		return nil, err
	}

	waitFor, err := tracker.ParseWaitFor(s.WaitFor)
	if err != nil {
		return nil, err
	}

	return []txrelayer.RelayerOption{
		txrelayer.WithMortality(s.Mortality),
		txrelayer.WithTip(tip),
		txrelayer.WithNonceRetry(s.NonceRetries, backoff),
		txrelayer.WithTrackerOptions(
			tracker.WithWaitFor(waitFor),
			tracker.WithTimeout(timeout),
			tracker.WithMaxReorgCycles(s.MaxReorgCycles),
		),
	}, nil
}

func parseDuration(name, raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}

	if d < 0 {
		return 0, fmt.Errorf("invalid %s: negative duration %s", name, raw)
	}

	return d, nil
}
