package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xPolygon/substrate-client/crypto"
)

const hclConfig = `
node = "wss://rpc.example.org"
log_level = "debug"

headers {
  Authorization = "Bearer token"
}

signer {
  key_file = "/keys/alice"
  key_type = "ed25519"
}

submission {
  mortality = 64
  tip = "0x10"
  nonce_retries = 5
  retry_backoff = "1s"
  max_reorg_cycles = 2
  finality_timeout = "2m"
  wait_for = "inblock"
}
`

const jsonConfig = `{
  "node": "wss://rpc.example.org",
  "log_level": "debug",
  "headers": {"Authorization": "Bearer token"},
  "signer": {"key_file": "/keys/alice", "key_type": "ed25519"},
  "submission": {
    "mortality": 64,
    "tip": "0x10",
    "nonce_retries": 5,
    "retry_backoff": "1s",
    "max_reorg_cycles": 2,
    "finality_timeout": "2m",
    "wait_for": "inblock"
  }
}`

const yamlConfig = `
node: wss://rpc.example.org
log_level: debug
headers:
  Authorization: Bearer token
signer:
  key_file: /keys/alice
  key_type: ed25519
submission:
  mortality: 64
  tip: "0x10"
  nonce_retries: 5
  retry_backoff: 1s
  max_reorg_cycles: 2
  finality_timeout: 2m
  wait_for: inblock
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	return path
}

func TestReadConfigFile(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		content string
	}{
		{"config.hcl", hclConfig},
		{"config.json", jsonConfig},
		{"config.yaml", yamlConfig},
		{"config.yml", yamlConfig},
	}

	for _, c := range cases {
		c := c

		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			config, err := ReadConfigFile(writeConfig(t, c.name, c.content))
			require.NoError(t, err)

			assert.Equal(t, "wss://rpc.example.org", config.NodeURL)
			assert.Equal(t, "debug", config.LogLevel)
			assert.Equal(t, "Bearer token", config.Headers["Authorization"])
			// left out of the file
			assert.Equal(t, DefaultCallTimeout, config.CallTimeout)

			assert.Equal(t, "/keys/alice", config.Signer.KeyFile)

			kt, err := config.KeyType()
			require.NoError(t, err)
			assert.Equal(t, crypto.KeyEd25519, kt)

			s := config.Submission
			assert.Equal(t, uint64(64), s.Mortality)
			assert.Equal(t, "0x10", s.Tip)
			assert.Equal(t, uint64(5), s.NonceRetries)
			assert.Equal(t, "1s", s.RetryBackoff)
			assert.Equal(t, 2, s.MaxReorgCycles)
			assert.Equal(t, "2m", s.FinalityTimeout)
			assert.Equal(t, "inblock", s.WaitFor)

			opts, err := config.RelayerOptions()
			require.NoError(t, err)
			assert.Len(t, opts, 4)
		})
	}
}

func TestReadConfigFile_Errors(t *testing.T) {
	t.Parallel()

	_, err := ReadConfigFile(writeConfig(t, "config.toml", "node = 1"))
	require.ErrorContains(t, err, "neither hcl, json, yaml nor yml")

	_, err = ReadConfigFile(writeConfig(t, "config.json", "{"))
	require.Error(t, err)

	_, err = ReadConfigFile(filepath.Join(t.TempDir(), "missing.json"))
	require.True(t, os.IsNotExist(err))
}

func TestReadConfigFile_MissingSections(t *testing.T) {
	t.Parallel()

	config, err := ReadConfigFile(writeConfig(t, "config.json", `{"node": "http://localhost:9933"}`))
	require.NoError(t, err)

	defaults := DefaultConfig()
	assert.Equal(t, defaults.Signer, config.Signer)
	assert.Equal(t, defaults.Submission, config.Submission)

	timeout, err := config.CallTimeoutDuration()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, timeout)
}

func TestRelayerOptions_Invalid(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		modify func(s *Submission)
		err    string
	}{
		{"tip", func(s *Submission) { s.Tip = "ten" }, "invalid tip"},
		{"negative tip", func(s *Submission) { s.Tip = "-1" }, "invalid tip"},
		{"backoff", func(s *Submission) { s.RetryBackoff = "soon" }, "invalid retry_backoff"},
		{"timeout", func(s *Submission) { s.FinalityTimeout = "-1s" }, "invalid finality_timeout"},
		{"wait for", func(s *Submission) { s.WaitFor = "forever" }, "unknown wait mode"},
	}

	for _, c := range cases {
		config := DefaultConfig()
		c.modify(config.Submission)

		_, err := config.RelayerOptions()
		require.ErrorContains(t, err, c.err, c.name)
	}
}
