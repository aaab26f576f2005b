package root

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xPolygon/substrate-client/crypto"
	"github.com/0xPolygon/substrate-client/events"
	"github.com/0xPolygon/substrate-client/extrinsic"
	"github.com/0xPolygon/substrate-client/helper/hex"
	"github.com/0xPolygon/substrate-client/helper/keystore"
	"github.com/0xPolygon/substrate-client/jsonrpc/jsonrpctest"
	"github.com/0xPolygon/substrate-client/metadata"
	"github.com/0xPolygon/substrate-client/metadata/metadatatest"
	"github.com/0xPolygon/substrate-client/types"
	"github.com/0xPolygon/substrate-client/value"
	"github.com/0xPolygon/substrate-client/version"
)

const bobHex = "0x8eaf04151687736326c9fea17e25fc5287613693c912909cb226aa4794f26a48"

var (
	genesis = types.MustParseHash("0xb0a8d493285c2df73290dfb7e61f870f17b41801197a149ca93654499ea3dafe")
	head    = types.BytesToHash([]byte{0x64})
)

// newTestServer serves a chain at block #100 with the standard V14 runtime over http
func newTestServer(t *testing.T) (*jsonrpctest.Node, string) {
	t.Helper()

	node := jsonrpctest.NewNode()

	node.HandleResult("chain_getBlockHash", genesis)
	node.HandleResult("chain_getFinalizedHead", head)
	node.HandleResult("chain_getHeader", types.Header{Number: 100})
	node.HandleResult("state_getRuntimeVersion", types.RuntimeVersion{SpecName: "node", SpecVersion: 100, TransactionVersion: 1})
	node.HandleResult("state_call", "0x00")
	node.HandleResult("state_getMetadata", types.HexBytes(metadatatest.StandardBlob(metadata.V14)))
	node.HandleResult("state_getStorage", nil)

	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)

	return node, srv.URL
}

// execute runs the cli with args and returns stdout and stderr
func execute(t *testing.T, args ...string) (string, string) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	cmd := NewRootCommand().baseCmd
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	require.NoError(t, cmd.Execute())

	return stdout.String(), stderr.String()
}

func TestVersion(t *testing.T) {
	stdout, _ := execute(t, "version", "--json")

	var res map[string]string
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.Equal(t, version.Version, res["version"])

	stdout, _ = execute(t, "version")
	assert.Contains(t, stdout, "[VERSION INFO]")
}

func TestMetadata(t *testing.T) {
	_, url := newTestServer(t)

	stdout, stderr := execute(t, "metadata", "--node", url, "--json")
	require.Empty(t, stderr)

	var res struct {
		Version uint8 `json:"version"`
		Modules []struct {
			Name  string   `json:"name"`
			Calls []string `json:"calls"`
		} `json:"modules"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))

	assert.Equal(t, metadata.V14, res.Version)
	require.Len(t, res.Modules, 3)
	assert.Equal(t, "System", res.Modules[0].Name)
	assert.Equal(t, "Balances", res.Modules[1].Name)
	assert.NotEmpty(t, res.Modules[1].Calls)

	stdout, _ = execute(t, "metadata", "--node", url, "--module", "Balances")
	assert.Contains(t, stdout, "Balances")
	assert.Contains(t, stdout, "transfer")

	_, stderr = execute(t, "metadata", "--node", url, "--module", "Staking")
	assert.NotEmpty(t, stderr)
}

func TestEvents(t *testing.T) {
	node, url := newTestServer(t)

	reg, _ := metadatatest.MustResolve(metadata.V14)
	phase := events.Phase{Kind: events.ApplyExtrinsic, ExtrinsicIndex: 1}

	transfer, err := events.NewRecord(reg, phase, "Balances", "Transfer",
		value.Bytes(hex.MustDecodeHex(bobHex)), value.Bytes(hex.MustDecodeHex(bobHex)), value.Uint(10))
	require.NoError(t, err)

	success, err := events.NewRecord(reg, phase, "System", "ExtrinsicSuccess", metadatatest.DispatchInfo())
	require.NoError(t, err)

	blob, err := events.Encode(events.Records{transfer, success}, reg)
	require.NoError(t, err)

	node.HandleResult("state_getStorage", types.HexBytes(blob))

	stdout, stderr := execute(t, "events", "--node", url, "--json")
	require.Empty(t, stderr)

	var res struct {
		Block    types.Hash `json:"block"`
		Number   uint64     `json:"number"`
		Events   []struct{ Phase, Module, Name string }
		Outcomes []struct {
			Extrinsic uint32 `json:"extrinsic"`
			Success   bool   `json:"success"`
		} `json:"outcomes"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))

	assert.Equal(t, head, res.Block)
	assert.Equal(t, uint64(100), res.Number)
	require.Len(t, res.Events, 2)
	assert.Equal(t, "ApplyExtrinsic(1)", res.Events[0].Phase)
	assert.Equal(t, "Transfer", res.Events[0].Name)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, uint32(1), res.Outcomes[0].Extrinsic)
	assert.True(t, res.Outcomes[0].Success)

	// events are read at the finalized head
	calls := node.Calls("state_getStorage")
	require.Len(t, calls, 1)
	assert.Equal(t, head.String(), calls[0][1])

	stdout, _ = execute(t, "events", "--node", url, "--extrinsic", "0")
	assert.Contains(t, stdout, "Events = 0")

	// a block number is resolved to its hash first
	stdout, stderr = execute(t, "events", "--node", url, "--block", "0x64", "--json")
	require.Empty(t, stderr)
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.Equal(t, genesis, res.Block)

	hashCalls := node.Calls("chain_getBlockHash")
	require.NotEmpty(t, hashCalls)
	assert.Equal(t, []interface{}{float64(100)}, hashCalls[len(hashCalls)-1])

	_, stderr = execute(t, "events", "--node", url, "--block", "latest")
	assert.Contains(t, stderr, "invalid block")
}

func TestStorage(t *testing.T) {
	node, url := newTestServer(t)

	// nothing stored, the metadata default is decoded
	stdout, stderr := execute(t, "storage", "--node", url, "--module", "Balances", "--entry", "TotalIssuance", "--json")
	require.Empty(t, stderr)

	var res struct {
		Found   bool            `json:"found"`
		Default bool            `json:"default"`
		Key     types.HexBytes  `json:"key"`
		Value   json.RawMessage `json:"value"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.False(t, res.Found)
	assert.True(t, res.Default)
	assert.NotEqual(t, "null", string(res.Value))

	stored := bytes.Repeat([]byte{0xab}, 32)
	node.HandleResult("state_getStorage", types.HexBytes(stored))

	stdout, stderr = execute(t, "storage", "--node", url, "--module", "System", "--entry", "BlockHash", "--key", "7", "--json")
	require.Empty(t, stderr)
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))

	num := []byte{7, 0, 0, 0}
	expected := append(append(append(crypto.Twox128([]byte("System")), crypto.Twox128([]byte("BlockHash"))...),
		crypto.Twox64(num)...), num...)

	assert.True(t, res.Found)
	assert.False(t, res.Default)
	assert.Equal(t, expected, []byte(res.Key))

	calls := node.Calls("state_getStorage")
	assert.Equal(t, hex.EncodeToHex(expected), calls[len(calls)-1][0])

	// a map entry needs its key
	_, stderr = execute(t, "storage", "--node", url, "--module", "System", "--entry", "BlockHash")
	assert.Contains(t, stderr, "wrong number of storage keys")
}

func TestKeyAndSubmit(t *testing.T) {
	node, url := newTestServer(t)

	keyFile := filepath.Join(t.TempDir(), "keys", "alice")

	stdout, stderr := execute(t, "key", "--key-file", keyFile, "--key-type", "ed25519", "--json")
	require.Empty(t, stderr)

	var key struct {
		Address   string `json:"address"`
		PublicKey string `json:"public_key"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &key))

	seed, err := keystore.ReadSeed(keyFile)
	require.NoError(t, err)

	signer, err := crypto.NewSigner(crypto.KeyEd25519, seed)
	require.NoError(t, err)
	assert.Equal(t, signer.AccountID().String(), key.Address)

	node.HandleResult("system_accountNextIndex", 4)
	node.Handle("author_submitExtrinsic", func(params []interface{}) (interface{}, error) {
		return crypto.Blake2_256Hash(hex.MustDecodeHex(params[0].(string))), nil
	})

	stdout, stderr = execute(t, "submit", "--node", url,
		"--module", "Balances", "--call", "transfer",
		"--args", `{"dest": "`+bobHex+`", "value": "1000"}`,
		"--key-file", keyFile, "--key-type", "ed25519",
		"--tip", "0x10", "--no-wait", "--json")
	require.Empty(t, stderr)

	calls := node.Calls("author_submitExtrinsic")
	require.Len(t, calls, 1)

	submitted := hex.MustDecodeHex(calls[0][0].(string))

	var res struct {
		ExtrinsicHash types.Hash `json:"extrinsic_hash"`
		Signer        string     `json:"signer"`
		Status        string     `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))

	assert.Equal(t, "submitted", res.Status)
	assert.Equal(t, key.Address, res.Signer)
	assert.Equal(t, crypto.Blake2_256Hash(submitted), res.ExtrinsicHash)

	reg, _ := metadatatest.MustResolve(metadata.V14)

	ext, err := extrinsic.DecodeExtrinsic(submitted, reg)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), ext.Signature.Nonce)
	assert.Equal(t, int64(16), ext.Signature.Tip.Int64())

	ok, err := ext.Verify(extrinsic.ChainInfo{SpecVersion: 100, TransactionVersion: 1, GenesisHash: genesis}, reg, signer.PublicKey())
	require.NoError(t, err)
	assert.True(t, ok)

	// http transports cannot watch the extrinsic
	_, stderr = execute(t, "submit", "--node", url,
		"--module", "Balances", "--call", "transfer",
		"--args", `{"dest": "`+bobHex+`", "value": 1}`,
		"--key-file", keyFile, "--key-type", "ed25519")
	assert.Contains(t, stderr, "subscriptions")
}

func TestSubmit_ConfigFile(t *testing.T) {
	_, url := newTestServer(t)

	cfg := filepath.Join(t.TempDir(), "client.json")
	require.NoError(t, os.WriteFile(cfg, []byte(`{"node": "`+url+`", "signer": {"key_file": "/nonexistent", "key_type": "ed25519"}}`), 0600))

	// node url comes from the file, the key file cannot be read
	_, stderr := execute(t, "submit", "--config", cfg, "--module", "Balances", "--call", "transfer")
	assert.Contains(t, stderr, "/nonexistent")

	_, stderr = execute(t, "submit", "--config", cfg, "--module", "Balances", "--call", "transfer", "--args", "[]")
	assert.Contains(t, stderr, "JSON object")
}
