package keystore

import (
	"fmt"
	"os"
	"strings"

	"github.com/0xPolygon/substrate-client/helper/common"
	"github.com/0xPolygon/substrate-client/helper/hex"
)

type createFn func() ([]byte, error)

// CreateIfNotExists generates a seed at the specified path,
// or reads it if a key file is present
func CreateIfNotExists(path string, create createFn) ([]byte, error) {
	if common.FileExists(path) {
		return ReadSeed(path)
	}

	seed, err := create()
	if err != nil {
		return nil, fmt.Errorf("unable to generate seed: %w", err)
	}

	if err := WriteSeed(path, seed); err != nil {
		return nil, err
	}

	return seed, nil
}

// ReadSeed reads a hex encoded seed, with or without 0x prefix, from disk
func ReadSeed(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read seed from disk (%s): %w", path, err)
	}

	seed, err := hex.DecodeHex(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("unable to decode seed (%s): %w", path, err)
	}

	return seed, nil
}

// WriteSeed stores the seed hex encoded, readable only by the owner
func WriteSeed(path string, seed []byte) error {
	if err := common.EnsureParentDir(path); err != nil {
		return err
	}

	if err := os.WriteFile(path, []byte(hex.EncodeToHex(seed)), 0600); err != nil {
		return fmt.Errorf("unable to write seed to disk (%s): %w", path, err)
	}

	return nil
}
