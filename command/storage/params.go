package storage

import (
	"errors"
	"fmt"

	"github.com/0xPolygon/substrate-client/metadata"
	"github.com/0xPolygon/substrate-client/value"
)

const (
	moduleFlag = "module"
	entryFlag  = "entry"
	keyFlag    = "key"
	blockFlag  = "block"
)

var (
	params = &storageParams{}

	errKeyCount = errors.New("wrong number of storage keys")
)

type storageParams struct {
	module   string
	entry    string
	keysRaw  []string
	blockRaw string
}

func (sp *storageParams) getRequiredFlags() []string {
	return []string{
		moduleFlag,
		entryFlag,
	}
}

// storageKey converts the JSON keys through the entry's key types and hashes them into the raw key
func (sp *storageParams) storageKey(reg *metadata.Registry, entry *metadata.StorageEntry) ([]byte, error) {
	keyTypes, err := entry.KeyTypes(reg)
	if err != nil {
		return nil, err
	}

	if len(sp.keysRaw) != len(keyTypes) {
		return nil, fmt.Errorf("%w: %s.%s takes %d, got %d",
			errKeyCount, entry.Module, entry.Name, len(keyTypes), len(sp.keysRaw))
	}

	encoded := make([][]byte, len(keyTypes))

	for i, raw := range sp.keysRaw {
		v, err := value.FromJSON([]byte(raw), keyTypes[i], reg)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}

		if encoded[i], err = value.Encode(v, keyTypes[i], reg); err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
	}

	return entry.StorageKey(encoded...)
}
