package metadata

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
	lru "github.com/hashicorp/golang-lru"
)

const (
	// How many resolved registries are kept, keyed by runtime spec version
	defaultCacheSize = 8
)

// FetchFunc returns the raw metadata blob for a runtime
type FetchFunc func() ([]byte, error)

// Cache keeps resolved registries per runtime spec version so that a
// runtime upgrade triggers exactly one re-resolution
type Cache struct {
	logger hclog.Logger
	lru    *lru.Cache
}

func NewCache(size int, logger hclog.Logger) (*Cache, error) {
	if size <= 0 {
		size = defaultCacheSize
	}

	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("unable to create registry cache, %w", err)
	}

	return &Cache{logger: logger.Named("metadata-cache"), lru: c}, nil
}

func (c *Cache) Get(specVersion uint32) (*Registry, bool) {
	raw, ok := c.lru.Get(specVersion)
	if !ok {
		return nil, false
	}

	reg, ok := raw.(*Registry)

	return reg, ok
}

func (c *Cache) Add(specVersion uint32, reg *Registry) {
	c.lru.Add(specVersion, reg)
}

// GetOrResolve returns the cached registry for specVersion, fetching and resolving it on a miss
func (c *Cache) GetOrResolve(specVersion uint32, fetch FetchFunc) (*Registry, error) {
	if reg, ok := c.Get(specVersion); ok {
		return reg, nil
	}

	raw, err := fetch()
	if err != nil {
		return nil, err
	}

	reg, err := Resolve(raw)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("resolved metadata", "spec_version", specVersion, "version", reg.Version,
		"modules", len(reg.modules), "types", len(reg.typeIDs))

	c.Add(specVersion, reg)

	return reg, nil
}

func (c *Cache) Len() int {
	return c.lru.Len()
}
