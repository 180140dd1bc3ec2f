package dataset

import (
	"sync"

	"go.uber.org/zap"
)

// Cache holds the loaded measurement store for the process. It is only
// replaced through Reload or dropped through Invalidate.
type Cache struct {
	logger *zap.Logger
	dir    string

	mu sync.RWMutex
	ds *Dataset
}

// NewCache creates a cache that loads from dir on first use
func NewCache(dir string, logger *zap.Logger) *Cache {
	return &Cache{
		logger: logger.Named("dataset"),
		dir:    dir,
	}
}

// Dir returns the data directory backing the cache
func (c *Cache) Dir() string {
	return c.dir
}

// Get returns the cached dataset, loading it if needed
func (c *Cache) Get() (*Dataset, error) {
	c.mu.RLock()
	ds := c.ds
	c.mu.RUnlock()
	if ds != nil {
		return ds, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ds != nil {
		return c.ds, nil
	}
	ds, err := Load(c.dir, c.logger)
	if err != nil {
		return nil, err
	}
	c.ds = ds
	return ds, nil
}

// Reload loads a fresh snapshot and swaps it in. The previous snapshot is
// kept when loading fails.
func (c *Cache) Reload() (*Dataset, error) {
	ds, err := Load(c.dir, c.logger)
	if err != nil {
		c.logger.Warn("Dataset reload failed, keeping previous snapshot", zap.Error(err))
		return nil, err
	}
	c.mu.Lock()
	c.ds = ds
	c.mu.Unlock()
	return ds, nil
}

// Invalidate drops the cached snapshot so the next Get reloads it
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.ds = nil
	c.mu.Unlock()
}
