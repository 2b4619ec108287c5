// Package ristretto implements the cache port using dgraph-io/ristretto as an
// in-process cache for remote identity lookups.
package ristretto

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// ErrRejected is returned when the admission policy drops a write.
var ErrRejected = errors.New("identity cache rejected entry")

// Cache holds name to remote id mappings. Entries are tiny, so cost is
// counted in bytes of key plus id.
type Cache struct {
	c *ristretto.Cache[string, []byte]
}

// Stats is a snapshot of cache effectiveness.
type Stats struct {
	Hits     uint64
	Misses   uint64
	Rejected uint64
}

// New creates a ristretto-backed cache bounded to maxCostBytes of keys and ids.
func New(maxCostBytes int64) (*Cache, error) {
	if maxCostBytes <= 0 {
		return nil, fmt.Errorf("identity cache size must be positive, got %d", maxCostBytes)
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: max(maxCostBytes/64*10, 1000), // ~10x expected entries of ~64 bytes
		MaxCost:     maxCostBytes,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c}, nil
}

// Get returns the cached id for key.
func (c *Cache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	val, found := c.c.Get(key)
	if !found {
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores an id with the given TTL and waits until it is readable, so a
// resource created a moment ago is found on the next lookup.
// A zero TTL keeps the value until eviction.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if !c.c.SetWithTTL(key, value, int64(len(key)+len(value)), ttl) {
		return fmt.Errorf("%w: %s", ErrRejected, key)
	}
	c.c.Wait()
	return nil
}

// Delete removes a value from the cache.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	return nil
}

// Stats reports hits, misses and rejected writes since creation.
func (c *Cache) Stats() Stats {
	m := c.c.Metrics
	return Stats{
		Hits:     m.Hits(),
		Misses:   m.Misses(),
		Rejected: m.SetsRejected() + m.SetsDropped(),
	}
}

// Close shuts down the cache and releases resources.
func (c *Cache) Close() {
	c.c.Close()
}
