package access

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedDeriver memoizes derivation results by path. Derivation is pure,
// so entries never expire; the LRU bound only caps memory when a corpus
// sync walks millions of keys.
type CachedDeriver struct {
	deriver *Deriver
	cache   *lru.Cache[string, Requirement]
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewCachedDeriver wraps a deriver with an LRU of the given size.
func NewCachedDeriver(d *Deriver, size int) (*CachedDeriver, error) {
	cache, err := lru.New[string, Requirement](size)
	if err != nil {
		return nil, err
	}
	return &CachedDeriver{deriver: d, cache: cache}, nil
}

// Derive returns the requirement for a path, computing it on miss.
func (c *CachedDeriver) Derive(path string) Requirement {
	if req, ok := c.cache.Get(path); ok {
		c.hits.Add(1)
		return req
	}

	req := c.deriver.Derive(path)
	c.cache.Add(path, req)
	c.misses.Add(1)
	return req
}

// Purge drops every cached entry. Called when the vocabulary a process
// was started with is replaced in tests.
func (c *CachedDeriver) Purge() {
	c.cache.Purge()
}

// Stats reports cache hits, misses and current size.
func (c *CachedDeriver) Stats() (hits, misses int64, size int) {
	return c.hits.Load(), c.misses.Load(), c.cache.Len()
}
