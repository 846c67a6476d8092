package store

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ssargent/respack/pkg/resource"
)

// resourceCache remembers loaded resources by canonical path so repeated
// reference resolution hands out the same instance
type resourceCache struct {
	entries *lru.Cache[string, resource.Resource]
}

func newResourceCache(size int) (*resourceCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, resource.Resource](size)
	if err != nil {
		return nil, err
	}
	return &resourceCache{entries: entries}, nil
}

func (c *resourceCache) get(path string) (resource.Resource, bool) {
	return c.entries.Get(path)
}

func (c *resourceCache) put(path string, r resource.Resource) {
	c.entries.Add(path, r)
}

func (c *resourceCache) evict(path string) {
	c.entries.Remove(path)
}

// evictIf drops path only while it still maps to r
func (c *resourceCache) evictIf(path string, r resource.Resource) {
	if cached, ok := c.entries.Peek(path); ok && cached == r {
		c.entries.Remove(path)
	}
}

func (c *resourceCache) len() int {
	return c.entries.Len()
}

func (c *resourceCache) purge() {
	c.entries.Purge()
}
