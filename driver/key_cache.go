package driver

import (
	"sync"

	"github.com/elliotchance/orderedmap"
	"github.com/tuneinsight/lattigo/v6/core/rlwe"
)

// keyCache keeps the most recently used evaluation keys by ID.
type keyCache struct {
	mu       sync.Mutex
	capacity int
	// key ID -> rlwe.EvaluationKeySet, least recently used first
	keys *orderedmap.OrderedMap
}

func newKeyCache(capacity int) *keyCache {
	return &keyCache{capacity: capacity, keys: orderedmap.NewOrderedMap()}
}

func (c *keyCache) get(id string) (rlwe.EvaluationKeySet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.keys.Get(id)
	if !ok {
		return nil, false
	}
	c.keys.Delete(id)
	c.keys.Set(id, v)
	return v.(rlwe.EvaluationKeySet), true
}

func (c *keyCache) put(id string, keys rlwe.EvaluationKeySet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys.Delete(id)
	c.keys.Set(id, keys)
	for c.keys.Len() > c.capacity {
		c.keys.Delete(c.keys.Front().Key)
	}
}

func (c *keyCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keys.Len()
}
