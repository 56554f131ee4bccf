package segment

// entry is one cached embedding together with the frames it maps between.
type entry struct {
	embedding    Embedding
	origW, origH int
	encW, encH   int
}

// embeddingCache is a bounded map that evicts in insertion order. Lookups
// do not refresh an entry's position.
type embeddingCache struct {
	capacity int
	order    []string
	entries  map[string]*entry
}

func newEmbeddingCache(capacity int) *embeddingCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &embeddingCache{
		capacity: capacity,
		entries:  make(map[string]*entry, capacity),
	}
}

func (c *embeddingCache) get(key string) (*entry, bool) {
	e, ok := c.entries[key]
	return e, ok
}

// put stores e under key and returns the evicted key, if any. Replacing an
// existing key keeps its original position.
func (c *embeddingCache) put(key string, e *entry) (evicted string, ok bool) {
	if _, exists := c.entries[key]; exists {
		c.entries[key] = e
		return "", false
	}
	if len(c.order) >= c.capacity {
		evicted, ok = c.order[0], true
		c.order = c.order[1:]
		delete(c.entries, evicted)
	}
	c.order = append(c.order, key)
	c.entries[key] = e
	return evicted, ok
}

func (c *embeddingCache) len() int {
	return len(c.order)
}

// keys returns the cached keys, oldest first.
func (c *embeddingCache) keys() []string {
	return append([]string(nil), c.order...)
}
