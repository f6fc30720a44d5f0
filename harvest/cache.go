package harvest

import "sync"

// Cache is the run-scoped mapping from item identifier to its resolved
// detail payload. It grows monotonically for the length of one harvester
// run: ancestor resolution depends on hits here to avoid refetching the
// same ancestor from every sibling branch. Construct one per run and pass
// it into the components that need it.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*Item
}

// NewCache creates an empty run-scoped cache.
func NewCache() *Cache {
	return &Cache{items: make(map[string]*Item)}
}

// Get returns the cached item for the identifier, if present.
func (c *Cache) Get(id string) (*Item, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, ok := c.items[id]
	return item, ok
}

// Put stores an item under its identifier. First write wins: once an
// identifier is present its value never changes for the rest of the run.
func (c *Cache) Put(item *Item) {
	if item == nil || item.ID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items[item.ID]; !exists {
		c.items[item.ID] = item
	}
}

// Has reports whether the identifier is already cached.
func (c *Cache) Has(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.items[id]
	return ok
}

// Len returns the number of cached items.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
