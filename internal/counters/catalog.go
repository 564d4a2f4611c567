package counters

import (
	"sort"
	"sync"
)

// Catalog maps counter names to providers. Registering a name that already
// exists replaces its provider, which lets internal counters override
// system ones. Handles already created keep the provider they were built with.
type Catalog[T any] struct {
	mu        sync.RWMutex
	providers map[Name]Provider[T]
}

// NewCatalog creates an empty catalog.
func NewCatalog[T any]() *Catalog[T] {
	return &Catalog[T]{providers: make(map[Name]Provider[T])}
}

// Register adds or replaces the provider for name.
func (c *Catalog[T]) Register(name Name, p Provider[T]) error {
	if p == nil {
		return ErrNilProvider
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.providers[name] = p
	return nil
}

// Lookup returns the provider registered for name.
func (c *Catalog[T]) Lookup(name Name) (Provider[T], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.providers[name]
	return p, ok
}

// Names returns every registered name in sorted order.
func (c *Catalog[T]) Names() []Name {
	c.mu.RLock()
	names := make([]Name, 0, len(c.providers))
	for n := range c.providers {
		names = append(names, n)
	}
	c.mu.RUnlock()

	sort.Slice(names, func(i, j int) bool {
		return names[i].String() < names[j].String()
	})
	return names
}

// Len returns the number of registered names.
func (c *Catalog[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.providers)
}
