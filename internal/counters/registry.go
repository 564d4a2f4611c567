package counters

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aurora-io/perfcache/internal/logging"
)

// Registry deduplicates handles by key. All registries built on the same
// Scheduler share its timer, so scalar and vector counters refresh together.
type Registry[T any] struct {
	sched   *Scheduler
	lerp    LerpFunc[T]
	clone   func(T) T
	catalog *Catalog[T]
	logger  *logging.Logger

	mu      sync.RWMutex
	handles map[Key]*Handle[T]
}

// NewRegistry creates a registry whose handles interpolate with lerp. The
// catalog backs Counter lookups and may be nil.
func NewRegistry[T any](sched *Scheduler, lerp LerpFunc[T], catalog *Catalog[T]) *Registry[T] {
	if catalog == nil {
		catalog = NewCatalog[T]()
	}
	return &Registry[T]{
		sched:   sched,
		lerp:    lerp,
		catalog: catalog,
		logger:  sched.logger,
		handles: make(map[Key]*Handle[T]),
	}
}

// NewScalarRegistry creates a registry of float64 counters.
func NewScalarRegistry(sched *Scheduler, catalog *Catalog[float64]) *Registry[float64] {
	return NewRegistry(sched, LerpScalar[float64], catalog)
}

// NewVectorRegistry creates a registry of vector counters. Every value it
// hands out is a copy, so callers may modify it.
func NewVectorRegistry(sched *Scheduler, catalog *Catalog[Vector]) *Registry[Vector] {
	r := NewRegistry(sched, LerpVector, catalog)
	r.clone = Vector.Clone
	return r
}

// Catalog returns the catalog backing Counter.
func (r *Registry[T]) Catalog() *Catalog[T] {
	return r.catalog
}

// GetOrCreate returns the handle for key, creating it with provider if it
// does not exist yet. When callers race on the same key the first one wins
// and the other providers are dropped without ever being called.
//
// The handle stays dormant until its first GetValue.
func (r *Registry[T]) GetOrCreate(key Key, provider Provider[T]) (*Handle[T], error) {
	if key.Interval <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInterval, key)
	}
	if provider == nil {
		return nil, fmt.Errorf("%w: %s", ErrNilProvider, key)
	}

	if h, ok := r.Get(key); ok {
		r.logDuplicate(key)
		return h, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.handles[key]; ok {
		r.logDuplicate(key)
		return h, nil
	}
	h := newHandle(key, provider, r.lerp, r.clone, r.sched)
	r.handles[key] = h
	return h, nil
}

// Register creates the handle for key if it does not exist.
func (r *Registry[T]) Register(key Key, provider Provider[T]) error {
	_, err := r.GetOrCreate(key, provider)
	return err
}

// Counter returns the handle sampling name every interval, resolving the
// provider through the catalog when the handle does not exist yet.
func (r *Registry[T]) Counter(name Name, interval time.Duration) (*Handle[T], error) {
	key := name.At(interval)
	if h, ok := r.Get(key); ok {
		return h, nil
	}
	p, ok := r.catalog.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCounter, name)
	}
	return r.GetOrCreate(key, p)
}

// Get returns the handle for key if it exists.
func (r *Registry[T]) Get(key Key) (*Handle[T], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[key]
	return h, ok
}

// Handles returns every handle ordered by key.
func (r *Registry[T]) Handles() []*Handle[T] {
	r.mu.RLock()
	out := make([]*Handle[T], 0, len(r.handles))
	for _, h := range r.handles {
		out = append(out, h)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].key, out[j].key
		if a.Name() != b.Name() {
			return a.Name().String() < b.Name().String()
		}
		return a.Interval < b.Interval
	})
	return out
}

// Len returns the number of handles.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

func (r *Registry[T]) logDuplicate(key Key) {
	r.logger.Debugf("counter already registered, keeping first provider", map[string]any{
		"metric": key.String(),
	})
}
