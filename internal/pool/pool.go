// Package pool recycles long-lived items keyed by a coordinate. Items are
// never destroyed: they are set up for an id, torn down, and reused.
package pool

import "sync"

// Item is an object the pool can recycle.
type Item[K comparable] interface {
	comparable
	// Setup prepares the item to represent id.
	Setup(id K)
	// ID returns the id of the last Setup.
	ID() K
	// Teardown stops the item's work and calls done exactly once when all of
	// it has finished. done may run synchronously or later, on any goroutine.
	Teardown(done func())
}

// Size is a snapshot of pool occupancy.
type Size struct {
	Available  int
	CheckedOut int
}

// Total returns every item the pool has constructed.
func (s Size) Total() int { return s.Available + s.CheckedOut }

// Pool hands out items by id, reusing torn down ones before constructing
// new ones.
type Pool[K comparable, V Item[K]] struct {
	newItem func() V

	mu        sync.RWMutex
	active    map[K]V
	releasing map[V]K
	available []V
	created   int
}

// New creates an empty pool that builds items with newItem.
func New[K comparable, V Item[K]](newItem func() V) *Pool[K, V] {
	return &Pool[K, V]{
		newItem:   newItem,
		active:    make(map[K]V),
		releasing: make(map[V]K),
	}
}

// CheckOut returns the active item for id, or sets up a recycled or new
// one. The second result reports whether the item was newly checked out.
func (p *Pool[K, V]) CheckOut(id K) (V, bool) {
	p.mu.RLock()
	item, ok := p.active[id]
	p.mu.RUnlock()
	if ok {
		return item, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// Double-check: another goroutine might have checked it out meanwhile.
	if item, ok := p.active[id]; ok {
		return item, false
	}
	if n := len(p.available); n > 0 {
		item = p.available[n-1]
		var zero V
		p.available[n-1] = zero
		p.available = p.available[:n-1]
	} else {
		item = p.newItem()
		p.created++
	}
	item.Setup(id)
	p.active[id] = item
	return item, true
}

// Get returns the active item for id.
func (p *Pool[K, V]) Get(id K) (V, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	item, ok := p.active[id]
	return item, ok
}

// Return starts tearing item down. The item stays counted as checked out
// until its teardown completes, and only then becomes available. Returning
// an item that is not active, or is already being torn down, does nothing.
func (p *Pool[K, V]) Return(item V) {
	p.mu.Lock()
	id := item.ID()
	if cur, ok := p.active[id]; !ok || cur != item {
		p.mu.Unlock()
		return
	}
	delete(p.active, id)
	p.releasing[item] = id
	p.mu.Unlock()

	var once sync.Once
	item.Teardown(func() {
		once.Do(func() { p.finish(item) })
	})
}

func (p *Pool[K, V]) finish(item V) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.releasing[item]; !ok {
		return
	}
	delete(p.releasing, item)
	p.available = append(p.available, item)
}

// Releasing reports whether item is being torn down.
func (p *Pool[K, V]) Releasing(item V) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.releasing[item]
	return ok
}

// Prewarm constructs items until at least n are available.
func (p *Pool[K, V]) Prewarm(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.available) < n {
		p.available = append(p.available, p.newItem())
		p.created++
	}
}

// Active returns a snapshot of the active items.
func (p *Pool[K, V]) Active() []V {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]V, 0, len(p.active))
	for _, v := range p.active {
		out = append(out, v)
	}
	return out
}

// Size returns the current occupancy.
func (p *Pool[K, V]) Size() Size {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Size{
		Available:  len(p.available),
		CheckedOut: len(p.active) + len(p.releasing),
	}
}

// Created returns how many items the pool has constructed.
func (p *Pool[K, V]) Created() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.created
}
