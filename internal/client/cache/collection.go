// Package cache holds the client-side copy of one resource type. The remote
// store stays the source of truth; the collection only decides which response
// is allowed to overwrite which.
package cache

import (
	"sync"
	"time"
)

// Collection caches entities newest first.
//
// Two counters keep stale responses out. Every list fetch takes a generation
// and is applied only if no later fetch or mutation touched the collection in
// between. Every mutation takes a sequence number per entity and a write is
// applied only if no higher sequence has been applied to that entity
// (last writer by sequence, not by arrival).
type Collection[T any] struct {
	mu  sync.Mutex
	key func(T) string
	ttl time.Duration
	now func() time.Time

	items     []T
	fetchedAt time.Time
	stale     bool
	closed    bool

	gen     uint64
	seq     uint64
	applied map[string]uint64
}

// New creates a collection. A ttl of zero means entries stay fresh until invalidated.
func New[T any](key func(T) string, ttl time.Duration) *Collection[T] {
	return &Collection[T]{
		key:     key,
		ttl:     ttl,
		now:     time.Now,
		items:   []T{},
		stale:   true,
		applied: make(map[string]uint64),
	}
}

// Items returns a copy of the cached entities. It is never nil.
func (c *Collection[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.index(id); i >= 0 {
		return c.items[i], true
	}
	var zero T
	return zero, false
}

// Fresh reports whether a fetch has landed and neither the TTL nor an
// invalidation has expired it.
func (c *Collection[T]) Fresh() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stale {
		return false
	}
	return c.ttl <= 0 || c.now().Sub(c.fetchedAt) < c.ttl
}

func (c *Collection[T]) Invalidate() {
	c.mu.Lock()
	c.stale = true
	c.mu.Unlock()
}

// BeginFetch returns the token a list response must present to ApplyFetch.
func (c *Collection[T]) BeginFetch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	return c.gen
}

// ApplyFetch replaces the contents with items unless a newer fetch or a
// mutation happened since token was issued.
func (c *Collection[T]) ApplyFetch(token uint64, items []T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || token != c.gen {
		return false
	}
	c.items = make([]T, len(items))
	copy(c.items, items)
	c.fetchedAt = c.now()
	c.stale = false
	return true
}

// BeginMutation returns the sequence number for a mutation about to start.
func (c *Collection[T]) BeginMutation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Put inserts or replaces item on behalf of mutation seq. New entities go first.
// It returns false when a later mutation already wrote this entity.
func (c *Collection[T]) Put(seq uint64, item T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.key(item)
	if !c.admit(id, seq) {
		return false
	}
	if i := c.index(id); i >= 0 {
		c.items[i] = item
	} else {
		c.items = append([]T{item}, c.items...)
	}
	return true
}

// Remove drops the entity on behalf of mutation seq.
func (c *Collection[T]) Remove(seq uint64, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.admit(id, seq) {
		return false
	}
	if i := c.index(id); i >= 0 {
		c.items = append(c.items[:i], c.items[i+1:]...)
	}
	return true
}

// RemoveWhere drops every entity matching pred, e.g. the members of a deleted organization.
func (c *Collection[T]) RemoveWhere(seq uint64, pred func(T) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0
	}
	kept := c.items[:0]
	removed := 0
	for _, item := range c.items {
		if pred(item) && c.admit(c.key(item), seq) {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	c.items = kept
	return removed
}

// Close makes every later write a no-op. Reads keep working.
func (c *Collection[T]) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *Collection[T]) admit(id string, seq uint64) bool {
	if c.closed || seq < c.applied[id] {
		return false
	}
	c.applied[id] = seq
	// Any list fetch in flight predates this write.
	c.gen++
	return true
}

func (c *Collection[T]) index(id string) int {
	for i, item := range c.items {
		if c.key(item) == id {
			return i
		}
	}
	return -1
}
