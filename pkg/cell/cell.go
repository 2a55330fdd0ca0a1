package cell

import "sync"

// subscriber pairs a callback with a unique ID for removal.
type subscriber[T any] struct {
	id uint64
	fn func(T)
}

// subscriberList provides copy-before-notify subscriber management.
// It is embedded in Cell, Derived, and List.
type subscriberList[T any] struct {
	mu   sync.Mutex
	subs []subscriber[T]
}

// add registers a callback and returns an idempotent removal func.
func (l *subscriberList[T]) add(fn func(T)) func() {
	id := nextID()
	l.mu.Lock()
	l.subs = append(l.subs, subscriber[T]{id: id, fn: fn})
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.remove(id)
		})
	}
}

func (l *subscriberList[T]) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, s := range l.subs {
		if s.id == id {
			l.subs[i] = l.subs[len(l.subs)-1]
			l.subs = l.subs[:len(l.subs)-1]
			return
		}
	}
}

// notify calls every subscriber with v. Subscribers are copied first so
// callbacks may subscribe or unsubscribe without deadlocking.
func (l *subscriberList[T]) notify(v T) {
	l.mu.Lock()
	subs := make([]subscriber[T], len(l.subs))
	copy(subs, l.subs)
	l.mu.Unlock()

	for _, s := range subs {
		s.fn(v)
	}
}

// Cell is an observable value container: an explicit wrapper exposing
// read, write, and subscribe in place of implicitly tracked top-level
// variables.
type Cell[T any] struct {
	g *Graph
	n *node

	mu    sync.RWMutex
	value T

	// equal is the change-detection function. Nil means identity
	// semantics (identityEqual).
	equal func(T, T) bool

	subs subscriberList[T]
}

// New creates a cell on g holding the given initial value.
func New[T any](g *Graph, initial T) *Cell[T] {
	c := &Cell[T]{
		g:     g,
		value: initial,
	}
	c.n = &node{
		id:      nextID(),
		height:  0,
		deliver: func() { c.subs.notify(c.Get()) },
	}
	return c
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Set writes a new value. If the write counts as a change, dependents
// re-run and subscribers are notified after the graph settles. Outside a
// batch the flush runs inline, synchronously, before Set returns.
func (c *Cell[T]) Set(value T) {
	acquired := c.g.acquire()
	defer c.g.release(acquired)

	c.mu.Lock()
	changed := !c.equals(c.value, value)
	if changed {
		c.value = value
	}
	c.mu.Unlock()

	if changed {
		c.g.markChanged(c.n)
	}
}

// Update atomically reads and rewrites the cell's value.
func (c *Cell[T]) Update(fn func(T) T) {
	acquired := c.g.acquire()
	defer c.g.release(acquired)

	c.mu.Lock()
	old := c.value
	next := fn(old)
	changed := !c.equals(old, next)
	if changed {
		c.value = next
	}
	c.mu.Unlock()

	if changed {
		c.g.markChanged(c.n)
	}
}

// Subscribe registers fn as an observer. fn is invoked once
// synchronously with the current value before Subscribe returns, and
// once per subsequent committed change. The returned unsubscribe is
// idempotent and safe to call during teardown.
func (c *Cell[T]) Subscribe(fn func(T)) func() {
	unsubscribe := c.subs.add(fn)
	fn(c.Get())
	return unsubscribe
}

// WithEquals overrides the cell's change detection.
func (c *Cell[T]) WithEquals(fn func(T, T) bool) *Cell[T] {
	c.equal = fn
	return c
}

// ID returns the cell's unique node identifier.
func (c *Cell[T]) ID() uint64 {
	return c.n.id
}

// depNode lets a cell serve as a direct dependency of a derived value.
func (c *Cell[T]) depNode() *node {
	return c.n
}

func (c *Cell[T]) equals(a, b T) bool {
	if c.equal != nil {
		return c.equal(a, b)
	}
	return identityEqual(a, b)
}
