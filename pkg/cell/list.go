package cell

import (
	"reflect"
	"sync"
)

// List is a slice-valued cell with per-slot handles that model loop-item
// binding semantics. Mutating the container through SetAt, Append,
// RemoveAt, or Update always counts as a container reassignment and is
// tracked. Writing through a Slot is tracked only when the element type
// is a reference kind; for value kinds the slot rebinds a detached local
// copy and the container is untouched.
type List[T any] struct {
	g *Graph
	n *node

	mu    sync.RWMutex
	items []T

	refKind bool

	subs subscriberList[[]T]
}

// NewList creates a list on g with the given initial items.
func NewList[T any](g *Graph, items ...T) *List[T] {
	l := &List[T]{
		g:       g,
		items:   append([]T(nil), items...),
		refKind: isReferenceKind[T](),
	}
	l.n = &node{
		id:      nextID(),
		height:  0,
		deliver: func() { l.subs.notify(l.Get()) },
	}
	return l
}

// isReferenceKind reports whether T's kind aliases underlying storage
// when copied (pointer, map, slice, chan, func, interface).
func isReferenceKind[T any]() bool {
	t := reflect.TypeOf((*T)(nil)).Elem()
	switch t.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan,
		reflect.Func, reflect.Interface, reflect.UnsafePointer:
		return true
	default:
		return false
	}
}

// Len returns the number of items.
func (l *List[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Get returns a copy of the items.
func (l *List[T]) Get() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]T(nil), l.items...)
}

// At returns the item at index i.
func (l *List[T]) At(i int) T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.items[i]
}

// SetAt reassigns the container slot at index i. Always tracked.
func (l *List[T]) SetAt(i int, v T) {
	acquired := l.g.acquire()
	defer l.g.release(acquired)

	l.mu.Lock()
	l.items[i] = v
	l.mu.Unlock()

	l.g.markChanged(l.n)
}

// Append adds items to the container. Always tracked.
func (l *List[T]) Append(items ...T) {
	acquired := l.g.acquire()
	defer l.g.release(acquired)

	l.mu.Lock()
	l.items = append(l.items, items...)
	l.mu.Unlock()

	l.g.markChanged(l.n)
}

// RemoveAt removes the item at index i. Always tracked.
func (l *List[T]) RemoveAt(i int) {
	acquired := l.g.acquire()
	defer l.g.release(acquired)

	l.mu.Lock()
	l.items = append(l.items[:i], l.items[i+1:]...)
	l.mu.Unlock()

	l.g.markChanged(l.n)
}

// Update replaces the whole container. Always tracked.
func (l *List[T]) Update(fn func([]T) []T) {
	acquired := l.g.acquire()
	defer l.g.release(acquired)

	l.mu.Lock()
	l.items = fn(l.items)
	l.mu.Unlock()

	l.g.markChanged(l.n)
}

// Subscribe registers fn as an observer of the whole container. fn is
// invoked once synchronously with the current items and once per
// committed container change. The returned unsubscribe is idempotent.
func (l *List[T]) Subscribe(fn func([]T)) func() {
	unsubscribe := l.subs.add(fn)
	fn(l.Get())
	return unsubscribe
}

// ID returns the list's unique node identifier.
func (l *List[T]) ID() uint64 {
	return l.n.id
}

// depNode lets a list serve as a dependency of a derived value.
func (l *List[T]) depNode() *node {
	return l.n
}

// Slot returns a loop-item handle bound to index i.
func (l *List[T]) Slot(i int) *Slot[T] {
	return &Slot[T]{list: l, index: i}
}

// Slot is a loop-item binding over one container slot. For
// reference-kind element types, Set writes through to the container and
// is tracked. For value kinds, Set rebinds a detached local copy: the
// container is untouched and nothing is scheduled, mirroring how
// reassigning a primitive loop variable rebinds a copy rather than the
// source slot.
type Slot[T any] struct {
	list  *List[T]
	index int

	mu       sync.Mutex
	detached bool
	local    T
}

// Get reads the slot. A detached slot reads its local copy.
func (s *Slot[T]) Get() T {
	s.mu.Lock()
	if s.detached {
		defer s.mu.Unlock()
		return s.local
	}
	s.mu.Unlock()
	return s.list.At(s.index)
}

// Set writes the slot. Reference-kind elements write through to the
// container (tracked); value-kind elements detach into a local copy
// (silent no-op for the container).
func (s *Slot[T]) Set(v T) {
	if s.list.refKind {
		s.list.SetAt(s.index, v)
		return
	}
	s.mu.Lock()
	s.detached = true
	s.local = v
	s.mu.Unlock()
}

// Detached reports whether the slot has rebound to a local copy.
func (s *Slot[T]) Detached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detached
}
