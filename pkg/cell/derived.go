package cell

import "sync"

// Dep is a node that a derived computation may declare as a direct
// dependency. Cells, derived values, and lists all satisfy it.
type Dep interface {
	depNode() *node
}

// When collects the direct dependencies of a derived computation.
// Only values listed here trigger re-runs; values read inside the
// computation through called helpers never do.
func When(deps ...Dep) []Dep {
	return deps
}

// Derived is a derived computation with an explicit dependency set.
// It re-evaluates during update passes in dependency order and is
// readable and subscribable like a cell.
type Derived[T any] struct {
	g *Graph
	n *node

	mu    sync.RWMutex
	value T

	equal   func(T, T) bool
	compute func() T

	subs subscriberList[T]
}

// Derive creates a derived value on g. The computation runs once
// immediately, then again whenever one of its declared dependencies
// changes. The dependency set is fixed at construction, which keeps the
// graph acyclic by construction.
func Derive[T any](g *Graph, deps []Dep, compute func() T) *Derived[T] {
	d := &Derived[T]{
		g:       g,
		compute: compute,
	}

	height := 0
	for _, dep := range deps {
		if h := dep.depNode().height; h >= height {
			height = h + 1
		}
	}
	if height == 0 {
		height = 1
	}

	d.n = &node{
		id:      nextID(),
		height:  height,
		deliver: func() { d.subs.notify(d.Get()) },
		recompute: func() bool {
			next := d.compute()
			d.mu.Lock()
			changed := !d.equals(d.value, next)
			if changed {
				d.value = next
			}
			d.mu.Unlock()
			return changed
		},
	}

	acquired := g.acquire()
	for _, dep := range deps {
		g.addDependent(dep.depNode(), d.n)
	}
	d.value = compute()
	g.release(acquired)

	return d
}

// Get returns the most recently computed value.
func (d *Derived[T]) Get() T {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.value
}

// Subscribe registers fn as an observer. fn is invoked once
// synchronously with the current value, then once per committed
// recomputation that changed the value. The returned unsubscribe is
// idempotent.
func (d *Derived[T]) Subscribe(fn func(T)) func() {
	unsubscribe := d.subs.add(fn)
	fn(d.Get())
	return unsubscribe
}

// WithEquals overrides the derived value's change detection.
func (d *Derived[T]) WithEquals(fn func(T, T) bool) *Derived[T] {
	d.equal = fn
	return d
}

// ID returns the derived value's unique node identifier.
func (d *Derived[T]) ID() uint64 {
	return d.n.id
}

// Stop detaches the derived value from the graph. It keeps its last
// value but never recomputes or notifies again.
func (d *Derived[T]) Stop() {
	acquired := d.g.acquire()
	defer d.g.release(acquired)
	d.n.stopped = true
}

// depNode lets a derived value serve as a dependency of another.
func (d *Derived[T]) depNode() *node {
	return d.n
}

func (d *Derived[T]) equals(a, b T) bool {
	if d.equal != nil {
		return d.equal(a, b)
	}
	return identityEqual(a, b)
}

// Watcher is a side-effect-only computation. It participates in the
// same topological scheduling as Derived but produces no value and has
// no subscribers.
type Watcher struct {
	g *Graph
	n *node
}

// Watch creates a watcher on g. fn runs once immediately, then again
// during each update pass in which one of its declared dependencies
// changed, after those dependencies have settled.
func Watch(g *Graph, deps []Dep, fn func()) *Watcher {
	w := &Watcher{g: g}

	height := 0
	for _, dep := range deps {
		if h := dep.depNode().height; h >= height {
			height = h + 1
		}
	}
	if height == 0 {
		height = 1
	}

	w.n = &node{
		id:     nextID(),
		height: height,
		recompute: func() bool {
			fn()
			return false
		},
	}

	acquired := g.acquire()
	for _, dep := range deps {
		g.addDependent(dep.depNode(), w.n)
	}
	fn()
	g.release(acquired)

	return w
}

// Stop detaches the watcher; fn never runs again.
func (w *Watcher) Stop() {
	acquired := w.g.acquire()
	defer w.g.release(acquired)
	w.n.stopped = true
}
