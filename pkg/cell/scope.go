package cell

import "sync"

// Scope models a component scope with named bindings. Bindings declared
// on a root scope are tracked: every assignment schedules the scope's
// re-render, coalesced per flush. Bindings declared on a child (block)
// scope are untracked shadows, even when the name collides with an
// outer binding; assigning them is a silent no-op as far as rendering
// is concerned.
//
// Mutating a value reached through a retained alias (say, a pointer
// into a struct held by a binding) does not retrigger anything: only an
// assignment through the scope is observed.
type Scope struct {
	g      *Graph
	parent *Scope
	render func()

	mu       sync.Mutex
	bindings map[string]*binding

	renderMu sync.Mutex
	renders  int
}

// binding is a named storage slot. Tracked bindings go through a cell
// so commits schedule the scope; shadows hold the value directly.
type binding struct {
	tracked bool
	cell    *Cell[any]

	mu    sync.Mutex
	value any
}

// NewScope creates a tracked root scope. render, if non-nil, runs after
// each flush in which one of the scope's tracked bindings was assigned.
func NewScope(g *Graph, render func()) *Scope {
	return &Scope{
		g:        g,
		render:   render,
		bindings: make(map[string]*binding),
	}
}

// Child creates a block scope nested in s. Bindings declared on it are
// untracked shadows.
func (s *Scope) Child() *Scope {
	return &Scope{
		g:        s.g,
		parent:   s,
		bindings: make(map[string]*binding),
	}
}

// root returns the scope whose re-render tracked assignments schedule.
func (s *Scope) root() *Scope {
	r := s
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// Declare introduces a binding named name with an initial value. On a
// root scope the binding is tracked; on a child scope it is an
// untracked shadow regardless of outer bindings with the same name.
func (s *Scope) Declare(name string, initial any) {
	b := &binding{}
	if s.parent == nil {
		root := s.root()
		c := New[any](s.g, initial).WithEquals(neverEqual[any])
		c.n.onCommit = func() { s.g.markScopeDirty(root) }
		b.tracked = true
		b.cell = c
	} else {
		b.value = initial
	}

	s.mu.Lock()
	s.bindings[name] = b
	s.mu.Unlock()
}

// Assign writes to the innermost binding named name. Assignments to
// tracked bindings schedule a re-render per assignment (coalesced per
// flush); assignments to shadows change the stored value and schedule
// nothing. Assign reports whether a binding was found.
func (s *Scope) Assign(name string, value any) bool {
	b := s.resolve(name)
	if b == nil {
		return false
	}
	if b.tracked {
		b.cell.Set(value)
		return true
	}
	b.mu.Lock()
	b.value = value
	b.mu.Unlock()
	return true
}

// Lookup reads the innermost binding named name.
func (s *Scope) Lookup(name string) (any, bool) {
	b := s.resolve(name)
	if b == nil {
		return nil, false
	}
	if b.tracked {
		return b.cell.Get(), true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value, true
}

// Binding returns the cell behind a tracked binding, for subscribing or
// deriving from it. Shadows have no cell.
func (s *Scope) Binding(name string) (*Cell[any], bool) {
	b := s.resolve(name)
	if b == nil || !b.tracked {
		return nil, false
	}
	return b.cell, true
}

// resolve walks scopes innermost-first.
func (s *Scope) resolve(name string) *binding {
	for sc := s; sc != nil; sc = sc.parent {
		sc.mu.Lock()
		b, ok := sc.bindings[name]
		sc.mu.Unlock()
		if ok {
			return b
		}
	}
	return nil
}

// Renders returns how many times the scope's re-render has run.
func (s *Scope) Renders() int {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()
	return s.renders
}

// runRender is called by the graph during deliver.
func (s *Scope) runRender() {
	s.renderMu.Lock()
	s.renders++
	s.renderMu.Unlock()
	if s.render != nil {
		s.render()
	}
}
