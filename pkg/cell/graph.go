package cell

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/lithe-dev/lithe/internal/errors"
)

// globalIDCounter is the source of unique IDs for all graph nodes.
var globalIDCounter uint64

// nextID returns the next unique node ID. IDs are never reused.
func nextID() uint64 {
	return atomic.AddUint64(&globalIDCounter, 1)
}

// node is the graph-internal state shared by cells, derived values, and
// watchers. Cells sit at height 0; a derived node's height is one more
// than the maximum height of its dependencies, which gives the settle
// loop its topological order.
type node struct {
	id     uint64
	height int

	// dependents are derived/watcher nodes that declared this node as a
	// direct dependency. Guarded by graph ownership.
	dependents []*node

	// recompute re-evaluates a derived/watcher node and reports whether
	// its value changed. nil for cells.
	recompute func() bool

	// deliver runs the node's subscriber callbacks with the committed
	// value. nil for watchers.
	deliver func()

	// onCommit, if set, runs when a change to this node is committed.
	// Used by Scope to schedule re-renders.
	onCommit func()

	stopped bool
}

// Graph owns update scheduling for a set of cells.
//
// A graph is mutually exclusive across goroutines: one update pass runs
// at a time. It is re-entrant for the goroutine that holds it, so
// subscriber callbacks may write to cells of the same graph; those
// writes cascade within the same flush.
type Graph struct {
	mu    sync.Mutex
	owner atomic.Uint64 // goroutine ID currently holding mu; 0 when free

	// Pending work, guarded by graph ownership.
	batchDepth int
	flushing   bool
	dirty      []*node
	dirtyIDs   map[uint64]struct{}
	changed    []*node
	changedIDs map[uint64]struct{}
	scopes     []*Scope
	scopeSet   map[*Scope]struct{}

	budget  Budget
	onStorm func(error)
}

// Option configures a Graph.
type Option func(*Graph)

// WithBudget sets the graph's cascade budget.
func WithBudget(b Budget) Option {
	return func(g *Graph) {
		g.budget = b
	}
}

// OnStorm sets the handler invoked when the cascade budget is exceeded.
// The default handler panics with a coded error.
func OnStorm(fn func(error)) Option {
	return func(g *Graph) {
		g.onStorm = fn
	}
}

// NewGraph creates a new update graph.
func NewGraph(opts ...Option) *Graph {
	g := &Graph{
		dirtyIDs:   make(map[uint64]struct{}),
		changedIDs: make(map[uint64]struct{}),
		scopeSet:   make(map[*Scope]struct{}),
		budget:     DefaultBudget(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// goroutineID returns a unique identifier for the current goroutine,
// parsed from the runtime stack header ("goroutine <id> ...").
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	var id uint64
	for i := 10; i < n; i++ { // skip "goroutine "
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

// acquire takes graph ownership for the current goroutine. It returns
// true if this call locked the graph; re-entrant calls from the owning
// goroutine return false and must not flush.
func (g *Graph) acquire() bool {
	gid := goroutineID()
	if g.owner.Load() == gid {
		return false
	}
	g.mu.Lock()
	g.owner.Store(gid)
	return true
}

// release gives up graph ownership taken by acquire. The outermost
// release flushes pending work first.
func (g *Graph) release(acquired bool) {
	if !acquired {
		return
	}
	defer func() {
		g.owner.Store(0)
		g.mu.Unlock()
	}()
	if !g.flushing && g.batchDepth == 0 {
		g.flush()
	}
}

// Batch groups multiple writes into a single update pass. Per pass, each
// changed cell notifies each subscriber once and each dirty scope
// re-renders once, no matter how many times it was assigned.
//
// Batches nest; the flush runs when the outermost batch completes.
func (g *Graph) Batch(fn func()) {
	acquired := g.acquire()
	g.batchDepth++
	defer func() {
		g.batchDepth--
		g.release(acquired)
	}()
	fn()
}

// markChanged records a committed change to n: its dependents become
// dirty and its subscribers are queued for delivery after settling.
func (g *Graph) markChanged(n *node) {
	if n.deliver != nil {
		if _, ok := g.changedIDs[n.id]; !ok {
			g.changedIDs[n.id] = struct{}{}
			g.changed = append(g.changed, n)
		}
	}
	if n.onCommit != nil {
		n.onCommit()
	}
	for _, dep := range n.dependents {
		g.markDirty(dep)
	}
}

// markDirty queues a derived/watcher node for recomputation.
func (g *Graph) markDirty(n *node) {
	if n.stopped {
		return
	}
	if _, ok := g.dirtyIDs[n.id]; ok {
		return
	}
	g.dirtyIDs[n.id] = struct{}{}
	g.dirty = append(g.dirty, n)
}

// markScopeDirty queues a scope re-render, coalesced per flush.
func (g *Graph) markScopeDirty(s *Scope) {
	if _, ok := g.scopeSet[s]; ok {
		return
	}
	g.scopeSet[s] = struct{}{}
	g.scopes = append(g.scopes, s)
}

func (g *Graph) hasPending() bool {
	return len(g.dirty) > 0 || len(g.changed) > 0 || len(g.scopes) > 0
}

// flush runs update passes until the graph is quiescent. Each pass
// settles dirty derived nodes in height order, then delivers subscriber
// callbacks and scope re-renders. Writes performed by those callbacks
// start another pass (a cascade) within the same flush, bounded by the
// cascade budget.
func (g *Graph) flush() {
	g.flushing = true
	defer func() { g.flushing = false }()

	cascades := 0
	for g.hasPending() {
		if cascades >= g.budget.MaxCascades {
			g.clearPending()
			err := errors.New("E001").
				WithDetail("flush did not settle after %d cascades", cascades).
				WithSuggestion("Look for subscriber callbacks that write to cells the other one watches")
			g.stormHandler()(err)
			return
		}
		cascades++
		g.settle()
		g.deliver()
	}
}

func (g *Graph) stormHandler() func(error) {
	if g.onStorm != nil {
		return g.onStorm
	}
	return func(err error) { panic(err) }
}

func (g *Graph) clearPending() {
	g.dirty = nil
	g.dirtyIDs = make(map[uint64]struct{})
	g.changed = nil
	g.changedIDs = make(map[uint64]struct{})
	g.scopes = nil
	g.scopeSet = make(map[*Scope]struct{})
}

// settle recomputes dirty nodes in ascending (height, id) order. A
// recompute that changes a node's value dirties its dependents; those
// always have greater height, so one sweep per pass suffices.
func (g *Graph) settle() {
	for len(g.dirty) > 0 {
		min := 0
		for i, n := range g.dirty {
			if n.height < g.dirty[min].height ||
				(n.height == g.dirty[min].height && n.id < g.dirty[min].id) {
				min = i
			}
		}
		n := g.dirty[min]
		g.dirty = append(g.dirty[:min], g.dirty[min+1:]...)
		delete(g.dirtyIDs, n.id)

		if n.stopped || n.recompute == nil {
			continue
		}
		if n.recompute() {
			g.markChanged(n)
		}
	}
}

// deliver runs queued subscriber callbacks and scope re-renders, once
// per changed node and once per dirty scope.
func (g *Graph) deliver() {
	changed := g.changed
	g.changed = nil
	g.changedIDs = make(map[uint64]struct{})

	scopes := g.scopes
	g.scopes = nil
	g.scopeSet = make(map[*Scope]struct{})

	for _, n := range changed {
		if n.deliver != nil && !n.stopped {
			n.deliver()
		}
	}
	for _, s := range scopes {
		s.runRender()
	}
}

// addDependent registers dep as a dependent of n.
func (g *Graph) addDependent(n, dep *node) {
	n.dependents = append(n.dependents, dep)
}

// removeDependent detaches dep from n's dependents.
func (g *Graph) removeDependent(n, dep *node) {
	for i, d := range n.dependents {
		if d.id == dep.id {
			n.dependents[i] = n.dependents[len(n.dependents)-1]
			n.dependents = n.dependents[:len(n.dependents)-1]
			return
		}
	}
}
