// Package cell implements observable cells and the update graph that
// drives lithe's reactivity.
//
// A Cell wraps a single value and exposes read, write, and subscribe
// operations. Derived values declare an explicit set of direct
// dependencies at construction and re-run only when one of those
// dependencies changes. Watchers are side-effect-only computations that
// participate in the same scheduling.
//
// All nodes belong to a Graph, which serializes update passes. Within a
// pass, derived values settle in dependency (topological) order before
// any subscriber callback or scope re-render runs, so a chain A -> B -> C
// always observes post-update inputs. Writes performed by subscriber
// callbacks cascade within the same flush, bounded by the graph's Budget.
//
// Change detection uses identity semantics: comparable primitives compare
// by value, and any assignment of a non-primitive value counts as a
// change. Deep equality is never consulted. Use WithEquals to override
// per cell.
//
// Scope and List model component-style binding semantics on top of
// cells: tracked top-level declarations, untracked inner-scope shadows,
// and loop-item slots that only write through for reference-kind
// element types.
package cell
