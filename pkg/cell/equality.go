package cell

import "github.com/lithe-dev/lithe/internal/identity"

// identityEqual is the graph's default change detection: a write counts
// as a change by identity of the assignment, not deep equality. See
// internal/identity for the exact rules.
func identityEqual[T any](prev, next T) bool {
	return identity.Equal(prev, next)
}

// neverEqual makes every write count as a change. Scope bindings use it:
// a tracked assignment schedules a re-render regardless of the value.
func neverEqual[T any](T, T) bool {
	return false
}
