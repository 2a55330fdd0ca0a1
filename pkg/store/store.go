package store

import "github.com/lithe-dev/lithe/internal/errors"

// Store is an observable value source. Subscribe must invoke fn once
// synchronously at registration with the current value and once per
// subsequent change. The returned unsubscribe must be idempotent and
// safe to call during teardown.
type Store[T any] interface {
	Subscribe(fn func(T)) (unsubscribe func())
}

// Settable is a store that also accepts writes. By convention Set
// updates internal state and notifies all current subscribers, but
// implementations may defer notification (see Tween); deferring makes
// two-way binding semantics unpredictable.
type Settable[T any] interface {
	Store[T]
	Set(value T)
}

// From checks at construction time that v satisfies the store contract
// for value type T. It returns a coded error instead of deferring a
// runtime shape assumption to use time.
func From[T any](v any) (Store[T], error) {
	if s, ok := v.(Store[T]); ok {
		return s, nil
	}
	return nil, errors.New("E002").
		WithDetail("%T does not implement Subscribe(func(%T)) func()", v, *new(T))
}

// FromSettable is From for the two-way contract: Subscribe plus Set.
func FromSettable[T any](v any) (Settable[T], error) {
	if s, ok := v.(Settable[T]); ok {
		return s, nil
	}
	return nil, errors.New("E002").
		WithDetail("%T does not implement the settable store contract for %T", v, *new(T))
}
