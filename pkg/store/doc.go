// Package store defines the subscription contract shared by every
// observable value source in lithe, plus combinators for composing
// stores.
//
// The contract is structural but checked explicitly: any value exposing
//
//	Subscribe(fn func(T)) (unsubscribe func())
//
// is a Store. Subscribe must invoke fn once synchronously at
// registration with the current value and again on every change; the
// returned unsubscribe must be idempotent and safe to call during
// teardown. A store that additionally exposes Set(T) is Settable and
// supports two-way binding.
//
// From performs the capability check at construction time, returning a
// coded error for values that do not satisfy the contract, so consumers
// never discover a missing method at use time.
//
// Cells and derived values from package cell satisfy the contract, so
// they interoperate with every combinator here.
package store
