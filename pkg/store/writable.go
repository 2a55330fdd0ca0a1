package store

import (
	"sync"

	"github.com/lithe-dev/lithe/internal/identity"
)

// StartStop is a notifier invoked when a store's subscriber count
// transitions from zero to one. It receives a set function for pushing
// values and returns a stop function invoked when the last subscriber
// leaves.
type StartStop[T any] func(set func(T)) (stop func())

// Writable is the reference Settable implementation: a value, a
// subscriber list with copy-before-notify, and identity equality.
type Writable[T any] struct {
	mu     sync.Mutex
	value  T
	subs   []wsub[T]
	nextID uint64

	equal func(T, T) bool

	start StartStop[T]
	stop  func()
}

type wsub[T any] struct {
	id uint64
	fn func(T)
}

// WritableOption configures a Writable.
type WritableOption[T any] func(*Writable[T])

// WithEquals overrides the store's change detection.
func WithEquals[T any](fn func(T, T) bool) WritableOption[T] {
	return func(w *Writable[T]) {
		w.equal = fn
	}
}

// WithNotifier installs a start/stop notifier: start runs when the
// subscriber count goes from zero to one, stop when it returns to zero.
func WithNotifier[T any](start StartStop[T]) WritableOption[T] {
	return func(w *Writable[T]) {
		w.start = start
	}
}

// NewWritable creates a writable store with the given initial value.
func NewWritable[T any](initial T, opts ...WritableOption[T]) *Writable[T] {
	w := &Writable[T]{value: initial}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Get returns the current value without subscribing.
func (w *Writable[T]) Get() T {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.value
}

// Set updates the value and synchronously notifies all current
// subscribers if the write counts as a change.
func (w *Writable[T]) Set(value T) {
	w.mu.Lock()
	changed := !w.equals(w.value, value)
	if changed {
		w.value = value
	}
	subs := w.copySubsLocked()
	w.mu.Unlock()

	if changed {
		for _, s := range subs {
			s.fn(value)
		}
	}
}

// Update atomically reads and rewrites the value.
func (w *Writable[T]) Update(fn func(T) T) {
	w.mu.Lock()
	next := fn(w.value)
	changed := !w.equals(w.value, next)
	if changed {
		w.value = next
	}
	subs := w.copySubsLocked()
	w.mu.Unlock()

	if changed {
		for _, s := range subs {
			s.fn(next)
		}
	}
}

// Subscribe registers fn, invoking it once synchronously with the
// current value. The first subscriber triggers the start notifier; the
// returned unsubscribe is idempotent, and the last departure triggers
// the stop notifier.
func (w *Writable[T]) Subscribe(fn func(T)) func() {
	w.mu.Lock()
	first := len(w.subs) == 0
	w.mu.Unlock()

	// Run the notifier before registering so the initial callback sees
	// any value the notifier pushed synchronously.
	if first && w.start != nil {
		stop := w.start(w.Set)
		w.mu.Lock()
		w.stop = stop
		w.mu.Unlock()
	}

	w.mu.Lock()
	w.nextID++
	id := w.nextID
	w.subs = append(w.subs, wsub[T]{id: id, fn: fn})
	current := w.value
	w.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() { w.unsubscribe(id) })
	}
}

func (w *Writable[T]) unsubscribe(id uint64) {
	w.mu.Lock()
	for i, s := range w.subs {
		if s.id == id {
			w.subs[i] = w.subs[len(w.subs)-1]
			w.subs = w.subs[:len(w.subs)-1]
			break
		}
	}
	var stop func()
	if len(w.subs) == 0 && w.stop != nil {
		stop = w.stop
		w.stop = nil
	}
	w.mu.Unlock()

	if stop != nil {
		stop()
	}
}

func (w *Writable[T]) copySubsLocked() []wsub[T] {
	subs := make([]wsub[T], len(w.subs))
	copy(subs, w.subs)
	return subs
}

func (w *Writable[T]) equals(a, b T) bool {
	if w.equal != nil {
		return w.equal(a, b)
	}
	return identity.Equal(a, b)
}

// Readable is a subscribe-only view over a writable whose value is
// owned by a start/stop notifier.
type Readable[T any] struct {
	w *Writable[T]
}

// NewReadable creates a readable store. start runs when the first
// subscriber arrives and owns the value through the provided set
// function; its stop runs when the last subscriber leaves.
func NewReadable[T any](initial T, start StartStop[T]) *Readable[T] {
	return &Readable[T]{
		w: NewWritable(initial, WithNotifier(start)),
	}
}

// Subscribe implements Store.
func (r *Readable[T]) Subscribe(fn func(T)) func() {
	return r.w.Subscribe(fn)
}

// Map derives a single-source readable store by transforming every
// value of src. The source subscription activates lazily with the first
// subscriber and is released with the last.
func Map[A, B any](src Store[A], fn func(A) B) *Readable[B] {
	var zero B
	return NewReadable(zero, func(set func(B)) func() {
		return src.Subscribe(func(v A) {
			set(fn(v))
		})
	})
}
