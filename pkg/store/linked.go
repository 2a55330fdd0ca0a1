package store

import "sync"

// Linked is a composable pair of independent settable stores,
// cross-driving each one's Set from the other's updates through a pure
// transform pair. After linking, setting the first store to x yields the
// second reading forward(x), and setting the second to y yields the
// first reading inverse(y).
//
// A syncing guard plus identity equality prevents notification
// ping-pong between the two sides.
type Linked[A, B any] struct {
	a Settable[A]
	b Settable[B]

	forward func(A) B
	inverse func(B) A

	mu      sync.Mutex
	syncing bool

	unsubA func()
	unsubB func()

	releaseOnce sync.Once
}

// Link wires a and b into a bidirectional pair. The first store wins at
// link time: b is immediately driven to forward of a's current value.
// forward and inverse are expected to be pure.
func Link[A, B any](a Settable[A], b Settable[B], forward func(A) B, inverse func(B) A) *Linked[A, B] {
	l := &Linked[A, B]{
		a:       a,
		b:       b,
		forward: forward,
		inverse: inverse,
	}

	l.unsubA = a.Subscribe(func(v A) {
		if l.enter() {
			defer l.exit()
			l.b.Set(l.forward(v))
		}
	})
	l.unsubB = b.Subscribe(func(v B) {
		if l.enter() {
			defer l.exit()
			l.a.Set(l.inverse(v))
		}
	})

	return l
}

// enter claims the syncing guard. It returns false when the update is
// an echo of a cross-drive already in progress.
func (l *Linked[A, B]) enter() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.syncing {
		return false
	}
	l.syncing = true
	return true
}

func (l *Linked[A, B]) exit() {
	l.mu.Lock()
	l.syncing = false
	l.mu.Unlock()
}

// Release detaches both subscriptions. It is idempotent and safe to
// call during teardown.
func (l *Linked[A, B]) Release() {
	l.releaseOnce.Do(func() {
		l.unsubA()
		l.unsubB()
	})
}

// Bind two-way links a local settable to a remote one with identity
// transforms: the shorthand binding convention. The remote store's
// current value wins at bind time. The returned release is idempotent.
func Bind[T any](local, remote Settable[T]) (release func()) {
	l := Link(remote, local,
		func(v T) T { return v },
		func(v T) T { return v },
	)
	return l.Release
}
