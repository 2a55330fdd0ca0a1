package lithetest

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/lithe-dev/lithe/pkg/store"
)

// Recorder collects every value delivered to a subscription.
//
// Safe for concurrent use; notifier-driven stores may deliver from
// other goroutines.
type Recorder[T any] struct {
	mu     sync.Mutex
	values []T
}

// NewRecorder creates an empty recorder. Pass its Observe method as a
// subscription callback, or use Record to subscribe in one step.
func NewRecorder[T any]() *Recorder[T] {
	return &Recorder[T]{}
}

// Record subscribes a fresh recorder to s and returns both the
// recorder and the unsubscribe function.
//
// The recorder starts with one value already collected: subscriptions
// deliver the current value synchronously.
func Record[T any](s store.Store[T]) (*Recorder[T], func()) {
	rec := NewRecorder[T]()
	stop := s.Subscribe(rec.Observe)
	return rec, stop
}

// Observe appends a value. It has the subscription callback shape.
func (r *Recorder[T]) Observe(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

// Count returns how many values have been delivered.
func (r *Recorder[T]) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.values)
}

// Values returns a copy of every delivered value, in order.
func (r *Recorder[T]) Values() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]T, len(r.values))
	copy(out, r.values)
	return out
}

// Last returns the most recent value and whether one exists.
func (r *Recorder[T]) Last() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.values) == 0 {
		var zero T
		return zero, false
	}
	return r.values[len(r.values)-1], true
}

// Reset discards collected values, e.g. after asserting on the
// initial delivery.
func (r *Recorder[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = r.values[:0]
}

// ExpectCount asserts the number of delivered values.
func (r *Recorder[T]) ExpectCount(t testing.TB, want int) {
	t.Helper()
	if got := r.Count(); got != want {
		t.Errorf("expected %d notifications, got %d (%v)", want, got, r.Values())
	}
}

// ExpectLast asserts the most recent value.
func (r *Recorder[T]) ExpectLast(t testing.TB, want T) {
	t.Helper()
	got, ok := r.Last()
	if !ok {
		t.Errorf("expected last value %v, got no notifications", want)
		return
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected last value %v, got %v", want, got)
	}
}

// ExpectValues asserts the full delivery sequence.
func (r *Recorder[T]) ExpectValues(t testing.TB, want []T) {
	t.Helper()
	got := r.Values()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected values %v, got %v", want, got)
	}
}

// RenderProbe counts re-render invocations for a scope.
type RenderProbe struct {
	mu    sync.Mutex
	count int
}

// NewRenderProbe creates a probe with a zero count.
func NewRenderProbe() *RenderProbe {
	return &RenderProbe{}
}

// Func returns the render callback to pass to cell.NewScope.
func (p *RenderProbe) Func() func() {
	return func() {
		p.mu.Lock()
		p.count++
		p.mu.Unlock()
	}
}

// Renders returns how many times the render callback has run.
func (p *RenderProbe) Renders() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// ExpectRenders asserts the render count.
func (p *RenderProbe) ExpectRenders(t testing.TB, want int) {
	t.Helper()
	if got := p.Renders(); got != want {
		t.Errorf("expected %d renders, got %d", want, got)
	}
}

// WaitFor polls cond until it returns true or timeout elapses, failing
// the test on timeout. Most store behavior is synchronous; reach for
// this only when a goroutine is involved.
func WaitFor(t testing.TB, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}
