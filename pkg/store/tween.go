package store

import (
	"sync"
	"time"
)

// Driver supplies time to a tween: a clock plus a tick source.
type Driver interface {
	// Now returns the driver's current time.
	Now() time.Time

	// Start begins delivering ticks to fn and returns a stop function.
	Start(fn func(now time.Time)) (stop func())
}

// TickerDriver drives tweens from wall-clock time.
type TickerDriver struct {
	// Interval between ticks. Defaults to ~16ms (one display frame).
	Interval time.Duration
}

// Now implements Driver.
func (d *TickerDriver) Now() time.Time {
	return time.Now()
}

// Start implements Driver.
func (d *TickerDriver) Start(fn func(time.Time)) (stop func()) {
	interval := d.Interval
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case now := <-ticker.C:
				fn(now)
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}

// ManualDriver drives tweens from an explicit clock, for tests.
type ManualDriver struct {
	mu   sync.Mutex
	now  time.Time
	tick func(time.Time)
}

// NewManualDriver creates a manual driver starting at an arbitrary
// fixed instant.
func NewManualDriver() *ManualDriver {
	return &ManualDriver{now: time.Unix(0, 0)}
}

// Now implements Driver.
func (d *ManualDriver) Now() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.now
}

// Start implements Driver.
func (d *ManualDriver) Start(fn func(time.Time)) (stop func()) {
	d.mu.Lock()
	d.tick = fn
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		d.tick = nil
		d.mu.Unlock()
	}
}

// Advance moves the clock forward and delivers one tick.
func (d *ManualDriver) Advance(delta time.Duration) {
	d.mu.Lock()
	d.now = d.now.Add(delta)
	now := d.now
	fn := d.tick
	d.mu.Unlock()

	if fn != nil {
		fn(now)
	}
}

// TweenOf is an animation-driven store: Set retargets an interpolation
// and returns immediately, with notification deferred and delivered
// over time by a driver.
//
// Because notification is deferred, two-way binding a tween (Bind or
// Link) has unpredictable semantics: the echo arrives ticks later and
// may interleave with fresh writes. This is inherent to
// deferred-notification stores and intentionally not papered over.
type TweenOf[T any] struct {
	w *Writable[T]

	mu       sync.Mutex
	from, to T
	start    time.Time
	active   bool
	stopTick func()

	duration time.Duration
	easing   func(float64) float64
	lerp     func(from, to T, t float64) T
	driver   Driver
}

// TweenOption configures a tween.
type TweenOption[T any] func(*TweenOf[T])

// WithDuration sets the interpolation duration.
func WithDuration[T any](d time.Duration) TweenOption[T] {
	return func(t *TweenOf[T]) {
		t.duration = d
	}
}

// WithEasing sets the easing function mapping linear progress [0,1] to
// eased progress.
func WithEasing[T any](fn func(float64) float64) TweenOption[T] {
	return func(t *TweenOf[T]) {
		t.easing = fn
	}
}

// WithDriver sets the tick source. Tests use a ManualDriver.
func WithDriver[T any](d Driver) TweenOption[T] {
	return func(t *TweenOf[T]) {
		t.driver = d
	}
}

// NewTweenOf creates a tween over any value type given an interpolation
// function.
func NewTweenOf[T any](initial T, lerp func(from, to T, t float64) T, opts ...TweenOption[T]) *TweenOf[T] {
	tw := &TweenOf[T]{
		w:        NewWritable(initial),
		duration: 400 * time.Millisecond,
		easing:   func(t float64) float64 { return t },
		lerp:     lerp,
		driver:   &TickerDriver{},
	}
	for _, opt := range opts {
		opt(tw)
	}
	return tw
}

// NewTween creates a float64 tween with linear interpolation.
func NewTween(initial float64, opts ...TweenOption[float64]) *TweenOf[float64] {
	return NewTweenOf(initial, func(from, to float64, t float64) float64 {
		return from + (to-from)*t
	}, opts...)
}

// Get returns the current interpolated value.
func (t *TweenOf[T]) Get() T {
	return t.w.Get()
}

// Set retargets the interpolation toward value and returns immediately.
// Subscribers are notified over subsequent driver ticks, not
// synchronously.
func (t *TweenOf[T]) Set(value T) {
	t.mu.Lock()
	t.from = t.w.Get()
	t.to = value
	t.start = t.driver.Now()
	t.active = true
	if t.stopTick == nil {
		t.stopTick = t.driver.Start(t.step)
	}
	t.mu.Unlock()
}

// Subscribe implements Store. The initial callback is synchronous with
// the current interpolated value; subsequent callbacks arrive on driver
// ticks.
func (t *TweenOf[T]) Subscribe(fn func(T)) func() {
	return t.w.Subscribe(fn)
}

// Settled reports whether the tween has reached its target.
func (t *TweenOf[T]) Settled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.active
}

// Stop halts ticking; the value freezes wherever the interpolation got.
func (t *TweenOf[T]) Stop() {
	t.mu.Lock()
	stop := t.stopTick
	t.stopTick = nil
	t.active = false
	t.mu.Unlock()

	if stop != nil {
		stop()
	}
}

func (t *TweenOf[T]) step(now time.Time) {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return
	}

	progress := 1.0
	if t.duration > 0 {
		progress = float64(now.Sub(t.start)) / float64(t.duration)
	}
	if progress >= 1.0 {
		progress = 1.0
		t.active = false
	}
	value := t.lerp(t.from, t.to, t.easing(progress))

	var stop func()
	if !t.active {
		stop = t.stopTick
		t.stopTick = nil
	}
	t.mu.Unlock()

	t.w.Set(value)
	if stop != nil {
		stop()
	}
}
