// Package lithetest provides testing helpers for stores and scopes.
//
// The lithetest package reduces boilerplate when asserting on store
// notifications, which fire synchronously and are otherwise tedious to
// collect by hand.
//
// # Quick Start
//
//	func TestCounter_Notifies(t *testing.T) {
//	    counter := store.NewWritable(0)
//	    rec, stop := lithetest.Record[int](counter)
//	    defer stop()
//
//	    counter.Set(1)
//	    counter.Set(2)
//
//	    rec.ExpectCount(t, 3) // initial value plus two sets
//	    rec.ExpectLast(t, 2)
//	}
//
// # Recorders
//
// A Recorder collects every value a subscription delivers. Because
// store notifications are synchronous, assertions need no sleeping or
// channel plumbing:
//
//	rec, stop := lithetest.Record[string](theme)
//	theme.Set("dark")
//	rec.ExpectValues(t, []string{"light", "dark"})
//	stop()
//
// # Render Probes
//
// A RenderProbe counts how often a scope's re-render runs:
//
//	probe := lithetest.NewRenderProbe()
//	scope := cell.NewScope(g, probe.Func())
//	scope.Declare("count", 0)
//	scope.Assign("count", 1)
//	probe.ExpectRenders(t, 1)
//
// # Waiting
//
// The rare asynchronous case (ticker-driven tweens, server goroutines)
// uses bounded polling:
//
//	lithetest.WaitFor(t, time.Second, func() bool {
//	    return tween.Settled()
//	})
package lithetest
