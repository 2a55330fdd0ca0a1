// Package lithe assembles a reactive store server from its parts:
// configuration, the store hub, a snapshot backend, and the
// WebSocket/REST server.
//
// A minimal application:
//
//	app, err := lithe.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	counter := store.NewWritable(0)
//	lithe.RegisterStore(app, "counter", counter)
//	app.Run(ctx)
//
// Stores declared in lithe.json are registered automatically with
// json.RawMessage values; typed stores registered from code get full
// type checking on inbound writes.
package lithe

import (
	"github.com/lithe-dev/lithe/pkg/server"
	"github.com/lithe-dev/lithe/pkg/store"
)

// RegisterStore adds a typed store to the app's hub under name.
func RegisterStore[T any](app *App, name string, s store.Settable[T]) error {
	return server.Register(app.Hub(), name, s)
}
