// Package middleware provides observability middleware for the hub's
// apply pipeline.
//
// A middleware wraps server.ApplyFunc and runs around every client
// write batch. Add middleware with Hub.Use; the last one added runs
// outermost.
//
//	hub.Use(middleware.Prometheus())
//	hub.Use(middleware.OpenTelemetry())
package middleware
