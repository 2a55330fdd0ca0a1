// Package server synchronizes registered stores to WebSocket clients.
//
// A Hub owns the set of named stores and assigns a global sequence
// number to every coalesced update it broadcasts. Sessions are the
// per-connection read/write loops; the Manager enforces session caps
// and keeps detached sessions resumable for a window. The Server ties
// them to an HTTP surface: the WebSocket upgrade endpoint, a REST
// write path, health, and optional Prometheus metrics.
package server
