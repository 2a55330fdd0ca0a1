// Package config loads and validates lithe.json.
//
// Configuration is resolved in three layers: built-in defaults, the
// lithe.json file, and environment variables (LITHE_* via env tags),
// in that order. Durations are JSON strings ("30s", "5m"); store
// initial values are raw JSON documents.
package config
