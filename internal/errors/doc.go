// Package errors provides structured, actionable error messages for lithe.
//
// The errors package implements an error system that:
//   - Explains what went wrong in plain language
//   - Suggests how to fix issues
//   - Links to documentation for deeper understanding
//
// # Error Categories
//
// Errors are organized into categories:
//   - runtime: update-graph errors (update storms, unknown stores)
//   - contract: store contract violations (missing Subscribe, bad shapes)
//   - protocol: wire protocol errors (invalid frames, oversized payloads)
//   - config: configuration file and environment errors
//   - storage: snapshot backend errors
//   - cli: command-line errors
//
// # Error Codes
//
// Each error has a unique code (e.g., "E001") that maps to:
//   - A short message describing the error
//   - A detailed explanation
//   - A documentation URL
//
// # Usage
//
//	err := errors.New("E003").
//	    WithDetail("store %q is not registered", name).
//	    WithSuggestion("Register the store with hub.Register before serving")
//
//	fmt.Println(err.Format())
package errors
