// Package snapshot persists store state across restarts.
//
// A snapshot backend holds one record per named store: the store's
// JSON-encoded value and its revision counter. The hub loads all
// records at boot and the checkpointer writes them back on a schedule.
package snapshot

import "context"

// Record is one persisted store: its JSON value and revision.
type Record struct {
	Data []byte
	Rev  uint64
}

// Store is a snapshot persistence backend.
//
// Load returns (nil, 0, nil) for a name that has never been saved;
// missing state is not an error.
type Store interface {
	Save(ctx context.Context, name string, data []byte, rev uint64) error
	Load(ctx context.Context, name string) (data []byte, rev uint64, err error)
	LoadAll(ctx context.Context) (map[string]Record, error)
	Delete(ctx context.Context, name string) error
	Close() error
}
