package snapshot

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lithe-dev/lithe/internal/errors"
)

// Source provides the state to checkpoint. The hub implements it.
type Source interface {
	SnapshotAll() map[string]Record
}

// Checkpointer persists a source's state to a snapshot backend on a
// cron schedule, plus a final checkpoint on Stop.
type Checkpointer struct {
	source Source
	store  Store
	cron   *cron.Cron
	log    *slog.Logger

	// Skips an overlapping run when the previous one is still writing.
	running atomic.Bool
}

// NewCheckpointer creates a checkpointer with a standard five-field
// cron schedule (e.g. "*/5 * * * *" for every five minutes).
func NewCheckpointer(source Source, store Store, schedule string) (*Checkpointer, error) {
	c := &Checkpointer{
		source: source,
		store:  store,
		cron:   cron.New(),
		log:    slog.Default().With("component", "checkpointer"),
	}

	if _, err := c.cron.AddFunc(schedule, c.run); err != nil {
		return nil, errors.New("E203").WithDetail("schedule %q: %v", schedule, err).Wrap(err)
	}
	return c, nil
}

// Start begins scheduled checkpointing.
func (c *Checkpointer) Start() {
	c.cron.Start()
}

// Stop halts the schedule, waits for any in-flight run, and writes a
// final checkpoint.
func (c *Checkpointer) Stop(ctx context.Context) error {
	<-c.cron.Stop().Done()
	return c.Checkpoint(ctx)
}

// Checkpoint writes every record of the source to the backend. The
// first backend failure aborts the run.
func (c *Checkpointer) Checkpoint(ctx context.Context) error {
	start := time.Now()
	records := c.source.SnapshotAll()

	for name, rec := range records {
		if err := c.store.Save(ctx, name, rec.Data, rec.Rev); err != nil {
			c.log.Error("checkpoint failed", "store", name, "error", err)
			return err
		}
	}

	c.log.Info("checkpoint complete",
		"stores", len(records),
		"duration", time.Since(start))
	return nil
}

func (c *Checkpointer) run() {
	if !c.running.CompareAndSwap(false, true) {
		c.log.Info("checkpoint skipped: previous run still writing")
		return
	}
	defer c.running.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.Checkpoint(ctx); err != nil {
		c.log.Error("scheduled checkpoint failed", "error", err)
	}
}
